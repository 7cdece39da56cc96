package clusterrpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	pb "github.com/EthanQC/IM/api/gen/im/v1"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
)

func TestFromCloseReason_NilDefaultsToDisconnectedByClient(t *testing.T) {
	req := require.New(t)

	// When: 对端没有带关闭原因
	reason := FromCloseReason(nil)

	// Then
	req.Equal(entity.CloseDisconnectedByClient, reason.Status)
	req.Empty(reason.RedirectAddr)
}

func TestNearestRequest_KeepsQuery(t *testing.T) {
	req := require.New(t)

	// Given
	q := entity.NearbyQuery{Point: entity.Coordinate{Longitude: 116.4, Latitude: 39.9}, MaxDistance: 1500, MaxCount: 7}

	// When
	got := FromNearestRequest(ToNearestRequest(q))

	// Then
	req.Equal(q, got)
}

func TestFromNearestRequest_MissingPointIsOrigin(t *testing.T) {
	req := require.New(t)

	got := FromNearestRequest(&pb.NearestRequest{MaxCount: 3})

	req.Equal(entity.Coordinate{}, got.Point)
	req.Equal(3, got.MaxCount)
}
