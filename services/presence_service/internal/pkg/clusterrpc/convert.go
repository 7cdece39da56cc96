// Package clusterrpc 节点间调用的领域对象与 protobuf 消息互转
package clusterrpc

import (
	pb "github.com/EthanQC/IM/api/gen/im/v1"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
)

func ToCoordinate(c entity.Coordinate) *pb.Coordinate {
	return &pb.Coordinate{Longitude: c.Longitude, Latitude: c.Latitude}
}

func FromCoordinate(c *pb.Coordinate) entity.Coordinate {
	return entity.Coordinate{Longitude: c.GetLongitude(), Latitude: c.GetLatitude()}
}

func ToCloseReason(r entity.CloseReason) *pb.CloseReason {
	return &pb.CloseReason{
		Status:       int32(r.Status),
		Reason:       r.Reason,
		RedirectAddr: r.RedirectAddr,
	}
}

// FromCloseReason 缺省时按 disconnected_by_client 处理
func FromCloseReason(r *pb.CloseReason) entity.CloseReason {
	return entity.CloseReason{
		Status:       entity.CloseStatus(r.GetStatus()),
		Reason:       r.GetReason(),
		RedirectAddr: r.GetRedirectAddr(),
	}
}

func ToNearestRequest(q entity.NearbyQuery) *pb.NearestRequest {
	return &pb.NearestRequest{
		Point:       ToCoordinate(q.Point),
		MaxDistance: q.MaxDistance,
		MaxCount:    int32(q.MaxCount),
	}
}

func FromNearestRequest(req *pb.NearestRequest) entity.NearbyQuery {
	return entity.NearbyQuery{
		Point:       FromCoordinate(req.GetPoint()),
		MaxDistance: req.GetMaxDistance(),
		MaxCount:    int(req.GetMaxCount()),
	}
}

func ToNearbyUsers(users []entity.NearbyUser) []*pb.NearbyUser {
	res := make([]*pb.NearbyUser, 0, len(users))
	for _, u := range users {
		res = append(res, &pb.NearbyUser{
			UserId:     u.UserID,
			DeviceType: string(u.DeviceType),
			Coordinate: ToCoordinate(u.Coordinate),
		})
	}
	return res
}

func FromNearbyUsers(users []*pb.NearbyUser) []entity.NearbyUser {
	res := make([]entity.NearbyUser, 0, len(users))
	for _, u := range users {
		res = append(res, entity.NearbyUser{
			SpatialKey: entity.SpatialKey{UserID: u.GetUserId(), DeviceType: entity.DeviceType(u.GetDeviceType())},
			Coordinate: FromCoordinate(u.GetCoordinate()),
		})
	}
	return res
}
