package entity

// Member 集群成员
type Member struct {
	NodeID     string `json:"node_id"`
	RPCAddr    string `json:"rpc_addr"`    // 节点间 gRPC 地址
	ClientAddr string `json:"client_addr"` // 客户端 WebSocket 地址，redirect 时下发
}

// MembershipEventType 成员变更类型
type MembershipEventType string

const (
	MemberJoined  MembershipEventType = "joined"
	MemberLeft    MembershipEventType = "left"
	MemberUpdated MembershipEventType = "updated"
)

// MembershipEvent 成员变更事件
type MembershipEvent struct {
	Type   MembershipEventType
	Member Member
}

// SpatialKey 空间索引的键，DeviceType 为空表示按用户维度去重
type SpatialKey struct {
	UserID     uint64     `json:"user_id"`
	DeviceType DeviceType `json:"device_type,omitempty"`
}

// NearbyUser 附近的人查询结果
type NearbyUser struct {
	SpatialKey
	Coordinate Coordinate `json:"coordinate"`
}

// NearbyQuery 附近的人查询参数
type NearbyQuery struct {
	Point       Coordinate `json:"point"`
	MaxDistance float64    `json:"max_distance"`
	MaxCount    int        `json:"max_count"`
}
