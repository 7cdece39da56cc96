package entity

import "errors"

var (
	// 路由相关
	ErrNotLocallyResponsible = errors.New("user is not owned by this node")
	ErrNoOwnerFound          = errors.New("no cluster member owns the slot")
	ErrServerClosing         = errors.New("node is shutting down")

	// 参数相关
	ErrIllegalArgument = errors.New("illegal argument")

	// 集群调用相关
	ErrRPCTimeout = errors.New("cluster rpc timed out")
	ErrRPCFailure = errors.New("cluster rpc failed")

	// 附近的人查询，部分节点未响应
	ErrSpatialQueryPartialFailure = errors.New("nearby query partially failed")

	// 会话相关
	ErrSessionClosed  = errors.New("session closed")
	ErrSendBufferFull = errors.New("send buffer full")
)
