package out

import "github.com/EthanQC/IM/services/presence_service/internal/domain/entity"

// Connection 客户端会话通道
type Connection interface {
	// Send 推送一帧数据，不阻塞
	Send(message []byte) error
	// Close 携带关闭原因关闭通道，重复调用无副作用
	Close(reason entity.CloseReason) error
	// RemoteAddr 客户端地址
	RemoteAddr() string
}
