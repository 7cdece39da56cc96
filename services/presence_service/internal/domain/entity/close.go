package entity

// CloseStatus 会话关闭原因码，客户端据此决定是否以及向哪里重连
type CloseStatus int

const (
	CloseDisconnectedByClient      CloseStatus = 0
	CloseDisconnectedByOtherDevice CloseStatus = 1 // 同设备类型重复登录，旧会话被顶替
	CloseHeartbeatTimeout          CloseStatus = 2
	CloseServerClosed              CloseStatus = 3
	CloseRedirect                  CloseStatus = 4
	CloseServerError               CloseStatus = 5
	CloseDisconnectedByAdmin       CloseStatus = 6
	CloseNotResponsible            CloseStatus = 7
)

// WebSocket 私有关闭码区间从 4000 开始
const closeCodeBase = 4000

// WSCloseCode 对应的 WebSocket 关闭码
func (s CloseStatus) WSCloseCode() int {
	return closeCodeBase + int(s)
}

func (s CloseStatus) String() string {
	switch s {
	case CloseDisconnectedByClient:
		return "disconnected_by_client"
	case CloseDisconnectedByOtherDevice:
		return "disconnected_by_other_device"
	case CloseHeartbeatTimeout:
		return "heartbeat_timeout"
	case CloseServerClosed:
		return "server_closed"
	case CloseRedirect:
		return "redirect"
	case CloseServerError:
		return "server_error"
	case CloseDisconnectedByAdmin:
		return "disconnected_by_admin"
	case CloseNotResponsible:
		return "not_responsible"
	}
	return "unknown"
}

// CloseReason 会话关闭信息
type CloseReason struct {
	Status       CloseStatus `json:"status"`
	Reason       string      `json:"reason,omitempty"`
	RedirectAddr string      `json:"redirect,omitempty"` // 仅 redirect 时有值
}

// NewCloseReason 创建不带附加信息的关闭原因
func NewCloseReason(status CloseStatus) CloseReason {
	return CloseReason{Status: status}
}

// RedirectTo 重定向到新的负责节点
func RedirectTo(addr string) CloseReason {
	return CloseReason{Status: CloseRedirect, RedirectAddr: addr}
}
