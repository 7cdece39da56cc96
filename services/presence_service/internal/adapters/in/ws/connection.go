package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

// 关闭帧的 payload 上限是 125 字节，去掉 2 字节关闭码
const maxCloseTextLen = 123

// Connection 一个 WebSocket 客户端通道
// Close 可能在用户锁内被调用，所以只打标记、通知写协程，真正的关闭帧由写协程发出
type Connection struct {
	conn   *websocket.Conn
	opts   Options
	userID uint64
	device entity.DeviceType

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Pointer[entity.CloseReason]
}

var _ out.Connection = (*Connection)(nil)

func newConnection(conn *websocket.Conn, opts Options, userID uint64, device entity.DeviceType) *Connection {
	return &Connection{
		conn:   conn,
		opts:   opts,
		userID: userID,
		device: device,
		send:   make(chan []byte, opts.SendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Connection) UserID() uint64                { return c.userID }
func (c *Connection) DeviceType() entity.DeviceType { return c.device }

func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Send 非阻塞写入发送队列
func (c *Connection) Send(message []byte) error {
	if c.closed.Load() {
		return entity.ErrSessionClosed
	}
	select {
	case c.send <- message:
		return nil
	case <-c.done:
		return entity.ErrSessionClosed
	default:
		return entity.ErrSendBufferFull
	}
}

// Close 记录关闭原因，重复调用无副作用
func (c *Connection) Close(reason entity.CloseReason) error {
	c.closeOnce.Do(func() {
		c.reason.Store(&reason)
		c.closed.Store(true)
		close(c.done)
	})
	return nil
}

// CloseReason 关闭原因，未关闭时 ok 为 false
func (c *Connection) CloseReason() (entity.CloseReason, bool) {
	r := c.reason.Load()
	if r == nil {
		return entity.CloseReason{}, false
	}
	return *r, true
}

// closeMessage 关闭码 4000+status，文本为 JSON 形式的关闭原因
func closeMessage(reason entity.CloseReason) []byte {
	text, err := json.Marshal(reason)
	if err != nil || len(text) > maxCloseTextLen {
		text = []byte(reason.Status.String())
	}
	return websocket.FormatCloseMessage(reason.Status.WSCloseCode(), string(text))
}

// writePump 唯一的写协程
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				zap.L().Debug("websocket write failed", zlog.UserID(c.userID), zap.Error(err))
				c.Close(entity.NewCloseReason(entity.CloseDisconnectedByClient))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(entity.NewCloseReason(entity.CloseDisconnectedByClient))
				return
			}

		case <-c.done:
			c.flush()
			reason, _ := c.CloseReason()
			_ = c.conn.WriteControl(websocket.CloseMessage, closeMessage(reason), time.Now().Add(c.opts.WriteWait))
			return
		}
	}
}

// flush 关闭前把已排队的消息写完
func (c *Connection) flush() {
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
