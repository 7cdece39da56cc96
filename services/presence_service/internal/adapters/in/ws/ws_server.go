package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/EthanQC/IM/pkg/zlog"
	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/in"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultPingPeriod     = 30 * time.Second // 必须小于 pongWait
	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256
)

// Options WebSocket 参数
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = defaultPingPeriod
	}
	if o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait / 2
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	return o
}

// MessageType 帧类型
type MessageType string

const (
	// 客户端
	MsgTypePing     MessageType = "ping"
	MsgTypeStatus   MessageType = "status"
	MsgTypeLocation MessageType = "location"
	MsgTypeNearby   MessageType = "nearby"

	// 服务端
	MsgTypePong       MessageType = "pong"
	MsgTypeConnected  MessageType = "connected"
	MsgTypeMessage    MessageType = "message"
	MsgTypeAck        MessageType = "ack"
	MsgTypeNearbyResp MessageType = "nearby_resp"
	MsgTypeError      MessageType = "error"
)

// Message 客户端与服务端之间的 JSON 帧
type Message struct {
	Type MessageType     `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
	Ts   int64           `json:"ts,omitempty"`
}

type statusData struct {
	Status string `json:"status"`
}

type nearbyData struct {
	entity.Coordinate
	MaxDistance float64 `json:"max_distance"`
	MaxCount    int     `json:"max_count"`
}

// Server 客户端 WebSocket 入口
type Server struct {
	presence in.PresenceUseCase
	verifier *TokenVerifier
	opts     Options
	upgrader websocket.Upgrader
}

// NewServer verifier 为 nil 时从 query 的 user_id 取身份，仅用于内网和压测
func NewServer(presence in.PresenceUseCase, verifier *TokenVerifier, opts Options) *Server {
	return &Server{
		presence: presence,
		verifier: verifier,
		opts:     opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type handshake struct {
	userID   uint64
	device   entity.DeviceType
	status   entity.UserStatus
	location *entity.Location
}

// parseHandshake 解析 ?token=|user_id=&device_type=&status=&lng=&lat=
func (s *Server) parseHandshake(r *http.Request) (handshake, error) {
	q := r.URL.Query()
	var h handshake

	if s.verifier != nil {
		token := q.Get("token")
		if token == "" {
			token = bearerToken(r.Header.Get("Authorization"))
		}
		id, err := s.verifier.Verify(token)
		if err != nil {
			return h, err
		}
		h.userID = id
	} else {
		id, err := strconv.ParseUint(q.Get("user_id"), 10, 64)
		if err != nil || id == 0 {
			return h, ErrUnauthorized
		}
		h.userID = id
	}

	h.device = entity.DeviceType(q.Get("device_type"))
	if h.device == "" {
		h.device = entity.DeviceTypeWeb
	}
	if !h.device.Valid() {
		return h, entity.ErrIllegalArgument
	}
	status, err := entity.ParseUserStatus(q.Get("status"))
	if err != nil {
		return h, err
	}
	h.status = status

	if q.Has("lng") && q.Has("lat") {
		lng, err1 := strconv.ParseFloat(q.Get("lng"), 64)
		lat, err2 := strconv.ParseFloat(q.Get("lat"), 64)
		if err1 != nil || err2 != nil {
			return h, entity.ErrIllegalArgument
		}
		h.location = &entity.Location{
			Coordinate: entity.Coordinate{Longitude: lng, Latitude: lat},
			Timestamp:  time.Now(),
		}
	}
	return h, nil
}

// HandleConnection 握手、升级并登记会话；不负责该用户时以 not_responsible 关闭并带上新地址
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h, err := s.parseHandshake(r)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, ErrUnauthorized) {
			code = http.StatusUnauthorized
		}
		http.Error(w, err.Error(), code)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// 升级后请求 ctx 会随 handler 返回而取消
	ctx := context.WithoutCancel(r.Context())
	conn := newConnection(wsConn, s.opts, h.userID, h.device)
	go conn.writePump()

	res := s.presence.Connect(ctx, in.ConnectRequest{
		UserID:     h.userID,
		DeviceType: h.device,
		Status:     h.status,
		Location:   h.location,
		Conn:       conn,
		IP:         r.RemoteAddr,
	})
	switch res.Code {
	case entity.StatusOK:
	case entity.StatusNotResponsible:
		conn.Close(entity.CloseReason{Status: entity.CloseNotResponsible, RedirectAddr: res.RedirectAddr})
		return
	case entity.StatusServerClosing:
		conn.Close(entity.NewCloseReason(entity.CloseServerClosed))
		return
	default:
		conn.Close(entity.CloseReason{Status: entity.CloseServerError, Reason: res.Code.String()})
		return
	}

	data, _ := json.Marshal(map[string]any{
		"user_id":     h.userID,
		"device_type": h.device,
		"server_time": time.Now().UnixMilli(),
	})
	conn.sendJSON(Message{Type: MsgTypeConnected, Data: data, Ts: time.Now().UnixMilli()})

	go s.readPump(ctx, conn)
}

// readPump 读协程退出即视为客户端断开
func (s *Server) readPump(ctx context.Context, c *Connection) {
	defer func() {
		s.presence.Disconnect(ctx, c.userID, c.device, c)
		c.Close(entity.NewCloseReason(entity.CloseDisconnectedByClient))
	}()

	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		s.presence.UpdateHeartbeat(c.userID, c.device)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !c.closed.Load() {
				zap.L().Debug("websocket read failed", zlog.UserID(c.userID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		s.handleMessage(ctx, c, data)
	}
}

func (s *Server) handleMessage(ctx context.Context, c *Connection, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid message format")
		return
	}

	switch msg.Type {
	case MsgTypePing:
		s.presence.UpdateHeartbeat(c.userID, c.device)
		c.sendJSON(Message{Type: MsgTypePong, ID: msg.ID, Ts: time.Now().UnixMilli()})

	case MsgTypeStatus:
		var d statusData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			c.sendError(msg.ID, "invalid status data")
			return
		}
		status, err := entity.ParseUserStatus(d.Status)
		if err != nil {
			c.sendError(msg.ID, err.Error())
			return
		}
		if _, err := s.presence.UpdateStatus(ctx, c.userID, status); err != nil {
			c.sendError(msg.ID, err.Error())
			return
		}
		c.sendAck(msg.ID)

	case MsgTypeLocation:
		var d entity.Coordinate
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			c.sendError(msg.ID, "invalid location data")
			return
		}
		if !s.presence.UpdateLocation(ctx, c.userID, c.device, d) {
			c.sendError(msg.ID, "session not found")
			return
		}
		c.sendAck(msg.ID)

	case MsgTypeNearby:
		var d nearbyData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			c.sendError(msg.ID, "invalid nearby data")
			return
		}
		users, err := s.presence.QueryNearby(ctx, d.Coordinate, d.MaxDistance, d.MaxCount)
		if err != nil {
			c.sendError(msg.ID, err.Error())
			return
		}
		resp, _ := json.Marshal(map[string]any{"users": users})
		c.sendJSON(Message{Type: MsgTypeNearbyResp, ID: msg.ID, Data: resp, Ts: time.Now().UnixMilli()})

	default:
		c.sendError(msg.ID, "unknown message type")
	}
}

func (c *Connection) sendJSON(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := c.Send(data); err != nil {
		zap.L().Debug("drop frame", zlog.UserID(c.userID), zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

func (c *Connection) sendAck(msgID string) {
	c.sendJSON(Message{Type: MsgTypeAck, ID: msgID, Data: json.RawMessage(`{"status":"ok"}`), Ts: time.Now().UnixMilli()})
}

func (c *Connection) sendError(msgID, errMsg string) {
	data, _ := json.Marshal(map[string]string{"error": errMsg})
	c.sendJSON(Message{Type: MsgTypeError, ID: msgID, Data: data, Ts: time.Now().UnixMilli()})
}

// EncodePush 服务端主动推送的帧，供消息投递使用
func EncodePush(id string, data json.RawMessage) ([]byte, error) {
	return json.Marshal(Message{Type: MsgTypeMessage, ID: id, Data: data, Ts: time.Now().UnixMilli()})
}
