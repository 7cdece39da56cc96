package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/EthanQC/IM/services/presence_service/internal/adapters/in/ws"
)

const (
	TopicMessageNew     = "im.message.new"
	TopicMessageRead    = "im.message.read"
	TopicMessageRevoked = "im.message.revoked"
)

// Deliverer 消息投递入口，远端用户会被转发到持有节点
type Deliverer interface {
	DeliverToUsers(ctx context.Context, userIDs []uint64, payload []byte) int
}

// KafkaMessageConsumer 消费消息服务产生的事件并推送到在线设备
type KafkaMessageConsumer struct {
	consumerGroup sarama.ConsumerGroup
	topics        []string
	handler       *consumerGroupHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumerConfig 消费组配置
func NewConsumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	// 推送只对在线用户有意义，历史消息由客户端拉取
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	return config
}

// NewKafkaMessageConsumer 创建消费者
func NewKafkaMessageConsumer(brokers []string, groupID string, deliverer Deliverer) (*KafkaMessageConsumer, error) {
	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, NewConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}
	return newKafkaMessageConsumer(consumerGroup, deliverer), nil
}

func newKafkaMessageConsumer(group sarama.ConsumerGroup, deliverer Deliverer) *KafkaMessageConsumer {
	return &KafkaMessageConsumer{
		consumerGroup: group,
		topics:        []string{TopicMessageNew, TopicMessageRead, TopicMessageRevoked},
		handler:       &consumerGroupHandler{deliverer: deliverer},
	}
}

// Start 后台消费，rebalance 后自动重新加入
func (c *KafkaMessageConsumer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumerGroup.Consume(ctx, c.topics, c.handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				zap.L().Error("kafka consume failed", zap.Error(err))
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		for {
			select {
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				zap.L().Warn("kafka consumer error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()

	zap.L().Info("kafka consumer started", zap.Strings("topics", c.topics))
}

// Stop 停止消费
func (c *KafkaMessageConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.consumerGroup.Close()
	c.wg.Wait()
	return err
}

type consumerGroupHandler struct {
	deliverer Deliverer
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handleMessage(session.Context(), message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

type newMessageEvent struct {
	MessageID      uint64    `json:"message_id"`
	ConversationID uint64    `json:"conversation_id"`
	SenderID       uint64    `json:"sender_id"`
	ReceiverIDs    []uint64  `json:"receiver_ids"`
	Seq            uint64    `json:"seq"`
	ContentType    int8      `json:"content_type"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type readEvent struct {
	ConversationID uint64   `json:"conversation_id"`
	UserID         uint64   `json:"user_id"`
	ReadSeq        uint64   `json:"read_seq"`
	ReceiverIDs    []uint64 `json:"receiver_ids,omitempty"`
}

type revokedEvent struct {
	MessageID      uint64   `json:"message_id"`
	ConversationID uint64   `json:"conversation_id"`
	SenderID       uint64   `json:"sender_id"`
	ReceiverIDs    []uint64 `json:"receiver_ids"`
}

// handleMessage 解码失败的消息直接跳过，不阻塞分区
func (h *consumerGroupHandler) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	var (
		receivers []uint64
		frameID   string
		frame     any
		err       error
	)

	switch message.Topic {
	case TopicMessageNew:
		var ev newMessageEvent
		if err = json.Unmarshal(message.Value, &ev); err == nil {
			receivers = ev.ReceiverIDs
			frameID = strconv.FormatUint(ev.MessageID, 10)
			frame = map[string]any{"event": "new_message", "message": ev}
		}
	case TopicMessageRead:
		var ev readEvent
		if err = json.Unmarshal(message.Value, &ev); err == nil {
			// 没有带接收者时只同步到本人的其他设备
			receivers = ev.ReceiverIDs
			if len(receivers) == 0 {
				receivers = []uint64{ev.UserID}
			}
			frame = map[string]any{
				"event":           "message_read",
				"conversation_id": ev.ConversationID,
				"user_id":         ev.UserID,
				"read_seq":        ev.ReadSeq,
			}
		}
	case TopicMessageRevoked:
		var ev revokedEvent
		if err = json.Unmarshal(message.Value, &ev); err == nil {
			receivers = ev.ReceiverIDs
			frameID = strconv.FormatUint(ev.MessageID, 10)
			frame = map[string]any{
				"event":           "message_revoked",
				"conversation_id": ev.ConversationID,
				"message_id":      ev.MessageID,
				"sender_id":       ev.SenderID,
			}
		}
	default:
		zap.L().Warn("unknown topic", zap.String("topic", message.Topic))
		return
	}

	if err != nil {
		zap.L().Warn("failed to unmarshal message event",
			zap.String("topic", message.Topic), zap.Int64("offset", message.Offset), zap.Error(err))
		return
	}
	if len(receivers) == 0 {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	payload, err := ws.EncodePush(frameID, data)
	if err != nil {
		return
	}

	delivered := h.deliverer.DeliverToUsers(ctx, receivers, payload)
	zap.L().Debug("message event delivered",
		zap.String("topic", message.Topic),
		zap.Int("receivers", len(receivers)),
		zap.Int("delivered", delivered))
}
