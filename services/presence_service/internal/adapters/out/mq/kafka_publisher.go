package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/EthanQC/IM/services/presence_service/internal/domain/entity"
	"github.com/EthanQC/IM/services/presence_service/internal/ports/out"
)

const (
	// TopicPresenceChanged 上下线事件
	TopicPresenceChanged = "im.presence.changed"
)

// KafkaPresencePublisher 把上下线钩子转成 Kafka 事件
type KafkaPresencePublisher struct {
	producer sarama.SyncProducer
	topic    string
}

var _ out.SessionHook = (*KafkaPresencePublisher)(nil)

// NewSyncProducer 创建同步生产者
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Timeout = 5 * time.Second
	// 同一用户的事件发到同一分区，保证上下线顺序
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}

// NewKafkaPresencePublisher 创建上下线事件发布器
func NewKafkaPresencePublisher(producer sarama.SyncProducer, topic string) *KafkaPresencePublisher {
	if topic == "" {
		topic = TopicPresenceChanged
	}
	return &KafkaPresencePublisher{producer: producer, topic: topic}
}

func (p *KafkaPresencePublisher) GoOnline(ctx context.Context, user entity.OnlineUserSnapshot, device entity.DeviceType) error {
	return p.publish(ctx, &entity.PresenceEvent{
		Type:       entity.PresenceEventOnline,
		User:       user,
		DeviceType: device,
		Timestamp:  time.Now(),
	})
}

func (p *KafkaPresencePublisher) GoOffline(ctx context.Context, user entity.OnlineUserSnapshot, device entity.DeviceType, reason entity.CloseReason) error {
	return p.publish(ctx, &entity.PresenceEvent{
		Type:       entity.PresenceEventOffline,
		User:       user,
		DeviceType: device,
		Close:      &reason,
		Timestamp:  time.Now(),
	})
}

func (p *KafkaPresencePublisher) publish(_ context.Context, event *entity.PresenceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal presence event failed: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(event.User.UserID, 10)), // 按用户分区
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
			{Key: []byte("timestamp"), Value: []byte(event.Timestamp.UTC().Format(time.RFC3339))},
		},
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish presence event failed: %w", err)
	}
	return nil
}

func (p *KafkaPresencePublisher) Close() error {
	return p.producer.Close()
}
