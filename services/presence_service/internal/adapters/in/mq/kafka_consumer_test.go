package mq

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/EthanQC/IM/services/presence_service/internal/adapters/in/ws"
)

type delivery struct {
	users []uint64
	frame ws.Message
}

type fakeDeliverer struct {
	mu    sync.Mutex
	calls []delivery
}

func (d *fakeDeliverer) DeliverToUsers(_ context.Context, userIDs []uint64, payload []byte) int {
	var msg ws.Message
	_ = json.Unmarshal(payload, &msg)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, delivery{users: userIDs, frame: msg})
	return len(userIDs)
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func message(topic string, offset int64, v any) *sarama.ConsumerMessage {
	data, _ := json.Marshal(v)
	return &sarama.ConsumerMessage{Topic: topic, Offset: offset, Value: data}
}

func TestConsumeClaim_RoutesEventsToReceivers(t *testing.T) {
	req := require.New(t)

	// Given
	d := &fakeDeliverer{}
	h := &consumerGroupHandler{deliverer: d}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 8)}
	session := &fakeSession{ctx: context.Background()}

	claim.messages <- message(TopicMessageNew, 1, map[string]any{
		"message_id": 100, "conversation_id": 9, "sender_id": 1, "receiver_ids": []uint64{2, 3}, "content": "hi",
	})
	claim.messages <- message(TopicMessageRead, 2, map[string]any{
		"conversation_id": 9, "user_id": 2, "read_seq": 5,
	})
	claim.messages <- message(TopicMessageRevoked, 3, map[string]any{
		"message_id": 100, "conversation_id": 9, "sender_id": 1, "receiver_ids": []uint64{2, 3},
	})
	claim.messages <- &sarama.ConsumerMessage{Topic: TopicMessageNew, Offset: 4, Value: []byte("not json")}
	claim.messages <- message(TopicMessageNew, 5, map[string]any{"message_id": 101})
	close(claim.messages)

	// When
	req.NoError(h.ConsumeClaim(session, claim))

	// Then 坏消息和无接收者的消息同样提交位点
	req.Equal([]int64{1, 2, 3, 4, 5}, session.marked)
	req.Len(d.calls, 3)

	req.Equal([]uint64{2, 3}, d.calls[0].users)
	req.Equal(ws.MsgTypeMessage, d.calls[0].frame.Type)
	req.Equal("100", d.calls[0].frame.ID)
	var newFrame struct {
		Event   string          `json:"event"`
		Message newMessageEvent `json:"message"`
	}
	req.NoError(json.Unmarshal(d.calls[0].frame.Data, &newFrame))
	req.Equal("new_message", newFrame.Event)
	req.Equal("hi", newFrame.Message.Content)

	// 已读回执默认同步到本人其他设备
	req.Equal([]uint64{2}, d.calls[1].users)
	req.Contains(string(d.calls[1].frame.Data), `"message_read"`)

	req.Equal([]uint64{2, 3}, d.calls[2].users)
	req.Contains(string(d.calls[2].frame.Data), `"message_revoked"`)
}

func TestConsumeClaim_StopsOnSessionDone(t *testing.T) {
	req := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &consumerGroupHandler{deliverer: &fakeDeliverer{}}

	err := h.ConsumeClaim(&fakeSession{ctx: ctx}, &fakeClaim{messages: make(chan *sarama.ConsumerMessage)})
	req.NoError(err)
}

func TestHandleMessage_UnknownTopicIgnored(t *testing.T) {
	req := require.New(t)

	d := &fakeDeliverer{}
	h := &consumerGroupHandler{deliverer: d}
	h.handleMessage(context.Background(), message("im.other", 1, map[string]any{"receiver_ids": []uint64{1}}))
	req.Empty(d.calls)
}
