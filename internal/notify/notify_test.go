package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"messenger/internal/logger"
	"messenger/internal/protocol"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []protocol.Event
	block  chan struct{}
}

func (c *collector) Dispatch(_ context.Context, e protocol.Event) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		out = append(out, e.MessageID)
	}
	return out
}

func event(id string) protocol.Event {
	return protocol.Event{ConversationID: "conversation_m1", MessageID: id, RecipientID: "bob-y-com", SenderID: "alice-x-com"}
}

func TestQueueDeliversInOrderAndDrainsOnClose(t *testing.T) {
	sink := &collector{}
	q := NewQueue(sink, 16, logger.Nop())

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Dispatch(context.Background(), event(fmt.Sprintf("m%d", i))))
	}
	q.Close()

	want := make([]string, 10)
	for i := range want {
		want[i] = fmt.Sprintf("m%d", i)
	}
	assert.Equal(t, want, sink.ids())

	assert.ErrorIs(t, q.Dispatch(context.Background(), event("late")), ErrQueueClosed)
	// 重复关闭是安全的
	q.Close()
}

func TestQueueDropsWhenFull(t *testing.T) {
	sink := &collector{block: make(chan struct{})}
	q := NewQueue(sink, 1, logger.Nop())

	// 第一个事件被 worker 取走并阻塞，第二个占满缓冲
	require.NoError(t, q.Dispatch(context.Background(), event("m0")))
	require.Eventually(t, func() bool { return len(q.events) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Dispatch(context.Background(), event("m1")))

	assert.ErrorIs(t, q.Dispatch(context.Background(), event("m2")), ErrQueueFull)

	close(sink.block)
	q.Close()
	assert.Equal(t, []string{"m0", "m1"}, sink.ids())
}

type fakeHub struct {
	online map[string]int
	got    []protocol.Event
}

func (h *fakeHub) Deliver(e protocol.Event) int {
	n := h.online[e.RecipientID]
	if n > 0 {
		h.got = append(h.got, e)
	}
	return n
}

func TestPresenceRouter(t *testing.T) {
	hub := &fakeHub{online: map[string]int{"bob-y-com": 2}}
	broker := &collector{}
	r := NewPresenceRouter(hub, broker, logger.Nop())

	require.NoError(t, r.Dispatch(context.Background(), event("m1")))
	offline := event("m2")
	offline.RecipientID = "carol-z-com"
	require.NoError(t, r.Dispatch(context.Background(), offline))

	require.Len(t, hub.got, 1)
	assert.Equal(t, "m1", hub.got[0].MessageID)
	assert.Equal(t, []string{"m2"}, broker.ids())
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	sub := client.Subscribe(ctx, "messenger:events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "messenger:events")
	require.NoError(t, pub.Dispatch(ctx, event("m1")))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got protocol.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, event("m1"), got)
}

func TestKafkaMessageKeyedByRecipient(t *testing.T) {
	msg, err := kafkaMessage(event("m1"))
	require.NoError(t, err)
	assert.Equal(t, "bob-y-com", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "application/json", string(msg.Headers[0].Value))

	var got protocol.Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "m1", got.MessageID)
	assert.Equal(t, "conversation_m1", got.ConversationID)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Dispatch(context.Background(), event("m1")))
}
