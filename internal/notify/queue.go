package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"messenger/internal/protocol"

	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("notify queue full")
	ErrQueueClosed = errors.New("notify queue closed")
)

// 单个事件投递的超时
const deliverTimeout = 5 * time.Second

// Queue 异步分发队列。Dispatch 从不阻塞发送路径，队列满时丢弃事件
type Queue struct {
	sink   Dispatcher
	events chan protocol.Event
	log    *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewQueue 创建队列并启动后台投递
func NewQueue(sink Dispatcher, size int, log *zap.SugaredLogger) *Queue {
	q := &Queue{
		sink:   sink,
		events: make(chan protocol.Event, size),
		log:    log,
		done:   make(chan struct{}),
	}
	go q.processNotifications()
	return q
}

// Dispatch 入队
func (q *Queue) Dispatch(_ context.Context, event protocol.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- event:
		return nil
	default:
		q.log.Warnw("通知队列已满，丢弃事件", "conversation", event.ConversationID, "message", event.MessageID)
		return ErrQueueFull
	}
}

// processNotifications 按入队顺序逐个投递
func (q *Queue) processNotifications() {
	defer close(q.done)
	for event := range q.events {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		if err := q.sink.Dispatch(ctx, event); err != nil {
			q.log.Warnw("投递通知失败", "recipient", event.RecipientID, "message", event.MessageID, "error", err)
		}
		cancel()
	}
}

// Close 停止接收新事件，并等待已入队的事件投递完毕
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()
	<-q.done
}
