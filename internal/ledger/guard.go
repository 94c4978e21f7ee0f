package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messenger/internal/apperr"
	"messenger/internal/model"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GuardOptions 熔断与超时参数
type GuardOptions struct {
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Guard 为账本调用加上超时和熔断，基础设施错误统一归类为 ErrUnavailable
type Guard struct {
	next    Store
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewGuard 包装账本
func NewGuard(next Store, opts GuardOptions, log *zap.SugaredLogger) *Guard {
	st := gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnw("熔断器状态变化", "name", name, "from", from.String(), "to", to.String())
		},
		// 业务错误说明后端是健康的
		IsSuccessful: func(err error) bool {
			return err == nil || isBusinessError(err)
		},
	}
	return &Guard{
		next:    next,
		cb:      gobreaker.NewCircuitBreaker(st),
		timeout: opts.Timeout,
	}
}

func isBusinessError(err error) bool {
	return errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrAlreadyExists) ||
		errors.Is(err, apperr.ErrInvalidArgument)
}

// classify 保留业务错误，其余归为不可用
func classify(err error) error {
	if err == nil || isBusinessError(err) || errors.Is(err, apperr.ErrUnavailable) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("账本熔断中: %w", apperr.ErrUnavailable)
	}
	return fmt.Errorf("%w: %v", apperr.ErrUnavailable, err)
}

func (g *Guard) call(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	return res, classify(err)
}

// CreateConversation 创建会话
func (g *Guard) CreateConversation(ctx context.Context, conv model.Conversation, first model.Message) error {
	_, err := g.call(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, g.next.CreateConversation(ctx, conv, first)
	})
	return err
}

// Append 追加消息
func (g *Guard) Append(ctx context.Context, conversationID string, msg model.Message) (int64, error) {
	res, err := g.call(ctx, func(ctx context.Context) (interface{}, error) {
		return g.next.Append(ctx, conversationID, msg)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

// ListMessages 列出消息。序列按需读取，使用调用方的 ctx 而不是单次调用超时
func (g *Guard) ListMessages(ctx context.Context, conversationID string) (Sequence, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.ListMessages(ctx, conversationID)
	})
	if err = classify(err); err != nil {
		return nil, err
	}
	seq := res.(Sequence)
	return func(yield func(model.Message, error) bool) {
		for msg, err := range seq {
			if !yield(msg, classify(err)) {
				return
			}
		}
	}, nil
}

// GetConversation 获取会话
func (g *Guard) GetConversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	res, err := g.call(ctx, func(ctx context.Context) (interface{}, error) {
		return g.next.GetConversation(ctx, conversationID)
	})
	if err != nil {
		return model.Conversation{}, err
	}
	return res.(model.Conversation), nil
}

// Latest 获取最后一条消息
func (g *Guard) Latest(ctx context.Context, conversationID string) (model.Message, error) {
	res, err := g.call(ctx, func(ctx context.Context) (interface{}, error) {
		return g.next.Latest(ctx, conversationID)
	})
	if err != nil {
		return model.Message{}, err
	}
	return res.(model.Message), nil
}
