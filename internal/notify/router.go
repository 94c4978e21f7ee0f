package notify

import (
	"context"

	"messenger/internal/protocol"

	"go.uber.org/zap"
)

// LocalDeliverer 本实例上的在线连接
type LocalDeliverer interface {
	// Deliver 投递给接收者的所有本地连接，返回成功投递的连接数
	Deliver(event protocol.Event) int
}

// PresenceRouter 接收者在本实例在线时直接推送到连接，否则交给代理
type PresenceRouter struct {
	local    LocalDeliverer
	fallback Dispatcher
	log      *zap.SugaredLogger
}

// NewPresenceRouter 创建路由分发器
func NewPresenceRouter(local LocalDeliverer, fallback Dispatcher, log *zap.SugaredLogger) *PresenceRouter {
	return &PresenceRouter{local: local, fallback: fallback, log: log}
}

// Dispatch 路由事件
func (r *PresenceRouter) Dispatch(ctx context.Context, event protocol.Event) error {
	if n := r.local.Deliver(event); n > 0 {
		r.log.Debugw("事件已推送到在线连接", "recipient", event.RecipientID, "connections", n)
		return nil
	}
	return r.fallback.Dispatch(ctx, event)
}
