// Package notify 把"消息已追加"事件交给接收者的投递通道。
//
// 推送本身由外部服务负责，这里只负责把事件送到在线连接或消息代理。
package notify

import (
	"context"

	"messenger/internal/protocol"
)

// Dispatcher 事件分发器
type Dispatcher interface {
	Dispatch(ctx context.Context, event protocol.Event) error
}

// DispatcherFunc 函数适配为 Dispatcher
type DispatcherFunc func(ctx context.Context, event protocol.Event) error

// Dispatch 调用 f
func (f DispatcherFunc) Dispatch(ctx context.Context, event protocol.Event) error {
	return f(ctx, event)
}

// Discard 丢弃所有事件
var Discard Dispatcher = DispatcherFunc(func(context.Context, protocol.Event) error { return nil })
