// Package ledger 消息账本：按会话追加、有序、只增不改的消息存储。
package ledger

import (
	"context"
	"fmt"
	"iter"

	"messenger/internal/apperr"
	"messenger/internal/model"
)

var (
	ErrConversationNotFound = fmt.Errorf("conversation %w", apperr.ErrNotFound)
	ErrAlreadyExists        = fmt.Errorf("conversation %w", apperr.ErrAlreadyExists)
	ErrDuplicateMessage     = fmt.Errorf("message id %w", apperr.ErrAlreadyExists)
)

// Sequence 惰性、可重复遍历的消息序列，按追加顺序产出。
// 序列在 ListMessages 调用时确定快照边界，之后的追加不可见。
type Sequence = iter.Seq2[model.Message, error]

// Store 消息账本
//
// 同一会话内的追加串行执行，序号单调且无空洞；不同会话之间互不阻塞。
type Store interface {
	// CreateConversation 原子地创建会话并写入首条消息（序号 0）
	CreateConversation(ctx context.Context, conv model.Conversation, first model.Message) error
	// Append 追加消息并返回其序号
	Append(ctx context.Context, conversationID string, msg model.Message) (int64, error)
	// ListMessages 返回会话消息序列
	ListMessages(ctx context.Context, conversationID string) (Sequence, error)
	// GetConversation 获取会话元信息
	GetConversation(ctx context.Context, conversationID string) (model.Conversation, error)
	// Latest 获取会话最后一条消息
	Latest(ctx context.Context, conversationID string) (model.Message, error)
}

// prepare 校验并补齐要写入的消息
func prepare(conversationID string, msg model.Message) (model.Message, error) {
	msg.ConversationID = conversationID
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	if !msg.Complete() {
		return msg, fmt.Errorf("消息字段不完整: %w", apperr.ErrInvalidArgument)
	}
	return msg, nil
}

// Collect 读取整个序列，遇到错误立即返回
func Collect(seq Sequence) ([]model.Message, error) {
	var out []model.Message
	for msg, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}
