// Package inbox 会话摘要索引：每个用户各自持有的会话列表视图。
//
// 所有写操作都按 (用户, 会话) 单条记录进行，不存在整表读出再写回的路径，
// 同一用户不同会话的并发更新互不覆盖。
package inbox

import (
	"context"
	"fmt"

	"messenger/internal/apperr"
	"messenger/internal/identity"
	"messenger/internal/model"
)

// Index 会话摘要索引
type Index interface {
	// UpsertSummary 插入或替换 (user, summary.ConversationID) 对应的摘要
	UpsertSummary(ctx context.Context, user identity.StorageKey, summary model.ConversationSummary) error
	// ListSummaries 返回用户的全部摘要，按最新消息时间倒序
	ListSummaries(ctx context.Context, user identity.StorageKey) ([]model.ConversationSummary, error)
	// InsertSummary 仅在摘要不存在时写入，已存在时不做修改并返回 false
	InsertSummary(ctx context.Context, user identity.StorageKey, summary model.ConversationSummary) (bool, error)
	// ApplyLatestMessage 只更新最新消息字段，且只接受序号更大的消息。
	// 摘要不存在时不做任何修改并返回 false
	ApplyLatestMessage(ctx context.Context, user identity.StorageKey, conversationID string, latest model.LatestMessage) (bool, error)
	// MarkRead 将最新消息标记为已读，摘要不存在时返回 false
	MarkRead(ctx context.Context, user identity.StorageKey, conversationID string) (bool, error)
}

func validateSummary(user identity.StorageKey, s model.ConversationSummary) error {
	if user == "" {
		return fmt.Errorf("摘要缺少所属用户: %w", apperr.ErrInvalidArgument)
	}
	if s.ConversationID == "" {
		return fmt.Errorf("摘要缺少会话ID: %w", apperr.ErrInvalidArgument)
	}
	return nil
}
