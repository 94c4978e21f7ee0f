package model

import (
	"fmt"
	"strings"
	"time"

	"messenger/internal/apperr"
	"messenger/internal/identity"
)

// Message 账本中的一条消息，追加后不可修改
type Message struct {
	ID             string
	ConversationID string
	SenderID       identity.StorageKey
	SenderName     string
	Kind           Kind
	SentAt         time.Time
	// Position 会话内的序号，从 0 开始，由账本分配
	Position int64
}

// Validate 检查消息字段是否完整
func (m Message) Validate() error {
	if m.SenderID == "" {
		return fmt.Errorf("消息缺少发送者: %w", apperr.ErrInvalidArgument)
	}
	if m.Kind == nil {
		return fmt.Errorf("消息缺少类型: %w", apperr.ErrInvalidArgument)
	}
	if strings.TrimSpace(m.Kind.Content()) == "" {
		if IsTextual(m.Kind) {
			return fmt.Errorf("消息内容不能为空: %w", apperr.ErrInvalidArgument)
		}
		return fmt.Errorf("%s 消息缺少资源地址: %w", m.Kind.Tag(), apperr.ErrInvalidArgument)
	}
	return nil
}

// Complete 读取方只应看到所有必填字段都已填充的消息
func (m Message) Complete() bool {
	return m.ID != "" && m.ConversationID != "" && m.SenderID != "" && m.Kind != nil && !m.SentAt.IsZero()
}
