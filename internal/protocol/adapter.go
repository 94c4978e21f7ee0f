package protocol

import (
	"fmt"
	"time"

	"messenger/internal/apperr"
	"messenger/internal/identity"
	"messenger/internal/model"
)

// DateLayout 线上记录中的时间格式
const DateLayout = time.RFC3339Nano

// FormatDate 格式化时间
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate 解析时间
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("时间格式错误 %q: %w", s, apperr.ErrInvalidArgument)
	}
	return t, nil
}

// FromMessage 领域消息 -> 线上记录
func FromMessage(m model.Message) MessageRecord {
	return MessageRecord{
		ID:          m.ID,
		Type:        m.Kind.Tag(),
		Content:     m.Kind.Content(),
		Date:        FormatDate(m.SentAt),
		SenderEmail: m.SenderID.String(),
		Name:        m.SenderName,
	}
}

// ToMessage 线上记录 -> 领域消息
func (r MessageRecord) ToMessage(conversationID string) (model.Message, error) {
	kind, err := model.ParseKind(r.Type, r.Content)
	if err != nil {
		return model.Message{}, err
	}
	sentAt, err := ParseDate(r.Date)
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		ID:             r.ID,
		ConversationID: conversationID,
		SenderID:       identity.StorageKey(r.SenderEmail),
		SenderName:     r.Name,
		Kind:           kind,
		SentAt:         sentAt,
	}, nil
}

// FromSummary 领域摘要 -> 线上记录
func FromSummary(s model.ConversationSummary) SummaryRecord {
	return SummaryRecord{
		ID:             s.ConversationID,
		OtherUserEmail: s.OtherUserEmail.String(),
		Name:           s.Name,
		LatestMessage: LatestMessageRecord{
			Date:    FormatDate(s.LatestMessage.Date),
			Message: s.LatestMessage.Message,
			IsRead:  s.LatestMessage.IsRead,
		},
	}
}

// ToSummary 线上记录 -> 领域摘要
func (r SummaryRecord) ToSummary() (model.ConversationSummary, error) {
	date, err := ParseDate(r.LatestMessage.Date)
	if err != nil {
		return model.ConversationSummary{}, err
	}
	return model.ConversationSummary{
		ConversationID: r.ID,
		OtherUserEmail: identity.StorageKey(r.OtherUserEmail),
		Name:           r.Name,
		LatestMessage: model.LatestMessage{
			Date:    date,
			Message: r.LatestMessage.Message,
			IsRead:  r.LatestMessage.IsRead,
		},
	}, nil
}

// Kind 解析请求中的消息类型
func (o OutgoingMessage) Kind() (model.Kind, error) {
	return model.ParseKind(o.Type, o.Content)
}
