package chat

import (
	"time"

	"messenger/internal/model"
	"messenger/internal/protocol"
)

// Outgoing 待发送的消息
type Outgoing struct {
	// ID 为空时由服务端生成
	ID   string
	Kind model.Kind
	// SentAt 为零时取服务端时间
	SentAt time.Time
	// Placeholder 非文本消息的预览文字
	Placeholder string
}

// SendResult 发送结果
type SendResult struct {
	Position int64
	Message  model.Message
}

// CreateConversationRequest 创建会话请求
type CreateConversationRequest struct {
	RecipientEmail string                   `json:"recipient_email" binding:"required"`
	Message        protocol.OutgoingMessage `json:"message"`
}

// CreateConversationResponse 创建会话响应
type CreateConversationResponse struct {
	ID      string `json:"id"`
	Warning string `json:"warning,omitempty"`
}

// SendMessageResponse 发送消息响应
type SendMessageResponse struct {
	Message  protocol.MessageRecord `json:"message"`
	Position int64                  `json:"position"`
	Warning  string                 `json:"warning,omitempty"`
}

func outgoingFrom(req protocol.OutgoingMessage) (Outgoing, error) {
	kind, err := req.Kind()
	if err != nil {
		return Outgoing{}, err
	}
	return Outgoing{ID: req.ID, Kind: kind, Placeholder: req.Placeholder}, nil
}
