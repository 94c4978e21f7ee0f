package protocol

// MessageRecord 消息的线上记录格式，content 在 type="photo" 时为图片 URI
type MessageRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Date        string `json:"date"`
	SenderEmail string `json:"sender_email"`
	Name        string `json:"name"`
}

// LatestMessageRecord 摘要中的最新消息
type LatestMessageRecord struct {
	Date    string `json:"date"`
	Message string `json:"message"`
	IsRead  bool   `json:"is_read"`
}

// SummaryRecord 会话摘要的线上记录格式
type SummaryRecord struct {
	ID             string              `json:"id"`
	OtherUserEmail string              `json:"other_user_email"`
	Name           string              `json:"name"`
	LatestMessage  LatestMessageRecord `json:"latest_message"`
}

// Event 消息追加事件，交给通知分发器投递给接收者
type Event struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	RecipientID    string `json:"recipient_id"`
	SenderID       string `json:"sender_id"`
	Date           string `json:"date"`
}

// OutgoingMessage 客户端发送消息的请求体。ID 为空时由服务端生成
type OutgoingMessage struct {
	ID      string `json:"id"`
	Type    string `json:"type" binding:"required"`
	Content string `json:"content"`
	// Placeholder 非文本消息的预览文字，为空时使用类型标签
	Placeholder string `json:"placeholder"`
}
