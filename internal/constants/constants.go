package constants

// 消息类型标签，与客户端的 kind 描述一致，也是线上记录的 type 字段
const (
	KindText           = "text"
	KindAttributedText = "attributed_text"
	KindPhoto          = "photo"
	KindVideo          = "video"
	KindLocation       = "location"
	KindEmoji          = "emoji"
	KindAudio          = "audio"
	KindContact        = "contact"
	KindLinkPreview    = "link_preview"
	KindCustom         = "custom"
)

// 会话ID前缀，会话ID由首条消息ID确定
const ConversationIDPrefix = "conversation_"

// 用户状态常量
const (
	UserStatusOnline  = "online"  // 用户在线
	UserStatusOffline = "offline" // 用户离线
)

// 时间常量
const (
	StatusExpirationTime = 600 // 10分钟，单位秒
)

// Redis键前缀
const (
	RedisKeyUserStatus    = "user:%s:status"
	RedisKeyOnlineUsers   = "online_users"
	RedisKeySummary       = "summary:%s:%s" // summary:userKey:conversationID
	RedisKeyUserSummaries = "summaries:%s"  // summaries:userKey
)

// gin 上下文键
const (
	ContextSession   = "session"
	ContextAccountID = "accountID"
	ContextRequestID = "requestID"
)

// 媒体对象键前缀
const (
	MediaPrefixMessageImages = "message_images/"
	MediaPrefixProfileImages = "images/"
)

// 错误信息
const (
	ErrInvalidParams = "参数无效"
	ErrUnauthorized  = "未授权"
)
