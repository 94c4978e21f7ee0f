package model

import (
	"sort"
	"time"

	"messenger/internal/constants"
	"messenger/internal/identity"
)

// Conversation 两人会话
type Conversation struct {
	ID           string
	Participants [2]identity.StorageKey
	CreatedAt    time.Time
}

// ConversationIDFor 由首条消息ID得到会话ID，重试时生成的ID保持不变
func ConversationIDFor(firstMessageID string) string {
	return constants.ConversationIDPrefix + firstMessageID
}

// Has 判断用户是否是会话参与者
func (c Conversation) Has(user identity.StorageKey) bool {
	return c.Participants[0] == user || c.Participants[1] == user
}

// Counterpart 返回会话中的另一方
func (c Conversation) Counterpart(user identity.StorageKey) identity.StorageKey {
	if c.Participants[0] == user {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// SameParticipants 参与者集合是否相同（与顺序无关）
func (c Conversation) SameParticipants(other Conversation) bool {
	return (c.Participants[0] == other.Participants[0] && c.Participants[1] == other.Participants[1]) ||
		(c.Participants[0] == other.Participants[1] && c.Participants[1] == other.Participants[0])
}

// LatestMessage 摘要中的最新消息
type LatestMessage struct {
	Date     time.Time
	Message  string
	IsRead   bool
	// Position 对应消息在账本中的序号，只有更大的序号才能覆盖
	Position int64
}

// ConversationSummary 每个用户各自持有的会话摘要
type ConversationSummary struct {
	ConversationID string
	OtherUserEmail identity.StorageKey
	Name           string
	LatestMessage  LatestMessage
}

// SortByLatest 按最新消息时间倒序排列
func SortByLatest(summaries []ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LatestMessage.Date.After(summaries[j].LatestMessage.Date)
	})
}
