package inbox

import (
	"context"
	"sync"

	"messenger/internal/identity"
	"messenger/internal/model"
)

// MemoryIndex 内存索引，每个用户一个分片
type MemoryIndex struct {
	mu     sync.Mutex
	shards map[identity.StorageKey]*shard
}

type shard struct {
	mu      sync.RWMutex
	records map[string]model.ConversationSummary
}

// NewMemoryIndex 创建内存索引
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{shards: make(map[identity.StorageKey]*shard)}
}

func (m *MemoryIndex) userShard(user identity.StorageKey, create bool) *shard {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shards[user]
	if !ok && create {
		s = &shard{records: make(map[string]model.ConversationSummary)}
		m.shards[user] = s
	}
	return s
}

// UpsertSummary 插入或替换摘要
func (m *MemoryIndex) UpsertSummary(ctx context.Context, user identity.StorageKey, summary model.ConversationSummary) error {
	if err := validateSummary(user, summary); err != nil {
		return err
	}
	s := m.userShard(user, true)
	s.mu.Lock()
	s.records[summary.ConversationID] = summary
	s.mu.Unlock()
	return nil
}

// InsertSummary 摘要不存在时写入
func (m *MemoryIndex) InsertSummary(ctx context.Context, user identity.StorageKey, summary model.ConversationSummary) (bool, error) {
	if err := validateSummary(user, summary); err != nil {
		return false, err
	}
	s := m.userShard(user, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[summary.ConversationID]; ok {
		return false, nil
	}
	s.records[summary.ConversationID] = summary
	return true, nil
}

// ListSummaries 列出摘要
func (m *MemoryIndex) ListSummaries(ctx context.Context, user identity.StorageKey) ([]model.ConversationSummary, error) {
	s := m.userShard(user, false)
	if s == nil {
		return []model.ConversationSummary{}, nil
	}
	s.mu.RLock()
	out := make([]model.ConversationSummary, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	model.SortByLatest(out)
	return out, nil
}

// ApplyLatestMessage 更新最新消息字段
func (m *MemoryIndex) ApplyLatestMessage(ctx context.Context, user identity.StorageKey, conversationID string, latest model.LatestMessage) (bool, error) {
	return m.update(user, conversationID, func(rec *model.ConversationSummary) {
		// 乱序到达的旧消息不覆盖
		if latest.Position > rec.LatestMessage.Position {
			rec.LatestMessage = latest
		}
	}), nil
}

// MarkRead 标记已读
func (m *MemoryIndex) MarkRead(ctx context.Context, user identity.StorageKey, conversationID string) (bool, error) {
	return m.update(user, conversationID, func(rec *model.ConversationSummary) {
		rec.LatestMessage.IsRead = true
	}), nil
}

func (m *MemoryIndex) update(user identity.StorageKey, conversationID string, fn func(*model.ConversationSummary)) bool {
	s := m.userShard(user, false)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[conversationID]
	if !ok {
		return false
	}
	fn(&rec)
	s.records[conversationID] = rec
	return true
}
