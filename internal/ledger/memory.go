package ledger

import (
	"context"
	"sync"

	"messenger/internal/model"
)

// MemoryStore 内存账本
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*memConversation
}

type memConversation struct {
	// 会话内追加的串行化点
	mu       sync.Mutex
	meta     model.Conversation
	messages []model.Message
	ids      map[string]struct{}
}

// NewMemoryStore 创建内存账本
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*memConversation)}
}

func (s *MemoryStore) get(id string) *memConversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversations[id]
}

// CreateConversation 创建会话并写入首条消息
func (s *MemoryStore) CreateConversation(ctx context.Context, conv model.Conversation, first model.Message) error {
	first, err := prepare(conv.ID, first)
	if err != nil {
		return err
	}
	first.Position = 0

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; exists {
		return ErrAlreadyExists
	}
	s.conversations[conv.ID] = &memConversation{
		meta:     conv,
		messages: []model.Message{first},
		ids:      map[string]struct{}{first.ID: {}},
	}
	return nil
}

// Append 追加消息
func (s *MemoryStore) Append(ctx context.Context, conversationID string, msg model.Message) (int64, error) {
	c := s.get(conversationID)
	if c == nil {
		return 0, ErrConversationNotFound
	}
	msg, err := prepare(conversationID, msg)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.ids[msg.ID]; dup {
		return 0, ErrDuplicateMessage
	}
	msg.Position = int64(len(c.messages))
	c.messages = append(c.messages, msg)
	c.ids[msg.ID] = struct{}{}
	return msg.Position, nil
}

// ListMessages 返回调用时刻的消息快照
func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) (Sequence, error) {
	c := s.get(conversationID)
	if c == nil {
		return nil, ErrConversationNotFound
	}

	c.mu.Lock()
	// 已追加的元素不会再被修改，限定容量后后续 append 不会写入这段内存
	snapshot := c.messages[:len(c.messages):len(c.messages)]
	c.mu.Unlock()

	return func(yield func(model.Message, error) bool) {
		for _, msg := range snapshot {
			if !yield(msg, nil) {
				return
			}
		}
	}, nil
}

// GetConversation 获取会话
func (s *MemoryStore) GetConversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	c := s.get(conversationID)
	if c == nil {
		return model.Conversation{}, ErrConversationNotFound
	}
	return c.meta, nil
}

// Latest 获取最后一条消息
func (s *MemoryStore) Latest(ctx context.Context, conversationID string) (model.Message, error) {
	c := s.get(conversationID)
	if c == nil {
		return model.Message{}, ErrConversationNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[len(c.messages)-1], nil
}
