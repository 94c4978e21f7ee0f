// Package chat 会话服务：在消息账本和双方的摘要索引之间编排会话创建与消息发送。
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messenger/internal/apperr"
	"messenger/internal/identity"
	"messenger/internal/inbox"
	"messenger/internal/ledger"
	"messenger/internal/model"
	"messenger/internal/notify"
	"messenger/internal/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrParticipantNotFound = fmt.Errorf("participant %w", apperr.ErrNotFound)
	ErrNotParticipant      = fmt.Errorf("not a conversation participant: %w", apperr.ErrForbidden)
	ErrSelfConversation    = fmt.Errorf("cannot start a conversation with yourself: %w", apperr.ErrInvalidArgument)
	// ErrConversationConflict 会话ID已被另一组参与者占用
	ErrConversationConflict = fmt.Errorf("conversation id taken by other participants: %w", apperr.ErrAlreadyExists)
)

// RetryPolicy 摘要写入的重试策略，只对 ErrUnavailable 重试
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	// CallTimeout 单次摘要写入的超时
	CallTimeout time.Duration
}

// DefaultRetryPolicy 默认重试 3 次
var DefaultRetryPolicy = RetryPolicy{
	Attempts:        3,
	InitialInterval: 50 * time.Millisecond,
	CallTimeout:     3 * time.Second,
}

// ChatService 会话服务
type ChatService struct {
	store      ledger.Store
	index      inbox.Index
	dir        user.Directory
	dispatcher notify.Dispatcher
	log        *zap.SugaredLogger
	retry      RetryPolicy
	now        func() time.Time
	newID      func() string
}

// Option 服务选项
type Option func(*ChatService)

// WithRetryPolicy 设置重试策略
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *ChatService) { s.retry = p }
}

// WithClock 设置时钟
func WithClock(now func() time.Time) Option {
	return func(s *ChatService) { s.now = now }
}

// WithIDGenerator 设置消息ID生成器
func WithIDGenerator(fn func() string) Option {
	return func(s *ChatService) { s.newID = fn }
}

// NewChatService 创建聊天服务实例
func NewChatService(store ledger.Store, index inbox.Index, dir user.Directory, dispatcher notify.Dispatcher, log *zap.SugaredLogger, opts ...Option) *ChatService {
	s := &ChatService{
		store:      store,
		index:      index,
		dir:        dir,
		dispatcher: dispatcher,
		log:        log,
		retry:      DefaultRetryPolicy,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retry.Attempts < 1 {
		s.retry.Attempts = 1
	}
	return s
}

// resolve 查询账户。目录的基础设施错误和超时统一归为 ErrUnavailable
func (s *ChatService) resolve(ctx context.Context, rawOrKey string) (model.Account, error) {
	if s.retry.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.retry.CallTimeout)
		defer cancel()
	}
	acc, err := s.dir.Resolve(ctx, rawOrKey)
	switch {
	case err == nil:
		return acc, nil
	case errors.Is(err, apperr.ErrNotFound):
		return model.Account{}, fmt.Errorf("%w: %s", ErrParticipantNotFound, rawOrKey)
	case errors.Is(err, apperr.ErrInvalidArgument), errors.Is(err, apperr.ErrUnavailable):
		return model.Account{}, err
	default:
		s.log.Warnw("查询账户失败", "account", rawOrKey, "error", err)
		return model.Account{}, fmt.Errorf("%w: 查询账户失败: %v", apperr.ErrUnavailable, err)
	}
}

// CreateConversation 创建两人会话并写入首条消息，返回会话ID
//
// 会话ID由首条消息ID决定，重复调用只会得到一个会话和一条首消息。
// 摘要写入在有限重试后仍失败时，返回会话ID和 *apperr.PartialUpdateError。
func (s *ChatService) CreateConversation(ctx context.Context, sess model.Session, counterpart string, first Outgoing) (string, error) {
	initiator, err := s.resolve(ctx, sess.AccountID.String())
	if err != nil {
		return "", err
	}
	other, err := s.resolve(ctx, counterpart)
	if err != nil {
		return "", err
	}
	if initiator.Key == other.Key {
		return "", ErrSelfConversation
	}

	msg := s.buildMessage(initiator.Key, senderName(sess, initiator), first)
	conv := model.Conversation{
		ID:           model.ConversationIDFor(msg.ID),
		Participants: [2]identity.StorageKey{initiator.Key, other.Key},
		CreatedAt:    msg.SentAt,
	}
	msg.ConversationID = conv.ID

	created := true
	err = s.store.CreateConversation(context.WithoutCancel(ctx), conv, msg)
	switch {
	case errors.Is(err, apperr.ErrAlreadyExists):
		// 重试：沿用已有状态继续写摘要
		created = false
		existing, err := s.store.GetConversation(ctx, conv.ID)
		if err != nil {
			return "", err
		}
		if !existing.SameParticipants(conv) {
			return "", ErrConversationConflict
		}
		latest, err := s.store.Latest(ctx, conv.ID)
		if err != nil {
			return "", err
		}
		if latest.ID != msg.ID {
			first.Placeholder = ""
		}
		msg = latest
	case err != nil:
		s.log.Warnw("创建会话失败", "conversation", conv.ID, "error", err)
		return "", err
	}

	latest := model.LatestMessage{
		Date:     msg.SentAt,
		Message:  Preview(msg.Kind, first.Placeholder),
		Position: msg.Position,
	}
	summaries := map[identity.StorageKey]model.ConversationSummary{
		initiator.Key: {
			ConversationID: conv.ID,
			OtherUserEmail: other.Key,
			Name:           other.DisplayName(),
			LatestMessage:  latest,
		},
		other.Key: {
			ConversationID: conv.ID,
			OtherUserEmail: initiator.Key,
			Name:           senderName(sess, initiator),
			LatestMessage:  latest,
		},
	}

	write := func(ctx context.Context, u identity.StorageKey) error {
		return s.index.UpsertSummary(ctx, u, summaries[u])
	}
	if !created {
		// 重试只补写缺失的摘要；已有摘要只接受更新的消息，名称和已读状态保持不变
		write = func(ctx context.Context, u identity.StorageKey) error {
			inserted, err := s.index.InsertSummary(ctx, u, summaries[u])
			if err != nil || inserted {
				return err
			}
			_, err = s.index.ApplyLatestMessage(ctx, u, conv.ID, latest)
			return err
		}
	}
	failures := s.fanOut(context.WithoutCancel(ctx), []identity.StorageKey{initiator.Key, other.Key}, write)

	if created {
		s.log.Infow("会话已创建", "conversation", conv.ID, "initiator", initiator.Key, "counterpart", other.Key)
		s.emit(ctx, msg, other.Key)
	}

	if failures != nil {
		s.log.Warnw("会话摘要写入不完整", "conversation", conv.ID, "error", failures)
		return conv.ID, &apperr.PartialUpdateError{ConversationID: conv.ID, MessageID: msg.ID, Failures: failures}
	}
	return conv.ID, nil
}

// conversationFor 获取会话并确认调用者是参与者
func (s *ChatService) conversationFor(ctx context.Context, sess model.Session, conversationID string) (model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return model.Conversation{}, err
	}
	if !conv.Has(sess.AccountID) {
		return model.Conversation{}, ErrNotParticipant
	}
	return conv, nil
}

// ListMessages 按追加顺序返回会话消息
func (s *ChatService) ListMessages(ctx context.Context, sess model.Session, conversationID string) (ledger.Sequence, error) {
	if _, err := s.conversationFor(ctx, sess, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID)
}

// ListConversations 返回调用者的会话摘要，最新的在前
func (s *ChatService) ListConversations(ctx context.Context, sess model.Session) ([]model.ConversationSummary, error) {
	return s.index.ListSummaries(ctx, sess.AccountID)
}

// MarkRead 将调用者在该会话中的最新消息标记为已读
func (s *ChatService) MarkRead(ctx context.Context, sess model.Session, conversationID string) (bool, error) {
	if _, err := s.conversationFor(ctx, sess, conversationID); err != nil {
		return false, err
	}
	return s.index.MarkRead(ctx, sess.AccountID, conversationID)
}

func senderName(sess model.Session, acc model.Account) string {
	if name := acc.DisplayName(); name != "" {
		return name
	}
	if sess.Name != "" {
		return sess.Name
	}
	return acc.Key.String()
}
