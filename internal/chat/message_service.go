package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"messenger/internal/apperr"
	"messenger/internal/identity"
	"messenger/internal/model"
	"messenger/internal/protocol"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
)

// SendMessage 追加消息并更新双方摘要
//
// 追加失败直接返回，不做重试。追加成功后两份摘要并发更新，
// 有限重试后仍失败时返回结果和 *apperr.PartialUpdateError，消息本身已持久化。
func (s *ChatService) SendMessage(ctx context.Context, sess model.Session, conversationID string, out Outgoing) (SendResult, error) {
	// 先确认会话和成员关系，失败时不产生任何副作用
	conv, err := s.conversationFor(ctx, sess, conversationID)
	if err != nil {
		return SendResult{}, err
	}

	name := sess.Name
	if name == "" {
		name = sess.AccountID.String()
	}
	msg := s.buildMessage(sess.AccountID, name, out)

	// 追加一旦开始就不随调用方取消，超时由账本负责
	pos, err := s.store.Append(context.WithoutCancel(ctx), conversationID, msg)
	if err != nil {
		s.log.Warnw("追加消息失败", "conversation", conversationID, "message", msg.ID, "error", err)
		return SendResult{}, err
	}
	msg.ConversationID = conversationID
	msg.Position = pos
	result := SendResult{Position: pos, Message: msg}

	recipient := conv.Counterpart(sess.AccountID)
	latest := model.LatestMessage{
		Date:     msg.SentAt,
		Message:  Preview(msg.Kind, out.Placeholder),
		Position: pos,
	}

	failures := s.fanOut(context.WithoutCancel(ctx), []identity.StorageKey{sess.AccountID, recipient},
		func(ctx context.Context, u identity.StorageKey) error {
			applied, err := s.index.ApplyLatestMessage(ctx, u, conversationID, latest)
			if err == nil && !applied {
				s.log.Warnw("摘要不存在，跳过最新消息更新", "user", u, "conversation", conversationID)
			}
			return err
		})

	s.emit(ctx, msg, recipient)

	if failures != nil {
		s.log.Warnw("消息摘要更新不完整", "conversation", conversationID, "message", msg.ID, "error", failures)
		return result, &apperr.PartialUpdateError{ConversationID: conversationID, MessageID: msg.ID, Failures: failures}
	}
	return result, nil
}

// Preview 计算摘要中的预览文字。文本类消息直接使用内容，其它类型使用调用方提供的占位文字或类型标签
func Preview(kind model.Kind, placeholder string) string {
	if model.IsTextual(kind) {
		return kind.Content()
	}
	if p := strings.TrimSpace(placeholder); p != "" {
		return p
	}
	return "[" + kind.Tag() + "]"
}

func (s *ChatService) buildMessage(sender identity.StorageKey, name string, out Outgoing) model.Message {
	msg := model.Message{
		ID:         out.ID,
		SenderID:   sender,
		SenderName: name,
		Kind:       out.Kind,
		SentAt:     out.SentAt,
	}
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = s.now()
	}
	msg.SentAt = msg.SentAt.UTC()
	return msg
}

// fanOut 并发地对每个用户执行 op（带重试），等待全部完成后汇总失败
func (s *ChatService) fanOut(ctx context.Context, users []identity.StorageKey, op func(context.Context, identity.StorageKey) error) *multierror.Error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures *multierror.Error
	)
	for _, u := range users {
		wg.Add(1)
		go func(u identity.StorageKey) {
			defer wg.Done()
			err := s.withRetry(ctx, func(ctx context.Context) error { return op(ctx, u) })
			if err != nil {
				mu.Lock()
				failures = multierror.Append(failures, fmt.Errorf("%s: %w", u, err))
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()
	return failures
}

// withRetry 对 ErrUnavailable 做指数退避重试，总尝试次数为 retry.Attempts
func (s *ChatService) withRetry(ctx context.Context, op func(context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retry.InitialInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.retry.Attempts-1)), ctx)

	return backoff.Retry(func() error {
		callCtx := ctx
		if s.retry.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.retry.CallTimeout)
			defer cancel()
		}
		err := op(callCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", apperr.ErrUnavailable, err)
		}
		if err != nil && !errors.Is(err, apperr.ErrUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// emit 通知接收者，分发失败只记录日志
func (s *ChatService) emit(ctx context.Context, msg model.Message, recipient identity.StorageKey) {
	event := protocol.Event{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		RecipientID:    recipient.String(),
		SenderID:       msg.SenderID.String(),
		Date:           protocol.FormatDate(msg.SentAt),
	}
	if err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), event); err != nil {
		s.log.Warnw("事件分发失败", "conversation", event.ConversationID, "message", event.MessageID, "error", err)
	}
}
