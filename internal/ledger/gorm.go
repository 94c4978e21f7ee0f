package ledger

import (
	"context"
	"errors"
	"fmt"

	"messenger/internal/identity"
	"messenger/internal/model"

	"gorm.io/gorm"
)

const defaultPageSize = 100

// GormStore 基于关系数据库的账本
//
// 序号分配：在事务中对 conversations.next_position 做原子自增，
// (conversation_id, position) 主键兜底防止重复序号。
// 进程内再按会话ID加锁，避免同一会话的事务在数据库行锁上排队。
type GormStore struct {
	db       *gorm.DB
	locks    *keyedMutex
	pageSize int
}

// NewGormStore 创建数据库账本
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:       db,
		locks:    newKeyedMutex(),
		pageSize: defaultPageSize,
	}
}

// CreateConversation 在一个事务里创建会话并写入首条消息
func (s *GormStore) CreateConversation(ctx context.Context, conv model.Conversation, first model.Message) error {
	first, err := prepare(conv.ID, first)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(conv.ID)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.ConversationRow{}).Where("id = ?", conv.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyExists
		}

		row := model.ConversationRow{
			ID:           conv.ID,
			ParticipantA: conv.Participants[0].String(),
			ParticipantB: conv.Participants[1].String(),
			NextPosition: 1,
			CreatedAt:    conv.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		first.Position = 0
		msgRow := toRow(first)
		return tx.Create(&msgRow).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	return err
}

// Append 追加消息
func (s *GormStore) Append(ctx context.Context, conversationID string, msg model.Message) (int64, error) {
	msg, err := prepare(conversationID, msg)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dup int64
		if err := tx.Model(&model.MessageRow{}).
			Where("conversation_id = ? AND message_id = ?", conversationID, msg.ID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return ErrDuplicateMessage
		}

		// UPDATE 会持有会话行的写锁直到事务结束
		res := tx.Model(&model.ConversationRow{}).
			Where("id = ?", conversationID).
			UpdateColumn("next_position", gorm.Expr("next_position + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConversationNotFound
		}

		var conv model.ConversationRow
		if err := tx.Select("next_position").Where("id = ?", conversationID).Take(&conv).Error; err != nil {
			return err
		}
		msg.Position = conv.NextPosition - 1

		row := toRow(msg)
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, ErrDuplicateMessage
	}
	if err != nil {
		return 0, err
	}
	return msg.Position, nil
}

// ListMessages 以 next_position 为快照边界，按页惰性读取
func (s *GormStore) ListMessages(ctx context.Context, conversationID string) (Sequence, error) {
	conv, err := s.conversationRow(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	bound := conv.NextPosition

	return func(yield func(model.Message, error) bool) {
		after := int64(-1)
		for after+1 < bound {
			var rows []model.MessageRow
			err := s.db.WithContext(ctx).
				Where("conversation_id = ? AND position > ? AND position < ?", conversationID, after, bound).
				Order("position asc").
				Limit(s.pageSize).
				Find(&rows).Error
			if err != nil {
				yield(model.Message{}, err)
				return
			}
			if len(rows) == 0 {
				return
			}
			for _, row := range rows {
				msg, err := fromRow(row)
				if !yield(msg, err) || err != nil {
					return
				}
				after = row.Position
			}
		}
	}, nil
}

// GetConversation 获取会话
func (s *GormStore) GetConversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	row, err := s.conversationRow(ctx, conversationID)
	if err != nil {
		return model.Conversation{}, err
	}
	return model.Conversation{
		ID:           row.ID,
		Participants: [2]identity.StorageKey{identity.StorageKey(row.ParticipantA), identity.StorageKey(row.ParticipantB)},
		CreatedAt:    row.CreatedAt,
	}, nil
}

// Latest 获取最后一条消息
func (s *GormStore) Latest(ctx context.Context, conversationID string) (model.Message, error) {
	conv, err := s.conversationRow(ctx, conversationID)
	if err != nil {
		return model.Message{}, err
	}
	var row model.MessageRow
	err = s.db.WithContext(ctx).
		Where("conversation_id = ? AND position = ?", conversationID, conv.NextPosition-1).
		Take(&row).Error
	if err != nil {
		return model.Message{}, err
	}
	return fromRow(row)
}

func (s *GormStore) conversationRow(ctx context.Context, conversationID string) (model.ConversationRow, error) {
	var row model.ConversationRow
	err := s.db.WithContext(ctx).Where("id = ?", conversationID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, ErrConversationNotFound
	}
	return row, err
}

func toRow(msg model.Message) model.MessageRow {
	return model.MessageRow{
		ConversationID: msg.ConversationID,
		Position:       msg.Position,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID.String(),
		SenderName:     msg.SenderName,
		Kind:           msg.Kind.Tag(),
		Content:        msg.Kind.Content(),
		SentAt:         msg.SentAt,
	}
}

func fromRow(row model.MessageRow) (model.Message, error) {
	kind, err := model.ParseKind(row.Kind, row.Content)
	if err != nil {
		return model.Message{}, fmt.Errorf("消息 %s/%d 类型损坏: %w", row.ConversationID, row.Position, err)
	}
	return model.Message{
		ID:             row.MessageID,
		ConversationID: row.ConversationID,
		SenderID:       identity.StorageKey(row.SenderID),
		SenderName:     row.SenderName,
		Kind:           kind,
		SentAt:         row.SentAt,
		Position:       row.Position,
	}, nil
}
