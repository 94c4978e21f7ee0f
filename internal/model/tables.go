package model

import (
	"time"

	"gorm.io/gorm"
)

// AccountRow 账户表
type AccountRow struct {
	Key       string    `gorm:"primaryKey;type:varchar(191)"`
	Email     string    `gorm:"type:varchar(191);uniqueIndex"`
	FirstName string    `gorm:"type:varchar(100)"`
	LastName  string    `gorm:"type:varchar(100)"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (AccountRow) TableName() string {
	return "accounts"
}

// ConversationRow 会话表。NextPosition 是会话内下一条消息的序号，追加时在事务里自增
type ConversationRow struct {
	ID           string    `gorm:"primaryKey;type:varchar(191)"`
	ParticipantA string    `gorm:"type:varchar(191);index"`
	ParticipantB string    `gorm:"type:varchar(191);index"`
	NextPosition int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
}

// TableName 指定表名
func (ConversationRow) TableName() string {
	return "conversations"
}

// MessageRow 消息表。(conversation_id, position) 为主键，消息ID在会话内唯一
type MessageRow struct {
	ConversationID string    `gorm:"primaryKey;type:varchar(191);uniqueIndex:idx_conv_msg,priority:1"`
	Position       int64     `gorm:"primaryKey;autoIncrement:false"`
	MessageID      string    `gorm:"type:varchar(191);not null;uniqueIndex:idx_conv_msg,priority:2"`
	SenderID       string    `gorm:"type:varchar(191);index"`
	SenderName     string    `gorm:"type:varchar(100)"`
	Kind           string    `gorm:"type:varchar(32);not null"`
	Content        string    `gorm:"type:text"`
	SentAt         time.Time `gorm:"not null"`
}

// TableName 指定表名
func (MessageRow) TableName() string {
	return "messages"
}

// SetupDatabase 初始化数据库表结构
func SetupDatabase(db *gorm.DB) error {
	// 自动迁移表结构
	return db.AutoMigrate(
		&AccountRow{},
		&ConversationRow{},
		&MessageRow{},
	)
}
