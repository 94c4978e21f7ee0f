package model

import (
	"strings"
	"time"

	"messenger/internal/identity"
)

// Account 账户。Key 创建后不可变，姓名可修改
type Account struct {
	Key       identity.StorageKey
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// DisplayName 展示名
func (a Account) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}
