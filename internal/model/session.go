package model

import "messenger/internal/identity"

// Session 认证后的调用者，由外部身份提供方签发的令牌解析得到，每次调用显式传入
type Session struct {
	AccountID identity.StorageKey
	Email     string
	Name      string
}
