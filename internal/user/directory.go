// Package user 账户目录：注册、解析、改名和搜索。
package user

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"messenger/internal/apperr"
	"messenger/internal/identity"
	"messenger/internal/model"
)

var (
	ErrAccountExists   = fmt.Errorf("account %w", apperr.ErrAlreadyExists)
	ErrAccountNotFound = fmt.Errorf("account %w", apperr.ErrNotFound)
)

// 搜索结果上限
const searchLimit = 50

// Directory 账户目录
type Directory interface {
	// Register 以规范化后的邮箱为键创建账户
	Register(ctx context.Context, email, firstName, lastName string) (model.Account, error)
	// Resolve 接受原始邮箱或已规范化的键
	Resolve(ctx context.Context, rawOrKey string) (model.Account, error)
	// Rename 修改姓名，键不变
	Rename(ctx context.Context, key identity.StorageKey, firstName, lastName string) (model.Account, error)
	// Search 按名或姓前缀搜索，大小写不敏感
	Search(ctx context.Context, term string) ([]model.Account, error)
}

func validateName(firstName string) error {
	if strings.TrimSpace(firstName) == "" {
		return fmt.Errorf("名字不能为空: %w", apperr.ErrInvalidArgument)
	}
	return nil
}

func newAccount(email, firstName, lastName string, now time.Time) (model.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.Account{}, fmt.Errorf("邮箱不能为空: %w", apperr.ErrInvalidArgument)
	}
	if err := validateName(firstName); err != nil {
		return model.Account{}, err
	}
	return model.Account{
		Key:       identity.Normalize(email),
		Email:     email,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		CreatedAt: now.UTC(),
	}, nil
}

// 通配符不参与匹配
var likeEscaper = strings.NewReplacer("%", "", "_", "")

func searchTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(likeEscaper.Replace(term)))
}

func matches(a model.Account, term string) bool {
	return strings.HasPrefix(strings.ToLower(a.FirstName), term) ||
		strings.HasPrefix(strings.ToLower(a.LastName), term)
}

// MemoryDirectory 内存账户目录
type MemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[identity.StorageKey]model.Account
	now      func() time.Time
}

// NewMemoryDirectory 创建内存账户目录
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		accounts: make(map[identity.StorageKey]model.Account),
		now:      time.Now,
	}
}

// Register 注册账户
func (d *MemoryDirectory) Register(ctx context.Context, email, firstName, lastName string) (model.Account, error) {
	acc, err := newAccount(email, firstName, lastName, d.now())
	if err != nil {
		return model.Account{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.accounts[acc.Key]; exists {
		return model.Account{}, ErrAccountExists
	}
	d.accounts[acc.Key] = acc
	return acc, nil
}

// Resolve 解析账户
func (d *MemoryDirectory) Resolve(ctx context.Context, rawOrKey string) (model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.accounts[identity.Normalize(rawOrKey)]
	if !ok {
		return model.Account{}, ErrAccountNotFound
	}
	return acc, nil
}

// Rename 修改姓名
func (d *MemoryDirectory) Rename(ctx context.Context, key identity.StorageKey, firstName, lastName string) (model.Account, error) {
	if err := validateName(firstName); err != nil {
		return model.Account{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.accounts[key]
	if !ok {
		return model.Account{}, ErrAccountNotFound
	}
	acc.FirstName = strings.TrimSpace(firstName)
	acc.LastName = strings.TrimSpace(lastName)
	d.accounts[key] = acc
	return acc, nil
}

// Search 搜索账户
func (d *MemoryDirectory) Search(ctx context.Context, term string) ([]model.Account, error) {
	term = searchTerm(term)
	if term == "" {
		return []model.Account{}, nil
	}
	d.mu.RLock()
	out := make([]model.Account, 0)
	for _, acc := range d.accounts {
		if matches(acc, term) {
			out = append(out, acc)
		}
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	return out, nil
}
