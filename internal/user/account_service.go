package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"messenger/internal/identity"
	"messenger/internal/model"

	"gorm.io/gorm"
)

// AccountService 基于数据库的账户目录
type AccountService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAccountService 创建账户服务
func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db, now: time.Now}
}

// Register 注册新用户
func (s *AccountService) Register(ctx context.Context, email, firstName, lastName string) (model.Account, error) {
	acc, err := newAccount(email, firstName, lastName, s.now())
	if err != nil {
		return model.Account{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 检查账户是否已存在
		var count int64
		if err := tx.Model(&model.AccountRow{}).Where("`key` = ?", acc.Key.String()).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAccountExists
		}
		row := model.AccountRow{
			Key:       acc.Key.String(),
			Email:     acc.Email,
			FirstName: acc.FirstName,
			LastName:  acc.LastName,
			CreatedAt: acc.CreatedAt,
			UpdatedAt: acc.CreatedAt,
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.Account{}, ErrAccountExists
	}
	if err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

// Resolve 通过邮箱或键获取用户
func (s *AccountService) Resolve(ctx context.Context, rawOrKey string) (model.Account, error) {
	var row model.AccountRow
	err := s.db.WithContext(ctx).Where("`key` = ?", identity.Normalize(rawOrKey).String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	return fromAccountRow(row), nil
}

// Rename 修改姓名
func (s *AccountService) Rename(ctx context.Context, key identity.StorageKey, firstName, lastName string) (model.Account, error) {
	if err := validateName(firstName); err != nil {
		return model.Account{}, err
	}
	res := s.db.WithContext(ctx).Model(&model.AccountRow{}).
		Where("`key` = ?", key.String()).
		Updates(map[string]interface{}{
			"first_name": strings.TrimSpace(firstName),
			"last_name":  strings.TrimSpace(lastName),
			"updated_at": s.now().UTC(),
		})
	if res.Error != nil {
		return model.Account{}, res.Error
	}
	if res.RowsAffected == 0 {
		return model.Account{}, ErrAccountNotFound
	}
	return s.Resolve(ctx, key.String())
}

// Search 搜索用户
func (s *AccountService) Search(ctx context.Context, term string) ([]model.Account, error) {
	term = searchTerm(term)
	if term == "" {
		return []model.Account{}, nil
	}

	var rows []model.AccountRow
	err := s.db.WithContext(ctx).
		Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", term+"%", term+"%").
		Order("first_name asc, `key` asc").
		Limit(searchLimit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]model.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromAccountRow(row))
	}
	return out, nil
}

func fromAccountRow(row model.AccountRow) model.Account {
	return model.Account{
		Key:       identity.StorageKey(row.Key),
		Email:     row.Email,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		CreatedAt: row.CreatedAt,
	}
}
