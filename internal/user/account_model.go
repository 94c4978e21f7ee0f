package user

import (
	"time"

	"messenger/internal/identity"
	"messenger/internal/model"
)

// RegisterRequest 注册请求。邮箱来自认证令牌，不在请求体里
type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
}

// RenameRequest 修改姓名
type RenameRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
}

// UserResponse 用户信息响应
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Name           string    `json:"name"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

func toResponse(a model.Account) UserResponse {
	return UserResponse{
		ID:             a.Key.String(),
		Email:          a.Email,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Name:           a.DisplayName(),
		ProfilePicture: identity.ProfilePictureFileName(a.Key),
		CreatedAt:      a.CreatedAt,
	}
}
