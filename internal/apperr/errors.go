// Package apperr 定义跨组件共享的错误分类。
//
// 各组件用 fmt.Errorf("...%w", apperr.ErrXxx) 包装自己的错误，
// 调用方通过 errors.Is 判断类别，而不依赖具体组件的错误值。
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNotFound 会话或账户不存在，不可重试
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists 创建路径上视为幂等成功
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnavailable 后端暂时不可用，调用方可退避重试
	ErrUnavailable = errors.New("store unavailable")
	// ErrPartialUpdate 消息已持久化，但摘要更新失败
	ErrPartialUpdate = errors.New("partial update")
	// ErrInvalidArgument 参数无效（空消息、未知类型等）
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrForbidden 调用者不是会话参与者
	ErrForbidden = errors.New("forbidden")
)

// PartialUpdateError 消息已追加到账本，但部分参与者的摘要在有限重试后仍写入失败。
// 账本是事实来源，摘要可由后台对账修复，因此这是警告而非失败。
type PartialUpdateError struct {
	ConversationID string
	MessageID      string
	Failures       *multierror.Error
}

func (e *PartialUpdateError) Error() string {
	return fmt.Sprintf("会话 %s 消息 %s 摘要更新不完整: %v", e.ConversationID, e.MessageID, e.Failures.ErrorOrNil())
}

// Is 让 errors.Is(err, ErrPartialUpdate) 成立
func (e *PartialUpdateError) Is(target error) bool {
	return target == ErrPartialUpdate
}

func (e *PartialUpdateError) Unwrap() error {
	return e.Failures.ErrorOrNil()
}

// HTTPStatus 将错误分类映射为 HTTP 状态码
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPartialUpdate):
		return http.StatusAccepted
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
