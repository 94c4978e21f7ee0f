package user

import (
	"net/http"

	"messenger/internal/apperr"
	"messenger/internal/constants"
	"messenger/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 账户相关的 HTTP 接口
type Handler struct {
	dir Directory
	log *zap.SugaredLogger
}

// NewHandler 创建处理器
func NewHandler(dir Directory, log *zap.SugaredLogger) *Handler {
	return &Handler{dir: dir, log: log}
}

// Register 处理用户注册
func (h *Handler) Register(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.dir.Register(c.Request.Context(), sess.Email, req.FirstName, req.LastName)
	if err != nil {
		h.log.Warnw("注册失败", "email", sess.Email, "error", err)
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	h.log.Infow("用户注册成功", "account", acc.Key)
	c.JSON(http.StatusCreated, toResponse(acc))
}

// GetUserInfo 获取用户信息
func (h *Handler) GetUserInfo(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}

	acc, err := h.dir.Resolve(c.Request.Context(), sess.AccountID.String())
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "获取用户信息失败"})
		return
	}

	c.JSON(http.StatusOK, toResponse(acc))
}

// Rename 修改姓名
func (h *Handler) Rename(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.dir.Rename(c.Request.Context(), sess.AccountID, req.FirstName, req.LastName)
	if err != nil {
		h.log.Warnw("修改姓名失败", "account", sess.AccountID, "error", err)
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toResponse(acc))
}

// SearchUsers 搜索用户
func (h *Handler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "搜索查询不能为空"})
		return
	}

	accounts, err := h.dir.Search(c.Request.Context(), query)
	if err != nil {
		h.log.Errorw("搜索用户出错", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索用户失败"})
		return
	}

	h.log.Debugw("用户搜索", "query", query, "count", len(accounts))
	resp := make([]UserResponse, 0, len(accounts))
	for _, acc := range accounts {
		resp = append(resp, toResponse(acc))
	}
	c.JSON(http.StatusOK, resp)
}
