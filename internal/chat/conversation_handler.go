package chat

import (
	"errors"
	"net/http"

	"messenger/internal/apperr"
	"messenger/internal/constants"
	"messenger/internal/ledger"
	"messenger/internal/middleware"
	"messenger/internal/protocol"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 会话和消息的 HTTP 接口
type Handler struct {
	svc *ChatService
	log *zap.SugaredLogger
}

// NewHandler 创建处理器
func NewHandler(svc *ChatService, log *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw(msg, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetConversations 获取会话列表
func (h *Handler) GetConversations(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}

	summaries, err := h.svc.ListConversations(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, "获取会话列表失败", err)
		return
	}

	records := make([]protocol.SummaryRecord, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, protocol.FromSummary(s))
	}
	c.JSON(http.StatusOK, records)
}

// CreateConversation 创建会话
func (h *Handler) CreateConversation(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrInvalidParams + ": " + err.Error()})
		return
	}
	first, err := outgoingFrom(req.Message)
	if err != nil {
		h.fail(c, "消息格式错误", err)
		return
	}

	id, err := h.svc.CreateConversation(c.Request.Context(), sess, req.RecipientEmail, first)
	var partial *apperr.PartialUpdateError
	switch {
	case errors.As(err, &partial):
		c.JSON(http.StatusAccepted, CreateConversationResponse{ID: id, Warning: partial.Error()})
	case err != nil:
		h.fail(c, "创建会话失败", err)
	default:
		c.JSON(http.StatusCreated, CreateConversationResponse{ID: id})
	}
}

// GetMessages 获取会话消息
func (h *Handler) GetMessages(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}
	conversationID := c.Param("conversationId")

	seq, err := h.svc.ListMessages(c.Request.Context(), sess, conversationID)
	if err != nil {
		h.fail(c, "获取消息失败", err)
		return
	}
	messages, err := ledger.Collect(seq)
	if err != nil {
		h.fail(c, "读取消息失败", err)
		return
	}

	records := make([]protocol.MessageRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, protocol.FromMessage(m))
	}
	c.JSON(http.StatusOK, records)
}

// SendMessage 发送消息
func (h *Handler) SendMessage(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}
	conversationID := c.Param("conversationId")

	var req protocol.OutgoingMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrInvalidParams + ": " + err.Error()})
		return
	}
	out, err := outgoingFrom(req)
	if err != nil {
		h.fail(c, "消息格式错误", err)
		return
	}

	result, err := h.svc.SendMessage(c.Request.Context(), sess, conversationID, out)
	var partial *apperr.PartialUpdateError
	switch {
	case errors.As(err, &partial):
		c.JSON(http.StatusAccepted, SendMessageResponse{
			Message:  protocol.FromMessage(result.Message),
			Position: result.Position,
			Warning:  partial.Error(),
		})
	case err != nil:
		h.fail(c, "发送消息失败", err)
	default:
		c.JSON(http.StatusCreated, SendMessageResponse{
			Message:  protocol.FromMessage(result.Message),
			Position: result.Position,
		})
	}
}

// MarkMessagesAsRead 标记会话为已读
func (h *Handler) MarkMessagesAsRead(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}
	conversationID := c.Param("conversationId")

	updated, err := h.svc.MarkRead(c.Request.Context(), sess, conversationID)
	if err != nil {
		h.fail(c, "标记已读失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
