package media

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"messenger/internal/apperr"
	"messenger/internal/constants"
	"messenger/internal/identity"
	"messenger/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 单个上传文件的大小上限
const maxUploadSize = 10 << 20

// Handler 媒体上传接口
type Handler struct {
	store Store
	log   *zap.SugaredLogger
	newID func() string
	now   func() time.Time
}

// NewHandler 创建处理器
func NewHandler(store Store, log *zap.SugaredLogger) *Handler {
	return &Handler{
		store: store,
		log:   log,
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
}

// UploadPhoto 上传消息图片，返回的 url 作为 photo 消息的 content。
// 表单带 recipient_email 时文件名沿用客户端的消息ID格式，否则使用随机ID
func (h *Handler) UploadPhoto(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}

	data, contentType, ext, ok := h.readImage(c)
	if !ok {
		return
	}

	name := h.newID()
	if recipient := c.PostForm("recipient_email"); recipient != "" {
		name = identity.MessageID(identity.Normalize(recipient), sess.AccountID, h.now())
	}
	key := MessageImageKey("photo_message_" + name + ext)
	uri, err := h.store.Upload(c.Request.Context(), key, contentType, data)
	if err != nil {
		h.log.Warnw("上传消息图片失败", "user", sess.AccountID, "key", key, "error", err)
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "上传失败"})
		return
	}

	h.log.Infow("消息图片已上传", "user", sess.AccountID, "key", key, "size", len(data))
	c.JSON(http.StatusCreated, gin.H{"url": uri, "key": key})
}

// UploadProfilePicture 上传头像，同一账户覆盖写
func (h *Handler) UploadProfilePicture(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}

	data, contentType, _, ok := h.readImage(c)
	if !ok {
		return
	}

	key := ProfilePictureKey(sess.AccountID)
	uri, err := h.store.Upload(c.Request.Context(), key, contentType, data)
	if err != nil {
		h.log.Warnw("上传头像失败", "user", sess.AccountID, "error", err)
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "上传失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": uri, "key": key})
}

// readImage 读取 multipart 的 file 字段，只接受图片。失败时已经写好响应
func (h *Handler) readImage(c *gin.Context) (data []byte, contentType, ext string, ok bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少文件"})
		return nil, "", "", false
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "文件过大"})
		return nil, "", "", false
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法读取文件"})
		return nil, "", "", false
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法读取文件"})
		return nil, "", "", false
	}
	if len(data) > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "文件过大"})
		return nil, "", "", false
	}

	// 以内容为准，不信任客户端声明的类型
	contentType = http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "只支持图片"})
		return nil, "", "", false
	}

	ext = strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext == "" {
		ext = ".png"
	}
	return data, contentType, ext, true
}
