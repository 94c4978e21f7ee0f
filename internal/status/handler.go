package status

import (
	"net/http"

	"messenger/internal/constants"
	"messenger/internal/identity"
	"messenger/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Heartbeat 客户端定期调用，刷新 HTTP 在线状态
func (m *Manager) Heartbeat(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": constants.ErrUnauthorized})
		return
	}

	if err := m.SetOnline(c.Request.Context(), sess.AccountID, ConnHTTP, true); err != nil {
		// 本地状态已更新，同步失败不影响心跳
		m.log.Warnw("心跳同步失败", "user", sess.AccountID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    constants.UserStatusOnline,
		"timestamp": m.now().Unix(),
	})
}

// GetStatus 查询某个账户的在线状态
func (m *Manager) GetStatus(c *gin.Context) {
	user := identity.Normalize(c.Param("email"))
	status := m.Status(c.Request.Context(), user)
	c.JSON(http.StatusOK, gin.H{
		"account_id":  status.AccountID,
		"status":      status.State(),
		"last_active": status.LastActive,
	})
}
