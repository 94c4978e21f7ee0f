package router

import (
	"net/http"
	"time"

	"messenger/internal/chat"
	"messenger/internal/constants"
	"messenger/internal/media"
	"messenger/internal/middleware"
	"messenger/internal/status"
	"messenger/internal/user"
	"messenger/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	JWTSecret string
	Users     *user.Handler
	Chat      *chat.Handler
	Status    *status.Manager
	Hub       *ws.Hub
	Limiter   *middleware.RateLimiter
	// Media 未启用对象存储时为 nil
	Media *media.Handler
}

// requestLogger 给每个请求分配ID，并在结束后记录一行访问日志
func requestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(constants.ContextRequestID, requestID)
		c.Header("X-Request-ID", requestID)

		startTime := time.Now()
		c.Next()

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(startTime),
		}
		if account, ok := c.Get(constants.ContextAccountID); ok {
			fields = append(fields, "account", account)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Errorw("请求", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warnw("请求", fields...)
		default:
			log.Infow("请求", fields...)
		}
	}
}

// SetupRouter 配置所有路由
func SetupRouter(h Handlers, allowOrigins []string, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(requestLogger(log))

	api := r.Group("/api")
	{
		// ----- 无需认证的路由 -----

		// 心跳检测
		api.OPTIONS("/heartbeat", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		// WebSocket 自己校验查询参数里的 token
		api.GET("/ws", ws.HandleWebSocket(h.Hub, h.JWTSecret))

		// ----- 需要认证的路由 -----
		auth := api.Group("/")
		auth.Use(middleware.JWT(h.JWTSecret), h.Limiter.Handler())
		{
			// ----- 用户相关 -----
			for _, route := range []string{"/register", "/accounts"} {
				auth.POST(route, h.Users.Register)
			}
			auth.GET("/user/info", h.Users.GetUserInfo)
			auth.PUT("/user/name", h.Users.Rename)

			// 用户搜索 - 支持多种路径
			for _, route := range []string{"/user/search", "/users/search"} {
				auth.GET(route, h.Users.SearchUsers)
			}

			// ----- 会话相关 -----
			for _, route := range []string{"/conversations", "/conversation/list"} {
				auth.GET(route, h.Chat.GetConversations)
			}
			for _, route := range []string{"/conversation", "/conversations"} {
				auth.POST(route, h.Chat.CreateConversation)
			}

			// ----- 消息相关 -----
			auth.GET("/messages/:conversationId", h.Chat.GetMessages)
			auth.POST("/messages/:conversationId", h.Chat.SendMessage)
			auth.POST("/messages/:conversationId/read", h.Chat.MarkMessagesAsRead)

			// ----- 在线状态 -----
			auth.GET("/heartbeat", h.Status.Heartbeat)
			auth.GET("/status/:email", h.Status.GetStatus)

			// ----- 媒体 -----
			if h.Media != nil {
				auth.POST("/media/photos", h.Media.UploadPhoto)
				auth.PUT("/media/profile-picture", h.Media.UploadProfilePicture)
			}
		}
	}

	return r
}
