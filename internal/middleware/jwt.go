package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"messenger/internal/constants"
	"messenger/internal/identity"
	"messenger/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWT 中间件验证 token，并把会话写入上下文
func JWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从请求头获取 token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "未提供认证token"})
			c.Abort()
			return
		}

		// 验证 token 格式
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的token格式"})
			c.Abort()
			return
		}

		sess, err := ValidateToken(secret, parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的token"})
			c.Abort()
			return
		}

		SetSession(c, sess)
		c.Next()
	}
}

// SetSession 把会话写入 gin 上下文
func SetSession(c *gin.Context, sess model.Session) {
	c.Set(constants.ContextSession, sess)
	c.Set(constants.ContextAccountID, sess.AccountID.String())
}

// CurrentSession 读取 JWT 中间件写入的会话
func CurrentSession(c *gin.Context) (model.Session, bool) {
	v, ok := c.Get(constants.ContextSession)
	if !ok {
		return model.Session{}, false
	}
	sess, ok := v.(model.Session)
	return sess, ok
}

// ValidateToken 验证JWT token，返回会话。令牌由外部身份提供方签发，这里只校验签名和有效期
func ValidateToken(secret, tokenString string) (model.Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("意外的签名方法: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return model.Session{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return model.Session{}, errors.New("无效的token")
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return model.Session{}, errors.New("token 缺少 email")
	}
	name, _ := claims["name"].(string)

	return model.Session{
		AccountID: identity.Normalize(email),
		Email:     email,
		Name:      name,
	}, nil
}

// GenerateToken 生成 JWT token，供开发工具和测试使用
func GenerateToken(secret, issuer, email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"email": email,
		"name":  name,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
