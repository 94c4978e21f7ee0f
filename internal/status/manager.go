package status

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"messenger/internal/constants"
	"messenger/internal/identity"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// 连接类型
const (
	ConnHTTP      = "http"
	ConnWebSocket = "websocket"
	ConnAll       = "all"
)

// statusTTL 超过这个时间没有活动视为离线
const statusTTL = constants.StatusExpirationTime * time.Second

// UserStatus 表示用户状态
type UserStatus struct {
	AccountID   string    `json:"account_id"`
	Online      bool      `json:"online"`
	LastActive  time.Time `json:"last_active"`
	Connections struct {
		HTTP      bool `json:"http"`
		WebSocket bool `json:"websocket"`
	} `json:"connections"`
}

// State 返回 online / offline
func (s UserStatus) State() string {
	if s.Online {
		return constants.UserStatusOnline
	}
	return constants.UserStatusOffline
}

// Manager 统一用户状态管理。本地缓存保存本实例看到的状态，配置了 Redis 时同步过去供其他实例查询
type Manager struct {
	redisClient *redis.Client
	statusCache map[identity.StorageKey]*UserStatus
	mutex       sync.RWMutex
	log         *zap.SugaredLogger
	now         func() time.Time
}

// NewManager 创建状态管理器，client 为 nil 时只使用本地缓存
func NewManager(client *redis.Client, log *zap.SugaredLogger) *Manager {
	return &Manager{
		redisClient: client,
		statusCache: make(map[identity.StorageKey]*UserStatus),
		log:         log,
		now:         time.Now,
	}
}

// SetOnline 更新用户某类连接的状态
func (m *Manager) SetOnline(ctx context.Context, user identity.StorageKey, connType string, online bool) error {
	now := m.now()

	m.mutex.Lock()
	status, ok := m.statusCache[user]
	if !ok {
		status = &UserStatus{AccountID: user.String()}
		m.statusCache[user] = status
	}
	status.LastActive = now

	switch connType {
	case ConnHTTP:
		status.Connections.HTTP = online
	case ConnWebSocket:
		status.Connections.WebSocket = online
	case ConnAll:
		status.Connections.HTTP = online
		status.Connections.WebSocket = online
	}
	status.Online = status.Connections.HTTP || status.Connections.WebSocket
	snapshot := *status
	m.mutex.Unlock()

	if m.redisClient == nil {
		return nil
	}
	return m.syncToRedis(ctx, snapshot)
}

// syncToRedis 将状态同步到Redis
func (m *Manager) syncToRedis(ctx context.Context, status UserStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("序列化用户状态失败: %w", err)
	}

	statusKey := fmt.Sprintf(constants.RedisKeyUserStatus, status.AccountID)
	_, err = m.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, statusKey, data, statusTTL)
		// 在线集合按最后活跃时间打分，过期成员由 CleanupExpired 清理
		if status.Online {
			pipe.ZAdd(ctx, constants.RedisKeyOnlineUsers, &redis.Z{
				Score:  float64(status.LastActive.Unix()),
				Member: status.AccountID,
			})
		} else {
			pipe.ZRem(ctx, constants.RedisKeyOnlineUsers, status.AccountID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("同步用户状态到Redis失败: %w", err)
	}
	return nil
}

// Status 获取用户状态。先查本地缓存，再查 Redis，都没有时视为离线
func (m *Manager) Status(ctx context.Context, user identity.StorageKey) UserStatus {
	now := m.now()

	m.mutex.RLock()
	if status, ok := m.statusCache[user]; ok && now.Sub(status.LastActive) < statusTTL {
		result := *status
		m.mutex.RUnlock()
		return result
	}
	m.mutex.RUnlock()

	if m.redisClient != nil {
		data, err := m.redisClient.Get(ctx, fmt.Sprintf(constants.RedisKeyUserStatus, user)).Bytes()
		switch {
		case err == nil:
			var status UserStatus
			if err := json.Unmarshal(data, &status); err == nil && now.Sub(status.LastActive) < statusTTL {
				return status
			}
		case err != redis.Nil:
			m.log.Warnw("读取用户状态失败", "user", user, "error", err)
		}
	}

	return UserStatus{AccountID: user.String()}
}

// IsOnline 检查用户是否在线
func (m *Manager) IsOnline(ctx context.Context, user identity.StorageKey) bool {
	return m.Status(ctx, user).Online
}

// OnlineUsers 获取所有在线用户
func (m *Manager) OnlineUsers(ctx context.Context) ([]string, error) {
	cutoff := m.now().Add(-statusTTL)

	if m.redisClient == nil {
		m.mutex.RLock()
		defer m.mutex.RUnlock()

		var users []string
		for user, status := range m.statusCache {
			if status.Online && status.LastActive.After(cutoff) {
				users = append(users, user.String())
			}
		}
		return users, nil
	}

	users, err := m.redisClient.ZRangeByScore(ctx, constants.RedisKeyOnlineUsers, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff.Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("获取在线用户列表失败: %w", err)
	}
	return users, nil
}

// CleanupExpired 清理过期的用户状态，返回清理的本地条目数
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-statusTTL)

	m.mutex.Lock()
	removed := 0
	for user, status := range m.statusCache {
		if status.LastActive.Before(cutoff) {
			delete(m.statusCache, user)
			removed++
		}
	}
	m.mutex.Unlock()

	if m.redisClient == nil {
		return removed, nil
	}
	// 状态键自带过期时间，在线集合需要手动清理
	err := m.redisClient.ZRemRangeByScore(ctx, constants.RedisKeyOnlineUsers,
		"-inf", "("+strconv.FormatInt(cutoff.Unix(), 10)).Err()
	if err != nil {
		return removed, fmt.Errorf("清理在线用户集合失败: %w", err)
	}
	return removed, nil
}
