package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"messenger/internal/chat"
	"messenger/internal/config"
	"messenger/internal/database"
	"messenger/internal/inbox"
	"messenger/internal/ledger"
	"messenger/internal/media"
	"messenger/internal/middleware"
	"messenger/internal/notify"
	"messenger/internal/redisclient"
	"messenger/internal/router"
	"messenger/internal/status"
	"messenger/internal/user"
	"messenger/internal/ws"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 后台清理的周期和限流器的空闲时间
const (
	janitorInterval = time.Minute
	limiterIdle     = 10 * time.Minute
)

// Manager 统一服务管理器，按配置组装各组件并负责按顺序关闭
type Manager struct {
	cfg *config.Config
	log *zap.SugaredLogger

	db    *gorm.DB
	redis *redis.Client
	kafka *notify.KafkaPublisher

	directory user.Directory
	chat      *chat.ChatService
	status    *status.Manager
	hub       *ws.Hub
	queue     *notify.Queue
	limiter   *middleware.RateLimiter
	media     media.Store

	stopJanitor context.CancelFunc
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewManager 创建服务管理器。失败时已经创建的资源会被释放
func NewManager(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*Manager, error) {
	m := &Manager{cfg: cfg, log: log}
	if err := m.build(ctx); err != nil {
		m.Shutdown()
		return nil, err
	}
	return m, nil
}

func (m *Manager) build(ctx context.Context) error {
	cfg, log := m.cfg, m.log

	if err := m.connectRedis(ctx); err != nil {
		return err
	}

	var (
		store ledger.Store
		err   error
	)
	switch cfg.Store.Backend {
	case config.BackendMySQL:
		m.db, err = database.InitDB(cfg.Database.MySQL.DSN, log)
		if err != nil {
			return fmt.Errorf("初始化数据库失败: %w", err)
		}
		store = ledger.NewGormStore(m.db)
		m.directory = user.NewAccountService(m.db)
	default:
		store = ledger.NewMemoryStore()
		m.directory = user.NewMemoryDirectory()
	}
	store = ledger.NewGuard(store, ledger.GuardOptions{
		Timeout:     cfg.Store.Timeout,
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}, log)

	var index inbox.Index
	switch cfg.Index.Backend {
	case config.BackendRedis:
		index = inbox.NewRedisIndex(m.redis)
	default:
		index = inbox.NewMemoryIndex()
	}

	m.status = status.NewManager(m.redis, log)
	m.hub = ws.NewHub(m.status, log)

	var sink notify.Dispatcher
	switch cfg.Notify.Driver {
	case config.NotifyRedis:
		sink = notify.NewRedisPublisher(m.redis, cfg.Notify.Channel)
	case config.NotifyKafka:
		m.kafka = notify.NewKafkaPublisher(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		sink = m.kafka
	default:
		sink = notify.NewLogSink(log)
	}
	m.queue = notify.NewQueue(notify.NewPresenceRouter(m.hub, sink, log), cfg.Notify.QueueSize, log)

	m.chat = chat.NewChatService(store, index, m.directory, m.queue, log,
		chat.WithRetryPolicy(chat.RetryPolicy{
			Attempts:        cfg.Retry.SummaryAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			CallTimeout:     cfg.Store.Timeout,
		}),
	)

	m.limiter = middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, log)

	if cfg.Media.Enabled {
		m.media, err = media.NewS3Store(ctx, cfg.Media.Region, cfg.Media.Bucket, cfg.Media.PublicRead, cfg.Media.PresignTTL)
		if err != nil {
			return fmt.Errorf("初始化对象存储失败: %w", err)
		}
	}

	janitorCtx, cancel := context.WithCancel(context.Background())
	m.stopJanitor = cancel
	m.wg.Add(1)
	go m.janitor(janitorCtx)

	log.Infow("服务管理器初始化完成",
		"store", cfg.Store.Backend,
		"index", cfg.Index.Backend,
		"notify", cfg.Notify.Driver,
		"redis", m.redis != nil,
		"media", cfg.Media.Enabled,
	)
	return nil
}

// connectRedis 索引或通知使用 Redis 时连接失败是致命错误，否则只影响跨实例的在线状态
func (m *Manager) connectRedis(ctx context.Context) error {
	required := m.cfg.Index.Backend == config.BackendRedis || m.cfg.Notify.Driver == config.NotifyRedis
	if !required && m.cfg.Redis.Host == "" {
		return nil
	}

	client, err := redisclient.New(ctx, m.cfg.RedisAddr(), m.cfg.Redis.Password, m.cfg.Redis.DB)
	if err != nil {
		if required {
			return err
		}
		m.log.Warnw("Redis 不可用，在线状态只在本实例可见", "addr", m.cfg.RedisAddr(), "error", err)
		return nil
	}
	m.redis = client
	return nil
}

// janitor 定期清理过期的在线状态和空闲的限流器
func (m *Manager) janitor(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := m.limiter.Cleanup(limiterIdle)
			removed, err := m.status.CleanupExpired(ctx)
			if err != nil {
				m.log.Warnw("清理在线状态失败", "error", err)
			}
			m.log.Debugw("后台清理完成", "limiters", n, "statuses", removed)
		}
	}
}

// ChatService 获取聊天服务
func (m *Manager) ChatService() *chat.ChatService { return m.chat }

// Directory 获取账户目录
func (m *Manager) Directory() user.Directory { return m.directory }

// Hub 获取连接管理
func (m *Manager) Hub() *ws.Hub { return m.hub }

// Handlers 组装路由需要的处理器
func (m *Manager) Handlers() router.Handlers {
	h := router.Handlers{
		JWTSecret: m.cfg.JWT.Secret,
		Users:     user.NewHandler(m.directory, m.log),
		Chat:      chat.NewHandler(m.chat, m.log),
		Status:    m.status,
		Hub:       m.hub,
		Limiter:   m.limiter,
	}
	if m.media != nil {
		h.Media = media.NewHandler(m.media, m.log)
	}
	return h
}

// Shutdown 关闭所有服务。HTTP 服务器应该先停止接收请求
func (m *Manager) Shutdown() {
	m.closeOnce.Do(func() {
		m.log.Info("正在关闭服务管理器...")

		if m.stopJanitor != nil {
			m.stopJanitor()
			m.wg.Wait()
		}
		// 先排空通知队列，事件可能还要推给在线连接
		if m.queue != nil {
			m.queue.Close()
		}
		if m.hub != nil {
			m.hub.Close()
		}
		m.closeResources()

		m.log.Info("服务管理器已关闭")
	})
}

func (m *Manager) closeResources() {
	if m.kafka != nil {
		if err := m.kafka.Close(); err != nil {
			m.log.Warnw("关闭 Kafka writer 失败", "error", err)
		}
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			m.log.Warnw("关闭 Redis 失败", "error", err)
		}
	}
	if m.db != nil {
		if err := database.Close(m.db); err != nil {
			m.log.Warnw("关闭数据库失败", "error", err)
		}
	}
}
