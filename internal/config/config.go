package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server struct {
		Port     int    `yaml:"port"`
		TLS      bool   `yaml:"tls"`
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
		// AllowOrigins CORS 允许的来源
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"server"`

	Database struct {
		MySQL struct {
			DSN string `yaml:"dsn"` // Data Source Name
		} `yaml:"mysql"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		Issuer string `yaml:"issuer"`
	} `yaml:"jwt"`

	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	// Store 消息账本后端
	Store struct {
		Backend string        `yaml:"backend"` // memory | mysql
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"store"`

	// Index 会话摘要索引后端
	Index struct {
		Backend string `yaml:"backend"` // memory | redis
	} `yaml:"index"`

	Retry struct {
		SummaryAttempts int           `yaml:"summary_attempts"`
		InitialInterval time.Duration `yaml:"initial_interval"`
	} `yaml:"retry"`

	Breaker struct {
		MaxFailures uint32        `yaml:"max_failures"`
		OpenTimeout time.Duration `yaml:"open_timeout"`
	} `yaml:"breaker"`

	Notify struct {
		Driver       string   `yaml:"driver"` // log | redis | kafka
		Channel      string   `yaml:"channel"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
		QueueSize    int      `yaml:"queue_size"`
	} `yaml:"notify"`

	Media struct {
		Enabled    bool          `yaml:"enabled"`
		Bucket     string        `yaml:"bucket"`
		Region     string        `yaml:"region"`
		PublicRead bool          `yaml:"public_read"`
		PresignTTL time.Duration `yaml:"presign_ttl"`
	} `yaml:"media"`

	RateLimit struct {
		PerMinute int `yaml:"per_minute"`
		Burst     int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Log struct {
		Development bool `yaml:"development"`
	} `yaml:"log"`
}

// 后端名称
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"

	NotifyLog   = "log"
	NotifyRedis = "redis"
	NotifyKafka = "kafka"
)

// Default 返回开发环境默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8082
	cfg.Server.CertFile = "./certs/server.crt"
	cfg.Server.KeyFile = "./certs/server.key"
	cfg.Server.AllowOrigins = []string{"http://localhost:3000"}
	cfg.Database.MySQL.DSN = "root:123456@tcp(127.0.0.1:3306)/messenger?charset=utf8mb4&parseTime=True&loc=Local"
	cfg.JWT.Secret = "default_secret_key_for_development"
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = 6379
	cfg.Store.Backend = BackendMemory
	cfg.Store.Timeout = 3 * time.Second
	cfg.Index.Backend = BackendMemory
	cfg.Retry.SummaryAttempts = 3
	cfg.Retry.InitialInterval = 50 * time.Millisecond
	cfg.Breaker.MaxFailures = 5
	cfg.Breaker.OpenTimeout = 30 * time.Second
	cfg.Notify.Driver = NotifyLog
	cfg.Notify.Channel = "messenger:events"
	cfg.Notify.KafkaTopic = "messenger.message_appended"
	cfg.Notify.QueueSize = 1024
	cfg.Media.Region = "us-east-1"
	cfg.Media.PresignTTL = 15 * time.Minute
	cfg.RateLimit.PerMinute = 120
	cfg.RateLimit.Burst = 20
	return cfg
}

// Load 读取配置文件；文件不存在时使用默认配置。环境变量优先于文件。
func Load(path string) (*Config, error) {
	// .env 不存在不是错误
	_ = godotenv.Load()

	cfg := Default()
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MESSENGER_MYSQL_DSN"); v != "" {
		c.Database.MySQL.DSN = v
	}
	if v := os.Getenv("MESSENGER_REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("MESSENGER_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("MESSENGER_JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if os.Getenv("ENABLE_TLS") == "true" {
		c.Server.TLS = true
	}
	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		c.Server.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		c.Server.KeyFile = v
	}
}

// fillDefaults 补齐配置文件中留空的字段
func (c *Config) fillDefaults() {
	def := Default()
	if c.JWT.Secret == "" {
		c.JWT.Secret = def.JWT.Secret
	}
	if c.Redis.Host == "" {
		c.Redis.Host = def.Redis.Host
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = def.Redis.Port
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = def.Store.Timeout
	}
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = def.Retry.InitialInterval
	}
	if c.Breaker.MaxFailures == 0 {
		c.Breaker.MaxFailures = def.Breaker.MaxFailures
	}
	if c.Breaker.OpenTimeout <= 0 {
		c.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = def.Notify.QueueSize
	}
	if c.Media.PresignTTL <= 0 {
		c.Media.PresignTTL = def.Media.PresignTTL
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendMySQL:
	default:
		return fmt.Errorf("未知的账本后端: %q", c.Store.Backend)
	}
	switch c.Index.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("未知的索引后端: %q", c.Index.Backend)
	}
	switch c.Notify.Driver {
	case NotifyLog, NotifyRedis, NotifyKafka:
	default:
		return fmt.Errorf("未知的通知驱动: %q", c.Notify.Driver)
	}
	if c.Notify.Driver == NotifyKafka && len(c.Notify.KafkaBrokers) == 0 {
		return errors.New("kafka 通知驱动需要配置 kafka_brokers")
	}
	if c.Retry.SummaryAttempts <= 0 {
		return fmt.Errorf("summary_attempts 必须为正数: %d", c.Retry.SummaryAttempts)
	}
	if c.Media.Enabled && c.Media.Bucket == "" {
		return errors.New("启用媒体存储时必须配置 bucket")
	}
	return nil
}

// RedisAddr 返回 host:port
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
