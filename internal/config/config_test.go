package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8082, cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, BackendMemory, cfg.Index.Backend)
	assert.Equal(t, 3, cfg.Retry.SummaryAttempts)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: 9000
store:
  backend: mysql
  timeout: 2s
index:
  backend: redis
retry:
  summary_attempts: 5
redis:
  host: cache.internal
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("MESSENGER_JWT_SECRET", "from-env")
	t.Setenv("MESSENGER_REDIS_PORT", "6380")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, BackendMySQL, cfg.Store.Backend)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, BackendRedis, cfg.Index.Backend)
	assert.Equal(t, 5, cfg.Retry.SummaryAttempts)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr())
	// 未配置的字段保持默认值
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.InitialInterval)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Store.Backend = "cassandra"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Notify.Driver = NotifyKafka
	assert.Error(t, cfg.Validate())
	cfg.Notify.KafkaBrokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Retry.SummaryAttempts = 0
	assert.Error(t, cfg.Validate())
}
