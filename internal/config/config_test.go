package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "REDIS_ADDR", "REDIS_DB", "DATABASE_URL", "SESSION_TTL",
		"TURN_COUNTDOWN", "TURN_BUFFER", "TOKEN_EXPIRE_TIME", "LOG_LEVEL", "HISTORIAN_QUEUE_NAME"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 4*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 70*time.Second, cfg.TurnTimeout())
	assert.Equal(t, time.Duration(0), cfg.TokenExpire)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, DefaultQueueName, cfg.QueueName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("TURN_COUNTDOWN", "30")
	t.Setenv("TURN_BUFFER", "5s")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SESSION_TTL", "garbage")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 35*time.Second, cfg.TurnTimeout())
	assert.Equal(t, 72*time.Hour, cfg.TokenExpire)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 4*time.Hour, cfg.SessionTTL)
}

func TestTokenNeverExpires(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "never")
	assert.Equal(t, time.Duration(0), Load().TokenExpire)
}
