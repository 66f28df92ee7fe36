// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the settings shared by the server and the historian.
type Config struct {
	Port          string
	RedisAddr     string
	RedisDB       int
	DatabaseURL   string
	SessionTTL    time.Duration
	TurnCountdown time.Duration
	TurnBuffer    time.Duration
	// TokenExpire of 0 issues tokens that never expire.
	TokenExpire time.Duration
	LogLevel    logrus.Level
	QueueName   string

	HistorianBatchSize  int
	HistorianFlushDelay time.Duration
	GameInactivity      time.Duration
}

// DefaultQueueName is the Redis list the game action log is pushed to.
const DefaultQueueName = "suspense_actions"

// Load reads the configuration from the environment, falling back to defaults
// for anything unset or unparsable.
func Load() Config {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	tokenExpire := time.Duration(0)
	if v := os.Getenv("TOKEN_EXPIRE_TIME"); v != "" && v != "never" && v != "0" {
		tokenExpire = getEnvDuration("TOKEN_EXPIRE_TIME", 0)
	}

	return Config{
		Port:          getEnv("PORT", "8080"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 4*time.Hour),
		TurnCountdown: getEnvDuration("TURN_COUNTDOWN", 60*time.Second),
		TurnBuffer:    getEnvDuration("TURN_BUFFER", 10*time.Second),
		TokenExpire:   tokenExpire,
		LogLevel:      level,
		QueueName:     getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),

		HistorianBatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		GameInactivity:      time.Duration(getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
	}
}

// TurnTimeout is how long the server waits for a human: the countdown shown
// to the client plus the grace buffer.
func (c Config) TurnTimeout() time.Duration {
	return c.TurnCountdown + c.TurnBuffer
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
