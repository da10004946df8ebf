package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	RedisAddr     string        `env:"REDIS_ADDR,default=redis:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`
	Channel       string        `env:"REALTIME_CHANNEL,default=erpmax:realtime"`
	PingInterval  time.Duration `env:"WS_PING_INTERVAL,default=25s"`
	PongTimeout   time.Duration `env:"WS_PONG_TIMEOUT,default=60s"`
	AuthTimeout   time.Duration `env:"WS_AUTH_TIMEOUT,default=10s"`
	SendBuffer    int           `env:"WS_SEND_BUFFER,default=64"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if strings.TrimSpace(cfg.RedisAddr) == "" {
		errors = append(errors, "REDIS_ADDR is required")
	}
	if cfg.RedisDB < 0 {
		errors = append(errors, "REDIS_DB must be non-negative")
	}
	if strings.TrimSpace(cfg.Channel) == "" {
		errors = append(errors, "REALTIME_CHANNEL is required")
	}
	if cfg.PingInterval <= 0 {
		errors = append(errors, "WS_PING_INTERVAL must be positive")
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		errors = append(errors, "WS_PONG_TIMEOUT must exceed WS_PING_INTERVAL")
	}
	if cfg.AuthTimeout <= 0 {
		errors = append(errors, "WS_AUTH_TIMEOUT must be positive")
	}
	if cfg.SendBuffer < 1 {
		errors = append(errors, "WS_SEND_BUFFER must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// NewRedisClient opens the pub/sub connection and checks it with a ping.
func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
	return client, nil
}
