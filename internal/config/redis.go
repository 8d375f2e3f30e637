package config

// Redis backs distributed rate limiting, the HTTP response cache and the
// free-window cache. If the server cannot be reached at startup
// NewRedisClient returns nil and callers degrade to in-process behaviour.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig is read from REDIS_*. Addr is a host:port shorthand; Host and
// Port take precedence when both are set.
type RedisConfig struct {
	Disabled bool   `envconfig:"DISABLED" default:"false"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
	TLS      bool   `envconfig:"TLS" default:"false"`
}

func (c RedisConfig) address() string {
	if c.Host != "" && c.Port != "" {
		return c.Host + ":" + c.Port
	}
	return c.Addr
}

// NewRedisClient connects and pings with a short timeout. The returned
// client is nil when Redis is disabled or unreachable.
func NewRedisClient(c RedisConfig, log *zap.Logger) *redis.Client {
	if c.Disabled {
		log.Info("redis disabled")
		return nil
	}
	var tlsConf *tls.Config
	if c.TLS {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      c.address(),
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, continuing without it", zap.String("addr", c.address()), zap.Error(err))
		_ = client.Close()
		return nil
	}
	log.Info("redis connected", zap.String("addr", c.address()))
	return client
}
