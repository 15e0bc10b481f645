// Package cache establishes the Redis connection backing the live-update
// feed. The client is used for pub/sub only, never as a read-through cache,
// so a failed connection is survivable: callers receive nil and run degraded.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"tableside/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// errorCounter increments the Redis error counter per command. The feed only
// issues single commands (SUBSCRIBE, PUBLISH, PING), so pipeline traffic is
// passed through uncounted.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

// Connect dials Redis at addr, which may be a bare host:port or a redis://
// URL. It returns nil when the address is invalid or the server does not
// answer a ping; live updates then degrade to polling.
func Connect(addr string) *redis.Client {
	opts, err := parseAddr(addr)
	if err != nil {
		observability.GlobalLogger.Warn("redis unavailable, live updates degraded",
			"addr", addr, "error", err.Error())
		return nil
	}

	client := redis.NewClient(opts)
	client.AddHook(errorCounter{})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		observability.GlobalLogger.Warn("redis unavailable, live updates degraded",
			"addr", addr, "error", err.Error())
		_ = client.Close()
		return nil
	}

	observability.GlobalLogger.Info("redis connected", "addr", opts.Addr)
	return client
}

func parseAddr(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		return redis.ParseURL(addr)
	}
	return &redis.Options{Addr: addr}, nil
}
