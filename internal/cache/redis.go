package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/metrics"
)

// RedisConfig configures the shared Redis tier.
type RedisConfig struct {
	KeyPrefix        string
	OpTimeout        time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultRedisConfig returns the settings used when none are given.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		KeyPrefix:        "url:",
		OpTimeout:        200 * time.Millisecond,
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
	}
}

type lookup struct {
	value string
	found bool
}

// Redis is a Shared store over go-redis. Once FailureThreshold consecutive
// calls fail, the breaker opens and calls fail fast until OpenTimeout passes.
type Redis struct {
	client  *redis.Client
	cfg     RedisConfig
	breaker *gobreaker.CircuitBreaker[lookup]
}

func NewRedis(client *redis.Client, cfg RedisConfig, log *logger.Logger) *Redis {
	def := DefaultRedisConfig()
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	settings := gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A caller that gave up says nothing about Redis health.
		IsSuccessful: func(err error) bool {
			var done callerDoneError
			return err == nil || errors.As(err, &done)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CacheBreakerState.Set(float64(to))
			log.Warn("shared cache breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Redis{
		client:  client,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[lookup](settings),
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := r.execute(ctx, func(ctx context.Context) (lookup, error) {
		value, err := r.client.Get(ctx, r.key(key)).Result()
		if errors.Is(err, redis.Nil) {
			return lookup{}, nil
		}
		if err != nil {
			return lookup{}, err
		}
		return lookup{value: value, found: true}, nil
	})
	if err != nil {
		return "", false, err
	}
	return res.value, res.found, nil
}

// Set stores value without expiry; Redis's own maxmemory policy evicts.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	_, err := r.execute(ctx, func(ctx context.Context) (lookup, error) {
		return lookup{}, r.client.Set(ctx, r.key(key), value, 0).Err()
	})
	return err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	_, err := r.execute(ctx, func(ctx context.Context) (lookup, error) {
		return lookup{}, r.client.Del(ctx, r.key(key)).Err()
	})
	return err
}

// callerDoneError marks a failure caused by the caller's own context ending
// rather than by Redis.
type callerDoneError struct{ err error }

func (e callerDoneError) Error() string { return e.err.Error() }
func (e callerDoneError) Unwrap() error { return e.err }

// execute runs op through the breaker under the per-operation timeout.
// Failures after the caller's ctx has ended are not counted against Redis;
// only the op timeout is.
func (r *Redis) execute(ctx context.Context, op func(ctx context.Context) (lookup, error)) (lookup, error) {
	return r.breaker.Execute(func() (lookup, error) {
		if err := ctx.Err(); err != nil {
			return lookup{}, callerDoneError{err}
		}

		opCtx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
		defer cancel()

		res, err := op(opCtx)
		if err != nil && ctx.Err() != nil {
			return lookup{}, callerDoneError{err}
		}
		return res, err
	})
}

// State reports the breaker state.
func (r *Redis) State() gobreaker.State {
	return r.breaker.State()
}

func (r *Redis) key(k string) string {
	return r.cfg.KeyPrefix + k
}
