package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisOptions struct {
	Expiry     time.Duration // kilidin kendiliğinden düşme süresi
	Tries      int
	RetryDelay time.Duration
}

func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Expiry:     10 * time.Second,
		Tries:      20,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Redis is a distributed Locker (redsync) for deployments with more than one
// API instance.
type Redis struct {
	rs     *redsync.Redsync
	opts   RedisOptions
	logger *zap.Logger
}

func NewRedis(client goredislib.UniversalClient, opts RedisOptions, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Tries < 1 {
		opts.Tries = 1
	}
	return &Redis{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}
}

func (r *Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	mutex := r.rs.NewMutex(key,
		redsync.WithExpiry(r.opts.Expiry),
		redsync.WithTries(r.opts.Tries),
		redsync.WithRetryDelay(r.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		r.logger.Warn("kilit alınamadı", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
	}

	defer func() {
		// ctx iptal edilmiş olsa bile kilidi bırak
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			r.logger.Error("kilit bırakılamadı", zap.String("key", key), zap.Bool("ok", ok), zap.Error(err))
		}
	}()

	return fn(ctx)
}
