package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOptions tunes the distributed lock.
type RedisOptions struct {
	// Prefix is prepended to every key, e.g. "erp:lock:".
	Prefix string
	// TTL bounds how long a crashed holder can keep the lock.
	TTL time.Duration
	// RetryEvery is the linear backoff between attempts while waiting.
	RetryEvery time.Duration
}

// Redis is a Locker shared by every instance connected to the same Redis.
type Redis struct {
	client *redislock.Client
	opts   RedisOptions
	log    *logrus.Logger
}

func NewRedis(rdb redis.UniversalClient, opts RedisOptions, log *logrus.Logger) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = 25 * time.Millisecond
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Redis{client: redislock.New(rdb), opts: opts, log: log}
}

func (r *Redis) Acquire(ctx context.Context, key string, wait time.Duration) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	retry := redislock.LinearBackoff(r.opts.RetryEvery)
	if wait <= 0 {
		retry = redislock.NoRetry()
		wait = r.opts.TTL
	}
	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	token := uuid.NewString()
	lk, err := r.client.Obtain(wctx, r.opts.Prefix+key, r.opts.TTL, &redislock.Options{
		RetryStrategy: retry,
		Metadata:      token,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, redislock.ErrNotObtained) || wctx.Err() != nil {
			return nil, ErrNotAcquired
		}
		return nil, err
	}

	var released bool
	return func() {
		if released {
			return
		}
		released = true
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.log.WithFields(logrus.Fields{
				"module": "lock",
				"key":    r.opts.Prefix + key,
				"token":  token,
			}).WithError(err).Warn("release redis lock")
		}
	}, nil
}
