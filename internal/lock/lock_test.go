package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "inv-1", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, l.Held("inv-1"))
}

func TestLocal_TimesOut(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = l.Acquire(context.Background(), "k", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	_, err = l.Acquire(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Equal(t, 1, l.Held("k"))
}

func TestLocal_KeysAreIndependent(t *testing.T) {
	l := NewLocal()
	r1, err := l.Acquire(context.Background(), "a", time.Second)
	require.NoError(t, err)
	r2, err := l.Acquire(context.Background(), "b", 10*time.Millisecond)
	require.NoError(t, err)
	r1()
	r2()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = l.Acquire(ctx, "k", 5*time.Second)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	_, err = l.Acquire(ctx, "other", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_ReleaseIsIdempotent(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	release()
	release()

	again, err := l.Acquire(context.Background(), "k", 10*time.Millisecond)
	require.NoError(t, err)
	again()
}

// Runs against a real server when REDIS_ADDR is set.
func TestRedis_MutualExclusion(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()).Err())

	l := NewRedis(rdb, RedisOptions{Prefix: "erp:test:" + t.Name() + ":", TTL: 5 * time.Second}, nil)
	release, err := l.Acquire(context.Background(), "inv-1", time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), "inv-1", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	release()
	again, err := l.Acquire(context.Background(), "inv-1", time.Second)
	require.NoError(t, err)
	again()
}
