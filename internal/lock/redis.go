package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lease taken over by another holder is never released by mistake.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX PX leases, usable across replicas.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// RedisOption customizes a Redis locker.
type RedisOption func(*Redis)

// WithPrefix sets the key namespace (default "leadbot:lock:").
func WithPrefix(p string) RedisOption { return func(r *Redis) { r.prefix = p } }

// WithRetryInterval sets the polling interval while waiting (default 50ms).
func WithRetryInterval(d time.Duration) RedisOption { return func(r *Redis) { r.retry = d } }

// NewRedis builds a locker whose leases expire after ttl. Acquire gives up
// after wait even if ctx allows longer.
func NewRedis(client redis.UniversalClient, ttl, wait time.Duration, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "leadbot:lock:",
		ttl:    ttl,
		wait:   wait,
		retry:  50 * time.Millisecond,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Acquire polls until the lease is obtained, ctx is done or the wait budget
// is exhausted.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()

	waitCtx := ctx
	if r.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	// reached records whether Redis ever answered; a wait that ends without
	// a single reply is an outage, not contention.
	var reached bool
	var lastErr error
	for {
		ok, err := r.client.SetNX(waitCtx, k, token, r.ttl).Result()
		if err != nil {
			if waitCtx.Err() == nil {
				return nil, fmt.Errorf("lock: redis setnx: %w", err)
			}
			lastErr = err
		} else {
			reached = true
		}
		if ok {
			break
		}
		select {
		case <-waitCtx.Done():
			if !reached && ctx.Err() == nil {
				return nil, fmt.Errorf("lock: redis unreachable: %w", lastErrOr(lastErr, waitCtx.Err()))
			}
			return nil, ErrNotAcquired
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must run even when the request context is already done.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{k}, token).Err(); err != nil {
				log.Warn().Err(err).Str("key", k).Msg("lock release failed")
			}
		})
	}, nil
}

func lastErrOr(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}
