package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"smartqueue/internal/apperr"
	"smartqueue/internal/queue"
)

const (
	defaultLockTTL   = 5 * time.Second
	defaultLockWait  = 3 * time.Second
	defaultLockRetry = 25 * time.Millisecond
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired holder never releases a lock someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a queue.Locker shared by every API instance using the same Redis.
type Locker struct {
	Client *redis.Client
	// TTL bounds how long a crashed holder can block an event.
	TTL   time.Duration
	Wait  time.Duration
	Retry time.Duration
}

var _ queue.Locker = (*Locker)(nil)

func NewLocker(client *redis.Client, ttl, wait time.Duration) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &Locker{Client: client, TTL: ttl, Wait: wait, Retry: defaultLockRetry}
}

func LockKey(eventID string) string {
	return "queue_lock:" + eventID
}

func (l *Locker) Lock(ctx context.Context, eventID string) (func(), error) {
	key := LockKey(eventID)
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.Wait)
	defer cancel()

	retry := l.Retry
	if retry <= 0 {
		retry = defaultLockRetry
	}
	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("acquire %s: %v: %w", key, err, apperr.ErrUnavailable)
		}
		if ok {
			var once sync.Once
			return func() { once.Do(func() { l.release(key, token) }) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock event %s: %w", eventID, queue.ErrLockTimeout)
		case <-time.After(retry):
		}
	}
}

// release runs detached from the caller's context, which may already be done.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.Client, []string{key}, token).Err()
}
