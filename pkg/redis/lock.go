package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/identity"
)

var (
	// ErrLockNotAcquired is returned when a lock cannot be acquired
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when trying to release a lock not held
	ErrLockNotHeld = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Lock is a held distributed lock
type Lock struct {
	client *Client
	key    string
	value  string
	ttl    time.Duration
}

// Locker provides distributed locking with SET NX and an owner token
type Locker struct {
	client      *Client
	keyPrefix   string
	ttl         time.Duration
	waitTimeout time.Duration
}

// NewLocker creates a Locker. ttl bounds how long a crashed holder can block others;
// waitTimeout bounds how long Lock waits for a busy key.
func NewLocker(client *Client, keyPrefix string, ttl, waitTimeout time.Duration) *Locker {
	if keyPrefix == "" {
		keyPrefix = "clover:lock:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Second
	}
	return &Locker{
		client:      client,
		keyPrefix:   keyPrefix,
		ttl:         ttl,
		waitTimeout: waitTimeout,
	}
}

var _ identity.Locker = (*Locker)(nil)

// Acquire attempts to acquire a lock once
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	defer observe("lock_acquire", time.Now())

	lockKey := l.keyPrefix + key
	lockValue := uuid.New().String()

	ok, err := l.client.rdb.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).Debugf("Acquired lock: %s", key)

	return &Lock{
		client: l.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// TryAcquire retries Acquire with capped exponential backoff until timeout
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration, timeout time.Duration) (*Lock, error) {
	deadline := time.Now().Add(timeout)
	backoff := 5 * time.Millisecond

	for {
		lock, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff = backoff * 2
			if backoff > 250*time.Millisecond {
				backoff = 250 * time.Millisecond
			}
		}
	}
}

// Lock implements identity.Locker. Failures to acquire, including timeouts, are storage failures.
// The lease is renewed every third of the TTL until unlock. If a renewal finds the key gone or owned
// by someone else, the returned context is cancelled with identity.ErrLockLost.
func (l *Locker) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	lock, err := l.TryAcquire(ctx, key, l.ttl, l.waitTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, identity.StorageError(err, "acquire redis lock "+key)
	}

	held, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(held, lock, stop, cancel)
	}()

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel(nil)

			// release on a fresh context so a cancelled request still frees the key
			releaseCtx, cancelRelease := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelRelease()
			if err := lock.Release(releaseCtx); err != nil {
				l.client.logger.WithContext(ctx).WithError(err).Warnf("Failed to release lock: %s", key)
			}
		})
	}, nil
}

func (l *Locker) keepAlive(ctx context.Context, lock *Lock, stop <-chan struct{}, lost context.CancelCauseFunc) {
	interval := max(lock.ttl/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		extendCtx, cancel := context.WithTimeout(context.Background(), interval)
		err := lock.Extend(extendCtx, lock.ttl)
		cancel()
		if err == nil {
			continue
		}

		l.client.logger.WithContext(ctx).WithError(err).Errorf("Lost lock: %s", lock.key)
		lost(errors.Join(identity.ErrLockLost, err))
		return
	}
}

// Release releases the lock if this holder still owns it
func (lock *Lock) Release(ctx context.Context) error {
	defer observe("lock_release", time.Now())

	result, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.client.logger.WithContext(ctx).Debugf("Released lock: %s", lock.key)
	return nil
}

// Extend resets the lock's TTL if this holder still owns it
func (lock *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	defer observe("lock_extend", time.Now())

	result, err := extendScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	lock.ttl = ttl
	return nil
}
