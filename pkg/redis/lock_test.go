package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/clover/pkg/identity"
)

func startRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	portNumber, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	client, err := NewClient(ctx, Config{Host: host, Port: portNumber}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLocker_ExcludesSecondHolder(t *testing.T) {
	client := startRedis(t)
	locker := NewLocker(client, "test:", time.Minute, 50*time.Millisecond)
	ctx := context.Background()

	_, unlock, err := locker.Lock(ctx, identity.LockKey)
	require.NoError(t, err)

	_, _, err = locker.Lock(ctx, identity.LockKey)
	require.Error(t, err)
	assert.True(t, identity.IsStorageUnavailable(err))
	assert.ErrorIs(t, err, identity.ErrStorageUnavailable)

	unlock()

	_, again, err := locker.Lock(ctx, identity.LockKey)
	require.NoError(t, err)
	again()
}

func TestLock_ReleaseRequiresOwnership(t *testing.T) {
	client := startRedis(t)
	locker := NewLocker(client, "test:", 20*time.Millisecond, time.Second)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	current, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Release(ctx), ErrLockNotHeld)
	assert.NoError(t, current.Release(ctx))
}

func TestLocker_RenewsLeaseWhileHeld(t *testing.T) {
	client := startRedis(t)
	ttl := 300 * time.Millisecond
	locker := NewLocker(client, "test:", ttl, 50*time.Millisecond)
	ctx := context.Background()

	held, unlock, err := locker.Lock(ctx, identity.LockKey)
	require.NoError(t, err)

	time.Sleep(3 * ttl)

	exists, err := client.rdb.Exists(ctx, "test:"+identity.LockKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists, "key outlives its original TTL")
	assert.NoError(t, held.Err())

	_, _, err = locker.Lock(ctx, identity.LockKey)
	assert.True(t, identity.IsStorageUnavailable(err), "a second holder is still excluded")

	unlock()
	assert.Error(t, held.Err())

	exists, err = client.rdb.Exists(ctx, "test:"+identity.LockKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestLocker_CancelsContextWhenLeaseIsLost(t *testing.T) {
	client := startRedis(t)
	ttl := 300 * time.Millisecond
	locker := NewLocker(client, "test:", ttl, 50*time.Millisecond)
	ctx := context.Background()

	held, unlock, err := locker.Lock(ctx, identity.LockKey)
	require.NoError(t, err)
	defer unlock()

	// another replica takes the key over after it expired
	require.NoError(t, client.rdb.Set(ctx, "test:"+identity.LockKey, "someone-else", time.Minute).Err())

	select {
	case <-held.Done():
	case <-time.After(2 * ttl):
		t.Fatal("held context was not cancelled after the lease was lost")
	}
	assert.ErrorIs(t, context.Cause(held), identity.ErrLockLost)
}
