package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	first, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, store.Release(ctx, "evt_1"))
	afterRelease, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, afterRelease)
}

func TestMemoryIdempotencyStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryIdempotencyStore(time.Hour)
	store.now = func() time.Time { return now }

	_, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	fresh, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestRedisIdempotencyStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisIdempotencyStore(client, time.Minute)

	first, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, again)

	ttl, err := client.TTL(ctx, "stripe:event:evt_1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Release(ctx, "evt_1"))
	afterRelease, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, afterRelease)
}
