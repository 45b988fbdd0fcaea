package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, time.Hour, time.Minute), mr
}

func TestClaim_FirstWins(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	first, err := store.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, first)

	second, err := store.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, ClaimInProgress, second)

	assert.Equal(t, time.Minute, mr.TTL(store.Key("evt_1")))
}

func TestComplete_MarksEventDone(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	_, err := store.Claim(ctx, "evt_1")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "evt_1"))

	state, err := store.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, ClaimDone, state)
	assert.Equal(t, time.Hour, mr.TTL(store.Key("evt_1")))

	// the lease no longer applies once done
	mr.FastForward(2 * time.Minute)
	state, err = store.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, ClaimDone, state)
}

func TestClaim_AbandonedLeaseExpires(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	_, err := store.Claim(ctx, "evt_1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	again, err := store.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, again)
}

func TestClaim_DoneExpiresAfterTTL(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Complete(ctx, "evt_1"))
	mr.FastForward(2 * time.Hour)

	again, err := store.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, again)
}

func TestRelease(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.Claim(ctx, "evt_1")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "evt_1"))

	again, err := store.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, again)
}

func TestClaim_RedisDown(t *testing.T) {
	store, mr := setupStore(t)
	mr.Close()

	_, err := store.Claim(context.Background(), "evt_1")
	assert.Error(t, err)
}

func TestNoopClaimer(t *testing.T) {
	var c Claimer = NoopClaimer{}
	state, err := c.Claim(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, state)
	assert.NoError(t, c.Complete(context.Background(), "evt_1"))
	assert.NoError(t, c.Release(context.Background(), "evt_1"))
}
