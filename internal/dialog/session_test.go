package dialog

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreOneContextPerSender(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	sc, err := store.Get(ctx, "263770000000")
	require.NoError(t, err)
	assert.Nil(t, sc)

	require.NoError(t, store.Put(ctx, &SessionContext{
		Sender: "263770000000", Flow: FlowBooking, Step: StepSelectService,
	}))
	require.NoError(t, store.Put(ctx, &SessionContext{
		Sender: "263770000000", Flow: FlowBooking, Step: StepDateInput,
	}))

	sc, err = store.Get(ctx, "263770000000")
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, StepDateInput, sc.Step)

	require.NoError(t, store.Delete(ctx, "263770000000"))
	sc, err = store.Get(ctx, "263770000000")
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &SessionContext{Sender: "s", Flow: FlowBooking, Step: StepPreview}))
	sc, err := store.Get(ctx, "s")
	require.NoError(t, err)
	sc.Step = StepNameInput

	again, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, StepPreview, again.Step)
}

func TestMemoryStoreTurnLock(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	ok, err := store.TryLock(ctx, "s")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TryLock(ctx, "s")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Unlock(ctx, "s"))
	ok, err = store.TryLock(ctx, "s")
	require.NoError(t, err)
	assert.True(t, ok)
}

func newRedisStore(t *testing.T) *RedisSessionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	sc, err := store.Get(ctx, "263770000000")
	require.NoError(t, err)
	assert.Nil(t, sc)

	require.NoError(t, store.Put(ctx, &SessionContext{
		Sender:   "263770000000",
		Flow:     FlowManage,
		Step:     StepReschedulingReason,
		FullName: "Jane Doe",
		Date:     "2099-01-01",
	}))

	sc, err = store.Get(ctx, "263770000000")
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, FlowManage, sc.Flow)
	assert.Equal(t, StepReschedulingReason, sc.Step)
	assert.Equal(t, "2099-01-01", sc.Date)

	require.NoError(t, store.Delete(ctx, "263770000000"))
	sc, err = store.Get(ctx, "263770000000")
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestRedisStorePutRequiresSender(t *testing.T) {
	store := newRedisStore(t)
	assert.Error(t, store.Put(context.Background(), &SessionContext{}))
}

func TestRedisStoreTurnLock(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	ok, err := store.TryLock(ctx, "s")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TryLock(ctx, "s")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Unlock(ctx, "s"))
	ok, err = store.TryLock(ctx, "s")
	require.NoError(t, err)
	assert.True(t, ok)
}
