package shifts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

func TestRedisCloseLockerExcludesConcurrentHolders(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisCloseLocker(client, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	release, err := locker.Acquire(ctx, id)
	require.NoError(t, err)
	require.True(t, mr.Exists(shared.ShiftCloseLockKey(id)))

	_, err = locker.Acquire(ctx, id)
	require.ErrorIs(t, err, ErrCloseInProgress)
	require.ErrorIs(t, err, ErrShiftAlreadyClosed)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = locker.Acquire(ctx, uuid.New())
	require.NoError(t, err, "locks are per shift")

	release()
	require.False(t, mr.Exists(shared.ShiftCloseLockKey(id)))

	release, err = locker.Acquire(ctx, id)
	require.NoError(t, err)
	release()
}

func TestCloseLosingTheLockReportsAlreadyClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	locker := NewRedisCloseLocker(client, time.Minute)
	f.svc.locker = locker
	ctx := context.Background()
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(1000)})
	require.NoError(t, err)

	release, err := locker.Acquire(ctx, shift.ID)
	require.NoError(t, err)
	_, err = f.svc.Close(ctx, f.seller, shift.ID, CloseInput{CountedCash: d(1000)})
	require.ErrorIs(t, err, ErrShiftAlreadyClosed)
	require.Equal(t, StatusOpen, f.repo.shifts[shift.ID].Status)

	release()
	closed, err := f.svc.Close(ctx, f.seller, shift.ID, CloseInput{CountedCash: d(1000)})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
}
