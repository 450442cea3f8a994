package registry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBeginIssuesUniqueStates(t *testing.T) {
	t.Parallel()

	r := New(time.Minute)
	principal := uuid.New()

	first, err := r.Begin(principal, "Steve")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := r.Begin(principal, "Steve")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.Equal(t, 2, r.PendingCount())
}

func TestConsumeIsSingleUse(t *testing.T) {
	t.Parallel()

	r := New(time.Minute)
	principal := uuid.New()

	state, err := r.Begin(principal, "Alex")
	require.NoError(t, err)

	entry, ok := r.Consume(state)
	require.True(t, ok)
	require.Equal(t, principal, entry.PrincipalID)
	require.Equal(t, "Alex", entry.DisplayName)
	require.Equal(t, state, entry.StateToken)

	_, ok = r.Consume(state)
	require.False(t, ok, "second consumption must fail")
}

func TestConsumeUnknownState(t *testing.T) {
	t.Parallel()

	r := New(time.Minute)
	_, ok := r.Consume("never-issued")
	require.False(t, ok)
}

func TestExpiredEntriesAreNotRedeemable(t *testing.T) {
	t.Parallel()

	now := time.Now()
	current := now
	r := New(10 * time.Minute).WithClock(func() time.Time { return current })

	state, err := r.Begin(uuid.New(), "Steve")
	require.NoError(t, err)

	// Just inside the TTL still redeems.
	current = now.Add(10*time.Minute - time.Second)
	_, ok := r.Consume(state)
	require.True(t, ok)

	// Exactly at the TTL boundary the entry is already gone.
	state, err = r.Begin(uuid.New(), "Alex")
	require.NoError(t, err)
	issued := current
	current = issued.Add(10 * time.Minute)
	_, ok = r.Consume(state)
	require.False(t, ok)

	// And past it, naturally.
	state, err = r.Begin(uuid.New(), "Herobrine")
	require.NoError(t, err)
	current = current.Add(10*time.Minute + time.Second)
	_, ok = r.Consume(state)
	require.False(t, ok)
}

func TestBeginSweepsExpiredEntries(t *testing.T) {
	t.Parallel()

	now := time.Now()
	current := now
	r := New(10 * time.Minute).WithClock(func() time.Time { return current })

	for range 3 {
		_, err := r.Begin(uuid.New(), "old")
		require.NoError(t, err)
	}
	require.Equal(t, 3, r.PendingCount())

	current = now.Add(11 * time.Minute)
	_, err := r.Begin(uuid.New(), "fresh")
	require.NoError(t, err)

	// Only the fresh entry survives the sweep.
	require.Equal(t, 1, r.PendingCount())
}

func TestConcurrentConsumeExactlyOnce(t *testing.T) {
	t.Parallel()

	r := New(time.Minute)
	state, err := r.Begin(uuid.New(), "Steve")
	require.NoError(t, err)

	const goroutines = 32
	var (
		wins  atomic.Int32
		start = make(chan struct{})
		wg    sync.WaitGroup
	)

	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			<-start
			if _, ok := r.Consume(state); ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), wins.Load(), "exactly one consumer may win")
}
