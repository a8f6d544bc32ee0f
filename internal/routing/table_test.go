package routing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func TestRecordResolveConsume(t *testing.T) {
	tbl := NewTable(Options{})
	tbl.Record(501, 42)

	uid, ok := tbl.Resolve(501)
	require.True(t, ok)
	require.Equal(t, int64(42), uid)

	uid, st := tbl.Consume(501)
	require.Equal(t, Resolved, st)
	require.Equal(t, int64(42), uid)
	require.NoError(t, st.Err())

	_, ok = tbl.Resolve(501)
	require.False(t, ok)

	_, st = tbl.Consume(501)
	require.Equal(t, Stale, st)
	require.ErrorIs(t, st.Err(), ErrStaleRoutingReference)

	_, st = tbl.Consume(999)
	require.Equal(t, Unknown, st)
	require.NoError(t, st.Err())
}

func TestRecordOverwrites(t *testing.T) {
	tbl := NewTable(Options{})
	tbl.Record(7, 1)
	tbl.Record(7, 2)
	uid, _ := tbl.Resolve(7)
	require.Equal(t, int64(2), uid)

	tbl.Consume(7)
	tbl.Record(7, 3)
	uid, st := tbl.Consume(7)
	require.Equal(t, Resolved, st)
	require.Equal(t, int64(3), uid)
}

func TestConsumeExactlyOnce(t *testing.T) {
	tbl := NewTable(Options{})
	tbl.Record(501, 42)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, st := tbl.Consume(501); st == Resolved {
				mu.Lock()
				resolved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, resolved)
}

func TestSweepExpiresByTTL(t *testing.T) {
	clock := newClock()
	tbl := NewTable(Options{TTL: time.Hour, Now: clock.Now})
	tbl.Record(1, 10)
	tbl.Record(2, 20)
	tbl.Consume(2)

	clock.Advance(30 * time.Minute)
	tbl.Record(3, 30)
	clock.Advance(45 * time.Minute)

	res := tbl.Sweep(clock.Now())
	require.Equal(t, 1, res.Expired)
	require.Equal(t, 1, res.Tombstones)
	require.Equal(t, 1, tbl.Len())

	_, st := tbl.Consume(1)
	require.Equal(t, Unknown, st)
	_, st = tbl.Consume(2)
	require.Equal(t, Unknown, st)
	_, st = tbl.Consume(3)
	require.Equal(t, Resolved, st)
}

func TestSweepTrimsOldestAboveCap(t *testing.T) {
	clock := newClock()
	tbl := NewTable(Options{MaxEntries: 3, Now: clock.Now})
	for id := 1; id <= 5; id++ {
		tbl.Record(id, int64(id*10))
		clock.Advance(time.Second)
	}

	res := tbl.Sweep(clock.Now())
	require.Equal(t, 2, res.Evicted)
	require.Equal(t, 3, tbl.Len())
	for _, id := range []int{1, 2} {
		_, ok := tbl.Resolve(id)
		require.False(t, ok, "id %d should be evicted", id)
	}
	for _, id := range []int{3, 4, 5} {
		_, ok := tbl.Resolve(id)
		require.True(t, ok, "id %d should survive", id)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tbl := NewTable(Options{SweepInterval: time.Millisecond, TTL: time.Nanosecond})
	tbl.Record(1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tbl.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return tbl.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "resolved", Resolved.String())
	require.Equal(t, "stale", Stale.String())
	require.Equal(t, "unknown", Unknown.String())
}
