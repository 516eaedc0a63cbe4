package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdtdelta/backlog/internal/database"
	"github.com/cdtdelta/backlog/internal/model"
	"github.com/cdtdelta/backlog/internal/table"
)

type fakeSource struct {
	calls   atomic.Int32
	games   []*model.Game
	err     error
	release chan struct{}
}

func (f *fakeSource) ListGames(ctx context.Context) ([]*model.Game, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.games, nil
}

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

func sampleGames() []*model.Game {
	d := time.Date(2023, 4, 2, 0, 0, 0, 0, time.UTC)
	return []*model.Game{
		{ID: "played", Title: "Outer Wilds", FinishedDate: &d},
		{ID: "playing", Title: "Hades", Finished: model.StatusHappening},
		{ID: "backlog", Title: "Celeste"},
		{ID: "excluded", Title: "Meh", NotPollable: model.NotPollableExcluded},
	}
}

func newTestCatalog(src Source, ttl time.Duration) (*Catalog, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := New(src, ttl, nil)
	c.now = clock.Now
	return c, clock
}

func TestSnapshotPartitions(t *testing.T) {
	snap := NewSnapshot(sampleGames(), time.Time{})

	assert.Len(t, snap.Games, 4)
	assert.Equal(t, []string{"played", "playing"}, ids(snap.Rows(table.ViewPlayed)))
	assert.Equal(t, []string{"backlog"}, ids(snap.Rows(table.ViewBacklog)))

	g, err := snap.Game("excluded")
	require.NoError(t, err)
	assert.Equal(t, "Meh", g.Title)

	_, err = snap.Game("nope")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestSnapshotCachedWithinTTL(t *testing.T) {
	src := &fakeSource{games: sampleGames()}
	c, clock := newTestCatalog(src, time.Minute)
	ctx := context.Background()

	first, err := c.Snapshot(ctx)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	second, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())

	age, ok := c.Age()
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, age)

	clock.Advance(30 * time.Second)
	third, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSnapshotInvalidate(t *testing.T) {
	src := &fakeSource{games: sampleGames()}
	c, _ := newTestCatalog(src, time.Hour)
	ctx := context.Background()

	_, err := c.Snapshot(ctx)
	require.NoError(t, err)
	c.Invalidate()

	_, ok := c.Age()
	assert.False(t, ok)

	_, err = c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSnapshotZeroTTLAlwaysReloads(t *testing.T) {
	src := &fakeSource{games: sampleGames()}
	c, _ := newTestCatalog(src, 0)

	for i := 0; i < 3; i++ {
		_, err := c.Snapshot(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestSnapshotLoadError(t *testing.T) {
	boom := errors.New("connection refused")
	src := &fakeSource{games: sampleGames()}
	c, clock := newTestCatalog(src, time.Minute)

	_, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	src.err = boom
	clock.Advance(2 * time.Minute)
	_, err = c.Snapshot(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSnapshotCoalescesConcurrentLoads(t *testing.T) {
	src := &fakeSource{games: sampleGames(), release: make(chan struct{})}
	c, _ := newTestCatalog(src, time.Minute)

	const readers = 8
	var wg sync.WaitGroup
	snaps := make([]*Snapshot, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], errs[i] = c.Snapshot(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, snaps[0], snaps[i])
	}
}

func TestSnapshotCallerCancel(t *testing.T) {
	src := &fakeSource{games: sampleGames(), release: make(chan struct{})}
	c, _ := newTestCatalog(src, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The shared load keeps running for other callers.
	close(src.release)
	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Games, 4)
}

func ids(games []*model.Game) []string {
	out := make([]string, len(games))
	for i, g := range games {
		out[i] = g.ID
	}
	return out
}
