// Package catalog serves immutable snapshots of the game collection. A
// snapshot is loaded once per TTL window and shared by every reader;
// concurrent loads of an expired snapshot collapse into one store read.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cdtdelta/backlog/internal/database"
	"github.com/cdtdelta/backlog/internal/model"
	"github.com/cdtdelta/backlog/internal/table"
)

// DefaultTTL matches the shared-cache lifetime of the games API.
const DefaultTTL = 10 * time.Minute

// Source lists every stored game. database.Store implements it.
type Source interface {
	ListGames(ctx context.Context) ([]*model.Game, error)
}

// Snapshot is one immutable load of the collection. Callers must not modify
// the games it holds.
type Snapshot struct {
	Games    []*model.Game
	Played   []*model.Game
	Backlog  []*model.Game
	LoadedAt time.Time

	byID map[string]*model.Game
}

// NewSnapshot partitions games into the played and backlog views.
func NewSnapshot(games []*model.Game, loadedAt time.Time) *Snapshot {
	played, backlog := model.Partition(games)
	byID := make(map[string]*model.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}
	return &Snapshot{
		Games:    games,
		Played:   played,
		Backlog:  backlog,
		LoadedAt: loadedAt,
		byID:     byID,
	}
}

// Rows returns the rows shown by the given view.
func (s *Snapshot) Rows(kind table.ViewKind) []*model.Game {
	if kind == table.ViewBacklog {
		return s.Backlog
	}
	return s.Played
}

// Game returns the game with the given id.
func (s *Snapshot) Game(id string) (*model.Game, error) {
	g, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}
	return g, nil
}

// Catalog caches snapshots of a Source.
type Catalog struct {
	src   Source
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
	group singleflight.Group

	mu   sync.RWMutex
	snap *Snapshot
}

// New returns a catalog over src. A ttl of zero or less reloads on every call.
func New(src Source, ttl time.Duration, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{src: src, ttl: ttl, log: log, now: time.Now}
}

// Snapshot returns the current snapshot, loading a new one when the cached
// one has expired. A failed load returns the error; the expired snapshot is
// not served.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.cached(); snap != nil {
		return snap, nil
	}

	ch := c.group.DoChan("snapshot", func() (interface{}, error) {
		if snap := c.cached(); snap != nil {
			return snap, nil
		}
		return c.load(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached snapshot so the next call reloads.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

// Age returns how long ago the cached snapshot was loaded, or false when
// nothing is cached.
func (c *Catalog) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return 0, false
	}
	return c.now().Sub(c.snap.LoadedAt), true
}

func (c *Catalog) cached() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil || c.ttl <= 0 {
		return nil
	}
	if c.now().Sub(c.snap.LoadedAt) >= c.ttl {
		return nil
	}
	return c.snap
}

func (c *Catalog) load(ctx context.Context) (*Snapshot, error) {
	start := c.now()
	games, err := c.src.ListGames(ctx)
	if err != nil {
		c.log.Error("loading games", zap.Error(err))
		return nil, fmt.Errorf("loading games: %w", err)
	}

	snap := NewSnapshot(games, c.now())
	c.log.Debug("loaded snapshot",
		zap.Int("games", len(snap.Games)),
		zap.Int("played", len(snap.Played)),
		zap.Int("backlog", len(snap.Backlog)),
		zap.Duration("took", snap.LoadedAt.Sub(start)),
	)

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return snap, nil
}
