package database

import (
	"context"
	"errors"

	"github.com/cdtdelta/backlog/internal/model"
)

// ErrNotFound is returned when a game id is not in the store.
var ErrNotFound = errors.New("game not found")

// Store defines the interface for all database operations.
// The catalog and the App depend on the interface, not on a concrete
// database type. Games are stored as whole documents keyed by id.
type Store interface {
	// Writes are upserts keyed by the game id.
	InsertGame(ctx context.Context, g *model.Game) error
	InsertGames(ctx context.Context, games []*model.Game, onProgress func(int)) (int, error)

	ListGames(ctx context.Context) ([]*model.Game, error)
	GetGame(ctx context.Context, id string) (*model.Game, error)
	CountGames(ctx context.Context) (int64, error)

	// Schema and maintenance
	Migrate() error

	// Lifecycle
	Close() error
	Path() string
}
