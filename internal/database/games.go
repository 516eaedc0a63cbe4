package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cdtdelta/backlog/internal/model"
)

// progressInterval is how many games InsertGames writes between progress callbacks.
const progressInterval = 500

// docStore holds the statements shared by every backend. Each game is kept
// as its JSON document plus the few columns worth indexing.
type docStore struct {
	conn    *sql.DB
	dialect Dialect
}

func (s *docStore) createSchema(indexFields []string) error {
	if indexFields == nil {
		indexFields = DefaultIndexFields
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.dialect.CreateTableSQL()); err != nil {
		return fmt.Errorf("creating games table: %w", err)
	}

	for _, field := range indexFields {
		_, err = tx.Exec(s.dialect.CreateIndexSQL("games_"+field+"_idx", "games", field))
		if err != nil {
			return fmt.Errorf("creating index on %s: %w", field, err)
		}
	}

	return tx.Commit()
}

// migrate applies schema migrations for backward compatibility. A database
// without a games table has nothing to migrate.
func (s *docStore) migrate() error {
	if n, err := s.columnCount("id"); err != nil || n == 0 {
		return err
	}
	count, err := s.columnCount("updated_at")
	if err != nil {
		return err
	}
	if count == 0 {
		if _, err := s.conn.Exec(s.dialect.AddColumnSQL("games", "updated_at", "DATETIME")); err != nil {
			return fmt.Errorf("adding updated_at column: %w", err)
		}
	}
	return nil
}

func (s *docStore) columnCount(column string) (int, error) {
	var count int
	err := s.conn.QueryRow(s.dialect.SchemaCheckColumnSQL("games", column)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("checking games schema: %w", err)
	}
	return count, nil
}

func (s *docStore) upsertArgs(g *model.Game, now time.Time) ([]any, error) {
	if g.ID == "" {
		return nil, errors.New("game has no id")
	}
	doc, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding game %s: %w", g.ID, err)
	}
	var finished any
	if g.FinishedDate != nil {
		finished = g.FinishedDate.UTC()
	}
	return []any{g.ID, g.Title, finished, s.dialect.Document(doc), now}, nil
}

// InsertGame inserts a single game, replacing any stored game with the same id.
func (s *docStore) InsertGame(ctx context.Context, g *model.Game) error {
	args, err := s.upsertArgs(g, time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, s.dialect.UpsertGameSQL(), args...)
	return err
}

// InsertGames upserts a batch of games inside a single transaction.
// The onProgress callback is called every progressInterval games with the
// current count. Pass nil for onProgress if you don't need progress updates.
func (s *docStore) InsertGames(ctx context.Context, games []*model.Game, onProgress func(count int)) (int, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.UpsertGameSQL())
	if err != nil {
		return 0, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, g := range games {
		args, err := s.upsertArgs(g, now)
		if err != nil {
			return inserted, fmt.Errorf("inserting game %d: %w", inserted+1, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return inserted, fmt.Errorf("inserting game %d: %w", inserted+1, err)
		}
		inserted++
		if onProgress != nil && inserted%progressInterval == 0 {
			onProgress(inserted)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("committing transaction: %w", err)
	}

	return inserted, nil
}

// ListGames returns every stored game ordered by id.
func (s *docStore) ListGames(ctx context.Context) ([]*model.Game, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT document FROM games ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// GetGame returns the game with the given id, or ErrNotFound.
func (s *docStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	var doc []byte
	err := s.conn.QueryRowContext(ctx,
		"SELECT document FROM games WHERE id = "+s.dialect.Placeholder(1), id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying game %s: %w", id, err)
	}
	return decodeGame(doc)
}

// CountGames returns the number of stored games.
func (s *docStore) CountGames(ctx context.Context) (int64, error) {
	var count int64
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(id) FROM games").Scan(&count)
	return count, err
}

func scanGames(rows *sql.Rows) ([]*model.Game, error) {
	var games []*model.Game
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		g, err := decodeGame(doc)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func decodeGame(doc []byte) (*model.Game, error) {
	var g model.Game
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("decoding game document: %w", err)
	}
	return &g, nil
}
