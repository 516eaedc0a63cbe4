package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cdtdelta/backlog/internal/catalog"
	"github.com/cdtdelta/backlog/internal/config"
	"github.com/cdtdelta/backlog/internal/csvparser"
	"github.com/cdtdelta/backlog/internal/database"
	"github.com/cdtdelta/backlog/internal/igdb"
	"github.com/cdtdelta/backlog/internal/jsonlparser"
	"github.com/cdtdelta/backlog/internal/model"
	"github.com/cdtdelta/backlog/internal/server"
	"github.com/cdtdelta/backlog/internal/stats"
	"github.com/cdtdelta/backlog/internal/table"
)

// ErrNoDatabase is returned by read operations when the SQLite file does
// not exist yet.
var ErrNoDatabase = errors.New("database does not exist, run import first")

// App is the main application struct the commands drive. It owns the store
// and the catalog cached over it.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	db      database.Store
	catalog *catalog.Catalog
}

// NewApp creates a new App instance. No database is opened until needed.
func NewApp(cfg *config.Config, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{cfg: cfg, log: log}
}

// Close closes the database if one is open.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	a.catalog = nil
	return err
}

// open opens the configured store. create also builds the schema, which
// import and serve need; read-only commands refuse a missing SQLite file
// instead of silently creating an empty one.
func (a *App) open(create bool) error {
	if a.db != nil {
		return nil
	}

	driver, dsn := a.cfg.Store.Driver, a.cfg.Store.DSN
	var (
		db  database.Store
		err error
	)
	if create {
		db, err = database.CreateStore(driver, dsn, nil)
		// The schema may predate columns the upsert writes.
		if err == nil {
			if err = db.Migrate(); err != nil {
				db.Close()
				err = fmt.Errorf("migrating schema: %w", err)
			}
		}
	} else {
		if driver == database.DriverSQLite {
			if _, statErr := os.Stat(dsn); errors.Is(statErr, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrNoDatabase, dsn)
			}
		}
		db, err = database.OpenStore(driver, dsn)
	}
	if err != nil {
		return err
	}

	a.db = db
	a.catalog = catalog.New(db, a.cfg.Server.CacheTTL, a.log)
	a.log.Debug("database opened", zap.String("driver", driver), zap.String("path", db.Path()))
	return nil
}

// -- Import --

// ImportResult summarizes an import run.
type ImportResult struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Read     int    `json:"read"`
	Inserted int    `json:"inserted"`
	Excluded int    `json:"excluded"`
}

// ImportFile reads games from a CSV file or a JSON/JSONL document export
// and upserts them into the store. The format is chosen by extension.
func (a *App) ImportFile(ctx context.Context, path string, onProgress func(phase string, count int)) (*ImportResult, error) {
	if onProgress == nil {
		onProgress = func(string, int) {}
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	var (
		games    []*model.Game
		excluded int
	)
	reading := func(count int) { onProgress("reading", count) }

	switch format {
	case "csv":
		if err := csvparser.ValidateFile(path); err != nil {
			return nil, fmt.Errorf("invalid CSV file: %w", err)
		}
		res, err := csvparser.ReadGames(path, reading)
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		games, excluded = res.Games, res.Excluded
	case "json", "jsonl", "ndjson":
		if err := jsonlparser.ValidateFile(path); err != nil {
			return nil, fmt.Errorf("invalid JSON file: %w", err)
		}
		res, err := jsonlparser.ReadGames(path, reading)
		if err != nil {
			return nil, fmt.Errorf("reading JSON: %w", err)
		}
		games, excluded = res.Games, res.Excluded
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}

	if err := a.open(true); err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	inserted, err := a.db.InsertGames(ctx, games, func(count int) { onProgress("inserting", count) })
	if err != nil {
		return nil, fmt.Errorf("inserting games: %w", err)
	}
	a.catalog.Invalidate()

	a.log.Info("import complete",
		zap.String("path", path),
		zap.Int("read", len(games)),
		zap.Int("inserted", inserted),
		zap.Int("excluded", excluded),
	)
	return &ImportResult{
		Path:     path,
		Format:   format,
		Read:     len(games),
		Inserted: inserted,
		Excluded: excluded,
	}, nil
}

// -- Query Operations --

// QueryRequest selects a page of one view. Query holds the persisted
// parameters (sortBy, sortDesc, title) in URL query form.
type QueryRequest struct {
	View     string `json:"view"`
	Query    string `json:"query"`
	Page     string `json:"page"` // one-based, as typed by a user
	PageSize int    `json:"pageSize"`
	Admin    bool   `json:"admin"`
}

// QueryResponse is one rendered page plus the persisted form of its state.
type QueryResponse struct {
	Page     table.Page
	Query    string
	Position string
}

// QueryGames renders a page of the requested view.
func (a *App) QueryGames(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	t, err := a.newTable(ctx, req)
	if err != nil {
		return nil, err
	}

	return &QueryResponse{
		Page:     t.Page(req.Admin),
		Query:    t.Params().Encode(),
		Position: t.String(),
	}, nil
}

func (a *App) newTable(ctx context.Context, req QueryRequest) (*table.Table, error) {
	kind, err := table.ParseViewKind(req.View)
	if err != nil {
		return nil, err
	}
	view, err := table.Columns(kind)
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(strings.TrimPrefix(req.Query, "?"))
	if err != nil {
		return nil, fmt.Errorf("parsing query %q: %w", req.Query, err)
	}

	if err := a.open(false); err != nil {
		return nil, err
	}
	snap, err := a.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading games: %w", err)
	}

	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = a.cfg.PageSize
	}
	t, err := table.NewTable(view, snap.Rows(kind), pageSize)
	if err != nil {
		return nil, err
	}
	t.Hydrate(values)
	t.GotoPageInput(req.Page)
	return t, nil
}

// -- Export --

// ExportCSV writes every page of the requested view, as displayed, to path
// and returns the number of rows written.
func (a *App) ExportCSV(ctx context.Context, path string, req QueryRequest) (int, error) {
	t, err := a.newTable(ctx, req)
	if err != nil {
		return 0, err
	}

	t.FirstPage()
	var pages []table.Page
	rows := 0
	for {
		p := t.Page(req.Admin)
		pages = append(pages, p)
		rows += len(p.Rows)
		if !p.CanNext {
			break
		}
		t.NextPage()
	}

	if err := csvparser.WritePages(path, pages...); err != nil {
		return 0, fmt.Errorf("writing CSV: %w", err)
	}
	return rows, nil
}

// ExportAll writes every stored game to path in the import format.
func (a *App) ExportAll(ctx context.Context, path string) (int, error) {
	if err := a.open(false); err != nil {
		return 0, err
	}
	snap, err := a.catalog.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading games: %w", err)
	}
	if err := csvparser.WriteGames(path, snap.Games); err != nil {
		return 0, fmt.Errorf("writing CSV: %w", err)
	}
	return len(snap.Games), nil
}

// -- Statistics --

// Stats summarizes the whole catalog.
func (a *App) Stats(ctx context.Context) (stats.Summary, error) {
	if err := a.open(false); err != nil {
		return stats.Summary{}, err
	}
	snap, err := a.catalog.Snapshot(ctx)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("loading games: %w", err)
	}
	return stats.Summarize(snap.Games), nil
}

// -- Server --

// Serve runs the HTTP API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if err := a.open(true); err != nil {
		return err
	}

	var finder server.Finder
	if a.cfg.IGDBEnabled() {
		finder = igdb.NewClient(a.cfg.IGDB.ClientID, a.cfg.IGDB.ClientSecret)
	} else {
		a.log.Warn("metadata proxy disabled, no client credentials configured")
	}
	if !a.cfg.AdminEnabled() {
		a.log.Warn("admin endpoints disabled, no admin token configured")
	}

	srv := server.New(server.Config{
		Addr:       a.cfg.Server.Addr,
		AdminToken: a.cfg.AdminToken,
		PageSize:   a.cfg.PageSize,
	}, a.catalog, finder, a.log)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}
	return server.Run(ctx, srv, ln, a.log)
}

// -- Internal Helpers --

// GetVersion returns the application version string.
func (a *App) GetVersion() string {
	return Version
}

// DBInfo contains summary info about the configured database.
type DBInfo struct {
	Driver    string `json:"driver"`
	Path      string `json:"path"`
	GameCount int64  `json:"gameCount"`
}

// GetDBInfo reports where the games live and how many there are.
func (a *App) GetDBInfo(ctx context.Context) (*DBInfo, error) {
	if err := a.open(false); err != nil {
		return nil, err
	}
	count, err := a.db.CountGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting games: %w", err)
	}
	return &DBInfo{
		Driver:    a.cfg.Store.Driver,
		Path:      a.db.Path(),
		GameCount: count,
	}, nil
}
