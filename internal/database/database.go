package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DefaultIndexFields are the games columns indexed when creating a new database.
var DefaultIndexFields = []string{"title", "finished_date"}

// SQLiteStore manages all SQLite operations for a games database.
// It implements the Store interface.
type SQLiteStore struct {
	docStore
	path string
}

// OpenSQLite opens an existing SQLite games database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	d := &SQLiteDialect{}

	conn, err := sql.Open(d.DriverName(), d.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify the connection works
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db := &SQLiteStore{docStore: docStore{conn: conn, dialect: d}, path: path}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// CreateSQLite opens or creates a SQLite games database and ensures the schema.
// indexFields specifies which columns to index. Pass nil to use DefaultIndexFields.
func CreateSQLite(path string, indexFields []string) (*SQLiteStore, error) {
	d := &SQLiteDialect{}

	conn, err := sql.Open(d.DriverName(), d.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	db := &SQLiteStore{docStore: docStore{conn: conn, dialect: d}, path: path}

	if err := db.createSchema(indexFields); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, nil
}

// Migrate applies any pending schema migrations.
func (db *SQLiteStore) Migrate() error {
	return db.migrate()
}

// Close closes the database connection.
func (db *SQLiteStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the file path of the database.
func (db *SQLiteStore) Path() string {
	return db.path
}

// Conn returns the underlying *sql.DB connection for advanced query usage.
func (db *SQLiteStore) Conn() *sql.DB {
	return db.conn
}
