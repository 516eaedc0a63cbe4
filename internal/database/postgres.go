package database

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore manages all PostgreSQL operations for a games database.
// It implements the Store interface.
type PostgresStore struct {
	docStore
	connStr string
}

// OpenPostgres opens an existing PostgreSQL games database.
func OpenPostgres(connStr string) (*PostgresStore, error) {
	d := &PostgresDialect{}

	conn, err := sql.Open(d.DriverName(), d.DSN(connStr))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db := &PostgresStore{docStore: docStore{conn: conn, dialect: d}, connStr: connStr}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// CreatePostgres creates the games schema on a PostgreSQL database.
// The database itself must already exist; this creates the table and indexes.
func CreatePostgres(connStr string, indexFields []string) (*PostgresStore, error) {
	d := &PostgresDialect{}

	conn, err := sql.Open(d.DriverName(), d.DSN(connStr))
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	db := &PostgresStore{docStore: docStore{conn: conn, dialect: d}, connStr: connStr}

	if err := db.createSchema(indexFields); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, nil
}

// Migrate applies any pending schema migrations.
func (db *PostgresStore) Migrate() error {
	return db.migrate()
}

// Close closes the database connection.
func (db *PostgresStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the connection string used to connect to the database.
func (db *PostgresStore) Path() string {
	return db.connStr
}

// Conn returns the underlying *sql.DB connection for advanced query usage.
func (db *PostgresStore) Conn() *sql.DB {
	return db.conn
}
