package database

import (
	"bytes"
	"fmt"
)

// pgNullEscape is the JSON escape of a NUL character. jsonb rejects it with
// "unsupported Unicode escape sequence" even though it is valid JSON.
var pgNullEscape = []byte(`\u0000`)

// pgSanitizeDocument strips escaped NUL characters from a JSON document.
// SQLite stores these fine but PostgreSQL jsonb does not.
func pgSanitizeDocument(doc []byte) []byte {
	if bytes.Contains(doc, pgNullEscape) {
		return bytes.ReplaceAll(doc, pgNullEscape, nil)
	}
	return doc
}

// PostgresDialect implements the Dialect interface for PostgreSQL databases.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string             { return "pgx" }
func (d *PostgresDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *PostgresDialect) Placeholder(index int) string    { return fmt.Sprintf("$%d", index) }
func (d *PostgresDialect) Document(doc []byte) any         { return string(pgSanitizeDocument(doc)) }

func (d *PostgresDialect) SchemaCheckColumnSQL(table, column string) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_name='%s' AND column_name='%s'",
		table, column)
}

func (d *PostgresDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		finished_date TIMESTAMPTZ,
		document JSONB NOT NULL,
		updated_at TIMESTAMPTZ
	)`
}

func (d *PostgresDialect) AddColumnSQL(table, column, typ string) string {
	if typ == "DATETIME" {
		typ = "TIMESTAMPTZ"
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", table, column, typ)
}

func (d *PostgresDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}

func (d *PostgresDialect) UpsertGameSQL() string {
	return `INSERT INTO games (id, title, finished_date, document, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			finished_date = EXCLUDED.finished_date,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at`
}
