package database

import "fmt"

// SQLiteDialect implements the Dialect interface for SQLite databases.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string             { return "sqlite" }
func (d *SQLiteDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *SQLiteDialect) Placeholder(index int) string    { return "?" }
func (d *SQLiteDialect) Document(doc []byte) any         { return string(doc) }

func (d *SQLiteDialect) SchemaCheckColumnSQL(table, column string) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name='%s'", table, column)
}

func (d *SQLiteDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		finished_date DATETIME,
		document TEXT NOT NULL,
		updated_at DATETIME
	)`
}

func (d *SQLiteDialect) AddColumnSQL(table, column, typ string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)
}

func (d *SQLiteDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}

func (d *SQLiteDialect) UpsertGameSQL() string {
	return `INSERT INTO games (id, title, finished_date, document, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			finished_date = excluded.finished_date,
			document = excluded.document,
			updated_at = excluded.updated_at`
}
