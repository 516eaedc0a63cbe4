package database

// Dialect abstracts all database-specific SQL generation.
// Each database backend (SQLite, PostgreSQL) implements this interface.
type Dialect interface {
	// DriverName returns the database/sql driver name (e.g. "sqlite", "pgx").
	DriverName() string

	// DSN returns the data source name for opening a connection.
	DSN(pathOrConnStr string) string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	// SQLite: "?" (ignoring index), PostgreSQL: "$1", "$2", etc.
	Placeholder(index int) string

	// SchemaCheckColumnSQL returns a SQL query that counts how many times a column
	// appears in a table's schema. Used for migration checks.
	SchemaCheckColumnSQL(table, column string) string

	// CreateTableSQL returns the DDL for the games document table.
	CreateTableSQL() string

	// AddColumnSQL returns DDL adding a column during migration.
	AddColumnSQL(table, column, typ string) string

	// CreateIndexSQL returns DDL to create an index on a table column.
	CreateIndexSQL(indexName, tableName, column string) string

	// UpsertGameSQL returns the parameterized statement that inserts a game
	// or replaces the stored document with the same id. Parameters are
	// id, title, finished_date, document, updated_at.
	UpsertGameSQL() string

	// Document prepares an encoded game document for storage.
	Document(doc []byte) any
}
