package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/inference-sim/seedsweep/sweep"
)

// ResultsTable is the table the database probe reads. A row marks a work item
// complete; scenario is '' for flat sweeps.
const ResultsTable = "results"

// CreateResultsTable is the DDL for the results table, for writers and tests.
// It is valid for both SQLite and PostgreSQL.
const CreateResultsTable = `CREATE TABLE IF NOT EXISTS ` + ResultsTable + ` (
	config   TEXT NOT NULL,
	scenario TEXT NOT NULL DEFAULT '',
	seed     INTEGER NOT NULL,
	PRIMARY KEY (config, scenario, seed)
)`

const schemaQuery = `SELECT config, scenario, seed FROM ` + ResultsTable + ` LIMIT 0`

// Dialect names a database/sql driver and how it writes bind parameters.
type Dialect struct {
	Driver      string
	existsQuery string
}

var (
	DialectSQLite = Dialect{
		Driver:      "sqlite",
		existsQuery: `SELECT 1 FROM ` + ResultsTable + ` WHERE config = ? AND scenario = ? AND seed = ? LIMIT 1`,
	}
	DialectPostgres = Dialect{
		Driver:      "postgres",
		existsQuery: `SELECT 1 FROM ` + ResultsTable + ` WHERE config = $1 AND scenario = $2 AND seed = $3 LIMIT 1`,
	}
)

// Database reports completion by the presence of a row in the results table.
type Database struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens dsn with the modernc.org/sqlite driver and verifies the schema.
func OpenSQLite(ctx context.Context, dsn string) (*Database, error) {
	return open(ctx, DialectSQLite, dsn)
}

// OpenPostgres opens a PostgreSQL connection string and verifies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Database, error) {
	return open(ctx, DialectPostgres, dsn)
}

func open(ctx context.Context, dialect Dialect, dsn string) (*Database, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening results db: %w", err)
	}
	p, err := NewDatabase(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// NewDatabase wraps an open database. The results table must already exist.
func NewDatabase(ctx context.Context, db *sql.DB, dialect Dialect) (*Database, error) {
	rows, err := db.QueryContext(ctx, schemaQuery)
	if err != nil {
		return nil, fmt.Errorf("results db: table %q unusable: %w", ResultsTable, err)
	}
	_ = rows.Close()
	return &Database{db: db, dialect: dialect}, nil
}

// Exists implements sweep.CompletionProbe.
func (d *Database) Exists(ctx context.Context, item sweep.WorkItem) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, d.dialect.existsQuery, item.Config, item.Scenario, item.Seed).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("querying results db: %w", err)
	}
}

// Close closes the underlying database.
func (d *Database) Close() error {
	return d.db.Close()
}
