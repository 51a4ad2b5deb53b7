package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect describes one database/sql backend.
type Dialect struct {
	Name   string
	Driver string
	// Bind renders the n-th (1-based) query placeholder.
	Bind   func(n int) string
	schema []string
}

var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	Bind:   func(int) string { return "?" },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS events (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS feedbacks (
			id         TEXT PRIMARY KEY,
			event_id   TEXT NOT NULL REFERENCES events(id),
			rating     INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			text       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS feedbacks_newest ON feedbacks (event_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS feedbacks_highest ON feedbacks (event_id, rating DESC, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS feedbacks_global_newest ON feedbacks (created_at DESC, id DESC)`,
	},
}

// Postgres uses the pgx stdlib driver. Ids use the "C" collation so the
// seek comparison and ORDER BY agree on byte order.
var Postgres = Dialect{
	Name:   "postgres",
	Driver: "pgx",
	Bind:   func(n int) string { return "$" + strconv.Itoa(n) },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS events (
			id   TEXT COLLATE "C" PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS feedbacks (
			id         TEXT COLLATE "C" PRIMARY KEY,
			event_id   TEXT COLLATE "C" NOT NULL REFERENCES events(id),
			rating     SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
			text       TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS feedbacks_newest ON feedbacks (event_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS feedbacks_highest ON feedbacks (event_id, rating DESC, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS feedbacks_global_newest ON feedbacks (created_at DESC, id DESC)`,
	},
}

// DialectFor maps a STORAGE value to its dialect.
func DialectFor(storage string) (Dialect, error) {
	switch storage {
	case SQLite.Name:
		return SQLite, nil
	case Postgres.Name:
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql storage %q", storage)
}

// OpenSQL opens dsn, checks connectivity and applies the schema.
func OpenSQL(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if d.Name == SQLite.Name {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := Migrate(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables and indexes when missing.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", d.Name, err)
		}
	}
	return nil
}
