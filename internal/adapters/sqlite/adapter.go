// Package sqlite provides a SQLite-backed token store and lyrics cache.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Adapter implements the TokenStore and LyricsCache ports for SQLite.
type Adapter struct {
	db  *sql.DB
	now func() time.Time
}

// compile-time interface assertions
var (
	_ ports.TokenStore  = (*Adapter)(nil)
	_ ports.LyricsCache = (*Adapter)(nil)
)

// NewAdapter creates a connection and runs the schema migrations.
// storagePath may be ":memory:" for an ephemeral database.
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// one connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return newAdapter(db), nil
}

func newAdapter(db *sql.DB) *Adapter {
	return &Adapter{db: db, now: time.Now}
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite driver: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	// m.Close would close db as well, so the migrator is simply dropped
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
