package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/matheus3301/chordd/internal/store/migrations"
)

// MigrateResult describes what a Migrate call did to the schema.
type MigrateResult struct {
	From    uint // schema version before; 0 for a fresh journal
	Version uint
}

// Changed reports whether any migration ran.
func (r *MigrateResult) Changed() bool { return r.From != r.Version }

// Migrate brings the journal schema up to the latest embedded migration.
// A journal left dirty by an interrupted migration is an error.
func (db *DB) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	from, err := version(m)
	if err != nil {
		return nil, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("migrate %s from version %d: %w", db.path, from, err)
	}
	to, err := version(m)
	if err != nil {
		return nil, err
	}
	return &MigrateResult{From: from, Version: to}, nil
}

func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("migration version: %w", err)
	case dirty:
		return 0, fmt.Errorf("journal schema dirty at version %d", v)
	}
	return v, nil
}
