// Package database はPostgreSQL、MongoDB、Redisへの接続とマイグレーションを提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus は適用済みスキーマのバージョン。
// Versionが0でDirtyがfalseの場合は未適用。
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// NewMigrator は埋め込みマイグレーションを使うmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// Migrations は埋め込まれたupマイグレーションの名前を適用順に返す。
func Migrations() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後の状態を返す。
// すでに最新の場合もエラーにはならない。
func RunMigrations(databaseURL string) (*MigrationStatus, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return status(m)
}

// RollbackMigrations は直近のsteps件を取り消す。
func RollbackMigrations(databaseURL string, steps int) (*MigrationStatus, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("rollback steps must be positive: %d", steps)
	}
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return status(m)
}

// CurrentMigration は適用済みのバージョンを返す。
func CurrentMigration(databaseURL string) (*MigrationStatus, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return status(m)
}

func status(m *migrate.Migrate) (*MigrationStatus, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return &MigrationStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migration version: %w", err)
	}
	return &MigrationStatus{Version: version, Dirty: dirty}, nil
}
