// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite "github.com/mattn/go-sqlite3"

	"github.com/codr1/crease/internal/config"
	"github.com/codr1/crease/internal/cricket"
	dbgen "github.com/codr1/crease/internal/db/generated"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const defaultBusyTimeout = 5 * time.Second

type DB struct {
	*sql.DB
	Queries *dbgen.Queries
}

// New opens a SQLite database for the given data source name, applies the
// connection defaults the engines rely on, runs embedded migrations and
// returns a DB with generated queries bound to the connection.
func New(dataSourceName string) (*DB, error) {
	return open(dataSourceName, defaultBusyTimeout)
}

// NewFromConfig creates the directory for the configured database file if
// needed and opens it like New.
func NewFromConfig(cfg *config.Config) (*DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Filename), 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
		busyTimeout := cfg.Database.BusyTimeout
		if busyTimeout <= 0 {
			busyTimeout = defaultBusyTimeout
		}
		return open(cfg.Database.Filename, busyTimeout)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func open(dataSourceName string, busyTimeout time.Duration) (*DB, error) {
	dataSourceName = withConnectionDefaults(dataSourceName, busyTimeout)
	sqlDB, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}

	return &DB{
		DB:      sqlDB,
		Queries: dbgen.New(sqlDB),
	}, nil
}

// withConnectionDefaults adds foreign key enforcement, a busy timeout, WAL
// journaling and immediate write locks to the DSN unless the caller already
// set them. Immediate locks make concurrent writers on the same match queue
// on the busy timeout instead of failing on lock upgrade mid-transaction.
func withConnectionDefaults(dataSourceName string, busyTimeout time.Duration) string {
	inMemory := strings.Contains(dataSourceName, ":memory:") || strings.Contains(dataSourceName, "mode=memory")
	defaults := []struct{ key, value string }{
		{"_fk", "1"},
		{"_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10)},
		{"_journal_mode", "WAL"},
		{"_txlock", "immediate"},
	}
	for _, param := range defaults {
		if strings.Contains(dataSourceName, param.key+"=") {
			continue
		}
		// WAL needs a file.
		if param.key == "_journal_mode" && inMemory {
			continue
		}
		sep := "?"
		if strings.Contains(dataSourceName, "?") {
			sep = "&"
		}
		dataSourceName += sep + param.key + "=" + url.QueryEscape(param.value)
	}
	return dataSourceName
}

// runMigrations applies the embedded SQL migrations from migrationsFS to the
// provided database. A "no change" result is not treated as an error.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("could not create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not create source: %w", err)
	}

	m, err := migrate.NewWithInstance(
		"iofs", source,
		"sqlite3", driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// WithTx creates a new DB instance with the given transaction
func (db *DB) WithTx(tx *sql.Tx) *DB {
	return &DB{
		DB:      db.DB,
		Queries: dbgen.New(tx),
	}
}

// BeginTx starts a transaction
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}
	return tx, nil
}

// RunInTx runs the given function in a transaction
func (db *DB) RunInTx(ctx context.Context, fn func(*DB) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	txDB := db.WithTx(tx)
	if err := fn(txDB); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing: %w", err)
	}

	return nil
}

// IsBusy reports whether err is SQLite lock contention that a retry can clear.
func IsBusy(err error) bool {
	var sqliteErr sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite.ErrBusy || sqliteErr.Code == sqlite.ErrLocked
	}
	return false
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite.ErrConstraintPrimaryKey
	}
	return false
}

// IsMissingTable reports whether err comes from a query against a table that
// has not been created yet.
func IsMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// Classify passes domain errors through, turns lock contention into a
// transient error and wraps anything else with msg.
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if cricket.KindOf(err) != "" {
		return err
	}
	if IsBusy(err) || errors.Is(err, context.DeadlineExceeded) {
		return cricket.Transient(msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
