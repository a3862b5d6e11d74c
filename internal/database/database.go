package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"feedctx/internal/domain"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite "github.com/mattn/go-sqlite3"
)

const dsnOptions = "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"

// Database is the durable store for feeds, categories and articles.
type Database struct {
	db  *sql.DB
	log *slog.Logger
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

func New(ctx context.Context, dbPath string, log *slog.Logger) (*Database, error) {
	dbFile, err := sql.Open("sqlite3", "file:"+dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}

	if err = dbFile.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	dbInstance, err := sqlite3.WithInstance(dbFile, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("create DB instance: %w", err)
	}

	srcInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create source instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcInstance, "sqlite3", dbInstance)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	migrateErr := m.Up()

	version, dirty, versionErr := m.Version()
	fields := []any{
		"dbPath", dbPath,
	}

	if versionErr == nil {
		fields = append(fields, "version", version, "dirty", dirty)
	} else if !errors.Is(versionErr, migrate.ErrNilVersion) {
		log.WarnContext(ctx, "Failed to fetch migration version",
			"error", versionErr,
			"dbPath", dbPath)
	}

	if migrateErr != nil {
		if !errors.Is(migrateErr, migrate.ErrNoChange) {
			return nil, fmt.Errorf("apply migrations: %w", migrateErr)
		}

		log.InfoContext(ctx, "No migrations to apply", fields...)
	} else {
		log.InfoContext(ctx, "DB is migrated", fields...)
	}

	return &Database{db: dbFile, log: log}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// wrapErr classifies driver errors into the domain taxonomy.
func wrapErr(op string, err error) error {
	var sqliteErr sqlite.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %s: %w", domain.ErrDuplicate, op, err)
	}

	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}

func (d *Database) closeRows(ctx context.Context, rows *sql.Rows, operation string) {
	if err := rows.Close(); err != nil {
		d.log.ErrorContext(ctx, "Failed to close rows",
			"error", err,
			"operation", operation)
	}
}
