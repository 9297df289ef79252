package export

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// CountRecord is one row of the detection table.
type CountRecord struct {
	ID        int64     `json:"id"`
	Vehicles  int       `json:"vehicles"`
	Persons   int       `json:"persons"`
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteStore appends end-of-run counts to a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)
	// Concurrent runs append to the same file.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m is not closed: closing it would close db as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// AppendCounts inserts one row with the final counts of a run.
func (s *SQLiteStore) AppendCounts(ctx context.Context, vehicles, persons int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO detection (vehicles, persons) VALUES (?, ?)`, vehicles, persons)
	if err != nil {
		return 0, fmt.Errorf("insert counts: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert counts: %w", err)
	}
	return id, nil
}

// ListCounts returns every stored row, oldest first.
func (s *SQLiteStore) ListCounts(ctx context.Context) ([]CountRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicles, persons, strftime('%Y-%m-%dT%H:%M:%SZ', created_at)
		FROM detection ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list counts: %w", err)
	}
	defer rows.Close()

	var records []CountRecord
	for rows.Next() {
		var (
			r       CountRecord
			created string
		)
		if err := rows.Scan(&r.ID, &r.Vehicles, &r.Persons, &created); err != nil {
			return nil, fmt.Errorf("scan counts: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			r.CreatedAt = t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
