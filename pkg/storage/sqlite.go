package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements Storage with a single-row SQLite table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) (*model.CostRecord, error) {
	var r model.CostRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT month, total_spent, generation_count FROM cost_record WHERE id = 1`,
	).Scan(&r.Month, &r.TotalSpent, &r.GenerationCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cost record: %w", err)
	}
	if err := checkRecord(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLite) Save(ctx context.Context, record *model.CostRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_record (id, month, total_spent, generation_count, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   month = excluded.month,
		   total_spent = excluded.total_spent,
		   generation_count = excluded.generation_count,
		   updated_at = excluded.updated_at`,
		record.Month, record.TotalSpent, record.GenerationCount, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save cost record: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
