// Package history keeps a global, cross-project log of generations in a
// sqlite database under the user's home directory. The per-project JSON
// session remains the source of truth for the edit flow; this log exists
// for the history and cost commands and is written best-effort.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS generations (
    id TEXT PRIMARY KEY,
    project_dir TEXT NOT NULL,
    operation TEXT NOT NULL,
    prompt TEXT NOT NULL,
    model TEXT NOT NULL,
    provider TEXT NOT NULL,
    input_path TEXT,
    output_path TEXT NOT NULL,
    cost REAL NOT NULL DEFAULT 0,
    timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_generations_timestamp ON generations(timestamp);
CREATE INDEX IF NOT EXISTS idx_generations_provider ON generations(provider);
CREATE INDEX IF NOT EXISTS idx_generations_project_dir ON generations(project_dir);
`

type Record struct {
	ID         string
	ProjectDir string
	Operation  string // "generate" or "edit"
	Prompt     string
	Model      string
	Provider   string
	InputPath  string
	OutputPath string
	Cost       float64
	Timestamp  time.Time
}

type CostSummary struct {
	TotalCost  float64
	ImageCount int
}

type ProviderCost struct {
	Provider   string
	TotalCost  float64
	ImageCount int
}

type Store struct {
	db *sql.DB
}

func NewStore() (*Store, error) {
	dbPath, err := defaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(dbPath)
}

func NewStoreWithPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func defaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".imagegen", "history.db"), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts one record, assigning an id and timestamp when unset.
func (s *Store) Append(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (id, project_dir, operation, prompt, model, provider, input_path, output_path, cost, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectDir, rec.Operation, rec.Prompt, rec.Model, rec.Provider,
		nullString(rec.InputPath), rec.OutputPath, rec.Cost, rec.Timestamp)
	return err
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_dir, operation, prompt, model, provider, input_path, output_path, cost, timestamp
		 FROM generations ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{}
		var inputPath sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ProjectDir, &rec.Operation, &rec.Prompt, &rec.Model,
			&rec.Provider, &inputPath, &rec.OutputPath, &rec.Cost, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.InputPath = inputPath.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) TotalCost(ctx context.Context) (*CostSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0), COUNT(*) FROM generations`)

	var summary CostSummary
	if err := row.Scan(&summary.TotalCost, &summary.ImageCount); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Store) CostByProvider(ctx context.Context) ([]ProviderCost, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, COALESCE(SUM(cost), 0), COUNT(*)
		 FROM generations GROUP BY provider ORDER BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ProviderCost
	for rows.Next() {
		var pc ProviderCost
		if err := rows.Scan(&pc.Provider, &pc.TotalCost, &pc.ImageCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, pc)
	}
	return summaries, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
