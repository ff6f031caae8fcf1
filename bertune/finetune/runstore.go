package finetune

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	internal "github.com/ZanzyTHEbar/bertune/bertune"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
)

// RunStore persists fine-tuning run history: one row per run plus one row
// per recorded epoch.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens or initializes the run database at the default location.
func NewRunStore() (*RunStore, error) {
	if err := os.MkdirAll(internal.DefaultConfigPath, 0o755); err != nil {
		return nil, fmt.Errorf("could not create config directory: %v", err)
	}
	return NewRunStoreAt(internal.DefaultRunDBPath)
}

// NewRunStoreAt opens or initializes a run database at path.
func NewRunStoreAt(path string) (*RunStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create run db directory: %v", err)
		}
	}
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open run db: %w", err)
	}
	store := &RunStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// init sets up the run database tables.
func (s *RunStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY UNIQUE,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		arguments TEXT
	)`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS metrics (
		run_id TEXT NOT NULL,
		epoch INTEGER NOT NULL,
		loss REAL NOT NULL,
		accuracy REAL NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, epoch)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create metrics table: %w", err)
	}
	return nil
}

// BeginRun registers a new run with its arguments and returns the run id.
func (s *RunStore) BeginRun(args TrainingArguments) (string, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal arguments: %w", err)
	}
	id := uuid.New().String()
	_, err = s.db.Exec("INSERT INTO runs (id, started_at, arguments) VALUES (?, ?, ?)",
		id, time.Now().UTC(), string(argsJSON))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// RecordEpoch appends one epoch's metrics to a run.
func (s *RunStore) RecordEpoch(runID string, m EpochMetrics) error {
	_, err := s.db.Exec("INSERT INTO metrics (run_id, epoch, loss, accuracy) VALUES (?, ?, ?, ?)",
		runID, m.Epoch, m.Loss, m.Accuracy)
	if err != nil {
		return fmt.Errorf("failed to insert metrics: %w", err)
	}
	return nil
}

// History returns the recorded epochs of a run in epoch order.
func (s *RunStore) History(runID string) ([]EpochMetrics, error) {
	rows, err := s.db.Query("SELECT epoch, loss, accuracy FROM metrics WHERE run_id = ? ORDER BY epoch", runID)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()
	var out []EpochMetrics
	for rows.Next() {
		var m EpochMetrics
		if err := rows.Scan(&m.Epoch, &m.Loss, &m.Accuracy); err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *RunStore) Close() error { return s.db.Close() }
