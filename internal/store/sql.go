package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore implements a2asrv.TaskStore against postgres, mysql, or
// sqlite, dialect-switching the UPSERT statement the way SQL engines
// diverge on conflict handling.
type SQLStore struct {
	db      *sql.DB
	dialect string
	logger  *slog.Logger
}

type taskRow struct {
	ID            string
	ContextID     string
	StatusJSON    string
	HistoryJSON   string
	ArtifactsJSON string
	MetadataJSON  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS gateway_tasks (
    id VARCHAR(255) PRIMARY KEY,
    context_id VARCHAR(255) NOT NULL,
    status_json TEXT NOT NULL,
    history_json TEXT,
    artifacts_json TEXT,
    metadata_json TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

	createContextIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_gateway_tasks_context_id ON gateway_tasks(context_id)`

	createUpdatedAtIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_gateway_tasks_updated_at ON gateway_tasks(updated_at)`
)

// NewSQLStore opens (if needed, creates) the gateway_tasks schema on
// an existing *sql.DB and returns it as an a2asrv.TaskStore. Sharing
// the *sql.DB with other gateway components avoids SQLite's
// "database is locked" errors under concurrent access.
func NewSQLStore(db *sql.DB, dialect string, logger *slog.Logger) (a2asrv.TaskStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sql store: database connection is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	normalized := dialect
	if dialect == "sqlite3" {
		normalized = "sqlite"
	}
	switch normalized {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("sql store: unsupported dialect %q (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: normalized, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("sql store: init schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create gateway_tasks table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createContextIndexSQL); err != nil {
		return fmt.Errorf("create context_id index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createUpdatedAtIndexSQL); err != nil {
		return fmt.Errorf("create updated_at index: %w", err)
	}
	return nil
}

// Save upserts a task by id.
func (s *SQLStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("sql store: task is required")
	}

	row, err := s.taskToRow(task)
	if err != nil {
		return fmt.Errorf("sql store: serialize task: %w", err)
	}

	query := s.upsertQuery()
	args := []any{row.ID, row.ContextID, row.StatusJSON, row.HistoryJSON, row.ArtifactsJSON, row.MetadataJSON, row.CreatedAt, row.UpdatedAt}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sql store: save task %s: %w", task.ID, err)
	}
	return nil
}

func (s *SQLStore) upsertQuery() string {
	switch s.dialect {
	case "postgres":
		return `
INSERT INTO gateway_tasks (id, context_id, status_json, history_json, artifacts_json, metadata_json, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    context_id = EXCLUDED.context_id,
    status_json = EXCLUDED.status_json,
    history_json = EXCLUDED.history_json,
    artifacts_json = EXCLUDED.artifacts_json,
    metadata_json = EXCLUDED.metadata_json,
    updated_at = EXCLUDED.updated_at`
	case "sqlite":
		return `
INSERT INTO gateway_tasks (id, context_id, status_json, history_json, artifacts_json, metadata_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    context_id = excluded.context_id,
    status_json = excluded.status_json,
    history_json = excluded.history_json,
    artifacts_json = excluded.artifacts_json,
    metadata_json = excluded.metadata_json,
    updated_at = excluded.updated_at`
	default: // mysql
		return `
INSERT INTO gateway_tasks (id, context_id, status_json, history_json, artifacts_json, metadata_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    context_id = VALUES(context_id),
    status_json = VALUES(status_json),
    history_json = VALUES(history_json),
    artifacts_json = VALUES(artifacts_json),
    metadata_json = VALUES(metadata_json),
    updated_at = VALUES(updated_at)`
	}
}

// Get retrieves a task by id.
func (s *SQLStore) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	query := `SELECT id, context_id, status_json, history_json, artifacts_json, metadata_json, created_at, updated_at FROM gateway_tasks WHERE id = ?`
	if s.dialect == "postgres" {
		query = `SELECT id, context_id, status_json, history_json, artifacts_json, metadata_json, created_at, updated_at FROM gateway_tasks WHERE id = $1`
	}

	var row taskRow
	err := s.db.QueryRowContext(ctx, query, string(taskID)).Scan(
		&row.ID, &row.ContextID, &row.StatusJSON,
		&row.HistoryJSON, &row.ArtifactsJSON, &row.MetadataJSON,
		&row.CreatedAt, &row.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, a2a.ErrTaskNotFound
	}
	if err != nil {
		s.logger.Error("sql store: query failed", "task_id", taskID, "error", err)
		return nil, fmt.Errorf("sql store: query task %s: %w", taskID, err)
	}
	return s.rowToTask(&row)
}

// Close releases the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) taskToRow(task *a2a.Task) (*taskRow, error) {
	now := time.Now()

	statusJSON, err := json.Marshal(task.Status)
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}

	historyJSON := []byte("[]")
	if len(task.History) > 0 {
		if historyJSON, err = json.Marshal(task.History); err != nil {
			return nil, fmt.Errorf("marshal history: %w", err)
		}
	}

	artifactsJSON := []byte("[]")
	if len(task.Artifacts) > 0 {
		if artifactsJSON, err = json.Marshal(task.Artifacts); err != nil {
			return nil, fmt.Errorf("marshal artifacts: %w", err)
		}
	}

	metadataJSON := []byte("{}")
	if len(task.Metadata) > 0 {
		if metadataJSON, err = json.Marshal(task.Metadata); err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
	}

	return &taskRow{
		ID:            string(task.ID),
		ContextID:     task.ContextID,
		StatusJSON:    string(statusJSON),
		HistoryJSON:   string(historyJSON),
		ArtifactsJSON: string(artifactsJSON),
		MetadataJSON:  string(metadataJSON),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *SQLStore) rowToTask(row *taskRow) (*a2a.Task, error) {
	task := &a2a.Task{ID: a2a.TaskID(row.ID), ContextID: row.ContextID}

	if row.StatusJSON == "" {
		return nil, fmt.Errorf("status_json is required but empty")
	}
	if err := json.Unmarshal([]byte(row.StatusJSON), &task.Status); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}

	task.History = make([]*a2a.Message, 0)
	if row.HistoryJSON != "" && row.HistoryJSON != "[]" {
		if err := json.Unmarshal([]byte(row.HistoryJSON), &task.History); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}

	task.Artifacts = make([]*a2a.Artifact, 0)
	if row.ArtifactsJSON != "" && row.ArtifactsJSON != "[]" {
		if err := json.Unmarshal([]byte(row.ArtifactsJSON), &task.Artifacts); err != nil {
			return nil, fmt.Errorf("unmarshal artifacts: %w", err)
		}
	}

	task.Metadata = make(map[string]any)
	if row.MetadataJSON != "" && row.MetadataJSON != "{}" {
		if err := json.Unmarshal([]byte(row.MetadataJSON), &task.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return task, nil
}

var _ a2asrv.TaskStore = (*SQLStore)(nil)
