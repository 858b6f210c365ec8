package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/openfroyo/typesynth/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.Path == MemoryPath {
		// every connection to :memory: is a separate database
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	} else {
		if cfg.MaxOpenConns == 0 {
			cfg.MaxOpenConns = 25
		}
		if cfg.MaxIdleConns == 0 {
			cfg.MaxIdleConns = 5
		}
		if cfg.ConnMaxLifetime == 0 {
			cfg.ConnMaxLifetime = 5 * time.Minute
		}
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection. File databases use WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if s.cfg.Path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveRun inserts a run or replaces the stored record with the same ID
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	return saveRun(ctx, s.db, run)
}

func saveRun(ctx context.Context, db execer, run *Run) error {
	functions, err := json.Marshal(run.Functions)
	if err != nil {
		return fmt.Errorf("failed to encode run functions: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO runs (id, source, goal, functions, cost, confidence, input, output, status, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			goal = excluded.goal,
			functions = excluded.functions,
			cost = excluded.cost,
			confidence = excluded.confidence,
			input = excluded.input,
			output = excluded.output,
			status = excluded.status,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err = db.ExecContext(ctx, query,
		run.ID,
		run.Source,
		run.Goal,
		string(functions),
		run.Cost,
		run.Confidence,
		run.Input,
		run.Output,
		run.Status,
		run.Error,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

const runColumns = `id, source, goal, functions, cost, confidence, input, output, status, error, started_at, completed_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var functions string
	var input, output sql.NullString
	err := row.Scan(
		&run.ID,
		&run.Source,
		&run.Goal,
		&functions,
		&run.Cost,
		&run.Confidence,
		&input,
		&output,
		&run.Status,
		&run.Error,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Input = input.String
	run.Output = output.String
	if err := json.Unmarshal([]byte(functions), &run.Functions); err != nil {
		return nil, fmt.Errorf("failed to decode run functions: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.NewNotFoundError("run", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns lists runs with pagination, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run together with its steps and provenance
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return engine.NewNotFoundError("run", id)
	}

	return nil
}

// SaveSteps stores the steps of a run in one transaction, replacing any
// steps already stored under the same run and sequence number
func (s *SQLiteStore) SaveSteps(ctx context.Context, steps []*Step) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := saveSteps(ctx, tx, steps); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func saveSteps(ctx context.Context, db execer, steps []*Step) error {
	query := `
		INSERT OR REPLACE INTO run_steps (
			run_id, seq, step_id, function_id, signature, impl_kind,
			input, output, confidence, degraded, metadata, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, step := range steps {
		metadata := step.Metadata
		if metadata == "" {
			metadata = "{}"
		}
		_, err := db.ExecContext(ctx, query,
			step.RunID,
			step.Seq,
			step.StepID,
			step.FunctionID,
			step.Signature,
			step.ImplKind,
			step.Input,
			step.Output,
			step.Confidence,
			step.Degraded,
			metadata,
			step.StartedAt,
			step.EndedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save step %d of run %s: %w", step.Seq, step.RunID, err)
		}
	}

	return nil
}

// ListSteps lists the steps of a run in execution order
func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]*Step, error) {
	query := `
		SELECT run_id, seq, step_id, function_id, signature, impl_kind,
			   input, output, confidence, degraded, metadata, started_at, ended_at
		FROM run_steps
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	steps := []*Step{}
	for rows.Next() {
		step := &Step{}
		var input, output sql.NullString
		err := rows.Scan(
			&step.RunID,
			&step.Seq,
			&step.StepID,
			&step.FunctionID,
			&step.Signature,
			&step.ImplKind,
			&input,
			&output,
			&step.Confidence,
			&step.Degraded,
			&step.Metadata,
			&step.StartedAt,
			&step.EndedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Input = input.String
		step.Output = output.String
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

// SaveProvenance stores a provenance document, replacing any document of
// the same format for the run
func (s *SQLiteStore) SaveProvenance(ctx context.Context, doc *ProvenanceDocument) error {
	return saveProvenance(ctx, s.db, doc)
}

func saveProvenance(ctx context.Context, db execer, doc *ProvenanceDocument) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO provenance (run_id, format, document, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, format) DO UPDATE SET
			document = excluded.document,
			created_at = excluded.created_at
	`

	if _, err := db.ExecContext(ctx, query, doc.RunID, doc.Format, doc.Document, doc.CreatedAt); err != nil {
		return fmt.Errorf("failed to save provenance: %w", err)
	}

	return nil
}

// GetProvenance retrieves the provenance document of a run in a format
func (s *SQLiteStore) GetProvenance(ctx context.Context, runID, format string) (*ProvenanceDocument, error) {
	query := `
		SELECT run_id, format, document, created_at
		FROM provenance
		WHERE run_id = ? AND format = ?
	`

	doc := &ProvenanceDocument{}
	err := s.db.QueryRowContext(ctx, query, runID, format).Scan(
		&doc.RunID,
		&doc.Format,
		&doc.Document,
		&doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.NewNotFoundError("provenance", runID).WithDetail("format", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provenance: %w", err)
	}

	return doc, nil
}

// SaveExecution stores a run, its steps and its provenance documents
// atomically.
func (s *SQLiteStore) SaveExecution(ctx context.Context, run *Run, steps []*Step, docs ...*ProvenanceDocument) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := saveRun(ctx, tx, run); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := saveSteps(ctx, tx, steps); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, doc := range docs {
		if err := saveProvenance(ctx, tx, doc); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit execution: %w", err)
	}
	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
