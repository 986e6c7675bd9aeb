package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // Register SQLite driver
	"github.com/sirupsen/logrus"
)

// JobStatus represents the lifecycle state of a delete job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further processing occurs for the status
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrQueueUnavailable indicates the delete_jobs table does not exist.
// Callers use it to distinguish "not set up" from transient failures.
var ErrQueueUnavailable = errors.New("delete job queue table missing")

// DeleteJob represents one pending media-deletion task
type DeleteJob struct {
	ID        string
	PublicID  string   // remote asset id; may be empty if only URLs were stored
	ImageURLs []string // raw URLs used to derive public ids when PublicID is empty
	ProductID string   // back-reference for traceability only
	Status    JobStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store provides SQLite-based delete-job persistence
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore initializes a new SQLite store
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("Failed to close database connection after init error")
		}
		return nil, err
	}

	logrus.WithField("db_path", dbPath).Info("Initialized delete-job database")
	return store, nil
}

// initSchema applies all pending migrations
func (s *Store) initSchema() error {
	currentVersion := 0
	row := s.db.QueryRowContext(context.Background(), "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	_ = row.Scan(&currentVersion) // schema_version table may not exist yet

	for _, migration := range Migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logrus.WithField("version", migration.Version).Info("Applying schema migration")

		if _, err := s.db.ExecContext(context.Background(), migration.SQL); err != nil {
			return fmt.Errorf("failed to apply migration v%d: %w", migration.Version, err)
		}

		if _, err := s.db.ExecContext(context.Background(),
			"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
			migration.Version,
			time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", migration.Version, err)
		}

		currentVersion = migration.Version
	}

	return nil
}

// EnqueueJobs inserts one pending row per job. IDs and timestamps are
// assigned here; status and attempts are forced to their initial values.
func (s *Store) EnqueueJobs(ctx context.Context, jobs []*DeleteJob) error {
	if len(jobs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				logrus.WithError(rollbackErr).Warn("Failed to rollback transaction")
			}
		}
	}()

	now := time.Now()
	for _, job := range jobs {
		job.ID = uuid.New().String()
		job.Status = StatusPending
		job.Attempts = 0
		job.CreatedAt = now
		job.UpdatedAt = now

		urlsJSON, err := marshalURLs(job.ImageURLs)
		if err != nil {
			return fmt.Errorf("failed to encode image urls: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO delete_jobs
			 (id, public_id, image_urls, product_id, status, attempts, last_error, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
			job.ID,
			nullable(job.PublicID),
			urlsJSON,
			nullable(job.ProductID),
			string(StatusPending),
			job.CreatedAt.Unix(),
			job.UpdatedAt.Unix(),
		)
		if err != nil {
			return wrapMissingTable(fmt.Errorf("failed to insert delete job: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return nil
}

// SelectPendingBatch returns up to limit pending jobs, oldest first.
// Terminal rows are never returned.
func (s *Store) SelectPendingBatch(ctx context.Context, limit int) ([]*DeleteJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 25
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, public_id, image_urls, product_id, status, attempts, last_error, created_at, updated_at
		 FROM delete_jobs
		 WHERE status = ?
		 ORDER BY created_at ASC, rowid ASC
		 LIMIT ?`,
		string(StatusPending), limit,
	)
	if err != nil {
		return nil, wrapMissingTable(fmt.Errorf("failed to query pending jobs: %w", err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("Failed to close database rows")
		}
	}()

	return scanJobs(rows)
}

// MarkCompleted transitions a job to the terminal completed status.
// The row is retained as an audit record.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE delete_jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(StatusCompleted), time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

// RecordFailure persists the outcome of a failed processing attempt:
// the incremented attempt count, the resulting status (pending if the
// job is still retryable, failed once attempts are exhausted) and the
// most recent error message.
func (s *Store) RecordFailure(ctx context.Context, id string, attempts int, status JobStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE delete_jobs SET attempts = ?, status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		attempts, string(status), lastError, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(ctx context.Context, id string) (*DeleteJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, image_urls, product_id, status, attempts, last_error, created_at, updated_at
		 FROM delete_jobs WHERE id = ?`,
		id,
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	return job, nil
}

// ListJobsFilter defines filtering options for ListJobs
type ListJobsFilter struct {
	Status string // optional: filter by status
	Limit  int    // default: 100
	Offset int    // default: 0
}

// ListJobs retrieves jobs with optional filtering, newest first
func (s *Store) ListJobs(ctx context.Context, filter ListJobsFilter) ([]*DeleteJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000 // Cap limit to prevent excessive queries
	}

	query := `SELECT id, public_id, image_urls, product_id, status, attempts, last_error, created_at, updated_at
		 FROM delete_jobs`
	args := []interface{}{}

	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapMissingTable(fmt.Errorf("failed to query jobs: %w", err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("Failed to close database rows")
		}
	}()

	return scanJobs(rows)
}

// CountByStatus returns the count of jobs with a given status
func (s *Store) CountByStatus(ctx context.Context, status JobStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM delete_jobs WHERE status = ?", string(status)).Scan(&count)
	if err != nil {
		return 0, wrapMissingTable(fmt.Errorf("failed to count jobs: %w", err))
	}

	return count, nil
}

// PruneTerminalJobs deletes completed/failed rows older than the given
// duration. Pending rows are never touched; nothing prunes automatically,
// this is only reachable through an explicit operator action.
func (s *Store) PruneTerminalJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan).Unix()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM delete_jobs
		 WHERE status IN (?, ?) AND updated_at < ?`,
		string(StatusCompleted),
		string(StatusFailed),
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune terminal jobs: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if pruned > 0 {
		logrus.WithField("pruned_count", pruned).Debug("Pruned terminal delete-job rows")
	}

	return pruned, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}
	return nil
}

// Helper functions

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*DeleteJob, error) {
	job := &DeleteJob{}
	var publicID, urlsJSON, productID, lastError sql.NullString
	var status string
	var createdAtUnix, updatedAtUnix int64

	if err := row.Scan(
		&job.ID,
		&publicID,
		&urlsJSON,
		&productID,
		&status,
		&job.Attempts,
		&lastError,
		&createdAtUnix,
		&updatedAtUnix,
	); err != nil {
		return nil, err
	}

	job.PublicID = publicID.String
	job.ProductID = productID.String
	job.LastError = lastError.String
	job.Status = JobStatus(status)
	job.CreatedAt = time.Unix(createdAtUnix, 0)
	job.UpdatedAt = time.Unix(updatedAtUnix, 0)

	if urlsJSON.Valid && urlsJSON.String != "" {
		if err := json.Unmarshal([]byte(urlsJSON.String), &job.ImageURLs); err != nil {
			return nil, fmt.Errorf("failed to decode image urls for job %s: %w", job.ID, err)
		}
	}

	return job, nil
}

func scanJobs(rows *sql.Rows) ([]*DeleteJob, error) {
	var jobs []*DeleteJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

func marshalURLs(urls []string) (interface{}, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func wrapMissingTable(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table: delete_jobs") {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return err
}
