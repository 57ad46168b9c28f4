package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

const (
	schemaSQL = `
        CREATE TABLE IF NOT EXISTS automation_attempts (
            id                    UUID PRIMARY KEY,
            task_id               TEXT NOT NULL,
            url                   TEXT NOT NULL,
            detection_method      TEXT NOT NULL,
            fields_detected       INTEGER NOT NULL,
            fields_attempted      INTEGER NOT NULL,
            fields_filled         INTEGER NOT NULL,
            submitted             BOOLEAN NOT NULL,
            confirmation_received BOOLEAN NOT NULL,
            errors                JSONB NOT NULL,
            started_at            TIMESTAMPTZ NOT NULL,
            finished_at           TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS attempt_screenshots (
            attempt_id  UUID NOT NULL REFERENCES automation_attempts(id) ON DELETE CASCADE,
            checkpoint  TEXT NOT NULL,
            data        BYTEA NOT NULL,
            captured_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS automation_attempts_url_idx ON automation_attempts (url, started_at DESC);
    `

	insertAttemptSQL = `
        INSERT INTO automation_attempts (id, task_id, url, detection_method, fields_detected, fields_attempted,
            fields_filled, submitted, confirmation_received, errors, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
    `

	selectAttemptsSQL = `
        SELECT id, task_id, url, detection_method, fields_detected, fields_attempted, fields_filled,
            submitted, confirmation_received, errors, started_at, finished_at
        FROM automation_attempts
        WHERE ($1 = '' OR url = $1)
        ORDER BY started_at DESC
        LIMIT $2;
    `
)

var screenshotColumns = []string{"attempt_id", "checkpoint", "data", "captured_at"}

// Attempt is a persisted FillResult summary. Screenshots are stored
// separately and are not loaded with the attempt.
type Attempt struct {
	ID                   string               `json:"id"`
	TaskID               string               `json:"task_id"`
	URL                  string               `json:"url"`
	DetectionMethod      schemas.Strategy     `json:"detection_method"`
	FieldsDetected       int                  `json:"fields_detected"`
	FieldsAttempted      int                  `json:"fields_attempted"`
	FieldsFilled         int                  `json:"fields_filled"`
	Submitted            bool                 `json:"submitted"`
	ConfirmationReceived bool                 `json:"confirmation_received"`
	Errors               []schemas.FieldError `json:"errors"`
	StartedAt            time.Time            `json:"started_at"`
	FinishedAt           time.Time            `json:"finished_at"`
}

// Store records automation attempts in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.ResultRecorder = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the tables used by the store if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordResult inserts the attempt and its screenshots in one transaction.
func (s *Store) RecordResult(ctx context.Context, result *schemas.FillResult) error {
	if result == nil {
		return errors.New("store: nil result")
	}

	fieldErrors := result.Errors
	if fieldErrors == nil {
		fieldErrors = []schemas.FieldError{}
	}
	errorsJSON, err := json.Marshal(fieldErrors)
	if err != nil {
		return fmt.Errorf("failed to encode field errors: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	attemptID := uuid.New()
	finished := result.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err = tx.Exec(ctx, insertAttemptSQL,
		attemptID, result.TaskID, result.URL, string(result.DetectionMethod),
		result.FieldsDetected, result.FieldsAttempted, result.FieldsFilled,
		result.Submitted, result.ConfirmationReceived,
		errorsJSON, result.StartedAt.UTC(), finished.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	if len(result.Screenshots) > 0 {
		if err := s.persistScreenshots(ctx, tx, attemptID, result.Screenshots); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Recorded automation attempt.", zap.String("attempt_id", attemptID.String()), zap.String("task_id", result.TaskID))
	return nil
}

func (s *Store) persistScreenshots(ctx context.Context, tx pgx.Tx, attemptID uuid.UUID, shots []schemas.Screenshot) error {
	rows := make([][]interface{}, len(shots))
	for i, shot := range shots {
		rows[i] = []interface{}{attemptID, string(shot.Checkpoint), shot.Data, shot.CapturedAt.UTC()}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"attempt_screenshots"}, screenshotColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy screenshots: %w", err)
	}
	if int(n) != len(shots) {
		return fmt.Errorf("mismatch in copied screenshots count: expected %d, got %d", len(shots), n)
	}
	return nil
}

// RecentAttempts returns up to limit attempts, newest first. An empty url
// matches every attempt.
func (s *Store) RecentAttempts(ctx context.Context, url string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, selectAttemptsSQL, url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a          Attempt
			id         uuid.UUID
			method     string
			errorsJSON []byte
		)
		if err := rows.Scan(
			&id, &a.TaskID, &a.URL, &method,
			&a.FieldsDetected, &a.FieldsAttempted, &a.FieldsFilled,
			&a.Submitted, &a.ConfirmationReceived,
			&errorsJSON, &a.StartedAt, &a.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		a.ID = id.String()
		a.DetectionMethod = schemas.Strategy(method)
		if len(errorsJSON) > 0 {
			if err := json.Unmarshal(errorsJSON, &a.Errors); err != nil {
				return nil, fmt.Errorf("failed to decode errors of attempt %s: %w", a.ID, err)
			}
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return attempts, nil
}
