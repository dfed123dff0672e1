package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/platform/logger"
	"github.com/phrazzld/vidscribe/internal/store"
)

// PostgresDeadLetterStore implements store.DeadLetterStore.
type PostgresDeadLetterStore struct {
	db *sql.DB
}

// NewPostgresDeadLetterStore creates a new PostgresDeadLetterStore. It needs
// the pool itself rather than a DBTX because Bury opens its own transaction.
func NewPostgresDeadLetterStore(db *sql.DB) *PostgresDeadLetterStore {
	return &PostgresDeadLetterStore{db: db}
}

var _ store.DeadLetterStore = (*PostgresDeadLetterStore)(nil)

// Bury stores the dead letter and the failed record atomically. The record
// is only written while it is still processing; when another writer moved
// it first, nothing is stored and the error wraps store.ErrConflict.
func (s *PostgresDeadLetterStore) Bury(ctx context.Context, r *domain.Resource, dl *domain.DeadLetter) error {
	if r == nil || dl == nil {
		return store.NewStoreError("dead_letter", "bury", "record and dead letter are required", store.ErrInvalidEntity)
	}
	if r.Status != domain.StatusError {
		return store.NewStoreError("dead_letter", "bury",
			fmt.Sprintf("record must be in error, got %s", r.Status), store.ErrInvalidEntity)
	}

	// Read committed: the guarded update re-checks the row after waiting
	// on a concurrent writer instead of failing serialization.
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	return store.RunInTransactionWithOptions(ctx, s.db, opts, func(ctx context.Context, tx *sql.Tx) error {
		// Fail the record first; this takes the row lock
		if err := NewPostgresResourceStore(tx).UpdateIf(ctx, r, domain.StatusProcessing); err != nil {
			return err
		}

		query := `
			INSERT INTO dead_letters
				(id, job_id, record_id, kind, resource_id, language, attempts, reason, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

		payload := []byte(dl.Payload)
		if len(payload) == 0 {
			payload = nil
		}
		if _, err := tx.ExecContext(ctx, query,
			dl.ID, dl.JobID, dl.RecordID, dl.Kind, dl.ResourceID, dl.Language,
			dl.Attempts, dl.Reason, payload, dl.CreatedAt,
		); err != nil {
			logger.FromContext(ctx).Error("failed to insert dead letter",
				"job_id", dl.JobID, "record_id", dl.RecordID, "error", err)
			return store.NewStoreError("dead_letter", "bury", "insert failed", MapError(err))
		}
		return nil
	})
}

// List returns the most recent dead letters, newest first.
func (s *PostgresDeadLetterStore) List(ctx context.Context, limit int) ([]*domain.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, job_id, record_id, kind, resource_id, language, attempts, reason, payload, created_at
		FROM dead_letters
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, store.NewStoreError("dead_letter", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.DeadLetter
	for rows.Next() {
		var (
			dl      domain.DeadLetter
			payload []byte
		)
		if err := rows.Scan(
			&dl.ID, &dl.JobID, &dl.RecordID, &dl.Kind, &dl.ResourceID, &dl.Language,
			&dl.Attempts, &dl.Reason, &payload, &dl.CreatedAt,
		); err != nil {
			return nil, store.NewStoreError("dead_letter", "list", "scan failed", err)
		}
		dl.Payload = payload
		out = append(out, &dl)
	}
	return out, rows.Err()
}
