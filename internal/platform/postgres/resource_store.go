package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/platform/logger"
	"github.com/phrazzld/vidscribe/internal/store"
)

const resourceColumns = `id, kind, resource_id, language, status, content, error_message, created_at, updated_at`

// PostgresResourceStore implements store.ResourceStore using PostgreSQL.
type PostgresResourceStore struct {
	db store.DBTX
}

// NewPostgresResourceStore creates a new PostgresResourceStore
func NewPostgresResourceStore(db store.DBTX) *PostgresResourceStore {
	return &PostgresResourceStore{db: db}
}

// Ensure PostgresResourceStore implements store.ResourceStore
var _ store.ResourceStore = (*PostgresResourceStore)(nil)

// FindOrCreate inserts a pending record unless the (kind, resource_id,
// language) unique constraint already holds one. Losing the race to a
// concurrent insert is not an error: the winner's row is read back.
func (s *PostgresResourceStore) FindOrCreate(
	ctx context.Context,
	fp domain.Fingerprint,
) (*domain.Resource, bool, error) {
	log := logger.FromContext(ctx)

	fresh, err := domain.NewResource(fp)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO resources (` + resourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, NULL, NULL, $6, $7)
		ON CONFLICT (kind, resource_id, language) DO NOTHING
		RETURNING ` + resourceColumns

	r, err := scanResource(s.db.QueryRowContext(ctx, query,
		fresh.ID,
		fresh.Kind,
		fresh.ResourceID,
		fresh.Language,
		fresh.Status,
		fresh.CreatedAt,
		fresh.UpdatedAt,
	))
	if err == nil {
		log.Debug("resource created", "record_id", r.ID, "fingerprint", fp.String())
		return r, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to insert resource", "fingerprint", fp.String(), "error", err)
		return nil, false, store.NewStoreError("resource", "find_or_create", "insert failed", MapError(err))
	}

	existing, err := s.Get(ctx, fp)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get retrieves the record for a fingerprint.
func (s *PostgresResourceStore) Get(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, error) {
	query := `SELECT ` + resourceColumns + `
		FROM resources
		WHERE kind = $1 AND resource_id = $2 AND language = $3`

	r, err := scanResource(s.db.QueryRowContext(ctx, query, fp.Kind, fp.ResourceID, fp.Language))
	if err != nil {
		return nil, mapResourceError(err)
	}
	return r, nil
}

// GetByID retrieves a record by its unique ID.
func (s *PostgresResourceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`

	r, err := scanResource(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapResourceError(err)
	}
	return r, nil
}

// Update persists status, content and error of an existing record.
func (s *PostgresResourceStore) Update(ctx context.Context, r *domain.Resource) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE resources
		SET status = $1, content = $2, error_message = $3, updated_at = $4
		WHERE id = $5`

	result, err := s.db.ExecContext(ctx, query,
		r.Status, nullString(r.Content), nullString(r.Error), r.UpdatedAt, r.ID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to update resource",
			"record_id", r.ID, "status", r.Status, "error", err)
		return store.NewStoreError("resource", "update", "exec failed", MapError(err))
	}
	if err := CheckRowsAffected(result, "resource"); err != nil {
		return store.ErrResourceNotFound
	}
	return nil
}

// UpdateIf persists r only while the stored status equals expected.
func (s *PostgresResourceStore) UpdateIf(
	ctx context.Context,
	r *domain.Resource,
	expected domain.ResourceStatus,
) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE resources
		SET status = $1, content = $2, error_message = $3, updated_at = $4
		WHERE id = $5 AND status = $6`

	result, err := s.db.ExecContext(ctx, query,
		r.Status, nullString(r.Content), nullString(r.Error), r.UpdatedAt, r.ID, expected)
	if err != nil {
		return store.NewStoreError("resource", "update_if", "exec failed", MapError(err))
	}
	if err := CheckRowsAffected(result, "resource"); err != nil {
		// Distinguish a vanished row from a lost race.
		if _, getErr := s.GetByID(ctx, r.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: record %s is no longer %s", store.ErrConflict, r.ID, expected)
	}
	return nil
}

// ListByStatus returns records in status not updated within olderThan.
func (s *PostgresResourceStore) ListByStatus(
	ctx context.Context,
	status domain.ResourceStatus,
	olderThan time.Duration,
) ([]*domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE status = $1`
	args := []any{status}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("resource", "list_by_status", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, store.NewStoreError("resource", "list_by_status", "scan failed", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("resource", "list_by_status", "rows failed", err)
	}
	return out, nil
}

// WithTx returns a new ResourceStore instance that uses the provided transaction.
func (s *PostgresResourceStore) WithTx(tx *sql.Tx) store.ResourceStore {
	return &PostgresResourceStore{db: tx}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*domain.Resource, error) {
	var (
		r       domain.Resource
		content sql.NullString
		errMsg  sql.NullString
	)
	if err := row.Scan(
		&r.ID,
		&r.Kind,
		&r.ResourceID,
		&r.Language,
		&r.Status,
		&content,
		&errMsg,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Content = content.String
	r.Error = errMsg.String
	return &r, nil
}

func mapResourceError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrResourceNotFound
	}
	return MapError(err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
