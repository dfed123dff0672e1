package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedRecord(t *testing.T) (*domain.Resource, *domain.DeadLetter) {
	t.Helper()
	r, err := domain.NewResource(testFingerprint())
	require.NoError(t, err)
	require.NoError(t, r.MarkProcessing())
	require.NoError(t, r.Fail("retries exhausted after 3 attempts: server error"))

	return r, &domain.DeadLetter{
		ID:         uuid.New(),
		JobID:      uuid.New(),
		RecordID:   r.ID,
		Kind:       r.Kind,
		ResourceID: r.ResourceID,
		Language:   r.Language,
		Attempts:   3,
		Reason:     r.Error,
		Payload:    json.RawMessage(`{"title":"x"}`),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestBury_CommitsDeadLetterAndRecord(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r, dl := failedRecord(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE resources .* WHERE id = \$5 AND status = \$6`).
		WithArgs("error", nil, dl.Reason, sqlmock.AnyArg(), r.ID.String(), "processing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dead_letters`).
		WithArgs(dl.ID.String(), dl.JobID.String(), r.ID.String(), "transcript", "vid123", "en",
			3, dl.Reason, []byte(`{"title":"x"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewPostgresDeadLetterStore(db).Bury(context.Background(), r, dl)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBury_RollsBackWhenInsertFails(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r, dl := failedRecord(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE resources`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dead_letters`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err = NewPostgresDeadLetterStore(db).Bury(context.Background(), r, dl)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBury_LeavesRecordMovedByAnotherWriter(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r, dl := failedRecord(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE resources .* AND status = \$6`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM resources WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(resourceCols).
			AddRow(r.ID.String(), "transcript", "vid123", "en", "completed", "the transcript", nil, now, now))
	mock.ExpectRollback()

	err = NewPostgresDeadLetterStore(db).Bury(context.Background(), r, dl)

	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet(), "no dead letter is inserted")
}

func TestBury_RequiresErroredRecord(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r, dl := failedRecord(t)
	require.NoError(t, r.Restart())

	err = NewPostgresDeadLetterStore(db).Bury(context.Background(), r, dl)

	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeadLetterList(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cols := []string{"id", "job_id", "record_id", "kind", "resource_id", "language", "attempts", "reason", "payload", "created_at"}
	mock.ExpectQuery(`SELECT .* FROM dead_letters\s+ORDER BY created_at DESC\s+LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.NewString(), uuid.NewString(), uuid.NewString(), "summary", "vid", "fr", 3, "retries exhausted", nil, time.Now()))

	dls, err := NewPostgresDeadLetterStore(db).List(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, dls, 1)
	assert.Equal(t, domain.KindSummary, dls[0].Kind)
	assert.Equal(t, 3, dls[0].Attempts)
	assert.Empty(t, dls[0].Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}
