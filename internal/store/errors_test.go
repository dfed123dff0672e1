package store_test

import (
	"errors"
	"testing"

	"github.com/phrazzld/vidscribe/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestResourceNotFoundIsNotFound(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, store.ErrResourceNotFound, store.ErrNotFound)
	assert.NotErrorIs(t, store.ErrResourceNotFound, store.ErrDuplicate)
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	t.Run("with wrapped error", func(t *testing.T) {
		err := store.NewStoreError("resource", "find_or_create", "insert failed", store.ErrDuplicate)
		assert.Equal(t, "find_or_create operation on resource failed: insert failed: entity already exists", err.Error())
		assert.ErrorIs(t, err, store.ErrDuplicate)

		var se *store.StoreError
		assert.True(t, errors.As(error(err), &se))
		assert.Equal(t, "resource", se.Entity)
	})

	t.Run("without wrapped error", func(t *testing.T) {
		err := store.NewStoreError("dead_letter", "bury", "nil record", nil)
		assert.Equal(t, "bury operation on dead_letter failed: nil record", err.Error())
		assert.Nil(t, err.Unwrap())
	})
}
