package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	original := NewConflict("taken", map[string]any{"username": "ro1"})
	wrapped := fmt.Errorf("create user: %w", original)

	got := ToDomainError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, "CONFLICT", got.Code)
	assert.Equal(t, http.StatusConflict, got.HTTPStatus)
	assert.Equal(t, "ro1", got.Details["username"])
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	got := ToDomainError(fmt.Errorf("load: %w", pgx.ErrNoRows))
	assert.Equal(t, http.StatusNotFound, got.HTTPStatus)
	assert.ErrorIs(t, got, pgx.ErrNoRows)
}

func TestToDomainErrorDefaultsToInternal(t *testing.T) {
	cause := errors.New("disk full")
	got := ToDomainError(cause)
	assert.Equal(t, "INTERNAL_ERROR", got.Code)
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, ToDomainError(nil))
}
