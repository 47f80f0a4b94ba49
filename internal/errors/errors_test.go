package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sleepwell/sleepwell-server/internal/errors"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := errors.RemoteUnavailable("timed out after 5s")

	assert.True(t, stderrors.Is(err, errors.ErrRemoteUnavailable))
	assert.False(t, stderrors.Is(err, errors.ErrSchemaMissing))
}

func TestError_WrappedCauseSurvives(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := errors.RemoteUnavailable("probe failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	wrapped := fmt.Errorf("fetch products: %w", err)
	assert.True(t, errors.IsRemoteFailure(wrapped))
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err  *errors.Error
		want int
	}{
		{errors.NotFound("x"), http.StatusNotFound},
		{errors.Validation("x"), http.StatusBadRequest},
		{errors.Conflict("x"), http.StatusConflict},
		{errors.RemoteUnavailable("x"), http.StatusServiceUnavailable},
		{errors.SchemaMissing("x"), http.StatusServiceUnavailable},
		{errors.StorageFull("x"), http.StatusInsufficientStorage},
		{errors.Internal("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestIsCacheMiss(t *testing.T) {
	assert.True(t, errors.IsCacheMiss(errors.ErrNotFound))
	assert.True(t, errors.IsCacheMiss(errors.Deserialization("bad json")))
	assert.False(t, errors.IsCacheMiss(errors.StorageFull("quota")))
}

func TestWithDetails_KeepsCode(t *testing.T) {
	err := errors.ErrValidation.WithDetails(map[string]string{"price": "must be greater than or equal to 0"})

	assert.Equal(t, errors.CodeValidation, err.Code)
	assert.NotNil(t, err.Details)
	assert.Nil(t, errors.ErrValidation.Details)
}
