package qerr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/anz-io/smart-order-router/quoter/qerr"
	"github.com/zeebo/assert"
)

func TestCodeOfWrappedError(t *testing.T) {
	base := qerr.New(qerr.CodeValidation, "bad direction")
	wrapped := fmt.Errorf("pipeline: %w", base)

	assert.Equal(t, qerr.CodeOf(wrapped), qerr.CodeValidation)
	assert.True(t, qerr.IsValidation(wrapped))

	qe, ok := qerr.As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, qe.Message, "bad direction")
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, qerr.CodeOf(errors.New("boom")), qerr.CodeInternal)
	assert.False(t, qerr.IsValidation(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := qerr.Wrap(qerr.CodeUnavailable, "block number", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, err.Error(), "block number: dial tcp: refused")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, qerr.HTTPStatus(nil), http.StatusOK)
	assert.Equal(t, qerr.HTTPStatus(qerr.New(qerr.CodeValidation, "x")), http.StatusBadRequest)
	assert.Equal(t, qerr.HTTPStatus(qerr.New(qerr.CodeTimeout, "x")), http.StatusGatewayTimeout)
	assert.Equal(t, qerr.HTTPStatus(qerr.New(qerr.CodeUnavailable, "x")), http.StatusInternalServerError)
	assert.Equal(t, qerr.HTTPStatus(errors.New("x")), http.StatusInternalServerError)
}
