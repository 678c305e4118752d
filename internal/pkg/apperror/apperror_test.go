package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cause := errors.New("smtp: timeout")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad %s", "input"), http.StatusBadRequest},
		{"signature", Signature(cause), http.StatusUnauthorized},
		{"not found", NotFound("churn event not found"), http.StatusNotFound},
		{"conflict", Conflict("already lost"), http.StatusConflict},
		{"already generated", AlreadyGenerated(), http.StatusConflict},
		{"generation", Generation(cause), http.StatusBadGateway},
		{"delivery", Delivery(cause), http.StatusBadGateway},
		{"wrapped", fmt.Errorf("send: %w", Delivery(cause)), http.StatusBadGateway},
		{"plain", cause, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestAlreadyGeneratedIsConflict(t *testing.T) {
	err := AlreadyGenerated()
	assert.ErrorIs(t, err, ErrAlreadyGenerated)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, Conflict("x"), ErrAlreadyGenerated)
}

func TestCauseIsPreserved(t *testing.T) {
	cause := errors.New("llm unavailable")
	err := Generation(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "variant generation failed", PublicMessage(err))
	assert.Equal(t, "internal server error", PublicMessage(cause))
}
