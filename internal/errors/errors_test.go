package appErrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
)

type coded struct{ code int }

func (c coded) Error() string   { return fmt.Sprintf("coded %d", c.code) }
func (c coded) StatusCode() int { return c.code }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"nil", nil, http.StatusInternalServerError, appErrors.DefaultMessage},
		{"plain error keeps message", errors.New("decode error"), http.StatusInternalServerError, "decode error"},
		{"app error passes through", appErrors.New(appErrors.KindInternal, http.StatusForbidden, "forbidden", nil), http.StatusForbidden, "forbidden"},
		{"wrapped app error", fmt.Errorf("outer: %w", appErrors.NewNotFound("missing %s", "x")), http.StatusNotFound, "missing x"},
		{"status coder", coded{code: 401}, 401, "coded 401"},
		{"invalid status coder", coded{code: 42}, http.StatusInternalServerError, "coded 42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := appErrors.Normalize(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}

func TestNewDefaultsEmptyFields(t *testing.T) {
	err := appErrors.New(appErrors.KindInternal, 0, "", nil)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Equal(t, "An error occurred", err.Message)
	assert.Equal(t, map[string]any{"statusCode": 500, "message": "An error occurred"}, err.Body())
}

func TestNormalizeProvider(t *testing.T) {
	full := appErrors.NormalizeProvider(400, "Twilio error", nil)
	assert.Equal(t, 400, full.StatusCode)
	assert.Equal(t, "Twilio error", full.Message)
	assert.Equal(t, appErrors.KindProvider, full.Kind)

	empty := appErrors.NormalizeProvider(0, "", nil)
	assert.Equal(t, 500, empty.StatusCode)
	assert.Equal(t, "Failed to send message", empty.Message)

	noStatus := appErrors.NormalizeProvider(0, "Decryption failed", nil)
	assert.Equal(t, 500, noStatus.StatusCode)
	assert.Equal(t, "Failed to send message", noStatus.Message)

	noMessage := appErrors.NormalizeProvider(400, "", nil)
	assert.Equal(t, 500, noMessage.StatusCode)
	assert.Equal(t, "Failed to send message", noMessage.Message)
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", appErrors.NewInvalidResourceType("invalidType"))
	assert.True(t, appErrors.IsKind(err, appErrors.KindInvalidResourceType))
	assert.False(t, appErrors.IsKind(err, appErrors.KindNotFound))
	assert.False(t, appErrors.IsKind(errors.New("x"), appErrors.KindInternal))
	assert.Equal(t, "Invalid resource type: invalidType", err.(interface{ Unwrap() error }).Unwrap().Error())
}
