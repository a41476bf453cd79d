package request

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireID_Valid(t *testing.T) {
	result, err := RequireID("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", result)
}

func TestRequireID_Empty(t *testing.T) {
	_, err := RequireID("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required ID")
}

// testDecodePayload is a helper struct used only for testing Decode.
type testDecodePayload struct {
	Name    string `json:"name" validate:"required"`
	Service string `json:"service" validate:"required,slug"`
}

func TestDecode_ValidJSON(t *testing.T) {
	body := `{"name":"release-2","service":"checkout"}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload testDecodePayload
	err = Decode(r, &payload)
	require.NoError(t, err)
	assert.Equal(t, "release-2", payload.Name)
	assert.Equal(t, "checkout", payload.Service)
}

func TestDecode_InvalidJSON(t *testing.T) {
	body := `{not valid json}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload testDecodePayload
	err = Decode(r, &payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestDecode_ValidationFails(t *testing.T) {
	// Missing the required "name" field.
	body := `{"service":"checkout"}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload testDecodePayload
	err = Decode(r, &payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")
}

func TestSlugValidation_Valid(t *testing.T) {
	validSlugs := []string{"checkout", "api-gateway", "a", "svc-123", "z0"}
	for _, slug := range validSlugs {
		t.Run(slug, func(t *testing.T) {
			assert.True(t, serviceNameRegex.MatchString(slug), "expected slug %q to be valid", slug)
		})
	}
}

func TestSlugValidation_Invalid(t *testing.T) {
	invalidSlugs := []string{
		"My Service",    // spaces and uppercase
		"svc@123",       // special character
		"",              // empty
		strings.Repeat("a", 64), // too long (max 63 chars)
		"1starts-digit", // must start with lowercase letter
		"-leading-dash", // must start with lowercase letter
	}
	for _, slug := range invalidSlugs {
		t.Run(slug, func(t *testing.T) {
			assert.False(t, serviceNameRegex.MatchString(slug), "expected slug %q to be invalid", slug)
		})
	}
}
