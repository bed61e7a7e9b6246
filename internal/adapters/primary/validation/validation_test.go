package validation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lorrc/ticket-triage/internal/core/errors"
)

func TestValidator(t *testing.T) {
	v := NewValidator().
		Required("title", "  ").
		MaxLength("description", strings.Repeat("ü", 5), 5).
		MaxLength("summary", "toolong", 3).
		OneOf("priority", "urgent", []string{"low", "high"}).
		OneOf("status", "", []string{"open"}).
		Custom("search", true, "never added")

	require.True(t, v.HasErrors())
	assert.Equal(t, []string{"priority", "summary", "title"}, v.Errors().Fields())
	assert.Equal(t, []string{"Must be one of: low, high"}, v.Errors().Errors["priority"])

	var validationErrs *apperrors.ValidationErrors
	assert.True(t, errors.As(v.Err(), &validationErrs))
}

func TestValidator_NoErrors(t *testing.T) {
	assert.NoError(t, NewValidator().Required("title", "ok").Err())
}

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"object", `{"name":"a","extra":1}`, "a", false},
		{"empty", ``, "", true},
		{"malformed", `{"name":`, "", true},
		{"wrong type", `{"name":5}`, "", true},
		{"trailing document", `{"name":"a"}{}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			got, err := DecodeAndValidate[payload](req)
			if tt.wantErr {
				var appErr *apperrors.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?search=%20printer%20&status=", nil)

	assert.Equal(t, "printer", QueryParamOrEmpty(req, "search"))
	assert.Nil(t, ParseStringQueryParam(req, "status"))
	assert.Equal(t, "", QueryParamOrEmpty(req, "missing"))
}
