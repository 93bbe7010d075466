package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "skedit/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, apperrors.Conflict("Appointment is currently being edited by Alice")))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Appointment is currently being edited by Alice", body["message"])
	assert.Equal(t, apperrors.CodeConflict, body["code"])
}

func TestWriteError_PlainErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, errors.New("mongo: connection refused")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestWriteNull_KeepsDataKey(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteNull(rec, "No active lock"))

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data, ok := body["data"]
	assert.True(t, ok, "data key must be present")
	assert.Nil(t, data)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		X float64 `json:"x"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"x": 4.5}`))
	require.NoError(t, DecodeJSON(r, &dst, false))
	assert.Equal(t, 4.5, dst.X)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"y": 1}`))
	assert.True(t, apperrors.HasCode(DecodeJSON(r, &dst, false), apperrors.CodeInvalidInput))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, DecodeJSON(r, &dst, true))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc.def", "abc.def"},
		{"bearer  xyz", "xyz"},
		{"Basic dXNlcg==", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, BearerToken(r), "header %q", tt.header)
	}
}
