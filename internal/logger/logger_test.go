package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter_JSONFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	l := SetupWriter(&buf)
	l.Debug("calibration_loaded", "building", "B1")
	assert.Contains(t, buf.String(), `"msg":"calibration_loaded"`)
	assert.Same(t, l, L())
}

func TestAccessMiddleware_LogsStatus(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "")
	var buf bytes.Buffer
	l := SetupWriter(&buf)
	h := AccessMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("nope"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assets/a1/placement", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, buf.String(), "status=422")
	assert.Contains(t, buf.String(), "bytes=4")
}
