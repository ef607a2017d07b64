package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtroode/mindhealer-server/internal/logger"
)

func TestLogging_Handle(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogging(logger.NewWithWriter(&buf, 0, "json"))

	h := l.Handle(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

	out := buf.String()
	assert.Contains(t, out, `"msg":"HTTP request completed"`)
	assert.Contains(t, out, `"path":"/api/auth/login"`)
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, `"msg":"HTTP request failed"`)
}

func TestLogging_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogging(logger.NewWithWriter(&buf, 0, "json"))

	h := l.Handle(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Contains(t, buf.String(), `"status":200`)
	assert.NotContains(t, buf.String(), "HTTP request failed")
}
