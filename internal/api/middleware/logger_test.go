package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/studyhall/internal/api/middleware"
	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/models"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func accessLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(raw, &entry))
		if entry["message"] == "request" {
			line = entry
		}
	}
	require.NotNil(t, line, "no access log line")
	return line
}

func TestLoggerRecordsCallerScope(t *testing.T) {
	buf := captureLog(t)
	id := &contracts.Identity{UserID: "u1", TenantID: "t1", Role: models.RoleInstructor}
	h := middleware.Logger(
		middleware.NewAuthMiddleware(fixedChain{identity: id}).Handler(
			middleware.CallerScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ai/tools", nil))

	line := accessLine(t, buf)
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "t1", line["tenant_id"])
	assert.Equal(t, "instructor", line["role"])
	assert.EqualValues(t, http.StatusOK, line["status"])
}

func TestLoggerAnonymousRequest(t *testing.T) {
	buf := captureLog(t)
	h := middleware.Logger(
		middleware.NewAuthMiddleware(fixedChain{}).Handler(
			middleware.CallerScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ai/chat", nil))

	line := accessLine(t, buf)
	assert.Equal(t, "warn", line["level"])
	assert.EqualValues(t, http.StatusUnauthorized, line["status"])
	assert.NotContains(t, line, "tenant_id")
}
