package telemetry_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/openquiz/internal/telemetry"
)

func TestConsoleHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	l := slog.New(telemetry.NewConsoleHandler(&buf, slog.LevelInfo))

	l.Debug("hidden")
	l.With("quiz", "abc123").WithGroup("submission").Info("recorded", "score", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO recorded")
	assert.Contains(t, out, " quiz=abc123")
	assert.Contains(t, out, "submission.score=3")
}

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	_, err := telemetry.SetupLogger(&buf, telemetry.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	slog.Info("dropped")
	slog.Warn("kept", "quiz", "abc123")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "abc123", line["quiz"])

	_, err = telemetry.SetupLogger(&buf, telemetry.LogConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = telemetry.SetupLogger(&buf, telemetry.LogConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestGinLogger_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(telemetry.GinLogger())
	e.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get(telemetry.HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(telemetry.HeaderRequestID, "req-1")
	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(telemetry.HeaderRequestID))
}
