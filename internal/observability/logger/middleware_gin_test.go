package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedEngine(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(error) (string, string) { return "conflict", "mpesa_transaction_already_processed" },
	}))
	return r, logs
}

func TestGinMiddlewareLogsCallbackFields(t *testing.T) {
	r, logs := newObservedEngine(t)
	r.POST("/api/mpesa/confirmation", func(c *gin.Context) {
		c.Set("trans_id", "SFT12XY")
		_ = c.Error(errors.New("duplicate"))
		c.Status(http.StatusConflict)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/mpesa/confirmation", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "SFT12XY", fields["trans_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "mpesa_transaction_already_processed", fields["error_code"])
	assert.Contains(t, fields, "client_ip")
}

func TestGinMiddlewareLevels(t *testing.T) {
	r, logs := newObservedEngine(t)
	r.GET("/api/mpesa/transactions", func(c *gin.Context) { c.Status(http.StatusConflict) })
	r.POST("/api/mpesa/validation", func(c *gin.Context) { c.Status(http.StatusTooManyRequests) })
	r.GET("/api/invoices", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, tc := range []struct {
		method, path string
		level        zapcore.Level
	}{
		{http.MethodGet, "/api/mpesa/transactions", zapcore.InfoLevel},
		{http.MethodPost, "/api/mpesa/validation", zapcore.WarnLevel},
		{http.MethodGet, "/api/invoices", zapcore.ErrorLevel},
	} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tc.method, tc.path, nil))
		entries := logs.TakeAll()
		require.Len(t, entries, 1, tc.path)
		assert.Equal(t, tc.level, entries[0].Level, tc.path)
	}
}
