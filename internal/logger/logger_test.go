package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	orig := Log
	Log = zap.New(core).Sugar()
	t.Cleanup(func() { Log = orig })
	return logs
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	orig := Log
	t.Cleanup(func() { Log = orig })

	assert.Error(t, Init("loud", "dev"))
	require.NoError(t, Init("debug", "dev"))
	require.NoError(t, Init("warn", "production"))
}

func TestGinMiddlewareLogsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observe(t)

	r := gin.New()
	r.Use(GinMiddleware("/healthz"))
	r.GET("/admin/users", func(c *gin.Context) { c.JSON(http.StatusOK, []string{}) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/admin/users", fields["uri"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}
