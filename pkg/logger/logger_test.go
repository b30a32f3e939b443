package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/diploma-checker-api/pkg/config"
	"github.com/noah-isme/diploma-checker-api/pkg/middleware/requestid"
)

func TestBuildConfig(t *testing.T) {
	prod := buildConfig(&config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "warn"}})
	assert.Equal(t, "json", prod.Encoding)
	assert.Equal(t, zapcore.WarnLevel, prod.Level.Level())

	dev := buildConfig(&config.Config{Env: config.EnvDevelopment, Log: config.LogConfig{Format: "console", Level: "nope"}})
	assert.Equal(t, "console", dev.Encoding)
	assert.Equal(t, zapcore.InfoLevel, dev.Level.Level())
}

func TestGinMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware(), GinMiddleware(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "/ok", entries[0].ContextMap()["route"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
}
