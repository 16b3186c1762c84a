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
)

func serveLogged(t *testing.T, level zapcore.Level, setup func(*gin.Engine), method, target string) (*httptest.ResponseRecorder, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(level)
	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	setup(router)

	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)
	return w, recorded
}

func requestLog(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	for _, entry := range recorded.All() {
		if entry.Message == "HTTP Request" {
			return entry
		}
	}
	t.Fatal("no HTTP Request entry logged")
	return observer.LoggedEntry{}
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   zapcore.Level
	}{
		{name: "2xx info", status: http.StatusOK, want: zapcore.InfoLevel},
		{name: "4xx warn", status: http.StatusUnprocessableEntity, want: zapcore.WarnLevel},
		{name: "5xx error", status: http.StatusInternalServerError, want: zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, recorded := serveLogged(t, zapcore.InfoLevel, func(r *gin.Engine) {
				r.GET("/entries", func(c *gin.Context) {
					c.JSON(tt.status, gin.H{})
				})
			}, "GET", "/entries")

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.want, requestLog(t, recorded).Level)
		})
	}
}

func TestGinMiddleware_CarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/entries", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/entries", nil)
	router.ServeHTTP(w, req)

	entry := requestLog(t, recorded)
	fields := entry.ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
}

func TestGinMiddleware_QueryAndStandardFields(t *testing.T) {
	_, recorded := serveLogged(t, zapcore.InfoLevel, func(r *gin.Engine) {
		r.GET("/entries", func(c *gin.Context) { c.Status(http.StatusOK) })
	}, "GET", "/entries?contract_id=C-1&period=2023-02")

	fields := requestLog(t, recorded).ContextMap()
	assert.Contains(t, fields["query"], "contract_id=C-1")
	for _, key := range []string{"status", "latency", "client_ip", "method", "path", "body_size"} {
		assert.Contains(t, fields, key)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.POST("/batch/corrections", func(c *gin.Context) {
		panic("rate table corrupted")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/batch/corrections", nil)
	assert.NotPanics(t, func() { router.ServeHTTP(w, req) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotEmpty(t, recorded.All())
	assert.Equal(t, "Panic recovered", recorded.All()[0].Message)
}

func TestGetGinLogger(t *testing.T) {
	var got *zap.Logger
	serveLogged(t, zapcore.InfoLevel, func(r *gin.Engine) {
		r.GET("/entries", func(c *gin.Context) {
			got = GetGinLogger(c)
			c.Status(http.StatusOK)
		})
	}, "GET", "/entries")
	assert.NotNil(t, got)
}

func TestGetGinLogger_WithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got *zap.Logger
	router := gin.New()
	router.GET("/entries", func(c *gin.Context) {
		got = GetGinLogger(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/entries", nil)
	router.ServeHTTP(w, req)

	require.NotNil(t, got)
	assert.NotPanics(t, func() { got.Info("noop") })
}
