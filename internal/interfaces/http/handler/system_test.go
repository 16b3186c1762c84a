package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealthChecker struct {
	err error
}

func (f *fakeHealthChecker) Ping() error { return f.err }

func setupSystemRouter(db HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSystemHandler(db).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestSystemHandler_Health(t *testing.T) {
	router := setupSystemRouter(&fakeHealthChecker{})

	w := performJSON(t, router, http.MethodGet, "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "ok", data["database"])
}

func TestSystemHandler_Health_DatabaseDown(t *testing.T) {
	router := setupSystemRouter(&fakeHealthChecker{err: errors.New("connection refused")})

	w := performJSON(t, router, http.MethodGet, "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeResponse(t, w)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, "unreachable", data["database"])
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	router := setupSystemRouter(nil)

	w := performJSON(t, router, http.MethodGet, "/api/v1/system/info", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Cost Recovery Ledger API", data["name"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
}
