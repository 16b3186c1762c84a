package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sgpp/costrecovery/internal/interfaces/http/dto"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Ping() error
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	db        HealthChecker
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(db HealthChecker) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		db:        db,
	}
}

// RegisterRoutes registers the system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	system := rg.Group("/system")
	{
		system.GET("/health", h.Health)
		system.GET("/info", h.GetSystemInfo)
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports service liveness and database reachability
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, dto.NewSuccessResponse(resp))
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns basic system information including version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "Cost Recovery Ledger API",
		Version:   "1.0.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}
