package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"songbook/internal/cache"
	"songbook/internal/metrics"
	"songbook/internal/repositories"
)

const healthTimeout = 5 * time.Second

// SystemHandler serves the service description, health and metrics endpoints
type SystemHandler struct {
	name           string
	version        string
	songRepository repositories.SongRepository
	cache          cache.Cache // nil when caching is disabled
}

// NewSystemHandler creates a system handler. songCache may be nil.
func NewSystemHandler(name, version string, songRepository repositories.SongRepository, songCache cache.Cache) *SystemHandler {
	return &SystemHandler{
		name:           name,
		version:        version,
		songRepository: songRepository,
		cache:          songCache,
	}
}

// HealthResponse reports the state of each dependency
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Cache  string `json:"cache"`
}

// RegisterRoutes mounts the system routes on r
func (h *SystemHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Root handles GET /
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    h.name,
		"version": h.version,
	})
}

// Health handles GET /healthz. The store decides the status; a failing cache
// only degrades it since reads fall through to the store.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Store: "ok", Cache: "disabled"}
	status := http.StatusOK

	if err := h.songRepository.Health(ctx); err != nil {
		slog.Error("Store health check failed", "error", err)
		resp.Status = "unavailable"
		resp.Store = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if h.cache != nil {
		resp.Cache = "ok"
		if err := h.cache.Health(ctx); err != nil {
			slog.Warn("Cache health check failed", "error", err)
			resp.Cache = "unavailable"
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}

	c.JSON(status, resp)
}
