package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"songbook/internal/repositories"
)

// AdminHandler handles administrative requests
type AdminHandler struct {
	songRepository repositories.SongRepository
	backend        string
	cacheEnabled   bool
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(songRepository repositories.SongRepository, backend string, cacheEnabled bool) *AdminHandler {
	return &AdminHandler{
		songRepository: songRepository,
		backend:        backend,
		cacheEnabled:   cacheEnabled,
	}
}

// StoreStats describes the configured store
type StoreStats struct {
	Backend      string    `json:"backend"`
	Songs        int64     `json:"songs"`
	CacheEnabled bool      `json:"cache_enabled"`
	LastUpdated  time.Time `json:"last_updated"`
}

// RegisterRoutes mounts the admin routes on r
func (h *AdminHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/admin/stats", h.GetStats)
}

// GetStats handles GET /admin/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	count, err := h.songRepository.Count(ctx)
	if err != nil {
		slog.Error("Failed to collect store stats", "backend", h.backend, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, StoreStats{
		Backend:      h.backend,
		Songs:        count,
		CacheEnabled: h.cacheEnabled,
		LastUpdated:  time.Now().UTC(),
	})
}
