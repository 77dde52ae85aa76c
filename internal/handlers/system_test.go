package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"songbook/internal/apperrors"
	"songbook/internal/cache"
	"songbook/internal/repositories"
	"songbook/internal/testutil"
)

func setupSystemRouter(t *testing.T, handler *SystemHandler, admin *AdminHandler) *testutil.HTTPTestHelper {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router)
	if admin != nil {
		admin.RegisterRoutes(router)
	}

	helper := testutil.NewHTTPTestHelper(t)
	helper.SetRouter(router)
	return helper
}

func TestSystemHandler_Root(t *testing.T) {
	helper := setupSystemRouter(t, NewSystemHandler("songbook", "1.2.3", repositories.NewMemorySongRepository(), nil), nil)

	var body map[string]string
	helper.AssertJSONResponse(helper.GetJSON("/"), http.StatusOK, &body)
	assert.Equal(t, map[string]string{"name": "songbook", "version": "1.2.3"}, body)
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("healthy without cache", func(t *testing.T) {
		helper := setupSystemRouter(t, NewSystemHandler("songbook", "dev", repositories.NewMemorySongRepository(), nil), nil)

		var body HealthResponse
		helper.AssertJSONResponse(helper.GetJSON("/healthz"), http.StatusOK, &body)
		assert.Equal(t, HealthResponse{Status: "ok", Store: "ok", Cache: "disabled"}, body)
	})

	t.Run("healthy with cache", func(t *testing.T) {
		helper := setupSystemRouter(t, NewSystemHandler("songbook", "dev", repositories.NewMemorySongRepository(), cache.NewMemoryCache(10)), nil)

		var body HealthResponse
		helper.AssertJSONResponse(helper.GetJSON("/healthz"), http.StatusOK, &body)
		assert.Equal(t, HealthResponse{Status: "ok", Store: "ok", Cache: "ok"}, body)
	})

	t.Run("store down", func(t *testing.T) {
		repo := &testutil.MockSongRepository{}
		repo.On("Health", mock.Anything).Return(apperrors.Unavailable("health", errors.New("no route to host")))
		helper := setupSystemRouter(t, NewSystemHandler("songbook", "dev", repo, nil), nil)

		var body HealthResponse
		helper.AssertJSONResponse(helper.GetJSON("/healthz"), http.StatusServiceUnavailable, &body)
		assert.Equal(t, "unavailable", body.Status)
		assert.Equal(t, "unavailable", body.Store)
	})

	t.Run("cache down degrades", func(t *testing.T) {
		songCache := &testutil.MockCache{}
		songCache.On("Health", mock.Anything).Return(errors.New("connection reset"))
		helper := setupSystemRouter(t, NewSystemHandler("songbook", "dev", repositories.NewMemorySongRepository(), songCache), nil)

		var body HealthResponse
		helper.AssertJSONResponse(helper.GetJSON("/healthz"), http.StatusOK, &body)
		assert.Equal(t, HealthResponse{Status: "degraded", Store: "ok", Cache: "unavailable"}, body)
		songCache.AssertExpectations(t)
	})
}

func TestSystemHandler_Metrics(t *testing.T) {
	helper := setupSystemRouter(t, NewSystemHandler("songbook", "dev", repositories.NewMemorySongRepository(), nil), nil)

	resp := helper.GetJSON("/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "go_goroutines")
}

func TestAdminHandler_GetStats(t *testing.T) {
	repo := repositories.NewMemorySongRepository()
	_, err := repo.Save(context.Background(), "a", testutil.CreateTestSong())
	require.NoError(t, err)
	_, err = repo.Save(context.Background(), "b", testutil.CreateQueenSong())
	require.NoError(t, err)

	helper := setupSystemRouter(t, NewSystemHandler("songbook", "dev", repo, nil), NewAdminHandler(repo, "memory", true))

	var stats StoreStats
	helper.AssertJSONResponse(helper.GetJSON("/admin/stats"), http.StatusOK, &stats)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, int64(2), stats.Songs)
	assert.True(t, stats.CacheEnabled)
	assert.False(t, stats.LastUpdated.IsZero())
}

func TestAdminHandler_GetStats_StoreDown(t *testing.T) {
	repo := &testutil.MockSongRepository{}
	repo.On("Count", mock.Anything).Return(int64(0), apperrors.Unavailable("count", errors.New("timeout")))

	helper := setupSystemRouter(t, NewSystemHandler("songbook", "dev", repo, nil), NewAdminHandler(repo, "mongo", false))

	helper.AssertErrorResponse(helper.GetJSON("/admin/stats"), http.StatusServiceUnavailable, "StorageUnavailable")
}
