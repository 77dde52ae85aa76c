package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"songbook/internal/apperrors"
	"songbook/internal/models"
	"songbook/internal/repositories"
)

// SaveSongResponse is returned by every write that stores a song
type SaveSongResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SongHandler handles song-related requests
type SongHandler struct {
	songRepository repositories.SongRepository
}

// NewSongHandler creates a new song handler
func NewSongHandler(songRepository repositories.SongRepository) *SongHandler {
	return &SongHandler{
		songRepository: songRepository,
	}
}

// RegisterRoutes mounts the song routes on r
func (h *SongHandler) RegisterRoutes(r gin.IRouter) {
	r.PUT("/song", h.CreateSongWithGeneratedID)
	r.PUT("/song/:id", h.PutSong)
	r.GET("/song/:id", h.GetSong)
	r.POST("/song/:id", h.ReplaceSong)
	r.DELETE("/song/:id", h.DeleteSong)

	r.POST("/songs", h.CreateSong)
	r.GET("/songs", h.ListSongs)
	r.GET("/songs/by-artist/:artist", h.SongsByArtist)
	r.GET("/songs/by-genre/:genre", h.SongsByGenre)
	r.GET("/songs/between-years/:range", h.SongsBetweenYears)
	r.GET("/songs/with-lyrics/:lyrics", h.SongsWithLyrics)
}

// PutSong handles PUT /song/:id
func (h *SongHandler) PutSong(c *gin.Context) {
	song, ok := h.decodeSong(c)
	if !ok {
		return
	}
	h.save(c, c.Param("id"), song)
}

// CreateSong handles POST /songs
func (h *SongHandler) CreateSong(c *gin.Context) {
	song, ok := h.decodeSong(c)
	if !ok {
		return
	}
	h.save(c, "", song)
}

// CreateSongWithGeneratedID handles PUT /song
func (h *SongHandler) CreateSongWithGeneratedID(c *gin.Context) {
	h.CreateSong(c)
}

// ReplaceSong handles POST /song/:id. Unlike PUT it refuses to create.
func (h *SongHandler) ReplaceSong(c *gin.Context) {
	song, ok := h.decodeSong(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if _, err := h.songRepository.Fetch(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.save(c, id, song)
}

// GetSong handles GET /song/:id
func (h *SongHandler) GetSong(c *gin.Context) {
	song, err := h.songRepository.Fetch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

// DeleteSong handles DELETE /song/:id. Deleting an unknown id succeeds.
func (h *SongHandler) DeleteSong(c *gin.Context) {
	id := c.Param("id")
	if err := h.songRepository.Remove(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	slog.Info("Song removed", "songID", id)
	c.JSON(http.StatusOK, "OK")
}

// ListSongs handles GET /songs
func (h *SongHandler) ListSongs(c *gin.Context) {
	h.search(c, repositories.NewQuery())
}

// SongsByArtist handles GET /songs/by-artist/:artist
func (h *SongHandler) SongsByArtist(c *gin.Context) {
	h.search(c, repositories.NewQuery().Where("artist").Eq(c.Param("artist")))
}

// SongsByGenre handles GET /songs/by-genre/:genre
func (h *SongHandler) SongsByGenre(c *gin.Context) {
	h.search(c, repositories.NewQuery().Where("genres").Contains(c.Param("genre")))
}

// SongsBetweenYears handles GET /songs/between-years/:start-:stop
func (h *SongHandler) SongsBetweenYears(c *gin.Context) {
	start, stop, err := parseYearRange(c.Param("range"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.search(c, repositories.NewQuery().Where("year").Between(start, stop))
}

// SongsWithLyrics handles GET /songs/with-lyrics/:lyrics
func (h *SongHandler) SongsWithLyrics(c *gin.Context) {
	h.search(c, repositories.NewQuery().Where("lyrics").Match(c.Param("lyrics")))
}

// decodeSong fills a record from the store's Create with the request body
func (h *SongHandler) decodeSong(c *gin.Context) (*models.Song, bool) {
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, apperrors.InvalidArgument("decode song", "failed to read request body: %v", err))
		return nil, false
	}
	song := h.songRepository.Create()
	if err := models.DecodeSongInto(song, body); err != nil {
		respondError(c, err)
		return nil, false
	}
	return song, true
}

func (h *SongHandler) save(c *gin.Context, id string, song *models.Song) {
	savedID, err := h.songRepository.Save(c.Request.Context(), id, song)
	if err != nil {
		respondError(c, err)
		return
	}
	slog.Info("Song saved", "songID", savedID)
	c.JSON(http.StatusOK, SaveSongResponse{ID: savedID})
}

func (h *SongHandler) search(c *gin.Context, query *repositories.Query) {
	songs, err := h.songRepository.Search(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	if songs == nil {
		songs = []*models.Song{}
	}
	c.JSON(http.StatusOK, songs)
}

// parseYearRange reads "start-stop" where both bounds are non-negative integers
func parseYearRange(raw string) (int, int, error) {
	startText, stopText, found := strings.Cut(raw, "-")
	if !found {
		return 0, 0, apperrors.InvalidArgument("between years", "range %q must look like start-stop", raw)
	}
	start, err := parseYear(startText)
	if err != nil {
		return 0, 0, apperrors.InvalidArgument("between years", "invalid start year %q", startText)
	}
	stop, err := parseYear(stopText)
	if err != nil {
		return 0, 0, apperrors.InvalidArgument("between years", "invalid stop year %q", stopText)
	}
	return start, stop, nil
}

func parseYear(text string) (int, error) {
	if text == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(text)
}

// respondError writes the error body for err and aborts the request
func respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   string(kind),
		Message: apperrors.Message(err),
	})
}
