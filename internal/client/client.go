package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"songbook/internal/apperrors"
	"songbook/internal/models"
)

// Client talks to the songbook REST API
type Client struct {
	http *resty.Client
}

// New creates a client for the API at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Kind       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("songbook api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("songbook api: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match the apperrors sentinels
func (e *APIError) Unwrap() error {
	switch apperrors.Kind(e.Kind) {
	case apperrors.KindNotFound:
		return apperrors.ErrNotFound
	case apperrors.KindInvalidArgument:
		return apperrors.ErrInvalidArgument
	case apperrors.KindStorageUnavailable:
		return apperrors.ErrStorageUnavailable
	case apperrors.KindInternal:
		return apperrors.ErrInternal
	}
	return nil
}

// Stats mirrors GET /admin/stats
type Stats struct {
	Backend      string    `json:"backend"`
	Songs        int64     `json:"songs"`
	CacheEnabled bool      `json:"cache_enabled"`
	LastUpdated  time.Time `json:"last_updated"`
}

type saveResponse struct {
	ID string `json:"id"`
}

// Put stores song under id, replacing any song already there
func (c *Client) Put(ctx context.Context, id string, song *models.Song) (string, error) {
	var out saveResponse
	err := c.do(c.request(ctx).SetPathParam("id", id).SetBody(song).SetResult(&out), http.MethodPut, "/song/{id}")
	return out.ID, err
}

// Add stores song under a generated id
func (c *Client) Add(ctx context.Context, song *models.Song) (string, error) {
	var out saveResponse
	err := c.do(c.request(ctx).SetBody(song).SetResult(&out), http.MethodPost, "/songs")
	return out.ID, err
}

// Replace overwrites an existing song; it fails with NotFound instead of creating one
func (c *Client) Replace(ctx context.Context, id string, song *models.Song) (string, error) {
	var out saveResponse
	err := c.do(c.request(ctx).SetPathParam("id", id).SetBody(song).SetResult(&out), http.MethodPost, "/song/{id}")
	return out.ID, err
}

// Get fetches a song by id
func (c *Client) Get(ctx context.Context, id string) (*models.Song, error) {
	var song models.Song
	if err := c.do(c.request(ctx).SetPathParam("id", id).SetResult(&song), http.MethodGet, "/song/{id}"); err != nil {
		return nil, err
	}
	return &song, nil
}

// Delete removes a song; deleting an unknown id is not an error
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(c.request(ctx).SetPathParam("id", id), http.MethodDelete, "/song/{id}")
}

// List returns every song
func (c *Client) List(ctx context.Context) ([]*models.Song, error) {
	return c.songs(c.request(ctx), "/songs")
}

// ByArtist returns the songs whose artist is exactly artist
func (c *Client) ByArtist(ctx context.Context, artist string) ([]*models.Song, error) {
	return c.songs(c.request(ctx).SetPathParam("artist", artist), "/songs/by-artist/{artist}")
}

// ByGenre returns the songs listing genre
func (c *Client) ByGenre(ctx context.Context, genre string) ([]*models.Song, error) {
	return c.songs(c.request(ctx).SetPathParam("genre", genre), "/songs/by-genre/{genre}")
}

// BetweenYears returns the songs released in [start, stop]
func (c *Client) BetweenYears(ctx context.Context, start, stop int) ([]*models.Song, error) {
	span := strconv.Itoa(start) + "-" + strconv.Itoa(stop)
	return c.songs(c.request(ctx).SetPathParam("range", span), "/songs/between-years/{range}")
}

// WithLyrics returns the songs whose lyrics contain every word of text
func (c *Client) WithLyrics(ctx context.Context, text string) ([]*models.Song, error) {
	return c.songs(c.request(ctx).SetPathParam("lyrics", text), "/songs/with-lyrics/{lyrics}")
}

// Stats reads the store statistics
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(c.request(ctx).SetResult(&stats), http.MethodGet, "/admin/stats"); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health returns nil when the API reports its store reachable
func (c *Client) Health(ctx context.Context) error {
	return c.do(c.request(ctx), http.MethodGet, "/healthz")
}

func (c *Client) songs(req *resty.Request, path string) ([]*models.Song, error) {
	songs := []*models.Song{}
	if err := c.do(req.SetResult(&songs), http.MethodGet, path); err != nil {
		return nil, err
	}
	return songs, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&APIError{})
}

func (c *Client) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	apiErr.StatusCode = resp.StatusCode()
	if apiErr.Message == "" {
		apiErr.Message = resp.String()
	}
	return apiErr
}
