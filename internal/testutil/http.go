package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// HTTPTestHelper provides utilities for HTTP testing
type HTTPTestHelper struct {
	t      *testing.T
	router http.Handler
}

// NewHTTPTestHelper creates a new HTTP test helper
func NewHTTPTestHelper(t *testing.T) *HTTPTestHelper {
	gin.SetMode(gin.TestMode)
	return &HTTPTestHelper{
		t:      t,
		router: gin.New(),
	}
}

// SetRouter sets the handler to use for testing
func (h *HTTPTestHelper) SetRouter(router http.Handler) {
	h.router = router
}

// Do performs a request with a raw body; an empty body sends none
func (h *HTTPTestHelper) Do(method, url, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(h.t, err, "Failed to create HTTP request")

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)

	return recorder
}

// SendJSON performs a request with payload marshalled as JSON
func (h *HTTPTestHelper) SendJSON(method, url string, payload any) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	require.NoError(h.t, err, "Failed to marshal JSON payload")

	req, err := http.NewRequest(method, url, bytes.NewBuffer(body))
	require.NoError(h.t, err, "Failed to create HTTP request")

	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)

	return recorder
}

// GetJSON performs a GET request expecting JSON response
func (h *HTTPTestHelper) GetJSON(url string) *httptest.ResponseRecorder {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(h.t, err, "Failed to create HTTP request")

	req.Header.Set("Accept", "application/json")

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)

	return recorder
}

// AssertJSONResponse asserts that the response is valid JSON and unmarshals it
func (h *HTTPTestHelper) AssertJSONResponse(recorder *httptest.ResponseRecorder, expectedStatus int, target any) {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code: %s", recorder.Body.String())
	require.Equal(h.t, "application/json; charset=utf-8", recorder.Header().Get("Content-Type"), "Expected JSON content type")

	err := json.Unmarshal(recorder.Body.Bytes(), target)
	require.NoError(h.t, err, "Failed to unmarshal JSON response")
}

// AssertErrorResponse asserts the status and the error kind of a failed request
func (h *HTTPTestHelper) AssertErrorResponse(recorder *httptest.ResponseRecorder, expectedStatus int, expectedKind string) {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code: %s", recorder.Body.String())

	var errorResponse map[string]any
	err := json.Unmarshal(recorder.Body.Bytes(), &errorResponse)
	require.NoError(h.t, err, "Failed to unmarshal error response")

	require.Equal(h.t, expectedKind, errorResponse["error"], "Unexpected error kind")
	require.NotEmpty(h.t, errorResponse["message"], "Expected message field in response")
}

// MockHTTPServer provides a mock HTTP server for testing API clients
type MockHTTPServer struct {
	server   *httptest.Server
	handlers map[string]http.HandlerFunc
	prefixes []prefixHandler
}

type prefixHandler struct {
	prefix  string
	handler http.HandlerFunc
}

// NewMockHTTPServer creates a new mock HTTP server
func NewMockHTTPServer() *MockHTTPServer {
	mock := &MockHTTPServer{
		handlers: make(map[string]http.HandlerFunc),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", mock.routeRequest)

	mock.server = httptest.NewServer(mux)
	return mock
}

// URL returns the mock server URL
func (m *MockHTTPServer) URL() string {
	return m.server.URL
}

// Close closes the mock server
func (m *MockHTTPServer) Close() {
	m.server.Close()
}

// On registers a handler for a specific path
func (m *MockHTTPServer) On(path string, handler http.HandlerFunc) {
	m.handlers[path] = handler
}

// OnPrefix registers a handler for every path under prefix that has no handler of its own.
// Prefixes are tried in registration order.
func (m *MockHTTPServer) OnPrefix(prefix string, handler http.HandlerFunc) {
	m.prefixes = append(m.prefixes, prefixHandler{prefix: prefix, handler: handler})
}

// routeRequest routes requests to registered handlers
func (m *MockHTTPServer) routeRequest(w http.ResponseWriter, r *http.Request) {
	if handler, exists := m.handlers[r.URL.Path]; exists {
		handler(w, r)
		return
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(r.URL.Path, p.prefix) {
			p.handler(w, r)
			return
		}
	}

	// Default handler returns 404
	http.NotFound(w, r)
}
