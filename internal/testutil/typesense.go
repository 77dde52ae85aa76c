package testutil

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// TypesenseServer is an in-memory stand-in for the parts of the Typesense REST
// API the song store uses. Searches ignore q and filter_by and page through
// every document in id order.
type TypesenseServer struct {
	*MockHTTPServer

	mu          sync.Mutex
	collections map[string]*typesenseCollection
	searchPages []int
	failWith    int
	conflict    bool
}

type typesenseCollection struct {
	fields    []map[string]any
	documents map[string]map[string]any
}

// NewTypesenseServer starts an empty server
func NewTypesenseServer() *TypesenseServer {
	s := &TypesenseServer{
		MockHTTPServer: NewMockHTTPServer(),
		collections:    make(map[string]*typesenseCollection),
	}
	s.On("/health", s.health)
	s.On("/collections", s.createCollection)
	s.OnPrefix("/collections/", s.collection)
	return s
}

// FailWith makes every later request answer with status; 0 restores normal service
func (s *TypesenseServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = status
}

// ConflictOnCreate makes collection creation answer 409, as when another
// instance created it first
func (s *TypesenseServer) ConflictOnCreate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflict = true
}

// PutCollection creates or replaces a collection with the given fields
func (s *TypesenseServer) PutCollection(name string, fields []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = &typesenseCollection{fields: fields, documents: make(map[string]map[string]any)}
}

// Fields returns the fields of a collection, or nil when it does not exist
func (s *TypesenseServer) Fields(name string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c.fields
	}
	return nil
}

// PutDocument stores doc in an existing collection
func (s *TypesenseServer) PutDocument(name string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name].documents[doc["id"].(string)] = doc
}

// Document returns a stored document as it would be served
func (s *TypesenseServer) Document(name, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, false
	}
	doc, ok := c.documents[id]
	return doc, ok
}

// SearchPages lists the page numbers of every search served so far
func (s *TypesenseServer) SearchPages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.searchPages...)
}

func (s *TypesenseServer) failing(w http.ResponseWriter) bool {
	if s.failWith == 0 {
		return false
	}
	writeTypesense(w, s.failWith, map[string]any{"message": http.StatusText(s.failWith)})
	return true
}

func (s *TypesenseServer) health(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing(w) {
		return
	}
	writeTypesense(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *TypesenseServer) createCollection(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing(w) {
		return
	}
	if r.Method != http.MethodPost {
		writeTypesense(w, http.StatusMethodNotAllowed, map[string]any{"message": "method not allowed"})
		return
	}

	var schema struct {
		Name   string           `json:"name"`
		Fields []map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&schema); err != nil {
		writeTypesense(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	if _, exists := s.collections[schema.Name]; exists || s.conflict {
		writeTypesense(w, http.StatusConflict, map[string]any{"message": "A collection with name `" + schema.Name + "` already exists."})
		return
	}
	s.collections[schema.Name] = &typesenseCollection{fields: schema.Fields, documents: make(map[string]map[string]any)}
	writeTypesense(w, http.StatusCreated, collectionBody(schema.Name, s.collections[schema.Name]))
}

// collection serves /collections/<name>[/documents[/<id>|/search]]
func (s *TypesenseServer) collection(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing(w) {
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/collections/"), "/")
	for i, part := range parts {
		parts[i], _ = url.PathUnescape(part)
	}
	name := parts[0]
	c, ok := s.collections[name]
	if !ok {
		writeTypesense(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		writeTypesense(w, http.StatusOK, collectionBody(name, c))
	case len(parts) == 1 && r.Method == http.MethodDelete:
		delete(s.collections, name)
		writeTypesense(w, http.StatusOK, collectionBody(name, c))
	case len(parts) == 2 && parts[1] == "documents" && r.Method == http.MethodPost:
		var doc map[string]any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			writeTypesense(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
			return
		}
		id, _ := doc["id"].(string)
		if id == "" {
			writeTypesense(w, http.StatusBadRequest, map[string]any{"message": "Document is missing an id."})
			return
		}
		c.documents[id] = doc
		writeTypesense(w, http.StatusCreated, doc)
	case len(parts) == 3 && parts[1] == "documents" && parts[2] == "search" && r.Method == http.MethodGet:
		s.search(w, r, c)
	case len(parts) == 3 && parts[1] == "documents":
		doc, found := c.documents[parts[2]]
		if !found {
			writeTypesense(w, http.StatusNotFound, map[string]any{"message": "Could not find a document with id: " + parts[2]})
			return
		}
		if r.Method == http.MethodDelete {
			delete(c.documents, parts[2])
		}
		writeTypesense(w, http.StatusOK, doc)
	default:
		writeTypesense(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	}
}

func (s *TypesenseServer) search(w http.ResponseWriter, r *http.Request, c *typesenseCollection) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage < 0 {
		perPage = 10
	}
	s.searchPages = append(s.searchPages, page)

	ids := make([]string, 0, len(c.documents))
	for id := range c.documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	hits := []map[string]any{}
	for i := (page - 1) * perPage; i < len(ids) && i < page*perPage; i++ {
		hits = append(hits, map[string]any{"document": c.documents[ids[i]]})
	}
	writeTypesense(w, http.StatusOK, map[string]any{
		"found": len(ids),
		"page":  page,
		"hits":  hits,
	})
}

func collectionBody(name string, c *typesenseCollection) map[string]any {
	return map[string]any{
		"name":          name,
		"fields":        c.fields,
		"num_documents": len(c.documents),
	}
}

func writeTypesense(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
