package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakePage is a page stored by WordPressServer.
type FakePage struct {
	ID         int
	Collection string
	Slug       string
	Title      string
	Content    string
	Parent     int
	MenuOrder  int
	Status     string
}

// RecordedRequest captures a request served by WordPressServer.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

// WordPressServer is an in-memory stand-in for the wp/v2 REST API covering
// list-by-slug, create and update. It enforces HTTP Basic credentials.
type WordPressServer struct {
	*httptest.Server

	Username string
	Password string

	mu         sync.Mutex
	nextID     int
	pages      map[int]*FakePage
	requests   []RecordedRequest
	failWrites int
	failBody   string
	sources    map[string]string
}

// NewWordPressServer starts a fake server closed with tb's cleanup.
func NewWordPressServer(tb testing.TB, username, password string) *WordPressServer {
	tb.Helper()
	s := &WordPressServer{
		Username: username,
		Password: password,
		nextID:   100,
		pages:    map[int]*FakePage{},
		sources:  map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/wp/v2/{collection}", s.handleList)
	mux.HandleFunc("POST /wp-json/wp/v2/{collection}", s.handleCreate)
	mux.HandleFunc("POST /wp-json/wp/v2/{collection}/{id}", s.handleUpdate)
	mux.HandleFunc("GET /sources/{name...}", s.handleSource)

	s.Server = httptest.NewServer(s.authenticate(mux))
	tb.Cleanup(s.Close)
	return s
}

// Seed stores a page directly and returns its id.
func (s *WordPressServer) Seed(collection, slug string, parent int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(&FakePage{Collection: collection, Slug: slug, Parent: parent, Status: "publish"})
}

// SeedWithID stores a page under a fixed id.
func (s *WordPressServer) SeedWithID(collection string, id int, slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[id] = &FakePage{ID: id, Collection: collection, Slug: slug, Status: "publish"}
}

// SeedWithStatus stores a page with the given status and returns its id.
func (s *WordPressServer) SeedWithStatus(collection, slug, status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(&FakePage{Collection: collection, Slug: slug, Status: status})
}

// SetSource publishes a Markdown or manifest document under /sources/{name}.
func (s *WordPressServer) SetSource(name, body string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = body
	return s.URL + "/sources/" + name
}

// FailWrites makes the next n create/update requests answer with status 500.
func (s *WordPressServer) FailWrites(n int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = n
	s.failBody = body
}

// PageBySlug returns a copy of the stored page with slug.
func (s *WordPressServer) PageBySlug(collection, slug string) (FakePage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, page := range s.sortedLocked() {
		if page.Collection == collection && page.Slug == slug {
			return *page, true
		}
	}
	return FakePage{}, false
}

// Requests returns every API request served so far, source fetches excluded.
func (s *WordPressServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// Writes returns the POST requests served so far.
func (s *WordPressServer) Writes() []RecordedRequest {
	var writes []RecordedRequest
	for _, req := range s.Requests() {
		if req.Method == http.MethodPost {
			writes = append(writes, req)
		}
	}
	return writes
}

func (s *WordPressServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/sources/") {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"code":    "rest_not_logged_in",
				"message": "You are not currently logged in.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *WordPressServer) handleSource(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body, ok := s.sources[r.PathValue("name")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = io.WriteString(w, body)
}

func (s *WordPressServer) handleList(w http.ResponseWriter, r *http.Request) {
	s.record(r, nil)
	collection := r.PathValue("collection")
	slug := r.URL.Query().Get("slug")
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	statuses := listStatuses(r.URL.Query().Get("status"))

	s.mu.Lock()
	out := []map[string]any{}
	for _, page := range s.sortedLocked() {
		if page.Collection != collection || page.Slug != slug || !statuses[page.Status] {
			continue
		}
		out = append(out, renderPage(page, s.URL))
		if perPage > 0 && len(out) >= perPage {
			break
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *WordPressServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decode(w, r)
	if !ok {
		return
	}
	s.record(r, payload)
	if s.consumeFailure(w) {
		return
	}

	s.mu.Lock()
	page := &FakePage{Collection: r.PathValue("collection")}
	applyPayload(page, payload)
	if page.Status == "" {
		page.Status = "draft"
	}
	s.insertLocked(page)
	out := renderPage(page, s.URL)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

func (s *WordPressServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decode(w, r)
	if !ok {
		return
	}
	s.record(r, payload)
	if s.consumeFailure(w) {
		return
	}

	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	page, found := s.pages[id]
	if !found || page.Collection != r.PathValue("collection") {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{
			"code":    "rest_post_invalid_id",
			"message": "Invalid post ID.",
		})
		return
	}
	applyPayload(page, payload)
	out := renderPage(page, s.URL)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *WordPressServer) decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	payload := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    "rest_invalid_json",
			"message": err.Error(),
		})
		return nil, false
	}
	return payload, true
}

func (s *WordPressServer) consumeFailure(w http.ResponseWriter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites <= 0 {
		return false
	}
	s.failWrites--
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, s.failBody)
	return true
}

func (s *WordPressServer) record(r *http.Request, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
}

func (s *WordPressServer) insertLocked(page *FakePage) int {
	if page.ID == 0 {
		s.nextID++
		page.ID = s.nextID
	}
	s.pages[page.ID] = page
	return page.ID
}

func (s *WordPressServer) sortedLocked() []*FakePage {
	out := make([]*FakePage, 0, len(s.pages))
	for _, page := range s.pages {
		out = append(out, page)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// listStatuses mirrors the collection filter, which only lists published
// records unless a status list is given.
func listStatuses(param string) map[string]bool {
	statuses := map[string]bool{}
	for _, status := range strings.Split(param, ",") {
		if status = strings.TrimSpace(status); status != "" {
			statuses[status] = true
		}
	}
	if len(statuses) == 0 {
		statuses["publish"] = true
	}
	return statuses
}

func applyPayload(page *FakePage, payload map[string]any) {
	if v, ok := payload["title"].(string); ok {
		page.Title = v
	}
	if v, ok := payload["content"].(string); ok {
		page.Content = v
	}
	if v, ok := payload["slug"].(string); ok {
		page.Slug = v
	}
	if v, ok := payload["parent"].(float64); ok {
		page.Parent = int(v)
	}
	if v, ok := payload["menu_order"].(float64); ok {
		page.MenuOrder = int(v)
	}
	if v, ok := payload["status"].(string); ok {
		page.Status = v
	}
}

func renderPage(page *FakePage, base string) map[string]any {
	return map[string]any{
		"id":         page.ID,
		"slug":       page.Slug,
		"status":     page.Status,
		"parent":     page.Parent,
		"menu_order": page.MenuOrder,
		"link":       fmt.Sprintf("%s/%s/", base, page.Slug),
		"title":      map[string]any{"rendered": page.Title},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
