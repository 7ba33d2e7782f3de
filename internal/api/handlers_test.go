package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-test/deep"

	"github.com/FocuswithJustin/expander/core/books"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Version == "" {
		cfg.Version = "test"
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decode unmarshals the envelope and, when data is non-nil, its payload.
func decode(t *testing.T, w *httptest.ResponseRecorder, data any) APIResponse {
	t.Helper()
	var raw struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v\n%s", err, w.Body.String())
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return raw.APIResponse
}

func resolvePath(citation string) string {
	return "/resolve?ref=" + url.QueryEscape(citation)
}

func TestHandleRoot(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()

	w := do(t, h, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var data map[string]any
	resp := decode(t, w, &data)
	if !resp.Success || data["version"] != "test" {
		t.Errorf("unexpected root response: %+v %v", resp, data)
	}

	w = do(t, h, http.MethodGet, "/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	if resp := decode(t, w, nil); resp.Success || resp.Error.Code != CodeNotFound {
		t.Errorf("unexpected error response: %+v", resp)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var health HealthInfo
	decode(t, w, &health)
	if health.Status != "healthy" || health.Version != "test" {
		t.Errorf("unexpected health: %+v", health)
	}
	if health.Books != s.registry.Len() || health.Digest != s.registry.Digest() {
		t.Errorf("health should describe the registry: %+v", health)
	}

	w = do(t, h, http.MethodPost, "/health", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestHandleResolve(t *testing.T) {
	const base = "https://www.churchofjesuschrist.org/study/scriptures"

	tests := []struct {
		input string
		want  Resolution
	}{
		{
			input: "1 Nephi 3:4",
			want: Resolution{
				Input: "1 Nephi 3:4", Book: "1-ne", Series: books.BookOfMormon,
				Chapter: "3", Verse: "4",
				URL:      base + "/bofm/1-ne/3?lang=eng&id=p4#p4",
				Markdown: "[1 Nephi 3:4](" + base + "/bofm/1-ne/3?lang=eng&id=p4#p4)",
			},
		},
		{
			input: "Matthew 11:28-30",
			want: Resolution{
				Input: "Matthew 11:28-30", Book: "matt", Series: books.NewTestament,
				Chapter: "11", Verse: "28-30",
				URL:      base + "/nt/matt/11?lang=eng&id=p28-p30#p28",
				Markdown: "[Matthew 11:28-30](" + base + "/nt/matt/11?lang=eng&id=p28-p30#p28)",
			},
		},
		{
			input: "wom",
			want: Resolution{
				Input: "wom", Book: "w-of-m", Series: books.BookOfMormon,
				URL:      base + "/bofm/w-of-m?lang=eng",
				Markdown: "[wom](" + base + "/bofm/w-of-m?lang=eng)",
			},
		},
	}

	h := newTestServer(t, Config{}).Handler()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			w := do(t, h, http.MethodGet, resolvePath(tt.input), nil)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
			}
			var got Resolution
			if resp := decode(t, w, &got); !resp.Success {
				t.Errorf("expected success: %+v", resp)
			}
			if diff := deep.Equal(got, tt.want); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestHandleResolveErrors(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantCode   string
	}{
		{"unknown book", http.MethodGet, resolvePath("Unknown 1:1"), http.StatusUnprocessableEntity, CodeInvalidReference},
		{"malformed", http.MethodGet, resolvePath("Matthew 11:"), http.StatusUnprocessableEntity, CodeInvalidReference},
		{"missing ref", http.MethodGet, "/resolve", http.StatusBadRequest, CodeMissingParameter},
		{"blank ref", http.MethodGet, resolvePath("   "), http.StatusBadRequest, CodeMissingParameter},
		{"wrong method", http.MethodPost, resolvePath("Alma 32"), http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{"oversized ref", http.MethodGet, resolvePath(strings.Repeat("Alma ", 60)), http.StatusBadRequest, CodeInvalidParameter},
		{"control characters", http.MethodGet, resolvePath("Alma\x0032"), http.StatusBadRequest, CodeInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			resp := decode(t, w, nil)
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}

	w := do(t, h, http.MethodGet, resolvePath("Unknown 1:1"), nil)
	if resp := decode(t, w, nil); resp.Error.Message != "Invalid reference: Unknown 1:1" {
		t.Errorf("message = %q", resp.Error.Message)
	}
}

func TestHandleResolveUsesCache(t *testing.T) {
	s := newTestServer(t, Config{CacheSize: 8})
	h := s.Handler()

	for _, input := range []string{"Alma 32:21", "  Alma 32:21 ", "Alma 32:21"} {
		if w := do(t, h, http.MethodGet, resolvePath(input), nil); w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
	}

	stats := s.cache.Stats()
	if stats.Size != 1 || stats.Misses != 1 || stats.Hits != 2 {
		t.Errorf("requests differing only in padding should share an entry: %+v", stats)
	}
}

func TestHandleResolveCustomBuilder(t *testing.T) {
	h := newTestServer(t, Config{Host: "example.org", Lang: "spa"}).Handler()

	w := do(t, h, http.MethodGet, resolvePath("1 Nephi 3:4"), nil)
	var got Resolution
	decode(t, w, &got)
	if got.URL != "https://example.org/study/scriptures/bofm/1-ne/3?lang=spa&id=p4#p4" {
		t.Errorf("URL = %q", got.URL)
	}
}

func TestHandleBooks(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/books", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var all []books.Book
	resp := decode(t, w, &all)
	if len(all) != s.registry.Len() || resp.Meta.Total != len(all) {
		t.Errorf("got %d books (total %d), want %d", len(all), resp.Meta.Total, s.registry.Len())
	}
	etag := w.Header().Get("ETag")
	if etag != `"`+s.registry.Digest()+`"` {
		t.Errorf("ETag = %q, want quoted digest", etag)
	}

	w = do(t, h, http.MethodGet, "/books", http.Header{"If-None-Match": {etag}})
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Errorf("matching If-None-Match should give an empty 304, got %d", w.Code)
	}

	w = do(t, h, http.MethodGet, "/books?series=nt", http.Header{"If-None-Match": {etag}})
	if w.Code != http.StatusOK {
		t.Fatalf("filtered listing has its own ETag, got %d", w.Code)
	}
	var nt []books.Book
	decode(t, w, &nt)
	if len(nt) != 27 {
		t.Errorf("got %d New Testament books, want 27", len(nt))
	}
	for _, b := range nt {
		if b.Series != books.NewTestament {
			t.Errorf("book %s has series %s", b.Code, b.Series)
		}
	}

	w = do(t, h, http.MethodGet, "/books?series=apocrypha", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}

	w = do(t, h, http.MethodDelete, "/books", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestMatchesETag(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{`"abc"`, true},
		{`W/"abc"`, true},
		{`"x", "abc"`, true},
		{`*`, true},
		{`"abd"`, false},
	}
	for _, tt := range tests {
		if got := matchesETag(tt.header, `"abc"`); got != tt.want {
			t.Errorf("matchesETag(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestCustomRegistry(t *testing.T) {
	registry, err := books.NewRegistry([]books.Book{
		{Code: "matt", Series: books.NewTestament, Aliases: []string{"Matthew"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, Config{Registry: registry}).Handler()

	if w := do(t, h, http.MethodGet, resolvePath("Matthew 5"), nil); w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, resolvePath("Alma 5"), nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", w.Code)
	}
}

func TestMiddlewareChain(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()

	w := do(t, h, http.MethodGet, "/health", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected permissive CORS by default")
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

func TestMiddlewareOrder(t *testing.T) {
	h := newTestServer(t, Config{
		AllowedOrigins:    []string{"https://notes.example"},
		RateLimitRequests: 1,
		RateLimitBurst:    1,
	}).Handler()

	rejected := do(t, h, http.MethodOptions, "/books", http.Header{"Origin": {"https://evil.example"}})
	if rejected.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rejected.Code)
	}
	if rejected.Header().Get("X-Content-Type-Options") != "nosniff" || rejected.Header().Get("X-Request-ID") == "" {
		t.Errorf("rejected preflight is missing outer headers: %v", rejected.Header())
	}

	for i := 0; i < 3; i++ {
		w := do(t, h, http.MethodOptions, "/books", http.Header{"Origin": {"https://notes.example"}})
		if w.Code != http.StatusNoContent {
			t.Fatalf("preflight %d: expected status 204, got %d", i+1, w.Code)
		}
	}
	if w := do(t, h, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("preflights should not use up the rate limit, got status %d", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := CORSMiddleware(CORSConfig{AllowedOrigins: []string{"https://notes.example"}}, next)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", http.MethodGet, "https://notes.example", http.StatusOK, "https://notes.example"},
		{"other origin passes without headers", http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"allowed preflight", http.MethodOptions, "https://notes.example", http.StatusNoContent, "https://notes.example"},
		{"rejected preflight", http.MethodOptions, "https://evil.example", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, "/resolve", http.Header{"Origin": {tt.origin}})
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}

	w := do(t, CORSMiddleware(CORSConfig{}, next), http.MethodOptions, "/books", nil)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("open preflight: status %d, origin %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
}
