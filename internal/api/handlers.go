package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/expander/core/books"
	"github.com/FocuswithJustin/expander/core/errors"
	"github.com/FocuswithJustin/expander/core/ref"
	"github.com/FocuswithJustin/expander/internal/logging"
	"github.com/FocuswithJustin/expander/internal/validation"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Uptime  string      `json:"uptime"`
	Books   int         `json:"books"`
	Aliases int         `json:"aliases"`
	Digest  string      `json:"digest"`
	Cache   cacheStatus `json:"cache"`
}

type cacheStatus struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// Resolution is the /resolve response body.
type Resolution struct {
	Input    string       `json:"input"`
	Book     string       `json:"book"`
	Series   books.Series `json:"series"`
	Chapter  string       `json:"chapter,omitempty"`
	Verse    string       `json:"verse,omitempty"`
	URL      string       `json:"url"`
	Markdown string       `json:"markdown"`
}

// Error codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeMissingParameter = "MISSING_PARAMETER"
	CodeInvalidReference = "INVALID_REFERENCE"
	CodeInvalidSeries    = "INVALID_SERIES"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, CodeNotFound, "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"name":    "Scripture Reference Expander API",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /resolve?ref=<citation>",
			"GET /books[?series=<series>]",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET is allowed")
		return
	}

	stats := s.cache.Stats()
	respond(w, http.StatusOK, HealthInfo{
		Status:  "healthy",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Books:   s.registry.Len(),
		Aliases: s.registry.Aliases(),
		Digest:  s.registry.Digest(),
		Cache:   cacheStatus{Hits: stats.Hits, Misses: stats.Misses, Size: stats.Size},
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET is allowed")
		return
	}

	input := r.URL.Query().Get("ref")
	key := strings.TrimSpace(input)
	if key == "" {
		respondError(w, http.StatusBadRequest, CodeMissingParameter, "Query parameter 'ref' is required")
		return
	}
	if err := validation.ValidateReference(input); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidParameter, err.Error())
		return
	}

	reference, err := s.cache.Resolve(key, s.parser.Parse)
	if err != nil {
		reason := errors.ReasonSyntax
		var refErr *errors.ReferenceError
		if errors.As(err, &refErr) {
			reason = refErr.Reason
		}
		logging.ReferenceRejected(r.Context(), input, reason)
		respondError(w, http.StatusUnprocessableEntity, CodeInvalidReference, "Invalid reference: "+input)
		return
	}

	res := s.resolution(input, reference)
	logging.ReferenceResolved(r.Context(), input, reference.Book, res.URL)
	respond(w, http.StatusOK, res)
}

func (s *Server) resolution(input string, r ref.Reference) Resolution {
	res := Resolution{
		Input:    input,
		Book:     r.Book,
		Series:   r.Series,
		Verse:    string(r.Verse()),
		URL:      s.builder.URL(r),
		Markdown: s.builder.Markdown(r, input),
	}
	if r.Chapter != nil {
		res.Chapter = r.Chapter.Number
	}
	return res
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Only GET is allowed")
		return
	}

	list := s.registry.Books()
	etag := s.registry.Digest()

	if name := r.URL.Query().Get("series"); name != "" {
		series := books.Series(name)
		if !series.Valid() {
			respondError(w, http.StatusBadRequest, CodeInvalidSeries, "Unknown series: "+name)
			return
		}
		filtered := list[:0]
		for _, b := range list {
			if b.Series == series {
				filtered = append(filtered, b)
			}
		}
		list = filtered
		etag += "-" + name
	}

	etag = `"` + etag + `"`
	w.Header().Set("ETag", etag)
	if matchesETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	respondList(w, http.StatusOK, list, len(list))
}

// matchesETag reports whether an If-None-Match header value names etag.
func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func respond(w http.ResponseWriter, status int, data any) {
	respondList(w, status, data, 0)
}

func respondList(w http.ResponseWriter, status int, data any, total int) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}
