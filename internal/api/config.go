package api

import (
	"time"

	"github.com/FocuswithJustin/expander/core/books"
)

// Config holds server configuration.
type Config struct {
	Port              int
	Version           string
	Registry          *books.Registry // nil = built-in catalog
	Host              string          // Link host (empty = ref.DefaultHost)
	Lang              string          // Link language (empty = ref.DefaultLang)
	CacheSize         int             // Cached resolutions (0 = cache.DefaultConfig)
	CacheTTL          time.Duration   // Cached resolution lifetime (0 = until evicted)
	RateLimitRequests int             // Requests per minute (0 = disabled)
	RateLimitBurst    int             // Burst size
	AllowedOrigins    []string        // CORS allowed origins (empty = allow all)
}
