package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/FocuswithJustin/expander/internal/logging"
)

// captureLogs sends JSON debug logs to a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.InitLoggerTo(&buf, logging.LevelDebug, logging.FormatJSON)
	t.Cleanup(func() {
		logging.InitLogger(logging.LevelWarn, logging.FormatText)
	})
	return &buf
}

func TestStartStopsOnCancel(t *testing.T) {
	logs := captureLogs(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Start(ctx, Config{Port: 0, Version: "test"}); err != nil {
		t.Fatalf("Start() = %v, want nil after cancellation", err)
	}
	for _, msg := range []string{`"msg":"server_startup"`, `"msg":"server_stopped"`} {
		if !strings.Contains(logs.String(), msg) {
			t.Errorf("expected %s in logs:\n%s", msg, logs.String())
		}
	}
}

func TestStartReportsListenError(t *testing.T) {
	logs := captureLogs(t)

	err := Start(context.Background(), Config{Port: -1, Version: "test"})
	if err == nil {
		t.Fatal("Start() on an invalid port should fail")
	}
	if !strings.Contains(logs.String(), `"msg":"server_failed"`) {
		t.Errorf("expected server_failed in logs:\n%s", logs.String())
	}
}

func TestServerCacheTTL(t *testing.T) {
	s := newTestServer(t, Config{CacheTTL: time.Nanosecond})
	h := s.Handler()

	for i := 0; i < 2; i++ {
		if w := do(t, h, http.MethodGet, resolvePath("Alma 32"), nil); w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		time.Sleep(time.Millisecond)
	}

	if stats := s.cache.Stats(); stats.Misses != 2 || stats.Hits != 0 {
		t.Errorf("expired entries should be parsed again: %+v", stats)
	}
}

func TestServerCacheEvictionIsLogged(t *testing.T) {
	logs := captureLogs(t)
	h := newTestServer(t, Config{CacheSize: 1}).Handler()

	for _, input := range []string{"Alma 32", "Enos"} {
		if w := do(t, h, http.MethodGet, resolvePath(input), nil); w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
	}

	if !strings.Contains(logs.String(), `"msg":"cache_evicted","input":"Alma 32"`) {
		t.Errorf("expected eviction of the older entry in logs:\n%s", logs.String())
	}
}
