package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/FocuswithJustin/expander/core/books"
	"github.com/FocuswithJustin/expander/core/errors"
	"github.com/FocuswithJustin/expander/core/ref"
	"github.com/FocuswithJustin/expander/core/sqlite"
	"github.com/FocuswithJustin/expander/internal/api"
	"github.com/FocuswithJustin/expander/internal/logging"
	"github.com/FocuswithJustin/expander/internal/validation"
)

// registry loads the catalog selected by the global flags: --db first,
// then --catalog, otherwise the built-in catalog.
func (g *Globals) registry(rt *runtime) (*books.Registry, error) {
	var (
		r      *books.Registry
		source string
		err    error
	)

	switch {
	case g.DB != "":
		source = "sqlite"
		r, err = loadSQLite(rt, g.DB)
	case g.Catalog != "":
		source = "directory"
		r, err = books.LoadDir(g.Catalog)
	default:
		source = "embedded"
		r, err = books.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s catalog: %w", source, err)
	}

	logging.CatalogLoaded(source, r.Len(), r.Aliases(), r.Digest())
	return r, nil
}

func loadSQLite(rt *runtime, path string) (*books.Registry, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	list, err := books.LoadSQL(rt.ctx, db)
	if err != nil {
		return nil, err
	}
	return books.NewRegistry(list)
}

func (g *Globals) builder() *ref.Builder {
	return ref.NewBuilder(ref.WithHost(g.Host), ref.WithLang(g.Lang))
}

// LinkCmd prints the markdown link for a reference.
type LinkCmd struct {
	Reference []string `arg:"" help:"Scripture reference, e.g. \"1 Nephi 3:4\"; words may be passed unquoted"`
	URLOnly   bool     `name:"url-only" help:"Print only the URL"`
}

func (c *LinkCmd) Run(g *Globals, rt *runtime) error {
	registry, err := g.registry(rt)
	if err != nil {
		return err
	}

	input := strings.Join(c.Reference, " ")
	r, err := ref.NewParser(registry).Parse(input)
	if err != nil {
		reason := errors.ReasonSyntax
		var refErr *errors.ReferenceError
		if errors.As(err, &refErr) {
			reason = refErr.Reason
		}
		logging.ReferenceRejected(rt.ctx, input, reason)
		fmt.Fprintf(rt.stderr, "Invalid reference: %s\n", input)
		return exitCode(1)
	}

	b := g.builder()
	url := b.URL(r)
	logging.ReferenceResolved(rt.ctx, input, r.Book, url)

	if c.URLOnly {
		fmt.Fprintln(rt.stdout, url)
		return nil
	}
	fmt.Fprintln(rt.stdout, b.Markdown(r, input))
	return nil
}

// BooksCmd lists the active catalog.
type BooksCmd struct {
	Series string `help:"Only list books in this series" enum:"${series}," default:""`
	JSON   bool   `name:"json" help:"Print JSON instead of a table"`
}

func (c *BooksCmd) Run(g *Globals, rt *runtime) error {
	registry, err := g.registry(rt)
	if err != nil {
		return err
	}

	var list []books.Book
	for _, b := range registry.Books() {
		if c.Series == "" || b.Series == books.Series(c.Series) {
			list = append(list, b)
		}
	}

	if c.JSON {
		enc := json.NewEncoder(rt.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Digest string       `json:"digest"`
			Books  []books.Book `json:"books"`
		}{registry.Digest(), list})
	}

	w := tabwriter.NewWriter(rt.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tSERIES\tALIASES")
	for _, b := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", b.Code, b.Series, strings.Join(b.Aliases, ", "))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(rt.stdout, "\n%d books, digest %s\n", len(list), registry.Digest())
	return nil
}

// ExportCmd writes the active catalog to SQLite.
type ExportCmd struct {
	Out string `required:"" help:"Output database path" type:"path"`
}

func (c *ExportCmd) Run(g *Globals, rt *runtime) error {
	registry, err := g.registry(rt)
	if err != nil {
		return err
	}

	if err := validation.ValidatePath(c.Out); err != nil {
		return err
	}

	db, err := sqlite.Open(c.Out)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := books.SaveSQL(rt.ctx, db, registry.Books()); err != nil {
		return fmt.Errorf("failed to export catalog: %w", err)
	}

	fmt.Fprintf(rt.stdout, "Exported %d books to %s (%s driver)\n", registry.Len(), c.Out, sqlite.DriverType())
	return nil
}

// ServeCmd starts the HTTP API.
type ServeCmd struct {
	Port           int           `help:"HTTP server port" default:"8080" env:"EXPANDER_PORT"`
	CacheSize      int           `name:"cache-size" help:"Number of resolved references to cache" default:"1024"`
	CacheTTL       time.Duration `name:"cache-ttl" help:"How long a cached resolution stays valid (0 = until evicted)" default:"0s"`
	RateLimit      int           `name:"rate-limit" help:"Requests per minute per client (0 = unlimited)" default:"0"`
	RateBurst      int           `name:"rate-burst" help:"Rate limit burst size" default:"10"`
	AllowedOrigins []string      `name:"allowed-origins" help:"CORS allowed origins (empty = all)" sep:","`
}

func (c *ServeCmd) Run(g *Globals, rt *runtime) error {
	registry, err := g.registry(rt)
	if err != nil {
		return err
	}

	return api.Start(rt.ctx, api.Config{
		Port:              c.Port,
		Version:           version,
		Registry:          registry,
		Host:              g.Host,
		Lang:              g.Lang,
		CacheSize:         c.CacheSize,
		CacheTTL:          c.CacheTTL,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateBurst,
		AllowedOrigins:    c.AllowedOrigins,
	})
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(rt *runtime) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(rt.stdout, "expander version %s (sqlite: %s, %s)\n", version, info.DriverType, info.Package)
	return nil
}
