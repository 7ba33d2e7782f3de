package books

import (
	"embed"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/ulikunitz/xz"
	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/expander/core/errors"
)

const xzSuffix = ".xz"

//go:embed data/*.txt
var embedded embed.FS

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	data, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return LoadFS(data)
})

// Default returns the registry built from the catalogs compiled into the
// binary. It is built on first use and shared afterwards.
func Default() (*Registry, error) {
	return defaultRegistry()
}

// opener returns the reader for one catalog, or an error matching
// fs.ErrNotExist when the catalog is absent.
type opener func(c Catalog) (rc io.ReadCloser, path string, err error)

// LoadFS builds a registry from the catalog files at the root of fsys.
// Each catalog may be stored plain or xz-compressed; absent catalogs are
// skipped.
func LoadFS(fsys fs.FS) (*Registry, error) {
	return load(func(c Catalog) (io.ReadCloser, string, error) {
		f, err := fsys.Open(c.File)
		if err == nil {
			return f, c.File, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, c.File, err
		}
		name := c.File + xzSuffix
		f, err = fsys.Open(name)
		if err != nil {
			return nil, name, err
		}
		return decompress(f, name)
	})
}

// LoadDir builds a registry from catalog files found anywhere under dir.
// Files whose names are not known catalogs are ignored. A catalog present
// more than once (including once plain and once compressed) is an error,
// as is a catalog compressed with anything but xz.
func LoadDir(dir string) (*Registry, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.NewIO("stat", dir, err)
	}

	paths := make(map[string]string)
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			c, ok := CatalogFor(de.Name())
			if !ok {
				if c, suffix, compressed := compressedCatalog(de.Name()); compressed {
					return errors.NewUnsupported(suffix+" compression",
						osPathname+": store "+c.File+" plain or as "+c.File+xzSuffix)
				}
				return nil
			}
			if prev, dup := paths[c.File]; dup {
				return errors.NewValidation("catalog", "duplicate catalog "+c.File+": "+prev+" and "+osPathname)
			}
			paths[c.File] = osPathname
			return nil
		},
		FollowSymbolicLinks: true,
	})
	if err != nil {
		var (
			verr *errors.ValidationError
			uerr *errors.UnsupportedError
		)
		switch {
		case errors.As(err, &verr):
			return nil, verr
		case errors.As(err, &uerr):
			return nil, uerr
		}
		return nil, errors.NewIO("walk", dir, err)
	}

	return load(func(c Catalog) (io.ReadCloser, string, error) {
		path, ok := paths[c.File]
		if !ok {
			return nil, filepath.Join(dir, c.File), fs.ErrNotExist
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, path, err
		}
		if strings.HasSuffix(path, xzSuffix) {
			return decompress(f, path)
		}
		return f, path, nil
	})
}

// load parses every catalog concurrently and merges the results in
// catalog order.
func load(open opener) (*Registry, error) {
	parts := make([][]Book, len(catalogs))
	found := make([]bool, len(catalogs))

	var g errgroup.Group
	for i, c := range catalogs {
		g.Go(func() error {
			rc, path, err := open(c)
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if err != nil {
				return errors.NewIO("open", path, err)
			}
			defer rc.Close()

			books, err := ParseCatalog(rc, path, c.Series)
			if err != nil {
				return err
			}
			parts[i] = books
			found[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Book
	loaded := 0
	for i := range catalogs {
		if found[i] {
			loaded++
			all = append(all, parts[i]...)
		}
	}
	if loaded == 0 {
		return nil, errors.NewNotFound("catalog", "no catalog files")
	}
	return NewRegistry(all)
}

type xzReadCloser struct {
	*xz.Reader
	io.Closer
}

func decompress(f io.ReadCloser, name string) (io.ReadCloser, string, error) {
	zr, err := xz.NewReader(f)
	if err != nil {
		f.Close()
		return nil, name, errors.NewIO("decompress", name, err)
	}
	return xzReadCloser{Reader: zr, Closer: f}, name, nil
}
