package books

import (
	"strings"
)

// Series identifies a volume of scripture. The value is used verbatim as a
// URL path segment.
type Series string

const (
	// BookOfMormon is the Book of Mormon.
	BookOfMormon Series = "bofm"
	// NewTestament is the New Testament.
	NewTestament Series = "nt"
	// OldTestament is the Old Testament.
	OldTestament Series = "ot"
	// DoctrineAndCovenants covers the Doctrine and Covenants and the Official Declarations.
	DoctrineAndCovenants Series = "dc-testament"
	// PearlOfGreatPrice is the Pearl of Great Price.
	PearlOfGreatPrice Series = "pgp"
)

// Catalog ties a catalog data file to the series its books belong to.
type Catalog struct {
	File   string
	Series Series
}

// catalogs lists the known catalog files in load order.
var catalogs = []Catalog{
	{File: "bofm_books.txt", Series: BookOfMormon},
	{File: "nt_books.txt", Series: NewTestament},
	{File: "ot_books.txt", Series: OldTestament},
	{File: "dc-testament.txt", Series: DoctrineAndCovenants},
	{File: "pgp.txt", Series: PearlOfGreatPrice},
}

// AllSeries returns every known series in catalog order.
func AllSeries() []Series {
	out := make([]Series, len(catalogs))
	for i, c := range catalogs {
		out[i] = c.Series
	}
	return out
}

// CatalogFor returns the catalog whose data file is named name.
// A trailing ".xz" is ignored.
func CatalogFor(name string) (Catalog, bool) {
	name = strings.TrimSuffix(name, xzSuffix)
	for _, c := range catalogs {
		if c.File == name {
			return c, true
		}
	}
	return Catalog{}, false
}

// compressionSuffixes are archive suffixes recognised on catalog files
// only so they can be rejected; xz is the one supported compression.
var compressionSuffixes = []string{".gz", ".bz2", ".zst", ".lz4", ".lzma", ".zip"}

// compressedCatalog reports whether name is a known catalog file carrying
// an unsupported compression suffix, e.g. "nt_books.txt.gz".
func compressedCatalog(name string) (Catalog, string, bool) {
	for _, suffix := range compressionSuffixes {
		if base, ok := strings.CutSuffix(name, suffix); ok {
			for _, c := range catalogs {
				if c.File == base {
					return c, suffix, true
				}
			}
		}
	}
	return Catalog{}, "", false
}

// Valid reports whether s is one of the known series.
func (s Series) Valid() bool {
	for _, c := range catalogs {
		if c.Series == s {
			return true
		}
	}
	return false
}

func (s Series) String() string {
	return string(s)
}
