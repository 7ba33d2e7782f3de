// Package books maps the many ways people write a book of scripture onto a
// canonical book code and the series that book belongs to.
//
// A Registry is built once from catalog data and is read-only afterwards,
// so a single value can be shared by any number of goroutines.
package books

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/expander/core/errors"
)

// Book is one catalog record: a canonical code, its series, and the
// aliases that resolve to it.
type Book struct {
	Code    string   `json:"code"`
	Series  Series   `json:"series"`
	Aliases []string `json:"aliases"`
}

// Registry resolves book names to canonical codes.
type Registry struct {
	aliases map[string]string // normalized alias -> code
	series  map[string]Series // code -> series
	sorted  []string          // normalized aliases, sorted for prefix search
	books   []Book
	digest  string
}

// Normalize lower-cases name, trims it and collapses internal runs of
// whitespace to a single space. Aliases and lookup input share this form.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NewRegistry builds a registry from catalog records. Records that share a
// code are merged. The canonical code of every book is registered as one
// of its aliases.
//
// It fails when a record has no code or an unknown series, when a code is
// listed under two series, or when one alias names two different books.
func NewRegistry(books []Book) (*Registry, error) {
	r := &Registry{
		aliases: make(map[string]string),
		series:  make(map[string]Series),
	}
	index := make(map[string]int)

	for _, b := range books {
		code := strings.TrimSpace(b.Code)
		if code == "" {
			return nil, errors.NewValidation("code", "book code must not be empty")
		}
		if !b.Series.Valid() {
			return nil, errors.NewValidation("series", fmt.Sprintf("unknown series %q for book %s", b.Series, code))
		}
		if prev, ok := r.series[code]; ok && prev != b.Series {
			return nil, errors.NewValidation("series", fmt.Sprintf("book %s listed under both %s and %s", code, prev, b.Series))
		}
		r.series[code] = b.Series

		i, ok := index[code]
		if !ok {
			i = len(r.books)
			index[code] = i
			r.books = append(r.books, Book{Code: code, Series: b.Series})
		}

		for _, alias := range append(slices.Clone(b.Aliases), code) {
			key := Normalize(alias)
			if key == "" {
				continue
			}
			if other, ok := r.aliases[key]; ok {
				if other != code {
					return nil, errors.NewValidation("alias", fmt.Sprintf("%q names both %s and %s", key, other, code))
				}
				continue
			}
			r.aliases[key] = code
			r.books[i].Aliases = append(r.books[i].Aliases, key)
		}
	}

	r.sorted = make([]string, 0, len(r.aliases))
	for alias := range r.aliases {
		r.sorted = append(r.sorted, alias)
	}
	slices.Sort(r.sorted)
	r.digest = digest(r.books)

	return r, nil
}

// LookupExact returns the code of the book with the given alias.
func (r *Registry) LookupExact(name string) (string, bool) {
	code, ok := r.aliases[Normalize(name)]
	return code, ok
}

// LookupPrefix returns the code of the book whose aliases start with name.
//
// Every alias carrying the prefix is considered. If they all belong to one
// book that book wins; if they span several books the prefix is ambiguous
// and nothing is returned. The result therefore never depends on map or
// file order.
func (r *Registry) LookupPrefix(name string) (string, bool) {
	name = Normalize(name)
	if name == "" {
		return "", false
	}

	var code string
	i, _ := slices.BinarySearch(r.sorted, name)
	for ; i < len(r.sorted) && strings.HasPrefix(r.sorted[i], name); i++ {
		c := r.aliases[r.sorted[i]]
		if code != "" && c != code {
			return "", false
		}
		code = c
	}
	return code, code != ""
}

// Resolve maps a free-form book name to a canonical code, trying an exact
// alias match before falling back to LookupPrefix.
func (r *Registry) Resolve(name string) (string, bool) {
	if code, ok := r.LookupExact(name); ok {
		return code, true
	}
	return r.LookupPrefix(name)
}

// SeriesFor returns the series of a canonical book code.
func (r *Registry) SeriesFor(code string) (Series, bool) {
	s, ok := r.series[code]
	return s, ok
}

// Books returns the registered books in load order.
func (r *Registry) Books() []Book {
	out := make([]Book, len(r.books))
	for i, b := range r.books {
		b.Aliases = slices.Clone(b.Aliases)
		out[i] = b
	}
	return out
}

// Len returns the number of distinct books.
func (r *Registry) Len() int {
	return len(r.books)
}

// Aliases returns the number of distinct aliases.
func (r *Registry) Aliases() int {
	return len(r.sorted)
}

// Digest is a BLAKE3 fingerprint of the registry content. Two registries
// built from the same records in the same order share a digest.
func (r *Registry) Digest() string {
	return r.digest
}

func digest(books []Book) string {
	h := blake3.New()
	for _, b := range books {
		fmt.Fprintf(h, "%s\t%s\t%s\n", b.Series, b.Code, strings.Join(b.Aliases, ","))
	}
	return hex.EncodeToString(h.Sum(nil))
}
