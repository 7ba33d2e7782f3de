// Package ref parses free-form scripture citations such as "1 Nephi 3:4" or
// "Matthew 11:28-30" and turns them into deep links into the online
// scripture library.
//
// Chapter and verse numbers are kept as the text the user wrote, so a
// range like "28-30" is re-emitted byte for byte rather than reformatted.
package ref

import (
	"strings"

	"github.com/FocuswithJustin/expander/core/books"
)

// Reference is a fully resolved citation.
type Reference struct {
	// Book is the canonical book code (e.g., "1-ne", "matt").
	Book string `json:"book"`

	// Series is the volume the book belongs to (e.g., "bofm", "nt").
	Series books.Series `json:"series"`

	// Chapter is nil for whole-book references.
	Chapter *Chapter `json:"chapter,omitempty"`
}

// Chapter is a chapter (or chapter range) and, optionally, the verses cited
// within it. A verse can only be expressed inside a chapter.
type Chapter struct {
	// Number is the chapter token as written: "3" or "1-2".
	Number string `json:"number"`

	// Verse is empty for whole-chapter references.
	Verse Verse `json:"verse,omitempty"`
}

// Verse is a verse token as written: a single number ("4") or an
// inclusive range ("28-30"). The direction of a range is not checked.
type Verse string

// IsZero reports whether no verse was cited.
func (v Verse) IsZero() bool {
	return v == ""
}

// IsRange reports whether the verse token spans more than one verse.
func (v Verse) IsRange() bool {
	return strings.Contains(string(v), "-")
}

// First returns the first verse of the token.
func (v Verse) First() string {
	first, _, _ := strings.Cut(string(v), "-")
	return first
}

// Last returns the last verse of the token; for a single verse it is the
// same as First.
func (v Verse) Last() string {
	first, last, ok := strings.Cut(string(v), "-")
	if !ok {
		return first
	}
	return last
}

// Verse returns the cited verse, or an empty Verse when the reference
// names a whole book or chapter.
func (r Reference) Verse() Verse {
	if r.Chapter == nil {
		return ""
	}
	return r.Chapter.Verse
}

// Clone returns a copy of r that shares no memory with it.
func (r Reference) Clone() Reference {
	if r.Chapter != nil {
		c := *r.Chapter
		r.Chapter = &c
	}
	return r
}

// String renders the reference with its canonical book code,
// e.g. "matt 11:28-30".
func (r Reference) String() string {
	if r.Chapter == nil {
		return r.Book
	}

	var sb strings.Builder
	sb.WriteString(r.Book)
	sb.WriteString(" ")
	sb.WriteString(r.Chapter.Number)
	if !r.Chapter.Verse.IsZero() {
		sb.WriteString(":")
		sb.WriteString(string(r.Chapter.Verse))
	}
	return sb.String()
}

// URL returns the deep link for the reference on the default host.
func (r Reference) URL() string {
	return defaultBuilder.URL(r)
}

// Markdown returns a markdown link labelled with label (usually the
// citation exactly as the user typed it).
func (r Reference) Markdown(label string) string {
	return defaultBuilder.Markdown(r, label)
}
