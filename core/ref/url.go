package ref

import (
	"net/url"
	"strings"
)

const (
	// DefaultHost serves the online scripture library.
	DefaultHost = "www.churchofjesuschrist.org"

	// DefaultLang is the content language requested in every link.
	DefaultLang = "eng"

	scripturesPath = "/study/scriptures"
)

var defaultBuilder = NewBuilder()

// Builder renders references as deep links. The zero value is not usable;
// call NewBuilder.
type Builder struct {
	host string
	lang string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithHost overrides the link host. Empty values are ignored.
func WithHost(host string) BuilderOption {
	return func(b *Builder) {
		if host != "" {
			b.host = host
		}
	}
}

// WithLang overrides the lang query parameter. Empty values are ignored.
func WithLang(lang string) BuilderOption {
	return func(b *Builder) {
		if lang != "" {
			b.lang = lang
		}
	}
}

// NewBuilder returns a Builder for DefaultHost and DefaultLang unless
// overridden by opts.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{host: DefaultHost, lang: DefaultLang}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Host returns the host links are built for.
func (b *Builder) Host() string {
	return b.host
}

// URL renders r as
//
//	https://<host>/study/scriptures/<series>/<book>[/<chapter>]?lang=<lang>[&id=p<v1>[-p<v2>]][#p<v1>]
//
// lang always precedes id, and the fragment always points at the first
// verse of the id.
func (b *Builder) URL(r Reference) string {
	segments := []string{string(r.Series), r.Book}
	if r.Chapter != nil {
		segments = append(segments, r.Chapter.Number)
	}

	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}

	u := url.URL{
		Scheme:   "https",
		Host:     b.host,
		Path:     scripturesPath + "/" + strings.Join(segments, "/"),
		RawPath:  scripturesPath + "/" + strings.Join(escaped, "/"),
		RawQuery: "lang=" + url.QueryEscape(b.lang),
	}

	if v := r.Verse(); !v.IsZero() {
		u.RawQuery += "&id=" + url.QueryEscape(paragraphID(v))
		u.Fragment = "p" + v.First()
	}

	return u.String()
}

// Markdown renders r as "[label](url)".
func (b *Builder) Markdown(r Reference, label string) string {
	return "[" + label + "](" + b.URL(r) + ")"
}

// paragraphID encodes a verse token the way the library addresses
// paragraphs: "p4" for a verse, "p28-p30" for a range.
func paragraphID(v Verse) string {
	if !v.IsRange() {
		return "p" + string(v)
	}
	return "p" + v.First() + "-p" + v.Last()
}
