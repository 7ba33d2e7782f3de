package ref

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/expander/core/books"
	"github.com/FocuswithJustin/expander/core/errors"
)

// citationLexer tokenizes a citation. Book names are runs of Word, Number,
// "-" and Space tokens; the locator is Number and Punct tokens.
var citationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `[\p{L}\p{M}_]+`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Space", Pattern: `\s+`},
})

var (
	numberToken = citationLexer.Symbols()["Number"]
	wordToken   = citationLexer.Symbols()["Word"]
	punctToken  = citationLexer.Symbols()["Punct"]
	spaceToken  = citationLexer.Symbols()["Space"]
)

// locator is the chapter[:verse] tail of a citation.
// Examples: "3", "3:4", "11:28-30", "1-2".
//
//nolint:govet // participle grammar tags are not standard struct tags
type locator struct {
	Chapter *span `@@`
	Verse   *span `( ":" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type span struct {
	Start string `@Number`
	End   string `( "-" @Number )?`
}

func (s *span) String() string {
	if s.End == "" {
		return s.Start
	}
	return s.Start + "-" + s.End
}

// Space is not elided, so "3 : 4" is rejected.
var locatorParser = participle.MustBuild[locator](
	participle.Lexer(citationLexer),
)

// Parser resolves citations against a book registry. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	registry *books.Registry
}

// NewParser returns a Parser resolving book names with registry.
func NewParser(registry *books.Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse resolves a citation of the form
//
//	<book> [<chapter>[-<chapter>][:<verse>[-<verse>]]]
//
// The book is the shortest leading run of words, numbers, hyphens and
// spaces after which the rest of the input is a valid locator, so book
// names may themselves contain numbers ("1 Nephi") or hyphens ("1-ne").
//
// Every failure, whether malformed input, an unknown book or a book with
// no series, returns an error matching errors.ErrInvalidReference.
func (p *Parser) Parse(input string) (Reference, error) {
	book, loc, ok := split(strings.TrimSpace(input))
	if !ok {
		return Reference{}, errors.NewReference(input, errors.ReasonSyntax)
	}

	code, ok := p.registry.Resolve(book)
	if !ok {
		return Reference{}, errors.NewReference(input, errors.ReasonUnknownBook)
	}
	series, ok := p.registry.SeriesFor(code)
	if !ok {
		return Reference{}, errors.NewReference(input, errors.ReasonNoSeries)
	}

	ref := Reference{Book: code, Series: series}
	if loc != nil {
		ref.Chapter = &Chapter{Number: loc.Chapter.String()}
		if loc.Verse != nil {
			ref.Chapter.Verse = Verse(loc.Verse.String())
		}
	}
	return ref, nil
}

// Parse resolves a citation against the built-in catalog.
func Parse(input string) (Reference, error) {
	registry, err := books.Default()
	if err != nil {
		return Reference{}, errors.Wrap(err, "load built-in catalog")
	}
	return NewParser(registry).Parse(input)
}

// split separates text into its book name and optional locator. It tries
// every Number token as the start of the locator, leftmost first, and
// falls back to treating the whole text as a book name.
func split(text string) (string, *locator, bool) {
	if text == "" {
		return "", nil, false
	}

	lex, err := citationLexer.Lex("", strings.NewReader(text))
	if err != nil {
		return "", nil, false
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return "", nil, false
	}

	for i, tok := range tokens {
		if tok.EOF() {
			return text, nil, true
		}
		if i > 0 && tok.Type == numberToken {
			if loc, err := locatorParser.ParseString("", text[tok.Pos.Offset:]); err == nil {
				return strings.TrimSpace(text[:tok.Pos.Offset]), loc, true
			}
		}
		if !bookToken(tok) {
			return "", nil, false
		}
	}
	return text, nil, true
}

func bookToken(tok lexer.Token) bool {
	switch tok.Type {
	case wordToken, numberToken, spaceToken:
		return true
	case punctToken:
		return tok.Value == "-"
	}
	return false
}
