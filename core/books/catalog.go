package books

import (
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/expander/core/errors"
)

// catalogFile is the participle grammar for a catalog data file.
// Each non-blank line is "code:alias1,alias2,...". Blank aliases are
// ignored and "#" starts a comment.
//
//nolint:govet // participle grammar tags are not standard struct tags
type catalogFile struct {
	Records []*catalogRecord `( @@ | EOL )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type catalogRecord struct {
	Pos     lexer.Position
	Code    string   `@Text ":"`
	Aliases []string `( @Text | "," )*`
}

var catalogLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "EOL", Pattern: `\r?\n`},
	{Name: "Punct", Pattern: `[:,]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Text", Pattern: `[^:,#\s][^:,#\r\n]*`},
})

var catalogParser = participle.MustBuild[catalogFile](
	participle.Lexer(catalogLexer),
	participle.Elide("Comment", "Whitespace"),
)

// ParseCatalog reads catalog records for one series. name is used in
// error messages only.
func ParseCatalog(r io.Reader, name string, series Series) ([]Book, error) {
	parsed, err := catalogParser.Parse(name, r)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, errors.NewParse("catalog", name, perr.Position().Line, perr.Message())
		}
		return nil, errors.NewIO("read", name, err)
	}

	books := make([]Book, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		code := strings.TrimSpace(rec.Code)
		if code == "" {
			return nil, errors.NewParse("catalog", name, rec.Pos.Line, "empty book code")
		}

		b := Book{Code: code, Series: series}
		for _, alias := range rec.Aliases {
			if alias = strings.TrimSpace(alias); alias != "" {
				b.Aliases = append(b.Aliases, alias)
			}
		}
		books = append(books, b)
	}
	return books, nil
}
