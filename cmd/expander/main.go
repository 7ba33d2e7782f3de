// Command expander turns scripture references such as "1 Nephi 3:4" into
// markdown links to the online scripture library.
//
//	$ expander "Matthew 11:28-30"
//	[Matthew 11:28-30](https://www.churchofjesuschrist.org/study/scriptures/nt/matt/11?lang=eng&id=p28-p30#p28)
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/expander/core/books"
	"github.com/FocuswithJustin/expander/core/errors"
	"github.com/FocuswithJustin/expander/core/ref"
	"github.com/FocuswithJustin/expander/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

const defaultConfigPath = "~/.config/expander/config.json"

// Globals are flags shared by every command. Each may also come from the
// environment or the JSON config file.
type Globals struct {
	Config    kong.ConfigFlag `help:"JSON config file" type:"path" env:"EXPANDER_CONFIG"`
	Catalog   string          `help:"Directory of catalog files (*.txt, *.txt.xz)" type:"existingdir" env:"EXPANDER_CATALOG"`
	DB        string          `name:"db" help:"SQLite catalog written by 'export'" type:"existingfile" env:"EXPANDER_DB"`
	Host      string          `help:"Link host" default:"${host}" env:"EXPANDER_HOST"`
	Lang      string          `help:"Link language" default:"${lang}" env:"EXPANDER_LANG"`
	LogLevel  string          `name:"log-level" help:"Log level" enum:"debug,info,warn,error" default:"warn" env:"EXPANDER_LOG_LEVEL"`
	LogFormat string          `name:"log-format" help:"Log format" enum:"text,json" default:"text" env:"EXPANDER_LOG_FORMAT"`
}

// CLI defines the command-line interface for expander.
type CLI struct {
	Globals

	Link    LinkCmd    `cmd:"" default:"withargs" help:"Print a markdown link for a reference (default)"`
	Books   BooksCmd   `cmd:"" help:"List the book catalog"`
	Export  ExportCmd  `cmd:"" help:"Write the active catalog to a SQLite database"`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP API"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// runtime carries process state into command Run methods.
type runtime struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
}

// exitCode is returned by commands that have already reported their
// failure and only need a non-zero status.
type exitCode int

func (c exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(c))
}

// exitSignal is panicked by the kong Exit hook so that --help and parse
// errors unwind back to run instead of terminating the process.
type exitSignal int

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(status)
}

func newParser(cli *CLI, stdout, stderr io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("expander"),
		kong.Description("Expand scripture references into study links."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Configuration(kong.JSON, defaultConfigPath),
		kong.Vars{
			"host":   ref.DefaultHost,
			"lang":   ref.DefaultLang,
			"series": seriesEnum(),
		},
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { panic(exitSignal(code)) }),
	)
}

func seriesEnum() string {
	names := make([]string, 0, len(books.AllSeries()))
	for _, s := range books.AllSeries() {
		names = append(names, string(s))
	}
	return strings.Join(names, ",")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (status int) {
	defer func() {
		if r := recover(); r != nil {
			code, ok := r.(exitSignal)
			if !ok {
				panic(r)
			}
			status = int(code)
		}
	}()

	var cli CLI
	parser, err := newParser(&cli, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "expander: %v\n", err)
		return 1
	}

	kctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)

	if err := cli.initLogging(stderr); err != nil {
		fmt.Fprintf(stderr, "expander: %v\n", err)
		return 1
	}

	err = kctx.Run(&cli.Globals, &runtime{ctx: ctx, stdout: stdout, stderr: stderr})
	if err != nil {
		var code exitCode
		if errors.As(err, &code) {
			return int(code)
		}
		fmt.Fprintf(stderr, "expander: error: %v\n", err)
		return 1
	}
	return 0
}

func (g *Globals) initLogging(w io.Writer) error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLoggerTo(w, level, format)
	return nil
}
