// saplingpack inspects and moves sapling bundles between files and the
// local store.
//
// Usage:
//
//	saplingpack [--config sapling.yaml] [-v] <command> [flags] [args]
//
// Commands:
//
//	validate <file>       check that every referenced resource is present
//	convert <in> <out>    rewrite a .json/.jsonc/.html bundle as .json or .html
//	save <file>           store a bundle in the local database
//	load <out>            write a stored bundle to a file
//	keys                  list stored bundles
//	say <text>            preview dialogue pagination in the terminal
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/phanxgames/sapling"
)

// env is what every command runs with.
type env struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	cfg    *sapling.Config
}

type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"validate", "<file>", "check that every referenced resource is present", runValidate},
	{"convert", "<in> <out>", "rewrite a .json/.jsonc/.html bundle as .json or .html", runConvert},
	{"save", "<file>", "store a bundle in the local database", runSave},
	{"load", "<out>", "write a stored bundle to a file", runLoad},
	{"keys", "", "list stored bundles", runKeys},
	{"say", "<text>", "preview dialogue pagination in the terminal", runSay},
}

// errUsage means the command line was wrong; usage has already been printed.
var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var configPath string
	var verbose bool

	flagSet := pflag.NewFlagSet("saplingpack", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", "", "YAML config file (defaults are used when empty)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log debug records to stderr")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	e := &env{
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		cfg:    sapling.DefaultConfig(),
	}
	if configPath != "" {
		cfg, err := sapling.LoadConfig(configPath)
		if err != nil {
			return err
		}
		e.cfg = cfg
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return errUsage
	}
	for _, c := range commands {
		if c.name == rest[0] {
			e.logger.Debug("command", "name", c.name, "args", rest[1:])
			return c.run(ctx, e, rest[1:])
		}
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
	printUsage(stderr, flagSet)
	return errUsage
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage:\n  saplingpack [flags] <command> [command flags] [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-24s %s\n", strings.TrimSpace(c.name+" "+c.args), c.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n")
	flagSet.PrintDefaults()
}

// parseCommand parses a subcommand's flags and checks its positional
// argument count.
func parseCommand(e *env, c string, flagSet *pflag.FlagSet, args []string, nargs int) ([]string, error) {
	flagSet.SetOutput(e.stderr)
	flagSet.Usage = func() {
		for _, cmd := range commands {
			if cmd.name == c {
				fmt.Fprintf(e.stderr, "Usage:\n  saplingpack %s [flags] %s\n\n%s\n\nFlags:\n", cmd.name, cmd.args, cmd.summary)
			}
		}
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return nil, errUsage
	}
	rest := flagSet.Args()
	if nargs >= 0 && len(rest) != nargs {
		fmt.Fprintf(e.stderr, "%s: expected %d argument(s), got %d\n", c, nargs, len(rest))
		flagSet.Usage()
		return nil, errUsage
	}
	return rest, nil
}
