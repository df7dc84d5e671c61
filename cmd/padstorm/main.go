// Package main is the entry point for the padstorm input server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/padstorm/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, exit, code := parseFlags(os.Args[1:])
	if exit {
		return code
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// parseFlags parses args. When exit is true the program should stop with
// the returned code.
func parseFlags(args []string) (opts app.Options, exit bool, code int) {
	fs := flag.NewFlagSet("padstorm", flag.ContinueOnError)
	var showVersion bool

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	fs.StringVar(&opts.Listen, "listen", "", "Listen address; overrides the config file")
	fs.StringVar(&opts.Listen, "l", "", "Listen address (shorthand)")
	fs.StringVar(&opts.ReplayPath, "replay", "", "Replay a recorded trace and print its events")
	fs.StringVar(&opts.ReplayPath, "r", "", "Replay a recorded trace (shorthand)")
	fs.BoolVar(&opts.Watch, "watch", false, "Reload the configuration file when it changes")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "padstorm - game controller input interpretation server\n\n")
		fmt.Fprintf(out, "Usage: padstorm [options]\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  padstorm -c pad.toml -watch      Serve with hot reload\n")
		fmt.Fprintf(out, "  padstorm -l :8765                Serve on all interfaces\n")
		fmt.Fprintf(out, "  padstorm -c pad.toml -r run.json Replay a trace\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, true, 0
		}
		return opts, true, 2
	}

	if showVersion {
		fmt.Printf("padstorm %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return opts, true, 0
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		return opts, true, 1
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %v\n", fs.Args())
		return opts, true, 2
	}
	return opts, false, 0
}
