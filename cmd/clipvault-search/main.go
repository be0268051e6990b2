// Package main provides clipvault-search, an interactive REPL over the
// clipboard history search engine, for exercising SearchEngine and
// QueryController without a real clipboard poller or UI.
package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/clipvault/core/internal/clipvaultlog"
	"github.com/clipvault/core/pkg/clipvault"
)

func main() {
	var (
		dbDir   string
		logJSON bool
		level   string
	)

	flags := flag.NewFlagSet("clipvault-search", flag.ExitOnError)
	flags.StringVar(&dbDir, "db-dir", defaultDBDir(), "clipboard database directory")
	flags.BoolVar(&logJSON, "log-json", false, "emit structured JSON logs instead of console output")
	flags.StringVar(&level, "log-level", "warn", "log level: debug, info, warn, error")

	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	clipvaultlog.Init(clipvaultlog.Config{Level: level, JSON: logJSON})

	client, err := clipvault.Open(context.Background(), dbDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clipvault-search: open: %v\n", err)
		os.Exit(1)
	}

	defer func() { _ = client.Close() }()

	repl := newREPL(client)
	if err := repl.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "clipvault-search: %v\n", err)
		os.Exit(1)
	}
}

func defaultDBDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return home + "/.clipvault"
}
