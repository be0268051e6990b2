// Package main provides clipvault-seed, a tool that fills a clipboard
// database with synthetic history for exercising SearchEngine and
// QueryController at scale, grounded on the teacher's cmd/tk-seed worker-pool
// seeding pattern.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/clipvault/core/pkg/clipvault"
)

func main() {
	var (
		dbDir string
		count int
	)

	flags := flag.NewFlagSet("clipvault-seed", flag.ExitOnError)
	flags.StringVar(&dbDir, "db-dir", "", "clipboard database directory (required)")
	flags.IntVar(&count, "count", 1000, "number of synthetic records to insert")

	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	if dbDir == "" {
		fmt.Fprintln(os.Stderr, "clipvault-seed: --db-dir is required")
		os.Exit(2)
	}

	start := time.Now()

	client, err := clipvault.Open(context.Background(), dbDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clipvault-seed: open: %v\n", err)
		os.Exit(1)
	}

	defer func() { _ = client.Close() }()

	if err := seed(client, count); err != nil {
		fmt.Fprintf(os.Stderr, "clipvault-seed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Inserted %d records in %s -> %s\n", count, time.Since(start), dbDir)
}

// numWorkers picks I/O parallelism the same way the teacher's tk-seed does:
// one worker per CPU core.
func numWorkers() int {
	return runtime.NumCPU()
}

func seed(client *clipvault.Client, count int) error {
	ctx := context.Background()
	items := make(chan int, numWorkers()*2)

	errs := make(chan error, numWorkers())

	for range numWorkers() {
		go func() {
			for i := range items {
				if err := ingestOne(ctx, client, i); err != nil {
					errs <- err

					return
				}
			}

			errs <- nil
		}()
	}

	for i := 1; i <= count; i++ {
		items <- i
	}

	close(items)

	var firstErr error

	for range numWorkers() {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

var sampleApps = []string{"com.apple.Safari", "com.apple.Terminal", "com.microsoft.VSCode", "com.slack.Slack"}

func ingestOne(ctx context.Context, client *clipvault.Client, i int) error {
	text := syntheticText(i)
	app := sampleApps[i%len(sampleApps)]

	_, err := client.Ingest(ctx, clipvault.IngestedContent{
		Type:        clipvault.TypeText,
		PlainText:   text,
		AppBundleID: app,
		Payload:     []byte(text),
	})
	if err != nil {
		return fmt.Errorf("ingest record %d: %w", i, err)
	}

	return nil
}

func syntheticText(i int) string {
	kinds := []string{
		"order-%06d confirmed, shipping to warehouse %d",
		"https://example.com/ticket/%06d?ref=%d",
		"SELECT * FROM customers WHERE id = %06d AND region = %d",
		"def handler_%06d(request): return %d",
		"TODO: follow up on invoice %06d by day %d",
	}

	tmpl := kinds[i%len(kinds)]

	return fmt.Sprintf(tmpl, i, i%7)
}
