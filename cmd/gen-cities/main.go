package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/globepins/internal/gencities"
	"github.com/okian/globepins/pkg/logger"
)

// Default configuration constants.
const (
	defaultRows       = 1000
	defaultMalformed  = 0.05
	defaultDuplicates = 0.05
	defaultSeed       = 1
)

func main() {
	var (
		rows       = flag.Int("rows", defaultRows, "Number of data rows")
		malformed  = flag.Float64("malformed", defaultMalformed, "Share of rows that import must reject")
		duplicates = flag.Float64("duplicates", defaultDuplicates, "Share of rows repeating an earlier city")
		header     = flag.Int("header", 0, "Header layout 0-2, -1 for random")
		seed       = flag.Uint64("seed", defaultSeed, "Random seed")
		outputFile = flag.String("output", "", "Output file (default stdout)")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		gencities.ShowHelp()
		return
	}

	// Logs go to stderr so stdout stays a clean CSV.
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &gencities.Config{
		Rows:           *rows,
		MalformedRatio: *malformed,
		DuplicateRatio: *duplicates,
		HeaderStyle:    *header,
		Seed:           *seed,
		OutputFile:     *outputFile,
	}
	if _, err := gencities.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("generation failed: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
