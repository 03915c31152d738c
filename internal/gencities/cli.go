package gencities

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/globepins/pkg/logger"
)

// File permission constants.
const (
	outputFilePermission = 0o600
)

// Run generates the file described by cfg, writing to cfg.OutputFile or
// stdout.
func Run(ctx context.Context, cfg *Config) (Stats, error) {
	var w io.Writer = os.Stdout
	if cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputFilePermission)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	stats, err := Generate(ctx, cfg, w)
	if err != nil {
		return stats, err
	}
	logger.Default().Info(ctx, "city file generated",
		logger.String("output", cfg.OutputFile),
		logger.Int("rows", stats.Rows),
		logger.Int("unique", stats.Unique),
		logger.Int("malformed", stats.Malformed),
		logger.Int("duplicates", stats.Duplicates),
	)
	return stats, nil
}

// ShowHelp prints usage information for the generator.
func ShowHelp() {
	os.Stdout.WriteString(`globepins city generator
========================

Writes a synthetic city CSV for exercising imports.

Usage:
  go run ./cmd/gen-cities [options]

Options:
  -rows int
        Number of data rows (default 1000)
  -malformed float
        Share of rows that import must reject (default 0.05)
  -duplicates float
        Share of rows repeating an earlier city (default 0.05)
  -header int
        Header layout 0-2, -1 for random (default 0)
  -seed uint
        Random seed; the same seed gives the same file (default 1)
  -output string
        Output file (default stdout)
  -help
        Show this help message

Examples:
  # 5000 rows in the second header layout
  go run ./cmd/gen-cities -rows 5000 -header 1 -output cities.csv

  # then import them
  go run ./cmd/globepins import -file cities.csv
`)
}
