package gencities

// Config holds configuration for a generated file.
type Config struct {
	Rows           int     // Number of data rows to write
	MalformedRatio float64 // Share of rows that must be rejected on import
	DuplicateRatio float64 // Share of rows repeating an earlier city
	HeaderStyle    int     // Index into the header layouts; -1 picks one at random
	Seed           uint64  // Same seed, same file
	OutputFile     string  // Output file; empty means stdout
}

// Stats describes what was generated. Malformed and Duplicates match what
// ingest.Parse will count for the same file.
type Stats struct {
	Rows       int
	Unique     int
	Malformed  int
	Duplicates int
	Header     []string
}
