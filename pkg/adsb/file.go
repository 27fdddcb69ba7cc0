package adsb

import (
	"context"
	"fmt"
	"os"
)

// FileFeed reads a local aircraft.json, as written by dump1090 or readsb
// running on the same host.
type FileFeed struct {
	path string
}

// NewFileFeed creates a feed that reads the snapshot at path on every Fetch.
func NewFileFeed(path string) *FileFeed {
	return &FileFeed{path: path}
}

// Fetch reads and parses the snapshot file.
func (f *FileFeed) Fetch(ctx context.Context) ([]RawAircraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	return ParseAircraftJSON(data)
}

// Close is a no-op.
func (f *FileFeed) Close() error {
	return nil
}
