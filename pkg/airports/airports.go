// Package airports loads the static airport reference dataset used to turn
// an inferred ICAO airport code into a city and country.
package airports

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Airport is one row of the reference dataset.
type Airport struct {
	ICAO    string
	City    string
	Country string
}

// Directory is an in-memory index of airports keyed by ICAO code.
type Directory struct {
	byICAO map[string]Airport
}

// Lookup returns the airport for an ICAO code. Codes are matched case-insensitively.
func (d *Directory) Lookup(icao string) (Airport, bool) {
	if d == nil {
		return Airport{}, false
	}
	a, ok := d.byICAO[strings.ToUpper(strings.TrimSpace(icao))]
	return a, ok
}

// Len returns the number of airports indexed.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byICAO)
}

// Load reads an airports CSV file. See Parse for the expected format.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports file: %w", err)
	}
	defer f.Close()

	dir, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dir, nil
}

// Parse reads airports CSV data. The first row is a header that must name
// ICAO, City and Country columns (any case, any order); other columns are
// ignored. Rows with an empty ICAO code are skipped. The first row for a
// duplicated code wins.
func Parse(r io.Reader) (*Directory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("airports file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	icaoCol, cityCol, countryCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "icao":
			icaoCol = i
		case "city":
			cityCol = i
		case "country":
			countryCol = i
		}
	}
	if icaoCol < 0 || cityCol < 0 || countryCol < 0 {
		return nil, fmt.Errorf("header must contain ICAO, City and Country columns, got %v", header)
	}

	dir := &Directory{byICAO: make(map[string]Airport)}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		icao := strings.ToUpper(strings.TrimSpace(field(rec, icaoCol)))
		if icao == "" {
			continue
		}
		if _, dup := dir.byICAO[icao]; dup {
			continue
		}
		dir.byICAO[icao] = Airport{
			ICAO:    icao,
			City:    strings.TrimSpace(field(rec, cityCol)),
			Country: strings.TrimSpace(field(rec, countryCol)),
		}
	}

	return dir, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// Source provides the reference directory for a refresh cycle.
type Source interface {
	Directory(ctx context.Context) (*Directory, error)
}

// FileSource loads the directory from a CSV file.
//
// With Cache set the first successful load is kept for the life of the
// process; otherwise the file is read again on every call so edits are
// picked up at the next refresh.
type FileSource struct {
	Path  string
	Cache bool

	cached *Directory
}

// Directory implements Source.
func (s *FileSource) Directory(ctx context.Context) (*Directory, error) {
	if s.Cache && s.cached != nil {
		return s.cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := Load(s.Path)
	if err != nil {
		return nil, err
	}
	if s.Cache {
		s.cached = dir
	}
	return dir, nil
}
