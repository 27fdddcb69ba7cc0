// Package report renders the aircraft table as a console snapshot.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/unklstewy/ads-reckoner/internal/state"
)

// Columns in display order.
var Columns = []string{"ICAO", "LAT", "LON", "SPEED", "TRACK", "CITY", "COUNTRY"}

// Placeholder marks an absent value.
const Placeholder = "-"

// Options configures a Reporter.
type Options struct {
	// MaxRows truncates the table (0 = show all)
	MaxRows int

	// Now stamps the header (default: time.Now)
	Now func() time.Time
}

// Reporter writes table snapshots to an output stream.
type Reporter struct {
	out     io.Writer
	maxRows int
	now     func() time.Time

	titleStyle  lipgloss.Style
	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
	dimStyle    lipgloss.Style
	borderStyle lipgloss.Style
}

// New creates a reporter writing to out.
// Styling adapts to out: plain text when it is not a terminal.
func New(out io.Writer, opts Options) *Reporter {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := lipgloss.NewRenderer(out)
	return &Reporter{
		out:         out,
		maxRows:     opts.MaxRows,
		now:         opts.Now,
		titleStyle:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		headerStyle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1),
		cellStyle:   r.NewStyle().Padding(0, 1),
		dimStyle:    r.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
		borderStyle: r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Render formats the table: a header line with UTC time and aircraft
// count, then one row per aircraft ordered by ICAO address.
func (r *Reporter) Render(t *state.Table) string {
	records := t.Records()

	var s strings.Builder
	s.WriteString(r.titleStyle.Render(fmt.Sprintf("%s  %d aircraft",
		r.now().UTC().Format("2006-01-02 15:04:05 UTC"), len(records))))
	s.WriteString("\n")

	hidden := 0
	if r.maxRows > 0 && len(records) > r.maxRows {
		hidden = len(records) - r.maxRows
		records = records[:r.maxRows]
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row(rec))
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.borderStyle).
		Headers(Columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.headerStyle
			}
			if row >= 0 && row < len(rows) && rows[row][col] == Placeholder {
				return r.dimStyle
			}
			return r.cellStyle
		})

	s.WriteString(tbl.String())
	s.WriteString("\n")

	if hidden > 0 {
		s.WriteString(fmt.Sprintf("... and %d more\n", hidden))
	}

	return s.String()
}

// Report writes a rendered snapshot followed by a separator line.
// Write errors are ignored; a broken console must not stop tracking.
func (r *Reporter) Report(t *state.Table) {
	fmt.Fprint(r.out, r.Render(t))
	fmt.Fprintln(r.out, strings.Repeat("-", 40))
}

// Row formats one record in column order.
func Row(rec state.Record) []string {
	return []string{
		rec.ICAO,
		fmt.Sprintf("%.5f", rec.Latitude),
		fmt.Sprintf("%.5f", rec.Longitude),
		fmt.Sprintf("%.0f", rec.GroundSpeed),
		fmt.Sprintf("%.1f", rec.Track),
		orPlaceholder(rec.City),
		orPlaceholder(rec.Country),
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
