// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/astroquery/internal/votable"
	"github.com/pdiddy/astroquery/pkg/types"
)

// Output formats accepted by Format.
var Formats = []string{"table", "json", "csv", "votable"}

const maxCellWidth = 32

// Format writes t to w in the named format.
func Format(format string, t *types.Table, w io.Writer) error {
	switch strings.ToLower(format) {
	case "", "table":
		FormatTable(t, w)
		return nil
	case "json":
		return FormatJSON(t, w)
	case "csv":
		return FormatCSV(t, w)
	case "votable", "xml":
		return FormatVOTable(t, w)
	}
	return fmt.Errorf("unknown format %q (use one of %s)", format, strings.Join(Formats, ", "))
}

// FormatTable writes t as aligned text columns to w.
func FormatTable(t *types.Table, w io.Writer) {
	if t.Len() == 0 {
		fmt.Fprintln(w, "No rows.")
		return
	}

	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = utf8.RuneCountInString(c.Name)
	}
	cells := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		cells[r] = make([]string, len(t.Columns))
		for i := range t.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			s := Truncate(types.FormatValue(v), maxCellWidth)
			cells[r][i] = s
			if n := utf8.RuneCountInString(s); n > widths[i] {
				widths[i] = n
			}
		}
	}

	header := make([]string, len(t.Columns))
	total := 0
	for i, c := range t.Columns {
		header[i] = pad(c.Name, widths[i])
		total += widths[i] + 2
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(header, "  "), " "))
	fmt.Fprintln(w, strings.Repeat("-", max(total-2, 1)))
	for _, row := range cells {
		for i := range row {
			row[i] = pad(row[i], widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(row, "  "), " "))
	}

	fmt.Fprintf(w, "\n%d rows", t.Len())
	if t.Truncated {
		fmt.Fprint(w, " (truncated by row limit)")
	}
	fmt.Fprintln(w)
}

// FormatJSON writes the rows of t as an indented JSON array of objects
// keyed by column name.
func FormatJSON(t *types.Table, w io.Writer) error {
	rows := make([]map[string]any, 0, t.Len())
	for _, row := range t.Rows {
		obj := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				obj[c.Name] = row[i]
			} else {
				obj[c.Name] = nil
			}
		}
		rows = append(rows, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// FormatCSV writes t as CSV with a header row. Null cells are empty.
func FormatCSV(t *types.Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range t.Columns {
			record[i] = ""
			if i < len(row) {
				record[i] = types.FormatValue(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatVOTable writes t as a VOTable document.
func FormatVOTable(t *types.Table, w io.Writer) error {
	return votable.Encode(w, t)
}

// FormatSources writes merged region results as a text table.
func FormatSources(out MultiOutput, w io.Writer) {
	if len(out.Sources) == 0 {
		fmt.Fprintln(w, "No sources found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-28s  %-11s  %-11s  %-9s  %s\n",
		"#", "ID", "RA", "Dec", "Sep(\")", "Services")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for i, s := range out.Sources {
		fmt.Fprintf(w, "%-4d  %-28s  %11.6f  %+11.6f  %9.3f  %s\n",
			i+1, Truncate(s.ID, 28), s.Position.RA, s.Position.Dec, s.Separation*3600, strings.Join(s.Services, ","))
	}

	fmt.Fprintf(w, "\n%d sources from %d services", len(out.Sources), len(out.Tables))
	if out.Merged > 0 {
		fmt.Fprintf(w, " (%d cross-matched rows merged)", out.Merged)
	}
	fmt.Fprintln(w)
}

// FormatSourcesJSON writes merged region results as indented JSON.
func FormatSourcesJSON(out MultiOutput, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Sources)
}

// ReportWarnings writes the table's service warnings to w.
func ReportWarnings(w io.Writer, service string, t *types.Table) {
	if t == nil {
		return
	}
	for _, msg := range t.Warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", service, msg)
	}
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}
