// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the astroquery clients:
// tables parsed from VOTable payloads, sky positions, UWS jobs, and data
// products, plus the configuration structs loaded from astroquery.yaml.
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column describes one field of a result table.
type Column struct {
	// Name is the column name as returned by the service.
	Name string `json:"name" yaml:"name"`

	// Datatype is the VOTable datatype (e.g. "double", "char", "long").
	Datatype string `json:"datatype" yaml:"datatype"`

	// Arraysize is the VOTable arraysize attribute ("*", "12", "" for scalars).
	Arraysize string `json:"arraysize,omitempty" yaml:"arraysize,omitempty"`

	// Unit is the physical unit string (e.g. "deg", "mag").
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// UCD is the IVOA Unified Content Descriptor (e.g. "pos.eq.ra;meta.main").
	UCD string `json:"ucd,omitempty" yaml:"ucd,omitempty"`

	// Description is the free-text column description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Table is an in-memory result table. Cell values are nil, bool, int64,
// float64, or string.
type Table struct {
	// Name is the table name from the payload, if any.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	Columns []Column `json:"columns" yaml:"columns"`
	Rows    [][]any  `json:"rows" yaml:"rows"`

	// Truncated is set when the service reported that its row limit cut
	// the result short.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`

	// Warnings collects non-fatal messages from the service.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the index of the named column, matching
// case-insensitively, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column, or nil if it does not exist.
func (t *Table) Column(name string) []any {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			values[i] = row[idx]
		}
	}
	return values
}

// Float returns the named cell as float64. Integer and numeric-string cells
// are converted; null cells report ok=false.
func (t *Table) Float(row int, name string) (float64, bool) {
	v := t.cell(row, name)
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns the named cell formatted as text. Null cells are "".
func (t *Table) String(row int, name string) string {
	return FormatValue(t.cell(row, name))
}

func (t *Table) cell(row int, name string) any {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	idx := t.ColumnIndex(name)
	if idx < 0 || idx >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][idx]
}

// FormatValue renders a cell value as text. Floats use the shortest
// representation that round-trips.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
