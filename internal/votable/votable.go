// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package votable reads and writes IVOA VOTable documents, the XML table
// format returned by TAP, cone search, and most virtual-observatory services.
//
// Decode supports the TABLEDATA, BINARY and BINARY2 serializations. Encode
// always writes TABLEDATA.
package votable

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pdiddy/astroquery/pkg/types"
)

// QueryStatus values from the INFO name="QUERY_STATUS" element.
const (
	StatusOK       = "OK"
	StatusError    = "ERROR"
	StatusOverflow = "OVERFLOW"
)

// TruncationWarning is added to Table.Warnings when the service reports
// OVERFLOW.
const TruncationWarning = "result truncated by service row limit"

// QueryError is returned when the document carries QUERY_STATUS=ERROR.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	if e.Message == "" {
		return "service reported a query error"
	}
	return "service reported a query error: " + e.Message
}

// Document structures. Element names carry no namespace so that VOTable
// 1.1 through 1.5 documents all match.
type xmlVOTable struct {
	XMLName   xml.Name      `xml:"VOTABLE"`
	Infos     []xmlInfo     `xml:"INFO"`
	Resources []xmlResource `xml:"RESOURCE"`
}

type xmlResource struct {
	Type      string        `xml:"type,attr"`
	Infos     []xmlInfo     `xml:"INFO"`
	Tables    []xmlTable    `xml:"TABLE"`
	Resources []xmlResource `xml:"RESOURCE"`
}

type xmlInfo struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

type xmlTable struct {
	Name   string     `xml:"name,attr"`
	Fields []xmlField `xml:"FIELD"`
	Infos  []xmlInfo  `xml:"INFO"`
	Data   *xmlData   `xml:"DATA"`
}

type xmlField struct {
	Name        string     `xml:"name,attr"`
	ID          string     `xml:"ID,attr"`
	Datatype    string     `xml:"datatype,attr"`
	Arraysize   string     `xml:"arraysize,attr"`
	Unit        string     `xml:"unit,attr"`
	UCD         string     `xml:"ucd,attr"`
	Description string     `xml:"DESCRIPTION"`
	Values      *xmlValues `xml:"VALUES"`
}

type xmlValues struct {
	Null string `xml:"null,attr"`
}

type xmlData struct {
	TableData *xmlTableData `xml:"TABLEDATA"`
	Binary    *xmlBinary    `xml:"BINARY"`
	Binary2   *xmlBinary    `xml:"BINARY2"`
}

type xmlTableData struct {
	Rows []xmlRow `xml:"TR"`
}

type xmlRow struct {
	Cells []string `xml:"TD"`
}

type xmlBinary struct {
	Stream xmlStream `xml:"STREAM"`
}

type xmlStream struct {
	Encoding string `xml:"encoding,attr"`
	Href     string `xml:"href,attr"`
	Text     string `xml:",chardata"`
}

// Decode parses a VOTable document and returns its result table. When the
// document holds several tables, the first table of a RESOURCE with
// type="results" wins, otherwise the first table found.
func Decode(r io.Reader) (*types.Table, error) {
	var doc xmlVOTable
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing VOTable: %w", err)
	}

	infos := collectInfos(doc)
	status, message := queryStatus(infos)
	if status == StatusError {
		return nil, &QueryError{Message: message}
	}

	xt := findTable(doc.Resources)
	if xt == nil {
		if len(doc.Resources) == 0 {
			return nil, fmt.Errorf("VOTable contains no RESOURCE")
		}
		// A results resource without a table is an empty result.
		return &types.Table{}, nil
	}

	t := &types.Table{Name: xt.Name}
	for _, f := range xt.Fields {
		name := f.Name
		if name == "" {
			name = f.ID
		}
		t.Columns = append(t.Columns, types.Column{
			Name:        name,
			Datatype:    f.Datatype,
			Arraysize:   f.Arraysize,
			Unit:        f.Unit,
			UCD:         f.UCD,
			Description: strings.TrimSpace(f.Description),
		})
	}

	if xt.Data != nil {
		var err error
		switch {
		case xt.Data.TableData != nil:
			t.Rows, err = decodeTableData(xt.Fields, xt.Data.TableData)
		case xt.Data.Binary2 != nil:
			t.Rows, err = decodeStream(xt.Fields, xt.Data.Binary2.Stream, true)
		case xt.Data.Binary != nil:
			t.Rows, err = decodeStream(xt.Fields, xt.Data.Binary.Stream, false)
		}
		if err != nil {
			return nil, err
		}
	}

	if status == StatusOverflow {
		t.Truncated = true
		t.Warnings = append(t.Warnings, TruncationWarning)
	}
	for _, info := range infos {
		if strings.EqualFold(info.Name, "WARNING") {
			msg := strings.TrimSpace(info.Text)
			if msg == "" {
				msg = info.Value
			}
			t.Warnings = append(t.Warnings, msg)
		}
	}
	return t, nil
}

func collectInfos(doc xmlVOTable) []xmlInfo {
	infos := append([]xmlInfo(nil), doc.Infos...)
	var walk func([]xmlResource)
	walk = func(rs []xmlResource) {
		for _, r := range rs {
			infos = append(infos, r.Infos...)
			for _, t := range r.Tables {
				infos = append(infos, t.Infos...)
			}
			walk(r.Resources)
		}
	}
	walk(doc.Resources)
	return infos
}

// queryStatus returns the most severe QUERY_STATUS and its message.
func queryStatus(infos []xmlInfo) (string, string) {
	status := StatusOK
	var message string
	for _, info := range infos {
		if !strings.EqualFold(info.Name, "QUERY_STATUS") {
			continue
		}
		v := strings.ToUpper(strings.TrimSpace(info.Value))
		switch v {
		case StatusError:
			return StatusError, strings.TrimSpace(info.Text)
		case StatusOverflow:
			status = StatusOverflow
			message = strings.TrimSpace(info.Text)
		}
	}
	return status, message
}

func findTable(resources []xmlResource) *xmlTable {
	for i := range resources {
		if strings.EqualFold(resources[i].Type, "results") && len(resources[i].Tables) > 0 {
			return &resources[i].Tables[0]
		}
	}
	for i := range resources {
		if len(resources[i].Tables) > 0 {
			return &resources[i].Tables[0]
		}
		if t := findTable(resources[i].Resources); t != nil {
			return t
		}
	}
	return nil
}

func decodeTableData(fields []xmlField, td *xmlTableData) ([][]any, error) {
	rows := make([][]any, 0, len(td.Rows))
	for i, tr := range td.Rows {
		row := make([]any, len(fields))
		for j, f := range fields {
			if j >= len(tr.Cells) {
				break
			}
			v, err := parseText(f, tr.Cells[j])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, f.Name, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseText converts a TABLEDATA cell into a typed value.
func parseText(f xmlField, raw string) (any, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, nil
	}
	if f.Values != nil && f.Values.Null != "" && text == f.Values.Null {
		return nil, nil
	}

	if isArray(f) && f.Datatype != "char" && f.Datatype != "unicodeChar" {
		return strings.Join(strings.Fields(text), " "), nil
	}

	switch f.Datatype {
	case "boolean":
		return parseBool(text), nil
	case "bit":
		return text == "1", nil
	case "unsignedByte", "short", "int", "long":
		n, err := parseInt(text)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", f.Datatype, text)
		}
		if f.Values != nil && f.Values.Null != "" {
			if null, err := parseInt(f.Values.Null); err == nil && n == null {
				return nil, nil
			}
		}
		return n, nil
	case "float", "double":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", f.Datatype, text)
		}
		if math.IsNaN(v) {
			return nil, nil
		}
		return v, nil
	default:
		return text, nil
	}
}

// parseInt reads a decimal integer, or a hexadecimal one written with a
// 0x prefix. Leading zeros are decimal padding.
func parseInt(text string) (int64, error) {
	sign, digits := "", text
	if strings.HasPrefix(digits, "-") || strings.HasPrefix(digits, "+") {
		sign, digits = digits[:1], digits[1:]
	}
	if len(digits) > 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		u, err := strconv.ParseUint(digits[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		n := int64(u)
		if sign == "-" {
			n = -n
		}
		return n, nil
	}
	return strconv.ParseInt(sign+digits, 10, 64)
}

func parseBool(text string) any {
	switch strings.ToLower(text) {
	case "t", "true", "1":
		return true
	case "f", "false", "0":
		return false
	}
	return nil
}

// isArray reports whether the field holds more than one primitive per cell.
func isArray(f xmlField) bool {
	return f.Arraysize != "" && f.Arraysize != "1"
}
