// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package votable

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/pdiddy/astroquery/pkg/types"
)

const (
	voTableVersion   = "1.4"
	voTableNamespace = "http://www.ivoa.net/xml/VOTable/v1.3"
)

type encVOTable struct {
	XMLName  xml.Name    `xml:"VOTABLE"`
	Version  string      `xml:"version,attr"`
	Xmlns    string      `xml:"xmlns,attr"`
	Resource encResource `xml:"RESOURCE"`
}

type encResource struct {
	Type  string    `xml:"type,attr"`
	Infos []xmlInfo `xml:"INFO"`
	Table encTable  `xml:"TABLE"`
}

type encTable struct {
	Name   string     `xml:"name,attr,omitempty"`
	Fields []encField `xml:"FIELD"`
	Data   encData    `xml:"DATA"`
}

type encField struct {
	Name        string `xml:"name,attr"`
	Datatype    string `xml:"datatype,attr"`
	Arraysize   string `xml:"arraysize,attr,omitempty"`
	Unit        string `xml:"unit,attr,omitempty"`
	UCD         string `xml:"ucd,attr,omitempty"`
	Description string `xml:"DESCRIPTION,omitempty"`
}

type encData struct {
	TableData xmlTableData `xml:"TABLEDATA"`
}

// Encode writes t as a VOTable 1.4 document with TABLEDATA serialization.
// Columns without a datatype are typed from their first non-null value.
func Encode(w io.Writer, t *types.Table) error {
	status := xmlInfo{Name: "QUERY_STATUS", Value: StatusOK}
	if t.Truncated {
		status.Value = StatusOverflow
	}

	doc := encVOTable{
		Version: voTableVersion,
		Xmlns:   voTableNamespace,
		Resource: encResource{
			Type:  "results",
			Infos: []xmlInfo{status},
			Table: encTable{Name: t.Name},
		},
	}

	for i, c := range t.Columns {
		datatype, arraysize := c.Datatype, c.Arraysize
		if datatype == "" {
			datatype, arraysize = inferDatatype(t, i)
		}
		doc.Resource.Table.Fields = append(doc.Resource.Table.Fields, encField{
			Name:        c.Name,
			Datatype:    datatype,
			Arraysize:   arraysize,
			Unit:        c.Unit,
			UCD:         c.UCD,
			Description: c.Description,
		})
	}

	rows := make([]xmlRow, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for j := range t.Columns {
			if j < len(row) {
				cells[j] = formatCell(row[j])
			}
		}
		rows[i] = xmlRow{Cells: cells}
	}
	doc.Resource.Table.Data.TableData.Rows = rows

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding VOTable: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func inferDatatype(t *types.Table, col int) (string, string) {
	for _, row := range t.Rows {
		if col >= len(row) {
			continue
		}
		switch row[col].(type) {
		case nil:
			continue
		case bool:
			return "boolean", ""
		case int64:
			return "long", ""
		case float64:
			return "double", ""
		default:
			return "char", "*"
		}
	}
	return "char", "*"
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		if x {
			return "T"
		}
		return "F"
	default:
		return types.FormatValue(x)
	}
}
