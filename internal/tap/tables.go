// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tap

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pdiddy/astroquery/pkg/types"
)

// TableInfo describes one table published by a TAP service.
type TableInfo struct {
	Schema      string
	Name        string
	Description string
	Columns     []types.Column
}

type vosiTableset struct {
	Schemas []vosiSchema `xml:"schema"`
	Tables  []vosiTable  `xml:"table"`
}

type vosiSchema struct {
	Name   string      `xml:"name"`
	Tables []vosiTable `xml:"table"`
}

type vosiTable struct {
	Name        string       `xml:"name"`
	Description string       `xml:"description"`
	Columns     []vosiColumn `xml:"column"`
}

type vosiColumn struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Unit        string `xml:"unit"`
	UCD         string `xml:"ucd"`
	DataType    string `xml:"dataType"`
}

// Tables lists the service's tables from its VOSI /tables endpoint, sorted
// by name. A non-empty match keeps only tables whose name contains it
// (case-insensitive).
func (c *Client) Tables(ctx context.Context, match string) ([]TableInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("tables"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s tables request: %w", c.label(), err)
	}
	defer resp.Body.Close()

	payload, err := c.readPayload(resp)
	if err != nil {
		return nil, err
	}

	var set vosiTableset
	if err := xml.Unmarshal(payload, &set); err != nil {
		return nil, fmt.Errorf("parsing %s table set: %w", c.label(), err)
	}

	match = strings.ToLower(match)
	var out []TableInfo
	add := func(schema string, t vosiTable) {
		name := strings.TrimSpace(t.Name)
		if match != "" && !strings.Contains(strings.ToLower(name), match) {
			return
		}
		info := TableInfo{
			Schema:      schema,
			Name:        name,
			Description: strings.TrimSpace(t.Description),
		}
		for _, col := range t.Columns {
			info.Columns = append(info.Columns, types.Column{
				Name:        strings.TrimSpace(col.Name),
				Datatype:    strings.TrimSpace(col.DataType),
				Unit:        strings.TrimSpace(col.Unit),
				UCD:         strings.TrimSpace(col.UCD),
				Description: strings.TrimSpace(col.Description),
			})
		}
		out = append(out, info)
	}
	for _, s := range set.Schemas {
		for _, t := range s.Tables {
			add(strings.TrimSpace(s.Name), t)
		}
	}
	for _, t := range set.Tables {
		add("", t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
