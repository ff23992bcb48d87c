// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/astroquery/pkg/types"
)

// QueryFile is the on-disk form of a query and its result table. A saved
// query can be reloaded and displayed without contacting the service.
type QueryFile struct {
	Query     QueryParams     `yaml:"query"`
	Config    QueryFileConfig `yaml:"config"`
	TableName string          `yaml:"table,omitempty"`
	Columns   []types.Column  `yaml:"columns"`
	Rows      [][]any         `yaml:"rows"`
	Summary   QuerySummary    `yaml:"summary"`
}

// QueryParams records what was asked.
type QueryParams struct {
	Service string            `yaml:"service"`
	Kind    string            `yaml:"kind"` // object, region, criteria or adql
	Object  string            `yaml:"object,omitempty"`
	Center  *types.Coordinate `yaml:"center,omitempty"`
	Radius  float64           `yaml:"radius,omitempty"`
	Filters map[string]string `yaml:"filters,omitempty"`
	ADQL    string            `yaml:"adql,omitempty"`
}

// QueryFileConfig records the settings that shaped the result.
type QueryFileConfig struct {
	RowLimit int  `yaml:"row_limit"`
	Async    bool `yaml:"async"`
}

// QuerySummary records result statistics and a timestamp.
type QuerySummary struct {
	Total     int       `yaml:"total"`
	Truncated bool      `yaml:"truncated"`
	Warnings  []string  `yaml:"warnings,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves the query parameters and result table as YAML.
func WriteQueryFile(path string, params QueryParams, cfg types.QueryConfig, t *types.Table) error {
	qf := QueryFile{
		Query:     params,
		Config:    QueryFileConfig{RowLimit: cfg.RowLimit, Async: cfg.Async},
		TableName: t.Name,
		Columns:   t.Columns,
		Rows:      t.Rows,
		Summary: QuerySummary{
			Total:     t.Len(),
			Truncated: t.Truncated,
			Warnings:  t.Warnings,
			Timestamp: time.Now(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// Table rebuilds the saved result table. YAML integers come back as int;
// they are widened to int64, or to float64 in floating-point columns, to
// match freshly decoded tables.
func (qf *QueryFile) Table() *types.Table {
	rows := make([][]any, len(qf.Rows))
	for i, row := range qf.Rows {
		rows[i] = make([]any, len(row))
		for j, v := range row {
			floating := j < len(qf.Columns) && isFloatType(qf.Columns[j].Datatype)
			switch x := v.(type) {
			case int:
				if floating {
					rows[i][j] = float64(x)
				} else {
					rows[i][j] = int64(x)
				}
			case uint64:
				rows[i][j] = int64(x)
			default:
				rows[i][j] = v
			}
		}
	}
	return &types.Table{
		Name:      qf.TableName,
		Columns:   qf.Columns,
		Rows:      rows,
		Truncated: qf.Summary.Truncated,
		Warnings:  qf.Summary.Warnings,
	}
}

func isFloatType(datatype string) bool {
	return datatype == "double" || datatype == "float"
}
