// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog queries astronomical archives by object name, sky region,
// or column constraints, and merges region results from several archives
// into one source list.
package catalog

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pdiddy/astroquery/internal/adql"
	"github.com/pdiddy/astroquery/internal/tap"
	"github.com/pdiddy/astroquery/pkg/types"
)

// defaultObjectRadius is the cone used for object queries when the config
// leaves DefaultRadius unset: 2 arcsec.
const defaultObjectRadius = 2.0 / 3600

// Region is a cone on the sky.
type Region struct {
	Center types.Coordinate

	// Radius in degrees.
	Radius float64
}

// Criteria selects rows by column constraints ("Vmag" -> "<10"), optionally
// restricted to a region.
type Criteria struct {
	Filters map[string]string
	Columns []string
	Region  *Region
}

// Service is one archive that can answer cone searches.
type Service interface {
	Name() string
	QueryRegion(ctx context.Context, region Region, cfg types.QueryConfig) (*types.Table, error)
}

// ObjectQuerier is implemented by services that can look up a named object.
type ObjectQuerier interface {
	QueryObject(ctx context.Context, name string, cfg types.QueryConfig) (*types.Table, error)
}

// CriteriaQuerier is implemented by services that accept column constraints.
type CriteriaQuerier interface {
	QueryCriteria(ctx context.Context, c Criteria, cfg types.QueryConfig) (*types.Table, error)
}

// Resolver turns an object name into a position.
type Resolver interface {
	Resolve(ctx context.Context, name string) (types.Coordinate, error)
}

// TAPService answers region, object and criteria queries against one table
// of a TAP service.
type TAPService struct {
	Label     string
	TAP       *tap.Client
	Table     string
	RAColumn  string
	DecColumn string
	IDColumn  string

	// Columns lists the columns to select; empty selects all.
	Columns []string

	// ProductColumn names the column holding data product URLs, if any.
	ProductColumn string

	// Resolver positions object names for services without an identifier
	// index.
	Resolver Resolver

	// IdentQuery, when set, builds an exact-identifier query used by
	// QueryObject instead of resolving the name and running a cone.
	IdentQuery func(name string) string

	// Async sends every query through the UWS job interface.
	Async bool

	// OnSubmit is passed to async queries to record submitted jobs.
	OnSubmit func(job *types.Job)
}

// Name returns the service label.
func (s *TAPService) Name() string { return s.Label }

// PositionColumns returns the RA, Dec and identifier column names.
func (s *TAPService) PositionColumns() (ra, dec, id string) {
	return s.RAColumn, s.DecColumn, s.IDColumn
}

// RegionQuery returns the ADQL for a cone search, nearest rows first.
func (s *TAPService) RegionQuery(region Region) string {
	return adql.Select{
		Table:   s.Table,
		Columns: s.Columns,
		Where:   []string{adql.Cone(s.RAColumn, s.DecColumn, region.Center, region.Radius)},
		OrderBy: adql.Distance(s.RAColumn, s.DecColumn, region.Center),
	}.String()
}

// CriteriaQuery returns the ADQL for c.
func (s *TAPService) CriteriaQuery(c Criteria) (string, error) {
	where, err := adql.Where(c.Filters)
	if err != nil {
		return "", err
	}
	q := adql.Select{Table: s.Table, Columns: s.Columns, Where: where}
	if len(c.Columns) > 0 {
		q.Columns = c.Columns
	}
	if c.Region != nil {
		if err := c.Region.validate(); err != nil {
			return "", err
		}
		q.Where = append([]string{adql.Cone(s.RAColumn, s.DecColumn, c.Region.Center, c.Region.Radius)}, q.Where...)
		q.OrderBy = adql.Distance(s.RAColumn, s.DecColumn, c.Region.Center)
	}
	if len(q.Where) == 0 {
		return "", fmt.Errorf("%s: criteria query needs at least one filter or a region", s.Label)
	}
	return q.String(), nil
}

// QueryRegion runs a cone search.
func (s *TAPService) QueryRegion(ctx context.Context, region Region, cfg types.QueryConfig) (*types.Table, error) {
	if err := region.validate(); err != nil {
		return nil, err
	}
	return s.Run(ctx, s.RegionQuery(region), cfg)
}

// QueryObject looks up name by identifier when the service supports it,
// otherwise resolves it and runs a cone of cfg.DefaultRadius.
func (s *TAPService) QueryObject(ctx context.Context, name string, cfg types.QueryConfig) (*types.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("object name is empty")
	}
	if s.IdentQuery != nil {
		return s.Run(ctx, s.IdentQuery(name), cfg)
	}
	if s.Resolver == nil {
		return nil, fmt.Errorf("%s cannot look up objects by name: no resolver configured", s.Label)
	}
	center, err := s.Resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	radius := cfg.DefaultRadius
	if radius <= 0 {
		radius = defaultObjectRadius
	}
	return s.QueryRegion(ctx, Region{Center: center, Radius: radius}, cfg)
}

// QueryCriteria runs a constraint query.
func (s *TAPService) QueryCriteria(ctx context.Context, c Criteria, cfg types.QueryConfig) (*types.Table, error) {
	q, err := s.CriteriaQuery(c)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, q, cfg)
}

// Run executes raw ADQL against the service.
func (s *TAPService) Run(ctx context.Context, query string, cfg types.QueryConfig) (*types.Table, error) {
	t, err := s.TAP.Query(ctx, query, tap.QueryOptions{
		MaxRec:   cfg.RowLimit,
		Async:    cfg.Async || s.Async,
		MaxWait:  cfg.MaxWait,
		OnSubmit: s.OnSubmit,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Label, err)
	}
	return t, nil
}

func (r Region) validate() error {
	if !(r.Radius > 0) {
		return fmt.Errorf("search radius must be positive, got %g deg", r.Radius)
	}
	if r.Radius > 180 {
		return fmt.Errorf("search radius %g deg exceeds 180 deg", r.Radius)
	}
	if math.IsNaN(r.Center.RA) || math.IsInf(r.Center.RA, 0) {
		return fmt.Errorf("right ascension %g is not finite", r.Center.RA)
	}
	if !(r.Center.Dec >= -90 && r.Center.Dec <= 90) {
		return fmt.Errorf("declination %g out of range [-90, 90]", r.Center.Dec)
	}
	return nil
}
