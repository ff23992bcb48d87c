// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/astroquery/internal/coords"
	"github.com/pdiddy/astroquery/pkg/types"
)

// defaultMatchRadius merges sources closer than 1 arcsec.
const defaultMatchRadius = 1.0 / 3600

// maxConcurrentServices bounds the region fan-out.
const maxConcurrentServices = 4

// MultiOutput holds the merged sources and each service's raw table.
type MultiOutput struct {
	Sources []types.Source

	// Tables maps service name to its result table. Failed services are
	// absent.
	Tables map[string]*types.Table

	// Merged counts rows folded into a source found by another row.
	Merged int

	ServiceErrors []string
}

// positioned is implemented by services that know their position columns.
type positioned interface {
	PositionColumns() (ra, dec, id string)
}

// QueryRegionAll runs region against every service concurrently. A failing
// service becomes a warning on w; the call only fails when every service
// does. Rows from all services are merged into sources that lie within
// cfg.MatchRadius of each other, sorted by distance from the center.
func QueryRegionAll(ctx context.Context, region Region, services []Service, cfg types.QueryConfig, w io.Writer) (MultiOutput, error) {
	if len(services) == 0 {
		return MultiOutput{}, fmt.Errorf("no services selected")
	}
	if err := region.validate(); err != nil {
		return MultiOutput{}, err
	}

	tables := make([]*types.Table, len(services))
	errs := make([]error, len(services))

	var g errgroup.Group
	g.SetLimit(maxConcurrentServices)
	for i, svc := range services {
		g.Go(func() error {
			tables[i], errs[i] = svc.QueryRegion(ctx, region, cfg)
			return nil
		})
	}
	g.Wait()

	out := MultiOutput{Tables: make(map[string]*types.Table)}
	var all []candidate
	for i, svc := range services {
		if errs[i] != nil {
			out.ServiceErrors = append(out.ServiceErrors, fmt.Sprintf("%s: %v", svc.Name(), errs[i]))
			fmt.Fprintf(w, "warning: service %s failed: %v\n", svc.Name(), errs[i])
			continue
		}
		out.Tables[svc.Name()] = tables[i]
		ReportWarnings(w, svc.Name(), tables[i])
		all = append(all, candidates(svc, tables[i], region.Center)...)
	}
	if len(out.ServiceErrors) == len(services) {
		return out, fmt.Errorf("all services failed: %s", strings.Join(out.ServiceErrors, "; "))
	}

	match := cfg.MatchRadius
	if match <= 0 {
		match = defaultMatchRadius
	}
	out.Sources, out.Merged = merge(all, match)

	if cfg.RowLimit > 0 && len(out.Sources) > cfg.RowLimit {
		out.Sources = out.Sources[:cfg.RowLimit]
	}

	log.WithFields(log.Fields{
		"services": len(out.Tables),
		"sources":  len(out.Sources),
		"merged":   out.Merged,
	}).Debug("Merged region results")
	return out, nil
}

type candidate struct {
	service string
	id      string
	pos     types.Coordinate
	sep     float64
}

// candidates reduces every positioned row of t to a candidate source.
func candidates(svc Service, t *types.Table, center types.Coordinate) []candidate {
	raCol, decCol, idCol := positionColumns(svc, t)
	if raCol == "" || decCol == "" {
		log.WithField("service", svc.Name()).Warn("Result has no position columns; skipping merge")
		return nil
	}
	if idCol == "" && len(t.Columns) > 0 {
		idCol = t.Columns[0].Name
	}

	var out []candidate
	for row := range t.Rows {
		ra, ok1 := t.Float(row, raCol)
		dec, ok2 := t.Float(row, decCol)
		if !ok1 || !ok2 {
			continue
		}
		pos := types.Coordinate{RA: ra, Dec: dec}
		out = append(out, candidate{
			service: svc.Name(),
			id:      t.String(row, idCol),
			pos:     pos,
			sep:     coords.Separation(center, pos),
		})
	}
	return out
}

// positionColumns prefers the service's declared columns, then the main
// position UCDs, then common column names.
func positionColumns(svc Service, t *types.Table) (ra, dec, id string) {
	if p, ok := svc.(positioned); ok {
		ra, dec, id = p.PositionColumns()
		if t.ColumnIndex(ra) >= 0 && t.ColumnIndex(dec) >= 0 {
			return ra, dec, id
		}
	}
	ra, dec, id = "", "", ""
	for _, c := range t.Columns {
		ucd := strings.ToLower(c.UCD)
		switch {
		case ra == "" && (ucd == "pos.eq.ra;meta.main" || ucd == "pos_eq_ra_main"):
			ra = c.Name
		case dec == "" && (ucd == "pos.eq.dec;meta.main" || ucd == "pos_eq_dec_main"):
			dec = c.Name
		case id == "" && (ucd == "meta.id;meta.main" || ucd == "id_main"):
			id = c.Name
		}
	}
	if ra != "" && dec != "" {
		return ra, dec, id
	}
	for _, pair := range [][2]string{{"ra", "dec"}, {"RAJ2000", "DEJ2000"}, {"s_ra", "s_dec"}} {
		if t.ColumnIndex(pair[0]) >= 0 && t.ColumnIndex(pair[1]) >= 0 {
			return pair[0], pair[1], id
		}
	}
	return "", "", ""
}

// merge folds candidates lying within radius degrees of an existing source
// into that source. Candidates are visited nearest first so each source
// keeps the position closest to the query center.
func merge(all []candidate, radius float64) ([]types.Source, int) {
	sort.SliceStable(all, func(i, j int) bool { return all[i].sep < all[j].sep })

	var sources []types.Source
	merged := 0
	for _, c := range all {
		idx := -1
		for i := range sources {
			if coords.Separation(sources[i].Position, c.pos) <= radius {
				idx = i
				break
			}
		}
		if idx < 0 {
			sources = append(sources, types.Source{
				Service:    c.service,
				ID:         c.id,
				Position:   c.pos,
				Separation: c.sep,
				Services:   []string{c.service},
			})
			continue
		}
		merged++
		s := &sources[idx]
		if s.ID == "" {
			s.ID = c.id
		}
		if !contains(s.Services, c.service) {
			s.Services = append(s.Services, c.service)
		}
	}
	return sources, merged
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
