// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/astroquery/pkg/types"
)

// --- mock service ---

type mockService struct {
	name  string
	table *types.Table
	err   error
	cols  [3]string
}

func (m *mockService) Name() string { return m.name }

func (m *mockService) QueryRegion(_ context.Context, _ Region, _ types.QueryConfig) (*types.Table, error) {
	return m.table, m.err
}

type positionedMock struct{ mockService }

func (m *positionedMock) PositionColumns() (string, string, string) {
	return m.cols[0], m.cols[1], m.cols[2]
}

const arcsec = 1.0 / 3600

var center = types.Coordinate{RA: 10, Dec: 20}

func posTable(idCol, raCol, decCol string, rows ...[]any) *types.Table {
	return &types.Table{
		Columns: []types.Column{{Name: idCol}, {Name: raCol}, {Name: decCol}},
		Rows:    rows,
	}
}

// --- QueryRegionAll ---

func TestQueryRegionAllMergesNearbySources(t *testing.T) {
	simbad := &positionedMock{mockService{
		name: "simbad",
		cols: [3]string{"ra", "dec", "main_id"},
		table: posTable("main_id", "ra", "dec",
			[]any{"star A", 10.0, 20.0 + 10*arcsec},
			[]any{"star B", 10.0, 20.0 + 60*arcsec},
		),
	}}
	gaia := &positionedMock{mockService{
		name: "gaia",
		cols: [3]string{"ra", "dec", "source_id"},
		table: posTable("source_id", "ra", "dec",
			[]any{int64(1001), 10.0, 20.0 + 10.4*arcsec}, // same as star A
			[]any{int64(1002), 10.0, 20.0 + 5*arcsec},    // nearest, only in gaia
			[]any{int64(1003), nil, 20.0},                // no position
		),
	}}

	var w bytes.Buffer
	out, err := QueryRegionAll(context.Background(), Region{Center: center, Radius: 0.1},
		[]Service{simbad, gaia}, types.QueryConfig{}, &w)
	require.NoError(t, err)

	require.Len(t, out.Sources, 3)
	assert.Equal(t, "1002", out.Sources[0].ID)
	assert.Equal(t, []string{"gaia"}, out.Sources[0].Services)
	assert.Equal(t, "gaia", out.Sources[0].Service)

	assert.Equal(t, "star A", out.Sources[1].ID)
	assert.ElementsMatch(t, []string{"simbad", "gaia"}, out.Sources[1].Services)
	assert.InDelta(t, 10*arcsec, out.Sources[1].Separation, 1e-9)
	assert.Equal(t, "simbad", out.Sources[1].Service)

	assert.Equal(t, "star B", out.Sources[2].ID)
	assert.Equal(t, 1, out.Merged)
	assert.Len(t, out.Tables, 2)
	assert.Empty(t, w.String())
}

func TestQueryRegionAllMatchRadius(t *testing.T) {
	svc := &positionedMock{mockService{
		name: "a",
		cols: [3]string{"ra", "dec", "id"},
		table: posTable("id", "ra", "dec",
			[]any{"x", 10.0, 20.0},
			[]any{"y", 10.0, 20.0 + 3*arcsec},
		),
	}}

	out, err := QueryRegionAll(context.Background(), Region{Center: center, Radius: 0.1},
		[]Service{svc}, types.QueryConfig{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Len(t, out.Sources, 2)

	out, err = QueryRegionAll(context.Background(), Region{Center: center, Radius: 0.1},
		[]Service{svc}, types.QueryConfig{MatchRadius: 5 * arcsec}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "x", out.Sources[0].ID)
}

func TestQueryRegionAllRowLimit(t *testing.T) {
	svc := &positionedMock{mockService{
		name: "a",
		cols: [3]string{"ra", "dec", "id"},
		table: posTable("id", "ra", "dec",
			[]any{"far", 10.0, 20.05},
			[]any{"near", 10.0, 20.01},
			[]any{"mid", 10.0, 20.03},
		),
	}}
	out, err := QueryRegionAll(context.Background(), Region{Center: center, Radius: 0.1},
		[]Service{svc}, types.QueryConfig{RowLimit: 2}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, out.Sources, 2)
	assert.Equal(t, "near", out.Sources[0].ID)
	assert.Equal(t, "mid", out.Sources[1].ID)
}

func TestQueryRegionAllServiceFailure(t *testing.T) {
	good := &positionedMock{mockService{
		name:  "good",
		cols:  [3]string{"ra", "dec", "id"},
		table: posTable("id", "ra", "dec", []any{"x", 10.0, 20.0}),
	}}
	bad := &mockService{name: "bad", err: errors.New("HTTP 500")}

	var w bytes.Buffer
	out, err := QueryRegionAll(context.Background(), Region{Center: center, Radius: 0.1},
		[]Service{good, bad}, types.QueryConfig{}, &w)
	require.NoError(t, err)
	assert.Len(t, out.Sources, 1)
	assert.Equal(t, []string{"bad: HTTP 500"}, out.ServiceErrors)
	assert.Contains(t, w.String(), "warning: service bad failed")
}

func TestQueryRegionAllEveryServiceFails(t *testing.T) {
	a := &mockService{name: "a", err: errors.New("down")}
	b := &mockService{name: "b", err: errors.New("timeout")}

	_, err := QueryRegionAll(context.Background(), Region{Center: center, Radius: 0.1},
		[]Service{a, b}, types.QueryConfig{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Contains(t, err.Error(), "timeout")
}

func TestQueryRegionAllValidates(t *testing.T) {
	_, err := QueryRegionAll(context.Background(), Region{Center: center, Radius: 0.1}, nil, types.QueryConfig{}, &bytes.Buffer{})
	assert.Error(t, err)

	svc := &mockService{name: "a"}
	_, err = QueryRegionAll(context.Background(), Region{Center: center}, []Service{svc}, types.QueryConfig{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestQueryRegionAllReportsTruncation(t *testing.T) {
	tbl := posTable("id", "ra", "dec", []any{"x", 10.0, 20.0})
	tbl.Truncated = true
	tbl.Warnings = []string{"result truncated by service row limit"}
	svc := &mockService{name: "vizier", table: tbl}

	var w bytes.Buffer
	_, err := QueryRegionAll(context.Background(), Region{Center: center, Radius: 0.1}, []Service{svc}, types.QueryConfig{}, &w)
	require.NoError(t, err)
	assert.Contains(t, w.String(), "warning: vizier: result truncated")
}

// --- position column detection ---

func TestPositionColumnsByUCD(t *testing.T) {
	tbl := &types.Table{Columns: []types.Column{
		{Name: "RAJ2000_deg", UCD: "POS.EQ.RA;META.MAIN"},
		{Name: "DEJ2000_deg", UCD: "pos.eq.dec;meta.main"},
		{Name: "recno", UCD: "meta.id;meta.main"},
	}}
	ra, dec, id := positionColumns(&mockService{name: "scs"}, tbl)
	assert.Equal(t, "RAJ2000_deg", ra)
	assert.Equal(t, "DEJ2000_deg", dec)
	assert.Equal(t, "recno", id)
}

func TestPositionColumnsByName(t *testing.T) {
	tbl := &types.Table{Columns: []types.Column{{Name: "HIP"}, {Name: "RAJ2000"}, {Name: "DEJ2000"}}}
	ra, dec, _ := positionColumns(&mockService{name: "vizier"}, tbl)
	assert.Equal(t, "RAJ2000", ra)
	assert.Equal(t, "DEJ2000", dec)

	ra, dec, _ = positionColumns(&mockService{name: "x"}, &types.Table{Columns: []types.Column{{Name: "flux"}}})
	assert.Empty(t, ra)
	assert.Empty(t, dec)
}

func TestCandidatesDefaultID(t *testing.T) {
	tbl := posTable("HIP", "RAJ2000", "DEJ2000", []any{int64(32349), 101.28, -16.71})
	got := candidates(&mockService{name: "vizier"}, tbl, types.Coordinate{RA: 101.28, Dec: -16.71})
	require.Len(t, got, 1)
	assert.Equal(t, "32349", got[0].id)
	assert.InDelta(t, 0, got[0].sep, 1e-12)
}

// --- Simple Cone Search ---

func TestConeSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "I/239", q.Get("-source"))
		assert.Equal(t, "10.5", q.Get("RA"))
		assert.Equal(t, "-20.25", q.Get("DEC"))
		assert.Equal(t, "0.1", q.Get("SR"))
		assert.Equal(t, "2", q.Get("VERB"))
		fmt.Fprint(w, `<VOTABLE><RESOURCE type="results"><TABLE>
  <FIELD name="id" datatype="char" arraysize="*" ucd="meta.id;meta.main"/>
  <FIELD name="ra" datatype="double" ucd="pos.eq.ra;meta.main"/>
  <FIELD name="dec" datatype="double" ucd="pos.eq.dec;meta.main"/>
  <DATA><TABLEDATA>
    <TR><TD>a</TD><TD>10.5</TD><TD>-20.25</TD></TR>
    <TR><TD>b</TD><TD>10.51</TD><TD>-20.25</TD></TR>
    <TR><TD>c</TD><TD>10.52</TD><TD>-20.25</TD></TR>
  </TABLEDATA></DATA></TABLE></RESOURCE></VOTABLE>`)
	}))
	defer ts.Close()

	cs := &ConeSearch{Label: "hip", URL: ts.URL + "/scs?-source=I/239", Client: ts.Client()}
	region := Region{Center: types.Coordinate{RA: 10.5, Dec: -20.25}, Radius: 0.1}

	tbl, err := cs.QueryRegion(context.Background(), region, types.QueryConfig{})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.False(t, tbl.Truncated)

	tbl, err = cs.QueryRegion(context.Background(), region, types.QueryConfig{RowLimit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.True(t, tbl.Truncated)
	assert.NotEmpty(t, tbl.Warnings)

	out, err := QueryRegionAll(context.Background(), region, []Service{cs}, types.QueryConfig{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Len(t, out.Sources, 3)
	assert.Equal(t, "a", out.Sources[0].ID)
}

func TestConeSearchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	}))
	defer ts.Close()

	cs := &ConeSearch{Label: "scs", URL: ts.URL, Client: ts.Client()}
	_, err := cs.QueryRegion(context.Background(), Region{Center: center, Radius: 0.1}, types.QueryConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}
