// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package votable

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/astroquery/pkg/types"
)

const sampleTableData = `<?xml version="1.0" encoding="UTF-8"?>
<VOTABLE version="1.4" xmlns="http://www.ivoa.net/xml/VOTable/v1.3">
  <RESOURCE type="results">
    <INFO name="QUERY_STATUS" value="OK"/>
    <TABLE name="basic">
      <FIELD name="main_id" datatype="char" arraysize="*" ucd="meta.id;meta.main">
        <DESCRIPTION>Main identifier</DESCRIPTION>
      </FIELD>
      <FIELD name="ra" datatype="double" unit="deg" ucd="pos.eq.ra;meta.main"/>
      <FIELD name="dec" datatype="double" unit="deg"/>
      <FIELD name="nbref" datatype="int">
        <VALUES null="-2147483648"/>
      </FIELD>
      <FIELD name="is_galaxy" datatype="boolean"/>
      <FIELD name="pm" datatype="float" arraysize="2"/>
      <DATA>
        <TABLEDATA>
          <TR><TD>M  31</TD><TD>10.684708</TD><TD>41.26875</TD><TD>11826</TD><TD>T</TD><TD>0.1  -0.2</TD></TR>
          <TR><TD>NGC 205</TD><TD>NaN</TD><TD></TD><TD>-2147483648</TD><TD>?</TD><TD></TD></TR>
        </TABLEDATA>
      </DATA>
    </TABLE>
  </RESOURCE>
</VOTABLE>`

func TestDecodeTableData(t *testing.T) {
	tbl, err := Decode(strings.NewReader(sampleTableData))
	require.NoError(t, err)

	assert.Equal(t, "basic", tbl.Name)
	require.Len(t, tbl.Columns, 6)
	assert.Equal(t, "main_id", tbl.Columns[0].Name)
	assert.Equal(t, "Main identifier", tbl.Columns[0].Description)
	assert.Equal(t, "deg", tbl.Columns[1].Unit)
	assert.Equal(t, "pos.eq.ra;meta.main", tbl.Columns[1].UCD)

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []any{"M  31", 10.684708, 41.26875, int64(11826), true, "0.1 -0.2"}, tbl.Rows[0])
	assert.Equal(t, []any{"NGC 205", nil, nil, nil, nil, nil}, tbl.Rows[1])
	assert.False(t, tbl.Truncated)
	assert.Empty(t, tbl.Warnings)
}

func TestDecodeIntegersAreDecimal(t *testing.T) {
	doc := `<VOTABLE><RESOURCE type="results">
  <TABLE>
    <FIELD name="n" datatype="long"/>
    <FIELD name="flag" datatype="short"><VALUES null="0x7FFF"/></FIELD>
    <DATA><TABLEDATA>
      <TR><TD>010</TD><TD>0x1F</TD></TR>
      <TR><TD>08</TD><TD>32767</TD></TR>
      <TR><TD>-007</TD><TD>-0x10</TD></TR>
      <TR><TD>+42</TD><TD>0</TD></TR>
    </TABLEDATA></DATA>
  </TABLE>
</RESOURCE></VOTABLE>`

	tbl, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 4, tbl.Len())
	assert.Equal(t, []any{int64(10), int64(31)}, tbl.Rows[0])
	assert.Equal(t, []any{int64(8), nil}, tbl.Rows[1])
	assert.Equal(t, []any{int64(-7), int64(-16)}, tbl.Rows[2])
	assert.Equal(t, []any{int64(42), int64(0)}, tbl.Rows[3])
}

func TestParseInt(t *testing.T) {
	for in, want := range map[string]int64{"0": 0, "09": 9, "0x10": 16, "0XfF": 255, "-12": -12} {
		got, err := parseInt(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "0x", "1.5", "0b101", "x10"} {
		_, err := parseInt(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecodeOverflow(t *testing.T) {
	doc := `<VOTABLE><RESOURCE type="results">
  <INFO name="QUERY_STATUS" value="OK"/>
  <TABLE><FIELD name="x" datatype="int"/>
    <DATA><TABLEDATA><TR><TD>1</TD></TR><TR><TD>2</TD></TR></TABLEDATA></DATA>
  </TABLE>
  <INFO name="QUERY_STATUS" value="OVERFLOW"/>
</RESOURCE></VOTABLE>`

	tbl, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.True(t, tbl.Truncated)
	assert.Contains(t, tbl.Warnings, TruncationWarning)
	assert.Equal(t, 2, tbl.Len())
}

func TestDecodeQueryError(t *testing.T) {
	doc := `<?xml version="1.0"?>
<VOTABLE version="1.3" xmlns="http://www.ivoa.net/xml/VOTable/v1.3">
  <RESOURCE type="results">
    <INFO name="QUERY_STATUS" value="ERROR">Column "rax" does not exist</INFO>
  </RESOURCE>
</VOTABLE>`

	_, err := Decode(strings.NewReader(doc))
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, `Column "rax" does not exist`, qe.Message)
	assert.Contains(t, err.Error(), "rax")
}

func TestDecodePrefersResultsResource(t *testing.T) {
	doc := `<VOTABLE>
  <RESOURCE type="meta"><TABLE name="service"><FIELD name="a" datatype="char" arraysize="*"/></TABLE></RESOURCE>
  <RESOURCE type="results"><TABLE name="data"><FIELD name="b" datatype="int"/>
    <DATA><TABLEDATA><TR><TD>7</TD></TR></TABLEDATA></DATA></TABLE></RESOURCE>
</VOTABLE>`

	tbl, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "data", tbl.Name)
	assert.Equal(t, int64(7), tbl.Rows[0][0])
}

func TestDecodeEmptyResults(t *testing.T) {
	doc := `<VOTABLE><RESOURCE type="results"><INFO name="QUERY_STATUS" value="OK"/></RESOURCE></VOTABLE>`
	tbl, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "this is not xml"},
		{"no resource", "<VOTABLE></VOTABLE>"},
		{"bad int", `<VOTABLE><RESOURCE><TABLE><FIELD name="n" datatype="int"/><DATA><TABLEDATA><TR><TD>abc</TD></TR></TABLEDATA></DATA></TABLE></RESOURCE></VOTABLE>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestDecodeBinary2(t *testing.T) {
	// Two rows of (long id, double ra, char* name, boolean flag); the second
	// row flags ra as null.
	doc := `<VOTABLE><RESOURCE type="results"><TABLE>
  <FIELD name="id" datatype="long"/>
  <FIELD name="ra" datatype="double"/>
  <FIELD name="name" datatype="char" arraysize="*"/>
  <FIELD name="flag" datatype="boolean"/>
  <DATA><BINARY2><STREAM encoding="base64">
    AAAAAAAAAAABQCUAAAAAAAAAAAADTTMxVEAAAAAAAAAAAn/4AAAAAAAAAAAAAEY=
  </STREAM></BINARY2></DATA>
</TABLE></RESOURCE></VOTABLE>`

	tbl, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []any{int64(1), 10.5, "M31", true}, tbl.Rows[0])
	assert.Equal(t, []any{int64(2), nil, nil, false}, tbl.Rows[1])
}

func TestDecodeBinary(t *testing.T) {
	// Rows of (short, float[2], char[4]); -99 is the declared null value.
	doc := `<VOTABLE><RESOURCE><TABLE>
  <FIELD name="n" datatype="short"><VALUES null="-99"/></FIELD>
  <FIELD name="pm" datatype="float" arraysize="2"/>
  <FIELD name="code" datatype="char" arraysize="4"/>
  <DATA><BINARY><STREAM encoding="base64">//0/wAAAQCAAAGFiAAD/nT8AAAB/wAAAd3h5eg==</STREAM></BINARY></DATA>
</TABLE></RESOURCE></VOTABLE>`

	tbl, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []any{int64(-3), "1.5 2.5", "ab"}, tbl.Rows[0])
	assert.Equal(t, []any{nil, "0.5 NaN", "wxyz"}, tbl.Rows[1])
}

func TestDecodeBinaryTruncatedStream(t *testing.T) {
	doc := `<VOTABLE><RESOURCE><TABLE>
  <FIELD name="x" datatype="double"/>
  <DATA><BINARY><STREAM encoding="base64">AAAA</STREAM></BINARY></DATA>
</TABLE></RESOURCE></VOTABLE>`

	_, err := Decode(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestEncodeRoundTrip(t *testing.T) {
	in := &types.Table{
		Name: "sources",
		Columns: []types.Column{
			{Name: "source_id", Datatype: "long"},
			{Name: "ra", Datatype: "double", Unit: "deg", UCD: "pos.eq.ra"},
			{Name: "name"},
			{Name: "variable"},
		},
		Rows: [][]any{
			{int64(4295806720), 45.1, "a <b> & c", true},
			{int64(38655544960), nil, nil, false},
		},
		Truncated: true,
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))
	assert.Contains(t, buf.String(), `value="OVERFLOW"`)
	assert.Contains(t, buf.String(), `&lt;b&gt;`)

	out, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Rows, out.Rows)
	assert.True(t, out.Truncated)
	assert.Equal(t, "char", out.Columns[2].Datatype)
	assert.Equal(t, "boolean", out.Columns[3].Datatype)
	assert.Equal(t, "deg", out.Columns[1].Unit)
}
