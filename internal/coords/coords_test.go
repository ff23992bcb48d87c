// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/astroquery/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantRA  float64
		wantDec float64
	}{
		{"decimal", "10.684 41.269", 10.684, 41.269},
		{"decimal comma", "10.684,41.269", 10.684, 41.269},
		{"decimal negative dec", "83.822 -5.391", 83.822, -5.391},
		{"letters", "00h42m44.3s +41d16m09s", 10.684583, 41.269167},
		{"colons", "00:42:44.3 +41:16:09", 10.684583, 41.269167},
		{"spaces", "00 42 44.3 +41 16 09", 10.684583, 41.269167},
		{"negative sexagesimal dec", "05:35:17.3 -05:23:28", 83.822083, -5.391111},
		{"negative zero degrees", "12:00:00 -00:30:00", 180, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantRA, c.RA, 1e-5)
			assert.InDelta(t, tt.wantDec, c.Dec, 1e-5)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"M31",
		"10.0",
		"400 10",
		"10 95",
		"00:61:00 +10:00:00",
		"a b",
		"nan nan",
		"10 nan",
		"inf 10",
		"00:42:nan +41:16:09",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestLooksLikeCoordinate(t *testing.T) {
	assert.True(t, LooksLikeCoordinate("10.684 41.269"))
	assert.False(t, LooksLikeCoordinate("M31"))
	assert.False(t, LooksLikeCoordinate("NGC 224"))
	assert.False(t, LooksLikeCoordinate("nan nan"))
}

func TestParseAngle(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"1", 1},
		{"0.1deg", 0.1},
		{"2arcmin", 2.0 / 60},
		{"30arcsec", 30.0 / 3600},
		{"5'", 5.0 / 60},
		{"10\"", 10.0 / 3600},
		{"0.5d", 0.5},
		{"100mas", 0.1 / 3600},
		{" 3 ARCMIN ", 3.0 / 60},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAngle(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseAngleErrors(t *testing.T) {
	for _, input := range []string{"", "arcmin", "-1deg", "abc", "nan", "inf", "+Infarcsec", "NaNdeg"} {
		_, err := ParseAngle(input)
		assert.Error(t, err, input)
	}
}

func TestSeparation(t *testing.T) {
	tests := []struct {
		name string
		a, b types.Coordinate
		want float64
	}{
		{"same point", types.Coordinate{RA: 10, Dec: 20}, types.Coordinate{RA: 10, Dec: 20}, 0},
		{"along equator", types.Coordinate{RA: 0, Dec: 0}, types.Coordinate{RA: 90, Dec: 0}, 90},
		{"pole to equator", types.Coordinate{RA: 0, Dec: 90}, types.Coordinate{RA: 123, Dec: 0}, 90},
		{"antipodal", types.Coordinate{RA: 0, Dec: 0}, types.Coordinate{RA: 180, Dec: 0}, 180},
		{"wraps RA zero", types.Coordinate{RA: 359.5, Dec: 0}, types.Coordinate{RA: 0.5, Dec: 0}, 1},
		{"one arcsec in dec", types.Coordinate{RA: 10, Dec: 41}, types.Coordinate{RA: 10, Dec: 41 + 1.0/3600}, 1.0 / 3600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Separation(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSexagesimal(t *testing.T) {
	assert.Equal(t, "00:42:44.30 +41:16:09.0", Sexagesimal(types.Coordinate{RA: 10.684583333, Dec: 41.269166667}))
	assert.Equal(t, "05:35:17.30 -05:23:28.0", Sexagesimal(types.Coordinate{RA: 83.822083333, Dec: -5.391111111}))
	// 23:59:59.999 rounds up and wraps to zero instead of printing 60.00 seconds.
	assert.Equal(t, "00:00:00.00 +00:00:00.0", Sexagesimal(types.Coordinate{RA: 359.9999999, Dec: 0}))
}
