// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coords parses sky positions and angular sizes and computes
// great-circle separations. All positions are ICRS, all angles degrees.
package coords

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pdiddy/astroquery/pkg/types"
)

// Parse reads a sky position. Accepted forms:
//
//	"10.684 41.269"              decimal degrees
//	"10.684,41.269"              decimal degrees, comma separated
//	"00h42m44.3s +41d16m09s"     sexagesimal with unit letters
//	"00:42:44.3 +41:16:09"       sexagesimal with colons
//	"00 42 44.3 +41 16 09"       sexagesimal with spaces
//
// Sexagesimal right ascension is in hours; decimal right ascension is in
// degrees.
func Parse(s string) (types.Coordinate, error) {
	fields := strings.Fields(strings.ReplaceAll(strings.TrimSpace(s), ",", " "))

	var raText, decText string
	switch len(fields) {
	case 2:
		raText, decText = fields[0], fields[1]
	case 6:
		raText = strings.Join(fields[:3], ":")
		decText = strings.Join(fields[3:], ":")
	default:
		return types.Coordinate{}, fmt.Errorf("cannot parse coordinate %q: expected RA and Dec", s)
	}

	var c types.Coordinate
	if isSexagesimal(raText, "h:") {
		hours, err := parseSexagesimal(raText)
		if err != nil {
			return c, fmt.Errorf("parsing RA %q: %w", raText, err)
		}
		c.RA = hours * 15
	} else {
		deg, err := strconv.ParseFloat(raText, 64)
		if err != nil {
			return c, fmt.Errorf("parsing RA %q: %w", raText, err)
		}
		c.RA = deg
	}

	if isSexagesimal(decText, "d:°") {
		deg, err := parseSexagesimal(decText)
		if err != nil {
			return c, fmt.Errorf("parsing Dec %q: %w", decText, err)
		}
		c.Dec = deg
	} else {
		deg, err := strconv.ParseFloat(decText, 64)
		if err != nil {
			return c, fmt.Errorf("parsing Dec %q: %w", decText, err)
		}
		c.Dec = deg
	}

	if !finite(c.RA) || !finite(c.Dec) {
		return c, fmt.Errorf("cannot parse coordinate %q: values must be finite", s)
	}
	if c.RA < 0 || c.RA >= 360 {
		return c, fmt.Errorf("RA %.6f out of range [0, 360)", c.RA)
	}
	if c.Dec < -90 || c.Dec > 90 {
		return c, fmt.Errorf("Dec %.6f out of range [-90, 90]", c.Dec)
	}
	return c, nil
}

// LooksLikeCoordinate reports whether s parses as a position. Callers use
// it to decide between coordinates and object names.
func LooksLikeCoordinate(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func isSexagesimal(s, markers string) bool {
	return strings.ContainsAny(strings.ToLower(s), markers)
}

// parseSexagesimal converts "dd:mm:ss.s" (or with h/d/m/s letters) into a
// signed decimal value in the unit of the first component.
func parseSexagesimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")

	clean := strings.Map(func(r rune) rune {
		switch r {
		case 'h', 'H', 'd', 'D', 'm', 'M', 's', 'S', ':', '°', '\'', '"':
			return ' '
		}
		return r
	}, s)

	parts := strings.Fields(clean)
	if len(parts) == 0 || len(parts) > 3 {
		return 0, fmt.Errorf("expected 1 to 3 sexagesimal components, got %d", len(parts))
	}

	var value float64
	scale := 1.0
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || !finite(f) {
			return 0, fmt.Errorf("invalid component %q", p)
		}
		if f < 0 {
			return 0, fmt.Errorf("negative component %q", p)
		}
		if i > 0 && f >= 60 {
			return 0, fmt.Errorf("component %q must be below 60", p)
		}
		value += f / scale
		scale *= 60
	}

	if negative {
		value = -value
	}
	return value, nil
}

// angleUnits maps unit suffixes to degrees, longest suffixes first so that
// "arcmin" wins over "m"-style shorter matches.
var angleUnits = []struct {
	suffix string
	deg    float64
}{
	{"arcsec", 1.0 / 3600},
	{"arcmin", 1.0 / 60},
	{"degrees", 1},
	{"degree", 1},
	{"asec", 1.0 / 3600},
	{"amin", 1.0 / 60},
	{"deg", 1},
	{"mas", 1.0 / 3600000},
	{"d", 1},
	{"'", 1.0 / 60},
	{"\"", 1.0 / 3600},
}

// ParseAngle converts an angular size such as "2arcmin", "30arcsec",
// "0.1deg", "5'" or a bare number (degrees) into degrees.
func ParseAngle(s string) (float64, error) {
	text := strings.ToLower(strings.TrimSpace(s))
	if text == "" {
		return 0, fmt.Errorf("empty angle")
	}

	factor := 1.0
	for _, u := range angleUnits {
		if strings.HasSuffix(text, u.suffix) {
			text = strings.TrimSpace(strings.TrimSuffix(text, u.suffix))
			factor = u.deg
			break
		}
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || !finite(v) {
		return 0, fmt.Errorf("cannot parse angle %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("angle %q must not be negative", s)
	}
	return v * factor, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Separation returns the great-circle distance between a and b in degrees,
// using the Vincenty formula which is stable for both tiny and near-antipodal
// separations.
func Separation(a, b types.Coordinate) float64 {
	ra1, dec1 := radians(a.RA), radians(a.Dec)
	ra2, dec2 := radians(b.RA), radians(b.Dec)
	dra := ra2 - ra1

	sinD1, cosD1 := math.Sincos(dec1)
	sinD2, cosD2 := math.Sincos(dec2)
	sinDRA, cosDRA := math.Sincos(dra)

	num1 := cosD2 * sinDRA
	num2 := cosD1*sinD2 - sinD1*cosD2*cosDRA
	den := sinD1*sinD2 + cosD1*cosD2*cosDRA

	return degrees(math.Atan2(math.Hypot(num1, num2), den))
}

// Sexagesimal formats c as "hh:mm:ss.ss ±dd:mm:ss.s".
func Sexagesimal(c types.Coordinate) string {
	ra := math.Mod(c.RA, 360)
	if ra < 0 {
		ra += 360
	}
	// Work in whole centiseconds of time so rounding never yields 60.00.
	cs := int64(math.Round(ra / 15 * 3600 * 100))
	cs %= 24 * 3600 * 100
	h := cs / 360000
	m := (cs % 360000) / 6000
	sec := float64(cs%6000) / 100

	sign := "+"
	if c.Dec < 0 {
		sign = "-"
	}
	ds := int64(math.Round(math.Abs(c.Dec) * 3600 * 10))
	d := ds / 36000
	dm := (ds % 36000) / 600
	dsec := float64(ds%600) / 10

	return fmt.Sprintf("%02d:%02d:%05.2f %s%02d:%02d:%04.1f", h, m, sec, sign, d, dm, dsec)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
