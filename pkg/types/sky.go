// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Coordinate is an ICRS sky position in degrees.
type Coordinate struct {
	RA  float64 `json:"ra" yaml:"ra"`
	Dec float64 `json:"dec" yaml:"dec"`
}

// String formats the coordinate as decimal degrees.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f %+.6f", c.RA, c.Dec)
}

// Source is a result row reduced to a position, used when merging results
// from several services.
type Source struct {
	// Service is the service whose row supplied Position.
	Service string `json:"service" yaml:"service"`

	// ID is the main identifier reported by the first service that found it.
	ID string `json:"id" yaml:"id"`

	// Position is the source position from the first matching row.
	Position Coordinate `json:"position" yaml:"position"`

	// Separation is the distance in degrees from the query center.
	Separation float64 `json:"separation" yaml:"separation"`

	// Services lists every service that returned this source.
	Services []string `json:"services" yaml:"services"`
}
