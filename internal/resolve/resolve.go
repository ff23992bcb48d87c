// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns object names ("M31", "NGC 1068", "Betelgeuse") into
// ICRS positions using the CDS Sesame name resolver.
package resolve

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/astroquery/internal/httputil"
	"github.com/pdiddy/astroquery/pkg/types"
)

// ErrNotFound is returned when no resolver knows the name.
var ErrNotFound = errors.New("object name not resolved")

// sesameBase is the Sesame endpoint. Declared as a var so tests can
// substitute an httptest server.
var sesameBase = "https://cds.unistra.fr/cgi-bin/nph-sesame"

// Resolution is a resolved object.
type Resolution struct {
	Query      string
	Name       string // the resolver's preferred designation
	Position   types.Coordinate
	ObjectType string
	Resolver   string
}

// Sesame queries SIMBAD, NED and VizieR through CDS Sesame, in that order,
// and takes the first answer with a position.
type Sesame struct {
	BaseURL    string
	Client     *http.Client
	UserAgent  string
	MaxRetries int
}

type sesameDoc struct {
	Targets []struct {
		Name      string `xml:"name"`
		Resolvers []struct {
			Name  string `xml:"name,attr"`
			OName string `xml:"oname"`
			RA    string `xml:"jradeg"`
			Dec   string `xml:"jdedeg"`
			OType string `xml:"otype"`
		} `xml:"Resolver"`
	} `xml:"Target"`
}

// Resolve returns the ICRS position of name.
func (s *Sesame) Resolve(ctx context.Context, name string) (types.Coordinate, error) {
	r, err := s.Lookup(ctx, name)
	if err != nil {
		return types.Coordinate{}, err
	}
	return r.Position, nil
}

// Lookup resolves name and reports which resolver answered.
func (s *Sesame) Lookup(ctx context.Context, name string) (*Resolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("resolving: empty object name")
	}

	base := s.BaseURL
	if base == "" {
		base = sesameBase
	}
	target := strings.TrimRight(base, "/") + "/-ox/SNV?" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Sesame request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, s.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("Sesame request for %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Sesame returned HTTP %d for %q: %s", resp.StatusCode, name,
			httputil.ReadErrorBody(resp.Body, 512))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading Sesame response: %w", err)
	}

	var doc sesameDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parsing Sesame response for %q: %w", name, err)
	}

	for _, t := range doc.Targets {
		for _, r := range t.Resolvers {
			ra, err1 := strconv.ParseFloat(strings.TrimSpace(r.RA), 64)
			dec, err2 := strconv.ParseFloat(strings.TrimSpace(r.Dec), 64)
			if err1 != nil || err2 != nil {
				continue
			}
			res := &Resolution{
				Query:      name,
				Name:       strings.TrimSpace(r.OName),
				Position:   types.Coordinate{RA: ra, Dec: dec},
				ObjectType: strings.TrimSpace(r.OType),
				Resolver:   resolverLabel(r.Name),
			}
			if res.Name == "" {
				res.Name = name
			}
			log.WithFields(log.Fields{
				"name":     name,
				"resolver": res.Resolver,
				"position": res.Position.String(),
			}).Debug("Resolved object name")
			return res, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// resolverLabel shortens "S=Simbad (via url)" to "Simbad".
func resolverLabel(attr string) string {
	label := attr
	if _, after, ok := strings.Cut(label, "="); ok {
		label = after
	}
	if before, _, ok := strings.Cut(label, " "); ok {
		label = before
	}
	return label
}
