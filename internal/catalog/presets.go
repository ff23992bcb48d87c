// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/astroquery/internal/adql"
	"github.com/pdiddy/astroquery/internal/tap"
	"github.com/pdiddy/astroquery/pkg/types"
)

// Base URLs for the built-in services. Declared as vars so tests can
// substitute httptest servers.
var (
	simbadTAP = "https://simbad.cds.unistra.fr/simbad/sim-tap"
	vizierTAP = "https://tapvizier.cds.unistra.fr/TAPVizieR/tap"
	gaiaTAP   = "https://gea.esac.esa.int/tap-server/tap"

	gaiaLogin  = "https://gea.esac.esa.int/tap-server/login"
	gaiaLogout = "https://gea.esac.esa.int/tap-server/logout"
)

// ClientOptions configures the TAP clients the constructors build.
type ClientOptions struct {
	HTTP            *http.Client
	UserAgent       string
	MaxRetries      int
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	Cache           tap.ResponseCache
	Resolver        Resolver
	OnSubmit        func(job *types.Job)
}

func (o ClientOptions) client(name, base string) *tap.Client {
	return &tap.Client{
		Name:            name,
		BaseURL:         base,
		HTTP:            o.HTTP,
		UserAgent:       o.UserAgent,
		MaxRetries:      o.MaxRetries,
		PollInterval:    o.PollInterval,
		MaxPollInterval: o.MaxPollInterval,
		Cache:           o.Cache,
	}
}

func (o ClientOptions) service(name, base string) *TAPService {
	return &TAPService{
		Label:    name,
		TAP:      o.client(name, base),
		Resolver: o.Resolver,
		OnSubmit: o.OnSubmit,
	}
}

// NewSimbad returns the SIMBAD service. Object queries match identifiers
// exactly through the ident table, so aliases such as "Andromeda Galaxy"
// find M 31 without a separate name resolution.
func NewSimbad(o ClientOptions) *TAPService {
	s := o.service("simbad", simbadTAP)
	s.Table = "basic"
	s.RAColumn, s.DecColumn, s.IDColumn = "ra", "dec", "main_id"
	s.Columns = []string{"main_id", "ra", "dec", "otype", "sp_type", "plx_value", "pmra", "pmdec", "rvz_redshift"}
	s.IdentQuery = func(name string) string {
		cols := make([]string, len(s.Columns))
		for i, c := range s.Columns {
			cols[i] = "basic." + c
		}
		return fmt.Sprintf("SELECT %s FROM basic JOIN ident ON ident.oidref = basic.oid WHERE ident.id = %s",
			strings.Join(cols, ", "), adql.Quote(name))
	}
	return s
}

// NewVizier returns a service for one VizieR catalogue table, e.g.
// "I/239/hip_main". VizieR positions are the J2000 columns RAJ2000/DEJ2000.
func NewVizier(catalog string, o ClientOptions) *TAPService {
	s := o.service("vizier", vizierTAP)
	s.Table = catalog
	s.RAColumn, s.DecColumn = "RAJ2000", "DEJ2000"
	return s
}

// NewGaia returns the ESA Gaia DR3 archive. Gaia queries run as async jobs.
func NewGaia(o ClientOptions) *TAPService {
	s := o.service("gaia", gaiaTAP)
	s.Table = "gaiadr3.gaia_source"
	s.RAColumn, s.DecColumn, s.IDColumn = "ra", "dec", "source_id"
	s.Columns = []string{"source_id", "ra", "dec", "parallax", "pmra", "pmdec", "phot_g_mean_mag", "bp_rp"}
	s.Async = true
	return s
}

// NewObsCore returns a service over the ivoa.obscore table of any TAP
// service publishing the ObsCore data model. Its results list data products.
func NewObsCore(name, base string, o ClientOptions) *TAPService {
	s := o.service(name, base)
	s.Table = "ivoa.obscore"
	s.RAColumn, s.DecColumn, s.IDColumn = "s_ra", "s_dec", "obs_publisher_did"
	s.Columns = []string{
		"obs_publisher_did", "obs_collection", "target_name", "dataproduct_type",
		"s_ra", "s_dec", "t_min", "em_min", "em_max", "access_format", "access_estsize", "access_url",
	}
	s.ProductColumn = "access_url"
	return s
}

// NewService builds a service from a config file entry.
func NewService(name string, sc types.ServiceConfig, o ClientOptions) (*TAPService, error) {
	if sc.URL == "" {
		return nil, fmt.Errorf("service %s: url is required", name)
	}
	if sc.Table == "ivoa.obscore" && sc.RAColumn == "" {
		return NewObsCore(name, sc.URL, o), nil
	}
	s := o.service(name, sc.URL)
	s.Table = sc.Table
	s.RAColumn = orDefault(sc.RAColumn, "ra")
	s.DecColumn = orDefault(sc.DecColumn, "dec")
	s.IDColumn = sc.IDColumn
	return s, nil
}

// LoginURLs returns the login and logout endpoints for services that
// support authenticated sessions.
func LoginURLs(name string, services map[string]types.ServiceConfig) (login, logout string, ok bool) {
	if sc, found := services[name]; found && sc.LoginURL != "" {
		return sc.LoginURL, sc.LogoutURL, true
	}
	if name == "gaia" {
		return gaiaLogin, gaiaLogout, true
	}
	return "", "", false
}

// ByName builds a service from its name: "simbad", "gaia", "vizier:<table>",
// or a key of services.
func ByName(name string, services map[string]types.ServiceConfig, o ClientOptions) (*TAPService, error) {
	if sc, ok := services[name]; ok {
		return NewService(name, sc, o)
	}
	switch {
	case name == "simbad":
		return NewSimbad(o), nil
	case name == "gaia":
		return NewGaia(o), nil
	case strings.HasPrefix(name, "vizier:"):
		table := strings.TrimPrefix(name, "vizier:")
		if table == "" {
			return nil, fmt.Errorf("vizier needs a catalogue, e.g. vizier:I/239/hip_main")
		}
		return NewVizier(table, o), nil
	}
	return nil, fmt.Errorf("unknown service %q (known: %s)", name, strings.Join(Known(services), ", "))
}

// Known lists the service names ByName accepts.
func Known(services map[string]types.ServiceConfig) []string {
	names := []string{"gaia", "simbad", "vizier:<table>"}
	for n := range services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
