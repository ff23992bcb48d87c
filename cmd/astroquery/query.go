// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/astroquery/internal/adql"
	"github.com/pdiddy/astroquery/internal/catalog"
	"github.com/pdiddy/astroquery/internal/coords"
	"github.com/pdiddy/astroquery/internal/tap"
	"github.com/pdiddy/astroquery/pkg/types"
)

// --- object ---

var objectCmd = &cobra.Command{
	Use:   "object NAME",
	Short: "Look up a named object",
	Long: `Object looks up an astronomical object by name. SIMBAD matches the name
against its identifier index; other services resolve the name through CDS
Sesame and run a small cone search around the position.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runObject,
}

func runObject(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	serviceName, _ := cmd.Flags().GetString("service")
	qc := queryConfig(cmd)

	rt := newEnv()
	defer rt.Close()

	svc, err := rt.service(serviceName)
	if err != nil {
		return err
	}
	t, err := svc.QueryObject(rt.ctx, name, qc)
	if err != nil {
		return err
	}

	query := "object " + name
	if svc.IdentQuery != nil {
		query = svc.IdentQuery(name)
	}
	rt.recordQuery(svc.Name(), query, t.Len())

	return writeResult(cmd, catalog.QueryParams{Service: svc.Name(), Kind: "object", Object: name}, qc, t)
}

// --- region ---

var regionCmd = &cobra.Command{
	Use:   "region COORD|NAME",
	Short: "Cone search around a position or named object",
	Long: `Region searches a cone around a position ("10.68 41.27",
"00h42m44.3s +41d16m09s") or an object name resolved through Sesame.

With more than one service (--service repeated, or --scs cone search URLs)
the services are queried concurrently and rows within the match radius of
each other are merged into one source list, nearest first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRegion,
}

func runRegion(cmd *cobra.Command, args []string) error {
	radiusText, _ := cmd.Flags().GetString("radius")
	radius, err := coords.ParseAngle(radiusText)
	if err != nil {
		return err
	}
	serviceNames, _ := cmd.Flags().GetStringSlice("service")
	coneURLs, _ := cmd.Flags().GetStringSlice("scs")
	if len(coneURLs) > 0 && !cmd.Flags().Changed("service") {
		serviceNames = nil
	}
	qc := queryConfig(cmd)
	if m, _ := cmd.Flags().GetString("match-radius"); m != "" {
		if qc.MatchRadius, err = coords.ParseAngle(m); err != nil {
			return err
		}
	}

	rt := newEnv()
	defer rt.Close()

	center, err := position(rt, strings.Join(args, " "))
	if err != nil {
		return err
	}
	region := catalog.Region{Center: center, Radius: radius}

	var services []catalog.Service
	for _, name := range serviceNames {
		svc, err := rt.service(name)
		if err != nil {
			return err
		}
		services = append(services, svc)
	}
	for i, u := range coneURLs {
		services = append(services, &catalog.ConeSearch{
			Label:      fmt.Sprintf("scs%d", i+1),
			URL:        u,
			Client:     rt.client,
			UserAgent:  cfg.HTTP.UserAgent,
			MaxRetries: cfg.HTTP.MaxRetries,
		})
	}

	params := catalog.QueryParams{Kind: "region", Center: &center, Radius: radius}
	if len(services) == 1 {
		svc := services[0]
		t, err := svc.QueryRegion(rt.ctx, region, qc)
		if err != nil {
			return err
		}
		if ts, ok := svc.(*catalog.TAPService); ok {
			rt.recordQuery(ts.Name(), ts.RegionQuery(region), t.Len())
		}
		params.Service = svc.Name()
		return writeResult(cmd, params, qc, t)
	}

	out, err := catalog.QueryRegionAll(rt.ctx, region, services, qc, os.Stderr)
	if err != nil {
		return err
	}
	for _, svc := range services {
		if ts, ok := svc.(*catalog.TAPService); ok && out.Tables[ts.Name()] != nil {
			rt.recordQuery(ts.Name(), ts.RegionQuery(region), out.Tables[ts.Name()].Len())
		}
	}

	format, _ := cmd.Flags().GetString("format")
	switch strings.ToLower(format) {
	case "", "table":
		catalog.FormatSources(out, os.Stdout)
		return nil
	case "json":
		return catalog.FormatSourcesJSON(out, os.Stdout)
	}
	return fmt.Errorf("merged results support --format table or json, not %q", format)
}

// position parses text as a coordinate, or resolves it as an object name.
func position(rt *env, text string) (types.Coordinate, error) {
	if coords.LooksLikeCoordinate(text) {
		return coords.Parse(text)
	}
	res, err := rt.resolver().Lookup(rt.ctx, text)
	if err != nil {
		return types.Coordinate{}, err
	}
	log.WithFields(log.Fields{"name": text, "resolver": res.Resolver, "position": res.Position}).Debug("Resolved name")
	return res.Position, nil
}

// --- criteria ---

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Select rows by column constraints",
	Long: `Criteria selects rows matching column constraints given as --filter
column=expression. Expressions accept comparisons ("<10", ">=0.5", "!=G"),
ranges ("10..12"), comma lists ("G,QSO") and wildcards ("NGC*").

Add --center and --radius to restrict the selection to a cone.`,
	Example: `  astroquery criteria --filter otype=G --filter "nbref>=100" --row-limit 20
  astroquery criteria -s vizier:I/239/hip_main --filter "Vmag<3" --columns HIP,Vmag`,
	RunE: runCriteria,
}

func runCriteria(cmd *cobra.Command, args []string) error {
	filterArgs, _ := cmd.Flags().GetStringArray("filter")
	filters, err := parseFilters(filterArgs)
	if err != nil {
		return err
	}
	columns, _ := cmd.Flags().GetStringSlice("columns")
	serviceName, _ := cmd.Flags().GetString("service")
	centerText, _ := cmd.Flags().GetString("center")
	radiusText, _ := cmd.Flags().GetString("radius")
	qc := queryConfig(cmd)

	rt := newEnv()
	defer rt.Close()

	criteria := catalog.Criteria{Filters: filters, Columns: columns}
	params := catalog.QueryParams{Kind: "criteria", Filters: filters}
	if centerText != "" {
		center, err := position(rt, centerText)
		if err != nil {
			return err
		}
		radius, err := coords.ParseAngle(radiusText)
		if err != nil {
			return err
		}
		criteria.Region = &catalog.Region{Center: center, Radius: radius}
		params.Center, params.Radius = &center, radius
	}

	svc, err := rt.service(serviceName)
	if err != nil {
		return err
	}
	query, err := svc.CriteriaQuery(criteria)
	if err != nil {
		return err
	}
	log.WithField("adql", query).Debug("Criteria query")

	t, err := svc.QueryCriteria(rt.ctx, criteria, qc)
	if err != nil {
		return err
	}
	rt.recordQuery(svc.Name(), query, t.Len())

	params.Service = svc.Name()
	params.ADQL = query
	return writeResult(cmd, params, qc, t)
}

// parseFilters turns "column=expression" arguments into a filter map.
func parseFilters(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(args))
	for _, a := range args {
		col, expr, err := adql.ParseAssignment(a)
		if err != nil {
			return nil, err
		}
		if _, dup := filters[col]; dup {
			return nil, fmt.Errorf("column %s is filtered twice; combine the constraints into one expression", col)
		}
		filters[col] = expr
	}
	return filters, nil
}

// --- tap ---

var tapCmd = &cobra.Command{
	Use:   "tap [ADQL]",
	Short: "Run a raw ADQL query against a TAP service",
	Long: `Tap sends an ADQL query to a TAP service. The query comes from the
argument, from --file, or from standard input when the argument is "-".

Use --service for a named service or --url for any TAP endpoint. With
--async the query runs as a UWS job; if --max-wait expires first the job id
is printed so results can be fetched later with "astroquery job results".`,
	Example: `  astroquery tap -s gaia --async "SELECT TOP 10 source_id, ra, dec FROM gaiadr3.gaia_source"
  astroquery tap --url https://archive.eso.org/tap_obs "SELECT TOP 5 * FROM ivoa.obscore"`,
	RunE: runTAP,
}

func runTAP(cmd *cobra.Command, args []string) error {
	query, err := readQuery(cmd, args, os.Stdin)
	if err != nil {
		return err
	}
	qc := queryConfig(cmd)

	rt := newEnv()
	defer rt.Close()

	client, err := tapClient(cmd, rt)
	if err != nil {
		return err
	}
	opts := tap.QueryOptions{
		MaxRec:   qc.RowLimit,
		Async:    qc.Async,
		MaxWait:  qc.MaxWait,
		NoCache:  cfg.Cache.Disabled,
		OnSubmit: rt.onSubmit,
	}

	t, err := client.Query(rt.ctx, query, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", client.Name, err)
	}
	rt.recordQuery(client.Name, query, t.Len())

	return writeResult(cmd, catalog.QueryParams{Service: client.Name, Kind: "adql", ADQL: query}, qc, t)
}

// tapClient returns the TAP client selected by --url or --service.
func tapClient(cmd *cobra.Command, rt *env) (*tap.Client, error) {
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		o := rt.clientOptions(rt.client)
		return &tap.Client{
			Name:            "tap",
			BaseURL:         u,
			HTTP:            o.HTTP,
			UserAgent:       o.UserAgent,
			MaxRetries:      o.MaxRetries,
			PollInterval:    o.PollInterval,
			MaxPollInterval: o.MaxPollInterval,
			Cache:           o.Cache,
		}, nil
	}
	name, _ := cmd.Flags().GetString("service")
	svc, err := rt.service(name)
	if err != nil {
		return nil, err
	}
	return svc.TAP, nil
}

// readQuery returns the ADQL text from --file, the argument, or stdin.
func readQuery(cmd *cobra.Command, args []string, stdin io.Reader) (string, error) {
	var text string
	file, _ := cmd.Flags().GetString("file")
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading query file: %w", err)
		}
		text = string(data)
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading query from stdin: %w", err)
		}
		text = string(data)
	default:
		text = strings.Join(args, " ")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no ADQL query given")
	}
	return text, nil
}

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Display a result saved with --save",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		qf, err := catalog.ReadQueryFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s %s query from %s\n", qf.Query.Service, qf.Query.Kind,
			qf.Summary.Timestamp.Local().Format("2006-01-02 15:04"))
		format, _ := cmd.Flags().GetString("format")
		t := qf.Table()
		catalog.ReportWarnings(os.Stderr, qf.Query.Service, t)
		return catalog.Format(format, t, os.Stdout)
	},
}

// writeResult prints t in the requested format and saves it when --save
// is set.
func writeResult(cmd *cobra.Command, params catalog.QueryParams, qc types.QueryConfig, t *types.Table) error {
	catalog.ReportWarnings(os.Stderr, params.Service, t)

	format, _ := cmd.Flags().GetString("format")
	if err := catalog.Format(format, t, os.Stdout); err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := catalog.WriteQueryFile(path, params, qc, t); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "saved %d rows to %s\n", t.Len(), path)
	}
	return nil
}

func init() {
	objectCmd.Flags().StringP("service", "s", "simbad", "service to query")
	addQueryFlags(objectCmd)

	regionCmd.Flags().StringSliceP("service", "s", []string{"simbad"}, "services to query (repeatable; simbad unless only --scs is given)")
	regionCmd.Flags().StringSlice("scs", nil, "Simple Cone Search URLs to include (repeatable)")
	regionCmd.Flags().StringP("radius", "r", "2arcmin", "cone radius (e.g. 30arcsec, 0.1deg)")
	regionCmd.Flags().String("match-radius", "", "merge radius across services (default 1arcsec)")
	addQueryFlags(regionCmd)

	criteriaCmd.Flags().StringArray("filter", nil, "column=expression constraint (repeatable)")
	criteriaCmd.Flags().StringSlice("columns", nil, "columns to return (default: service columns)")
	criteriaCmd.Flags().StringP("service", "s", "simbad", "service to query")
	criteriaCmd.Flags().String("center", "", "restrict to a cone around this position or object")
	criteriaCmd.Flags().StringP("radius", "r", "2arcmin", "cone radius when --center is set")
	addQueryFlags(criteriaCmd)

	tapCmd.Flags().StringP("service", "s", "simbad", "service to query")
	tapCmd.Flags().String("url", "", "TAP base URL (overrides --service)")
	tapCmd.Flags().String("file", "", "read the ADQL query from a file")
	addQueryFlags(tapCmd)

	showCmd.Flags().StringP("format", "f", "table", "output format: table, json, csv, votable")

	rootCmd.AddCommand(objectCmd, regionCmd, criteriaCmd, tapCmd, showCmd)
}
