// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/astroquery/internal/catalog"
	"github.com/pdiddy/astroquery/internal/coords"
	"github.com/pdiddy/astroquery/internal/tap"
)

var tablesCmd = &cobra.Command{
	Use:   "tables [MATCH]",
	Short: "List the tables a TAP service publishes",
	Long: `Tables reads the service's VOSI table set. With MATCH only tables whose
name contains it are listed; --columns also lists each table's columns.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showColumns, _ := cmd.Flags().GetBool("columns")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		var match string
		if len(args) == 1 {
			match = args[0]
		}

		rt := newEnv()
		defer rt.Close()
		client, err := tapClient(cmd, rt)
		if err != nil {
			return err
		}
		tables, err := client.Tables(rt.ctx, match)
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tables)
		}
		formatTables(tables, showColumns, os.Stdout)
		return nil
	},
}

func formatTables(tables []tap.TableInfo, showColumns bool, w io.Writer) {
	if len(tables) == 0 {
		fmt.Fprintln(w, "No tables found.")
		return
	}
	for _, t := range tables {
		desc := catalog.Truncate(strings.Join(strings.Fields(t.Description), " "), 70)
		fmt.Fprintf(w, "%-40s  %s\n", t.Name, desc)
		if !showColumns {
			continue
		}
		for _, c := range t.Columns {
			fmt.Fprintf(w, "    %-30s  %-10s  %-8s  %s\n", c.Name, c.Datatype, c.Unit, c.UCD)
		}
	}
	fmt.Fprintf(w, "\n%d tables\n", len(tables))
}

var resolveCmd = &cobra.Command{
	Use:   "resolve NAME",
	Short: "Resolve an object name to coordinates through CDS Sesame",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := newEnv()
		defer rt.Close()

		res, err := rt.resolver().Lookup(rt.ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Printf("Name:     %s\n", res.Name)
		fmt.Printf("Position: %.6f %+.6f  (%s)\n", res.Position.RA, res.Position.Dec, coords.Sexagesimal(res.Position))
		if res.ObjectType != "" {
			fmt.Printf("Type:     %s\n", res.ObjectType)
		}
		fmt.Printf("Resolver: %s\n", res.Resolver)
		return nil
	},
}

func init() {
	tablesCmd.Flags().StringP("service", "s", "simbad", "service to describe")
	tablesCmd.Flags().String("url", "", "TAP base URL (overrides --service)")
	tablesCmd.Flags().Bool("columns", false, "list the columns of each table")
	tablesCmd.Flags().Bool("json", false, "output as JSON")

	resolveCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(tablesCmd, resolveCmd)
}
