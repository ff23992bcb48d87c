// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/astroquery/internal/cache"
	"github.com/pdiddy/astroquery/internal/catalog"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local cache",
	Long: `Cache manages the local SQLite database that holds cached service
responses, the registry of asynchronous jobs, and the query history.`,
}

// openCache opens the cache store for maintenance commands.
func openCache() (*cache.Store, error) {
	return cache.Open(cfg.Cache)
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Database:         %s\n", store.Path())
		fmt.Print(st.String())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached responses, finished jobs and history",
	Long: `Clear removes cached responses, finished jobs and history entries. With
--older-than only entries older than the given age (72h, 30d) are removed.
Jobs still pending or running are never removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var olderThan time.Duration
		if age, _ := cmd.Flags().GetString("older-than"); age != "" {
			d, err := parseAge(age)
			if err != nil {
				return err
			}
			olderThan = d
		}
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		sum, err := store.Clear(cmd.Context(), olderThan)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d responses, %d jobs, %d history entries\n", sum.Responses, sum.Jobs, sum.History)
		return nil
	},
}

var cacheHistoryCmd = &cobra.Command{
	Use:   "history [TEXT]",
	Short: "Search the query history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.SearchHistory(cmd.Context(), strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		formatHistory(entries, os.Stdout)
		return nil
	},
}

func formatHistory(entries []cache.HistoryEntry, w io.Writer) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No queries found.")
		return
	}
	fmt.Fprintf(w, "%-16s  %-10s  %6s  %s\n", "When", "Service", "Rows", "Query")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, e := range entries {
		query := catalog.Truncate(strings.Join(strings.Fields(e.Query), " "), 60)
		fmt.Fprintf(w, "%-16s  %-10s  %6d  %s\n", humanize.Time(e.CreatedAt), e.Service, e.Rows, query)
	}
	fmt.Fprintf(w, "\n%d queries\n", len(entries))
}

var cacheExportCmd = &cobra.Command{
	Use:   "export [TEXT]",
	Short: "Export the query history to YAML or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		text := strings.Join(args, " ")
		var path string
		switch format {
		case "yaml", "":
			path, err = store.ExportYAML(cmd.Context(), output, text)
		case "json":
			path, err = store.ExportJSON(cmd.Context(), output, text)
		default:
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().String("older-than", "", "only remove entries older than this age (e.g. 72h, 30d)")
	cacheHistoryCmd.Flags().Int("limit", 20, "maximum entries to show")
	cacheHistoryCmd.Flags().Bool("json", false, "output as JSON")
	cacheExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	cacheExportCmd.Flags().StringP("output", "o", "", "output file (default: history.yaml in the cache directory)")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheHistoryCmd, cacheExportCmd)
	rootCmd.AddCommand(cacheCmd)
}

// parseAge accepts Go durations plus a "d" suffix for days.
func parseAge(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil || days < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(s)
}
