// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/astroquery/internal/catalog"
	"github.com/pdiddy/astroquery/internal/download"
	"github.com/pdiddy/astroquery/pkg/types"
)

const defaultURLColumn = "access_url"

var downloadCmd = &cobra.Command{
	Use:   "download FILE|ADQL",
	Short: "Download the data products listed by a query",
	Long: `Download retrieves the files referenced by a result table, either a
result saved with --save or an ADQL query run against --service. Product
URLs are read from --url-column (access_url for ObsCore services).

Files are written to {dir}/{service}/ and files already present are
skipped, so an interrupted download can simply be re-run. Proprietary
products need a stored login (see "astroquery login").`,
	Example: `  astroquery tap -s eso "SELECT TOP 5 * FROM ivoa.obscore WHERE target_name='NGC 253'" --save ngc253.yaml
  astroquery download -s eso ngc253.yaml`,
	RunE: runDownload,
}

func runDownload(cmd *cobra.Command, args []string) error {
	serviceName, _ := cmd.Flags().GetString("service")
	urlColumn, _ := cmd.Flags().GetString("url-column")

	dc := cfg.Download
	if cmd.Flags().Changed("dir") {
		dc.Dir, _ = cmd.Flags().GetString("dir")
	}
	if cmd.Flags().Changed("delay") {
		dc.Delay, _ = cmd.Flags().GetDuration("delay")
	}
	if overwrite, _ := cmd.Flags().GetBool("overwrite"); overwrite {
		dc.Overwrite = true
	}

	rt := newEnv()
	defer rt.Close()

	svc, err := rt.service(serviceName)
	if err != nil {
		return err
	}
	if urlColumn == "" {
		urlColumn = orName(svc.ProductColumn, defaultURLColumn)
	}

	t, err := productTable(cmd, rt, svc, args)
	if err != nil {
		return err
	}
	products, err := catalog.Products(t, svc.IDColumn, urlColumn, svc.Name())
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Println("No data products to download.")
		return nil
	}
	fmt.Printf("Downloading %d products to %s\n", len(products), dc.Dir)

	result, err := download.FetchBatch(rt.ctx, svc.TAP.HTTP, products, dc, os.Stdout)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d product(s) failed to download", result.Failed)
	}
	return nil
}

// productTable loads the saved result named by args[0], or runs args as
// ADQL against svc.
func productTable(cmd *cobra.Command, rt *env, svc *catalog.TAPService, args []string) (*types.Table, error) {
	if len(args) == 1 {
		if _, err := os.Stat(args[0]); err == nil {
			qf, err := catalog.ReadQueryFile(args[0])
			if err != nil {
				return nil, err
			}
			return qf.Table(), nil
		}
	}
	query, err := readQuery(cmd, args, os.Stdin)
	if err != nil {
		return nil, err
	}
	t, err := svc.Run(rt.ctx, query, cfg.Query)
	if err != nil {
		return nil, err
	}
	rt.recordQuery(svc.Name(), query, t.Len())
	catalog.ReportWarnings(os.Stderr, svc.Name(), t)
	return t, nil
}

func init() {
	downloadCmd.Flags().StringP("service", "s", "", "service the products come from (required)")
	downloadCmd.Flags().String("url-column", "", "column holding product URLs (default access_url)")
	downloadCmd.Flags().String("dir", "", "download directory (default from config, ./data)")
	downloadCmd.Flags().Duration("delay", 0, "delay between consecutive downloads (default 1s)")
	downloadCmd.Flags().Bool("overwrite", false, "re-download files that already exist")
	downloadCmd.Flags().String("file", "", "read the ADQL query from a file")
	downloadCmd.MarkFlagRequired("service")

	rootCmd.AddCommand(downloadCmd)
}
