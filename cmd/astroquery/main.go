// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the astroquery CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/astroquery/internal/secrets"
	"github.com/pdiddy/astroquery/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// Verbose enables debug logging; Quiet limits logging to errors.
	Verbose bool
	Quiet   bool

	// loadedSecrets holds credentials loaded from the secrets directory at
	// startup.
	loadedSecrets map[string]string

	// cfg is the merged configuration (defaults, config file, environment
	// and flags).
	cfg types.Config
)

// rootCmd is the base command for the astroquery CLI.
var rootCmd = &cobra.Command{
	Use:   "astroquery",
	Short: "Query astronomical archives from the command line",
	Long: `astroquery queries astronomical archives (SIMBAD, VizieR, the Gaia archive,
and any TAP or Simple Cone Search service) and prints the result tables.

Object, region and criteria queries are translated to ADQL and sent to the
service's TAP endpoint; long queries run as asynchronous jobs that can be
resumed later by job id. Responses are cached locally in SQLite and data
products can be downloaded into a per-service directory tree.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogging()

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.WithField("keys", keys).Debug("Loaded secrets")
		}

		c, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		applyFlags(cmd, &c)
		cfg = c
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./astroquery.yaml or ~/.config/astroquery/astroquery.yaml)")
	pf.BoolVarP(&Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&Quiet, "quiet", "q", false, "only log errors")
	pf.String("secrets-dir", defaultSecretsDir, "directory holding stored credentials")
	pf.String("cache-dir", "", "directory for the response cache (default: user cache dir)")
	pf.Bool("no-cache", false, "bypass the local response cache")
	pf.Duration("timeout", 0, "HTTP request timeout (default 60s)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("astroquery")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "astroquery"))
		}
	}

	viper.SetEnvPrefix("ASTROQUERY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Debug("Using config file")
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "warning: reading config %s: %v\n", cfgFile, err)
	}
}

func initLogging() {
	level := log.InfoLevel
	if Verbose {
		level = log.DebugLevel
	}
	if Quiet {
		level = log.ErrorLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
