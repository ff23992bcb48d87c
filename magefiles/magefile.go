// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for astroquery developer tooling.
package main

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir     = "bin"
	binName    = "astroquery"
	cmdPkg     = "./cmd/astroquery"
	configFile = "astroquery.yaml"
)

// sampleConfig is written by Init when no config file exists.
const sampleConfig = `# astroquery configuration. Every key can also be set through the
# environment, e.g. ASTROQUERY_QUERY_ROW_LIMIT=500.
http:
  timeout: 60s
  max_retries: 5
query:
  row_limit: 1000
  max_wait: 10m
download:
  dir: data
  delay: 1s
cache:
  ttl: 168h
# services:
#   mytap:
#     url: https://example.org/tap
#     table: cat.sources
#     ra_column: ra
#     dec_column: dec
`

// Init creates the download directory and a starter config file.
func Init() error {
	if err := os.MkdirAll("data", 0o755); err != nil {
		return fmt.Errorf("creating data: %w", err)
	}
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("%s exists, leaving it alone\n", configFile)
		return nil
	}
	if err := os.WriteFile(configFile, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", configFile, err)
	}
	fmt.Printf("Wrote %s\n", configFile)
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Vet runs go vet over the module.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the unit tests. Tests never reach the network; remote services
// are replaced by httptest servers.
func Test() error {
	mg.Deps(Vet)
	return sh.RunV("go", "test", "-count=1", "./...")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}

// Stats prints Go production and test line counts per top-level package.
func Stats() error {
	counts := map[string][2]int{}
	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if name := info.Name(); path != "." && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		for _, line := range bytes.Split(data, []byte("\n")) {
			if len(bytes.TrimSpace(line)) > 0 {
				n++
			}
		}
		pkg := filepath.Dir(path)
		c := counts[pkg]
		if strings.HasSuffix(path, "_test.go") {
			c[1] += n
		} else {
			c[0] += n
		}
		counts[pkg] = c
		return nil
	})
	if err != nil {
		return err
	}

	var prod, test int
	fmt.Printf("%-28s %8s %8s\n", "Package", "Code", "Tests")
	for _, pkg := range slices.Sorted(maps.Keys(counts)) {
		c := counts[pkg]
		fmt.Printf("%-28s %8d %8d\n", pkg, c[0], c[1])
		prod += c[0]
		test += c[1]
	}
	fmt.Printf("%-28s %8d %8d\n", "total", prod, test)
	return nil
}
