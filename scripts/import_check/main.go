package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/hr-admin-api/internal/importer"
)

type check struct {
	Path     string
	Rows     int
	Errors   []string
	Warnings []string
	Rejected bool
	Error    error
	Duration time.Duration
}

func main() {
	var (
		force   bool
		pattern string
		verbose bool
	)

	flag.BoolVar(&force, "force", false, "Accept warnings, as forceUpload does")
	flag.StringVar(&pattern, "glob", "", "Glob of CSV files to check in addition to positional arguments")
	flag.BoolVar(&verbose, "v", false, "Print every error and warning line")
	flag.Parse()

	files, err := collectFiles(pattern, flag.Args())
	if err != nil {
		log.Fatalf("failed to collect files: %v", err)
	}

	catalog := importer.NewCatalog()
	validator := importer.NewBatchValidator(catalog)

	var (
		checks   []check
		rejected int
		warned   int
	)
	for _, path := range files {
		res := checkFile(catalog, validator, path, force)
		switch {
		case res.Error != nil, res.Rejected:
			rejected++
		case len(res.Warnings) > 0:
			warned++
		}
		checks = append(checks, res)
	}

	printReport(checks, verbose)

	fmt.Printf("Rejected files: %d, Files with accepted warnings: %d\n", rejected, warned)
	if rejected > 0 {
		os.Exit(1)
	}
}

func collectFiles(pattern string, args []string) ([]string, error) {
	files := append([]string(nil), args...)
	if pattern != "" {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files given")
	}
	return files, nil
}

func checkFile(catalog *importer.Catalog, validator *importer.BatchValidator, path string, force bool) (res check) {
	res.Path = path
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	f, err := os.Open(path)
	if err != nil {
		res.Error = err
		return res
	}
	defer f.Close()

	sheet, err := catalog.ParseCSV(f)
	if err != nil {
		res.Error = fmt.Errorf("parse: %w", err)
		return res
	}
	res.Rows = len(sheet.Rows)
	if res.Rows == 0 {
		res.Error = fmt.Errorf("no data rows")
		return res
	}

	batch := validator.Validate(sheet.Rows, force)
	res.Errors = batch.Errors
	res.Warnings = batch.Warnings
	res.Rejected = batch.Rejected()
	return res
}

func printReport(results []check, verbose bool) {
	fmt.Println("Import Check Report")
	fmt.Println("===================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.Rejected {
			status = "REJECTED"
		} else if len(res.Warnings) > 0 {
			status = "WARN"
		}
		fmt.Printf("[%s] %s (%d rows, %s)\n", status, res.Path, res.Rows, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Errors: %d | Warnings: %d\n", len(res.Errors), len(res.Warnings))
		if verbose {
			for _, line := range res.Errors {
				fmt.Printf("  E %s\n", line)
			}
			for _, line := range res.Warnings {
				fmt.Printf("  W %s\n", strings.TrimSpace(line))
			}
		}
	}
}
