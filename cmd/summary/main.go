package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"portfoliograph/internal/config"
	"portfoliograph/internal/dataprocessing"
	"portfoliograph/internal/exporter"
	"portfoliograph/internal/files"
	"portfoliograph/internal/infrastructure"
	"portfoliograph/internal/services"
	"portfoliograph/pkg/contracts/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configFile string
	dataset    string
	minCorr    string
	exportDir  string
	bom        bool
}

// run builds one graph and prints its summary. It returns the process exit
// code: 0 on success, 1 when the build or export fails and 2 for bad flags.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configFile, "config", "", "config file (defaults to PGRAPH_CONFIG, config.yaml, configs/config.yaml)")
	fs.StringVar(&opts.dataset, "dataset", "", "dataset version (defaults to the active version)")
	fs.StringVar(&opts.minCorr, "min-corr", "", "correlation threshold (defaults to graph.default_min_corr)")
	fs.StringVar(&opts.exportDir, "export", "", "write nodes.csv, edges.csv and graph.xlsx to this directory")
	fs.BoolVar(&opts.bom, "bom", false, "prefix exported CSV files with a UTF-8 BOM")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFrom(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	threshold := cfg.Graph.DefaultMinCorr
	if opts.minCorr != "" {
		threshold, err = strconv.ParseFloat(opts.minCorr, 64)
		if err != nil || threshold < 0 {
			fmt.Fprintf(stderr, "invalid -min-corr %q: must be a number >= 0\n", opts.minCorr)
			return 2
		}
	}

	logger := infrastructure.NewLoggerWithWriter(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	printer := exporter.NewSummaryPrinter(stdout)

	result, err := build(cfg, opts.dataset, threshold)
	if err != nil {
		printer.PrintError(datasetLabel(opts.dataset, result), err)
		return 1
	}

	info := exporter.SnapshotInfo{Dataset: result.dataset, BuiltAt: result.builtAt, MinCorr: threshold}
	if err := printer.Print(result.bundle, info); err != nil {
		fmt.Fprintf(stderr, "failed to print summary: %v\n", err)
		return 1
	}

	if opts.exportDir != "" {
		written, err := exporter.NewGraphExporter(opts.exportDir, logger, exporter.WithBOM(opts.bom)).
			Export(result.bundle, info)
		if err != nil {
			fmt.Fprintf(stderr, "export failed: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout)
		for _, p := range written {
			fmt.Fprintf(stdout, "wrote %s\n", p)
		}
	}
	return 0
}

type buildResult struct {
	dataset string
	builtAt time.Time
	bundle  *domain.GraphBundle
}

func datasetLabel(flagValue string, result *buildResult) string {
	if result != nil && result.dataset != "" {
		return result.dataset
	}
	if flagValue != "" {
		return flagValue
	}
	return "active dataset"
}

// build resolves the dataset from the registry and builds it without
// touching the registry's active version.
func build(cfg *config.Config, dataset string, threshold float64) (*buildResult, error) {
	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, err
	}
	svcCfg := services.GraphServiceConfigFrom(cfg, paths)

	reg, err := files.LoadRegistry(svcCfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	if dataset == "" {
		if dataset, err = reg.Active(); err != nil {
			return nil, err
		}
	}
	result := &buildResult{dataset: dataset}

	tables, err := reg.ResolvePaths(svcCfg.DataDir, dataset, svcCfg.Files)
	if err != nil {
		return result, err
	}

	ctx := context.Background()
	if svcCfg.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svcCfg.BuildTimeout)
		defer cancel()
	}

	bundle, err := dataprocessing.BuildGraphContext(ctx, tables.Holdings, tables.Correlations, threshold)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return result, fmt.Errorf("build exceeded %s: %w", svcCfg.BuildTimeout, err)
		}
		return result, err
	}
	result.bundle = bundle
	result.builtAt = time.Now().UTC()
	return result, nil
}
