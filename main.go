package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"property-underwriter/api"
	"property-underwriter/config"
	"property-underwriter/llm"
	"property-underwriter/models"
	"property-underwriter/services"
	"property-underwriter/storage"
	"property-underwriter/utils"
)

const usage = `Usage:
  underwriter analyze [flags] [file.csv|file.xlsx ...]
  underwriter serve

Run "underwriter analyze -h" for the analyze flags.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := utils.NewLoggerWith(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if cfg.File != "" {
		logger.Info("[config] Loaded %s", cfg.File)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	switch os.Args[1] {
	case "analyze":
		if err := runAnalyze(ctx, os.Args[2:], cfg, deps); err != nil {
			logger.Error("%v", err)
			cleanup()
			os.Exit(1)
		}
	case "serve":
		if err := runServe(ctx, cfg, deps); err != nil {
			logger.Error("Server stopped: %v", err)
			cleanup()
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

// buildDeps wires the pipeline and its optional collaborators from cfg.
func buildDeps(ctx context.Context, cfg *config.Config, logger *utils.Logger) (api.Deps, func(), error) {
	normalizer := services.NewNormalizer(logger, cfg.Analysis.CoerceThreshold, cfg.Columns.Aliases)
	deps := api.Deps{
		Logger:   logger,
		Analyzer: services.NewAnalyzer(logger, normalizer, cfg.Analysis.PreviewRows),
		Charts:   services.NewChartRenderer(logger, cfg.Chart.Width, cfg.Chart.Height, cfg.Chart.PieMaxSlices),
		PDF:      storage.LookupPDFRenderer(cfg.Export.ChromeBin),
	}
	if deps.PDF == nil {
		logger.Warn("[export] No Chromium found, PDF export disabled")
	}

	provider, err := llm.New(cfg.Insights.Provider, cfg.InsightAPIKey(), llm.Options{
		Model:       cfg.Insights.Model,
		MaxTokens:   cfg.Insights.MaxTokens,
		Temperature: cfg.Insights.Temperature,
	})
	switch {
	case errors.Is(err, models.ErrInsightsUnavailable):
		logger.Warn("[insights] No API key for %s, insights disabled", cfg.Insights.Provider)
	case err != nil:
		return api.Deps{}, nil, err
	default:
		logger.Info("[insights] Using %s", provider.Name())
	}
	deps.Insights = services.NewInsightGenerator(logger, provider, cfg.Insights.Timeout, cfg.Insights.MaxRetries)

	cleanup := func() {}
	if cfg.Archive.Driver != "" {
		archive, err := storage.OpenArchive(ctx, cfg.Archive.Driver, cfg.Archive.DSN, logger)
		if err != nil {
			return api.Deps{}, nil, fmt.Errorf("open archive: %w", err)
		}
		deps.Archive = archive
		var once sync.Once
		cleanup = func() { once.Do(func() { archive.Close() }) }
	}
	return deps, cleanup, nil
}

func runServe(ctx context.Context, cfg *config.Config, deps api.Deps) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(cfg, deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("=== Underwriting API listening on %s ===", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	deps.Logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type analyzeOptions struct {
	manual      models.InputRecord
	chartKind   services.ChartKind
	chartSet    string
	insight     services.InsightKind
	withInsight bool
	formats     []string
	outDir      string
}

func parseAnalyzeFlags(args []string, cfg *config.Config) (*analyzeOptions, []string, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fieldsPath := fs.String("fields", "", "JSON file with manual inputs, keyed by field name")
	chart := fs.String("chart", "", "Render a chart: bar, pie or line")
	chartSet := fs.String("chart-metrics", services.MetricSetCore, "Metrics to plot: core or all")
	insight := fs.String("insight", "", "Generate insights: general, improvement, risk or investment")
	export := fs.String("export", "", "Comma-separated export formats: csv, xlsx, pdf")
	outDir := fs.String("out", cfg.Export.OutputDir, "Directory for exports and charts")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	opts := &analyzeOptions{chartSet: *chartSet, outDir: *outDir}
	if _, err := services.ChartMetrics(models.MetricsResult{}, opts.chartSet); err != nil {
		return nil, nil, err
	}
	if *fieldsPath != "" {
		rec, unknown, err := loadManualFields(*fieldsPath)
		if err != nil {
			return nil, nil, err
		}
		if len(unknown) > 0 {
			fmt.Fprintf(os.Stderr, "Ignoring unknown fields: %s\n", strings.Join(unknown, ", "))
		}
		opts.manual = rec
	}
	if err := opts.manual.CheckRanges(); err != nil {
		return nil, nil, err
	}
	if *chart != "" {
		k, err := services.ParseChartKind(*chart)
		if err != nil {
			return nil, nil, err
		}
		opts.chartKind = k
	}
	if *insight != "" {
		k, err := services.ParseInsightKind(*insight)
		if err != nil {
			return nil, nil, err
		}
		opts.insight, opts.withInsight = k, true
	}
	for _, f := range strings.Split(*export, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f == "" {
			continue
		}
		if !slices.Contains(storage.ExportFormats, f) {
			return nil, nil, &models.InvalidInputError{Field: "export", Reason: fmt.Sprintf("unsupported format %q", f)}
		}
		opts.formats = append(opts.formats, f)
	}
	return opts, fs.Args(), nil
}

func loadManualFields(path string) (models.InputRecord, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.InputRecord{}, nil, fmt.Errorf("read fields: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.InputRecord{}, nil, fmt.Errorf("parse fields %s: %w", path, err)
	}
	return models.RecordFromMap(raw)
}

// runAnalyze runs the pipeline for every file (or once on the manual inputs
// alone), prints the reports in argument order and writes the exports.
func runAnalyze(ctx context.Context, args []string, cfg *config.Config, deps api.Deps) error {
	opts, files, err := parseAnalyzeFlags(args, cfg)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger := deps.Logger

	var inputs []string
	seen := utils.NewPathSet()
	for _, f := range files {
		if !seen.Add(f) {
			logger.Warn("Skipping duplicate input %s", f)
			continue
		}
		inputs = append(inputs, f)
	}
	if len(inputs) == 0 {
		inputs = []string{""}
	}

	logger.Info("=== Analyzing %d input(s) | concurrency: %d ===", len(inputs), cfg.Analysis.MaxConcurrency)

	reports := make([]*models.Report, len(inputs))
	errs := make([]error, len(inputs))
	pool := utils.NewWorkerPool(cfg.Analysis.MaxConcurrency, 0)
	for i, path := range inputs {
		i, path := i, path
		pool.Submit(func() {
			reports[i], errs[i] = analyzeOne(ctx, path, opts, deps)
		})
	}
	pool.Wait()

	failed := 0
	for i, rep := range reports {
		if errs[i] != nil {
			failed++
			logger.Error("Analysis of %s failed: %v", displayName(inputs[i]), errs[i])
			continue
		}
		services.PrintReport(os.Stdout, rep.Analysis, rep.Insight)
	}

	if err := writeExports(ctx, reports, opts, cfg, deps); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(inputs))
	}
	return nil
}

func analyzeOne(ctx context.Context, path string, opts *analyzeOptions, deps api.Deps) (*models.Report, error) {
	var (
		a   *models.Analysis
		err error
	)
	if path == "" {
		a, err = deps.Analyzer.Analyze(nil, opts.manual)
	} else {
		a, err = deps.Analyzer.AnalyzeFile(path, opts.manual)
	}
	if err != nil {
		return nil, err
	}
	rep := &models.Report{Analysis: a}

	if opts.chartKind != "" {
		metrics, err := services.ChartMetrics(a.Metrics, opts.chartSet)
		if err != nil {
			return nil, err
		}
		img, err := deps.Charts.Render(metrics, opts.chartKind)
		switch {
		case services.IsChartWarning(err):
			deps.Logger.Warn("[charts] %s: %v", a.Source, err)
		case err != nil:
			return nil, err
		default:
			rep.Chart, rep.ChartKind = img, string(opts.chartKind)
			if err := saveChart(opts.outDir, a, opts.chartKind, img); err != nil {
				deps.Logger.Warn("[charts] %v", err)
			}
		}
	}

	if opts.withInsight {
		text, err := deps.Insights.Generate(ctx, a.Metrics, opts.insight)
		if err != nil {
			// Insights are optional; the metrics still stand.
			deps.Logger.Warn("[insights] %s: %v", a.Source, err)
		} else {
			rep.Insight, rep.InsightKind = text, string(opts.insight)
		}
	}
	return rep, nil
}

func saveChart(dir string, a *models.Analysis, kind services.ChartKind, img []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(a.Source), filepath.Ext(a.Source))
	path := filepath.Join(dir, fmt.Sprintf("%s-%s-%s.png", stem, a.ID[:min(8, len(a.ID))], kind))
	if err := os.WriteFile(path, img, 0644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

// writeExports fans every successful report out to the requested file
// formats and the archive.
func writeExports(ctx context.Context, reports []*models.Report, opts *analyzeOptions, cfg *config.Config, deps api.Deps) error {
	var writers []storage.ReportWriter
	for _, f := range opts.formats {
		exporter, err := storage.NewExporter(f, deps.PDF)
		if err != nil {
			return err
		}
		w, err := storage.NewFileWriter(opts.outDir, exporter, deps.Logger)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	}
	if deps.Archive != nil {
		writers = append(writers, deps.Archive)
	}
	if len(writers) == 0 {
		return nil
	}

	pool := utils.NewWorkerPool(cfg.Analysis.MaxConcurrency, 0)
	var (
		mu     sync.Mutex
		failed int
	)
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		for _, w := range writers {
			rep, w := rep, w
			pool.Submit(func() {
				if err := w.Write(ctx, rep); err != nil {
					deps.Logger.Error("[export] %s: %v", rep.Analysis.Source, err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			})
		}
	}
	pool.Wait()
	if failed > 0 {
		return fmt.Errorf("%d export(s) failed", failed)
	}
	return nil
}

func displayName(path string) string {
	if path == "" {
		return models.ManualSource + " inputs"
	}
	return path
}
