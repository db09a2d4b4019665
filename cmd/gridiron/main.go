package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/config"
	"github.com/fortuna/gridiron/internal/pipeline"
	"github.com/fortuna/gridiron/pkg/logger"
)

const (
	appName    = "gridiron"
	appVersion = "1.0.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one export and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	start := time.Now()

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath  = fs.String("config", os.Getenv("GRIDIRON_CONFIG"), "YAML config file")
		startSeason = fs.Int("start", 0, "First season to fetch")
		endSeason   = fs.Int("end", 0, "Season to stop before (exclusive)")
		firstWeek   = fs.Int("first-week", 0, "First week to fetch team stats for")
		endWeek     = fs.Int("end-week", 0, "Week to stop before (exclusive)")
		outPrefix   = fs.String("out", "", "Output path prefix for the CSV files")
		apiURL      = fs.String("api-url", "", "CollegeFootballData API base URL")
		apiKey      = fs.String("api-key", "", "CollegeFootballData API key")
		concurrency = fs.Int("concurrency", 0, "Fetch units in flight at once")
		logLevel    = fs.String("log-level", "", "Log level: debug, info, warn, error")
		collapse    = fs.Bool("collapse-home-non-fbs", false, "Also replace non-FBS home team names")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := logger.InitWithWriter(stderr); err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 1
	}
	log := logger.Named(appName)

	cfg, err := config.LoadFrom(ctx, *configPath)
	if err != nil {
		log.Error(ctx, "load config", logger.Error(err))
		return 1
	}

	// Only flags given on the command line override the loaded config.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start":
			cfg.StartSeason = *startSeason
		case "end":
			cfg.EndSeason = *endSeason
		case "first-week":
			cfg.FirstWeek = *firstWeek
		case "end-week":
			cfg.EndWeek = *endWeek
		case "out":
			cfg.OutputPrefix = *outPrefix
		case "api-url":
			cfg.APIBaseURL = *apiURL
		case "api-key":
			cfg.APIKey = *apiKey
		case "concurrency":
			cfg.FetchConcurrency = *concurrency
		case "log-level":
			cfg.LogLevel = *logLevel
		case "collapse-home-non-fbs":
			cfg.CollapseHomeNonFBS = *collapse
		}
	})

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "unknown log level, keeping info", logger.String("log_level", cfg.LogLevel))
	}
	log.Info(ctx, "starting", logger.String("version", appVersion))

	p, err := pipeline.New(ctx, cfg,
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithReporter(&consoleReporter{ctx: ctx, log: log}))
	if err != nil {
		log.Error(ctx, "setup failed", logger.Error(err))
		return 1
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn(ctx, "close", logger.Error(err))
		}
	}()

	report, err := p.Run(ctx)
	if err != nil {
		log.Error(ctx, "export failed", logger.Error(err),
			logger.String("elapsed", time.Since(start).String()))
		return 1
	}

	for _, path := range report.Files {
		log.Info(ctx, "wrote", logger.String("path", path))
	}
	log.Info(ctx, "done", logger.String("elapsed", time.Since(start).String()))
	return 0
}

// consoleReporter logs backfill progress.
type consoleReporter struct {
	ctx context.Context
	log logger.Logger
}

func (c *consoleReporter) OnJobStart(spec backfill.JobSpec, units int) {
	c.log.Info(c.ctx, "fetch starting",
		logger.Int("seasons", len(spec.Seasons)),
		logger.Int("units", units))
}

func (c *consoleReporter) OnUnitStart(unit backfill.Unit, index, total int) {
	c.log.Debug(c.ctx, fmt.Sprintf("[%d/%d] %s", index+1, total, unit))
}

func (c *consoleReporter) OnUnitDone(unit backfill.Unit, records, index, total int) {
	c.log.Info(c.ctx, fmt.Sprintf("[%d/%d] %s", index+1, total, unit), logger.Int("records", records))
}

func (c *consoleReporter) OnJobComplete(ds *backfill.Dataset) {
	c.log.Info(c.ctx, "fetch complete",
		logger.Int("games", len(ds.Games)),
		logger.Int("stat_units", len(ds.Stats)))
}

func (c *consoleReporter) OnJobError(err error) {
	c.log.Error(c.ctx, "fetch failed", logger.Error(err))
}
