// Package pipeline wires a full export run: fetch every unit, reshape the
// records, write the CSV files, then announce the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/config"
	"github.com/fortuna/gridiron/internal/export"
	"github.com/fortuna/gridiron/internal/ingest/cfbd"
	"github.com/fortuna/gridiron/internal/metrics"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/reshape"
	"github.com/fortuna/gridiron/pkg/logger"
)

// Notifier announces a finished export.
type Notifier interface {
	PublishExport(ctx context.Context, summary publisher.ExportSummary) (string, error)
}

// Pipeline runs exports for one configuration.
type Pipeline struct {
	cfg      *config.Config
	source   backfill.Source
	cache    cache.Cache
	writer   *export.Writer
	metrics  *metrics.Manager
	notifier Notifier
	reporter backfill.Reporter
	log      logger.Logger
	now      func() time.Time
	closers  []func() error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSource replaces the API client built from the configuration.
func WithSource(s backfill.Source) Option {
	return func(p *Pipeline) { p.source = s }
}

// WithCache sets the response cache used by the API client. It takes
// precedence over redis_url.
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithNotifier sets the completion notifier. It takes precedence over
// notify_stream.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithReporter adds a progress reporter next to the pipeline's own.
func WithReporter(r backfill.Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// New builds a pipeline for cfg. When redis_url is set it connects to
// Redis for the response cache and, with notify_stream, the completion
// stream. Call Close to release those connections.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.NewManager()
	}

	if cfg.RedisURL != "" && (p.cache == nil || (cfg.NotifyStream != "" && p.notifier == nil)) {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		p.closers = append(p.closers, rc.Close)
		if p.cache == nil {
			p.cache = rc
		}
		if cfg.NotifyStream != "" && p.notifier == nil {
			p.notifier = publisher.NewRedisStreamPublisher(rc.Client(), cfg.NotifyStream)
		}
	}

	if p.source == nil {
		clientOpts := []cfbd.Option{
			cfbd.WithAPIKey(cfg.APIKey),
			cfbd.WithTimeout(cfg.RequestTimeout),
			cfbd.WithRateLimit(cfg.RequestsPerSecond, cfg.RequestBurst),
			cfbd.WithObserver(p.metrics),
			cfbd.WithLogger(p.log.Named("cfbd")),
		}
		if p.cache != nil {
			clientOpts = append(clientOpts, cfbd.WithCache(p.cache, cfg.CacheTTL))
		}
		p.source = cfbd.New(cfg.APIBaseURL, clientOpts...)
	}

	p.writer = export.NewWriter(cfg.OutputPrefix, export.WithLogger(p.log.Named("export")))
	return p, nil
}

// Close releases connections opened by New.
func (p *Pipeline) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	p.closers = nil
	return first
}

// Report describes a finished run.
type Report struct {
	RunID   string
	Files   []string
	Rows    map[string]int
	Elapsed time.Duration
}

// Run performs one export. Fetch, decode and write failures abort the run
// before any output file is replaced. Notification and metrics push
// failures are logged and do not fail the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	started := p.now()
	runID := uuid.NewString()
	log := p.log.With(logger.String("run_id", runID))

	spec := backfill.JobSpec{
		Seasons:   p.cfg.Seasons(),
		FirstWeek: p.cfg.FirstWeek,
		EndWeek:   p.cfg.EndWeek,
	}
	log.Info(ctx, "export starting",
		logger.Int("start_season", p.cfg.StartSeason),
		logger.Int("end_season", p.cfg.EndSeason),
		logger.Int("concurrency", p.cfg.FetchConcurrency))

	runner := backfill.NewRunner(p.source, backfill.WithConcurrency(p.cfg.FetchConcurrency))
	ds, err := runner.Run(ctx, spec, fanout{metricsReporter{p.metrics}, p.reporter})
	if err != nil {
		p.finish(ctx, log, false, started)
		return nil, err
	}

	res := reshape.Build(ds.Games, statBatches(ds), p.options())
	tables := res.Tables()

	files, err := p.writer.WriteAll(ctx, tables...)
	if err != nil {
		p.finish(ctx, log, false, started)
		return nil, err
	}

	rows := make(map[string]int, len(tables))
	for _, t := range tables {
		rows[t.Name] = t.Len()
		p.metrics.RecordTableRows(t.Name, t.Len())
	}

	report := &Report{RunID: runID, Files: files, Rows: rows}
	report.Elapsed = p.finish(ctx, log, true, started)

	if p.notifier != nil {
		summary := publisher.ExportSummary{
			RunID:       runID,
			StartSeason: p.cfg.StartSeason,
			EndSeason:   p.cfg.EndSeason,
			Files:       files,
			Rows:        rows,
			FinishedAt:  started.Add(report.Elapsed).UTC(),
		}
		if id, err := p.notifier.PublishExport(ctx, summary); err != nil {
			log.Warn(ctx, "export notification failed", logger.Error(err))
		} else {
			log.Debug(ctx, "export notified", logger.String("entry_id", id))
		}
	}

	log.Info(ctx, "export complete",
		logger.Int("games_rows", rows["games"]),
		logger.Int("stats_rows", rows["stats"]),
		logger.Int("combined_rows", rows["combined"]),
		logger.String("elapsed", report.Elapsed.String()))
	return report, nil
}

// finish records the run outcome and pushes metrics when configured.
func (p *Pipeline) finish(ctx context.Context, log logger.Logger, ok bool, started time.Time) time.Duration {
	end := p.now()
	elapsed := end.Sub(started)
	p.metrics.RecordRun(ok, elapsed, end)

	if p.cfg.PushgatewayURL != "" {
		if err := p.metrics.Push(ctx, p.cfg.PushgatewayURL); err != nil {
			log.Warn(ctx, "metrics push failed", logger.Error(err))
		}
	}
	return elapsed
}

func (p *Pipeline) options() reshape.Options {
	if p.cfg.CollapseHomeNonFBS {
		return reshape.Options{Collapse: reshape.CollapseBothSides}
	}
	return reshape.Options{Collapse: reshape.CollapseAwayOnly}
}

func statBatches(ds *backfill.Dataset) [][]cfbd.RawStatEntry {
	out := make([][]cfbd.RawStatEntry, len(ds.Stats))
	for i, b := range ds.Stats {
		out[i] = b.Entries
	}
	return out
}
