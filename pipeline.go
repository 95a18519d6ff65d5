package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"marketsnapshot/internal/alphavantage"
	"marketsnapshot/internal/cache"
	"marketsnapshot/internal/config"
	"marketsnapshot/internal/coordinator"
	"marketsnapshot/internal/export"
	"marketsnapshot/internal/fetcher"
	"marketsnapshot/internal/newsapi"
	"marketsnapshot/internal/nse"
	"marketsnapshot/internal/ratelimit"
	"marketsnapshot/internal/snapshot"
	"marketsnapshot/internal/store"
	"marketsnapshot/internal/yahoo"
)

// pipeline is one fully wired snapshot run.
type pipeline struct {
	coord    *coordinator.Coordinator
	writer   *store.Writer
	exporter *export.Exporter
	log      zerolog.Logger
	closers  []func() error
}

// newPipeline wires the adapters, cache, coordinator and output stages
// described by cfg. Files are written through fsys.
func newPipeline(cfg *config.Config, fsys afero.Fs, log zerolog.Logger) (*pipeline, error) {
	p := &pipeline{
		writer:   store.NewWriter(fsys, cfg.OutputDir),
		exporter: export.New(fsys, cfg.OutputDir),
		log:      log,
	}

	var fallback cache.Store
	switch cfg.Cache.Backend {
	case config.CacheSQLite:
		db, err := cache.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, db.Close)
		fallback = db
	case config.CacheMemory:
		fallback = cache.NewMemoryStore()
	default:
		fallback = cache.NewFileStore(fsys, cfg.Cache.Path)
	}

	limiter := ratelimit.New(cfg.Limits())
	yc := yahoo.NewClient(cfg.YahooBaseURL, cfg.Timeout, limiter, log)

	var quotes fetcher.HistorySource = yc
	if cfg.QuoteProvider == config.ProviderAlphaVantage {
		quotes = alphavantage.NewDailyFetcher(cfg.AlphavantageAPIKey, cfg.AlphavantageBaseURL, cfg.Timeout, limiter, log)
	}

	sources := coordinator.Sources{
		Quotes: quotes,
		Movers: yc,
		Flow:   nse.NewFlowFetcher(cfg.NSEBaseURL, cfg.Timeout, fallback, limiter, log),
		News:   newsapi.NewClient(cfg.NewsAPIKey, cfg.NewsAPIBaseURL, cfg.News.Language, cfg.Timeout, limiter, log),
	}
	plan := coordinator.Plan{
		Sections:       cfg.Sections(),
		MoversUniverse: cfg.Movers.Universe,
		MoversLimit:    cfg.Movers.Limit,
		NewsQuery:      cfg.News.Query,
		NewsPageSize:   cfg.News.PageSize,
	}
	p.coord = coordinator.New(sources, plan, cfg.Concurrency, log)

	return p, nil
}

// run fetches every section, assembles the snapshot taken at now and
// persists it. Fetch failures are recorded in the snapshot. An interrupted
// run is returned as an error and leaves the stored snapshots untouched.
func (p *pipeline) run(ctx context.Context, now time.Time) (snapshot.Snapshot, store.Paths, error) {
	payloads, err := p.coord.Run(ctx)
	if err != nil {
		return snapshot.Snapshot{}, store.Paths{}, err
	}
	if err := ctx.Err(); err != nil {
		return snapshot.Snapshot{}, store.Paths{}, fmt.Errorf("fetch interrupted: %w", err)
	}

	snap := snapshot.Assemble(snapshot.DefaultLayout, payloads, now)

	paths, err := p.writer.Write(snap, now)
	if err != nil {
		return snap, store.Paths{}, fmt.Errorf("persist snapshot: %w", err)
	}
	p.log.Info().Str("dated", paths.Dated).Str("latest", paths.Latest).Msg("wrote snapshot")

	if dirs, err := p.exporter.Write(snap, now); err != nil {
		p.log.Error().Err(err).Msg("failed to export CSV tables")
	} else {
		p.log.Info().Strs("dirs", dirs).Msg("wrote CSV tables")
	}

	return snap, paths, nil
}

// close releases resources held by the pipeline.
func (p *pipeline) close() {
	for _, c := range p.closers {
		if err := c(); err != nil {
			p.log.Warn().Err(err).Msg("failed to close resource")
		}
	}
}
