package coordinator

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"

	"marketsnapshot/internal/fetcher"
	"marketsnapshot/internal/snapshot"
)

// DefaultConcurrency bounds the number of in-flight provider calls of a run.
const DefaultConcurrency = 4

// FlowSource returns the latest institutional flow record. It never fails.
type FlowSource interface {
	Latest(ctx context.Context) snapshot.FlowRecord
}

// NewsSource searches news. It never fails; errors are carried in the payload.
type NewsSource interface {
	Search(ctx context.Context, query string, pageSize int) snapshot.NewsPayload
}

// Sources are the provider adapters the coordinator drives.
type Sources struct {
	Quotes fetcher.HistorySource
	Movers fetcher.BulkHistorySource
	Flow   FlowSource
	News   NewsSource
}

// Plan describes what one run fetches.
type Plan struct {
	// Sections maps each quote-list section to its configured instruments.
	Sections map[string][]snapshot.Instrument

	MoversUniverse []string
	MoversLimit    int

	NewsQuery    string
	NewsPageSize int
}

// Movers is the ranked outcome of the bulk gainer/loser fetch.
type Movers struct {
	Gainers     []snapshot.QuoteRecord
	Losers      []snapshot.QuoteRecord
	Unavailable []snapshot.QuoteRecord
}

// Coordinator fetches every section of a snapshot. Sections are fetched
// concurrently and each quote section fans out over its instruments; all
// results are collected by position, so completion order never leaks into
// the output. At most concurrency provider calls are in flight across the
// whole run.
type Coordinator struct {
	sources     Sources
	plan        Plan
	layout      snapshot.Layout
	concurrency int
	calls       *semaphore.Weighted
	log         zerolog.Logger
}

// New creates a new Coordinator with the given sources and plan.
func New(sources Sources, plan Plan, concurrency int, log zerolog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Coordinator{
		sources:     sources,
		plan:        plan,
		layout:      snapshot.DefaultLayout,
		concurrency: concurrency,
		calls:       semaphore.NewWeighted(int64(concurrency)),
		log:         log.With().Str("component", "coordinator").Logger(),
	}
}

// Run fetches all sections and returns their payloads keyed by section
// name. Individual fetch failures never fail the run; only a missing
// source does.
func (c *Coordinator) Run(ctx context.Context) (map[string]any, error) {
	if c.sources.Quotes == nil || c.sources.Movers == nil || c.sources.Flow == nil || c.sources.News == nil {
		return nil, errors.New("coordinator: all sources must be configured")
	}

	type task struct {
		name string
		run  func() any
	}

	var tasks []task
	for _, spec := range c.layout {
		switch spec.Name {
		case snapshot.TopGainers, snapshot.TopLosers, snapshot.MoversUnavailable:
			continue
		case snapshot.News:
			tasks = append(tasks, task{spec.Name, func() any {
				release := c.acquire(ctx)
				defer release()
				return c.sources.News.Search(ctx, c.plan.NewsQuery, c.plan.NewsPageSize)
			}})
		case snapshot.FIIDII:
			tasks = append(tasks, task{spec.Name, func() any {
				release := c.acquire(ctx)
				defer release()
				return c.sources.Flow.Latest(ctx)
			}})
		default:
			if spec.Kind != snapshot.KindQuotes {
				continue
			}
			tasks = append(tasks, task{spec.Name, func() any {
				return c.FetchSection(ctx, spec.Name, c.plan.Sections[spec.Name])
			}})
		}
	}
	tasks = append(tasks, task{"movers", func() any {
		return c.FetchMovers(ctx, c.plan.MoversUniverse, c.plan.MoversLimit)
	}})

	results := make([]any, len(tasks))
	p := pool.New().WithMaxGoroutines(c.concurrency)
	for i, t := range tasks {
		p.Go(func() {
			results[i] = t.run()
		})
	}
	p.Wait()

	payloads := make(map[string]any, len(c.layout))
	for i, t := range tasks {
		if m, ok := results[i].(Movers); ok {
			payloads[snapshot.TopGainers] = m.Gainers
			payloads[snapshot.TopLosers] = m.Losers
			payloads[snapshot.MoversUnavailable] = m.Unavailable
			continue
		}
		payloads[t.name] = results[i]
	}
	return payloads, nil
}

// FetchSection fetches one quote section. The output has one record per
// instrument in configured order; a failed instrument becomes an
// error-marked record and never aborts the section.
func (c *Coordinator) FetchSection(ctx context.Context, name string, instruments []snapshot.Instrument) []snapshot.QuoteRecord {
	source := c.sources.Quotes.Name()

	mapper := iter.Mapper[snapshot.Instrument, fetcher.Result[snapshot.QuoteRecord]]{
		MaxGoroutines: c.concurrency,
	}
	results := mapper.Map(instruments, func(inst *snapshot.Instrument) fetcher.Result[snapshot.QuoteRecord] {
		res := fetcher.Result[snapshot.QuoteRecord]{Key: inst.Symbol}
		if err := c.calls.Acquire(ctx, 1); err != nil {
			res.Err = fetcher.Classify(err).WithSource(source)
			return res
		}
		h, err := c.sources.Quotes.History(ctx, inst.Symbol)
		c.calls.Release(1)
		if err != nil {
			res.Err = err
			return res
		}
		res.Value, res.Err = snapshot.NewQuoteRecord(*inst, source, h)
		return res
	})

	records := make([]snapshot.QuoteRecord, len(results))
	failed := 0
	for i, res := range results {
		if !res.OK() {
			failed++
			c.log.Warn().Str("section", name).Str("symbol", res.Key).Err(res.Err).Msg("failed to fetch instrument")
			records[i] = snapshot.FailedRecord(instruments[i], source, res.Err)
			continue
		}
		records[i] = res.Value
	}

	c.log.Info().Str("section", name).Int("instruments", len(records)).Int("failed", failed).Msg("fetched section")
	return records
}

// FetchMovers ranks the universe by net change over the last two sessions
// using one bulk call. Gainers are the first limit entries of the ranking
// and losers the last limit entries, so a universe smaller than 2*limit
// shows some instruments in both lists. Instruments without usable data
// are error-marked and reported in Unavailable instead of being ranked.
func (c *Coordinator) FetchMovers(ctx context.Context, universe []string, limit int) Movers {
	source := c.sources.Movers.Name()
	out := Movers{
		Gainers:     []snapshot.QuoteRecord{},
		Losers:      []snapshot.QuoteRecord{},
		Unavailable: []snapshot.QuoteRecord{},
	}
	if len(universe) == 0 {
		return out
	}

	var histories map[string]fetcher.History
	err := c.calls.Acquire(ctx, 1)
	if err == nil {
		histories, err = c.sources.Movers.BulkHistory(ctx, universe)
		c.calls.Release(1)
	} else {
		err = fetcher.Classify(err).WithSource(source)
	}
	if err != nil {
		c.log.Warn().Err(err).Int("universe", len(universe)).Msg("failed to fetch movers")
	}

	var ranked []snapshot.QuoteRecord
	for _, symbol := range universe {
		inst := snapshot.Instrument{Symbol: displaySymbol(symbol)}

		recErr := err
		if recErr == nil {
			h, ok := histories[symbol]
			if !ok {
				recErr = fetcher.NewValidationError("no data returned for " + symbol).WithSource(source)
			} else {
				rec, qerr := snapshot.NewQuoteRecord(inst, source, h)
				if qerr == nil {
					net := decimal.NewFromFloat(*rec.Close).Sub(decimal.NewFromFloat(*rec.PrevClose)).Round(2).InexactFloat64()
					rec.NetChange = &net
					ranked = append(ranked, rec)
					continue
				}
				recErr = qerr
			}
		}

		if err == nil {
			c.log.Warn().Str("symbol", symbol).Err(recErr).Msg("mover unavailable")
		}
		out.Unavailable = append(out.Unavailable, snapshot.FailedRecord(inst, source, recErr))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].NetChange > *ranked[j].NetChange
	})

	n := limit
	if n > len(ranked) {
		n = len(ranked)
	}
	if n > 0 {
		out.Gainers = append(out.Gainers, ranked[:n]...)
		out.Losers = append(out.Losers, ranked[len(ranked)-n:]...)
	}

	c.log.Info().Int("ranked", len(ranked)).Int("unavailable", len(out.Unavailable)).Msg("fetched movers")
	return out
}

// displaySymbol drops the NSE exchange suffix from a ticker.
func displaySymbol(symbol string) string {
	return strings.TrimSuffix(symbol, ".NS")
}

// acquire takes one of the run's provider call slots. Flow and news
// sources always produce a payload, so when ctx ends before a slot frees up
// they still run and report the failure themselves.
func (c *Coordinator) acquire(ctx context.Context) (release func()) {
	if err := c.calls.Acquire(ctx, 1); err != nil {
		return func() {}
	}
	return func() { c.calls.Release(1) }
}
