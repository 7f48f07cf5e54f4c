package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
	"github.com/Tickertronix/Tickertronix-Open/internal/metrics"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/prices"
)

// MarketRefreshJob polls the equities/crypto provider for every enabled
// symbol and upserts the results. Overlapping ticks are dropped, not queued.
type MarketRefreshJob struct {
	assets AssetSource
	prices PriceSink
	client MarketDataClient
	log    zerolog.Logger

	mu sync.Mutex // held for the duration of a tick

	stateMu sync.Mutex
	lastRun *time.Time
}

// NewMarketRefreshJob creates the stocks+crypto refresh job.
func NewMarketRefreshJob(assets AssetSource, sink PriceSink, client MarketDataClient, log zerolog.Logger) *MarketRefreshJob {
	return &MarketRefreshJob{
		assets: assets,
		prices: sink,
		client: client,
		log:    log.With().Str("job", "market_refresh").Logger(),
	}
}

// Name returns the job name
func (j *MarketRefreshJob) Name() string { return "market_refresh" }

// LastRun returns when the job last completed, or nil if it never ran.
func (j *MarketRefreshJob) LastRun() *time.Time {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	return j.lastRun
}

func (j *MarketRefreshJob) setLastRun(t time.Time) {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	j.lastRun = &t
}

// Run executes one refresh tick: stocks first, then crypto.
func (j *MarketRefreshJob) Run() error {
	if !j.mu.TryLock() {
		j.log.Warn().Msg("Previous market refresh still running, dropping tick")
		metrics.RefreshDropped.WithLabelValues(j.Name()).Inc()
		return nil
	}
	defer j.mu.Unlock()

	runID := uuid.NewString()[:8]
	log := j.log.With().Str("run_id", runID).Logger()

	// No tick-level deadline: a tick runs until its batches complete or
	// error out. Per-request timeouts live in the clients.
	ctx := context.Background()

	start := time.Now()
	updated := j.refreshClass(ctx, log, domain.AssetClassStocks, j.client.GetStockPrices)
	updated += j.refreshClass(ctx, log, domain.AssetClassCrypto, j.client.GetCryptoPrices)

	j.setLastRun(time.Now().UTC())
	metrics.RefreshRuns.WithLabelValues(j.Name()).Inc()
	log.Info().Int("updated", updated).Dur("elapsed", time.Since(start)).Msg("Market refresh complete")
	return nil
}

type fetchFunc func(ctx context.Context, symbols []string) map[string]domain.RawQuote

func (j *MarketRefreshJob) refreshClass(ctx context.Context, log zerolog.Logger, class domain.AssetClass, fetch fetchFunc) int {
	symbols, err := j.assets.ListEnabledSymbols(class)
	if err != nil {
		log.Error().Err(err).Str("asset_class", class.String()).Msg("Failed to list enabled symbols")
		return 0
	}
	if len(symbols) == 0 {
		return 0
	}

	quotes := fetch(ctx, symbols)
	return storeQuotes(log, j.prices, class, quotes)
}

// storeQuotes upserts every quote that carries a last price.
func storeQuotes(log zerolog.Logger, sink PriceSink, class domain.AssetClass, quotes map[string]domain.RawQuote) int {
	now := time.Now().UTC()
	date := now.Format(prices.DateFormat)

	count := 0
	for symbol, q := range quotes {
		if q.Last == nil {
			continue
		}
		if err := sink.Upsert(symbol, class, date, q.Open, q.PrevClose, *q.Last, now); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Str("asset_class", class.String()).Msg("Failed to store price")
			continue
		}
		metrics.PricesUpserted.WithLabelValues(class.String()).Inc()
		count++
	}
	return count
}

// ForexRefreshJob polls the forex provider on its own slower cadence.
// Symbols the credit budget could not cover in a tick are remembered and
// fetched first on the next one, so a large watchlist still rotates through
// completely.
type ForexRefreshJob struct {
	assets AssetSource
	prices PriceSink
	client ForexClient
	log    zerolog.Logger

	mu sync.Mutex

	stateMu sync.Mutex
	lastRun *time.Time
	pending []string
}

// NewForexRefreshJob creates the forex refresh job.
func NewForexRefreshJob(assets AssetSource, sink PriceSink, client ForexClient, log zerolog.Logger) *ForexRefreshJob {
	return &ForexRefreshJob{
		assets: assets,
		prices: sink,
		client: client,
		log:    log.With().Str("job", "forex_refresh").Logger(),
	}
}

// Name returns the job name
func (j *ForexRefreshJob) Name() string { return "forex_refresh" }

// LastRun returns when the job last completed, or nil if it never ran.
func (j *ForexRefreshJob) LastRun() *time.Time {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	return j.lastRun
}

func (j *ForexRefreshJob) setState(lastRun time.Time, pending []string) {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	j.lastRun = &lastRun
	j.pending = pending
}

func (j *ForexRefreshJob) pendingSymbols() []string {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	return append([]string(nil), j.pending...)
}

// Run executes one forex refresh tick.
func (j *ForexRefreshJob) Run() error {
	if !j.mu.TryLock() {
		j.log.Warn().Msg("Previous forex refresh still running, dropping tick")
		metrics.RefreshDropped.WithLabelValues(j.Name()).Inc()
		return nil
	}
	defer j.mu.Unlock()

	runID := uuid.NewString()[:8]
	log := j.log.With().Str("run_id", runID).Logger()

	ctx := context.Background()

	symbols, err := j.assets.ListEnabledSymbols(domain.AssetClassForex)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list enabled symbols")
		return err
	}
	if len(symbols) == 0 {
		j.setState(time.Now().UTC(), nil)
		metrics.RefreshRuns.WithLabelValues(j.Name()).Inc()
		return nil
	}

	order := deferredFirst(symbols, j.pendingSymbols())

	start := time.Now()
	quotes := j.client.GetForexQuotes(ctx, order)
	updated := storeQuotes(log, j.prices, domain.AssetClassForex, quotes)

	var unserved []string
	for _, symbol := range order {
		if _, ok := quotes[symbol]; !ok {
			unserved = append(unserved, symbol)
		}
	}

	j.setState(time.Now().UTC(), unserved)
	metrics.RefreshRuns.WithLabelValues(j.Name()).Inc()
	log.Info().
		Int("updated", updated).
		Int("deferred", len(unserved)).
		Dur("elapsed", time.Since(start)).
		Msg("Forex refresh complete")
	return nil
}

// deferredFirst orders the watchlist so symbols left unserved last tick come
// first. Deferred symbols no longer on the watchlist are dropped.
func deferredFirst(symbols, deferred []string) []string {
	current := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		current[s] = true
	}

	order := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range deferred {
		if current[s] && !seen[s] {
			order = append(order, s)
			seen[s] = true
		}
	}
	for _, s := range symbols {
		if !seen[s] {
			order = append(order, s)
			seen[s] = true
		}
	}
	return order
}
