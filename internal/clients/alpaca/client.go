// Package alpaca is the equities/crypto upstream adapter. It fetches raw
// snapshots over the provider's REST API and normalizes them into RawQuotes.
// The adapter fails softly: any upstream error yields an empty (or partial)
// map and a warn log, never an error across the component boundary.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
	"github.com/Tickertronix/Tickertronix-Open/internal/metrics"
	"github.com/Tickertronix/Tickertronix-Open/internal/pricing"
)

// Config holds adapter configuration
type Config struct {
	BaseURL        string        // market data host
	BrokerURL      string        // broker host, used only for credential verification
	RequestTimeout time.Duration // per-request deadline
	RequestDelay   time.Duration // minimum spacing between upstream calls
}

// Client talks to the equities/crypto provider. The HTTP session lives as
// long as the client; the scheduler is its only caller for price data.
type Client struct {
	httpClient *http.Client
	baseURL    string
	brokerURL  string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        zerolog.Logger

	mu        sync.RWMutex
	apiKey    string
	apiSecret string

	now func() time.Time
}

// NewClient creates a new equities/crypto adapter
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://data.alpaca.markets"
	}
	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "https://paper-api.alpaca.markets"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = 500 * time.Millisecond
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		brokerURL:  strings.TrimRight(cfg.BrokerURL, "/"),
		limiter:    rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "alpaca",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		log: log.With().Str("client", "alpaca").Logger(),
		now: time.Now,
	}
}

// SetCredentials swaps the API credentials at runtime.
func (c *Client) SetCredentials(key, secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
	c.apiSecret = secret
}

// HasCredentials reports whether the adapter can authenticate at all.
func (c *Client) HasCredentials() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != "" && c.apiSecret != ""
}

func (c *Client) credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey, c.apiSecret
}

// VerifyCredentials probes the broker account endpoint.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	key, secret := c.credentials()
	if key == "" || secret == "" {
		return fmt.Errorf("no credentials configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.brokerURL+"/v2/account", nil)
	if err != nil {
		return err
	}
	req.Header.Set("APCA-API-KEY-ID", key)
	req.Header.Set("APCA-API-SECRET-KEY", secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("account request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("credentials rejected with status %d", resp.StatusCode)
	}
	return nil
}

// GetStockPrices fetches normalized quotes for a batch of stock symbols.
// Two snapshot requests are made: the live feed and the delayed consolidated
// feed that carries reliable daily/prev-daily bars. Symbols missing from
// both go through the latest-quote + daily-bars fallback.
func (c *Client) GetStockPrices(ctx context.Context, symbols []string) map[string]domain.RawQuote {
	out := map[string]domain.RawQuote{}
	symbols = upperAll(symbols)
	if len(symbols) == 0 || !c.HasCredentials() {
		if len(symbols) > 0 {
			c.log.Warn().Msg("No credentials configured, skipping stock refresh")
		}
		return out
	}

	now := c.now().UTC()
	live := c.fetchStockSnapshots(ctx, symbols, "iex")
	baseline := c.fetchStockSnapshots(ctx, symbols, "delayed_sip")

	var missing []string
	for _, symbol := range symbols {
		l, b := live[symbol], baseline[symbol]
		if l == nil && b == nil {
			missing = append(missing, symbol)
			continue
		}
		if q := pricing.Normalize(l, b, now); q != nil {
			out[symbol] = *q
		}
	}

	if len(missing) > 0 {
		c.log.Debug().Strs("symbols", missing).Msg("Snapshots missing, trying fallback path")
		c.stockFallback(ctx, missing, out, now)
	}
	return out
}

func (c *Client) fetchStockSnapshots(ctx context.Context, symbols []string, feed string) map[string]*domain.Snapshot {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("feed", feed)

	var payload map[string]*snapshotJSON
	if err := c.getJSON(ctx, c.baseURL+"/v2/stocks/snapshots", params, &payload); err != nil {
		c.log.Warn().Err(err).Str("feed", feed).Msg("Stock snapshot request failed")
		metrics.UpstreamErrors.WithLabelValues("alpaca").Inc()
		return nil
	}

	result := make(map[string]*domain.Snapshot, len(payload))
	for symbol, snap := range payload {
		if snap != nil {
			result[strings.ToUpper(symbol)] = snap.toDomain()
		}
	}
	return result
}

// stockFallback recovers symbols the snapshot endpoint ignored: a latest
// quote gives the live side, up to five recent daily bars give the baseline.
func (c *Client) stockFallback(ctx context.Context, symbols []string, out map[string]domain.RawQuote, now time.Time) {
	quoteParams := url.Values{}
	quoteParams.Set("symbols", strings.Join(symbols, ","))
	quoteParams.Set("feed", "iex")

	var quotes quotesResponse
	if err := c.getJSON(ctx, c.baseURL+"/v2/stocks/quotes/latest", quoteParams, &quotes); err != nil {
		c.log.Warn().Err(err).Msg("Fallback quote request failed")
		metrics.UpstreamErrors.WithLabelValues("alpaca").Inc()
		return
	}

	barParams := url.Values{}
	barParams.Set("symbols", strings.Join(symbols, ","))
	barParams.Set("timeframe", "1Day")
	barParams.Set("limit", "5")
	barParams.Set("start", now.AddDate(0, 0, -10).Format("2006-01-02"))

	var bars multiBarsResponse
	if err := c.getJSON(ctx, c.baseURL+"/v2/stocks/bars", barParams, &bars); err != nil {
		c.log.Warn().Err(err).Msg("Fallback bars request failed")
		metrics.UpstreamErrors.WithLabelValues("alpaca").Inc()
		return
	}

	for _, symbol := range symbols {
		snap := buildQuoteBarsSnapshot(quotes.Quotes[symbol], nil, bars.Bars[symbol])
		if snap == nil {
			continue
		}
		if q := pricing.Normalize(snap, snap, now); q != nil {
			out[symbol] = *q
		}
	}
}

// GetCryptoPrices fetches normalized quotes for a batch of crypto pairs.
// Crypto has no snapshot endpoint here: the latest quote's mid serves as the
// live trade, the latest bar stands in for the minute bar, and multi-day
// daily bars recover open and prev_close.
func (c *Client) GetCryptoPrices(ctx context.Context, symbols []string) map[string]domain.RawQuote {
	out := map[string]domain.RawQuote{}
	symbols = upperAll(symbols)
	if len(symbols) == 0 || !c.HasCredentials() {
		if len(symbols) > 0 {
			c.log.Warn().Msg("No credentials configured, skipping crypto refresh")
		}
		return out
	}

	now := c.now().UTC()
	joined := strings.Join(symbols, ",")

	barParams := url.Values{}
	barParams.Set("symbols", joined)
	barParams.Set("timeframe", "1Day")
	barParams.Set("limit", "5")

	var daily multiBarsResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1beta3/crypto/us/bars", barParams, &daily); err != nil {
		c.log.Warn().Err(err).Msg("Crypto daily bars request failed")
		metrics.UpstreamErrors.WithLabelValues("alpaca").Inc()
	}

	quoteParams := url.Values{}
	quoteParams.Set("symbols", joined)

	var quotes quotesResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1beta3/crypto/us/latest/quotes", quoteParams, &quotes); err != nil {
		c.log.Warn().Err(err).Msg("Crypto quotes request failed")
		metrics.UpstreamErrors.WithLabelValues("alpaca").Inc()
	}

	var latest latestBarsResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1beta3/crypto/us/latest/bars", quoteParams, &latest); err != nil {
		c.log.Warn().Err(err).Msg("Crypto latest bars request failed")
		metrics.UpstreamErrors.WithLabelValues("alpaca").Inc()
	}

	for _, symbol := range symbols {
		snap := buildQuoteBarsSnapshot(quotes.Quotes[symbol], latest.Bars[symbol], daily.Bars[symbol])
		if snap == nil {
			continue
		}
		if q := pricing.Normalize(snap, snap, now); q != nil {
			out[symbol] = *q
		}
	}
	return out
}

// buildQuoteBarsSnapshot assembles a Snapshot from quote + bars material.
// The quote mid becomes the live trade (with the quote's timestamp) so the
// normalizer's staleness rule applies to quotes exactly as it does to
// trades. Daily bars are assumed oldest-first; the last is the current
// session, the one before it the previous session.
func buildQuoteBarsSnapshot(quote *quoteJSON, latestBar *barJSON, dailyBars []*barJSON) *domain.Snapshot {
	if quote == nil && latestBar == nil && len(dailyBars) == 0 {
		return nil
	}

	snap := &domain.Snapshot{
		LatestQuote: quote.toDomain(),
		MinuteBar:   latestBar.toDomain(),
	}

	if n := len(dailyBars); n > 0 {
		snap.DailyBar = dailyBars[n-1].toDomain()
		if n > 1 {
			snap.PrevDailyBar = dailyBars[n-2].toDomain()
		}
		if snap.MinuteBar == nil {
			snap.MinuteBar = snap.DailyBar
		}
	}

	if snap.LatestQuote != nil {
		if mid := pricing.Mid(snap.LatestQuote.Bid, snap.LatestQuote.Ask); mid != nil {
			snap.LatestTrade = &domain.Trade{Price: mid, Timestamp: snap.LatestQuote.Timestamp}
		}
	}
	return snap
}

// getJSON performs one authenticated GET, spaced by the limiter and guarded
// by the circuit breaker.
func (c *Client) getJSON(ctx context.Context, rawURL string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	key, secret := c.credentials()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("APCA-API-KEY-ID", key)
		req.Header.Set("APCA-API-SECRET-KEY", secret)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	return err
}

func upperAll(symbols []string) []string {
	result := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			result = append(result, s)
		}
	}
	return result
}
