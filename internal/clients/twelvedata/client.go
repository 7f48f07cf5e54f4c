// Package twelvedata is the forex upstream adapter. Quotes are fetched in
// small batches against a local credit budget; when the budget runs out the
// remaining symbols are simply not served this run, and the caller retries
// them on its next tick.
package twelvedata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
	"github.com/Tickertronix/Tickertronix-Open/internal/metrics"
)

const maxBatchSize = 8

// Config holds adapter configuration
type Config struct {
	BaseURL          string
	APIKey           string
	BatchSize        int           // symbols per request, capped at 8
	BatchDelay       time.Duration // pause between consecutive batches
	RequestTimeout   time.Duration
	CreditsPerMinute int
	CreditsPerDay    int
}

// Client talks to the forex provider. One credit is spent per symbol
// requested; the minute and day windows are tracked locally so the hub never
// trips the provider's own limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	batchSize  int
	batchDelay time.Duration
	perMinute  int
	perDay     int
	log        zerolog.Logger

	mu          sync.Mutex
	apiKey      string
	minuteStart time.Time
	minuteUsed  int
	dayStart    time.Time
	dayUsed     int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new forex adapter
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twelvedata.com"
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatchSize {
		cfg.BatchSize = maxBatchSize
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = 10 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.CreditsPerMinute <= 0 {
		cfg.CreditsPerMinute = 8
	}
	if cfg.CreditsPerDay <= 0 {
		cfg.CreditsPerDay = 800
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
		perMinute:  cfg.CreditsPerMinute,
		perDay:     cfg.CreditsPerDay,
		apiKey:     cfg.APIKey,
		log:        log.With().Str("client", "twelvedata").Logger(),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// SetAPIKey swaps the API key at runtime.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

// HasAPIKey reports whether the adapter can authenticate at all.
func (c *Client) HasAPIKey() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiKey != ""
}

func (c *Client) key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiKey
}

// GetForexQuotes fetches normalized quotes for a batch of currency pairs.
// Symbols the budget could not cover are absent from the result; the caller
// treats absence as "try again next tick".
func (c *Client) GetForexQuotes(ctx context.Context, symbols []string) map[string]domain.RawQuote {
	out := map[string]domain.RawQuote{}
	symbols = upperAll(symbols)
	if len(symbols) == 0 {
		return out
	}
	if !c.HasAPIKey() {
		c.log.Warn().Msg("No API key configured, skipping forex refresh")
		return out
	}

	for i := 0; i < len(symbols); {
		end := i + c.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[i:end]

		granted := c.take(len(batch))
		if granted == 0 {
			c.log.Info().
				Int("deferred", len(symbols)-i).
				Msg("Forex credit budget exhausted, deferring remaining symbols")
			break
		}
		batch = batch[:granted]

		if i > 0 {
			if err := c.sleep(ctx, c.batchDelay); err != nil {
				return out
			}
		}

		c.fetchQuoteBatch(ctx, batch, out)
		metrics.ForexCreditsUsed.Add(float64(granted))
		i += granted
	}
	return out
}

// take grants up to n credits against the minute and day windows. Windows
// reset lazily when a full period has elapsed since their first use.
func (c *Client) take(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.minuteStart) >= time.Minute {
		c.minuteStart = now
		c.minuteUsed = 0
	}
	if now.Sub(c.dayStart) >= 24*time.Hour {
		c.dayStart = now
		c.dayUsed = 0
	}

	remaining := c.perMinute - c.minuteUsed
	if day := c.perDay - c.dayUsed; day < remaining {
		remaining = day
	}
	if remaining < 0 {
		remaining = 0
	}
	if n > remaining {
		n = remaining
	}

	c.minuteUsed += n
	c.dayUsed += n
	return n
}

func (c *Client) fetchQuoteBatch(ctx context.Context, batch []string, out map[string]domain.RawQuote) {
	params := url.Values{}
	params.Set("symbol", strings.Join(batch, ","))
	params.Set("apikey", c.key())

	body, err := c.getBody(ctx, c.baseURL+"/quote", params)
	if err != nil {
		c.log.Warn().Err(err).Strs("symbols", batch).Msg("Forex quote request failed")
		metrics.UpstreamErrors.WithLabelValues("twelvedata").Inc()
		return
	}

	quotes, envelope, err := parseQuotesResponse(body)
	if err != nil {
		c.log.Warn().Err(err).Msg("Forex quote response unparseable")
		metrics.UpstreamErrors.WithLabelValues("twelvedata").Inc()
		return
	}
	if envelope != nil {
		c.log.Warn().
			Int("code", envelope.Code).
			Str("message", envelope.Message).
			Msg("Forex provider rejected the batch")
		metrics.UpstreamErrors.WithLabelValues("twelvedata").Inc()
		return
	}

	now := c.now().UTC()
	for _, symbol := range batch {
		q, ok := quotes[symbol]
		if !ok {
			c.log.Debug().Str("symbol", symbol).Msg("Symbol missing from forex response")
			continue
		}
		if q.failed() {
			c.log.Warn().
				Str("symbol", symbol).
				Str("message", q.Message).
				Msg("Forex quote failed for symbol")
			continue
		}
		raw := q.toRawQuote(now)
		if raw == nil {
			c.log.Debug().Str("symbol", symbol).Msg("Forex quote carries no usable price")
			continue
		}
		out[symbol] = *raw
	}
}

func (c *Client) getBody(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
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
