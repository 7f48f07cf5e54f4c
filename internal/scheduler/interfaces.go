package scheduler

import (
	"context"
	"time"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// AssetSource supplies the symbols a refresh tick should fetch.
type AssetSource interface {
	ListEnabledSymbols(class domain.AssetClass) ([]string, error)
}

// PriceSink persists refreshed prices.
type PriceSink interface {
	Upsert(symbol string, class domain.AssetClass, date string, open, prevClose *float64, last float64, now time.Time) error
}

// MarketDataClient fetches equities and crypto quotes.
type MarketDataClient interface {
	GetStockPrices(ctx context.Context, symbols []string) map[string]domain.RawQuote
	GetCryptoPrices(ctx context.Context, symbols []string) map[string]domain.RawQuote
}

// ForexClient fetches currency-pair quotes. Symbols it could not serve are
// simply absent from the result.
type ForexClient interface {
	GetForexQuotes(ctx context.Context, symbols []string) map[string]domain.RawQuote
}
