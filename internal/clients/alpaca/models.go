package alpaca

import (
	"time"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// Wire shapes for the market-data endpoints. Every section is optional;
// the provider omits whatever it has no data for.

type tradeJSON struct {
	Price     *float64 `json:"p"`
	Timestamp string   `json:"t"`
}

type quoteJSON struct {
	BidPrice  *float64 `json:"bp"`
	AskPrice  *float64 `json:"ap"`
	Timestamp string   `json:"t"`
}

type barJSON struct {
	Open      *float64 `json:"o"`
	High      *float64 `json:"h"`
	Low       *float64 `json:"l"`
	Close     *float64 `json:"c"`
	Volume    *float64 `json:"v"`
	Timestamp string   `json:"t"`
}

type snapshotJSON struct {
	LatestTrade  *tradeJSON `json:"latestTrade"`
	LatestQuote  *quoteJSON `json:"latestQuote"`
	MinuteBar    *barJSON   `json:"minuteBar"`
	DailyBar     *barJSON   `json:"dailyBar"`
	PrevDailyBar *barJSON   `json:"prevDailyBar"`
}

type quotesResponse struct {
	Quotes map[string]*quoteJSON `json:"quotes"`
}

type multiBarsResponse struct {
	Bars map[string][]*barJSON `json:"bars"`
}

type latestBarsResponse struct {
	Bars map[string]*barJSON `json:"bars"`
}

func (t *tradeJSON) toDomain() *domain.Trade {
	if t == nil {
		return nil
	}
	return &domain.Trade{Price: t.Price, Timestamp: parseTime(t.Timestamp)}
}

func (q *quoteJSON) toDomain() *domain.Quote {
	if q == nil {
		return nil
	}
	return &domain.Quote{Bid: q.BidPrice, Ask: q.AskPrice, Timestamp: parseTime(q.Timestamp)}
}

func (b *barJSON) toDomain() *domain.Bar {
	if b == nil {
		return nil
	}
	return &domain.Bar{
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
		Timestamp: parseTime(b.Timestamp),
	}
}

func (s *snapshotJSON) toDomain() *domain.Snapshot {
	if s == nil {
		return nil
	}
	return &domain.Snapshot{
		LatestTrade:  s.LatestTrade.toDomain(),
		LatestQuote:  s.LatestQuote.toDomain(),
		MinuteBar:    s.MinuteBar.toDomain(),
		DailyBar:     s.DailyBar.toDomain(),
		PrevDailyBar: s.PrevDailyBar.toDomain(),
	}
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
