package domain

import "time"

// Trade is the most recent trade for a symbol. All fields are optional;
// upstream feeds routinely omit sections.
type Trade struct {
	Price     *float64
	Timestamp *time.Time
}

// Quote is the most recent bid/ask for a symbol.
type Quote struct {
	Bid       *float64
	Ask       *float64
	Timestamp *time.Time
}

// Bar is an OHLCV bar at any resolution.
type Bar struct {
	Open      *float64
	High      *float64
	Low       *float64
	Close     *float64
	Volume    *float64
	Timestamp *time.Time
}

// Snapshot bundles the sections an upstream provider returns for one symbol.
// Any section may be nil.
type Snapshot struct {
	LatestTrade  *Trade
	LatestQuote  *Quote
	MinuteBar    *Bar
	DailyBar     *Bar
	PrevDailyBar *Bar
}

// RawQuote is the normalized per-symbol result an adapter hands to the
// scheduler: the open / prev_close / last triple plus whatever quote context
// was available. Last == nil means the symbol yielded nothing usable.
type RawQuote struct {
	Open      *float64
	PrevClose *float64
	Last      *float64
	Bid       *float64
	Ask       *float64
	Timestamp *time.Time
}

// Float returns a pointer to v. Convenience for building optional fields.
func Float(v float64) *float64 {
	return &v
}

// Time returns a pointer to t.
func Time(t time.Time) *time.Time {
	return &t
}
