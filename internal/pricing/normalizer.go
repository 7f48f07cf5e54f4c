// Package pricing merges raw upstream snapshots into the open / prev_close /
// last triple the hub persists. Upstream feeds are noisy: sections go missing
// outside market hours, the live feed lags the delayed one on weekends, and
// some symbols only ever have a quote. The derivation below prefers the feed
// most likely to be fresh while markets are open and the most recent daily
// close otherwise.
package pricing

import (
	"time"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

const dayFormat = "2006-01-02"

// Normalize produces a RawQuote from a live snapshot and a delayed baseline
// snapshot. Either may be nil; when only one is available it serves both
// roles. Returns nil when no usable last price can be derived, in which case
// the symbol is skipped for this refresh.
func Normalize(live, baseline *domain.Snapshot, now time.Time) *domain.RawQuote {
	if live == nil {
		live = baseline
	}
	if baseline == nil {
		baseline = live
	}
	if live == nil {
		return nil
	}

	var bid, ask *float64
	if live.LatestQuote != nil {
		bid = live.LatestQuote.Bid
		ask = live.LatestQuote.Ask
	}

	last := deriveLast(live, baseline, bid, ask, now)
	if last == nil {
		return nil
	}

	open := firstNonNil(
		barOpen(baseline.DailyBar),
		barOpen(live.MinuteBar),
		barOpen(baseline.PrevDailyBar),
	)
	prevClose := firstNonNil(
		barClose(baseline.PrevDailyBar),
		barOpen(baseline.DailyBar),
	)

	// Backfill so a record never carries a null baseline when any price is
	// known at all.
	if prevClose == nil {
		prevClose = firstNonNil(open, last)
	}
	if open == nil {
		open = firstNonNil(prevClose, last)
	}

	return &domain.RawQuote{
		Open:      open,
		PrevClose: prevClose,
		Last:      last,
		Bid:       bid,
		Ask:       ask,
		Timestamp: deriveTimestamp(live, baseline),
	}
}

func deriveLast(live, baseline *domain.Snapshot, bid, ask *float64, now time.Time) *float64 {
	var tradePrice *float64
	var tradeTime *time.Time
	if live.LatestTrade != nil {
		tradePrice = live.LatestTrade.Price
		tradeTime = live.LatestTrade.Timestamp
	}

	// Weekend rule: a trade stamped on a previous UTC day is stale relative
	// to the most recent minute bar.
	if tradePrice != nil && tradeTime != nil &&
		tradeTime.UTC().Format(dayFormat) != now.UTC().Format(dayFormat) {
		if close := barClose(live.MinuteBar); close != nil {
			return close
		}
	}

	return firstNonNil(
		tradePrice,
		barClose(live.MinuteBar),
		barClose(baseline.DailyBar),
		Mid(bid, ask),
	)
}

func deriveTimestamp(live, baseline *domain.Snapshot) *time.Time {
	if live.LatestTrade != nil && live.LatestTrade.Timestamp != nil {
		return live.LatestTrade.Timestamp
	}
	if live.LatestQuote != nil && live.LatestQuote.Timestamp != nil {
		return live.LatestQuote.Timestamp
	}
	if live.MinuteBar != nil && live.MinuteBar.Timestamp != nil {
		return live.MinuteBar.Timestamp
	}
	if baseline.DailyBar != nil && baseline.DailyBar.Timestamp != nil {
		return baseline.DailyBar.Timestamp
	}
	return nil
}

// Mid computes a usable midpoint price: the average when both sides are
// positive, else whichever side is positive, else nil.
func Mid(bid, ask *float64) *float64 {
	b := deref(bid)
	a := deref(ask)
	switch {
	case b > 0 && a > 0:
		return domain.Float((b + a) / 2)
	case a > 0:
		return domain.Float(a)
	case b > 0:
		return domain.Float(b)
	}
	return nil
}

func barOpen(b *domain.Bar) *float64 {
	if b == nil {
		return nil
	}
	return b.Open
}

func barClose(b *domain.Bar) *float64 {
	if b == nil {
		return nil
	}
	return b.Close
}

func firstNonNil(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
