package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

var now = time.Date(2024, 1, 7, 15, 0, 0, 0, time.UTC)

func TestNormalizeLiveTradeWithDelayedBaseline(t *testing.T) {
	// A fresh live trade plus a delayed daily/prev-daily baseline, the
	// common intraday case for stocks.
	live := &domain.Snapshot{
		LatestTrade: &domain.Trade{Price: domain.Float(152.50), Timestamp: domain.Time(now)},
		LatestQuote: &domain.Quote{Bid: domain.Float(152.45), Ask: domain.Float(152.55), Timestamp: domain.Time(now)},
	}
	baseline := &domain.Snapshot{
		DailyBar:     &domain.Bar{Open: domain.Float(150.00), Close: domain.Float(152.00)},
		PrevDailyBar: &domain.Bar{Open: domain.Float(148.00), Close: domain.Float(149.10)},
	}

	q := Normalize(live, baseline, now)
	require.NotNil(t, q)

	assert.Equal(t, 152.50, *q.Last)
	assert.Equal(t, 150.00, *q.Open)
	assert.Equal(t, 149.10, *q.PrevClose)
	assert.Equal(t, now, *q.Timestamp)
}

func TestNormalizeStaleTradePrefersMinuteBar(t *testing.T) {
	yesterday := now.Add(-24 * time.Hour)
	live := &domain.Snapshot{
		LatestTrade: &domain.Trade{Price: domain.Float(10), Timestamp: domain.Time(yesterday)},
		MinuteBar:   &domain.Bar{Close: domain.Float(11)},
	}

	q := Normalize(live, nil, now)
	require.NotNil(t, q)
	assert.Equal(t, 11.0, *q.Last)
}

func TestNormalizeStaleTradeWithoutMinuteBarKeepsTrade(t *testing.T) {
	yesterday := now.Add(-24 * time.Hour)
	live := &domain.Snapshot{
		LatestTrade: &domain.Trade{Price: domain.Float(10), Timestamp: domain.Time(yesterday)},
	}

	q := Normalize(live, nil, now)
	require.NotNil(t, q)
	assert.Equal(t, 10.0, *q.Last)
}

func TestNormalizeCryptoSundayScenario(t *testing.T) {
	// Quote mid synthesized as the live trade (what the crypto adapter
	// does), one Saturday daily bar, no prev-daily. The mid wins as last
	// and the daily open backfills both baselines.
	saturday := now.Add(-24 * time.Hour)
	snap := &domain.Snapshot{
		LatestTrade: &domain.Trade{Price: domain.Float(42005), Timestamp: domain.Time(now)},
		LatestQuote: &domain.Quote{Bid: domain.Float(42000), Ask: domain.Float(42010), Timestamp: domain.Time(now)},
		DailyBar:    &domain.Bar{Open: domain.Float(41500), Close: domain.Float(41800), Timestamp: domain.Time(saturday)},
	}

	q := Normalize(snap, snap, now)
	require.NotNil(t, q)

	assert.Equal(t, 42005.0, *q.Last)
	assert.Equal(t, 41500.0, *q.Open)
	assert.Equal(t, 41500.0, *q.PrevClose)
}

func TestNormalizeQuoteOnlyFallsBackToMid(t *testing.T) {
	live := &domain.Snapshot{
		LatestQuote: &domain.Quote{Bid: domain.Float(100), Ask: domain.Float(102)},
	}

	q := Normalize(live, nil, now)
	require.NotNil(t, q)
	assert.Equal(t, 101.0, *q.Last)
	// Backfilled baselines both collapse to last.
	assert.Equal(t, 101.0, *q.Open)
	assert.Equal(t, 101.0, *q.PrevClose)
}

func TestNormalizeNothingUsableDropsSymbol(t *testing.T) {
	assert.Nil(t, Normalize(nil, nil, now))
	assert.Nil(t, Normalize(&domain.Snapshot{}, nil, now))
	assert.Nil(t, Normalize(&domain.Snapshot{
		LatestQuote: &domain.Quote{Bid: domain.Float(0), Ask: domain.Float(0)},
	}, nil, now))
}

func TestNormalizePrevCloseFallsBackToDailyOpen(t *testing.T) {
	live := &domain.Snapshot{
		LatestTrade: &domain.Trade{Price: domain.Float(55), Timestamp: domain.Time(now)},
	}
	baseline := &domain.Snapshot{
		DailyBar: &domain.Bar{Open: domain.Float(50), Close: domain.Float(54)},
	}

	q := Normalize(live, baseline, now)
	require.NotNil(t, q)
	assert.Equal(t, 50.0, *q.Open)
	assert.Equal(t, 50.0, *q.PrevClose)
}

func TestMid(t *testing.T) {
	tests := []struct {
		name     string
		bid, ask *float64
		expected *float64
	}{
		{"both positive", domain.Float(10), domain.Float(12), domain.Float(11)},
		{"ask only", nil, domain.Float(12), domain.Float(12)},
		{"bid only", domain.Float(10), nil, domain.Float(10)},
		{"both zero", domain.Float(0), domain.Float(0), nil},
		{"both nil", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mid(tt.bid, tt.ask)
			if tt.expected == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.expected, *got)
			}
		})
	}
}
