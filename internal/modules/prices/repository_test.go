package prices

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tickertronix/Tickertronix-Open/internal/database"
	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/assets"
)

func setupTest(t *testing.T) (*Repository, *assets.Repository) {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "hub.db"),
		Name: "test",
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	return NewRepository(db.Conn(), zerolog.Nop()), assets.NewRepository(db.Conn(), zerolog.Nop())
}

var (
	t1 = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 1, 2, 12, 5, 0, 0, time.UTC)
)

func TestUpsertIdempotentBaselines(t *testing.T) {
	repo, watchlist := setupTest(t)
	require.NoError(t, watchlist.Add("AAPL", domain.AssetClassStocks))

	require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-02",
		domain.Float(150.00), domain.Float(149.10), 152.50, t1))
	// Second write with null baselines must not erase the stored ones.
	require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-02",
		nil, nil, 153.00, t2))

	list, err := repo.GetLatest(nil, "AAPL")
	require.NoError(t, err)
	require.Len(t, list, 1)

	rec := list[0]
	assert.Equal(t, 150.00, *rec.OpenPrice)
	assert.Equal(t, 149.10, *rec.PrevClose)
	assert.Equal(t, 153.00, *rec.LastPrice)
	assert.Equal(t, t2.Format(TimestampFormat), *rec.LastUpdated)
}

func TestUpsertDifferingBaselineOverwrites(t *testing.T) {
	repo, watchlist := setupTest(t)
	require.NoError(t, watchlist.Add("AAPL", domain.AssetClassStocks))

	require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-02",
		domain.Float(150.00), domain.Float(149.10), 152.50, t1))
	require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-02",
		domain.Float(151.00), domain.Float(149.10), 152.60, t2))

	list, err := repo.GetLatest(nil, "AAPL")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 151.00, *list[0].OpenPrice)
	assert.Equal(t, 149.10, *list[0].PrevClose)
}

func TestUpsertNeverDuplicatesRows(t *testing.T) {
	repo, watchlist := setupTest(t)
	require.NoError(t, watchlist.Add("AAPL", domain.AssetClassStocks))

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-02",
			nil, nil, 150.00+float64(i), t1.Add(time.Duration(i)*time.Minute)))
	}

	var count int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM asset_prices").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUpsertSkipsStaleWrite(t *testing.T) {
	repo, watchlist := setupTest(t)
	require.NoError(t, watchlist.Add("AAPL", domain.AssetClassStocks))

	require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-02",
		nil, nil, 152.50, t2))
	// A write stamped before the stored one must not win.
	require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-02",
		nil, nil, 140.00, t1))

	list, err := repo.GetLatest(nil, "AAPL")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 152.50, *list[0].LastPrice)
	assert.Equal(t, t2.Format(TimestampFormat), *list[0].LastUpdated)
}

func TestGetLatestReturnsNewestDatePerSymbol(t *testing.T) {
	repo, watchlist := setupTest(t)
	require.NoError(t, watchlist.Add("AAPL", domain.AssetClassStocks))

	require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-01",
		domain.Float(148), domain.Float(147), 149, t1.Add(-24*time.Hour)))
	require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-02",
		domain.Float(150), domain.Float(149.10), 152.50, t1))

	list, err := repo.GetLatest(nil, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2024-01-02", list[0].Date)
	assert.Equal(t, 152.50, *list[0].LastPrice)
}

func TestGetLatestExcludesDisabledAssets(t *testing.T) {
	repo, watchlist := setupTest(t)
	require.NoError(t, watchlist.Add("AAPL", domain.AssetClassStocks))
	require.NoError(t, repo.Upsert("AAPL", domain.AssetClassStocks, "2024-01-02",
		nil, nil, 152.50, t1))

	require.NoError(t, watchlist.SetEnabled("AAPL", domain.AssetClassStocks, false))

	list, err := repo.GetLatest(nil, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRemoveAssetCascade(t *testing.T) {
	repo, watchlist := setupTest(t)
	require.NoError(t, watchlist.Add("MSFT", domain.AssetClassStocks))
	require.NoError(t, repo.Upsert("MSFT", domain.AssetClassStocks, "2024-01-02",
		nil, nil, 400.00, t1))

	require.NoError(t, watchlist.Remove("MSFT", domain.AssetClassStocks))

	stocks := domain.AssetClassStocks
	list, err := repo.GetLatest(&stocks, "MSFT")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChangeComputation(t *testing.T) {
	tests := []struct {
		name            string
		prevClose, open *float64
		last            *float64
		expectedAmount  float64
		expectedPercent float64
	}{
		{"prev_close baseline", domain.Float(100), nil, domain.Float(101), 1.00, 1.00},
		{"zero prev_close falls back to open", domain.Float(0), domain.Float(50), domain.Float(55), 5.00, 10.00},
		{"no baseline at all", nil, nil, domain.Float(5), 0, 0},
		{"scenario B", domain.Float(149.10), domain.Float(150.00), domain.Float(152.50), 3.40, 2.28},
		{"scenario C", domain.Float(41500), domain.Float(41500), domain.Float(42005), 505.00, 1.22},
		{"nil last", domain.Float(100), nil, nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, percent := computeChange(tt.prevClose, tt.open, tt.last)
			assert.InDelta(t, tt.expectedAmount, amount, 1e-9)
			assert.InDelta(t, tt.expectedPercent, percent, 1e-9)
		})
	}
}
