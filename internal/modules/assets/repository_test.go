package assets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tickertronix/Tickertronix-Open/internal/database"
	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "hub.db"),
		Name: "test",
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestAddIsIdempotentAndUpperCases(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Add("aapl", domain.AssetClassStocks))
	require.NoError(t, repo.Add("AAPL", domain.AssetClassStocks))
	require.NoError(t, repo.Add(" aapl ", domain.AssetClassStocks))

	list, err := repo.List(nil, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "AAPL", list[0].Symbol)
	assert.True(t, list[0].Enabled)
}

func TestAddRejectsEmptySymbol(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.Add("   ", domain.AssetClassStocks)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSameSymbolInTwoClasses(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Add("BTC/USD", domain.AssetClassCrypto))
	require.NoError(t, repo.Add("BTC/USD", domain.AssetClassForex))

	list, err := repo.List(nil, true)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	crypto := domain.AssetClassCrypto
	list, err = repo.List(&crypto, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRemoveCascadesToPrices(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Add("MSFT", domain.AssetClassStocks))
	_, err := repo.db.Exec(`
		INSERT INTO asset_prices (symbol, asset_class, date, last_price, last_updated)
		VALUES ('MSFT', 'stocks', '2024-01-02', 400.0, '2024-01-02T12:00:00Z')`)
	require.NoError(t, err)

	require.NoError(t, repo.Remove("msft", domain.AssetClassStocks))

	var count int
	require.NoError(t, repo.db.QueryRow(
		"SELECT COUNT(*) FROM asset_prices WHERE symbol = 'MSFT'").Scan(&count))
	assert.Zero(t, count)

	list, err := repo.List(nil, true)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRemoveMissingAssetReturnsNotFound(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.Remove("NOPE", domain.AssetClassStocks)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetEnabledAndFilters(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Add("AAPL", domain.AssetClassStocks))
	require.NoError(t, repo.Add("MSFT", domain.AssetClassStocks))
	require.NoError(t, repo.SetEnabled("MSFT", domain.AssetClassStocks, false))

	symbols, err := repo.ListEnabledSymbols(domain.AssetClassStocks)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, symbols)

	count, err := repo.CountEnabled(domain.AssetClassStocks)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stocks := domain.AssetClassStocks
	all, err := repo.List(&stocks, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabledOnly, err := repo.List(&stocks, false)
	require.NoError(t, err)
	require.Len(t, enabledOnly, 1)
	assert.Equal(t, "AAPL", enabledOnly[0].Symbol)

	assert.ErrorIs(t, repo.SetEnabled("NOPE", domain.AssetClassStocks, true), domain.ErrNotFound)
}
