package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tickertronix/Tickertronix-Open/internal/database"
	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/assets"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/devices"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/prices"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/settings"
	"github.com/Tickertronix/Tickertronix-Open/internal/scheduler"
)

// echoClient answers every requested symbol with a fixed quote.
type echoClient struct {
	last float64
}

func (c *echoClient) quotes(symbols []string) map[string]domain.RawQuote {
	now := time.Now().UTC()
	out := map[string]domain.RawQuote{}
	for _, s := range symbols {
		last := c.last
		out[s] = domain.RawQuote{Last: &last, Timestamp: &now}
	}
	return out
}

func (c *echoClient) GetStockPrices(ctx context.Context, symbols []string) map[string]domain.RawQuote {
	return c.quotes(symbols)
}

func (c *echoClient) GetCryptoPrices(ctx context.Context, symbols []string) map[string]domain.RawQuote {
	return c.quotes(symbols)
}

func (c *echoClient) GetForexQuotes(ctx context.Context, symbols []string) map[string]domain.RawQuote {
	return c.quotes(symbols)
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	dataDir := t.TempDir()
	db, err := database.New(database.Config{
		Path: filepath.Join(dataDir, "hub.db"),
		Name: "test",
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	assetRepo := assets.NewRepository(db.Conn(), log)
	priceRepo := prices.NewRepository(db.Conn(), log)
	deviceRepo := devices.NewRepository(db.Conn(), log)
	settingsRepo := settings.NewRepository(db.Conn(), log)

	client := &echoClient{last: 430.50}
	sched := scheduler.New(log)
	require.NoError(t, sched.RegisterRefreshJobs(
		scheduler.NewMarketRefreshJob(assetRepo, priceRepo, client, log),
		scheduler.NewForexRefreshJob(assetRepo, priceRepo, client, log),
		300*time.Second, 3600*time.Second))

	return New(Config{
		Log:         log,
		Host:        "127.0.0.1",
		Port:        0,
		DataDir:     dataDir,
		DB:          db,
		Scheduler:   sched,
		Assets:      assets.NewHandler(assetRepo, log),
		Prices:      prices.NewHandler(priceRepo, log),
		Devices:     devices.NewHandler(deviceRepo, log),
		Credentials: settings.NewHandler(settingsRepo, nil, nil, log),
	})
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestEmptyHub(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/prices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = doRequest(t, s, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["running"])

	rec = doRequest(t, s, http.MethodPost, "/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Refresh triggered", decodeBody(t, rec)["message"])
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "stopped", body["scheduler"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRefreshPopulatesPrices(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/assets", `{"symbol":"aapl","asset_class":"stocks"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		rec := doRequest(t, s, http.MethodGet, "/prices/stocks/AAPL", "")
		return rec.Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	rec = doRequest(t, s, http.MethodGet, "/prices/stocks/AAPL", "")
	body := decodeBody(t, rec)
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, 430.50, body["last_price"])
}

func TestRemoveAssetClearsPrices(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/assets", `{"symbol":"MSFT","asset_class":"stocks"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	doRequest(t, s, http.MethodPost, "/refresh", "")
	require.Eventually(t, func() bool {
		return doRequest(t, s, http.MethodGet, "/prices/stocks/MSFT", "").Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	rec = doRequest(t, s, http.MethodDelete, "/assets/stocks/MSFT", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/prices/stocks/MSFT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/assets", "")
	assert.NotContains(t, rec.Body.String(), "MSFT")
}

func TestUnknownAssetClassRejected(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/prices/bonds", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t,
		"Invalid asset class. Must be one of: stocks, forex, crypto",
		decodeBody(t, rec)["error"])
}

func TestDeviceRoutesMounted(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/device/LIVING-ROOM/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "single", decodeBody(t, rec)["scroll_mode"])

	rec = doRequest(t, s, http.MethodGet, "/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "LIVING-ROOM")
}

func TestMetricsAndSystemStats(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = doRequest(t, s, http.MethodGet, "/system/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
