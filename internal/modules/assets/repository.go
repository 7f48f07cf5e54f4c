package assets

import (
	"database/sql"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// Repository handles watchlist database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new assets repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "assets").Logger(),
	}
}

// Add inserts a watchlist entry. Idempotent on (symbol, class); symbols are
// stored upper-cased so they match what the upstream providers return.
func (r *Repository) Add(symbol string, class domain.AssetClass) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return &domain.ValidationError{Reason: "symbol is required"}
	}

	_, err := r.db.Exec(`
		INSERT INTO selected_assets (symbol, asset_class, enabled)
		VALUES (?, ?, 1)
		ON CONFLICT(symbol, asset_class) DO NOTHING
	`, symbol, class.String())
	if err != nil {
		return &domain.StoreError{Op: "add asset", Err: err}
	}

	r.log.Info().Str("symbol", symbol).Str("asset_class", class.String()).Msg("Asset added")
	return nil
}

// Remove deletes a watchlist entry and cascades to its price history.
func (r *Repository) Remove(symbol string, class domain.AssetClass) error {
	symbol = normalizeSymbol(symbol)

	tx, err := r.db.Begin()
	if err != nil {
		return &domain.StoreError{Op: "remove asset", Err: err}
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"DELETE FROM selected_assets WHERE symbol = ? AND asset_class = ?",
		symbol, class.String())
	if err != nil {
		return &domain.StoreError{Op: "remove asset", Err: err}
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(
		"DELETE FROM asset_prices WHERE symbol = ? AND asset_class = ?",
		symbol, class.String()); err != nil {
		return &domain.StoreError{Op: "remove asset prices", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StoreError{Op: "remove asset", Err: err}
	}

	r.log.Info().Str("symbol", symbol).Str("asset_class", class.String()).Msg("Asset removed")
	return nil
}

// SetEnabled toggles refresh and price exposure for an asset.
func (r *Repository) SetEnabled(symbol string, class domain.AssetClass, enabled bool) error {
	symbol = normalizeSymbol(symbol)

	result, err := r.db.Exec(
		"UPDATE selected_assets SET enabled = ? WHERE symbol = ? AND asset_class = ?",
		boolToInt(enabled), symbol, class.String())
	if err != nil {
		return &domain.StoreError{Op: "set asset enabled", Err: err}
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns watchlist entries, optionally filtered by class. Disabled
// entries are included (with their flag) unless includeDisabled is false.
func (r *Repository) List(class *domain.AssetClass, includeDisabled bool) ([]SelectedAsset, error) {
	query := "SELECT symbol, asset_class, enabled FROM selected_assets"
	var clauses []string
	var args []interface{}

	if class != nil {
		clauses = append(clauses, "asset_class = ?")
		args = append(args, class.String())
	}
	if !includeDisabled {
		clauses = append(clauses, "enabled = 1")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY asset_class, symbol"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "list assets", Err: err}
	}
	defer rows.Close()

	result := []SelectedAsset{}
	for rows.Next() {
		var asset SelectedAsset
		var classStr string
		var enabled int
		if err := rows.Scan(&asset.Symbol, &classStr, &enabled); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan asset row")
			continue
		}
		asset.AssetClass = domain.AssetClass(classStr)
		asset.Enabled = enabled != 0
		result = append(result, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list assets", Err: err}
	}
	return result, nil
}

// ListEnabledSymbols returns the symbols the scheduler should refresh for
// one asset class.
func (r *Repository) ListEnabledSymbols(class domain.AssetClass) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT symbol FROM selected_assets WHERE asset_class = ? AND enabled = 1 ORDER BY symbol",
		class.String())
	if err != nil {
		return nil, &domain.StoreError{Op: "list enabled symbols", Err: err}
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan symbol row")
			continue
		}
		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list enabled symbols", Err: err}
	}
	return symbols, nil
}

// CountEnabled returns the number of enabled assets in a class.
func (r *Repository) CountEnabled(class domain.AssetClass) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM selected_assets WHERE asset_class = ? AND enabled = 1",
		class.String()).Scan(&count)
	if err != nil {
		return 0, &domain.StoreError{Op: "count enabled assets", Err: err}
	}
	return count, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
