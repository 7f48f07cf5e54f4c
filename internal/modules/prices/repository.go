package prices

import (
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// Repository handles price persistence. One row per (symbol, class, date),
// mutated in place on refresh.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new prices repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "prices").Logger(),
	}
}

// Upsert writes one refreshed price. last_price and last_updated are always
// overwritten; open_price and prev_close are sticky — an existing non-null
// value survives unless the caller supplies a differing non-null one. A
// write stamped older than the stored last_updated is skipped so a slow tick
// can never roll back a newer one.
func (r *Repository) Upsert(symbol string, class domain.AssetClass, date string, open, prevClose *float64, last float64, now time.Time) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	ts := now.UTC().Format(TimestampFormat)

	tx, err := r.db.Begin()
	if err != nil {
		return &domain.StoreError{Op: "upsert price", Err: err}
	}
	defer tx.Rollback()

	var id int64
	var curOpen, curPrev sql.NullFloat64
	var curUpdated sql.NullString
	err = tx.QueryRow(`
		SELECT id, open_price, prev_close, last_updated
		FROM asset_prices
		WHERE symbol = ? AND asset_class = ? AND date = ?
	`, symbol, class.String(), date).Scan(&id, &curOpen, &curPrev, &curUpdated)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(`
			INSERT INTO asset_prices (symbol, asset_class, date, open_price, prev_close, last_price, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, symbol, class.String(), date, nullable(open), nullable(prevClose), last, ts)
		if err != nil {
			return &domain.StoreError{Op: "insert price", Err: err}
		}

	case err != nil:
		return &domain.StoreError{Op: "upsert price", Err: err}

	default:
		if curUpdated.Valid && curUpdated.String > ts {
			r.log.Debug().
				Str("symbol", symbol).
				Str("stored", curUpdated.String).
				Str("incoming", ts).
				Msg("Skipping stale price write")
			return tx.Commit()
		}

		newOpen := stickyValue(curOpen, open)
		newPrev := stickyValue(curPrev, prevClose)

		_, err = tx.Exec(`
			UPDATE asset_prices
			SET open_price = ?, prev_close = ?, last_price = ?, last_updated = ?
			WHERE id = ?
		`, newOpen, newPrev, last, ts, id)
		if err != nil {
			return &domain.StoreError{Op: "update price", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StoreError{Op: "upsert price", Err: err}
	}
	return nil
}

// stickyValue implements the baseline overwrite rule: keep the stored value
// unless the incoming one is non-null and differs (or nothing was stored).
func stickyValue(current sql.NullFloat64, incoming *float64) interface{} {
	if incoming != nil && (!current.Valid || current.Float64 != *incoming) {
		return *incoming
	}
	if current.Valid {
		return current.Float64
	}
	return nil
}

// GetLatest returns the most recent row per (symbol, class), enabled assets
// only, with change columns computed. Both filters are optional.
func (r *Repository) GetLatest(class *domain.AssetClass, symbol string) ([]PriceRecord, error) {
	query := `
		SELECT ap.symbol, ap.asset_class, ap.date, ap.open_price, ap.prev_close, ap.last_price, ap.last_updated
		FROM asset_prices ap
		JOIN selected_assets sa
		  ON sa.symbol = ap.symbol AND sa.asset_class = ap.asset_class
		WHERE sa.enabled = 1
		  AND ap.date = (
			SELECT MAX(date) FROM asset_prices
			WHERE symbol = ap.symbol AND asset_class = ap.asset_class
		  )`
	var args []interface{}

	if class != nil {
		query += " AND ap.asset_class = ?"
		args = append(args, class.String())
	}
	if symbol != "" {
		query += " AND ap.symbol = ?"
		args = append(args, strings.ToUpper(strings.TrimSpace(symbol)))
	}
	query += " ORDER BY ap.asset_class, ap.symbol"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "get latest prices", Err: err}
	}
	defer rows.Close()

	result := []PriceRecord{}
	for rows.Next() {
		var rec PriceRecord
		var classStr string
		var open, prev, last sql.NullFloat64
		var updated sql.NullString

		if err := rows.Scan(&rec.Symbol, &classStr, &rec.Date, &open, &prev, &last, &updated); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan price row")
			continue
		}

		rec.AssetClass = domain.AssetClass(classStr)
		rec.OpenPrice = nullFloat(open)
		rec.PrevClose = nullFloat(prev)
		rec.LastPrice = nullFloat(last)
		if updated.Valid {
			rec.LastUpdated = &updated.String
		}
		rec.ChangeAmount, rec.ChangePercent = computeChange(rec.PrevClose, rec.OpenPrice, rec.LastPrice)
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "get latest prices", Err: err}
	}
	return result, nil
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
