package prices

import (
	"math"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// Timestamp formats used at the storage boundary. Prices only need second
// precision; both are UTC so string comparison orders correctly.
const (
	DateFormat      = "2006-01-02"
	TimestampFormat = "2006-01-02T15:04:05Z07:00"
)

// PriceRecord is one persisted price row plus the change columns computed on
// read. Optional prices stay pointers so a null in storage round-trips as a
// JSON null rather than a fake zero.
type PriceRecord struct {
	Symbol        string            `json:"symbol"`
	AssetClass    domain.AssetClass `json:"asset_class"`
	Date          string            `json:"date"`
	OpenPrice     *float64          `json:"open_price"`
	PrevClose     *float64          `json:"prev_close"`
	LastPrice     *float64          `json:"last_price"`
	LastUpdated   *string           `json:"last_updated"`
	ChangeAmount  float64           `json:"change_amount"`
	ChangePercent float64           `json:"change_percent"`
}

// computeChange derives the daily change from the stored triple. The
// baseline is prev_close unless it is null or zero, then open; with no
// usable baseline both results are zero.
func computeChange(prevClose, open, last *float64) (amount, percent float64) {
	if last == nil {
		return 0, 0
	}

	baseline := prevClose
	if baseline == nil || *baseline == 0 {
		baseline = open
	}
	if baseline == nil || *baseline == 0 {
		return 0, 0
	}

	amount = round(*last-*baseline, 4)
	percent = round(amount / *baseline * 100, 2)
	return amount, percent
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
