package twelvedata

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// flexFloat absorbs the provider's habit of sending numbers as JSON strings.
// Empty strings and unparseable values decode to absent rather than erroring.
type flexFloat struct {
	value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return nil
		}
		f.value = &v
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	f.value = &v
	return nil
}

type quoteJSON struct {
	Symbol        string    `json:"symbol"`
	Open          flexFloat `json:"open"`
	Close         flexFloat `json:"close"`
	Price         flexFloat `json:"price"`
	PreviousClose flexFloat `json:"previous_close"`

	// Error envelope; per-symbol failures arrive inline.
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (q *quoteJSON) failed() bool {
	return q.Status == "error"
}

// toRawQuote maps a provider quote into the normalized shape. The provider
// carries no session open for currency pairs, so the previous close stands in
// for it. A quote without a usable price yields nil.
func (q *quoteJSON) toRawQuote(now time.Time) *domain.RawQuote {
	last := q.Price.value
	if last == nil {
		last = q.Close.value
	}
	if last == nil || *last == 0 {
		return nil
	}

	prev := q.PreviousClose.value
	if prev == nil {
		prev = last
	}

	lastValue, prevValue := *last, *prev
	return &domain.RawQuote{
		Open:      &prevValue,
		PrevClose: &prevValue,
		Last:      &lastValue,
		Timestamp: &now,
	}
}

// parseQuotesResponse handles the endpoint's two shapes: a bare quote object
// for a single symbol, or a map keyed by symbol for a batch. A top-level
// error envelope is returned as-is so the caller can log it.
func parseQuotesResponse(data []byte) (map[string]*quoteJSON, *quoteJSON, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	if isJSONString(raw["status"]) {
		var envelope quoteJSON
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, nil, err
		}
		if envelope.failed() {
			return nil, &envelope, nil
		}
	}

	if isJSONString(raw["symbol"]) {
		var single quoteJSON
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, nil, err
		}
		return map[string]*quoteJSON{strings.ToUpper(single.Symbol): &single}, nil, nil
	}

	quotes := make(map[string]*quoteJSON, len(raw))
	for symbol, entry := range raw {
		var q quoteJSON
		if err := json.Unmarshal(entry, &q); err != nil {
			continue
		}
		quotes[strings.ToUpper(symbol)] = &q
	}
	return quotes, nil, nil
}

func isJSONString(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, `"`)
}
