package devices

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// WatermarkFormat is the device-settings updated_at format. Fixed-width
// nanoseconds so two writes inside the same second still compare strictly,
// which is what devices rely on to detect configuration changes.
const WatermarkFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Default device metadata for lazily registered devices.
const DefaultDeviceType = "matrix_portal_scroll"

// Device is one registered display. device_id is client-supplied and opaque.
type Device struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
	FirstSeen  string `json:"first_seen"`
	LastSeen   string `json:"last_seen"`
	Enabled    bool   `json:"enabled"`
}

// Settings is the full per-device display configuration. The list-valued
// fields are real slices here; they become JSON text only in the database.
type Settings struct {
	ScrollMode     string              `json:"scroll_mode"`
	ScrollSpeed    int                 `json:"scroll_speed"`
	Brightness     int                 `json:"brightness"`
	UpdateInterval int                 `json:"update_interval"`
	TopSources     []domain.AssetClass `json:"top_sources"`
	BottomSources  []domain.AssetClass `json:"bottom_sources"`
	DwellSeconds   float64             `json:"dwell_seconds"`
	AssetOrder     []domain.AssetClass `json:"asset_order"`
	Font           string              `json:"font"`
	UpdatedAt      string              `json:"updated_at"`
}

// SettingsPatch is a partial settings update. Nil means "leave unchanged".
type SettingsPatch struct {
	ScrollMode     *string
	ScrollSpeed    *int
	Brightness     *int
	UpdateInterval *int
	TopSources     []domain.AssetClass
	BottomSources  []domain.AssetClass
	DwellSeconds   *float64
	AssetOrder     []domain.AssetClass
	Font           *string
}

// Empty reports whether the patch changes no fields. An empty patch is still
// a valid write: it advances the watermark.
func (p *SettingsPatch) Empty() bool {
	return p.ScrollMode == nil && p.ScrollSpeed == nil && p.Brightness == nil &&
		p.UpdateInterval == nil && p.TopSources == nil && p.BottomSources == nil &&
		p.DwellSeconds == nil && p.AssetOrder == nil && p.Font == nil
}

// ParseSettingsPatch validates a raw JSON object into a patch. Unknown keys
// are rejected; each field enforces its documented range with the error
// message devices and the admin UI expect verbatim.
func ParseSettingsPatch(raw map[string]json.RawMessage) (*SettingsPatch, error) {
	patch := &SettingsPatch{}

	for key, value := range raw {
		switch key {
		case "brightness":
			v, ok := parseInt(value)
			if !ok || v < 1 || v > 10 {
				return nil, &domain.ValidationError{Reason: "brightness must be an integer between 1 and 10"}
			}
			patch.Brightness = &v

		case "update_interval":
			v, ok := parseInt(value)
			if !ok || v < 60 || v > 900 {
				return nil, &domain.ValidationError{Reason: "update_interval must be an integer between 60 and 900"}
			}
			patch.UpdateInterval = &v

		case "scroll_mode":
			var v string
			if err := json.Unmarshal(value, &v); err != nil || (v != "single" && v != "dual") {
				return nil, &domain.ValidationError{Reason: `scroll_mode must be "single" or "dual"`}
			}
			patch.ScrollMode = &v

		case "scroll_speed":
			v, ok := parseInt(value)
			if !ok || v < 10 || v > 200 {
				return nil, &domain.ValidationError{Reason: "scroll_speed must be an integer between 10 and 200"}
			}
			patch.ScrollSpeed = &v

		case "dwell_seconds":
			var v float64
			if err := json.Unmarshal(value, &v); err != nil {
				return nil, &domain.ValidationError{Reason: "dwell_seconds must be a number"}
			}
			if v < 1 || v > 30 {
				return nil, &domain.ValidationError{Reason: "dwell_seconds must be between 1 and 30 seconds"}
			}
			patch.DwellSeconds = &v

		case "asset_order":
			order, err := parseClassList(value, true)
			if err != nil {
				return nil, err
			}
			if len(order) == 0 {
				return nil, &domain.ValidationError{Reason: "asset_order must be a non-empty list"}
			}
			patch.AssetOrder = order

		case "top_sources":
			sources, err := parseSources(value, "top_sources")
			if err != nil {
				return nil, err
			}
			patch.TopSources = sources

		case "bottom_sources":
			sources, err := parseSources(value, "bottom_sources")
			if err != nil {
				return nil, err
			}
			patch.BottomSources = sources

		case "font":
			var v string
			if err := json.Unmarshal(value, &v); err != nil {
				return nil, &domain.ValidationError{Reason: "font must be a string"}
			}
			patch.Font = &v

		default:
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("unknown setting %q", key)}
		}
	}

	return patch, nil
}

// parseInt accepts only JSON integers: 8 passes, 8.5 and "8" do not.
func parseInt(raw json.RawMessage) (int, bool) {
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// parseClassList accepts a JSON array of class names or, when allowCSV is
// set, a comma-separated string (devices with tiny HTTP stacks send that).
func parseClassList(raw json.RawMessage, allowCSV bool) ([]domain.AssetClass, error) {
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		if !allowCSV {
			return nil, err
		}
		var csv string
		if err := json.Unmarshal(raw, &csv); err != nil {
			return nil, &domain.ValidationError{Reason: "asset_order must be a non-empty list"}
		}
		for _, part := range strings.Split(csv, ",") {
			if part = strings.TrimSpace(part); part != "" {
				names = append(names, part)
			}
		}
	}

	result := make([]domain.AssetClass, 0, len(names))
	for _, name := range names {
		class, err := domain.ParseAssetClass(name)
		if err != nil {
			return nil, &domain.ValidationError{Reason: "asset_order entries must be stocks, crypto, or forex"}
		}
		result = append(result, class)
	}
	return dedupeClasses(result), nil
}

func parseSources(raw json.RawMessage, field string) ([]domain.AssetClass, error) {
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, &domain.ValidationError{Reason: field + " must be a list"}
	}

	result := make([]domain.AssetClass, 0, len(names))
	for _, name := range names {
		class, err := domain.ParseAssetClass(name)
		if err != nil {
			return nil, &domain.ValidationError{Reason: field + " entries must be stocks, crypto, or forex"}
		}
		result = append(result, class)
	}
	return dedupeClasses(result), nil
}

// dedupeClasses keeps the first occurrence of each class. The class lists
// are subsets of a three-element set; a repeated entry is an accident, not
// an instruction.
func dedupeClasses(classes []domain.AssetClass) []domain.AssetClass {
	seen := make(map[domain.AssetClass]bool, len(classes))
	result := classes[:0]
	for _, class := range classes {
		if !seen[class] {
			seen[class] = true
			result = append(result, class)
		}
	}
	return result
}

// DefaultDeviceName derives the fallback display name from the device ID.
func DefaultDeviceName(deviceID string) string {
	short := deviceID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Device " + short
}

func marshalClasses(classes []domain.AssetClass) string {
	data, _ := json.Marshal(classes)
	return string(data)
}

func unmarshalClasses(data string) []domain.AssetClass {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil
	}
	result := make([]domain.AssetClass, 0, len(names))
	for _, name := range names {
		result = append(result, domain.AssetClass(name))
	}
	return result
}
