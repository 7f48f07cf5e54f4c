package devices

import (
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// Repository handles device and device-settings persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new devices repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "devices").Logger(),
	}
}

// Register upserts a device. Known name/type survive when the caller passes
// empty strings; last_seen always advances. The first insert also seeds the
// settings row with defaults so GetSettings never misses for a registered
// device.
func (r *Repository) Register(deviceID, name, deviceType string, now time.Time) error {
	ts := now.UTC().Format(WatermarkFormat)

	tx, err := r.db.Begin()
	if err != nil {
		return &domain.StoreError{Op: "register device", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO devices (device_id, device_name, device_type, first_seen, last_seen, enabled)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(device_id) DO UPDATE SET
			device_name = COALESCE(NULLIF(excluded.device_name, ''), devices.device_name),
			device_type = COALESCE(NULLIF(excluded.device_type, ''), devices.device_type),
			last_seen = excluded.last_seen
	`, deviceID, name, deviceType, ts, ts)
	if err != nil {
		return &domain.StoreError{Op: "register device", Err: err}
	}

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO device_settings (device_id, updated_at) VALUES (?, ?)",
		deviceID, ts); err != nil {
		return &domain.StoreError{Op: "seed device settings", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StoreError{Op: "register device", Err: err}
	}
	return nil
}

// Get returns a device or nil when unknown.
func (r *Repository) Get(deviceID string) (*Device, error) {
	var d Device
	var enabled int
	err := r.db.QueryRow(`
		SELECT device_id, COALESCE(device_name, ''), COALESCE(device_type, ''),
		       COALESCE(first_seen, ''), COALESCE(last_seen, ''), enabled
		FROM devices WHERE device_id = ?
	`, deviceID).Scan(&d.DeviceID, &d.DeviceName, &d.DeviceType, &d.FirstSeen, &d.LastSeen, &enabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get device", Err: err}
	}
	d.Enabled = enabled != 0
	return &d, nil
}

// List returns all registered devices, most recently seen first.
func (r *Repository) List() ([]Device, error) {
	rows, err := r.db.Query(`
		SELECT device_id, COALESCE(device_name, ''), COALESCE(device_type, ''),
		       COALESCE(first_seen, ''), COALESCE(last_seen, ''), enabled
		FROM devices ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list devices", Err: err}
	}
	defer rows.Close()

	result := []Device{}
	for rows.Next() {
		var d Device
		var enabled int
		if err := rows.Scan(&d.DeviceID, &d.DeviceName, &d.DeviceType, &d.FirstSeen, &d.LastSeen, &enabled); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan device row")
			continue
		}
		d.Enabled = enabled != 0
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list devices", Err: err}
	}
	return result, nil
}

// SetEnabled toggles a device on or off.
func (r *Repository) SetEnabled(deviceID string, enabled bool) error {
	flag := 0
	if enabled {
		flag = 1
	}
	result, err := r.db.Exec("UPDATE devices SET enabled = ? WHERE device_id = ?", flag, deviceID)
	if err != nil {
		return &domain.StoreError{Op: "set device enabled", Err: err}
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetSettings returns the settings row for a device.
func (r *Repository) GetSettings(deviceID string) (*Settings, error) {
	var s Settings
	var top, bottom, order string
	err := r.db.QueryRow(`
		SELECT scroll_mode, scroll_speed, brightness, update_interval,
		       top_sources, bottom_sources, dwell_seconds, asset_order, font, updated_at
		FROM device_settings WHERE device_id = ?
	`, deviceID).Scan(&s.ScrollMode, &s.ScrollSpeed, &s.Brightness, &s.UpdateInterval,
		&top, &bottom, &s.DwellSeconds, &order, &s.Font, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get device settings", Err: err}
	}

	s.TopSources = unmarshalClasses(top)
	s.BottomSources = unmarshalClasses(bottom)
	s.AssetOrder = unmarshalClasses(order)
	return &s, nil
}

// UpdateSettings applies a partial update. Every successful call advances
// updated_at, even when the patch is empty — that is the watermark contract.
func (r *Repository) UpdateSettings(deviceID string, patch *SettingsPatch, now time.Time) error {
	set := []string{"updated_at = ?"}
	args := []interface{}{now.UTC().Format(WatermarkFormat)}

	appendField := func(column string, value interface{}) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}

	if patch.ScrollMode != nil {
		appendField("scroll_mode", *patch.ScrollMode)
	}
	if patch.ScrollSpeed != nil {
		appendField("scroll_speed", *patch.ScrollSpeed)
	}
	if patch.Brightness != nil {
		appendField("brightness", *patch.Brightness)
	}
	if patch.UpdateInterval != nil {
		appendField("update_interval", *patch.UpdateInterval)
	}
	if patch.TopSources != nil {
		appendField("top_sources", marshalClasses(patch.TopSources))
	}
	if patch.BottomSources != nil {
		appendField("bottom_sources", marshalClasses(patch.BottomSources))
	}
	if patch.DwellSeconds != nil {
		appendField("dwell_seconds", *patch.DwellSeconds)
	}
	if patch.AssetOrder != nil {
		appendField("asset_order", marshalClasses(patch.AssetOrder))
	}
	if patch.Font != nil {
		appendField("font", *patch.Font)
	}

	args = append(args, deviceID)
	result, err := r.db.Exec(
		"UPDATE device_settings SET "+strings.Join(set, ", ")+" WHERE device_id = ?",
		args...)
	if err != nil {
		return &domain.StoreError{Op: "update device settings", Err: err}
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Touch advances updated_at without changing any field, forcing every
// device that heartbeats to re-fetch its settings.
func (r *Repository) Touch(deviceID string, now time.Time) error {
	return r.UpdateSettings(deviceID, &SettingsPatch{}, now)
}
