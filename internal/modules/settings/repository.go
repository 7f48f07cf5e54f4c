package settings

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Credential keys stored in the config table.
const (
	KeyAlpacaAPIKey     = "alpaca_api_key"
	KeyAlpacaAPISecret  = "alpaca_api_secret"
	KeyTwelveDataAPIKey = "twelve_data_api_key"
)

// Repository handles the config key/value table. Upstream credentials live
// here so the operator can rotate them without touching the environment.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new settings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get retrieves a setting value by key. Returns nil when the key is absent.
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set stores a setting value.
func (r *Repository) Set(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.Exec(`
		INSERT INTO config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetAll retrieves all settings as a map.
func (r *Repository) GetAll() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM config")
	if err != nil {
		return nil, fmt.Errorf("failed to get all settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan setting row")
			continue
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return result, nil
}

// GetInt retrieves a setting value as an integer.
func (r *Repository) GetInt(key string, defaultValue int) (int, error) {
	value, err := r.Get(key)
	if err != nil {
		return defaultValue, err
	}
	if value == nil {
		return defaultValue, nil
	}

	intVal, err := strconv.Atoi(*value)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Str("value", *value).Msg("Failed to parse int setting")
		return defaultValue, nil
	}
	return intVal, nil
}

// GetBool retrieves a setting value as a boolean.
func (r *Repository) GetBool(key string, defaultValue bool) (bool, error) {
	value, err := r.Get(key)
	if err != nil {
		return defaultValue, err
	}
	if value == nil {
		return defaultValue, nil
	}

	switch *value {
	case "true", "1", "yes", "on":
		return true, nil
	}
	return false, nil
}

// Delete deletes a setting.
func (r *Repository) Delete(key string) error {
	_, err := r.db.Exec("DELETE FROM config WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
