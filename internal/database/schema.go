package database

// schema is the complete hub schema. One file, five tables:
// operator config (credentials), the watchlist, latest prices, devices and
// their display settings.
const schema = `
CREATE TABLE IF NOT EXISTS config (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT
);

CREATE TABLE IF NOT EXISTS selected_assets (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol      TEXT NOT NULL,
    asset_class TEXT NOT NULL,
    enabled     INTEGER NOT NULL DEFAULT 1,
    UNIQUE(symbol, asset_class)
);

CREATE TABLE IF NOT EXISTS asset_prices (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol       TEXT NOT NULL,
    asset_class  TEXT NOT NULL,
    date         TEXT NOT NULL,
    open_price   REAL,
    prev_close   REAL,
    last_price   REAL,
    last_updated TEXT,
    UNIQUE(symbol, asset_class, date)
);

CREATE INDEX IF NOT EXISTS idx_asset_prices_key
    ON asset_prices(symbol, asset_class, date);

CREATE TABLE IF NOT EXISTS devices (
    device_id   TEXT PRIMARY KEY,
    device_name TEXT,
    device_type TEXT,
    first_seen  TEXT,
    last_seen   TEXT,
    enabled     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS device_settings (
    device_id       TEXT PRIMARY KEY REFERENCES devices(device_id),
    scroll_mode     TEXT NOT NULL DEFAULT 'single',
    scroll_speed    INTEGER NOT NULL DEFAULT 100,
    brightness      INTEGER NOT NULL DEFAULT 10,
    update_interval INTEGER NOT NULL DEFAULT 300,
    top_sources     TEXT NOT NULL DEFAULT '["stocks"]',
    bottom_sources  TEXT NOT NULL DEFAULT '["crypto","forex"]',
    dwell_seconds   REAL NOT NULL DEFAULT 3,
    asset_order     TEXT NOT NULL DEFAULT '["stocks","crypto","forex"]',
    font            TEXT NOT NULL DEFAULT 'default',
    updated_at      TEXT NOT NULL
);
`
