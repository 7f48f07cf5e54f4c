package assets

import "github.com/Tickertronix/Tickertronix-Open/internal/domain"

// SelectedAsset is one watchlist entry. Disabled assets keep their price
// history but are neither refreshed nor exposed in price listings.
type SelectedAsset struct {
	Symbol     string            `json:"symbol"`
	AssetClass domain.AssetClass `json:"asset_class"`
	Enabled    bool              `json:"enabled"`
}

// AddAssetRequest is the POST /assets body.
type AddAssetRequest struct {
	Symbol     string `json:"symbol"`
	AssetClass string `json:"asset_class"`
}

// SetEnabledRequest toggles refresh/exposure for an asset or device.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}
