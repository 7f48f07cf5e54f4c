package domain

// AssetClass identifies which upstream adapter serves a symbol.
// It is a closed set: stocks, crypto, forex.
type AssetClass string

const (
	AssetClassStocks AssetClass = "stocks"
	AssetClassCrypto AssetClass = "crypto"
	AssetClassForex  AssetClass = "forex"
)

// AllAssetClasses returns every valid asset class in display order.
func AllAssetClasses() []AssetClass {
	return []AssetClass{AssetClassStocks, AssetClassCrypto, AssetClassForex}
}

// ParseAssetClass validates a string coming from the API or storage.
func ParseAssetClass(s string) (AssetClass, error) {
	switch AssetClass(s) {
	case AssetClassStocks, AssetClassCrypto, AssetClassForex:
		return AssetClass(s), nil
	}
	return "", &ValidationError{Reason: "Invalid asset class. Must be one of: stocks, forex, crypto"}
}

func (c AssetClass) String() string {
	return string(c)
}

// Valid reports whether the class is one of the closed set.
func (c AssetClass) Valid() bool {
	_, err := ParseAssetClass(string(c))
	return err == nil
}
