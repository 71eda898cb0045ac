package domain

import "time"

// Strength is the momentum label assigned by the scanning backend.
// It is relayed as-is; the dashboard never computes it locally.
type Strength string

const (
	StrengthNeutral       Strength = "Neutral"
	StrengthBullish       Strength = "Bullish"
	StrengthStrongBullish Strength = "Strong Bullish"
	StrengthBearish       Strength = "Bearish"
	StrengthStrongBearish Strength = "Strong Bearish"
)

// Category is a filter key for derived views over a scan result.
type Category string

const (
	CategoryNeutral       Category = "neutral"
	CategoryStrongBullish Category = "strong_bullish"
	CategoryStrongBearish Category = "strong_bearish"
)

// Valid reports whether c is one of the known filter keys.
func (c Category) Valid() bool {
	switch c {
	case CategoryNeutral, CategoryStrongBullish, CategoryStrongBearish:
		return true
	}
	return false
}

// Matches reports whether a coin with strength s belongs to the category.
func (c Category) Matches(s Strength) bool {
	switch c {
	case CategoryNeutral:
		return s == StrengthNeutral
	case CategoryStrongBullish:
		return s == StrengthStrongBullish
	case CategoryStrongBearish:
		return s == StrengthStrongBearish
	}
	return false
}

type Coin struct {
	ID                string   `json:"id"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	CurrentPrice      float64  `json:"current_price"`
	MarketCap         float64  `json:"market_cap"`
	TotalVolume       float64  `json:"total_volume"`
	RSI               float64  `json:"rsi"`
	Strength          Strength `json:"strength"`
	PriceChangePct1h  float64  `json:"price_change_percentage_1h"`
	PriceChangePct24h float64  `json:"price_change_percentage_24h"`
	PriceChangePct7d  float64  `json:"price_change_percentage_7d"`
}

// ScanResult is the last scan response together with when it was fetched.
// Data is always non-nil; normalization wraps bare payloads before storing.
type ScanResult struct {
	Data      []Coin    `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}
