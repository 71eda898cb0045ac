package domain

import "time"

// OHLCVPoint is one candlestick period as consumed by the dashboard charts.
// Open/High/Low/Close are finite; Volume is non-negative and may be zero.
// The low<=min(open,close) / high>=max(open,close) envelope is NOT enforced
// here, to preserve authentic upstream values; chart consumers must tolerate
// violations.
type OHLCVPoint struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
