package usecase

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/coinsight/crypto_screener/internal/domain"
)

// HistorySeries is the chart-ready form of an upstream history payload.
// Dropped counts records rejected for non-numeric OHLC values, so data
// quality regressions upstream are visible instead of silently truncating
// the series.
type HistorySeries struct {
	Points     []domain.OHLCVPoint `json:"data"`
	Categories []string            `json:"categories"`
	Dropped    int                 `json:"dropped"`
}

// NormalizeHistory converts a heterogeneous history payload into a
// canonical OHLCV sequence. It accepts a bare array or an array nested
// under "data" or "history" (first non-empty wins). A record whose
// open/high/low/close does not parse to a finite number is dropped and
// counted; volume defaults to zero. Timestamps resolve from "time", then
// "timestamp", then are synthesized as now + index minutes so even
// timestamp-less feeds chart on a strictly increasing axis. Input order is
// preserved.
func NormalizeHistory(raw json.RawMessage) HistorySeries {
	series := HistorySeries{
		Points:     []domain.OHLCVPoint{},
		Categories: []string{},
	}

	records := extractRecords(raw)
	if len(records) == 0 {
		return series
	}

	now := time.Now()
	for i, rec := range records {
		open, ok1 := parseNumber(rec["open"])
		high, ok2 := parseNumber(rec["high"])
		low, ok3 := parseNumber(rec["low"])
		closePrice, ok4 := parseNumber(rec["close"])
		if !ok1 || !ok2 || !ok3 || !ok4 {
			series.Dropped++
			continue
		}

		volume, ok := parseNumber(rec["volume"])
		if !ok || volume < 0 {
			volume = 0
		}

		ts, ok := parseTimestamp(rec["time"])
		if !ok {
			ts, ok = parseTimestamp(rec["timestamp"])
		}
		if !ok {
			ts = now.Add(time.Duration(i) * time.Minute)
		}

		series.Points = append(series.Points, domain.OHLCVPoint{
			Time:   ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})

		if ts.IsZero() {
			series.Categories = append(series.Categories, strconv.Itoa(len(series.Points)))
		} else {
			series.Categories = append(series.Categories, strconv.Itoa(ts.Day()))
		}
	}

	return series
}

// extractRecords unwraps the history array: bare, then under "data", then
// under "history".
func extractRecords(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err == nil && len(records) > 0 {
		return records
	}

	var envelope struct {
		Data    []map[string]any `json:"data"`
		History []map[string]any `json:"history"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	if len(envelope.Data) > 0 {
		return envelope.Data
	}
	return envelope.History
}

// parseNumber accepts JSON numbers and numeric strings. NaN and infinities
// do not count as numbers.
func parseNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseTimestamp accepts RFC 3339 strings, date-only strings, and unix
// epochs in seconds or milliseconds.
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
		if epoch, err := strconv.ParseFloat(t, 64); err == nil {
			return epochToTime(epoch), true
		}
		return time.Time{}, false
	case float64:
		return epochToTime(t), true
	default:
		return time.Time{}, false
	}
}

func epochToTime(epoch float64) time.Time {
	// Millisecond epochs passed current-era second epochs by three orders
	// of magnitude; 1e12 separates them until the year 33658.
	if epoch >= 1e12 {
		return time.UnixMilli(int64(epoch))
	}
	return time.Unix(int64(epoch), 0)
}
