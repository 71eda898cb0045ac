package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/coinsight/crypto_screener/internal/domain"
)

// ScanCache holds the last scan response in memory and mirrors it to the
// state repository on every mutation. Writes are last-write-wins; a
// generation counter discards responses that arrive after a newer scan has
// already landed.
type ScanCache struct {
	repo    domain.StateRepository
	logger  *zap.Logger
	timeNow func() time.Time

	seq atomic.Uint64

	mu      sync.RWMutex
	current *domain.ScanResult
	applied uint64
}

// NewScanCache hydrates from durable storage. A missing or corrupt stored
// payload starts the cache empty.
func NewScanCache(ctx context.Context, repo domain.StateRepository, logger *zap.Logger) *ScanCache {
	c := &ScanCache{
		repo:    repo,
		logger:  logger,
		timeNow: time.Now,
	}

	res, err := repo.LoadScanResult(ctx)
	if err != nil {
		logger.Error("Failed to hydrate scan cache", zap.Error(err))
		return c
	}
	c.current = res
	return c
}

// NextGeneration reserves a generation for a scan request about to be
// issued. Pass the value to Update when the response arrives.
func (c *ScanCache) NextGeneration() uint64 {
	return c.seq.Add(1)
}

// Update normalizes raw into the canonical {data: [...]} shape, stamps the
// fetch time, and persists. A generation older than one already applied is
// discarded and the cache keeps the newer result; the bool reports whether
// the update was applied. Generation 0 bypasses the staleness check.
func (c *ScanCache) Update(ctx context.Context, raw json.RawMessage, gen uint64) (*domain.ScanResult, bool) {
	res := normalizeScanPayload(raw)
	res.FetchedAt = c.timeNow()

	c.mu.Lock()
	if gen != 0 && gen <= c.applied {
		stale := c.current
		c.mu.Unlock()
		c.logger.Debug("Discarding stale scan response", zap.Uint64("generation", gen))
		return stale, false
	}
	if gen > c.applied {
		c.applied = gen
	}
	c.current = res
	c.mu.Unlock()

	// Persistence failures keep the in-memory value authoritative; the
	// next update gets another chance to write through.
	if err := c.repo.SaveScanResult(ctx, res); err != nil {
		c.logger.Error("Failed to persist scan result", zap.Error(err))
	}

	return res, true
}

// Get returns the cached result, or nil when no scan has landed yet.
// Callers must treat the coin slice as read-only.
func (c *ScanCache) Get() *domain.ScanResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	res := *c.current
	return &res
}

// FilterByCategory returns the coins matching cat. It never mutates the
// cached result, and a category with no matches yields an empty slice.
func (c *ScanCache) FilterByCategory(cat domain.Category) []domain.Coin {
	c.mu.RLock()
	defer c.mu.RUnlock()

	coins := []domain.Coin{}
	if c.current == nil {
		return coins
	}
	for _, coin := range c.current.Data {
		if cat.Matches(coin.Strength) {
			coins = append(coins, coin)
		}
	}
	return coins
}

// Clear removes the in-memory and persisted result.
func (c *ScanCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	return c.repo.ClearScanResult(ctx)
}

// normalizeScanPayload coerces whatever the backend returned into the
// canonical shape: an object with a coin array under "data". Bare arrays
// and bare coin objects are wrapped; anything unreadable becomes empty.
func normalizeScanPayload(raw json.RawMessage) *domain.ScanResult {
	res := &domain.ScanResult{Data: []domain.Coin{}}
	if len(raw) == 0 {
		return res
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		var coins []domain.Coin
		if err := json.Unmarshal(envelope.Data, &coins); err == nil {
			if coins != nil {
				res.Data = coins
			}
			return res
		}
		var coin domain.Coin
		if err := json.Unmarshal(envelope.Data, &coin); err == nil {
			res.Data = []domain.Coin{coin}
			return res
		}
		return res
	}

	var coins []domain.Coin
	if err := json.Unmarshal(raw, &coins); err == nil {
		if coins != nil {
			res.Data = coins
		}
		return res
	}

	var coin domain.Coin
	if err := json.Unmarshal(raw, &coin); err == nil {
		res.Data = []domain.Coin{coin}
	}
	return res
}
