package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-shift/internal/domain"
)

// DefaultHistoryTTL how long a served history stays usable as a fallback
const DefaultHistoryTTL = 24 * time.Hour

// HistoryCache last served history per owner, read back when the shift
// store is unavailable.
//
// key: shift:history:{ownerID}
// value: JSON array of domain.RecordView, newest first
type HistoryCache struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewHistoryCache(kv KV, ttl time.Duration, logger *zap.Logger) *HistoryCache {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &HistoryCache{kv: kv, ttl: ttl, logger: logger}
}

func historyKey(ownerID string) string {
	return fmt.Sprintf("shift:history:%s", ownerID)
}

// Put stores the owner's history views.
func (c *HistoryCache) Put(ctx context.Context, ownerID string, views []domain.RecordView) error {
	data, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := c.kv.Set(ctx, historyKey(ownerID), string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to set history cache: %w", err)
	}
	c.logger.Debug("Updated history cache", zap.String("owner_id", ownerID), zap.Int("records", len(views)))
	return nil
}

// Get returns the cached history or ErrMiss.
func (c *HistoryCache) Get(ctx context.Context, ownerID string) ([]domain.RecordView, error) {
	raw, err := c.kv.Get(ctx, historyKey(ownerID))
	if err != nil {
		return nil, err
	}
	var views []domain.RecordView
	if err := json.Unmarshal([]byte(raw), &views); err != nil {
		return nil, fmt.Errorf("failed to decode history cache: %w", err)
	}
	return views, nil
}

// Invalidate drops the owner's cached history.
func (c *HistoryCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.kv.Del(ctx, historyKey(ownerID))
}
