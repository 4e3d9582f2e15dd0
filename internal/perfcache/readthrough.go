package perfcache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"planogram/internal/models"
	"planogram/internal/planogram"
)

// Source is the uncached lookup the read-through layer falls back to.
type Source interface {
	ListProductPerformanceByIDs(ctx context.Context, productIDs []string) ([]models.ProductPerformance, error)
}

const keyPrefix = "planogram:perf:"

type cachedRecord struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	AvgDailyRevenue float64 `json:"avg_daily_revenue"`
	AvgDailyUnits   float64 `json:"avg_daily_units"`
	DaysOfData      int     `json:"days_of_data"`
}

// ReadThrough serves history snapshots from the cache and fills misses from
// the store. Cache failures degrade to direct store reads.
type ReadThrough struct {
	source Source
	cache  Backend
	ttl    time.Duration
	logger *zap.Logger
}

func NewReadThrough(source Source, cache Backend, ttl time.Duration, logger *zap.Logger) *ReadThrough {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadThrough{source: source, cache: cache, ttl: ttl, logger: logger}
}

func (r *ReadThrough) Snapshot(ctx context.Context, productIDs []string) (planogram.HistorySnapshot, error) {
	snapshot := planogram.HistorySnapshot{}
	if r == nil || r.source == nil {
		return snapshot, nil
	}
	ids := dedupe(productIDs)
	if len(ids) == 0 {
		return snapshot, nil
	}

	misses := make([]string, 0, len(ids))
	for _, id := range ids {
		if r.cache == nil {
			misses = append(misses, id)
			continue
		}
		raw, found, err := r.cache.Get(ctx, keyPrefix+id)
		if err != nil {
			r.logger.Warn("perf cache get failed", zap.String("product_id", id), zap.Error(err))
			misses = append(misses, id)
			continue
		}
		if !found {
			misses = append(misses, id)
			continue
		}
		var rec cachedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.logger.Warn("perf cache entry corrupt", zap.String("product_id", id), zap.Error(err))
			misses = append(misses, id)
			continue
		}
		snapshot[id] = rec.history()
	}

	if len(misses) == 0 {
		return snapshot, nil
	}

	items, err := r.source.ListProductPerformanceByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		rec := cachedRecord{
			ProductID:       item.ProductID,
			Name:            item.Name,
			Category:        item.Category,
			AvgDailyRevenue: item.AvgDailyRevenue.InexactFloat64(),
			AvgDailyUnits:   item.AvgDailyUnits.InexactFloat64(),
			DaysOfData:      item.DaysOfData,
		}
		snapshot[item.ProductID] = rec.history()
		if r.cache == nil {
			continue
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if err := r.cache.Set(ctx, keyPrefix+item.ProductID, raw, r.ttl); err != nil {
			r.logger.Warn("perf cache set failed", zap.String("product_id", item.ProductID), zap.Error(err))
		}
	}
	return snapshot, nil
}

// Invalidate drops cached entries after an upsert so the next snapshot sees
// fresh numbers. Delete failures are logged and ignored; entries age out on
// TTL anyway.
func (r *ReadThrough) Invalidate(ctx context.Context, productIDs []string) {
	if r == nil || r.cache == nil {
		return
	}
	for _, id := range dedupe(productIDs) {
		if err := r.cache.Delete(ctx, keyPrefix+id); err != nil {
			r.logger.Warn("perf cache delete failed", zap.String("product_id", id), zap.Error(err))
		}
	}
}

func (rec cachedRecord) history() planogram.ProductHistory {
	return planogram.ProductHistory{
		ProductID:       rec.ProductID,
		Name:            rec.Name,
		Category:        rec.Category,
		AvgDailyRevenue: rec.AvgDailyRevenue,
		AvgDailyUnits:   rec.AvgDailyUnits,
		DaysOfData:      rec.DaysOfData,
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
