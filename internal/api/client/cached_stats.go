package client

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"studio/internal/api/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StatsBackend is the statistics collaborator: lookups and usage reports.
type StatsBackend interface {
	Recommend(ctx context.Context, classType string, limit int) ([]models.FieldStat, error)
	Report(ctx context.Context, items []models.UsageItem) error
}

const recommendKeyPrefix = "suggest:recommend:"

// CachedStats keeps recommendations in redis, one hash per node type with one
// field per limit. A report drops the hashes of every type it mentions.
// Any redis failure falls through to the backend.
type CachedStats struct {
	logger  zerolog.Logger
	redis   *redis.Client
	backend StatsBackend
	ttl     time.Duration
}

func NewCachedStats(rdb *redis.Client, backend StatsBackend, ttl time.Duration, logger zerolog.Logger) *CachedStats {
	return &CachedStats{logger: logger, redis: rdb, backend: backend, ttl: ttl}
}

func (slf *CachedStats) Recommend(ctx context.Context, classType string, limit int) ([]models.FieldStat, error) {
	key := recommendKeyPrefix + classType
	field := strconv.Itoa(limit)

	data, err := slf.redis.HGet(ctx, key, field).Bytes()
	switch {
	case err == nil:
		var stats []models.FieldStat
		if err := json.Unmarshal(data, &stats); err == nil {
			return stats, nil
		}
		slf.logger.Warn().Str("key", key).Msg("dropping unreadable cached recommendation")
	case !errors.Is(err, redis.Nil):
		slf.logger.Warn().Err(err).Str("key", key).Msg("recommendation cache unavailable")
	}

	stats, err := slf.backend.Recommend(ctx, classType, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stats); err == nil {
		pipe := slf.redis.TxPipeline()
		pipe.HSet(ctx, key, field, data)
		pipe.Expire(ctx, key, slf.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			slf.logger.Warn().Err(err).Str("key", key).Msg("failed to cache recommendation")
		}
	}
	return stats, nil
}

func (slf *CachedStats) Report(ctx context.Context, items []models.UsageItem) error {
	if err := slf.backend.Report(ctx, items); err != nil {
		return err
	}

	seen := make(map[string]bool)
	var keys []string
	for _, item := range items {
		if !seen[item.ClassType] {
			seen[item.ClassType] = true
			keys = append(keys, recommendKeyPrefix+item.ClassType)
		}
	}
	if len(keys) > 0 {
		if err := slf.redis.Del(ctx, keys...).Err(); err != nil {
			slf.logger.Warn().Err(err).Strs("keys", keys).Msg("failed to invalidate recommendations")
		}
	}
	return nil
}
