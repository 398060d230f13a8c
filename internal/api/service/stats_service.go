package service

import (
	"context"
	"strings"

	"studio"
	"studio/internal/api/models"
	"studio/internal/api/repo"

	"github.com/rs/zerolog"
)

const defaultRecommendLimit = 5

// StatsService keeps per node type counts of which fields get exposed as
// parameters. It serves as the statistics collaborator when no remote
// statistics service is configured.
type StatsService struct {
	logger   zerolog.Logger
	statRepo repo.StatRepository
}

func NewStatsService() *StatsService {
	return &StatsService{
		logger:   studio.Logger,
		statRepo: *repo.NewStatRepository(),
	}
}

// Report counts each item once. Items with an empty class type or field are skipped.
func (s *StatsService) Report(ctx context.Context, items []models.UsageItem) error {
	valid := make([]models.UsageItem, 0, len(items))
	for _, item := range items {
		item.ClassType = strings.TrimSpace(item.ClassType)
		item.Field = strings.TrimSpace(item.Field)
		if item.ClassType == "" || item.Field == "" {
			continue
		}
		valid = append(valid, item)
	}
	if len(valid) == 0 {
		return nil
	}
	if err := s.statRepo.Increment(ctx, valid); err != nil {
		s.logger.Error().Err(err).Int("items", len(valid)).Msg("Failed to record parameter usage")
		return err
	}
	return nil
}

// Recommend returns the most exposed fields of classType. A limit <= 0 means 5.
func (s *StatsService) Recommend(ctx context.Context, classType string, limit int) ([]models.FieldStat, error) {
	if limit <= 0 {
		limit = defaultRecommendLimit
	}
	rows, err := s.statRepo.TopFields(ctx, classType, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("class_type", classType).Msg("Failed to load recommendations")
		return nil, err
	}
	stats := make([]models.FieldStat, len(rows))
	for i, row := range rows {
		stats[i] = models.FieldStat{Field: row.Field, Count: row.Count}
	}
	return stats, nil
}
