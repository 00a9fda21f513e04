package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/repository"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
)

const statsCachePrefix = "stats:averages:"

type averageStore interface {
	AveragesByDimension(ctx context.Context, dimension string) ([]models.ScoreAverage, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string)
}

// StatsService serves score analytics with a short-lived cache in front of
// the report view.
type StatsService struct {
	reports averageStore
	cache   cacheStore
	ttl     time.Duration
	logger  *zap.Logger
}

// NewStatsService constructs StatsService.
func NewStatsService(reports averageStore, cache cacheStore, ttl time.Duration, logger *zap.Logger) *StatsService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{reports: reports, cache: cache, ttl: ttl, logger: logger}
}

// Averages returns score averages grouped by the requested dimension, served
// from cache when fresh.
func (s *StatsService) Averages(ctx context.Context, dimension string) ([]models.ScoreAverage, error) {
	if !repository.ValidDimension(dimension) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grouping dimension")
	}
	key := statsCachePrefix + dimension
	var cached []models.ScoreAverage
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if err != appErrors.ErrCacheMiss {
		s.logger.Sugar().Warnw("stats cache read failed", "key", key, "error", err)
	}

	averages, err := s.reports.AveragesByDimension(ctx, dimension)
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	if err := s.cache.Set(ctx, key, averages, s.ttl); err != nil {
		s.logger.Sugar().Warnw("stats cache write failed", "key", key, "error", err)
	}
	return averages, nil
}

// InvalidateScores drops cached score analytics after a grade write.
func (s *StatsService) InvalidateScores(ctx context.Context) {
	s.cache.Invalidate(ctx, statsCachePrefix)
}
