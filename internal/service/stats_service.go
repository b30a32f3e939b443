package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/diploma-checker-api/internal/models"
)

const statsCacheKey = "stats:summary"

type studentCounter interface {
	Count(ctx context.Context) (int, error)
}

type verificationStatsReader interface {
	CountVerified(ctx context.Context) (int, error)
	SearchesSince(ctx context.Context, since time.Time) ([]models.SearchEntry, error)
}

// StatsService summarises verification activity for dashboards.
type StatsService struct {
	students studentCounter
	logs     verificationStatsReader
	cache    *CacheService
	ttl      time.Duration
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewStatsService constructs the stats service. cache may be nil.
func NewStatsService(students studentCounter, logs verificationStatsReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		students: students,
		logs:     logs,
		cache:    cache,
		ttl:      ttl,
		location: time.Local,
		now:      time.Now,
		logger:   logger,
	}
}

// Summary returns student and verification counts plus today's searches.
func (s *StatsService) Summary(ctx context.Context) (*models.StatsSnapshot, error) {
	var cached models.StatsSnapshot
	if s.cache.Get(ctx, statsCacheKey, &cached) {
		return &cached, nil
	}

	now := s.now().In(s.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	snapshot := &models.StatsSnapshot{GeneratedAt: now.UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.students.Count(gctx)
		snapshot.Students = total
		return err
	})
	g.Go(func() error {
		total, err := s.logs.CountVerified(gctx)
		snapshot.VerifiedCount = total
		return err
	})
	g.Go(func() error {
		entries, err := s.logs.SearchesSince(gctx, startOfDay)
		snapshot.TodaySearches = entries
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeError(err, "failed to compute statistics")
	}
	if snapshot.TodaySearches == nil {
		snapshot.TodaySearches = []models.SearchEntry{}
	}

	s.cache.Set(ctx, statsCacheKey, snapshot, s.ttl)
	return snapshot, nil
}
