package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/dto"
	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/realtime"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

const overviewCacheKey = "overview:summary"

type touristStatsRepository interface {
	CountByDerivedStatus(ctx context.Context) ([]models.StatusCount, error)
}

type statusCounter interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type requestStatsRepository interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	ListRecentPending(ctx context.Context, limit int) ([]models.GuideRequestDetail, error)
}

// OverviewServiceConfig tunes overview behaviour.
type OverviewServiceConfig struct {
	CacheTTL           time.Duration
	RecentPendingLimit int
}

// OverviewService composes the back-office landing summary. Results are
// cached in Redis and invalidated by change-feed activity; when a recompute
// fails the last good snapshot is served instead of an error.
type OverviewService struct {
	tourists    touristStatsRepository
	guides      statusCounter
	assignments statusCounter
	requests    requestStatsRepository
	drivers     statusCounter
	cache       *CacheService
	feed        *realtime.Feed
	logger      *zap.Logger
	now         func() time.Time
	cfg         OverviewServiceConfig

	staleMu sync.Mutex
	stale   *dto.OverviewResponse
}

// OverviewServiceParams groups constructor dependencies.
type OverviewServiceParams struct {
	Tourists    touristStatsRepository
	Guides      statusCounter
	Assignments statusCounter
	Requests    requestStatsRepository
	Drivers     statusCounter
	Cache       *CacheService
	Feed        *realtime.Feed
	Logger      *zap.Logger
	Config      OverviewServiceConfig
}

// NewOverviewService constructs an OverviewService with sane defaults.
func NewOverviewService(params OverviewServiceParams) *OverviewService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.RecentPendingLimit <= 0 {
		cfg.RecentPendingLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverviewService{
		tourists:    params.Tourists,
		guides:      params.Guides,
		assignments: params.Assignments,
		requests:    params.Requests,
		drivers:     params.Drivers,
		cache:       params.Cache,
		feed:        params.Feed,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Summary returns the overview payload and indicates cache utilisation.
func (s *OverviewService) Summary(ctx context.Context) (*dto.OverviewResponse, bool, error) {
	if summary, hit := s.tryCache(ctx); hit {
		return summary, true, nil
	}

	summary, err := s.compose(ctx)
	if err != nil {
		s.staleMu.Lock()
		stale := s.stale
		s.staleMu.Unlock()
		if stale != nil {
			s.logger.Warn("overview recompute failed, serving last snapshot", zap.Error(err))
			return stale, false, nil
		}
		return nil, false, err
	}

	s.staleMu.Lock()
	s.stale = summary
	s.staleMu.Unlock()
	s.persistCache(ctx, summary)
	return summary, false, nil
}

// Watch invalidates the cached overview whenever the change feed reports
// activity. It blocks until ctx is cancelled or the feed shuts down.
func (s *OverviewService) Watch(ctx context.Context) {
	if s.feed == nil {
		return
	}
	updates, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if s.cache != nil {
				if err := s.cache.Invalidate(ctx, overviewCacheKey); err != nil {
					s.logger.Warn("overview cache invalidation failed", zap.Error(err))
				}
			}
		}
	}
}

func (s *OverviewService) tryCache(ctx context.Context) (*dto.OverviewResponse, bool) {
	if s.cache == nil {
		return nil, false
	}
	var cached dto.OverviewResponse
	hit, err := s.cache.Get(ctx, overviewCacheKey, &cached)
	if err != nil || !hit {
		return nil, false
	}
	return &cached, true
}

func (s *OverviewService) persistCache(ctx context.Context, summary *dto.OverviewResponse) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, overviewCacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("overview cache write failed", zap.Error(err))
	}
}

func (s *OverviewService) compose(ctx context.Context) (*dto.OverviewResponse, error) {
	touristCounts, err := s.tourists.CountByDerivedStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count tourists")
	}
	guideCounts, err := s.guides.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count guides")
	}
	assignmentCounts, err := s.assignments.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
	}
	requestCounts, err := s.requests.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count guide requests")
	}
	driverCounts, err := s.drivers.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count drivers")
	}
	pending, err := s.requests.ListRecentPending(ctx, s.cfg.RecentPendingLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}

	summary := &dto.OverviewResponse{
		GeneratedAt: s.now().UTC(),
		Tourists:    buildBreakdown(touristCounts),
		Guides:      buildBreakdown(guideCounts),
		Assignments: buildBreakdown(assignmentCounts),
		Requests:    buildBreakdown(requestCounts),
		Drivers:     buildBreakdown(driverCounts),
	}
	for _, request := range pending {
		summary.Pending = append(summary.Pending, dto.PendingRequestSummary{
			ID:          request.ID,
			TouristID:   request.TouristID,
			TouristName: request.TouristName,
			Adults:      request.Adults,
			Children:    request.Children,
			Note:        request.Note,
			CreatedAt:   request.CreatedAt,
		})
	}
	return summary, nil
}

func buildBreakdown(counts []models.StatusCount) dto.StatusBreakdown {
	breakdown := dto.StatusBreakdown{ByStatus: make(map[string]int, len(counts))}
	for _, count := range counts {
		breakdown.Total += count.Count
		breakdown.ByStatus[count.Status] = count.Count
	}
	return breakdown
}
