package app

import (
	"context"
	"time"

	"solar_price/internal/domain"
)

type QueryService struct {
	repo     domain.EstimateRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.EstimateRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// GetEstimate serves the persisted estimate of a building, cache-aside.
// Expired rows are reported as domain.ErrNotFound by the repository.
func (s *QueryService) GetEstimate(ctx context.Context, buildingID string) (domain.EstimateView, error) {
	key := viewKey(buildingID)
	var v domain.EstimateView
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &v); ok {
			return v, nil
		}
	}
	v, err := s.repo.GetEstimate(ctx, buildingID)
	if err != nil {
		return domain.EstimateView{}, err
	}
	ttl := s.cacheTTL
	if left := time.Until(v.ExpiresAt); left < ttl {
		ttl = left
	}
	if s.cache != nil && ttl >= time.Second {
		_ = s.cache.Set(ctx, key, v, int(ttl.Seconds()))
	}
	return v, nil
}
