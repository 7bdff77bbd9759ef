package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"solar_price/internal/domain"
)

type RefreshStats struct {
	Buildings int
	Stored    int
	ByMethod  map[domain.Method]int
}

// RefreshService recomputes and persists estimates for whole regions.
type RefreshService struct {
	source domain.BuildingSource
	engine *Engine
	repo   domain.EstimateRepository
	cache  domain.Cache
	ttl    time.Duration
	now    func() time.Time
}

func NewRefreshService(src domain.BuildingSource, e *Engine, r domain.EstimateRepository, cache domain.Cache) *RefreshService {
	return &RefreshService{
		source: src,
		engine: e,
		repo:   r,
		cache:  cache,
		ttl:    time.Duration(e.Options().CacheTTLHours) * time.Hour,
		now:    time.Now,
	}
}

func (s *RefreshService) RefreshRegion(ctx context.Context, regionID string, limit int) (RefreshStats, error) {
	st := RefreshStats{ByMethod: map[domain.Method]int{}}

	ins, err := s.source.ListBuildings(ctx, regionID, limit)
	if err != nil {
		// unknown region on the source side: nothing to refresh
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Str("region", regionID).Msg("no buildings for region")
			return st, nil
		}
		return st, fmt.Errorf("list buildings %s: %w", regionID, err)
	}
	st.Buildings = len(ins)
	if len(ins) == 0 {
		return st, nil
	}
	for i := range ins {
		if ins[i].RegionID == "" {
			ins[i].RegionID = regionID
		}
	}

	outs := s.engine.EstimateBulk(ctx, ins)
	for _, o := range outs {
		st.ByMethod[o.Method]++
	}

	rs := toRecords(ins, outs, s.now(), s.ttl)
	if err := s.repo.UpsertEstimates(ctx, rs); err != nil {
		return st, fmt.Errorf("upsert estimates %s: %w", regionID, err)
	}
	st.Stored = len(rs)

	// drop stale views so the API serves the fresh rows
	if s.cache != nil {
		for _, r := range rs {
			_ = s.cache.Del(ctx, viewKey(r.BuildingID))
		}
	}
	return st, nil
}
