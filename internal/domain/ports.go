package domain

import "context"

// ListingsLookup returns price-per-unit values of comparable listings
// within radiusM meters of c. An empty slice is a valid answer.
type ListingsLookup interface {
	NearbyPrices(ctx context.Context, regionID string, c Centroid, radiusM float64) ([]float64, error)
}

// BuildingSource supplies estimate inputs for a region.
type BuildingSource interface {
	ListBuildings(ctx context.Context, regionID string, limit int) ([]EstimateInput, error)
}

type EstimateRepository interface {
	UpsertEstimates(ctx context.Context, rs []EstimateRecord) error
	GetEstimate(ctx context.Context, buildingID string) (EstimateView, error)
}

// ModelStore returns the raw exported model artifact.
type ModelStore interface {
	Load(ctx context.Context) ([]byte, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
