package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"solar_price/internal/domain"
	"solar_price/internal/pricing/ml"
)

// ---- fakes ----

type fakeListings struct {
	prices   []float64
	err      error
	delay    time.Duration
	calls    int32
	inflight int32
	peak     int32
}

func (f *fakeListings) NearbyPrices(ctx context.Context, regionID string, c domain.Centroid, radiusM float64) ([]float64, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.prices, f.err
}

type fakePredictor struct {
	price float64
	ratio float64 // when set, predicts ratio * aggregated price
	err   error
}

func (p fakePredictor) Predict(f ml.Features) (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.ratio != 0 {
		return p.ratio * f[ml.FeatureAggregated], nil
	}
	return p.price, nil
}
func (p fakePredictor) Confidence(f ml.Features) float64 { return 0.8 }
func (p fakePredictor) Version() string                  { return "fake-1" }

// jsonCache stores values as JSON like the redis adapter does.
type jsonCache struct {
	mu    sync.Mutex
	store map[string][]byte
	ttl   map[string]int
	err   error
	dels  []string
}

func (c *jsonCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *jsonCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.store == nil {
		c.store, c.ttl = map[string][]byte{}, map[string]int{}
	}
	b, _ := json.Marshal(v)
	c.store[key] = b
	c.ttl[key] = ttlSec
	return nil
}

func (c *jsonCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}

func (c *jsonCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

type fakeRepo struct {
	mu    sync.Mutex
	views map[string]domain.EstimateView
	saved []domain.EstimateRecord
	err   error
}

func (r *fakeRepo) UpsertEstimates(ctx context.Context, rs []domain.EstimateRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, rs...)
	return nil
}

func (r *fakeRepo) GetEstimate(ctx context.Context, buildingID string) (domain.EstimateView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[buildingID]
	if !ok {
		return domain.EstimateView{}, domain.ErrNotFound
	}
	return v, nil
}

type fakeSource struct {
	buildings map[string][]domain.EstimateInput
}

func (s fakeSource) ListBuildings(ctx context.Context, regionID string, limit int) ([]domain.EstimateInput, error) {
	bs, ok := s.buildings[regionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if limit > 0 && len(bs) > limit {
		bs = bs[:limit]
	}
	return bs, nil
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }
