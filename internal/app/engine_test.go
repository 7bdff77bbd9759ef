package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"solar_price/internal/app"
	"solar_price/internal/domain"
	"solar_price/internal/pricing/ml"
)

func swissInput(id string) domain.EstimateInput {
	return domain.EstimateInput{
		BuildingID:     id,
		RegionID:       "ch-monthey",
		BuildingType:   "apartments",
		BuildingLevels: ptr(5),
		Proximity:      domain.Proximity{HasMountainView: ptr(true)},
	}
}

func TestEngine_AggregatedByDefault(t *testing.T) {
	e := app.NewEngine(nil, nil, nil, ml.NewPredictor(nil), app.Options{})
	if e.MLAvailable() {
		t.Fatal("ML must be opt-in")
	}
	out := e.Estimate(context.Background(), swissInput("b1"))
	if out.Method != domain.MethodAggregated || out.PricePerUnit != 9330 || out.Confidence != 0.75 {
		t.Fatalf("unexpected: %+v", out)
	}
	if out.BuildingID != "b1" || out.Total != nil {
		t.Fatalf("id/total: %+v", out)
	}
	o := e.Options()
	if o.BatchSize != 10 || o.CacheTTLHours != 24 || o.SearchRadiusM != 500 {
		t.Fatalf("defaults: %+v", o)
	}
}

func TestEngine_FallbackLaw(t *testing.T) {
	ctx := context.Background()
	base := app.NewEngine(nil, nil, nil, nil, app.Options{})
	want := base.Estimate(ctx, swissInput("b1"))

	cases := map[string]fakePredictor{
		"too high":      {ratio: 2.5},
		"too low":       {ratio: 0.3},
		"predict error": {err: errBoom},
		"negative":      {price: -100},
	}
	for name, p := range cases {
		e := app.NewEngine(nil, nil, nil, p, app.Options{UseML: true})
		got := e.Estimate(ctx, swissInput("b1"))
		if got.Method != want.Method || got.PricePerUnit != want.PricePerUnit || got.Confidence != want.Confidence {
			t.Errorf("%s: got %+v want %+v", name, got, want)
		}
	}
}

func TestEngine_MLAccepted(t *testing.T) {
	e := app.NewEngine(nil, nil, nil, fakePredictor{price: 10000}, app.Options{UseML: true})
	in := swissInput("b2")
	in.Area = ptr(80.0)
	out := e.Estimate(context.Background(), in)
	if out.Method != domain.MethodML {
		t.Fatalf("method: %s", out.Method)
	}
	if out.PricePerUnit != 10000 || out.Confidence != 0.8 {
		t.Fatalf("ml result: %+v", out)
	}
	if out.Total == nil || *out.Total != 800000 {
		t.Fatalf("total: %v", out.Total)
	}
	if out.Details["aggregatedPrice"] != 9330.0 || out.Details["modelVersion"] != "fake-1" {
		t.Fatalf("details: %+v", out.Details)
	}
	if _, ok := out.Details["mlFeatures"]; !ok {
		t.Fatal("features should be exposed in details")
	}
}

func TestEngine_PlaceholderModelGatedInFlorida(t *testing.T) {
	e := app.NewEngine(nil, nil, nil, ml.NewPredictor(nil), app.Options{UseML: true})
	out := e.Estimate(context.Background(), domain.EstimateInput{
		RegionID:  "us-fl-default",
		Proximity: domain.Proximity{DistanceToWaterMiles: ptr(0.0)},
	})
	// placeholder predicts ~6500 against 300 $/sqft
	if out.Method != domain.MethodAggregated || out.PricePerUnit != 300 || out.Confidence != 0.55 {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestEngine_ListingsFailureDoesNotBlock(t *testing.T) {
	in := swissInput("b3")
	in.Centroid = &domain.Centroid{Lng: 6.95, Lat: 46.25}

	failing := &fakeListings{err: errBoom}
	out := app.NewEngine(nil, failing, nil, nil, app.Options{}).Estimate(context.Background(), in)
	if out.PricePerUnit != 9330 || out.Details["nearbyListings"] != 0 {
		t.Fatalf("unexpected: %+v", out)
	}

	slow := &fakeListings{prices: []float64{1, 2, 3}, delay: time.Second}
	start := time.Now()
	out = app.NewEngine(nil, slow, nil, nil, app.Options{ListingsTimeout: 20 * time.Millisecond}).Estimate(context.Background(), in)
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("listings timeout not honoured")
	}
	if out.PricePerUnit != 9330 || out.Details["nearbyListings"] != 0 {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestEngine_ListingsFeedConfidence(t *testing.T) {
	in := swissInput("b4")
	in.Centroid = &domain.Centroid{Lng: 6.95, Lat: 46.25}
	l := &fakeListings{prices: []float64{9000, 9500, 10000}}
	out := app.NewEngine(nil, l, nil, nil, app.Options{}).Estimate(context.Background(), in)
	if out.PricePerUnit != 9330 || out.Confidence != 0.80 || out.Details["nearbyListings"] != 3 {
		t.Fatalf("unexpected: %+v", out)
	}

	// no centroid, no lookup
	_ = app.NewEngine(nil, l, nil, nil, app.Options{}).Estimate(context.Background(), swissInput("b5"))
	if l.calls != 1 {
		t.Fatalf("lookup without centroid: %d calls", l.calls)
	}
}

func TestEngine_BatchLaw(t *testing.T) {
	ctx := context.Background()
	regions := []string{"ch-sion", "ch-martigny", "us-fl-tampa", "berlin-mitte", "unknown"}
	types := []string{"", "office", "condo", "industrial"}
	var ins []domain.EstimateInput
	for i := 0; i < 37; i++ {
		ins = append(ins, domain.EstimateInput{
			BuildingID:     fmt.Sprintf("b%d", i),
			RegionID:       regions[i%len(regions)],
			BuildingType:   types[i%len(types)],
			BuildingLevels: ptr(i % 9),
			Area:           ptr(float64(50 + i)),
			Centroid:       &domain.Centroid{Lng: 13.4 + float64(i)/1000, Lat: 52.52},
		})
	}
	for _, size := range []int{1, 3, 10, 100} {
		l := &fakeListings{prices: []float64{5000, 6000, 7000}, delay: time.Millisecond}
		e := app.NewEngine(nil, l, nil, fakePredictor{ratio: 1.2}, app.Options{UseML: true, BatchSize: size})
		got := e.EstimateBulk(ctx, ins)
		if len(got) != len(ins) {
			t.Fatalf("size %d: %d outputs", size, len(got))
		}
		ref := app.NewEngine(nil, &fakeListings{prices: l.prices}, nil, fakePredictor{ratio: 1.2}, app.Options{UseML: true})
		for i := range ins {
			if !reflect.DeepEqual(got[i], ref.Estimate(ctx, ins[i])) {
				t.Fatalf("size %d: output %d differs from single estimate", size, i)
			}
		}
		if l.peak > int32(size) {
			t.Fatalf("size %d: %d concurrent lookups", size, l.peak)
		}
	}
}

func TestEngine_Idempotent(t *testing.T) {
	e := app.NewEngine(nil, &fakeListings{prices: []float64{7000, 8000}}, nil, nil, app.Options{})
	in := swissInput("b6")
	in.Centroid = &domain.Centroid{Lng: 6.95, Lat: 46.25}
	a := e.Estimate(context.Background(), in)
	b := e.Estimate(context.Background(), in)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestEngine_CachedMatchesFreshOnTheWire(t *testing.T) {
	ctx := context.Background()
	cache := &jsonCache{}
	e := app.NewEngine(nil, &fakeListings{prices: []float64{7000, 8000, 9000}}, cache, nil, app.Options{CacheEnabled: true})
	in := swissInput("b6c")
	in.Centroid = &domain.Centroid{Lng: 6.95, Lat: 46.25}

	fresh := e.Estimate(ctx, in)
	if cache.size() != 1 {
		t.Fatalf("first call should fill the cache, size %d", cache.size())
	}
	cached := e.Estimate(ctx, in)

	a, err := json.Marshal(fresh)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(cached)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("cached answer differs:\n%s\n%s", a, b)
	}
}

func TestEngine_CacheHitAndErrors(t *testing.T) {
	ctx := context.Background()
	cache := &jsonCache{}
	l := &fakeListings{prices: []float64{9000, 9100, 9200}}
	e := app.NewEngine(nil, l, cache, nil, app.Options{CacheEnabled: true, CacheTTLHours: 2})
	in := swissInput("b7")
	in.Centroid = &domain.Centroid{Lng: 6.95, Lat: 46.25}

	first := e.Estimate(ctx, in)
	if cache.size() != 1 {
		t.Fatalf("expected one cached estimate, got %d", cache.size())
	}
	for _, ttl := range cache.ttl {
		if ttl != 7200 {
			t.Fatalf("ttl: %d", ttl)
		}
	}
	second := e.Estimate(ctx, in)
	if l.calls != 1 {
		t.Fatalf("second call should be served from cache, lookups=%d", l.calls)
	}
	if second.PricePerUnit != first.PricePerUnit || second.Method != first.Method {
		t.Fatalf("cached mismatch: %+v vs %+v", second, first)
	}

	// a different input is a different key
	in.BuildingLevels = ptr(9)
	_ = e.Estimate(ctx, in)
	if cache.size() != 2 {
		t.Fatalf("expected two keys, got %d", cache.size())
	}

	broken := &jsonCache{err: errBoom}
	out := app.NewEngine(nil, nil, broken, nil, app.Options{CacheEnabled: true}).Estimate(ctx, swissInput("b8"))
	if out.PricePerUnit != 9330 {
		t.Fatalf("cache failure must not block: %+v", out)
	}

	off := &jsonCache{}
	_ = app.NewEngine(nil, nil, off, nil, app.Options{CacheEnabled: false}).Estimate(ctx, swissInput("b9"))
	if off.size() != 0 {
		t.Fatal("cache disabled but written")
	}
}

func TestEngine_DefaultMarketOption(t *testing.T) {
	e := app.NewEngine(nil, nil, nil, nil, app.Options{DefaultMarket: "de-berlin"})
	out := e.Estimate(context.Background(), domain.EstimateInput{RegionID: "somewhere"})
	if out.Currency != "EUR" || out.Details["regionId"] != "berlin-default" {
		t.Fatalf("unexpected: %+v", out)
	}
}
