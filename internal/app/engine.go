package app

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"solar_price/internal/adapters/observability"
	"solar_price/internal/domain"
	"solar_price/internal/pricing"
	"solar_price/internal/pricing/ml"
)

// Sanity gate for ML results relative to the aggregated price.
const (
	minMLRatio = 0.5
	maxMLRatio = 2.0
)

// PricePredictor is the Stage B model. *ml.Predictor implements it.
type PricePredictor interface {
	Predict(f ml.Features) (float64, error)
	Confidence(f ml.Features) float64
	Version() string
}

type Options struct {
	UseML           bool
	CacheEnabled    bool
	CacheTTLHours   int
	SearchRadiusM   float64
	BatchSize       int
	ListingsTimeout time.Duration
	DefaultMarket   string
}

func DefaultOptions() Options {
	return Options{
		UseML:           false,
		CacheEnabled:    true,
		CacheTTLHours:   24,
		SearchRadiusM:   500,
		BatchSize:       10,
		ListingsTimeout: 800 * time.Millisecond,
		DefaultMarket:   string(pricing.MarketSwiss),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CacheTTLHours <= 0 {
		o.CacheTTLHours = d.CacheTTLHours
	}
	if o.SearchRadiusM <= 0 {
		o.SearchRadiusM = d.SearchRadiusM
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.ListingsTimeout <= 0 {
		o.ListingsTimeout = d.ListingsTimeout
	}
	if o.DefaultMarket == "" {
		o.DefaultMarket = d.DefaultMarket
	}
	return o
}

// Engine composes the aggregator and the optional ML stage. Every collaborator
// except the aggregator may be nil.
type Engine struct {
	agg       *pricing.Aggregator
	listings  domain.ListingsLookup
	cache     domain.Cache
	predictor PricePredictor
	opts      Options
}

func NewEngine(agg *pricing.Aggregator, listings domain.ListingsLookup, cache domain.Cache, p PricePredictor, opts Options) *Engine {
	if agg == nil {
		agg = pricing.NewAggregator(nil)
	}
	return &Engine{agg: agg, listings: listings, cache: cache, predictor: p, opts: opts.withDefaults()}
}

func (e *Engine) Options() Options { return e.opts }

func (e *Engine) MLAvailable() bool { return e.opts.UseML && e.predictor != nil }

func (e *Engine) Registry() *pricing.Registry { return e.agg.Registry() }

// Estimate never fails. Listings, cache and model problems degrade to the
// aggregated result.
func (e *Engine) Estimate(ctx context.Context, in domain.EstimateInput) domain.EstimateOutput {
	if in.Market == "" {
		in.Market = e.opts.DefaultMarket
	}

	var key string
	if e.cache != nil && e.opts.CacheEnabled {
		key = estimateKey(in, e.Registry().Version(), e.MLAvailable())
		var cached domain.EstimateOutput
		ok, err := e.cache.Get(ctx, key, &cached)
		if err != nil {
			observability.ObserveCache("estimate", "error")
			log.Warn().Err(err).Str("building", in.BuildingID).Msg("estimate cache get failed")
		} else if ok {
			// decoded details hold plain JSON values; only the encoding
			// matches the fresh output
			return cached
		}
	}

	agg := e.agg.Estimate(in, e.nearbyPrices(ctx, in))
	out := agg.ToEstimate(in.BuildingID)
	if e.MLAvailable() {
		if refined, ok := e.refine(in, agg); ok {
			out = refined
		}
	}
	observability.ObserveEstimate(string(agg.Market), string(out.Method))

	if key != "" {
		if err := e.cache.Set(ctx, key, out, e.opts.CacheTTLHours*3600); err != nil {
			observability.ObserveCache("estimate", "error")
			log.Warn().Err(err).Str("building", in.BuildingID).Msg("estimate cache set failed")
		}
	}
	return out
}

// EstimateBulk runs fixed-size chunks, each chunk concurrently. Output order
// matches input order.
func (e *Engine) EstimateBulk(ctx context.Context, ins []domain.EstimateInput) []domain.EstimateOutput {
	out := make([]domain.EstimateOutput, len(ins))
	for start := 0; start < len(ins); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(ins))
		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				out[i] = e.Estimate(ctx, ins[i])
				return nil
			})
		}
		_ = g.Wait()
	}
	return out
}

func (e *Engine) nearbyPrices(ctx context.Context, in domain.EstimateInput) []float64 {
	if e.listings == nil || in.Centroid == nil {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, e.opts.ListingsTimeout)
	defer cancel()
	prices, err := e.listings.NearbyPrices(lctx, in.RegionID, *in.Centroid, e.opts.SearchRadiusM)
	if err != nil {
		observability.ObserveListingsFailure()
		log.Warn().Err(err).Str("building", in.BuildingID).Str("region", in.RegionID).Msg("listings lookup failed, using coefficients only")
		return nil
	}
	return prices
}

// refine runs Stage B anchored on the aggregated result. ok is false when the
// ML result must be discarded.
func (e *Engine) refine(in domain.EstimateInput, agg pricing.Output) (domain.EstimateOutput, bool) {
	if agg.Method != domain.MethodAggregated || agg.PricePerUnit <= 0 {
		observability.ObserveMLFallback("no_anchor")
		return domain.EstimateOutput{}, false
	}
	f := ml.Extract(in, agg)
	price, err := e.predictor.Predict(f)
	if err != nil {
		observability.ObserveMLFallback("predict_error")
		log.Warn().Err(err).Str("building", in.BuildingID).Msg("ml prediction failed, using aggregation")
		return domain.EstimateOutput{}, false
	}
	ratio := price / agg.PricePerUnit
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || price < 0 {
		observability.ObserveMLFallback("non_finite")
		return domain.EstimateOutput{}, false
	}
	if ratio < minMLRatio || ratio > maxMLRatio {
		observability.ObserveMLFallback("ratio")
		log.Debug().
			Str("building", in.BuildingID).
			Float64("ml", price).
			Float64("aggregated", agg.PricePerUnit).
			Float64("ratio", ratio).
			Msg("ml prediction out of range, using aggregation")
		return domain.EstimateOutput{}, false
	}

	details := agg.Details()
	details["aggregatedPrice"] = agg.PricePerUnit
	details["mlFeatures"] = f
	details["mlRatio"] = ratio
	details["modelVersion"] = e.predictor.Version()

	out := domain.EstimateOutput{
		BuildingID:   in.BuildingID,
		PricePerUnit: price,
		Currency:     agg.Currency,
		Unit:         agg.Unit,
		Method:       domain.MethodML,
		Confidence:   e.predictor.Confidence(f),
		Details:      details,
	}
	if in.Area != nil && *in.Area > 0 {
		t := pricing.RoundTotal(price, *in.Area)
		out.Total = &t
	}
	return out, true
}
