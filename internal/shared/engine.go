package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"solar_price/internal/adapters/modelstore"
	"solar_price/internal/app"
	"solar_price/internal/domain"
	"solar_price/internal/pricing"
	"solar_price/internal/pricing/ml"
)

// BuildEngine loads the coefficient tables and, when ML is on, the model
// artifact. Only a broken coefficient file is fatal; model problems fall back
// to the placeholder.
func BuildEngine(ctx context.Context, c Config, listings domain.ListingsLookup, cache domain.Cache) (*app.Engine, error) {
	reg, err := pricing.LoadRegistry(c.CoefficientsFile, pricing.MarketID(c.DefaultMarket))
	if err != nil {
		return nil, fmt.Errorf("coefficients: %w", err)
	}

	var predictor app.PricePredictor
	if c.UseML {
		store, err := modelstore.Select(c.ModelPath, c.ModelURL, c.ModelKey)
		if err != nil {
			return nil, fmt.Errorf("model store: %w", err)
		}
		lctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		p, err := ml.LoadPredictor(lctx, store)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("model not loaded, using placeholder")
		}
		log.Info().
			Str("model", p.Version()).
			Bool("placeholder", p.Placeholder()).
			Int("trees", p.Estimators()).
			Msg("predictor ready")
		predictor = p
	}

	e := app.NewEngine(pricing.NewAggregator(reg), listings, cache, predictor, c.EngineOptions())
	log.Info().
		Str("coefficients", reg.Version()).
		Int("regions", len(reg.Regions())).
		Bool("ml", e.MLAvailable()).
		Msg("engine ready")
	return e, nil
}
