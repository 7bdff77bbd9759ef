package pricing

import (
	"math"
	"sort"
	"strings"

	"solar_price/internal/domain"
)

// Landmark flags derived from a centroid when the caller did not supply them.
const (
	waterRadiusKm = 0.1
	parkRadiusKm  = 0.2
)

// Listings summarizes comparable listing prices near a building.
type Listings struct {
	Count  int
	Median float64
	Std    float64
}

// SummarizeListings drops non-positive and non-finite prices, then computes
// the median and population standard deviation of the rest.
func SummarizeListings(prices []float64) Listings {
	vs := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p) {
			vs = append(vs, p)
		}
	}
	if len(vs) == 0 {
		return Listings{}
	}
	sort.Float64s(vs)
	n := len(vs)
	med := vs[n/2]
	if n%2 == 0 {
		med = (vs[n/2-1] + vs[n/2]) / 2
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	mean := sum / float64(n)
	var ss float64
	for _, v := range vs {
		ss += (v - mean) * (v - mean)
	}
	return Listings{Count: n, Median: med, Std: math.Sqrt(ss / float64(n))}
}

// Breakdown itemizes every factor applied to the base price.
type Breakdown struct {
	Base           float64            `json:"base"`
	Type           float64            `json:"typeMultiplier"`
	Level          float64            `json:"levelAdjustment"`
	Proximity      float64            `json:"proximityAdjustment"`
	Waterfront     float64            `json:"waterfrontMultiplier"`
	Zip            float64            `json:"zipMultiplier"`
	ProximityRules map[string]float64 `json:"proximityRules,omitempty"`
	NearbyListings int                `json:"nearbyListings"`
	ListingsMedian *float64           `json:"listingsMedian"`
	ListingsStd    *float64           `json:"listingsStd"`
}

// Output is the Stage A result. Region is the resolved coefficient table and
// travels with the result so that later stages never resolve it twice.
type Output struct {
	RegionID     string
	RegionFound  bool
	Market       MarketID
	PricePerUnit float64
	Total        *float64
	Currency     string
	Unit         string
	Confidence   float64
	Method       domain.Method
	Breakdown    Breakdown
	Listings     Listings
	Region       RegionCoefficients
}

// Aggregator is the rule-based estimator. It does no I/O: comparable
// listings are looked up by the caller and passed in.
type Aggregator struct {
	reg *Registry
}

func NewAggregator(reg *Registry) *Aggregator {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Aggregator{reg: reg}
}

func (a *Aggregator) Registry() *Registry { return a.reg }

// Estimate always succeeds.
func (a *Aggregator) Estimate(in domain.EstimateInput, listings []float64) Output {
	coef, pol, found := a.reg.Resolve(in.RegionID, in.Market)
	sig := signals{in: in, coef: coef, pol: pol, listings: SummarizeListings(listings)}

	b := Breakdown{Base: coef.BasePrice, Type: 1, Level: 1, Proximity: 1, Waterfront: 1, Zip: 1}
	price := coef.BasePrice
	for _, f := range pol.Factors {
		switch f {
		case FactorType:
			b.Type = pol.FactorBand.Clamp(TypeMultiplier(coef.BuildingType, in.BuildingType))
			price *= b.Type
		case FactorLevel:
			b.Level = pol.FactorBand.Clamp(LevelMultiplier(coef.Levels, in.BuildingLevels))
			price *= b.Level
		case FactorProximity:
			b.Proximity, b.ProximityRules = proximity(coef.Proximity, pol.ProximityBand, sig)
			price *= b.Proximity
		case FactorWaterfront:
			b.Waterfront = pol.FactorBand.Clamp(lookup(coef.Waterfront, strings.ToLower(strings.TrimSpace(in.WaterfrontType))))
			price *= b.Waterfront
		case FactorZip:
			b.Zip = pol.FactorBand.Clamp(lookup(coef.ZipCodes, zip5(in.ZipCode)))
			price *= b.Zip
		}
	}
	if sig.listings.Count > 0 {
		b.NearbyListings = sig.listings.Count
		med, std := sig.listings.Median, sig.listings.Std
		b.ListingsMedian, b.ListingsStd = &med, &std
	}

	out := Output{
		RegionID:    coef.ID,
		RegionFound: found,
		Market:      pol.ID,
		Currency:    pol.Currency,
		Unit:        pol.Unit,
		Method:      domain.MethodAggregated,
		Breakdown:   b,
		Listings:    sig.listings,
		Region:      coef,
	}

	rounded := RoundTo(price, pol.Rounding)
	if math.IsNaN(rounded) || math.IsInf(rounded, 0) || rounded < 0 {
		out.PricePerUnit = RoundTo(coef.BasePrice, pol.Rounding)
		out.Confidence = pol.ConfidenceBase
		out.Method = domain.MethodFallback
	} else {
		out.PricePerUnit = rounded
		out.Confidence = confidence(pol, sig)
	}
	if in.Area != nil && *in.Area > 0 && !math.IsInf(*in.Area, 0) {
		t := RoundTotal(out.PricePerUnit, *in.Area)
		out.Total = &t
	}
	return out
}

// NormalizeType lowercases and keeps letters only: "Single-Family" -> "singlefamily".
func NormalizeType(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// TypeMultiplier looks the normalized type up, falling back to the
// residential entry and then 1.0. An unknown or empty type is never a penalty
// beyond what residential carries.
func TypeMultiplier(table map[string]float64, buildingType string) float64 {
	t := NormalizeType(buildingType)
	if t == "" {
		return 1.0
	}
	if m, ok := table[t]; ok {
		return m
	}
	if m, ok := table["residential"]; ok {
		return m
	}
	return 1.0
}

// LevelMultiplier gives no bonus up to two levels.
func LevelMultiplier(c LevelCurve, levels *int) float64 {
	if levels == nil || *levels <= 2 {
		return c.Base
	}
	bonus := math.Min(float64(*levels-2)*c.PerExtraLevel, c.MaxBonus)
	return c.Base + bonus
}

func proximity(rules []ProximityRule, band Band, sig signals) (float64, map[string]float64) {
	sum := 0.0
	var parts map[string]float64
	for _, r := range rules {
		v, ok := sig.value(r.Signal)
		if !ok {
			continue
		}
		c := r.bounds().Clamp(r.Adjustment * v)
		if parts == nil {
			parts = make(map[string]float64, len(rules))
		}
		parts[r.Signal] += c
		sum += c
	}
	return band.Clamp(1 + sum), parts
}

func confidence(pol MarketPolicy, sig signals) float64 {
	c := pol.ConfidenceBase
	for _, r := range pol.Confidence {
		if _, ok := sig.value(r.Signal); ok {
			c += r.Increment
		}
	}
	return Round2(math.Min(c, pol.ConfidenceCeiling))
}

func lookup(table map[string]float64, key string) float64 {
	if key == "" {
		return 1.0
	}
	if m, ok := table[key]; ok {
		return m
	}
	return 1.0
}

func zip5(z string) string {
	z = strings.TrimSpace(z)
	if len(z) > 5 {
		z = z[:5]
	}
	return z
}

// signals reads named inputs. ok is false when the input was not supplied.
type signals struct {
	in       domain.EstimateInput
	coef     RegionCoefficients
	pol      MarketPolicy
	listings Listings
}

func flag(b *bool) (float64, bool) {
	if b == nil {
		return 0, false
	}
	if *b {
		return 1, true
	}
	return 0, true
}

func (s signals) value(name string) (float64, bool) {
	in := s.in
	switch name {
	case SignalType:
		return 1, NormalizeType(in.BuildingType) != ""
	case SignalArea:
		return 1, in.Area != nil && *in.Area > 0
	case SignalLevels:
		return 1, in.BuildingLevels != nil && *in.BuildingLevels > 0
	case SignalCentroid:
		return 1, in.Centroid != nil
	case SignalMountainView:
		return flag(in.HasMountainView)
	case SignalTrainStation:
		return flag(in.NearTrainStation)
	case SignalIndustrial:
		return flag(in.NearIndustrial)
	case SignalWater:
		if in.NearWater != nil {
			return flag(in.NearWater)
		}
		return s.nearLandmark(LandmarkWater, waterRadiusKm)
	case SignalPark:
		if in.NearPark != nil {
			return flag(in.NearPark)
		}
		return s.nearLandmark(LandmarkPark, parkRadiusKm)
	case SignalDistanceToWater:
		d := in.DistanceToWaterMiles
		if d == nil || math.IsNaN(*d) {
			return 0, false
		}
		return math.Max(0, *d), true
	case SignalDistanceToCenter:
		if in.Centroid == nil || s.coef.Center == nil {
			return 0, false
		}
		return s.coef.GeoScale().DistanceKm(*in.Centroid, *s.coef.Center), true
	case SignalWaterfront:
		// "none" is an answer, not a waterfront
		w := strings.ToLower(strings.TrimSpace(in.WaterfrontType))
		return 1, w != "" && w != "none"
	case SignalZip:
		return 1, strings.TrimSpace(in.ZipCode) != ""
	case SignalListings:
		return float64(s.listings.Count), s.listings.Count > 0 && s.listings.Count >= s.pol.MinListings
	}
	return 0, false
}

func (s signals) nearLandmark(layer string, radiusKm float64) (float64, bool) {
	if s.in.Centroid == nil {
		return 0, false
	}
	d, ok := s.coef.GeoScale().NearestKm(*s.in.Centroid, s.coef.Landmarks[layer])
	if !ok {
		return 0, false
	}
	if d <= radiusKm {
		return 1, true
	}
	return 0, true
}

// Details flattens the result into the opaque details map of an estimate.
func (o Output) Details() map[string]any {
	d := map[string]any{
		"regionId":             o.RegionID,
		"regionMatched":        o.RegionFound,
		"market":               string(o.Market),
		"coefficientsVersion":  o.Region.Version,
		"base":                 o.Breakdown.Base,
		"typeMultiplier":       o.Breakdown.Type,
		"levelAdjustment":      o.Breakdown.Level,
		"proximityAdjustment":  o.Breakdown.Proximity,
		"waterfrontMultiplier": o.Breakdown.Waterfront,
		"zipMultiplier":        o.Breakdown.Zip,
		"nearbyListings":       o.Breakdown.NearbyListings,
		"listingsMedian":       o.Breakdown.ListingsMedian,
		"listingsStd":          o.Breakdown.ListingsStd,
	}
	if len(o.Breakdown.ProximityRules) > 0 {
		d["proximityRules"] = o.Breakdown.ProximityRules
	}
	return d
}

func (o Output) ToEstimate(buildingID string) domain.EstimateOutput {
	return domain.EstimateOutput{
		BuildingID:   buildingID,
		PricePerUnit: o.PricePerUnit,
		Total:        o.Total,
		Currency:     o.Currency,
		Unit:         o.Unit,
		Method:       o.Method,
		Confidence:   o.Confidence,
		Details:      o.Details(),
	}
}
