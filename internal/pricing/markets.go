// Package pricing holds the rule-based (Stage A) price estimation: market
// policies, per-region coefficient tables, the aggregator and display scales.
package pricing

import "math"

type MarketID string

const (
	MarketSwiss   MarketID = "ch"
	MarketFlorida MarketID = "us-fl"
	MarketBerlin  MarketID = "de-berlin"
)

type AreaUnit string

const (
	AreaSqm  AreaUnit = "sqm"
	AreaSqft AreaUnit = "sqft"
)

// Factor names one multiplicative step of the aggregation.
type Factor string

const (
	FactorType       Factor = "type"
	FactorLevel      Factor = "level"
	FactorProximity  Factor = "proximity"
	FactorWaterfront Factor = "waterfront"
	FactorZip        Factor = "zip"
)

// Signal names. Proximity rules and confidence rules both refer to them.
const (
	SignalType             = "type"
	SignalArea             = "area"
	SignalLevels           = "levels"
	SignalCentroid         = "centroid"
	SignalMountainView     = "mountain_view"
	SignalTrainStation     = "train_station"
	SignalIndustrial       = "industrial"
	SignalWater            = "water"
	SignalPark             = "park"
	SignalDistanceToWater  = "distance_to_water_mi"
	SignalDistanceToCenter = "distance_to_center_km"
	SignalWaterfront       = "waterfront"
	SignalZip              = "zip"
	SignalListings         = "listings"
)

type Band struct {
	Lo float64 `yaml:"lo" json:"lo"`
	Hi float64 `yaml:"hi" json:"hi"`
}

func (b Band) Clamp(v float64) float64 {
	return math.Max(b.Lo, math.Min(b.Hi, v))
}

func (b Band) Contains(v float64) bool { return v >= b.Lo && v <= b.Hi }

type ConfidenceRule struct {
	Signal    string  `yaml:"signal"`
	Increment float64 `yaml:"increment"`
}

// MarketPolicy parameterizes the single generic aggregator for one market
// (currency/unit system). Regions reference their market explicitly.
type MarketPolicy struct {
	ID                MarketID
	Label             string
	Currency          string
	Unit              string // display unit of the price denominator
	AreaUnit          AreaUnit
	Rounding          float64 // price granularity in currency units
	ConfidenceBase    float64
	ConfidenceCeiling float64
	FactorBand        Band // type and level multipliers
	ProximityBand     Band // combined proximity multiplier
	Factors           []Factor
	Confidence        []ConfidenceRule
	MinListings       int // listings needed before they count as a confidence signal
	DefaultRegion     string
	Colors            ColorScale
}

func (p MarketPolicy) applies(f Factor) bool {
	for _, x := range p.Factors {
		if x == f {
			return true
		}
	}
	return false
}

var swissPolicy = MarketPolicy{
	ID:                MarketSwiss,
	Label:             "Switzerland (Valais)",
	Currency:          "CHF",
	Unit:              "m²",
	AreaUnit:          AreaSqm,
	Rounding:          10,
	ConfidenceBase:    0.55,
	ConfidenceCeiling: 0.90,
	FactorBand:        Band{Lo: 0.7, Hi: 1.3},
	ProximityBand:     Band{Lo: 0.7, Hi: 1.3},
	Factors:           []Factor{FactorType, FactorLevel, FactorProximity},
	Confidence: []ConfidenceRule{
		{Signal: SignalType, Increment: 0.10},
		{Signal: SignalArea, Increment: 0.10},
		{Signal: SignalLevels, Increment: 0.05},
		{Signal: SignalMountainView, Increment: 0.05},
		{Signal: SignalTrainStation, Increment: 0.05},
		{Signal: SignalListings, Increment: 0.05},
	},
	MinListings:   3,
	DefaultRegion: "ch-default",
	Colors:        swissColors,
}

var floridaPolicy = MarketPolicy{
	ID:                MarketFlorida,
	Label:             "Florida",
	Currency:          "USD",
	Unit:              "sqft",
	AreaUnit:          AreaSqft,
	Rounding:          1,
	ConfidenceBase:    0.50,
	ConfidenceCeiling: 0.95,
	FactorBand:        Band{Lo: 0.7, Hi: 1.3},
	ProximityBand:     Band{Lo: 0.7, Hi: 1.3},
	Factors:           []Factor{FactorType, FactorWaterfront, FactorZip, FactorProximity, FactorLevel},
	Confidence: []ConfidenceRule{
		{Signal: SignalType, Increment: 0.10},
		{Signal: SignalArea, Increment: 0.10},
		{Signal: SignalZip, Increment: 0.15},
		{Signal: SignalWaterfront, Increment: 0.10},
		{Signal: SignalDistanceToWater, Increment: 0.05},
		{Signal: SignalListings, Increment: 0.05},
	},
	MinListings:   3,
	DefaultRegion: "us-fl-default",
	Colors:        floridaColors,
}

var berlinPolicy = MarketPolicy{
	ID:                MarketBerlin,
	Label:             "Berlin",
	Currency:          "EUR",
	Unit:              "m²",
	AreaUnit:          AreaSqm,
	Rounding:          10,
	ConfidenceBase:    0.50,
	ConfidenceCeiling: 0.90,
	FactorBand:        Band{Lo: 0.6, Hi: 1.3},
	ProximityBand:     Band{Lo: 0.7, Hi: 1.3},
	Factors:           []Factor{FactorType, FactorLevel, FactorProximity},
	Confidence: []ConfidenceRule{
		{Signal: SignalType, Increment: 0.10},
		{Signal: SignalArea, Increment: 0.10},
		{Signal: SignalLevels, Increment: 0.05},
		{Signal: SignalCentroid, Increment: 0.10},
		{Signal: SignalListings, Increment: 0.10},
	},
	MinListings:   3,
	DefaultRegion: "berlin-default",
	Colors:        berlinColors,
}

// Markets returns the embedded market policies.
func Markets() []MarketPolicy {
	return []MarketPolicy{swissPolicy, floridaPolicy, berlinPolicy}
}
