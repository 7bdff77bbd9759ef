package pricing

import (
	"time"

	"solar_price/internal/domain"
)

// LevelCurve: no bonus up to two levels, then Base + min((levels-2)*PerExtraLevel, MaxBonus).
type LevelCurve struct {
	Base          float64 `yaml:"base"`
	PerExtraLevel float64 `yaml:"per_extra_level"`
	MaxBonus      float64 `yaml:"max_bonus"`
}

// ProximityRule contributes Adjustment * value(Signal), bounded to [Min, Max].
// Flags have value 0 or 1; distances carry their own unit.
// When both bounds are zero the bound is [min(Adjustment,0), max(Adjustment,0)].
type ProximityRule struct {
	Signal     string  `yaml:"signal"`
	Adjustment float64 `yaml:"adjustment"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
}

func (r ProximityRule) bounds() Band {
	if r.Min == 0 && r.Max == 0 {
		if r.Adjustment < 0 {
			return Band{Lo: r.Adjustment, Hi: 0}
		}
		return Band{Lo: 0, Hi: r.Adjustment}
	}
	return Band{Lo: r.Min, Hi: r.Max}
}

// GeoScale converts degree deltas to kilometers at a region's latitude.
type GeoScale struct {
	KmPerDegLng float64 `yaml:"km_per_deg_lng"`
	KmPerDegLat float64 `yaml:"km_per_deg_lat"`
}

// RegionCoefficients is one immutable, versioned coefficient table.
// The maps are shared between callers and must be treated as read-only.
type RegionCoefficients struct {
	ID           string                       `yaml:"id"`
	Market       MarketID                     `yaml:"market"`
	Label        string                       `yaml:"label"`
	Aliases      []string                     `yaml:"aliases"`
	BasePrice    float64                      `yaml:"base_price"`
	BuildingType map[string]float64           `yaml:"building_type"`
	Levels       LevelCurve                   `yaml:"levels"`
	Proximity    []ProximityRule              `yaml:"proximity"`
	Waterfront   map[string]float64           `yaml:"waterfront"`
	ZipCodes     map[string]float64           `yaml:"zip_codes"`
	Center       *domain.Centroid             `yaml:"center"`
	BBox         [4]float64                   `yaml:"bbox"` // minLng, minLat, maxLng, maxLat
	Scale        GeoScale                     `yaml:"scale"`
	Landmarks    map[string][]domain.Centroid `yaml:"landmarks"`
	Source       string                       `yaml:"source"`
	Version      string                       `yaml:"version"`
	UpdatedAt    time.Time                    `yaml:"updated_at"`
}

const (
	embeddedVersion = "2026-01-02-v1"
	LandmarkWater   = "water"
	LandmarkPark    = "park"
)

var embeddedUpdated = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

// ---- Valais (CHF/m²) ----

func swissProximity(mountain, station, industrial float64) []ProximityRule {
	return []ProximityRule{
		{Signal: SignalMountainView, Adjustment: mountain},
		{Signal: SignalTrainStation, Adjustment: station},
		{Signal: SignalIndustrial, Adjustment: industrial},
	}
}

var montheyCoefficients = RegionCoefficients{
	ID:        "ch-monthey",
	Market:    MarketSwiss,
	Label:     "Monthey",
	BasePrice: 7800,
	BuildingType: map[string]float64{
		"residential": 1.0,
		"house":       1.0,
		"apartments":  1.08,
		"mixed":       1.05,
		"commercial":  1.15,
		"office":      1.12,
		"retail":      1.10,
		"yes":         1.0, // OSM "building=yes"
	},
	Levels:    LevelCurve{Base: 1.0, PerExtraLevel: 0.015, MaxBonus: 0.12},
	Proximity: swissProximity(0.06, 0.04, -0.10),
	Center:    &domain.Centroid{Lng: 6.9545, Lat: 46.2549},
	BBox:      [4]float64{6.92, 46.23, 6.99, 46.28},
	Source:    "research-valais-q4-2025",
	Version:   embeddedVersion,
	UpdatedAt: embeddedUpdated,
}

var martignyCoefficients = RegionCoefficients{
	ID:        "ch-martigny",
	Market:    MarketSwiss,
	Label:     "Martigny",
	BasePrice: 7200,
	BuildingType: map[string]float64{
		"residential": 1.0,
		"house":       1.0,
		"apartments":  1.06,
		"mixed":       1.04,
		"commercial":  1.12,
		"office":      1.10,
		"retail":      1.08,
		"yes":         1.0,
	},
	Levels:    LevelCurve{Base: 1.0, PerExtraLevel: 0.012, MaxBonus: 0.10},
	Proximity: swissProximity(0.05, 0.05, -0.08),
	Center:    &domain.Centroid{Lng: 7.0720, Lat: 46.1028},
	BBox:      [4]float64{7.04, 46.08, 7.10, 46.13},
	Source:    "research-valais-q4-2025",
	Version:   embeddedVersion,
	UpdatedAt: embeddedUpdated,
}

var sionCoefficients = RegionCoefficients{
	ID:        "ch-sion",
	Market:    MarketSwiss,
	Label:     "Sion",
	BasePrice: 8500,
	BuildingType: map[string]float64{
		"residential": 1.0,
		"house":       1.02,
		"apartments":  1.10,
		"mixed":       1.06,
		"commercial":  1.18,
		"office":      1.15,
		"retail":      1.12,
		"yes":         1.0,
	},
	Levels:    LevelCurve{Base: 1.0, PerExtraLevel: 0.018, MaxBonus: 0.15},
	Proximity: swissProximity(0.08, 0.06, -0.12),
	Center:    &domain.Centroid{Lng: 7.3606, Lat: 46.2331},
	BBox:      [4]float64{7.32, 46.21, 7.40, 46.25},
	Source:    "research-valais-q4-2025",
	Version:   embeddedVersion,
	UpdatedAt: embeddedUpdated,
}

var swissDefaultCoefficients = RegionCoefficients{
	ID:           "ch-default",
	Market:       MarketSwiss,
	Label:        "Valais (average)",
	BasePrice:    7500,
	BuildingType: map[string]float64{"residential": 1.0},
	Levels:       LevelCurve{Base: 1.0, PerExtraLevel: 0.015, MaxBonus: 0.12},
	Proximity:    swissProximity(0.05, 0.04, -0.08),
	Center:       &domain.Centroid{Lng: 7.3606, Lat: 46.2331},
	Source:       "research-valais-q4-2025",
	Version:      embeddedVersion,
	UpdatedAt:    embeddedUpdated,
}

// ---- Florida ($/sqft) ----

func floridaProximity(perMile float64) []ProximityRule {
	// capped at a 30% reduction, never a bonus
	return []ProximityRule{{Signal: SignalDistanceToWater, Adjustment: perMile, Min: -0.30, Max: 0}}
}

var sarasotaCoefficients = RegionCoefficients{
	ID:        "us-fl-sarasota",
	Market:    MarketFlorida,
	Label:     "Sarasota",
	BasePrice: 385,
	BuildingType: map[string]float64{
		"residential":  1.0,
		"house":        1.0,
		"singlefamily": 1.0,
		"detached":     1.0,
		"condo":        1.08,
		"apartments":   1.05,
		"townhouse":    0.96,
		"multifamily":  0.92,
		"commercial":   1.10,
		"yes":          1.0,
	},
	Levels:    LevelCurve{Base: 1.0, PerExtraLevel: 0.01, MaxBonus: 0.10},
	Proximity: floridaProximity(-0.015),
	Waterfront: map[string]float64{
		"none":  1.0,
		"canal": 1.12,
		"bay":   1.20,
		"gulf":  1.30,
	},
	ZipCodes: map[string]float64{
		"34236": 1.15, // downtown
		"34242": 1.25, // Siesta Key
		"34231": 0.95,
		"34232": 0.90,
	},
	Center:    &domain.Centroid{Lng: -82.5307, Lat: 27.3364},
	BBox:      [4]float64{-82.60, 27.25, -82.45, 27.40},
	Source:    "research-florida-q4-2025",
	Version:   embeddedVersion,
	UpdatedAt: embeddedUpdated,
}

var tampaCoefficients = RegionCoefficients{
	ID:        "us-fl-tampa",
	Market:    MarketFlorida,
	Label:     "Tampa",
	BasePrice: 320,
	BuildingType: map[string]float64{
		"residential":  1.0,
		"house":        1.0,
		"singlefamily": 1.0,
		"detached":     1.0,
		"condo":        1.06,
		"apartments":   1.04,
		"townhouse":    0.97,
		"multifamily":  0.93,
		"commercial":   1.08,
		"yes":          1.0,
	},
	Levels:    LevelCurve{Base: 1.0, PerExtraLevel: 0.01, MaxBonus: 0.10},
	Proximity: floridaProximity(-0.012),
	Waterfront: map[string]float64{
		"none":  1.0,
		"canal": 1.10,
		"bay":   1.22,
	},
	ZipCodes: map[string]float64{
		"33606": 1.20, // Hyde Park
		"33602": 1.10, // downtown
		"33629": 1.15,
		"33610": 0.85,
	},
	Center:    &domain.Centroid{Lng: -82.4572, Lat: 27.9506},
	BBox:      [4]float64{-82.55, 27.90, -82.40, 28.05},
	Source:    "research-florida-q4-2025",
	Version:   embeddedVersion,
	UpdatedAt: embeddedUpdated,
}

var floridaDefaultCoefficients = RegionCoefficients{
	ID:           "us-fl-default",
	Market:       MarketFlorida,
	Label:        "Florida (average)",
	BasePrice:    300,
	BuildingType: map[string]float64{"residential": 1.0},
	Levels:       LevelCurve{Base: 1.0, PerExtraLevel: 0.01, MaxBonus: 0.10},
	Proximity:    floridaProximity(-0.015),
	Waterfront:   map[string]float64{"none": 1.0},
	Source:       "research-florida-q4-2025",
	Version:      embeddedVersion,
	UpdatedAt:    embeddedUpdated,
}

// ---- Berlin (€/m²) ----

var (
	spreePoints = []domain.Centroid{
		{Lng: 13.4030, Lat: 52.5130}, // Museum Island
		{Lng: 13.4180, Lat: 52.5140}, // Rotes Rathaus
		{Lng: 13.4350, Lat: 52.5080},
	}
	berlinParks = []domain.Centroid{
		{Lng: 13.4170, Lat: 52.5250}, // Volkspark Friedrichshain
		{Lng: 13.3980, Lat: 52.5200}, // James-Simon-Park
		{Lng: 13.4050, Lat: 52.5080}, // Köllnischer Park
	}
	berlinScale     = GeoScale{KmPerDegLng: 85, KmPerDegLat: 111}
	berlinLandmarks = map[string][]domain.Centroid{LandmarkWater: spreePoints, LandmarkPark: berlinParks}
)

func berlinProximity(perKm, water, park float64) []ProximityRule {
	return []ProximityRule{
		{Signal: SignalDistanceToCenter, Adjustment: perKm, Min: -0.25, Max: 0},
		{Signal: SignalWater, Adjustment: water},
		{Signal: SignalPark, Adjustment: park},
	}
}

var alexanderplatzCoefficients = RegionCoefficients{
	ID:        "berlin-alexanderplatz",
	Market:    MarketBerlin,
	Label:     "Alexanderplatz",
	Aliases:   []string{"berlin-alex", "alexanderplatz"},
	BasePrice: 6500,
	BuildingType: map[string]float64{
		"residential": 1.0,
		"apartments":  1.05,
		"commercial":  1.2,
		"office":      1.15,
		"industrial":  0.7,
	},
	Levels:    LevelCurve{Base: 1.0, PerExtraLevel: 0.02, MaxBonus: 0.15},
	Proximity: berlinProximity(-0.03, 0.08, 0.05),
	Center:    &domain.Centroid{Lng: 13.4125, Lat: 52.5219},
	BBox:      [4]float64{13.40, 52.515, 13.425, 52.525},
	Scale:     berlinScale,
	Landmarks: berlinLandmarks,
	Source:    "research-immoscout-q4-2025",
	Version:   embeddedVersion,
	UpdatedAt: embeddedUpdated,
}

var mitteCoefficients = RegionCoefficients{
	ID:        "berlin-mitte",
	Market:    MarketBerlin,
	Label:     "Mitte",
	Aliases:   []string{"mitte"},
	BasePrice: 7200,
	BuildingType: map[string]float64{
		"residential": 1.0,
		"apartments":  1.08,
		"commercial":  1.25,
		"office":      1.2,
		"industrial":  0.65,
	},
	Levels:    LevelCurve{Base: 1.0, PerExtraLevel: 0.025, MaxBonus: 0.2},
	Proximity: berlinProximity(-0.04, 0.10, 0.06),
	Center:    &domain.Centroid{Lng: 13.3889, Lat: 52.5186}, // Brandenburger Tor
	BBox:      [4]float64{13.38, 52.51, 13.43, 52.53},
	Scale:     berlinScale,
	Landmarks: berlinLandmarks,
	Source:    "research-immoscout-q4-2025",
	Version:   embeddedVersion,
	UpdatedAt: embeddedUpdated,
}

var berlinDefaultCoefficients = RegionCoefficients{
	ID:        "berlin-default",
	Market:    MarketBerlin,
	Label:     "Berlin (average)",
	BasePrice: 5500,
	BuildingType: map[string]float64{
		"residential": 1.0,
		"apartments":  1.03,
		"commercial":  1.15,
		"office":      1.1,
		"industrial":  0.75,
	},
	Levels:    LevelCurve{Base: 1.0, PerExtraLevel: 0.015, MaxBonus: 0.12},
	Proximity: berlinProximity(-0.02, 0.05, 0.03),
	Center:    &domain.Centroid{Lng: 13.405, Lat: 52.52},
	Scale:     berlinScale,
	Landmarks: berlinLandmarks,
	Source:    "research-immoscout-q4-2025",
	Version:   embeddedVersion,
	UpdatedAt: embeddedUpdated,
}

// EmbeddedRegions returns the built-in coefficient tables.
func EmbeddedRegions() []RegionCoefficients {
	return []RegionCoefficients{
		montheyCoefficients, martignyCoefficients, sionCoefficients, swissDefaultCoefficients,
		sarasotaCoefficients, tampaCoefficients, floridaDefaultCoefficients,
		alexanderplatzCoefficients, mitteCoefficients, berlinDefaultCoefficients,
	}
}
