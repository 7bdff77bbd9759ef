// Package ml is the tree-ensemble refinement stage. It never trains; it reads
// an exported gradient-boosting model and walks its trees.
package ml

import (
	"math"

	"solar_price/internal/domain"
	"solar_price/internal/pricing"
)

// Features are passed by name; the predictor orders them itself.
type Features map[string]float64

const (
	FeatureArea            = "area"
	FeatureLevels          = "building_levels"
	FeatureTypeResidential = "type_residential"
	FeatureTypeApartments  = "type_apartments"
	FeatureTypeCommercial  = "type_commercial"
	FeatureTypeOffice      = "type_office"
	FeatureTypeIndustrial  = "type_industrial"
	FeatureLat             = "centroid_lat"
	FeatureLng             = "centroid_lng"
	FeatureCenterKm        = "distance_to_center_km"
	FeatureWaterM          = "distance_to_water_m"
	FeatureParkM           = "distance_to_park_m"
	FeatureAggregated      = "aggregated_price"
	FeatureListingsCount   = "nearby_listings_count"
	FeatureListingsMedian  = "listings_median"
	FeatureListingsStd     = "listings_std"
)

// Defaults for inputs the building source did not supply.
const (
	DefaultArea      = 100.0
	DefaultLevels    = 4.0
	DefaultLandmarkM = 2000.0
	metersPerMile    = 1609.344
)

var featureNames = []string{
	FeatureArea,
	FeatureLevels,
	FeatureTypeResidential,
	FeatureTypeApartments,
	FeatureTypeCommercial,
	FeatureTypeOffice,
	FeatureTypeIndustrial,
	FeatureLat,
	FeatureLng,
	FeatureCenterKm,
	FeatureWaterM,
	FeatureParkM,
	FeatureAggregated,
	FeatureListingsCount,
	FeatureListingsMedian,
	FeatureListingsStd,
}

var oneHot = map[string]string{
	"residential": FeatureTypeResidential,
	"apartments":  FeatureTypeApartments,
	"commercial":  FeatureTypeCommercial,
	"office":      FeatureTypeOffice,
	"industrial":  FeatureTypeIndustrial,
}

// FeatureNames is the canonical order models are exported with.
func FeatureNames() []string {
	return append([]string(nil), featureNames...)
}

// Extract builds the full feature set. It needs the Stage A result: the
// aggregated price is itself a feature and the resolved region supplies the
// center, landmarks and planar scale.
func Extract(in domain.EstimateInput, agg pricing.Output) Features {
	f := make(Features, len(featureNames))
	for _, n := range featureNames {
		f[n] = 0
	}

	f[FeatureArea] = DefaultArea
	if in.Area != nil && *in.Area > 0 {
		f[FeatureArea] = *in.Area
	}
	f[FeatureLevels] = DefaultLevels
	if in.BuildingLevels != nil && *in.BuildingLevels > 0 {
		f[FeatureLevels] = float64(*in.BuildingLevels)
	}
	if name, ok := oneHot[pricing.NormalizeType(in.BuildingType)]; ok {
		f[name] = 1
	}

	region := agg.Region
	scale := region.GeoScale()
	var at domain.Centroid
	switch {
	case in.Centroid != nil:
		at = *in.Centroid
	case region.Center != nil:
		at = *region.Center
	}
	f[FeatureLat] = at.Lat
	f[FeatureLng] = at.Lng
	if region.Center != nil {
		f[FeatureCenterKm] = scale.DistanceKm(at, *region.Center)
	}

	f[FeatureWaterM] = landmarkMeters(scale, at, region.Landmarks[pricing.LandmarkWater])
	if len(region.Landmarks[pricing.LandmarkWater]) == 0 && in.DistanceToWaterMiles != nil && *in.DistanceToWaterMiles >= 0 {
		f[FeatureWaterM] = math.Round(*in.DistanceToWaterMiles * metersPerMile)
	}
	f[FeatureParkM] = landmarkMeters(scale, at, region.Landmarks[pricing.LandmarkPark])

	f[FeatureAggregated] = agg.PricePerUnit
	f[FeatureListingsCount] = float64(agg.Listings.Count)
	f[FeatureListingsMedian] = agg.Listings.Median
	f[FeatureListingsStd] = agg.Listings.Std
	return f
}

func landmarkMeters(s pricing.GeoScale, from domain.Centroid, pts []domain.Centroid) float64 {
	km, ok := s.NearestKm(from, pts)
	if !ok {
		return DefaultLandmarkM
	}
	return math.Round(km * 1000)
}
