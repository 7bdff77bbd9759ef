package domain

// Centroid is a building centroid in WGS84 degrees.
type Centroid struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Proximity holds the market-specific location signals of a building.
// A nil pointer means "unknown", which is different from false / zero:
// confidence only rewards signals that were actually supplied.
type Proximity struct {
	HasMountainView      *bool    `json:"hasMountainView,omitempty"`
	NearTrainStation     *bool    `json:"nearTrainStation,omitempty"`
	NearIndustrial       *bool    `json:"nearIndustrial,omitempty"`
	NearWater            *bool    `json:"nearWater,omitempty"`
	NearPark             *bool    `json:"nearPark,omitempty"`
	DistanceToWaterMiles *float64 `json:"distanceToWaterMiles,omitempty"`
	WaterfrontType       string   `json:"waterfrontType,omitempty"` // none|canal|bay|gulf ...
	ZipCode              string   `json:"zipCode,omitempty"`
}

// EstimateInput is everything the engine knows about one building.
// Area is expressed in the market's area unit (m² or sqft).
type EstimateInput struct {
	BuildingID     string    `json:"buildingId"`
	RegionID       string    `json:"regionId"`
	Market         string    `json:"market,omitempty"` // optional hint for unknown regions
	Area           *float64  `json:"area,omitempty"`
	BuildingType   string    `json:"buildingType,omitempty"`
	BuildingLevels *int      `json:"buildingLevels,omitempty"`
	Centroid       *Centroid `json:"centroid,omitempty"`
	Proximity
}
