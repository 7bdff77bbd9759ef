package domain

import (
	"encoding/json"
	"time"
)

type Method string

const (
	MethodAggregated Method = "aggregated"
	MethodML         Method = "ml"
	MethodFallback   Method = "fallback"
)

// EstimateOutput is the engine's answer for one building.
type EstimateOutput struct {
	BuildingID   string         `json:"buildingId,omitempty"`
	PricePerUnit float64        `json:"pricePerUnit"`
	Total        *float64       `json:"total"`
	Currency     string         `json:"currency"`
	Unit         string         `json:"unit"`
	Method       Method         `json:"method"`
	Confidence   float64        `json:"confidence"`
	Details      map[string]any `json:"details,omitempty"`
}

// EstimateRecord is a persisted estimate with an expiry.
type EstimateRecord struct {
	ID           string
	BuildingID   string
	RegionID     string
	PricePerUnit float64
	Total        *float64
	Currency     string
	Unit         string
	Method       Method
	Confidence   float64
	DetailsJSON  []byte
	CalculatedAt time.Time
	ExpiresAt    time.Time
}

// EstimateView is the read model served for a single building.
type EstimateView struct {
	BuildingID   string         `json:"buildingId"`
	RegionID     string         `json:"regionId"`
	PricePerUnit float64        `json:"pricePerUnit"`
	Total        *float64       `json:"total"`
	Currency     string         `json:"currency"`
	Unit         string         `json:"unit"`
	Method       Method         `json:"method"`
	Confidence   float64        `json:"confidence"`
	Details      map[string]any `json:"details,omitempty"`
	CalculatedAt time.Time      `json:"calculatedAt"`
	ExpiresAt    time.Time      `json:"expiresAt"`
}

// View decodes the stored record for readers. Unreadable details are dropped.
func (r EstimateRecord) View() EstimateView {
	v := EstimateView{
		BuildingID:   r.BuildingID,
		RegionID:     r.RegionID,
		PricePerUnit: r.PricePerUnit,
		Total:        r.Total,
		Currency:     r.Currency,
		Unit:         r.Unit,
		Method:       r.Method,
		Confidence:   r.Confidence,
		CalculatedAt: r.CalculatedAt,
		ExpiresAt:    r.ExpiresAt,
	}
	if len(r.DetailsJSON) > 0 {
		_ = json.Unmarshal(r.DetailsJSON, &v.Details)
	}
	return v
}
