package pricing

import (
	"fmt"
	"math"
	"strconv"
)

// ColorScale maps a price per unit to a display category and color.
// Thresholds are ascending; Labels has one more entry than Thresholds.
type ColorScale struct {
	Min        float64    `json:"min"`
	Max        float64    `json:"max"`
	Stops      [5]string  `json:"stops"`
	Thresholds [4]float64 `json:"thresholds"`
	Labels     [5]string  `json:"labels"`
}

var colorStops = [5]string{"#3b82f6", "#22c55e", "#eab308", "#f97316", "#ef4444"}

var berlinColors = ColorScale{
	Min:        4000,
	Max:        12000,
	Stops:      colorStops,
	Thresholds: [4]float64{4500, 5500, 7500, 10000},
	Labels:     [5]string{"budget", "affordable", "average", "premium", "luxury"},
}

var swissColors = ColorScale{
	Min:        6000,
	Max:        12000,
	Stops:      colorStops,
	Thresholds: [4]float64{6000, 8000, 10000, 12000},
	Labels:     [5]string{"budget", "average", "above_average", "premium", "luxury"},
}

var floridaColors = ColorScale{
	Min:        200,
	Max:        550,
	Stops:      colorStops,
	Thresholds: [4]float64{200, 300, 400, 550},
	Labels:     [5]string{"budget", "average", "above_average", "premium", "luxury"},
}

func (s ColorScale) Category(price float64) string {
	for i, t := range s.Thresholds {
		if price < t {
			return s.Labels[i]
		}
	}
	return s.Labels[len(s.Labels)-1]
}

// Color normalizes price into [0,1] over [Min,Max] and buckets it onto the stops.
func (s ColorScale) Color(price float64) string {
	return s.Stops[s.index(price)]
}

func (s ColorScale) index(price float64) int {
	n := 0.0
	if s.Max > s.Min && !math.IsNaN(price) {
		n = math.Max(0, math.Min(1, (price-s.Min)/(s.Max-s.Min)))
	}
	i := int(math.Floor(n * float64(len(s.Stops)-1)))
	if i >= len(s.Stops) {
		i = len(s.Stops) - 1
	}
	return i
}

func (s ColorScale) RGB(price float64) [3]uint8 {
	rgb, _ := hexToRGB(s.Color(price))
	return rgb
}

func hexToRGB(hex string) ([3]uint8, error) {
	if len(hex) != 7 || hex[0] != '#' {
		return [3]uint8{}, fmt.Errorf("bad color %q", hex)
	}
	var out [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(hex[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return [3]uint8{}, fmt.Errorf("bad color %q: %w", hex, err)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

type LegendItem struct {
	Color    string   `json:"color"`
	Category string   `json:"category"`
	From     *float64 `json:"from"`
	To       *float64 `json:"to"`
}

// Legend lists the categories with their price bounds and colors.
func (s ColorScale) Legend() []LegendItem {
	items := make([]LegendItem, len(s.Labels))
	for i := range s.Labels {
		it := LegendItem{Color: s.Stops[i], Category: s.Labels[i]}
		if i > 0 {
			from := s.Thresholds[i-1]
			it.From = &from
		}
		if i < len(s.Thresholds) {
			to := s.Thresholds[i]
			it.To = &to
		}
		items[i] = it
	}
	return items
}

// ConfidenceLevel buckets a confidence score for display.
func ConfidenceLevel(c float64) string {
	switch {
	case c >= 0.7:
		return "high"
	case c >= 0.5:
		return "medium"
	default:
		return "low"
	}
}
