package pricing_test

import (
	"testing"

	"solar_price/internal/domain"
	"solar_price/internal/pricing"
)

func policy(t *testing.T, id pricing.MarketID) pricing.MarketPolicy {
	t.Helper()
	p, ok := pricing.DefaultRegistry().Market(id)
	if !ok {
		t.Fatalf("market %s missing", id)
	}
	return p
}

func TestBerlinColorsAndCategories(t *testing.T) {
	s := policy(t, pricing.MarketBerlin).Colors
	cases := []struct {
		price    float64
		color    string
		category string
	}{
		{1000, "#3b82f6", "budget"},
		{4000, "#3b82f6", "budget"},
		{5000, "#3b82f6", "affordable"},
		{6500, "#22c55e", "average"},
		{8000, "#eab308", "premium"},
		{11999, "#f97316", "luxury"},
		{12000, "#ef4444", "luxury"},
		{50000, "#ef4444", "luxury"},
	}
	for _, c := range cases {
		if got := s.Color(c.price); got != c.color {
			t.Errorf("Color(%v) = %s want %s", c.price, got, c.color)
		}
		if got := s.Category(c.price); got != c.category {
			t.Errorf("Category(%v) = %s want %s", c.price, got, c.category)
		}
	}
	if rgb := s.RGB(12000); rgb != [3]uint8{0xef, 0x44, 0x44} {
		t.Errorf("RGB: %v", rgb)
	}
}

func TestSwissAndFloridaScales(t *testing.T) {
	ch := policy(t, pricing.MarketSwiss).Colors
	if ch.Category(5999) != "budget" || ch.Category(9330) != "above_average" || ch.Category(12000) != "luxury" {
		t.Error("swiss categories")
	}
	fl := policy(t, pricing.MarketFlorida).Colors
	if fl.Category(300) != "above_average" || fl.Color(200) != "#3b82f6" || fl.Color(550) != "#ef4444" {
		t.Error("florida scale")
	}
}

func TestLegend(t *testing.T) {
	items := policy(t, pricing.MarketSwiss).Colors.Legend()
	if len(items) != 5 {
		t.Fatalf("got %d items", len(items))
	}
	if items[0].From != nil || *items[0].To != 6000 || items[4].To != nil || *items[4].From != 12000 {
		t.Fatalf("bounds: %+v %+v", items[0], items[4])
	}
}

func TestConfidenceLevel(t *testing.T) {
	if pricing.ConfidenceLevel(0.75) != "high" || pricing.ConfidenceLevel(0.55) != "medium" || pricing.ConfidenceLevel(0.2) != "low" {
		t.Fatal("levels")
	}
}

func TestGeoScale(t *testing.T) {
	s := pricing.ScaleAt(52.52)
	if s.KmPerDegLng < 67 || s.KmPerDegLng > 69 || s.KmPerDegLat < 111 || s.KmPerDegLat > 111.5 {
		t.Fatalf("scale at Berlin: %+v", s)
	}
	a := domain.Centroid{Lng: 13.40, Lat: 52.52}
	b := domain.Centroid{Lng: 13.41, Lat: 52.52}
	planar := s.DistanceKm(a, b)
	great := pricing.HaversineKm(a, b)
	if d := planar - great; d > 0.01*great || d < -0.01*great {
		t.Fatalf("planar %v vs haversine %v", planar, great)
	}
	if _, ok := s.NearestKm(a, nil); ok {
		t.Fatal("no points should report false")
	}
}

func TestRounding(t *testing.T) {
	cases := []struct{ v, step, want float64 }{
		{9331.26, 10, 9330},
		{9335, 10, 9340},
		{655.5, 1, 656},
		{-2.5, 1, -3},
		{7.0, 0, 7},
	}
	for _, c := range cases {
		if got := pricing.RoundTo(c.v, c.step); got != c.want {
			t.Errorf("RoundTo(%v, %v) = %v want %v", c.v, c.step, got, c.want)
		}
	}
	if pricing.Round2(0.1+0.2) != 0.3 {
		t.Error("Round2")
	}
}
