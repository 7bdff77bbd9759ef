package pricing_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"solar_price/internal/domain"
	"solar_price/internal/pricing"
)

func TestDefaultRegistryResolvesEveryMarket(t *testing.T) {
	reg := pricing.DefaultRegistry()
	for _, m := range pricing.Markets() {
		c, p, found := reg.Resolve("nowhere", string(m.ID))
		if found {
			t.Fatalf("%s: unknown id reported as found", m.ID)
		}
		if c.ID != m.DefaultRegion || p.ID != m.ID {
			t.Fatalf("%s: got %s / %s", m.ID, c.ID, p.ID)
		}
	}
	if _, p, _ := reg.Resolve("us-fl-sarasota", "ch"); p.ID != pricing.MarketFlorida {
		t.Fatalf("explicit region market must win over hint, got %s", p.ID)
	}
}

func TestNormalizeRegionID(t *testing.T) {
	if got := pricing.NormalizeRegionID("  Berlin   Mitte "); got != "berlin-mitte" {
		t.Fatalf("got %q", got)
	}
}

func TestRegionsSortedByMarket(t *testing.T) {
	rs := pricing.DefaultRegistry().Regions()
	if len(rs) != len(pricing.EmbeddedRegions()) {
		t.Fatalf("got %d regions", len(rs))
	}
	for i := 1; i < len(rs); i++ {
		a, b := rs[i-1], rs[i]
		if a.Market > b.Market || (a.Market == b.Market && a.ID > b.ID) {
			t.Fatalf("unsorted at %d: %s %s", i, a.ID, b.ID)
		}
	}
}

func TestNewRegistryRejectsBadTables(t *testing.T) {
	good := pricing.EmbeddedRegions()
	cases := map[string]func([]pricing.RegionCoefficients) []pricing.RegionCoefficients{
		"unknown market": func(rs []pricing.RegionCoefficients) []pricing.RegionCoefficients {
			return append(rs, pricing.RegionCoefficients{ID: "x", Market: "mars", BasePrice: 1})
		},
		"duplicate id": func(rs []pricing.RegionCoefficients) []pricing.RegionCoefficients {
			return append(rs, rs[0])
		},
		"negative base": func(rs []pricing.RegionCoefficients) []pricing.RegionCoefficients {
			return append(rs, pricing.RegionCoefficients{ID: "neg", Market: pricing.MarketSwiss, BasePrice: -1})
		},
		"alias shadows id": func(rs []pricing.RegionCoefficients) []pricing.RegionCoefficients {
			return append(rs, pricing.RegionCoefficients{ID: "z", Market: pricing.MarketSwiss, Aliases: []string{"ch-sion"}})
		},
		"missing default": func(rs []pricing.RegionCoefficients) []pricing.RegionCoefficients {
			var out []pricing.RegionCoefficients
			for _, r := range rs {
				if r.ID != "berlin-default" {
					out = append(out, r)
				}
			}
			return out
		},
	}
	for name, mutate := range cases {
		rs := mutate(append([]pricing.RegionCoefficients(nil), good...))
		if _, err := pricing.NewRegistry(rs, pricing.Markets(), pricing.MarketSwiss); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := pricing.NewRegistry(good, pricing.Markets(), "mars"); err == nil {
		t.Error("unknown default market accepted")
	}
}

const overlayYAML = `
version: 2026-03-01-v2
regions:
  - id: ch-monthey
    market: ch
    label: Monthey
    base_price: 8000
    building_type:
      residential: 1.0
      apartments: 1.1
    levels: {base: 1.0, per_extra_level: 0.01, max_bonus: 0.05}
    proximity:
      - {signal: mountain_view, adjustment: 0.04}
  - id: ch-sierre
    market: ch
    label: Sierre
    aliases: [sierre]
    base_price: 6900
    center: {lng: 7.5353, lat: 46.2920}
`

func TestLoadRegistryOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coefficients.yaml")
	if err := os.WriteFile(path, []byte(overlayYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	reg, err := pricing.LoadRegistry(path, pricing.MarketSwiss)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if reg.Version() != "2026-03-01-v2" {
		t.Fatalf("version: %s", reg.Version())
	}

	c, _, found := reg.Resolve("ch-monthey", "")
	if !found || c.BasePrice != 8000 || c.Version != "2026-03-01-v2" {
		t.Fatalf("monthey not replaced: %+v", c)
	}

	s, _, found := reg.Resolve("Sierre", "")
	if !found || s.ID != "ch-sierre" || s.Levels.Base != 1 {
		t.Fatalf("sierre: %+v found=%v", s, found)
	}
	if sc := s.GeoScale(); sc.KmPerDegLng < 75 || sc.KmPerDegLng > 80 {
		t.Fatalf("derived scale at 46.3N: %+v", sc)
	}

	// untouched embedded regions survive
	if _, _, found := reg.Resolve("berlin-mitte", ""); !found {
		t.Fatal("embedded region lost")
	}

	out := pricing.NewAggregator(reg).Estimate(domain.EstimateInput{RegionID: "ch-sierre", BuildingType: "house"}, nil)
	if out.PricePerUnit != 6900 {
		t.Fatalf("price: %v", out.PricePerUnit)
	}
}

func TestLoadRegistryErrors(t *testing.T) {
	if _, err := pricing.LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Fatal("missing file accepted")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("regions: [::"), 0o600)
	_, err := pricing.LoadRegistry(path, "")
	if err == nil || !strings.Contains(err.Error(), "parse coefficients") {
		t.Fatalf("got %v", err)
	}
	reg, err := pricing.LoadRegistry("", pricing.MarketBerlin)
	if err != nil || reg.DefaultMarket() != pricing.MarketBerlin {
		t.Fatalf("embedded load: %v", err)
	}
}
