package pricing

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry resolves region ids to coefficient tables and their market policy.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	regions       map[string]RegionCoefficients
	aliases       map[string]string
	markets       map[MarketID]MarketPolicy
	defaultMarket MarketID
	version       string
}

// NormalizeRegionID lowercases and dashes whitespace: "Berlin Mitte" -> "berlin-mitte".
func NormalizeRegionID(id string) string {
	return strings.Join(strings.Fields(strings.ToLower(id)), "-")
}

func NewRegistry(regions []RegionCoefficients, markets []MarketPolicy, defaultMarket MarketID) (*Registry, error) {
	r := &Registry{
		regions:       make(map[string]RegionCoefficients, len(regions)),
		aliases:       map[string]string{},
		markets:       make(map[MarketID]MarketPolicy, len(markets)),
		defaultMarket: defaultMarket,
	}
	for _, m := range markets {
		if m.Rounding <= 0 {
			return nil, fmt.Errorf("market %s: rounding must be positive", m.ID)
		}
		if m.ConfidenceCeiling >= 1 || m.ConfidenceBase > m.ConfidenceCeiling {
			return nil, fmt.Errorf("market %s: confidence base %.2f / ceiling %.2f", m.ID, m.ConfidenceBase, m.ConfidenceCeiling)
		}
		if m.FactorBand.Lo > m.FactorBand.Hi || m.ProximityBand.Lo > m.ProximityBand.Hi {
			return nil, fmt.Errorf("market %s: inverted band", m.ID)
		}
		r.markets[m.ID] = m
	}
	if _, ok := r.markets[defaultMarket]; !ok {
		return nil, fmt.Errorf("default market %q not configured", defaultMarket)
	}
	for _, c := range regions {
		c.ID = NormalizeRegionID(c.ID)
		if c.ID == "" {
			return nil, fmt.Errorf("region without id")
		}
		if _, ok := r.markets[c.Market]; !ok {
			return nil, fmt.Errorf("region %s: unknown market %q", c.ID, c.Market)
		}
		if c.BasePrice < 0 || math.IsNaN(c.BasePrice) || math.IsInf(c.BasePrice, 0) {
			return nil, fmt.Errorf("region %s: invalid base price %v", c.ID, c.BasePrice)
		}
		if c.Levels.Base == 0 {
			c.Levels.Base = 1
		}
		if _, dup := r.regions[c.ID]; dup {
			return nil, fmt.Errorf("region %s: duplicate id", c.ID)
		}
		r.regions[c.ID] = c
	}
	for _, c := range r.regions {
		for _, a := range c.Aliases {
			a = NormalizeRegionID(a)
			if _, clash := r.regions[a]; clash {
				return nil, fmt.Errorf("region %s: alias %q shadows a region id", c.ID, a)
			}
			if prev, clash := r.aliases[a]; clash && prev != c.ID {
				return nil, fmt.Errorf("alias %q used by %s and %s", a, prev, c.ID)
			}
			r.aliases[a] = c.ID
		}
	}
	for id, m := range r.markets {
		d, ok := r.regions[m.DefaultRegion]
		if !ok || d.Market != id {
			return nil, fmt.Errorf("market %s: default region %q missing", id, m.DefaultRegion)
		}
	}
	return r, nil
}

// DefaultRegistry builds the registry from the embedded tables.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(EmbeddedRegions(), Markets(), MarketSwiss)
	if err != nil {
		panic("embedded coefficients: " + err.Error())
	}
	r.version = embeddedVersion
	return r
}

type coefficientFile struct {
	Version string               `yaml:"version"`
	Regions []RegionCoefficients `yaml:"regions"`
}

// LoadRegistry overlays a YAML coefficient file on the embedded tables.
// Regions in the file replace embedded regions with the same id.
// An empty path yields the embedded registry.
func LoadRegistry(path string, defaultMarket MarketID) (*Registry, error) {
	if defaultMarket == "" {
		defaultMarket = MarketSwiss
	}
	regions := EmbeddedRegions()
	version := embeddedVersion
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read coefficients: %w", err)
		}
		var f coefficientFile
		if err := yaml.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("parse coefficients %s: %w", path, err)
		}
		regions = overlay(regions, f.Regions, f.Version)
		if f.Version != "" {
			version = f.Version
		}
	}
	r, err := NewRegistry(regions, Markets(), defaultMarket)
	if err != nil {
		return nil, err
	}
	r.version = version
	return r, nil
}

func overlay(base, extra []RegionCoefficients, version string) []RegionCoefficients {
	idx := make(map[string]int, len(base))
	for i, c := range base {
		idx[NormalizeRegionID(c.ID)] = i
	}
	for _, c := range extra {
		if c.Version == "" {
			c.Version = version
		}
		if i, ok := idx[NormalizeRegionID(c.ID)]; ok {
			base[i] = c
			continue
		}
		idx[NormalizeRegionID(c.ID)] = len(base)
		base = append(base, c)
	}
	return base
}

// Resolve never fails. Unknown ids fall back to the default table of the
// hinted market, then to the registry's default market. found reports
// whether the id itself matched.
func (r *Registry) Resolve(regionID, marketHint string) (c RegionCoefficients, p MarketPolicy, found bool) {
	id := NormalizeRegionID(regionID)
	if canon, ok := r.aliases[id]; ok {
		id = canon
	}
	if c, ok := r.regions[id]; ok {
		return c, r.markets[c.Market], true
	}
	m, ok := r.markets[MarketID(strings.ToLower(strings.TrimSpace(marketHint)))]
	if !ok {
		m = r.markets[r.defaultMarket]
	}
	return r.regions[m.DefaultRegion], m, false
}

func (r *Registry) Market(id MarketID) (MarketPolicy, bool) {
	m, ok := r.markets[id]
	return m, ok
}

func (r *Registry) DefaultMarket() MarketID { return r.defaultMarket }

func (r *Registry) Version() string { return r.version }

// Regions lists all tables ordered by market, then id.
func (r *Registry) Regions() []RegionCoefficients {
	out := make([]RegionCoefficients, 0, len(r.regions))
	for _, c := range r.regions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Market != out[j].Market {
			return out[i].Market < out[j].Market
		}
		return out[i].ID < out[j].ID
	})
	return out
}
