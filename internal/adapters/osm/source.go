// Package osm loads building footprints for a region from an Overpass API
// endpoint and turns them into estimate inputs.
package osm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"

	"solar_price/internal/adapters/observability"
	"solar_price/internal/domain"
	"solar_price/internal/pricing"
)

const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// Source implements domain.BuildingSource over Overpass.
type Source struct {
	client  *overpass.Client
	reg     *pricing.Registry
	timeout time.Duration
}

func New(endpoint string, reg *pricing.Registry, timeout time.Duration) *Source {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if reg == nil {
		reg = pricing.DefaultRegistry()
	}
	client := overpass.NewWithSettings(endpoint, 2, &http.Client{Timeout: timeout})
	return &Source{client: &client, reg: reg, timeout: timeout}
}

// ListBuildings queries every building way inside the region bbox. Regions
// without a bbox (the market defaults) are ErrNotFound.
func (s *Source) ListBuildings(ctx context.Context, regionID string, limit int) ([]domain.EstimateInput, error) {
	c, p, found := s.reg.Resolve(regionID, "")
	if !found || c.BBox == [4]float64{} {
		return nil, fmt.Errorf("region %q has no bbox: %w", regionID, domain.ErrNotFound)
	}

	start := time.Now()
	res, err := s.query(ctx, buildingsQuery(c.BBox, int(s.timeout.Seconds())))
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	observability.ObserveExternal("overpass", "buildings", status, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("overpass buildings %s: %w", c.ID, err)
	}

	ids := make([]int64, 0, len(res.Ways))
	for id := range res.Ways {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]domain.EstimateInput, 0, len(ids))
	for _, id := range ids {
		in, ok := toInput(res.Ways[id], c, p)
		if !ok {
			continue
		}
		out = append(out, in)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// query runs the blocking client call so ctx cancellation is honoured.
func (s *Source) query(ctx context.Context, q string) (overpass.Result, error) {
	type reply struct {
		res overpass.Result
		err error
	}
	if err := ctx.Err(); err != nil {
		return overpass.Result{}, err
	}
	ch := make(chan reply, 1)
	go func() {
		res, err := s.client.Query(q)
		ch <- reply{res, err}
	}()
	select {
	case <-ctx.Done():
		return overpass.Result{}, ctx.Err()
	case r := <-ch:
		return r.res, r.err
	}
}

// buildingsQuery selects building ways in bbox (minLng, minLat, maxLng, maxLat)
// with their nodes. Overpass expects south,west,north,east.
func buildingsQuery(b [4]float64, timeoutSec int) string {
	return fmt.Sprintf(`[out:json][timeout:%d];
way["building"](%f,%f,%f,%f);
out body;
>;
out skel qt;`, max(timeoutSec, 1), b[1], b[0], b[3], b[2])
}

func toInput(w *overpass.Way, c pricing.RegionCoefficients, p pricing.MarketPolicy) (domain.EstimateInput, bool) {
	if w == nil {
		return domain.EstimateInput{}, false
	}
	ring := footprint(w.Nodes)
	if len(ring) < 3 {
		return domain.EstimateInput{}, false
	}
	in := domain.EstimateInput{
		BuildingID:   "osm-way-" + strconv.FormatInt(w.ID, 10),
		RegionID:     c.ID,
		Market:       string(p.ID),
		BuildingType: buildingType(w.Tags["building"]),
	}
	centroid := mean(ring)
	in.Centroid = &centroid

	if sqm := areaSqm(ring, c.GeoScale()); sqm > 0 {
		a := math.Round(pricing.AreaIn(sqm, p.AreaUnit)*100) / 100
		in.Area = &a
	}
	if v, err := strconv.Atoi(strings.TrimSpace(w.Tags["building:levels"])); err == nil && v > 0 {
		in.BuildingLevels = &v
	}
	if z := strings.TrimSpace(w.Tags["addr:postcode"]); z != "" {
		in.ZipCode = z
	}
	return in, true
}

// footprint drops unresolved nodes and the closing duplicate.
func footprint(nodes []*overpass.Node) []domain.Centroid {
	pts := make([]domain.Centroid, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || (n.Lat == 0 && n.Lon == 0) {
			continue
		}
		pts = append(pts, domain.Centroid{Lng: n.Lon, Lat: n.Lat})
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

func mean(pts []domain.Centroid) domain.Centroid {
	var c domain.Centroid
	for _, p := range pts {
		c.Lng += p.Lng
		c.Lat += p.Lat
	}
	n := float64(len(pts))
	return domain.Centroid{Lng: c.Lng / n, Lat: c.Lat / n}
}

// areaSqm is the shoelace area of the ring projected with the region scale,
// relative to the first vertex to keep the products small.
func areaSqm(pts []domain.Centroid, s pricing.GeoScale) float64 {
	o := pts[0]
	xy := func(p domain.Centroid) (float64, float64) {
		return (p.Lng - o.Lng) * s.KmPerDegLng, (p.Lat - o.Lat) * s.KmPerDegLat
	}
	var sum float64
	for i := range pts {
		xi, yi := xy(pts[i])
		xj, yj := xy(pts[(i+1)%len(pts)])
		sum += xi*yj - xj*yi
	}
	return math.Abs(sum) / 2 * 1e6
}

// buildingType keeps explicit OSM values; "yes" carries no information.
func buildingType(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "yes" {
		return ""
	}
	return v
}
