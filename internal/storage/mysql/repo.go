package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"solar_price/internal/adapters/observability"
	"solar_price/internal/domain"
	"solar_price/internal/pricing"
)

// Rows per multi-value INSERT.
const upsertChunk = 200

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Repo implements domain.ListingsLookup, domain.BuildingSource and
// domain.EstimateRepository on one MySQL schema.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Repo { return &Repo{db: db, now: time.Now} }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// NearbyPrices returns listing prices within radiusM of c. The SQL narrows by a
// degree box, then the great-circle distance decides.
func (r *Repo) NearbyPrices(ctx context.Context, regionID string, c domain.Centroid, radiusM float64) ([]float64, error) {
	start := time.Now()
	prices, err := r.nearbyPrices(ctx, regionID, c, radiusM)
	observability.ObserveExternal("mysql", "nearby_listings", statusOf(err), time.Since(start))
	return prices, err
}

func (r *Repo) nearbyPrices(ctx context.Context, regionID string, c domain.Centroid, radiusM float64) ([]float64, error) {
	if radiusM <= 0 {
		return nil, nil
	}
	km := radiusM / 1000
	s := pricing.ScaleAt(c.Lat)
	dLat := km / s.KmPerDegLat
	dLng := 180.0
	if s.KmPerDegLng > 1e-9 {
		dLng = km / s.KmPerDegLng
	}

	rows, err := r.db.QueryContext(ctx, nearbyPricesSQL,
		pricing.NormalizeRegionID(regionID),
		c.Lat-dLat, c.Lat+dLat,
		c.Lng-dLng, c.Lng+dLng,
	)
	if err != nil {
		return nil, fmt.Errorf("nearby listings: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var p domain.Centroid
		var price float64
		if err := rows.Scan(&p.Lat, &p.Lng, &price); err != nil {
			return nil, err
		}
		if pricing.HaversineKm(c, p) <= km {
			out = append(out, price)
		}
	}
	return out, rows.Err()
}

// ListBuildings loads estimate inputs for a region. ErrNotFound when the
// region has no buildings at all.
func (r *Repo) ListBuildings(ctx context.Context, regionID string, limit int) ([]domain.EstimateInput, error) {
	if limit <= 0 {
		limit = 1000
	}
	region := pricing.NormalizeRegionID(regionID)
	rows, err := r.db.QueryContext(ctx, listBuildingsSQL, region, limit)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	defer rows.Close()

	var out []domain.EstimateInput
	for rows.Next() {
		var (
			in       domain.EstimateInput
			area     sql.NullFloat64
			btype    sql.NullString
			levels   sql.NullInt64
			lat, lng sql.NullFloat64
			prox     sql.RawBytes
		)
		if err := rows.Scan(&in.BuildingID, &in.RegionID, &area, &btype, &levels, &lat, &lng, &prox); err != nil {
			return nil, err
		}
		if area.Valid {
			a := area.Float64
			in.Area = &a
		}
		if btype.Valid {
			in.BuildingType = btype.String
		}
		if levels.Valid {
			l := int(levels.Int64)
			in.BuildingLevels = &l
		}
		if lat.Valid && lng.Valid {
			in.Centroid = &domain.Centroid{Lat: lat.Float64, Lng: lng.Float64}
		}
		if len(prox) > 0 {
			if err := json.Unmarshal(prox, &in.Proximity); err != nil {
				return nil, fmt.Errorf("building %s proximity: %w", in.BuildingID, err)
			}
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("buildings in %s: %w", region, domain.ErrNotFound)
	}
	return out, nil
}

func (r *Repo) UpsertEstimates(ctx context.Context, rs []domain.EstimateRecord) error {
	for start := 0; start < len(rs); start += upsertChunk {
		end := min(start+upsertChunk, len(rs))
		if err := r.upsertEstimates(ctx, rs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) upsertEstimates(ctx context.Context, rs []domain.EstimateRecord) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*12)
	for _, e := range rs {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			e.ID,
			e.BuildingID,
			e.RegionID,
			e.PricePerUnit,
			valF64(e.Total),
			e.Currency,
			e.Unit,
			string(e.Method),
			e.Confidence,
			valJSON(e.DetailsJSON),
			e.CalculatedAt.UTC(),
			e.ExpiresAt.UTC(),
		)
	}
	q := insertEstimatesPrefix + strings.Join(values, ",") + insertEstimatesOnDup
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert estimates: %w", err)
	}
	return nil
}

// GetEstimate returns the live estimate of a building. Expired rows count as
// missing.
func (r *Repo) GetEstimate(ctx context.Context, buildingID string) (domain.EstimateView, error) {
	row := r.db.QueryRowContext(ctx, getEstimateSQL, buildingID, r.now().UTC())

	var (
		rec    domain.EstimateRecord
		total  sql.NullFloat64
		method string
		det    []byte
	)
	if err := row.Scan(
		&rec.BuildingID,
		&rec.RegionID,
		&rec.PricePerUnit,
		&total,
		&rec.Currency,
		&rec.Unit,
		&method,
		&rec.Confidence,
		&det,
		&rec.CalculatedAt,
		&rec.ExpiresAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EstimateView{}, domain.ErrNotFound
		}
		return domain.EstimateView{}, err
	}
	if total.Valid {
		t := total.Float64
		rec.Total = &t
	}
	rec.Method = domain.Method(method)
	rec.DetailsJSON = det
	return rec.View(), nil
}

// PurgeExpired removes estimates past their expiry and reports how many.
func (r *Repo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredSQL, r.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// statusOf maps a query result onto the status label shared with HTTP calls.
func statusOf(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, context.DeadlineExceeded):
		return 504
	default:
		return 500
	}
}
