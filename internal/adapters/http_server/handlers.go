package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"solar_price/internal/app"
	"solar_price/internal/domain"
	"solar_price/internal/pricing"
)

const (
	maxBulkItems = 500
	maxBodyBytes = 4 << 20
)

type Handlers struct {
	Engine *app.Engine
	Q      *app.QueryService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1", func(r chi.Router) {
		r.With(MaxBody(maxBodyBytes)).Post("/estimates", h.estimate)
		r.With(MaxBody(maxBodyBytes)).Post("/estimates/bulk", h.estimateBulk)
		r.Get("/buildings/{id}/estimate", h.getBuildingEstimate)
		r.Get("/regions", h.listRegions)
		r.Get("/regions/{id}/legend", h.legend)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "response not serializable")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

/********** estimates **********/

type estimateResponse struct {
	domain.EstimateOutput
	Category        string `json:"category"`
	Color           string `json:"color"`
	ConfidenceLevel string `json:"confidenceLevel"`
}

type bulkRequest struct {
	Items []domain.EstimateInput `json:"items"`
}

type bulkResponse struct {
	Items []estimateResponse `json:"items"`
}

func (h *Handlers) estimate(w http.ResponseWriter, r *http.Request) {
	var in domain.EstimateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := validate(in); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid input", err.Error())
		return
	}
	out := h.Engine.Estimate(r.Context(), in)
	writeJSON(w, http.StatusOK, h.decorate(out))
}

func (h *Handlers) estimateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBulkItems {
		writeProblem(w, http.StatusBadRequest, "Invalid items", fmt.Sprintf("items must hold between 1 and %d inputs", maxBulkItems))
		return
	}
	for i, in := range req.Items {
		if err := validate(in); err != nil {
			writeProblem(w, http.StatusUnprocessableEntity, "Invalid input", fmt.Sprintf("items[%d]: %v", i, err))
			return
		}
	}
	outs := h.Engine.EstimateBulk(r.Context(), req.Items)
	resp := bulkResponse{Items: make([]estimateResponse, len(outs))}
	for i, o := range outs {
		resp.Items[i] = h.decorate(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// validate rejects inputs no building can have. Everything else, including
// unknown regions, is priced with defaults.
func validate(in domain.EstimateInput) error {
	if in.Area != nil && *in.Area < 0 {
		return errors.New("area must not be negative")
	}
	if in.BuildingLevels != nil && *in.BuildingLevels < 0 {
		return errors.New("buildingLevels must not be negative")
	}
	if c := in.Centroid; c != nil && (c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180) {
		return errors.New("centroid out of range")
	}
	if in.DistanceToWaterMiles != nil && *in.DistanceToWaterMiles < 0 {
		return errors.New("distanceToWaterMiles must not be negative")
	}
	return nil
}

func (h *Handlers) decorate(out domain.EstimateOutput) estimateResponse {
	resp := estimateResponse{EstimateOutput: out, ConfidenceLevel: pricing.ConfidenceLevel(out.Confidence)}
	market, _ := out.Details["market"].(string)
	if p, ok := h.Engine.Registry().Market(pricing.MarketID(market)); ok {
		resp.Category = p.Colors.Category(out.PricePerUnit)
		resp.Color = p.Colors.Color(out.PricePerUnit)
	}
	return resp
}

func (h *Handlers) getBuildingEstimate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "building id is required")
		return
	}
	v, err := h.Q.GetEstimate(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "no current estimate for this building")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("building", id).Msg("get estimate failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "estimate lookup failed")
		return
	}
	writeCacheable(w, r, v)
}

/********** regions **********/

type regionItem struct {
	ID       string           `json:"id"`
	Market   string           `json:"market"`
	Label    string           `json:"label,omitempty"`
	Aliases  []string         `json:"aliases,omitempty"`
	Currency string           `json:"currency"`
	Unit     string           `json:"unit"`
	Base     float64          `json:"basePrice"`
	Center   *domain.Centroid `json:"center,omitempty"`
	BBox     *[4]float64      `json:"bbox,omitempty"`
	Version  string           `json:"version"`
}

type legendResponse struct {
	RegionID string               `json:"regionId"`
	Market   string               `json:"market"`
	Currency string               `json:"currency"`
	Unit     string               `json:"unit"`
	Items    []pricing.LegendItem `json:"items"`
}

func (h *Handlers) listRegions(w http.ResponseWriter, r *http.Request) {
	reg := h.Engine.Registry()
	market := strings.ToLower(r.URL.Query().Get("market"))
	items := []regionItem{}
	for _, c := range reg.Regions() {
		if market != "" && string(c.Market) != market {
			continue
		}
		p, _ := reg.Market(c.Market)
		it := regionItem{
			ID:       c.ID,
			Market:   string(c.Market),
			Label:    c.Label,
			Aliases:  c.Aliases,
			Currency: p.Currency,
			Unit:     p.Unit,
			Base:     c.BasePrice,
			Center:   c.Center,
			Version:  c.Version,
		}
		if c.BBox != [4]float64{} {
			b := c.BBox
			it.BBox = &b
		}
		items = append(items, it)
	}
	writeCacheable(w, r, map[string]any{"version": reg.Version(), "items": items})
}

func (h *Handlers) legend(w http.ResponseWriter, r *http.Request) {
	c, p, found := h.Engine.Registry().Resolve(chi.URLParam(r, "id"), "")
	if !found {
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown region")
		return
	}
	writeCacheable(w, r, legendResponse{
		RegionID: c.ID,
		Market:   string(p.ID),
		Currency: p.Currency,
		Unit:     p.Unit,
		Items:    p.Colors.Legend(),
	})
}
