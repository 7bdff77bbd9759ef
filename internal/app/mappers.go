package app

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"solar_price/internal/domain"
)

/********** cache keys **********/

// estimateKey fingerprints everything that can change an estimate: the
// input itself, the coefficient version and whether ML is on.
func estimateKey(in domain.EstimateInput, coefVersion string, useML bool) string {
	b, _ := json.Marshal(in)
	sum := sha1.Sum(append(b, fmt.Sprintf("|%s|%t", coefVersion, useML)...))
	return fmt.Sprintf("estimate:%s:%s", in.BuildingID, hex.EncodeToString(sum[:]))
}

func viewKey(buildingID string) string { return "estimate-view:" + buildingID }

/********** records **********/

// toRecord maps an engine output to a persisted row that expires after ttl.
func toRecord(in domain.EstimateInput, out domain.EstimateOutput, now time.Time, ttl time.Duration) domain.EstimateRecord {
	region, _ := out.Details["regionId"].(string)
	if region == "" {
		region = in.RegionID
	}
	details, err := json.Marshal(out.Details)
	if err != nil {
		log.Warn().Err(err).Str("building", in.BuildingID).Msg("details not serializable, stored empty")
		details = []byte("{}")
	}
	return domain.EstimateRecord{
		ID:           uuid.NewString(),
		BuildingID:   in.BuildingID,
		RegionID:     region,
		PricePerUnit: out.PricePerUnit,
		Total:        out.Total,
		Currency:     out.Currency,
		Unit:         out.Unit,
		Method:       out.Method,
		Confidence:   out.Confidence,
		DetailsJSON:  details,
		CalculatedAt: now.UTC(),
		ExpiresAt:    now.UTC().Add(ttl),
	}
}

// toRecords skips inputs without a building id; they cannot be looked up later.
func toRecords(ins []domain.EstimateInput, outs []domain.EstimateOutput, now time.Time, ttl time.Duration) []domain.EstimateRecord {
	rs := make([]domain.EstimateRecord, 0, len(outs))
	for i := range outs {
		if ins[i].BuildingID == "" {
			continue
		}
		rs = append(rs, toRecord(ins[i], outs[i], now, ttl))
	}
	return rs
}
