package mysql

// Bounding box prefilter; the exact radius check is done in Go.
const nearbyPricesSQL = `
SELECT lat, lng, price_per_unit
FROM listings
WHERE region_id = ?
  AND lat BETWEEN ? AND ?
  AND lng BETWEEN ? AND ?
  AND price_per_unit > 0
`

const listBuildingsSQL = `
SELECT
  id,
  region_id,
  area,
  building_type,
  building_levels,
  lat,
  lng,
  proximity
FROM buildings
WHERE region_id = ?
ORDER BY id
LIMIT ?
`

const insertEstimatesPrefix = "INSERT INTO price_estimates\n  (id, building_id, region_id, price_per_unit, total, currency, unit, method, confidence, details, calculated_at, expires_at)\nVALUES "

// One live estimate per building; the row id is kept from the first insert.
const insertEstimatesOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  region_id      = VALUES(region_id),\n" +
	"  price_per_unit = VALUES(price_per_unit),\n" +
	"  total          = VALUES(total),\n" +
	"  currency       = VALUES(currency),\n" +
	"  unit           = VALUES(unit),\n" +
	"  method         = VALUES(method),\n" +
	"  confidence     = VALUES(confidence),\n" +
	"  details        = VALUES(details),\n" +
	"  calculated_at  = VALUES(calculated_at),\n" +
	"  expires_at     = VALUES(expires_at)\n"

const getEstimateSQL = `
SELECT
  building_id,
  region_id,
  price_per_unit,
  total,
  currency,
  unit,
  method,
  confidence,
  details,
  calculated_at,
  expires_at
FROM price_estimates
WHERE building_id = ? AND expires_at > ?
`

const deleteExpiredSQL = `DELETE FROM price_estimates WHERE expires_at <= ?`
