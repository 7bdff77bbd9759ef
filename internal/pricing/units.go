package pricing

const SqftPerSqm = 10.7639

func SqmToSqft(v float64) float64 { return v * SqftPerSqm }

// AreaIn converts an area in m² into the given unit.
func AreaIn(sqm float64, u AreaUnit) float64 {
	if u == AreaSqft {
		return SqmToSqft(sqm)
	}
	return sqm
}
