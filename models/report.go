package models

// BrandStat holds the per-maker aggregates of one market snapshot.
type BrandStat struct {
	Maker      string
	Count      int
	SharePct   float64
	AvgPrice   int
	CertRatio  float64
	YearCounts map[string]int
}

// OriginRatio is the Korea/China/other split, as percentages of the
// analyzed product set.
type OriginRatio struct {
	KoreaPct float64
	ChinaPct float64
	OtherPct float64
}

// PriceTier is one bucket of the fixed four-tier price histogram.
type PriceTier struct {
	Label    string
	SharePct float64
}

// Report is one dated market snapshot derived from the current Product set.
// Exactly one row exists per date; regeneration overwrites it.
type Report struct {
	Date            string
	TotalProducts   int
	TotalMakers     int
	TotalCategories int
	AvgPrice        int
	Brands          []BrandStat
	CategoryCounts  map[string]int
	Origin          OriginRatio
	PriceTiers      []PriceTier
	Commentary      string
}
