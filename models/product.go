package models

import "time"

// Normalized origin tokens.
const (
	OriginKorea = "korea"
	OriginChina = "china"
	OriginOther = "other"
)

// SpecInfo holds the semi-structured attributes parsed out of a listing's
// spec text. Every field is best-effort; absent values stay zero.
type SpecInfo struct {
	Wattage        string
	Lumen          string
	Efficacy       string
	ColorTemp      string
	ChipVendor     string
	Certifications []string
	Origin         string
	ReleasedAt     string
	RawText        string
}

// HasCertification reports whether any recognized certification token
// (KC, KS, 고효율) was found for this product.
func (s *SpecInfo) HasCertification() bool {
	return len(s.Certifications) > 0
}

// Product is one scraped listing, cleaned and ready for storage.
type Product struct {
	ExternalID  string
	Name        string
	Price       int
	Maker       string
	Category    string
	Specs       SpecInfo
	ImageURL    string
	SellerCount int
	Status      string
	Source      string
	CollectedAt time.Time
}

// Category is a named search facet driven by operators. The collector reads
// the keyword and writes back LastScrapedAt after each cycle.
type Category struct {
	Name          string
	Keyword       string
	MaxPages      int
	Active        bool
	LastScrapedAt time.Time
}
