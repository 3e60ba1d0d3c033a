package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"led-scraper/config"
	"led-scraper/models"
	"led-scraper/utils"
)

// priceTierBounds are the fixed histogram breakpoints in won. The four tiers
// are <10k, 10k–50k, 50k–200k and ≥200k.
var priceTierBounds = []struct {
	label string
	upper int
}{
	{"1만원 미만", 10000},
	{"1만원~5만원", 50000},
	{"5만원~20만원", 200000},
	{"20만원 이상", math.MaxInt},
}

// ReportService computes the dated market snapshot over the full persisted
// product set. Generation is a pure projection: the same input set yields
// the same report.
type ReportService struct {
	cfg    *config.Config
	logger *utils.Logger
	origin OriginPolicy
}

// NewReportService creates a ReportService using the default origin policy.
func NewReportService(cfg *config.Config, logger *utils.Logger) *ReportService {
	return &ReportService{cfg: cfg, logger: logger, origin: DefaultOriginPolicy}
}

// WithOriginPolicy overrides the origin resolution policy.
func (s *ReportService) WithOriginPolicy(policy OriginPolicy) *ReportService {
	s.origin = policy
	return s
}

// Generate computes the snapshot for the given date (YYYY-MM-DD). Products
// are filtered again at read time with the same blocklist and ceiling the
// collector uses, so stale rows cannot skew the analysis. An empty set after
// filtering yields nil: no report is produced rather than dividing by zero.
func (s *ReportService) Generate(products []*models.Product, date string) *models.Report {
	included := s.filter(products)
	if len(included) == 0 {
		s.logger.Warn("[report] no analyzable products — skipping snapshot for %s", date)
		return nil
	}

	report := &models.Report{
		Date:           date,
		TotalProducts:  len(included),
		CategoryCounts: make(map[string]int),
	}

	var priceSum, priced int
	for _, p := range included {
		if p.Price > 0 {
			priceSum += p.Price
			priced++
		}
		if p.Category != "" {
			report.CategoryCounts[p.Category]++
		}
	}
	if priced > 0 {
		report.AvgPrice = int(math.Round(float64(priceSum) / float64(priced)))
	}
	report.TotalCategories = len(report.CategoryCounts)

	report.Brands = s.brandStats(included)
	report.TotalMakers = len(report.Brands)
	report.Origin = s.originRatio(included)
	report.PriceTiers = s.priceTiers(included)
	report.Commentary = s.commentary(report)

	return report
}

// filter is the read-time pass: irrelevance blocklist plus price ceiling.
func (s *ReportService) filter(products []*models.Product) []*models.Product {
	included := make([]*models.Product, 0, len(products))
	for _, p := range products {
		if p == nil || p.Name == "" || p.Price <= 0 {
			continue
		}
		if p.Price > s.cfg.PriceCeiling {
			continue
		}
		lower := strings.ToLower(p.Name)
		blocked := false
		for _, term := range s.cfg.ForbiddenTerms {
			if strings.Contains(lower, strings.ToLower(term)) {
				blocked = true
				break
			}
		}
		if !blocked {
			included = append(included, p)
		}
	}
	return included
}

func (s *ReportService) brandStats(products []*models.Product) []models.BrandStat {
	type acc struct {
		count    int
		priceSum int
		certs    int
		years    map[string]int
	}
	byMaker := make(map[string]*acc)

	for _, p := range products {
		maker := p.Maker
		if maker == "" {
			maker = "Unknown"
		}
		a := byMaker[maker]
		if a == nil {
			a = &acc{years: make(map[string]int)}
			byMaker[maker] = a
		}
		a.count++
		a.priceSum += p.Price
		if p.Specs.HasCertification() {
			a.certs++
		}
		if len(p.Specs.ReleasedAt) >= 4 {
			a.years[p.Specs.ReleasedAt[:4]]++
		}
	}

	total := len(products)
	stats := make([]models.BrandStat, 0, len(byMaker))
	for maker, a := range byMaker {
		stats = append(stats, models.BrandStat{
			Maker:      maker,
			Count:      a.count,
			SharePct:   round1(float64(a.count) / float64(total) * 100),
			AvgPrice:   int(math.Round(float64(a.priceSum) / float64(a.count))),
			CertRatio:  round1(float64(a.certs) / float64(a.count)),
			YearCounts: a.years,
		})
	}

	// Deterministic order: count desc, then maker for equal counts.
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Maker < stats[j].Maker
	})
	return stats
}

// originRatio re-applies the origin policy at the aggregate level so the
// split stays consistent with extraction-time inference.
func (s *ReportService) originRatio(products []*models.Product) models.OriginRatio {
	var korea, china, other int
	for _, p := range products {
		origin := p.Specs.Origin
		if origin != models.OriginKorea && origin != models.OriginChina && origin != models.OriginOther {
			origin = s.origin(p)
		}
		switch origin {
		case models.OriginKorea:
			korea++
		case models.OriginChina:
			china++
		default:
			other++
		}
	}
	total := float64(len(products))
	return models.OriginRatio{
		KoreaPct: round1(float64(korea) / total * 100),
		ChinaPct: round1(float64(china) / total * 100),
		OtherPct: round1(float64(other) / total * 100),
	}
}

func (s *ReportService) priceTiers(products []*models.Product) []models.PriceTier {
	counts := make([]int, len(priceTierBounds))
	for _, p := range products {
		for i, tier := range priceTierBounds {
			if p.Price < tier.upper {
				counts[i]++
				break
			}
		}
	}
	total := float64(len(products))
	tiers := make([]models.PriceTier, len(priceTierBounds))
	for i, tier := range priceTierBounds {
		tiers[i] = models.PriceTier{
			Label:    tier.label,
			SharePct: round1(float64(counts[i]) / total * 100),
		}
	}
	return tiers
}

// commentary template-fills the top-line numbers. Deterministic: no
// generative calls.
func (s *ReportService) commentary(r *models.Report) string {
	top := "없음"
	topShare := 0.0
	if len(r.Brands) > 0 {
		top = r.Brands[0].Maker
		topShare = r.Brands[0].SharePct
	}
	return fmt.Sprintf(
		"%s 기준 LED 조명 %d개 제품, %d개 브랜드 분석. 평균 가격 %d원. "+
			"점유율 1위 브랜드는 %s(%.1f%%)이며, 국산 비중 %.1f%%, 중국산 비중 %.1f%%로 추정된다.",
		r.Date, r.TotalProducts, r.TotalMakers, r.AvgPrice,
		top, topShare, r.Origin.KoreaPct, r.Origin.ChinaPct)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
