package services

import (
	"strings"
	"time"

	"led-scraper/config"
	"led-scraper/models"
	"led-scraper/utils"
)

// cheapPriceThreshold is the cutoff below which an origin-ambiguous product
// is assumed Chinese. Business rule carried over from the market team;
// do not change the direction without domain sign-off.
const cheapPriceThreshold = 20000

var (
	koreaTokens = []string{"한국", "국산", "국내산", "국내", "korea"}
	chinaTokens = []string{"중국", "중국산", "china"}
)

// OriginPolicy resolves a product's country of origin to one of the
// normalized origin tokens. Exposed as a named, overridable policy because
// the default contains a debatable price heuristic.
type OriginPolicy func(p *models.Product) string

// DefaultOriginPolicy resolves origin in priority order: the explicit
// 제조국/원산지 label, then Korea/China keywords across name+maker+spec text,
// then the price heuristic (cheap ⇒ assume China).
func DefaultOriginPolicy(p *models.Product) string {
	if label := strings.ToLower(p.Specs.Origin); label != "" {
		if matchesAny(label, koreaTokens) {
			return models.OriginKorea
		}
		if matchesAny(label, chinaTokens) {
			return models.OriginChina
		}
	}

	combined := strings.ToLower(p.Name + " " + p.Maker + " " + p.Specs.RawText)
	if matchesAny(combined, koreaTokens) {
		return models.OriginKorea
	}
	if matchesAny(combined, chinaTokens) {
		return models.OriginChina
	}

	if p.Price > 0 && p.Price < cheapPriceThreshold {
		return models.OriginChina
	}
	return models.OriginOther
}

// Normalizer validates extracted products and applies the relevance filters.
// Records failing a filter are dropped, never retried.
type Normalizer struct {
	cfg    *config.Config
	logger *utils.Logger
	origin OriginPolicy
}

// NewNormalizer creates a Normalizer using the default origin policy.
func NewNormalizer(cfg *config.Config, logger *utils.Logger) *Normalizer {
	return &Normalizer{cfg: cfg, logger: logger, origin: DefaultOriginPolicy}
}

// WithOriginPolicy overrides the origin resolution policy.
func (n *Normalizer) WithOriginPolicy(policy OriginPolicy) *Normalizer {
	n.origin = policy
	return n
}

// Normalize cleans and validates one candidate product. It returns nil when
// the record must be excluded (missing name, non-positive price, forbidden
// term, price above the ceiling).
func (n *Normalizer) Normalize(p *models.Product) *models.Product {
	if p == nil {
		return nil
	}

	p.Name = strings.Join(strings.Fields(p.Name), " ")
	if p.Name == "" {
		return nil
	}
	if p.Price <= 0 {
		return nil
	}

	if term, hit := n.forbiddenTerm(p.Name); hit {
		n.logger.Debug("[normalizer] dropping %q — forbidden term %q", p.Name, term)
		return nil
	}

	if p.Price > n.cfg.PriceCeiling {
		n.logger.Debug("[normalizer] dropping %q — price %d above ceiling %d",
			p.Name, p.Price, n.cfg.PriceCeiling)
		return nil
	}

	if strings.TrimSpace(p.Maker) == "" {
		p.Maker = "Unknown"
	}
	if p.SellerCount < 1 {
		p.SellerCount = 1
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if p.CollectedAt.IsZero() {
		p.CollectedAt = time.Now()
	}

	p.Specs.Origin = n.origin(p)
	return p
}

// forbiddenTerm reports the first blocklisted term found in the name.
func (n *Normalizer) forbiddenTerm(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, term := range n.cfg.ForbiddenTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return term, true
		}
	}
	return "", false
}

func matchesAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
