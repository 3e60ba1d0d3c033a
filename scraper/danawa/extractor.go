package danawa

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"led-scraper/models"
	"led-scraper/utils"
)

const source = "danawa"

var (
	// productIDRegexp captures the numeric id out of li[id=productItem12345].
	productIDRegexp = regexp.MustCompile(`productItem(\d+)`)
	// numberRegexp captures an integer with optional thousands separators.
	numberRegexp = regexp.MustCompile(`\d[\d,]*`)
	// makerLabelRegexp matches explicit manufacturer/brand labels in free text.
	makerLabelRegexp = regexp.MustCompile(`(?:제조사|브랜드)\s*[:：]?\s*([^\s/|,]+)`)
	// originLabelRegexp matches explicit country-of-manufacture labels.
	originLabelRegexp = regexp.MustCompile(`(?:제조국|원산지)\s*[:：]?\s*([^\s/|,]+)`)
	// releasedRegexp captures the registration month, e.g. "등록월: 2023.05".
	releasedRegexp = regexp.MustCompile(`등록월\s*[:：]?\s*(\d{4})[.\-/](\d{1,2})`)
	// sellerCountRegexp captures "판매처 12" style seller counts.
	sellerCountRegexp = regexp.MustCompile(`판매처\s*(\d+)`)

	wattageRegexp   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[Ww](?:att)?\b`)
	lumenRegexp     = regexp.MustCompile(`(\d[\d,]*)\s*(?:lm|루멘)`)
	efficacyRegexp  = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*lm/[Ww]`)
	colorTempRegexp = regexp.MustCompile(`(\d{4,5})\s*[Kk]\b`)
	chipRegexp      = regexp.MustCompile(`(삼성|엘지|서울반도체|오스람|니치아|크리|Samsung|LG|Osram|Nichia|Cree)\s*(?:칩|chip|LED)?`)
)

// certTokens is the small certification vocabulary recognized in spec text.
var certTokens = []string{"KC", "KS", "고효율"}

// genericNameTokens are never treated as a maker when falling back to the
// first word of the product name.
var genericNameTokens = map[string]struct{}{
	"LED":  {},
	"KC":   {},
	"KS":   {},
	"고효율": {},
	"정품":  {},
	"신형":  {},
	"국산":  {},
}

// nameSelectors, priceSelectors etc. are tried in priority order; the first
// match wins. Danawa has shipped several list markups over time.
var (
	nameSelectors    = []string{"p.prod_name > a", "a.prod_name", "div.prod_name a", "a.click_log_product_standard_title_"}
	priceSelectors   = []string{"p.price_sect strong", "em.prc_c", "span.price_num", "strong.num"}
	makerSelectors   = []string{"span.maker", "a.maker_name", "span.brand"}
	specSelectors    = []string{"div.spec_list", "dl.prod_spec", "div.prod_spec_set"}
	noImagePatterns  = []string{"noImg", "no_img", "noimage", "img_x"}
	lazyImageAttrs   = []string{"data-original", "data-src", "data-lazy-src"}
)

// Extractor parses one listing fragment into a candidate Product.
// Extraction never fails hard: optional fields stay empty, and a fragment
// without a usable name or price yields nil.
type Extractor struct {
	logger *utils.Logger
}

// NewExtractor creates an Extractor with the given logger.
func NewExtractor(logger *utils.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractProduct parses one listing item selection. It returns nil when the
// mandatory fields (name, positive price) cannot be located.
func (e *Extractor) ExtractProduct(item *goquery.Selection, category string) *models.Product {
	name := e.extractName(item)
	if name == "" {
		return nil
	}

	price := e.extractPrice(item)
	if price <= 0 {
		return nil
	}

	specText := e.extractSpecText(item)
	maker := e.extractMaker(item, name, specText)

	p := &models.Product{
		ExternalID:  e.extractExternalID(item),
		Name:        name,
		Price:       price,
		Maker:       maker,
		Category:    category,
		Specs:       e.extractSpecs(name, specText),
		ImageURL:    e.extractImage(item),
		SellerCount: e.extractSellerCount(item),
		Status:      "active",
		Source:      source,
	}
	return p
}

func (e *Extractor) extractName(item *goquery.Selection) string {
	for _, sel := range nameSelectors {
		if node := item.Find(sel).First(); node.Length() > 0 {
			if name := normalizeText(node.Text()); name != "" {
				return name
			}
		}
	}
	return ""
}

// extractPrice tries the hidden numeric attribute first (most reliable),
// then the visible price markup. Zero or unparsable values count as absent.
func (e *Extractor) extractPrice(item *goquery.Selection) int {
	if v, ok := item.Attr("data-price"); ok {
		if n := parsePrice(v); n > 0 {
			return n
		}
	}
	if v, ok := item.Find("a[data-price]").First().Attr("data-price"); ok {
		if n := parsePrice(v); n > 0 {
			return n
		}
	}
	if v, ok := item.Find("input.price_value").First().Attr("value"); ok {
		if n := parsePrice(v); n > 0 {
			return n
		}
	}

	for _, sel := range priceSelectors {
		if node := item.Find(sel).First(); node.Length() > 0 {
			if n := parsePrice(node.Text()); n > 0 {
				return n
			}
		}
	}
	return 0
}

// extractExternalID reads the source's product id. When the markup carries
// no stable identifier a random one is synthesized, which defeats dedup for
// that record on every run; the warning keeps the weakness observable.
func (e *Extractor) extractExternalID(item *goquery.Selection) string {
	if id, ok := item.Attr("id"); ok {
		if m := productIDRegexp.FindStringSubmatch(id); len(m) == 2 {
			return m[1]
		}
	}
	if v, ok := item.Attr("data-product-id"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}

	generated := "gen-" + uuid.NewString()
	e.logger.Warn("[extractor] no stable product id in fragment — synthesized %s", generated)
	return generated
}

// extractMaker tries explicit 제조사/브랜드 labels, then dedicated markup,
// then the first significant token of the name. Defaults to "Unknown".
func (e *Extractor) extractMaker(item *goquery.Selection, name, specText string) string {
	if m := makerLabelRegexp.FindStringSubmatch(specText); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}

	for _, sel := range makerSelectors {
		if node := item.Find(sel).First(); node.Length() > 0 {
			if maker := normalizeText(node.Text()); maker != "" {
				return maker
			}
		}
	}

	for _, token := range strings.Fields(name) {
		cleaned := strings.Trim(token, "[]()")
		if cleaned == "" {
			continue
		}
		if _, generic := genericNameTokens[strings.ToUpper(cleaned)]; generic {
			continue
		}
		return cleaned
	}
	return "Unknown"
}

// extractImage prefers lazy-load attributes over the eager src, normalizes
// protocol-relative URLs to https, strips query strings and suppresses
// known placeholder images.
func (e *Extractor) extractImage(item *goquery.Selection) string {
	img := item.Find("img").First()
	if img.Length() == 0 {
		return ""
	}

	var raw string
	for _, attr := range lazyImageAttrs {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			raw = strings.TrimSpace(v)
			break
		}
	}
	if raw == "" {
		raw, _ = img.Attr("src")
		raw = strings.TrimSpace(raw)
	}
	if raw == "" {
		return ""
	}

	for _, placeholder := range noImagePatterns {
		if strings.Contains(raw, placeholder) {
			return ""
		}
	}

	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

func (e *Extractor) extractSpecText(item *goquery.Selection) string {
	for _, sel := range specSelectors {
		if node := item.Find(sel).First(); node.Length() > 0 {
			if text := normalizeText(node.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// extractSpecs runs the sub-field patterns over the spec-list text, falling
// back to scanning the name alone for wattage when no spec text exists.
func (e *Extractor) extractSpecs(name, specText string) models.SpecInfo {
	specs := models.SpecInfo{RawText: specText}

	scanText := specText
	if scanText == "" {
		scanText = name
	}

	if m := wattageRegexp.FindStringSubmatch(scanText); len(m) == 2 {
		specs.Wattage = m[1] + "W"
	}
	if specText != "" {
		if m := efficacyRegexp.FindStringSubmatch(specText); len(m) == 2 {
			specs.Efficacy = m[1] + "lm/W"
		}
		if m := lumenRegexp.FindStringSubmatch(stripEfficacy(specText)); len(m) == 2 {
			specs.Lumen = m[1] + "lm"
		}
		if m := colorTempRegexp.FindStringSubmatch(specText); len(m) == 2 {
			specs.ColorTemp = m[1] + "K"
		}
		if m := chipRegexp.FindStringSubmatch(specText); len(m) == 2 {
			specs.ChipVendor = m[1]
		}
		if m := releasedRegexp.FindStringSubmatch(specText); len(m) == 3 {
			month := m[2]
			if len(month) == 1 {
				month = "0" + month
			}
			specs.ReleasedAt = m[1] + "." + month
		}
	}

	combined := name + " " + specText
	for _, cert := range certTokens {
		if cert == "고효율" {
			if strings.Contains(combined, cert) {
				specs.Certifications = append(specs.Certifications, cert)
			}
			continue
		}
		// KC/KS must stand alone; 브래KC트-style substrings do not count.
		if containsToken(combined, cert) {
			specs.Certifications = append(specs.Certifications, cert)
		}
	}

	if m := originLabelRegexp.FindStringSubmatch(specText); len(m) == 2 {
		specs.Origin = strings.TrimSpace(m[1])
	}

	return specs
}

func (e *Extractor) extractSellerCount(item *goquery.Selection) int {
	if node := item.Find("a.prod_count, span.mall_count").First(); node.Length() > 0 {
		if m := numberRegexp.FindString(node.Text()); m != "" {
			if n, err := strconv.Atoi(strings.ReplaceAll(m, ",", "")); err == nil && n >= 1 {
				return n
			}
		}
	}
	if m := sellerCountRegexp.FindStringSubmatch(item.Text()); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			return n
		}
	}
	return 1
}

// parsePrice strips thousands separators and currency glyphs and parses the
// first integer found. Returns 0 when nothing numeric is present.
func parsePrice(raw string) int {
	raw = strings.ReplaceAll(raw, "원", "")
	raw = strings.ReplaceAll(raw, "₩", "")
	match := numberRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// stripEfficacy removes lm/W occurrences so the lumen pattern does not match
// the numerator of an efficacy figure.
func stripEfficacy(s string) string {
	return efficacyRegexp.ReplaceAllString(s, "")
}

// containsToken reports whether token appears in s bounded by non-letters.
func containsToken(s, token string) bool {
	for start := 0; ; {
		i := strings.Index(s[start:], token)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isASCIILetter(s[i-1])
		afterIdx := i + len(token)
		after := afterIdx >= len(s) || !isASCIILetter(s[afterIdx])
		if before && after {
			return true
		}
		start = i + len(token)
	}
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// normalizeText strips leading/trailing whitespace and collapses internal
// whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
