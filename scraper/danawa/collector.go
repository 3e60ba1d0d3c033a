package danawa

import (
	"context"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"led-scraper/config"
	"led-scraper/models"
	"led-scraper/services"
	"led-scraper/storage"
	"led-scraper/utils"
)

// itemSelector matches one listing fragment in a search-results page.
const itemSelector = "li.prod_item, ul.product_list > li"

// maxJitterMs is added on top of the configured politeness delay.
const maxJitterMs = 500

// FetchFunc retrieves one listing page as an HTML string. Transports
// (plain HTTP, headless browser) are interchangeable behind this signature.
type FetchFunc func(ctx context.Context, pageURL string) (string, error)

// RunResult summarizes one collection cycle. Products carries the
// deduplicated set in collection order for downstream change detection.
type RunResult struct {
	Collected   int
	Persisted   int
	FailedPages int
	PerCategory map[string]int
	Products    []*models.Product
}

// Collector drives the categories × pages iteration: fetch, extract,
// normalize, deduplicate, persist. Strictly sequential; the delay between
// page fetches is a politeness choice, not a performance one.
type Collector struct {
	cfg        *config.Config
	logger     *utils.Logger
	fetch      FetchFunc
	extractor  *Extractor
	normalizer *services.Normalizer
	store      storage.ProductStore
}

// NewCollector creates a ready-to-use Collector.
func NewCollector(cfg *config.Config, logger *utils.Logger, fetch FetchFunc, store storage.ProductStore) *Collector {
	return &Collector{
		cfg:        cfg,
		logger:     logger,
		fetch:      fetch,
		extractor:  NewExtractor(logger),
		normalizer: services.NewNormalizer(cfg, logger),
		store:      store,
	}
}

// Run processes every category in insertion order and upserts the
// accumulated, deduplicated product set. Partial results are committed;
// a failing page aborts only its own category's pagination.
func (c *Collector) Run(ctx context.Context, categories []models.Category) (*RunResult, error) {
	result := &RunResult{PerCategory: make(map[string]int)}

	seen := make(map[string]struct{})
	var accumulated []*models.Product

	for _, cat := range categories {
		if !cat.Active {
			c.logger.Debug("[collector] skipping inactive category %q", cat.Name)
			continue
		}

		catCount := c.collectCategory(ctx, cat, seen, &accumulated, result)
		result.PerCategory[cat.Name] = catCount
		c.logger.Info("[collector] category %q done — %d products", cat.Name, catCount)

		if err := c.store.TouchCategory(cat.Name, time.Now()); err != nil {
			c.logger.Error("[collector] update last_scraped_at for %q: %v", cat.Name, err)
		}
	}

	result.Collected = len(accumulated)
	result.Products = accumulated
	if len(accumulated) > 0 {
		persisted, err := c.store.UpsertProducts(accumulated)
		if err != nil {
			// Batches fail independently; whatever was written stays written.
			c.logger.Error("[collector] persist products (partial): %v", err)
		}
		result.Persisted = persisted
	}

	c.logger.Info("[collector] run complete — collected %d, persisted %d, failed pages %d",
		result.Collected, result.Persisted, result.FailedPages)
	return result, nil
}

// collectCategory paginates one category until the page budget is exhausted
// or a page yields materially fewer results than expected.
func (c *Collector) collectCategory(ctx context.Context, cat models.Category, seen map[string]struct{}, accumulated *[]*models.Product, result *RunResult) int {
	maxPages := cat.MaxPages
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPagesPerCategory
	}

	catCount := 0
	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			c.politenessDelay(ctx)
		}
		if ctx.Err() != nil {
			c.logger.Warn("[collector] run cancelled during %q: %v", cat.Name, ctx.Err())
			return catCount
		}

		pageURL := c.buildPageURL(cat.Keyword, page)
		html, err := c.fetch(ctx, pageURL)
		if err != nil {
			c.logger.Error("[collector] %q page %d fetch failed: %v — moving to next category",
				cat.Name, page, err)
			result.FailedPages++
			return catCount
		}

		products := c.extractPage(html, cat.Name)
		c.logger.Info("[collector] %q page %d — %d valid products", cat.Name, page, len(products))

		for _, p := range products {
			if _, dup := seen[p.ExternalID]; dup {
				continue
			}
			seen[p.ExternalID] = struct{}{}
			*accumulated = append(*accumulated, p)
			catCount++
		}

		// End-of-results heuristic: a thin page means the source ran out of
		// listings for this keyword. Soft termination, not an error.
		if len(products) < c.cfg.PageSize/4 {
			c.logger.Debug("[collector] %q page %d below threshold — stopping pagination", cat.Name, page)
			break
		}
	}
	return catCount
}

// extractPage parses a results document and returns the normalized products.
func (c *Collector) extractPage(html, category string) []*models.Product {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.Error("[collector] parse page for %q: %v", category, err)
		return nil
	}

	var products []*models.Product
	doc.Find(itemSelector).Each(func(_ int, item *goquery.Selection) {
		candidate := c.extractor.ExtractProduct(item, category)
		if candidate == nil {
			return
		}
		if normalized := c.normalizer.Normalize(candidate); normalized != nil {
			products = append(products, normalized)
		}
	})
	return products
}

func (c *Collector) buildPageURL(keyword string, page int) string {
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	return c.cfg.DanawaBaseURL + "?" + q.Encode()
}

func (c *Collector) politenessDelay(ctx context.Context) {
	delay := time.Duration(c.cfg.PolitenessDelayMs+rand.Intn(maxJitterMs)) * time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
