package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"led-scraper/config"
	"led-scraper/models"
	"led-scraper/utils"
)

// memStore is a full in-memory Store for end-to-end pipeline runs.
type memStore struct {
	products   map[string]*models.Product
	categories []models.Category
	reports    map[string]*models.Report
	events     []*models.ChangeEvent
}

func newMemStore(categories ...models.Category) *memStore {
	return &memStore{
		products:   make(map[string]*models.Product),
		categories: categories,
		reports:    make(map[string]*models.Report),
	}
}

func (m *memStore) UpsertProducts(products []*models.Product) (int, error) {
	for _, p := range products {
		m.products[p.ExternalID] = p
	}
	return len(products), nil
}

func (m *memStore) TouchCategory(name string, at time.Time) error {
	for i := range m.categories {
		if m.categories[i].Name == name {
			m.categories[i].LastScrapedAt = at
		}
	}
	return nil
}

func (m *memStore) FetchAllProducts() ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) FetchProduct(externalID string) (*models.Product, error) {
	return m.products[externalID], nil
}

func (m *memStore) ActiveCategories() ([]models.Category, error) {
	var active []models.Category
	for _, c := range m.categories {
		if c.Active {
			active = append(active, c)
		}
	}
	return active, nil
}

func (m *memStore) SeedCategories(categories []models.Category) error {
	m.categories = append(m.categories, categories...)
	return nil
}

func (m *memStore) UpsertReport(r *models.Report) error {
	m.reports[r.Date] = r
	return nil
}

func (m *memStore) AppendEvents(events []*models.ChangeEvent) error {
	m.events = append(m.events, events...)
	return nil
}

func pipelineConfig(baseURL string) *config.Config {
	return &config.Config{
		DanawaBaseURL:       baseURL,
		PageSize:            40,
		PolitenessDelayMs:   0,
		MaxPagesPerCategory: 1,
		PriceCeiling:        3000000,
		ForbiddenTerms:      config.DefaultForbiddenTerms,
		SyncWorkers:         1,
		SyncMaxRetries:      1,
	}
}

func listingServer(price *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><ul class="product_list">
			<li class="prod_item" id="productItem1">
				<p class="prod_name"><a>루미스 LED 전구 10W</a></p>
				<p class="price_sect"><a><strong>%d</strong>원</a></p>
			</li>
			<li class="prod_item" id="productItem2">
				<p class="prod_name"><a>한빛 LED 방등 50W</a></p>
				<p class="price_sect"><a><strong>42,000</strong></a></p>
			</li>
		</ul></body></html>`, *price)
	}))
}

func httpFetch(t *testing.T) func(ctx context.Context, url string) (string, error) {
	t.Helper()
	client := utils.NewHTTPClient(5*time.Second, utils.NewLogger())
	return client.Get
}

func TestPipelineFirstRunEmitsNewProductEvents(t *testing.T) {
	price := 9900
	srv := listingServer(&price)
	defer srv.Close()

	store := newMemStore(models.Category{Name: "LED 전구", Keyword: "LED 전구", MaxPages: 1, Active: true})
	p := New(pipelineConfig(srv.URL), utils.NewLogger(), store, httpFetch(t))

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Collected)
	assert.Equal(t, 2, summary.Persisted)
	assert.Equal(t, 2, summary.Events)
	assert.Len(t, store.products, 2)

	for _, e := range store.events {
		assert.Equal(t, models.EventNewProduct, e.EventType)
	}

	require.NotEmpty(t, summary.ReportDate)
	report := store.reports[summary.ReportDate]
	require.NotNil(t, report)
	assert.Equal(t, 2, report.TotalProducts)
	// round((9900+42000)/2) = 25950
	assert.Equal(t, 25950, report.AvgPrice)
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	price := 9900
	srv := listingServer(&price)
	defer srv.Close()

	store := newMemStore(models.Category{Name: "LED 전구", Keyword: "LED 전구", MaxPages: 1, Active: true})
	p := New(pipelineConfig(srv.URL), utils.NewLogger(), store, httpFetch(t))

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	firstEvents := len(store.events)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	// Same source pages: no duplicate rows, no further events.
	assert.Len(t, store.products, 2)
	assert.Equal(t, 0, summary.Events)
	assert.Len(t, store.events, firstEvents)
	assert.Len(t, store.reports, 1)
}

func TestPipelineDetectsPriceChangeAcrossRuns(t *testing.T) {
	price := 10000
	srv := listingServer(&price)
	defer srv.Close()

	store := newMemStore(models.Category{Name: "LED 전구", Keyword: "LED 전구", MaxPages: 1, Active: true})
	p := New(pipelineConfig(srv.URL), utils.NewLogger(), store, httpFetch(t))

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	price = 12000
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Events)
	last := store.events[len(store.events)-1]
	assert.Equal(t, models.EventPriceChange, last.EventType)
	assert.Equal(t, "1", last.ExternalID)
	assert.Equal(t, models.SeverityHigh, last.Severity)
	assert.Contains(t, last.Summary, "인상")
}

func TestPipelineSeedsDefaultCategories(t *testing.T) {
	price := 9900
	srv := listingServer(&price)
	defer srv.Close()

	store := newMemStore()
	p := New(pipelineConfig(srv.URL), utils.NewLogger(), store, httpFetch(t))

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.categories, len(DefaultCategories))
}
