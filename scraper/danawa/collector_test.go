package danawa

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"led-scraper/config"
	"led-scraper/models"
	"led-scraper/utils"
)

// fakeStore keeps an upsert-keyed map so repeated runs exercise the same
// row-count invariant the real store has.
type fakeStore struct {
	rows    map[string]*models.Product
	touched []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*models.Product)}
}

func (f *fakeStore) UpsertProducts(products []*models.Product) (int, error) {
	for _, p := range products {
		f.rows[p.ExternalID] = p
	}
	return len(products), nil
}

func (f *fakeStore) TouchCategory(name string, _ time.Time) error {
	f.touched = append(f.touched, name)
	return nil
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		DanawaBaseURL:       baseURL,
		PageSize:            40,
		PolitenessDelayMs:   0,
		MaxPagesPerCategory: 3,
		PriceCeiling:        3000000,
		ForbiddenTerms:      config.DefaultForbiddenTerms,
	}
}

func listingItem(id int, name string, price string) string {
	return fmt.Sprintf(`<li class="prod_item" id="productItem%d">
		<p class="prod_name"><a>%s</a></p>
		<p class="price_sect"><a><strong>%s</strong>원</a></p>
	</li>`, id, name, price)
}

func listingPage(items ...string) string {
	return `<html><body><ul class="product_list">` + strings.Join(items, "\n") + `</ul></body></html>`
}

func TestCollectorStopsAfterThinPage(t *testing.T) {
	var requestedPages []string

	// Page 1 yields 12 valid products, page 2 yields 0: pagination must
	// stop after page 2 even though the budget allows page 3.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requestedPages = append(requestedPages, page)

		if page == "1" {
			var items []string
			for i := 1; i <= 12; i++ {
				items = append(items, listingItem(i, fmt.Sprintf("루미스 LED 센서등 %dW", i), "15,000"))
			}
			fmt.Fprint(w, listingPage(items...))
			return
		}
		fmt.Fprint(w, listingPage())
	}))
	defer srv.Close()

	store := newFakeStore()
	client := utils.NewHTTPClient(5*time.Second, utils.NewLogger())
	c := NewCollector(testConfig(srv.URL), utils.NewLogger(), client.Get, store)

	categories := []models.Category{
		{Name: "LED 센서등", Keyword: "LED 센서등", MaxPages: 3, Active: true},
	}

	result, err := c.Run(context.Background(), categories)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, requestedPages)
	assert.Equal(t, 12, result.PerCategory["LED 센서등"])
	assert.Equal(t, 12, result.Collected)
	assert.Equal(t, 12, result.Persisted)
	assert.Len(t, store.rows, 12)
	assert.Equal(t, []string{"LED 센서등"}, store.touched)
}

func TestCollectorHTTPFailureAbortsCategoryOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "LED 전구" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, listingPage(listingItem(77, "한빛 LED 방등 50W", "42,000")))
	}))
	defer srv.Close()

	store := newFakeStore()
	client := utils.NewHTTPClient(5*time.Second, utils.NewLogger())
	c := NewCollector(testConfig(srv.URL), utils.NewLogger(), client.Get, store)

	categories := []models.Category{
		{Name: "LED 전구", Keyword: "LED 전구", MaxPages: 2, Active: true},
		{Name: "LED 방등", Keyword: "LED 방등", MaxPages: 2, Active: true},
	}

	result, err := c.Run(context.Background(), categories)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedPages)
	assert.Equal(t, 0, result.PerCategory["LED 전구"])
	assert.Equal(t, 1, result.PerCategory["LED 방등"])
	// Both categories get their timestamp updated regardless of outcome.
	assert.Equal(t, []string{"LED 전구", "LED 방등"}, store.touched)
}

func TestCollectorIdempotentUpserts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage(
			listingItem(1, "루미스 LED 전구 10W", "9,900"),
			listingItem(2, "한빛 LED 전구 12W", "12,500"),
		))
	}))
	defer srv.Close()

	store := newFakeStore()
	client := utils.NewHTTPClient(5*time.Second, utils.NewLogger())
	c := NewCollector(testConfig(srv.URL), utils.NewLogger(), client.Get, store)

	categories := []models.Category{
		{Name: "LED 전구", Keyword: "LED 전구", MaxPages: 1, Active: true},
	}

	_, err := c.Run(context.Background(), categories)
	require.NoError(t, err)
	require.Len(t, store.rows, 2)

	// Identical source pages: the row count must not grow.
	_, err = c.Run(context.Background(), categories)
	require.NoError(t, err)
	assert.Len(t, store.rows, 2)
}

func TestCollectorSkipsInactiveCategory(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, listingPage())
	}))
	defer srv.Close()

	store := newFakeStore()
	client := utils.NewHTTPClient(5*time.Second, utils.NewLogger())
	c := NewCollector(testConfig(srv.URL), utils.NewLogger(), client.Get, store)

	result, err := c.Run(context.Background(), []models.Category{
		{Name: "LED 전구", Keyword: "LED 전구", MaxPages: 1, Active: false},
	})
	require.NoError(t, err)

	assert.Zero(t, hits)
	assert.Zero(t, result.Collected)
	assert.Empty(t, store.touched)
}

func TestCollectorFiltersForbiddenProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage(
			listingItem(1, "루미스 LED 전구 10W", "9,900"),
			listingItem(2, "게이밍 노트북 LED 백라이트", "890,000"),
			listingItem(3, "한빛 LED 고급 상업용 조명", "3,500,000"),
		))
	}))
	defer srv.Close()

	store := newFakeStore()
	client := utils.NewHTTPClient(5*time.Second, utils.NewLogger())
	c := NewCollector(testConfig(srv.URL), utils.NewLogger(), client.Get, store)

	result, err := c.Run(context.Background(), []models.Category{
		{Name: "LED 전구", Keyword: "LED 전구", MaxPages: 1, Active: true},
	})
	require.NoError(t, err)

	// The laptop is blocklisted and the 3.5M item is above the ceiling.
	assert.Equal(t, 1, result.Collected)
	assert.Contains(t, store.rows, "1")
}
