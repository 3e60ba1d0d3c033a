package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"led-scraper/models"
)

// PostgresStore persists products, categories, reports and change events.
// All writes are row-level upserts (or appends, for events), so repeated
// runs are idempotent per row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			external_id  TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			price        INTEGER NOT NULL,
			maker        TEXT NOT NULL DEFAULT 'Unknown',
			category     TEXT NOT NULL DEFAULT '',
			specs        JSONB NOT NULL DEFAULT '{}',
			image_url    TEXT NOT NULL DEFAULT '',
			seller_count INTEGER NOT NULL DEFAULT 1,
			status       TEXT NOT NULL DEFAULT 'active',
			source       TEXT NOT NULL DEFAULT '',
			collected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_products_maker    ON products(maker);
		CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
		CREATE INDEX IF NOT EXISTS idx_products_price    ON products(price);

		CREATE TABLE IF NOT EXISTS categories (
			name            TEXT PRIMARY KEY,
			keyword         TEXT NOT NULL,
			max_pages       INTEGER NOT NULL DEFAULT 3,
			active          BOOLEAN NOT NULL DEFAULT TRUE,
			last_scraped_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS reports (
			report_date      DATE PRIMARY KEY,
			total_products   INTEGER NOT NULL,
			total_makers     INTEGER NOT NULL,
			total_categories INTEGER NOT NULL,
			avg_price        INTEGER NOT NULL,
			brands           JSONB NOT NULL DEFAULT '[]',
			category_counts  JSONB NOT NULL DEFAULT '{}',
			origin           JSONB NOT NULL DEFAULT '{}',
			price_tiers      JSONB NOT NULL DEFAULT '[]',
			commentary       TEXT NOT NULL DEFAULT '',
			generated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS change_events (
			id           BIGSERIAL PRIMARY KEY,
			event_type   TEXT NOT NULL,
			external_id  TEXT NOT NULL,
			product_name TEXT NOT NULL,
			old_value    TEXT NOT NULL DEFAULT '',
			new_value    TEXT NOT NULL DEFAULT '',
			summary      TEXT NOT NULL,
			severity     TEXT NOT NULL,
			detected_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_change_events_external_id ON change_events(external_id);
	`)
	return err
}

// UpsertProducts writes the accumulated set in batches, keyed on
// external_id. Last observation wins for mutable fields. Returns the number
// of rows successfully written; a failing batch is logged by the caller and
// does not halt the remaining batches.
func (s *PostgresStore) UpsertProducts(products []*models.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	const batchSize = 50
	written := 0
	var firstErr error
	for i := 0; i < len(products); i += batchSize {
		end := i + batchSize
		if end > len(products) {
			end = len(products)
		}
		if err := s.upsertBatch(products[i:end]); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written += end - i
	}
	return written, firstErr
}

func (s *PostgresStore) upsertBatch(batch []*models.Product) error {
	const cols = 11
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, p := range batch {
		specs, err := json.Marshal(p.Specs)
		if err != nil {
			return fmt.Errorf("postgres: marshal specs for %s: %w", p.ExternalID, err)
		}

		base := idx * cols
		placeholders := make([]string, cols)
		for j := 0; j < cols; j++ {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			p.ExternalID, p.Name, p.Price, p.Maker, p.Category, specs,
			p.ImageURL, p.SellerCount, p.Status, p.Source, p.CollectedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO products (external_id, name, price, maker, category, specs,
			image_url, seller_count, status, source, collected_at)
		VALUES %s
		ON CONFLICT (external_id) DO UPDATE SET
			name         = EXCLUDED.name,
			price        = EXCLUDED.price,
			maker        = EXCLUDED.maker,
			category     = EXCLUDED.category,
			specs        = EXCLUDED.specs,
			image_url    = EXCLUDED.image_url,
			seller_count = EXCLUDED.seller_count,
			status       = EXCLUDED.status,
			source       = EXCLUDED.source,
			collected_at = EXCLUDED.collected_at
	`, strings.Join(valueStrings, ","))

	if _, err := s.db.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: upsert products batch: %w", err)
	}
	return nil
}

// FetchAllProducts retrieves every stored product, in insertion-stable
// external_id order.
func (s *PostgresStore) FetchAllProducts() ([]*models.Product, error) {
	rows, err := s.db.Query(`
		SELECT external_id, name, price, maker, category, specs,
		       image_url, seller_count, status, source, collected_at
		FROM products
		ORDER BY external_id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// FetchProduct retrieves one product by external id; (nil, nil) when absent.
func (s *PostgresStore) FetchProduct(externalID string) (*models.Product, error) {
	row := s.db.QueryRow(`
		SELECT external_id, name, price, maker, category, specs,
		       image_url, seller_count, status, source, collected_at
		FROM products
		WHERE external_id = $1
	`, externalID)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	var specs []byte
	if err := row.Scan(
		&p.ExternalID, &p.Name, &p.Price, &p.Maker, &p.Category, &specs,
		&p.ImageURL, &p.SellerCount, &p.Status, &p.Source, &p.CollectedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("postgres: scan product: %w", err)
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &p.Specs); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal specs for %s: %w", p.ExternalID, err)
		}
	}
	return p, nil
}

// ActiveCategories returns the operator-enabled search facets.
func (s *PostgresStore) ActiveCategories() ([]models.Category, error) {
	rows, err := s.db.Query(`
		SELECT name, keyword, max_pages, active, COALESCE(last_scraped_at, 'epoch'::timestamptz)
		FROM categories
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.Name, &c.Keyword, &c.MaxPages, &c.Active, &c.LastScrapedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SeedCategories inserts the given categories, keeping any existing rows
// (operators own them; the pipeline never overwrites their edits).
func (s *PostgresStore) SeedCategories(categories []models.Category) error {
	for _, c := range categories {
		_, err := s.db.Exec(`
			INSERT INTO categories (name, keyword, max_pages, active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
		`, c.Name, c.Keyword, c.MaxPages, c.Active)
		if err != nil {
			return fmt.Errorf("postgres: seed category %q: %w", c.Name, err)
		}
	}
	return nil
}

// TouchCategory records the end of a scrape cycle for one category.
func (s *PostgresStore) TouchCategory(name string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE categories SET last_scraped_at = $2 WHERE name = $1`, name, at)
	if err != nil {
		return fmt.Errorf("postgres: touch category %q: %w", name, err)
	}
	return nil
}

// UpsertReport writes the snapshot for its date; re-running the same day
// overwrites the prior row (last write wins).
func (s *PostgresStore) UpsertReport(r *models.Report) error {
	brands, err := json.Marshal(r.Brands)
	if err != nil {
		return fmt.Errorf("postgres: marshal brands: %w", err)
	}
	categoryCounts, err := json.Marshal(r.CategoryCounts)
	if err != nil {
		return fmt.Errorf("postgres: marshal category counts: %w", err)
	}
	origin, err := json.Marshal(r.Origin)
	if err != nil {
		return fmt.Errorf("postgres: marshal origin: %w", err)
	}
	tiers, err := json.Marshal(r.PriceTiers)
	if err != nil {
		return fmt.Errorf("postgres: marshal price tiers: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO reports (report_date, total_products, total_makers, total_categories,
			avg_price, brands, category_counts, origin, price_tiers, commentary, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (report_date) DO UPDATE SET
			total_products   = EXCLUDED.total_products,
			total_makers     = EXCLUDED.total_makers,
			total_categories = EXCLUDED.total_categories,
			avg_price        = EXCLUDED.avg_price,
			brands           = EXCLUDED.brands,
			category_counts  = EXCLUDED.category_counts,
			origin           = EXCLUDED.origin,
			price_tiers      = EXCLUDED.price_tiers,
			commentary       = EXCLUDED.commentary,
			generated_at     = NOW()
	`, r.Date, r.TotalProducts, r.TotalMakers, r.TotalCategories,
		r.AvgPrice, brands, categoryCounts, origin, tiers, r.Commentary)
	if err != nil {
		return fmt.Errorf("postgres: upsert report %s: %w", r.Date, err)
	}
	return nil
}

// AppendEvents inserts change events. Append-only: events are never updated
// or superseded.
func (s *PostgresStore) AppendEvents(events []*models.ChangeEvent) error {
	for _, e := range events {
		_, err := s.db.Exec(`
			INSERT INTO change_events (event_type, external_id, product_name,
				old_value, new_value, summary, severity, detected_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, e.EventType, e.ExternalID, e.ProductName,
			e.OldValue, e.NewValue, e.Summary, e.Severity, e.DetectedAt)
		if err != nil {
			return fmt.Errorf("postgres: append event %s/%s: %w", e.EventType, e.ExternalID, err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
