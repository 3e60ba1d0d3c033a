package storage

import (
	"time"

	"led-scraper/models"
)

// ProductStore is the write surface the collector needs.
type ProductStore interface {
	UpsertProducts(products []*models.Product) (int, error)
	TouchCategory(name string, at time.Time) error
}

// ProductReader is the read surface for the report aggregator and the
// change detector.
type ProductReader interface {
	FetchAllProducts() ([]*models.Product, error)
	FetchProduct(externalID string) (*models.Product, error)
}

// CategorySource provides the operator-maintained search facets.
type CategorySource interface {
	ActiveCategories() ([]models.Category, error)
	SeedCategories(categories []models.Category) error
}

// ReportStore persists dated market snapshots, one row per date.
type ReportStore interface {
	UpsertReport(report *models.Report) error
}

// ChangeLog is the append-only event sink.
type ChangeLog interface {
	AppendEvents(events []*models.ChangeEvent) error
}
