package models

import "time"

// Change event types.
const (
	EventPriceChange  = "price_change"
	EventStatusChange = "status_change"
	EventNewProduct   = "new_product"
)

// Change event severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// ChangeEvent is an append-only record of one detected transition between
// two observations of the same logical product. Never updated or deleted.
type ChangeEvent struct {
	ID          int64
	EventType   string
	ExternalID  string
	ProductName string
	OldValue    string
	NewValue    string
	Summary     string
	Severity    string
	DetectedAt  time.Time
}
