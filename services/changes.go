package services

import (
	"fmt"
	"math"
	"time"

	"led-scraper/models"
	"led-scraper/utils"
)

// highDeltaPct is the price-change severity threshold: an absolute delta
// above 10% is tagged high.
const highDeltaPct = 10.0

// ChangeDetector diffs a newly observed product against its previously
// stored version and emits discrete, append-only change events. Each
// differing field yields its own event.
type ChangeDetector struct {
	logger *utils.Logger
}

// NewChangeDetector creates a ChangeDetector with the given logger.
func NewChangeDetector(logger *utils.Logger) *ChangeDetector {
	return &ChangeDetector{logger: logger}
}

// Detect compares the previous and current observation of one logical
// product (matched by external id). A nil previous record yields a single
// new_product event and nothing else.
func (d *ChangeDetector) Detect(prev, curr *models.Product) []*models.ChangeEvent {
	if curr == nil {
		return nil
	}

	now := time.Now()

	if prev == nil {
		return []*models.ChangeEvent{{
			EventType:   models.EventNewProduct,
			ExternalID:  curr.ExternalID,
			ProductName: curr.Name,
			NewValue:    fmt.Sprintf("%d", curr.Price),
			Summary:     fmt.Sprintf("신규 제품 등록: %s (%d원)", curr.Name, curr.Price),
			Severity:    models.SeverityMedium,
			DetectedAt:  now,
		}}
	}

	var events []*models.ChangeEvent

	if prev.Price != curr.Price {
		events = append(events, d.priceEvent(prev, curr, now))
	}

	if prev.Status != curr.Status {
		events = append(events, &models.ChangeEvent{
			EventType:   models.EventStatusChange,
			ExternalID:  curr.ExternalID,
			ProductName: curr.Name,
			OldValue:    prev.Status,
			NewValue:    curr.Status,
			Summary:     fmt.Sprintf("상태 변경: %s → %s", prev.Status, curr.Status),
			Severity:    models.SeverityHigh,
			DetectedAt:  now,
		})
	}

	return events
}

func (d *ChangeDetector) priceEvent(prev, curr *models.Product, now time.Time) *models.ChangeEvent {
	deltaPct := math.Abs(float64(curr.Price-prev.Price)) / float64(prev.Price) * 100

	severity := models.SeverityMedium
	if deltaPct > highDeltaPct {
		severity = models.SeverityHigh
	}

	direction := "인상"
	if curr.Price < prev.Price {
		direction = "인하"
	}

	return &models.ChangeEvent{
		EventType:   models.EventPriceChange,
		ExternalID:  curr.ExternalID,
		ProductName: curr.Name,
		OldValue:    fmt.Sprintf("%d", prev.Price),
		NewValue:    fmt.Sprintf("%d", curr.Price),
		Summary: fmt.Sprintf("가격 %s: %d원 → %d원 (%.1f%%)",
			direction, prev.Price, curr.Price, deltaPct),
		Severity:   severity,
		DetectedAt: now,
	}
}
