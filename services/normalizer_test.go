package services

import (
	"testing"

	"led-scraper/config"
	"led-scraper/models"
	"led-scraper/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		PriceCeiling:   3000000,
		ForbiddenTerms: config.DefaultForbiddenTerms,
	}
}

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func candidate(name string, price int) *models.Product {
	return &models.Product{ExternalID: "1", Name: name, Price: price, Maker: "루미스"}
}

func TestNormalizeDropsInvalidRecords(t *testing.T) {
	n := NewNormalizer(testConfig(), newTestLogger())

	tests := []struct {
		name    string
		product *models.Product
	}{
		{"empty name", candidate("   ", 10000)},
		{"zero price", candidate("LED 전구", 0)},
		{"negative price", candidate("LED 전구", -100)},
		{"forbidden term", candidate("게이밍 노트북 LED", 500000)},
		{"above ceiling", candidate("상업용 LED 조명 세트", 3500000)},
	}

	for _, tt := range tests {
		if got := n.Normalize(tt.product); got != nil {
			t.Errorf("%s: expected nil, got %+v", tt.name, got)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	n := NewNormalizer(testConfig(), newTestLogger())

	p := &models.Product{ExternalID: "1", Name: "  LED   전구  10W ", Price: 9900}
	got := n.Normalize(p)
	if got == nil {
		t.Fatal("expected product, got nil")
	}
	if got.Name != "LED 전구 10W" {
		t.Errorf("Name: got %q, want %q", got.Name, "LED 전구 10W")
	}
	if got.Maker != "Unknown" {
		t.Errorf("Maker: got %q, want Unknown", got.Maker)
	}
	if got.SellerCount != 1 {
		t.Errorf("SellerCount: got %d, want 1", got.SellerCount)
	}
	if got.Status != "active" {
		t.Errorf("Status: got %q, want active", got.Status)
	}
	if got.CollectedAt.IsZero() {
		t.Error("CollectedAt should be set")
	}
}

func TestNormalizePriceAtCeilingKept(t *testing.T) {
	n := NewNormalizer(testConfig(), newTestLogger())

	if got := n.Normalize(candidate("상업용 LED 조명", 3000000)); got == nil {
		t.Error("price equal to the ceiling must be kept")
	}
}

func TestDefaultOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		product *models.Product
		want    string
	}{
		{
			"explicit korea label",
			&models.Product{Name: "LED 전구", Price: 5000, Specs: models.SpecInfo{Origin: "한국"}},
			models.OriginKorea,
		},
		{
			"explicit china label",
			&models.Product{Name: "LED 전구", Price: 50000, Specs: models.SpecInfo{Origin: "중국"}},
			models.OriginChina,
		},
		{
			"keyword in name",
			&models.Product{Name: "국산 LED 방등", Price: 45000},
			models.OriginKorea,
		},
		{
			"keyword in spec text",
			&models.Product{Name: "LED 방등", Price: 45000, Specs: models.SpecInfo{RawText: "중국산 / 50W"}},
			models.OriginChina,
		},
		{
			"ambiguous cheap assumes china",
			&models.Product{Name: "LED 전구", Price: 3000},
			models.OriginChina,
		},
		{
			"ambiguous expensive stays other",
			&models.Product{Name: "LED 전구", Price: 120000},
			models.OriginOther,
		},
	}

	for _, tt := range tests {
		if got := DefaultOriginPolicy(tt.product); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNormalizeOriginPolicyOverride(t *testing.T) {
	n := NewNormalizer(testConfig(), newTestLogger()).
		WithOriginPolicy(func(*models.Product) string { return models.OriginKorea })

	got := n.Normalize(candidate("LED 전구", 3000))
	if got == nil {
		t.Fatal("expected product, got nil")
	}
	if got.Specs.Origin != models.OriginKorea {
		t.Errorf("Origin: got %q, want %q", got.Specs.Origin, models.OriginKorea)
	}
}
