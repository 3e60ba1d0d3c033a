// Package pipeline wires the collection, change-detection, reporting and
// sync stages into one run, shared by the CLI and the hosted trigger. Only
// the I/O adapters (fetch transport, store, trigger) vary per environment.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"led-scraper/config"
	"led-scraper/models"
	"led-scraper/scraper/danawa"
	"led-scraper/services"
	"led-scraper/storage"
	"led-scraper/utils"
)

// DefaultCategories seeds the category table on first run. Operators own
// the table afterwards.
var DefaultCategories = []models.Category{
	{Name: "LED 전구", Keyword: "LED 전구", MaxPages: 3, Active: true},
	{Name: "LED 센서등", Keyword: "LED 센서등", MaxPages: 3, Active: true},
	{Name: "LED 방등", Keyword: "LED 방등", MaxPages: 3, Active: true},
	{Name: "LED 주방등", Keyword: "LED 주방등", MaxPages: 3, Active: true},
	{Name: "LED 투광등", Keyword: "LED 투광등", MaxPages: 3, Active: true},
	{Name: "LED 다운라이트", Keyword: "LED 다운라이트", MaxPages: 3, Active: true},
}

// Store is the full persistence surface one pipeline run touches.
type Store interface {
	storage.ProductStore
	storage.ProductReader
	storage.CategorySource
	storage.ReportStore
	storage.ChangeLog
}

// Summary is the operator-facing outcome of one run.
type Summary struct {
	Collected   int            `json:"collected"`
	Persisted   int            `json:"persisted"`
	FailedPages int            `json:"failed_pages"`
	Events      int            `json:"events"`
	ReportDate  string         `json:"report_date,omitempty"`
	PerCategory map[string]int `json:"per_category"`
}

// Pipeline runs the full ingestion cycle: collect → detect changes →
// aggregate report → side-channel sync.
type Pipeline struct {
	cfg      *config.Config
	logger   *utils.Logger
	store    Store
	fetch    danawa.FetchFunc
	detector *services.ChangeDetector
	reports  *services.ReportService
	notion   *services.NotionSync
}

// New assembles a Pipeline around the given store and fetch transport.
func New(cfg *config.Config, logger *utils.Logger, store Store, fetch danawa.FetchFunc) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		fetch:    fetch,
		detector: services.NewChangeDetector(logger),
		reports:  services.NewReportService(cfg, logger),
		notion:   services.NewNotionSync(cfg, logger),
	}
}

// Run executes one complete cycle. Partial results are committed as they
// are produced; only a failing persistence of the collected set is surfaced
// as an error.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	categories, err := p.loadCategories()
	if err != nil {
		return nil, err
	}
	p.logger.Info("[pipeline] starting run — %d active categories", len(categories))

	// Snapshot prior observations before the collector overwrites them, so
	// the change detector can diff old against new.
	prior, err := p.priorProducts()
	if err != nil {
		p.logger.Error("[pipeline] prior snapshot unavailable, change detection degraded: %v", err)
		prior = map[string]*models.Product{}
	}

	collector := danawa.NewCollector(p.cfg, p.logger, p.fetch, p.store)
	result, err := collector.Run(ctx, categories)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	summary := &Summary{
		Collected:   result.Collected,
		Persisted:   result.Persisted,
		FailedPages: result.FailedPages,
		PerCategory: result.PerCategory,
	}

	summary.Events = p.detectChanges(prior, result.Products)

	if report := p.generateReport(); report != nil {
		summary.ReportDate = report.Date
		p.syncReport(report)
	}

	p.notion.Flush()
	p.logger.Info("[pipeline] run finished — %d collected, %d persisted, %d events, %d failed pages",
		summary.Collected, summary.Persisted, summary.Events, summary.FailedPages)
	return summary, nil
}

func (p *Pipeline) loadCategories() ([]models.Category, error) {
	categories, err := p.store.ActiveCategories()
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if len(categories) > 0 {
		return categories, nil
	}

	p.logger.Info("[pipeline] no categories configured — seeding defaults")
	if err := p.store.SeedCategories(DefaultCategories); err != nil {
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	categories, err = p.store.ActiveCategories()
	if err != nil {
		return nil, fmt.Errorf("reload categories: %w", err)
	}
	return categories, nil
}

func (p *Pipeline) priorProducts() (map[string]*models.Product, error) {
	existing, err := p.store.FetchAllProducts()
	if err != nil {
		return nil, err
	}
	prior := make(map[string]*models.Product, len(existing))
	for _, prod := range existing {
		prior[prod.ExternalID] = prod
	}
	return prior, nil
}

// detectChanges diffs each newly collected product against its prior stored
// version and appends the resulting events. Event persistence is
// best-effort per batch.
func (p *Pipeline) detectChanges(prior map[string]*models.Product, collected []*models.Product) int {
	var events []*models.ChangeEvent
	for _, curr := range collected {
		events = append(events, p.detector.Detect(prior[curr.ExternalID], curr)...)
	}
	if len(events) == 0 {
		return 0
	}

	if err := p.store.AppendEvents(events); err != nil {
		p.logger.Error("[pipeline] append change events: %v", err)
		return 0
	}
	p.logger.Info("[pipeline] recorded %d change events", len(events))
	return len(events)
}

func (p *Pipeline) generateReport() *models.Report {
	products, err := p.store.FetchAllProducts()
	if err != nil {
		p.logger.Error("[pipeline] fetch products for report: %v", err)
		return nil
	}

	report := p.reports.Generate(products, time.Now().Format("2006-01-02"))
	if report == nil {
		return nil
	}

	if err := p.store.UpsertReport(report); err != nil {
		p.logger.Error("[pipeline] upsert report: %v", err)
		return nil
	}
	p.logger.Info("[pipeline] report %s stored — %d products, avg price %d원",
		report.Date, report.TotalProducts, report.AvgPrice)
	return report
}

// syncReport pushes the snapshot's top lines to the document workspace.
// Fire-and-forget through the task queue; failures never block the run.
func (p *Pipeline) syncReport(report *models.Report) {
	if !p.notion.Enabled() {
		return
	}
	p.notion.QueuePost(
		"LED 시장 리포트 "+report.Date, "시장분석", "led-scraper", report.Commentary)
	p.notion.QueueMarketEntry(
		"평균 가격", "가격", float64(report.AvgPrice), report.Commentary, report.Date)
	p.notion.QueueMarketEntry(
		"분석 제품 수", "규모", float64(report.TotalProducts), report.Commentary, report.Date)
}
