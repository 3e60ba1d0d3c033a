package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"led-scraper/config"
	"led-scraper/pipeline"
	"led-scraper/scraper/danawa"
	"led-scraper/storage"
	"led-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== LED Market Scraping System starting ===")
	logger.Info("Config — pages/category: %d | page size: %d | delay: %dms | price ceiling: %d",
		cfg.MaxPagesPerCategory, cfg.PageSize, cfg.PolitenessDelayMs, cfg.PriceCeiling)

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	var fetch danawa.FetchFunc
	if cfg.UseBrowserFetch {
		browserFetch, cleanup := danawa.NewBrowserFetch(logger)
		defer cleanup()
		fetch = browserFetch
	} else {
		httpClient := utils.NewHTTPClient(time.Duration(cfg.FetchTimeoutSec)*time.Second, logger)
		fetch = httpClient.Get
	}

	p := pipeline.New(cfg, logger, store, fetch)
	summary, err := p.Run(context.Background())
	if err != nil {
		logger.Error("Pipeline run failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("\n  Done. %d products collected, %d persisted, %d change events",
		summary.Collected, summary.Persisted, summary.Events)
	if summary.ReportDate != "" {
		fmt.Printf(", report %s stored", summary.ReportDate)
	}
	fmt.Printf(" (%d failed pages)\n\n", summary.FailedPages)
}
