package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"led-scraper/config"
	"led-scraper/utils"
)

const notionVersion = "2022-06-28"

// NotionSync pushes posts and market entries to the document workspace.
// Sync is a side channel: tasks run asynchronously on a bounded queue with
// retry/backoff and never block the primary persistence path.
type NotionSync struct {
	cfg     *config.Config
	logger  *utils.Logger
	queue   *utils.TaskQueue
	client  *http.Client
	baseURL string
}

// NewNotionSync creates the sync service. With no token configured it stays
// disabled and every queue call is a no-op.
func NewNotionSync(cfg *config.Config, logger *utils.Logger) *NotionSync {
	return &NotionSync{
		cfg:     cfg,
		logger:  logger,
		queue:   utils.NewTaskQueue(cfg.SyncWorkers, cfg.SyncMaxRetries, logger),
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://api.notion.com",
	}
}

// Enabled reports whether a workspace token is configured.
func (s *NotionSync) Enabled() bool {
	return s.cfg.NotionToken != ""
}

// QueuePost enqueues a post page (title, category, author, body).
func (s *NotionSync) QueuePost(title, category, author, body string) {
	if !s.Enabled() || s.cfg.NotionPostsDB == "" {
		return
	}
	s.queue.Submit("notion post "+title, func() error {
		return s.createPage(s.cfg.NotionPostsDB, map[string]any{
			"제목":  titleProp(title),
			"분류":  selectProp(category),
			"작성자": richTextProp(author),
			"본문":  richTextProp(body),
			"작성일": dateProp(time.Now().Format("2006-01-02")),
		})
	})
}

// QueueMarketEntry enqueues a market-entry page (title, category, numeric
// value, description, date).
func (s *NotionSync) QueueMarketEntry(title, category string, value float64, description, date string) {
	if !s.Enabled() || s.cfg.NotionMarketDB == "" {
		return
	}
	s.queue.Submit("notion market entry "+title, func() error {
		return s.createPage(s.cfg.NotionMarketDB, map[string]any{
			"항목": titleProp(title),
			"분류": selectProp(category),
			"수치": map[string]any{"number": value},
			"설명": richTextProp(description),
			"기준일": dateProp(date),
		})
	})
}

// Flush waits for all queued sync tasks and logs the final tally.
func (s *NotionSync) Flush() {
	s.queue.Wait()
	ok, failed := s.queue.Stats()
	if ok+failed > 0 {
		s.logger.Info("[notion] sync finished — %d ok, %d failed", ok, failed)
	}
}

func (s *NotionSync) createPage(databaseID string, properties map[string]any) error {
	payload, err := json.Marshal(map[string]any{
		"parent":     map[string]any{"database_id": databaseID},
		"properties": properties,
	})
	if err != nil {
		return fmt.Errorf("notion: marshal page: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v1/pages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notion: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.NotionToken)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notion: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notion: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func titleProp(text string) map[string]any {
	return map[string]any{
		"title": []map[string]any{{"text": map[string]any{"content": text}}},
	}
}

func richTextProp(text string) map[string]any {
	return map[string]any{
		"rich_text": []map[string]any{{"text": map[string]any{"content": text}}},
	}
}

func selectProp(name string) map[string]any {
	return map[string]any{"select": map[string]any{"name": name}}
}

func dateProp(date string) map[string]any {
	return map[string]any{"date": map[string]any{"start": date}}
}
