package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultForbiddenTerms excludes non-lighting electronics that share search
// keywords with LED products (laptops, monitors, TVs and the like).
var DefaultForbiddenTerms = []string{
	"노트북", "모니터", "TV", "텔레비전", "냉장고", "세탁기",
	"키보드", "마우스", "복합기", "스피커",
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	DanawaBaseURL       string
	PageSize            int
	PolitenessDelayMs   int
	MaxPagesPerCategory int
	FetchTimeoutSec     int
	PriceCeiling        int
	ForbiddenTerms      []string
	UseBrowserFetch     bool

	NotionToken    string
	NotionPostsDB  string
	NotionMarketDB string
	SyncWorkers    int
	SyncMaxRetries int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "led_market"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		DanawaBaseURL:       getEnv("DANAWA_BASE_URL", "https://search.danawa.com/dsearch.php"),
		PageSize:            getEnvInt("PAGE_SIZE", 40),
		PolitenessDelayMs:   getEnvInt("POLITENESS_DELAY_MS", 1000),
		MaxPagesPerCategory: getEnvInt("MAX_PAGES_PER_CATEGORY", 3),
		FetchTimeoutSec:     getEnvInt("FETCH_TIMEOUT_SEC", 20),
		PriceCeiling:        getEnvInt("PRICE_CEILING", 3000000),
		ForbiddenTerms:      getEnvList("FORBIDDEN_TERMS", DefaultForbiddenTerms),
		UseBrowserFetch:     getEnvBool("USE_BROWSER_FETCH", false),

		NotionToken:    getEnv("NOTION_TOKEN", ""),
		NotionPostsDB:  getEnv("NOTION_POSTS_DB", ""),
		NotionMarketDB: getEnv("NOTION_MARKET_DB", ""),
		SyncWorkers:    getEnvInt("SYNC_WORKERS", 2),
		SyncMaxRetries: getEnvInt("SYNC_MAX_RETRIES", 3),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
