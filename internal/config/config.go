package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string
	SheetsDir   string
	ChatLogDir  string

	// SheetSourcesCSV maps sheet names to published spreadsheet CSV export
	// URLs, formatted "sheet=url,sheet=url".
	SheetSourcesCSV string
	SheetSyncSpec   string

	LineChannelSecret string
	LineChannelToken  string
	LineAPIBase       string
	LineDataAPIBase   string

	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeoutSec int

	StagesCSV           string
	FAQSheet            string
	PaintSheet          string
	ColorSheet          string
	ProductSheet        string
	MatchRatioThreshold float64

	SessionMaxEntries int
	SessionTTLHours   int

	Greeting     string
	SystemPrompt string

	BotAPIURL string
}

func FromEnv() Config {
	dataDir := stringOrDefault("SHOPBOT_DATA_DIR", "/data")

	return Config{
		Environment: stringOrDefault("SHOPBOT_ENV", "development"),
		HTTPAddr:    stringOrDefault("SHOPBOT_HTTP_ADDR", ":8080"),
		DataDir:     dataDir,
		DBPath:      stringOrDefault("SHOPBOT_DB_PATH", filepath.Join(dataDir, "shopbot", "knowledge.sqlite")),
		SheetsDir:   stringOrDefault("SHOPBOT_SHEETS_DIR", filepath.Join(dataDir, "sheets")),
		ChatLogDir:  stringOrDefault("SHOPBOT_CHAT_LOG_DIR", filepath.Join(dataDir, "shopbot", "logs")),

		SheetSourcesCSV: strings.TrimSpace(os.Getenv("SHOPBOT_SHEET_SOURCES")),
		SheetSyncSpec:   stringOrDefault("SHOPBOT_SHEET_SYNC_SPEC", "@every 30m"),

		LineChannelSecret: strings.TrimSpace(os.Getenv("SHOPBOT_LINE_CHANNEL_SECRET")),
		LineChannelToken:  strings.TrimSpace(os.Getenv("SHOPBOT_LINE_CHANNEL_TOKEN")),
		LineAPIBase:       stringOrDefault("SHOPBOT_LINE_API_BASE", "https://api.line.me"),
		LineDataAPIBase:   stringOrDefault("SHOPBOT_LINE_DATA_API_BASE", "https://api-data.line.me"),

		LLMBaseURL:    stringOrDefault("SHOPBOT_LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:     strings.TrimSpace(os.Getenv("SHOPBOT_LLM_API_KEY")),
		LLMModel:      stringOrDefault("SHOPBOT_LLM_MODEL", "gpt-4o"),
		LLMTimeoutSec: intOrDefault("SHOPBOT_LLM_TIMEOUT_SECONDS", 30),

		StagesCSV:           stringOrDefault("SHOPBOT_STAGES", "faq,pricing,catalog,fallback"),
		FAQSheet:            stringOrDefault("SHOPBOT_FAQ_SHEET", "faq"),
		PaintSheet:          stringOrDefault("SHOPBOT_PAINT_SHEET", "paint"),
		ColorSheet:          stringOrDefault("SHOPBOT_COLOR_SHEET", "colors"),
		ProductSheet:        stringOrDefault("SHOPBOT_PRODUCT_SHEET", "products"),
		MatchRatioThreshold: floatOrDefault("SHOPBOT_MATCH_RATIO_THRESHOLD", 0.6),

		SessionMaxEntries: intOrDefault("SHOPBOT_SESSION_MAX_ENTRIES", 4096),
		SessionTTLHours:   intOrDefault("SHOPBOT_SESSION_TTL_HOURS", 48),

		Greeting:     stringOrDefault("SHOPBOT_GREETING", "您好，歡迎光臨 H.R燈藝！很高興為您服務～"),
		SystemPrompt: strings.TrimSpace(os.Getenv("SHOPBOT_SYSTEM_PROMPT")),

		BotAPIURL: stringOrDefault("SHOPBOT_API_URL", "http://127.0.0.1:8080"),
	}
}

func stringOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func floatOrDefault(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// Stages returns the configured pipeline stage tags in order.
func (c Config) Stages() []string {
	parts := strings.Split(c.StagesCSV, ",")
	stages := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.ToLower(strings.TrimSpace(part)); tag != "" {
			stages = append(stages, tag)
		}
	}
	return stages
}

// SheetSources parses SheetSourcesCSV into a sheet→URL map.
func (c Config) SheetSources() map[string]string {
	sources := map[string]string{}
	for _, pair := range strings.Split(c.SheetSourcesCSV, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		url = strings.TrimSpace(url)
		if !found || name == "" || url == "" {
			continue
		}
		sources[name] = url
	}
	return sources
}
