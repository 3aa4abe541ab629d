package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/domain/model"
)

// Config carries everything the watcher needs beyond the collection's
// manifest/config JSON files, which are loaded separately by the store.
type Config struct {
	Indexer IndexerConfig
	Watch   WatchConfig
	Paths   PathsConfig
	Alert   AlertConfig
	Server  ServerConfig
	Log     LogConfig
}

type IndexerConfig struct {
	HiroBaseURL    string
	ContentBaseURL string
	TipHeightURL   string
	ListTimeout    time.Duration
	ContentTimeout time.Duration
	TipTimeout     time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

type WatchConfig struct {
	LookbackHours int
	MaxPages      int
	Confirmations int
	PageSize      int
	OutDir        string
	Interval      time.Duration
}

type PathsConfig struct {
	Manifest string
	Config   string
}

type AlertConfig struct {
	SlackWebhookURL string
	WebhookURL      string
	Cooldown        time.Duration
}

type ServerConfig struct {
	HealthPort int
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment. MINT_WATCH_* defaults match
// the upstream watcher workflow.
func Load() (*Config, error) {
	cfg := &Config{
		Indexer: IndexerConfig{
			HiroBaseURL:    getEnv("MINT_WATCH_HIRO_BASE", "https://api.hiro.so/ordinals/v1"),
			ContentBaseURL: getEnv("MINT_WATCH_ORD_CONTENT_BASE", "https://ordinals.com/content"),
			TipHeightURL:   getEnv("MINT_WATCH_TIP_HEIGHT_URL", "https://mempool.space/api/blocks/tip/height"),
			ListTimeout:    time.Duration(getEnvInt("MINT_WATCH_LIST_TIMEOUT_SEC", 45)) * time.Second,
			ContentTimeout: time.Duration(getEnvInt("MINT_WATCH_CONTENT_TIMEOUT_SEC", 15)) * time.Second,
			TipTimeout:     time.Duration(getEnvInt("MINT_WATCH_TIP_TIMEOUT_SEC", 10)) * time.Second,
			RateLimitRPS:   getEnvFloat("MINT_WATCH_RATE_LIMIT_RPS", 4),
			RateLimitBurst: getEnvInt("MINT_WATCH_RATE_LIMIT_BURST", 8),
		},
		Watch: WatchConfig{
			LookbackHours: getEnvInt("MINT_WATCH_LOOKBACK_HOURS", 72),
			MaxPages:      getEnvInt("MINT_WATCH_MAX_PAGES", 10),
			Confirmations: getEnvInt("MINT_WATCH_CONFIRMATIONS", 1),
			PageSize:      getEnvInt("MINT_WATCH_PAGE_SIZE", 60),
			OutDir:        getEnv("MINT_WATCH_OUT_DIR", ".mint-watch"),
			Interval:      time.Duration(getEnvInt("MINT_WATCH_INTERVAL_MIN", 30)) * time.Minute,
		},
		Paths: PathsConfig{
			Manifest: getEnv("MINT_WATCH_MANIFEST_PATH", "data/minted_faces.json"),
			Config:   getEnv("MINT_WATCH_CONFIG_PATH", "data/inscription_config.json"),
		},
		Alert: AlertConfig{
			SlackWebhookURL: getEnv("MINT_WATCH_SLACK_WEBHOOK_URL", ""),
			WebhookURL:      getEnv("MINT_WATCH_ALERT_WEBHOOK_URL", ""),
			Cooldown:        time.Duration(getEnvInt("MINT_WATCH_ALERT_COOLDOWN_MIN", 30)) * time.Minute,
		},
		Server: ServerConfig{
			HealthPort: getEnvInt("MINT_WATCH_HEALTH_PORT", 8080),
		},
		Log: LogConfig{
			Level: getEnv("MINT_WATCH_LOG_LEVEL", "info"),
		},
	}

	if cfg.Indexer.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("MINT_WATCH_RATE_LIMIT_RPS must be positive")
	}
	if strings.TrimSpace(cfg.Paths.Manifest) == "" || strings.TrimSpace(cfg.Paths.Config) == "" {
		return nil, fmt.Errorf("manifest and config paths must not be empty")
	}

	return cfg, nil
}

// NormalizeWatchOptions clamps raw option values the way the upstream watcher
// does: positive integers with fallbacks, confirmations floored at 0, and the
// page size capped to the indexer's 60-row maximum.
func NormalizeWatchOptions(w WatchConfig) model.WatchOptions {
	return model.WatchOptions{
		LookbackHours: positiveOr(w.LookbackHours, 72),
		MaxPages:      positiveOr(w.MaxPages, 10),
		Confirmations: max(0, w.Confirmations),
		PageSize:      min(60, positiveOr(w.PageSize, 60)),
		OutDir:        stringOr(w.OutDir, ".mint-watch"),
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func stringOr(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
