package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Upstream provider names accepted by Quotes.Provider.
const (
	ProviderFinnhub      = "finnhub"
	ProviderAlphaVantage = "alphavantage"
	ProviderYahoo        = "yahoo"
	ProviderScrape       = "scrape"
)

// Cache-Control policies for the quotes endpoint.
const (
	CachePublic  = "public"
	CacheNoStore = "no-store"
)

// Sub-policies for API requests passing through the shell cache.
const (
	APINetworkOnly = "network-only"
	APICacheBust   = "cache-bust"
)

// Shell cache storage backends.
const (
	StorageMemory  = "memory"
	StorageLevelDB = "leveldb"
)

type Server struct {
	Port              string   `json:"port" toml:"port"`
	RequestTimeoutSec int      `json:"request_timeout_sec" toml:"request_timeout_sec"`
	QuotesPath        string   `json:"quotes_path" toml:"quotes_path"`
	QuotesAliases     []string `json:"quotes_aliases" toml:"quotes_aliases"`
}

type Finnhub struct {
	APIKey   string `json:"api_key" toml:"api_key"`
	Endpoint string `json:"endpoint" toml:"endpoint"`
}

type AlphaVantage struct {
	APIKey   string `json:"api_key" toml:"api_key"`
	Endpoint string `json:"endpoint" toml:"endpoint"`
}

type Yahoo struct {
	Endpoint      string `json:"endpoint" toml:"endpoint"`
	ChartEndpoint string `json:"chart_endpoint" toml:"chart_endpoint"`
	UserAgent     string `json:"user_agent" toml:"user_agent"`
}

type Scrape struct {
	// Endpoint is a URL pattern with a single %s for the symbol.
	Endpoint  string `json:"endpoint" toml:"endpoint"`
	UserAgent string `json:"user_agent" toml:"user_agent"`
}

type Quotes struct {
	Provider             string   `json:"provider" toml:"provider"`
	Symbols              []string `json:"symbols" toml:"symbols"`
	UpstreamTimeoutSec   int      `json:"upstream_timeout_sec" toml:"upstream_timeout_sec"`
	MaxConcurrency       int      `json:"max_concurrency" toml:"max_concurrency"`
	History              bool     `json:"history" toml:"history"`
	HistoryDays          int      `json:"history_days" toml:"history_days"`
	HistoryPoints        int      `json:"history_points" toml:"history_points"`
	CachePolicy          string   `json:"cache_policy" toml:"cache_policy"`
	CacheMaxAgeSec       int      `json:"cache_max_age_sec" toml:"cache_max_age_sec"`
	TimeZone             string   `json:"time_zone" toml:"time_zone"`
	MaxRequestsPerMinute int      `json:"max_requests_per_minute" toml:"max_requests_per_minute"`
	Burst                int      `json:"burst" toml:"burst"`

	Finnhub      Finnhub      `json:"finnhub" toml:"finnhub"`
	AlphaVantage AlphaVantage `json:"alphavantage" toml:"alphavantage"`
	Yahoo        Yahoo        `json:"yahoo" toml:"yahoo"`
	Scrape       Scrape       `json:"scrape" toml:"scrape"`
}

type Shell struct {
	Enabled      bool     `json:"enabled" toml:"enabled"`
	Origin       string   `json:"origin" toml:"origin"`
	CachePrefix  string   `json:"cache_prefix" toml:"cache_prefix"`
	Version      string   `json:"version" toml:"version"`
	Assets       []string `json:"assets" toml:"assets"`
	APIPrefix    string   `json:"api_prefix" toml:"api_prefix"`
	APIPolicy    string   `json:"api_policy" toml:"api_policy"`
	CacheOnFetch bool     `json:"cache_on_fetch" toml:"cache_on_fetch"`
	SkipWaiting  bool     `json:"skip_waiting" toml:"skip_waiting"`
	Storage      string   `json:"storage" toml:"storage"`
	Dir          string   `json:"dir" toml:"dir"`
}

type Log struct {
	Level       string `json:"level" toml:"level"`
	Development bool   `json:"development" toml:"development"`
	File        string `json:"file" toml:"file"`
	MaxSizeMB   int    `json:"max_size_mb" toml:"max_size_mb"`
	MaxBackups  int    `json:"max_backups" toml:"max_backups"`
}

type Config struct {
	Server Server `json:"server" toml:"server"`
	Quotes Quotes `json:"quotes" toml:"quotes"`
	Shell  Shell  `json:"shell" toml:"shell"`
	Log    Log    `json:"log" toml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{
			Port:              "8080",
			RequestTimeoutSec: 15,
			QuotesPath:        "/api/quotes",
			QuotesAliases:     []string{"/.netlify/functions/get-stocks"},
		},
		Quotes: Quotes{
			Provider:           ProviderFinnhub,
			Symbols:            []string{"AAPL", "NVDA", "AMZN", "GOOG", "TSLA", "META"},
			UpstreamTimeoutSec: 8,
			MaxConcurrency:     8,
			History:            false,
			HistoryDays:        30,
			HistoryPoints:      30,
			CacheMaxAgeSec:     15,
			TimeZone:           "Local",
			Finnhub:            Finnhub{Endpoint: "https://finnhub.io/api/v1"},
			AlphaVantage:       AlphaVantage{Endpoint: "https://www.alphavantage.co/query"},
			Yahoo: Yahoo{
				Endpoint:      "https://query2.finance.yahoo.com",
				ChartEndpoint: "https://query1.finance.yahoo.com/v8/finance/chart",
				UserAgent:     BrowserUserAgent,
			},
			Scrape: Scrape{
				Endpoint:  "https://finance.yahoo.com/quote/%s/",
				UserAgent: BrowserUserAgent,
			},
		},
		Shell: Shell{
			Enabled:     false,
			CachePrefix: "stocktool-cache",
			Version:     "v1",
			Assets: []string{
				"/",
				"/index.html",
				"https://cdn.tailwindcss.com",
				"https://cdn.jsdelivr.net/npm/apexcharts",
				"https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600;700&display=swap",
			},
			APIPrefix:   "/.netlify/functions/",
			APIPolicy:   APINetworkOnly,
			SkipWaiting: true,
			Storage:     StorageMemory,
			Dir:         "shellcache.db",
		},
		Log: Log{Level: "info", MaxSizeMB: 100, MaxBackups: 3},
	}
}

// BrowserUserAgent is sent to unofficial endpoints that reject non-browser clients.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads a JSON or TOML config from path. If path is empty, config.json and
// config.toml in the working directory are tried, falling back to defaults.
// Environment variables override file values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, candidate := range []string{"config.json", "config.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	cfg.applyDefaults()
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(b), cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString("PORT", &cfg.Server.Port)
	setInt("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec, 1)
	setString("QUOTES_PATH", &cfg.Server.QuotesPath)

	setString("QUOTES_PROVIDER", &cfg.Quotes.Provider)
	if v := os.Getenv("QUOTES_SYMBOLS"); v != "" {
		cfg.Quotes.Symbols = splitCSV(v)
	}
	setInt("UPSTREAM_TIMEOUT_SEC", &cfg.Quotes.UpstreamTimeoutSec, 1)
	setInt("MAX_CONCURRENCY", &cfg.Quotes.MaxConcurrency, 0)
	setBool("QUOTES_HISTORY", &cfg.Quotes.History)
	setInt("HISTORY_DAYS", &cfg.Quotes.HistoryDays, 1)
	setInt("HISTORY_POINTS", &cfg.Quotes.HistoryPoints, 1)
	setString("CACHE_POLICY", &cfg.Quotes.CachePolicy)
	setInt("CACHE_MAX_AGE_SEC", &cfg.Quotes.CacheMaxAgeSec, 0)
	setString("QUOTES_TIME_ZONE", &cfg.Quotes.TimeZone)
	setInt("UPSTREAM_MAX_RPM", &cfg.Quotes.MaxRequestsPerMinute, 0)
	setInt("UPSTREAM_BURST", &cfg.Quotes.Burst, 1)
	setString("FINNHUB_API_KEY", &cfg.Quotes.Finnhub.APIKey)
	setString("FINNHUB_ENDPOINT", &cfg.Quotes.Finnhub.Endpoint)
	setString("ALPHAVANTAGE_API_KEY", &cfg.Quotes.AlphaVantage.APIKey)
	setString("ALPHAVANTAGE_ENDPOINT", &cfg.Quotes.AlphaVantage.Endpoint)
	setString("YAHOO_ENDPOINT", &cfg.Quotes.Yahoo.Endpoint)
	setString("YAHOO_CHART_ENDPOINT", &cfg.Quotes.Yahoo.ChartEndpoint)
	setString("SCRAPE_ENDPOINT", &cfg.Quotes.Scrape.Endpoint)

	setBool("SHELL_ENABLED", &cfg.Shell.Enabled)
	setString("SHELL_ORIGIN", &cfg.Shell.Origin)
	setString("SHELL_VERSION", &cfg.Shell.Version)
	setString("SHELL_API_POLICY", &cfg.Shell.APIPolicy)
	setBool("SHELL_CACHE_ON_FETCH", &cfg.Shell.CacheOnFetch)
	setString("SHELL_STORAGE", &cfg.Shell.Storage)
	setString("SHELL_DIR", &cfg.Shell.Dir)

	setString("LOG_LEVEL", &cfg.Log.Level)
	setBool("LOG_DEVELOPMENT", &cfg.Log.Development)
	setString("LOG_FILE", &cfg.Log.File)
}

func (c *Config) applyDefaults() {
	c.Quotes.Provider = strings.ToLower(strings.TrimSpace(c.Quotes.Provider))
	if c.Quotes.CachePolicy == "" {
		c.Quotes.CachePolicy = DefaultCachePolicy(c.Quotes.Provider)
	}
	if c.Shell.Origin != "" && !c.Shell.Enabled {
		// an origin without an explicit toggle means the shell front is wanted
		c.Shell.Enabled = true
	}
}

// DefaultCachePolicy allows shared caching for the keyed commercial APIs and
// disables it for the unofficial sources.
func DefaultCachePolicy(provider string) string {
	switch provider {
	case ProviderYahoo, ProviderScrape:
		return CacheNoStore
	default:
		return CachePublic
	}
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(key string, dst *int, min int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	x, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || x < min {
		return
	}
	*dst = x
}

func setBool(key string, dst *bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitCSV splits a comma-separated list, dropping blanks.
func SplitCSV(s string) []string { return splitCSV(s) }
