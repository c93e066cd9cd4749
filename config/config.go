package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultUserAgent = "Mozilla/5.0"

type Config struct {
	Monitor   MonitorConfig
	Scheduler SchedulerConfig
	Fetch     FetchConfig
	Store     StoreConfig
	Transport TransportConfig
	S3        S3Config
	LogLevel  string
	LogFile   string
	Sites     []*SiteConfig
}

type MonitorConfig struct {
	FirstPollCap   int
	AutostartUsers []int64
}

type SchedulerConfig struct {
	Interval            time.Duration
	Mode                string // cron or ticker
	CommandPollInterval time.Duration
}

type FetchConfig struct {
	Timeout     time.Duration
	Concurrency int
	UserAgent   string
	ProxyURL    string
}

type StoreConfig struct {
	Backend     string // memory, sqlite or postgres
	DBPath      string
	DatabaseURL string
}

type TransportConfig struct {
	Kind           string // log, webhook or outbox
	WebhookURL     string
	OutboxInterval time.Duration
	OutboxBatch    int
	MaxAttempts    int
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Handler  string `yaml:"handler"`
	BaseURL  string `yaml:"base_url"`
	Homepage string `yaml:"homepage"` // shown to users listing the sources
	Fetcher  string `yaml:"fetcher"`  // http (default) or browser
	Enabled  *bool  `yaml:"enabled"`
}

func (s *SiteConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// DefaultSites mirrors config/sites/*.yaml so the daemon runs without them.
func DefaultSites() []*SiteConfig {
	return []*SiteConfig{
		{ID: "otodom", Name: "Otodom", Handler: "otodom", Homepage: "https://www.otodom.pl", Fetcher: "http"},
		{ID: "olx", Name: "OLX", Handler: "olx", Homepage: "https://www.olx.pl", Fetcher: "http"},
		{ID: "nieruchomosci_online", Name: "Nieruchomości Online", Handler: "nieruchomosci", Homepage: "https://www.nieruchomosci-online.pl", Fetcher: "http"},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Monitor: MonitorConfig{
			FirstPollCap:   getEnvInt("FIRST_POLL_CAP", 5),
			AutostartUsers: getEnvInt64List("AUTOSTART_USERS"),
		},
		Scheduler: SchedulerConfig{
			Interval:            getEnvDuration("MONITOR_INTERVAL", 10*time.Minute),
			Mode:                getEnv("SCHEDULER_MODE", "cron"),
			CommandPollInterval: getEnvDuration("COMMAND_POLL_INTERVAL", 2*time.Second),
		},
		Fetch: FetchConfig{
			Timeout:     getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
			Concurrency: getEnvInt("FETCH_CONCURRENCY", 3),
			UserAgent:   getEnv("USER_AGENT", DefaultUserAgent),
			ProxyURL:    os.Getenv("PROXY_URL"),
		},
		Store: StoreConfig{
			Backend:     getEnv("STORE_BACKEND", "sqlite"),
			DBPath:      getEnv("DB_PATH", "rentwatch.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Transport: TransportConfig{
			Kind:           getEnv("TRANSPORT", "log"),
			WebhookURL:     os.Getenv("WEBHOOK_URL"),
			OutboxInterval: getEnvDuration("OUTBOX_INTERVAL", 5*time.Second),
			OutboxBatch:    getEnvInt("OUTBOX_BATCH", 50),
			MaxAttempts:    getEnvInt("OUTBOX_MAX_ATTEMPTS", 5),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "daemon.log"),
	}

	sites, err := loadSiteConfigs(getEnv("SITES_DIR", "config/sites"))
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		sites = DefaultSites()
	}
	cfg.Sites = sites

	return cfg, nil
}

func loadSiteConfigs(configDir string) ([]*SiteConfig, error) {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	// ReadDir sorts by name, which fixes the order sources are processed in.
	var sites []*SiteConfig
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return nil, err
		}
		if site.Handler == "" {
			site.Handler = site.ID
		}
		if site.Fetcher == "" {
			site.Fetcher = "http"
		}

		sites = append(sites, &site)
	}

	return sites, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvInt64List(key string) []int64 {
	var ids []int64
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
