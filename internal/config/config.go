package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "DEAL_SCANNER_CONFIG"
	defaultConfigPath = "config.yaml"

	EnvProduction = "production"
	EnvSandbox    = "sandbox"

	SeenBackendFile     = "file"
	SeenBackendPostgres = "postgres"
	SeenBackendRedis    = "redis"

	SourceEbay    = "ebay"
	SourceFixture = "fixture"
)

var (
	// ErrMissingCredentials is returned by calls that need the marketplace client id and secret.
	ErrMissingCredentials = errors.New("marketplace client id / client secret missing")
	// ErrMissingQuery is returned by searches without a query string.
	ErrMissingQuery = errors.New("search query missing")
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Ebay          EbayConfig         `yaml:"ebay"`
	Search        SearchConfig       `yaml:"search"`
	Scan          ScanConfig         `yaml:"scan"`
	Retry         RetryConfig        `yaml:"retry"`
	Notifications NotificationConfig `yaml:"notifications"`
	Storage       StorageConfig      `yaml:"storage"`
}

// LoggingConfig selects level, handler format and the durable log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// EbayConfig describes how to reach the marketplace APIs.
type EbayConfig struct {
	Environment   string        `yaml:"environment"`
	ClientID      string        `yaml:"clientId"`
	ClientSecret  string        `yaml:"clientSecret"`
	MarketplaceID string        `yaml:"marketplaceId"`
	Timeout       time.Duration `yaml:"timeout"`
	BaseURL       string        `yaml:"baseUrl"`
}

// APIBaseURL resolves the host for the configured environment unless overridden.
func (e EbayConfig) APIBaseURL() string {
	if e.BaseURL != "" {
		return strings.TrimSuffix(e.BaseURL, "/")
	}
	if e.Environment == EnvSandbox {
		return "https://api.sandbox.ebay.com"
	}
	return "https://api.ebay.com"
}

// SearchConfig is the query and its refinements.
type SearchConfig struct {
	Source      string `yaml:"source"`
	FixturePath string `yaml:"fixturePath"`
	Query       string `yaml:"query"`
	Limit       int    `yaml:"limit"`
	MinPrice    string `yaml:"minPrice"`
	MaxPrice    string `yaml:"maxPrice"`
	Condition   string `yaml:"condition"`
	Sort        string `yaml:"sort"`
	CategoryIDs string `yaml:"categoryIds"`
}

// ScanConfig holds the loop cadence and alert thresholds.
type ScanConfig struct {
	Interval          time.Duration `yaml:"interval"`
	DryRun            bool          `yaml:"dryRun"`
	MinScore          int           `yaml:"minScore"`
	MinDiscount       float64       `yaml:"minDiscount"`
	MinSellerPositive float64       `yaml:"minSellerPositive"`
	MinSellerFeedback float64       `yaml:"minSellerFeedback"`
	TopN              int           `yaml:"topN"`
	MarkSeenOnFailure bool          `yaml:"markSeenOnFailure"`
	RefreshMargin     time.Duration `yaml:"refreshMargin"`
}

// RetryConfig is the outbound HTTP retry policy.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"maxAttempts"`
	BaseDelay         time.Duration `yaml:"baseDelay"`
	RetryableStatuses []int         `yaml:"retryableStatuses"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken          string        `yaml:"botToken"`
	ChatID            string        `yaml:"chatId"`
	APIURL            string        `yaml:"apiUrl"`
	MaxMessageLength  int           `yaml:"maxMessageLength"`
	MessagesPerSecond float64       `yaml:"messagesPerSecond"`
	Timeout           time.Duration `yaml:"timeout"`
	StartupMessage    bool          `yaml:"startupMessage"`
}

// StorageConfig selects where the seen-set and snapshots live.
type StorageConfig struct {
	DataDir     string         `yaml:"dataDir"`
	SeenBackend string         `yaml:"seenBackend"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
}

// SeenPath is the seen-set file inside the data directory.
func (s StorageConfig) SeenPath() string {
	return filepath.Join(s.DataDir, "seen.json")
}

// SnapshotDir is where per-cycle snapshots are written.
func (s StorageConfig) SnapshotDir() string {
	return filepath.Join(s.DataDir, "snapshots")
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// RedisConfig describes the Redis seen-set backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = envString(configPathEnv, defaultConfigPath)
	}
	if raw, err := os.ReadFile(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		}
	} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		cfg = defaultConfig()
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

// Validate reports misconfiguration that makes running the loop impossible.
// Missing credentials or query are not startup errors; they fail the calls that need them.
func (c Config) Validate() error {
	var errs []error
	if c.Scan.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scan interval must be positive, got %s", c.Scan.Interval))
	}
	switch c.Search.Source {
	case SourceEbay:
	case SourceFixture:
		if c.Search.FixturePath == "" {
			errs = append(errs, errors.New("fixture source requires search.fixturePath"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown search source %q", c.Search.Source))
	}
	switch c.Storage.SeenBackend {
	case SeenBackendFile:
	case SeenBackendPostgres:
		if c.Storage.Database.DSN == "" {
			errs = append(errs, errors.New("postgres seen backend requires storage.database.dsn"))
		}
	case SeenBackendRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("redis seen backend requires storage.redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown seen backend %q", c.Storage.SeenBackend))
	}
	if c.Ebay.Environment != EnvProduction && c.Ebay.Environment != EnvSandbox {
		errs = append(errs, fmt.Errorf("unknown marketplace environment %q", c.Ebay.Environment))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	c.Ebay.Environment = envString("EBAY_ENV", c.Ebay.Environment)
	c.Ebay.ClientID = envString("EBAY_CLIENT_ID", c.Ebay.ClientID)
	c.Ebay.ClientSecret = envString("EBAY_CLIENT_SECRET", c.Ebay.ClientSecret)
	c.Ebay.MarketplaceID = envString("EBAY_MARKETPLACE_ID", c.Ebay.MarketplaceID)
	c.Ebay.Timeout = envSeconds("EBAY_TIMEOUT_SECONDS", c.Ebay.Timeout)

	c.Search.Source = envString("SEARCH_SOURCE", c.Search.Source)
	c.Search.FixturePath = envString("SEARCH_FIXTURE_PATH", c.Search.FixturePath)
	c.Search.Query = envString("EBAY_SEARCH_QUERY", c.Search.Query)
	c.Search.Limit = envInt("EBAY_LIMIT", c.Search.Limit)
	c.Search.MinPrice = envString("EBAY_MIN_PRICE", c.Search.MinPrice)
	c.Search.MaxPrice = envString("EBAY_MAX_PRICE", c.Search.MaxPrice)
	c.Search.Condition = envString("EBAY_CONDITION", c.Search.Condition)
	c.Search.Sort = envString("EBAY_SORT", c.Search.Sort)
	c.Search.CategoryIDs = envString("EBAY_CATEGORY_IDS", c.Search.CategoryIDs)

	c.Scan.Interval = envSeconds("SCAN_INTERVAL_SECONDS", c.Scan.Interval)
	c.Scan.DryRun = envBool("DRY_RUN", c.Scan.DryRun)
	c.Scan.MinScore = envInt("MIN_SCORE", c.Scan.MinScore)
	c.Scan.MinDiscount = envFloat("MIN_DISCOUNT", c.Scan.MinDiscount)
	c.Scan.MinSellerPositive = envFloat("MIN_SELLER_POSITIVE", c.Scan.MinSellerPositive)
	c.Scan.MinSellerFeedback = envFloat("MIN_SELLER_FEEDBACK", c.Scan.MinSellerFeedback)
	c.Scan.TopN = envInt("TOP_N", c.Scan.TopN)
	c.Scan.MarkSeenOnFailure = envBool("MARK_SEEN_ON_FAILURE", c.Scan.MarkSeenOnFailure)

	c.Notifications.Telegram.BotToken = envString("TELEGRAM_BOT_TOKEN", c.Notifications.Telegram.BotToken)
	c.Notifications.Telegram.ChatID = envString("TELEGRAM_CHAT_ID", c.Notifications.Telegram.ChatID)

	c.Storage.DataDir = envString("DATA_DIR", c.Storage.DataDir)
	c.Storage.SeenBackend = envString("SEEN_BACKEND", c.Storage.SeenBackend)
	c.Storage.Database.DSN = envString("DATABASE_DSN", c.Storage.Database.DSN)
	c.Storage.Redis.Addr = envString("REDIS_ADDR", c.Storage.Redis.Addr)
	c.Storage.Redis.Password = envString("REDIS_PASSWORD", c.Storage.Redis.Password)

	c.Logging.Level = envString("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envString("LOG_FORMAT", c.Logging.Format)
	c.Logging.File = envString("LOG_FILE", c.Logging.File)
}

func (c *Config) normalize() {
	c.Ebay.Environment = strings.ToLower(strings.TrimSpace(c.Ebay.Environment))
	c.Search.Source = strings.ToLower(strings.TrimSpace(c.Search.Source))
	c.Search.Sort = strings.ToUpper(strings.TrimSpace(c.Search.Sort))
	c.Storage.SeenBackend = strings.ToLower(strings.TrimSpace(c.Storage.SeenBackend))
	if c.Scan.TopN <= 0 {
		c.Scan.TopN = 10
	}
	if c.Logging.File == "" && c.Storage.DataDir != "" {
		c.Logging.File = filepath.Join(c.Storage.DataDir, "bot.log")
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, keeping %d", key, v, def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q, keeping %v", key, v, def)
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, keeping %t", key, v, def)
		return def
	}
	return b
}

func envSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q, keeping %s", key, v, def)
		return def
	}
	return time.Duration(f * float64(time.Second))
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Ebay: EbayConfig{
			Environment:   EnvProduction,
			MarketplaceID: "EBAY_FR",
			Timeout:       20 * time.Second,
		},
		Search: SearchConfig{
			Source:    SourceEbay,
			Limit:     50,
			Condition: "NEW_OR_USED",
		},
		Scan: ScanConfig{
			Interval:          5 * time.Minute,
			DryRun:            true,
			MinScore:          60,
			MinDiscount:       10,
			MinSellerPositive: 97,
			MinSellerFeedback: 50,
			TopN:              10,
			MarkSeenOnFailure: true,
			RefreshMargin:     60 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			BaseDelay:         500 * time.Millisecond,
			RetryableStatuses: []int{429, 500, 502, 503, 504},
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{
				APIURL:            "https://api.telegram.org",
				MaxMessageLength:  4096,
				MessagesPerSecond: 1,
				Timeout:           10 * time.Second,
				StartupMessage:    true,
			},
		},
		Storage: StorageConfig{
			DataDir:     "data",
			SeenBackend: SeenBackendFile,
			Database:    DatabaseConfig{Table: "seen_listings"},
			Redis:       RedisConfig{Key: "dealscanner:seen"},
		},
	}
}
