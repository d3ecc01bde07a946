package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	ERP        ERPConfig        `yaml:"erp"`
	Sites      []SiteConfig     `yaml:"sites"`
	Filters    FilterConfig     `yaml:"filters"`
	Policy     PolicyConfig     `yaml:"policy"`
	Controller ControllerConfig `yaml:"controller"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Notify     NotifyConfig     `yaml:"notify"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	TTL      time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// ERPConfig holds the service credential pair for the inventory-of-record API.
type ERPConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Account  string        `yaml:"account"`
	APIKey   string        `yaml:"api_key"`
	PageSize int           `yaml:"page_size"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SiteConfig describes one storefront. Filters and Policy, when
// present, override the global settings for that site.
type SiteConfig struct {
	Name     string        `yaml:"name"`
	BaseURL  string        `yaml:"base_url"`
	Key      string        `yaml:"key"`
	Secret   string        `yaml:"secret"`
	Enabled  bool          `yaml:"enabled"`
	PageSize int           `yaml:"page_size"`
	Timeout  time.Duration `yaml:"timeout"`
	Filters  *FilterConfig `yaml:"filters,omitempty"`
	Policy   *PolicyConfig `yaml:"policy,omitempty"`
}

// FilterConfig narrows which ERP inventory rows take part in a run.
type FilterConfig struct {
	ExcludeWarehouses  []string `yaml:"exclude_warehouses"`
	AllowCategories    []string `yaml:"allow_categories"`
	AllowSKUs          []string `yaml:"allow_skus"`
	ExcludeSKUPrefixes []string `yaml:"exclude_sku_prefixes"`
}

// PolicyConfig gates which direction of stock change is applied.
type PolicyConfig struct {
	SyncToInStock    bool `yaml:"sync_to_instock"`
	SyncToOutOfStock bool `yaml:"sync_to_outofstock"`
}

// ControllerConfig bounds the adaptive concurrency window.
type ControllerConfig struct {
	InitialWindow int           `yaml:"initial_window"`
	MinWindow     int           `yaml:"min_window"`
	MaxWindow     int           `yaml:"max_window"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MinDelay      time.Duration `yaml:"min_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	OrderInterval     time.Duration `yaml:"order_interval"`
	ProductInterval   time.Duration `yaml:"product_interval"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ClaimBatch        int           `yaml:"claim_batch"`
	MaxRetries        int           `yaml:"max_retries"`
}

type NotifyConfig struct {
	WebhookURL    string `yaml:"webhook_url"`
	TelegramToken string `yaml:"telegram_token"`
	TelegramChat  int64  `yaml:"telegram_chat"`
	OnSuccess     bool   `yaml:"on_success"`
	OnFailure     bool   `yaml:"on_failure"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; variables may come from the environment directly.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Substitute environment variables before unmarshalling.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.ERP.BaseURL == "" {
		return errors.New("erp base_url is required")
	}
	if c.ERP.Account == "" || c.ERP.APIKey == "" {
		return errors.New("erp credentials are required")
	}
	return ValidateSites(c.Sites)
}

func ValidateSites(sites []SiteConfig) error {
	names := make(map[string]bool, len(sites))
	for _, site := range sites {
		if site.Name == "" {
			return errors.New("site with empty name")
		}
		if names[site.Name] {
			return fmt.Errorf("duplicate site name: %s", site.Name)
		}
		names[site.Name] = true
		if site.Enabled {
			if site.BaseURL == "" {
				return fmt.Errorf("site %s: base_url is required", site.Name)
			}
			if site.Key == "" || site.Secret == "" {
				return fmt.Errorf("site %s: key/secret are required", site.Name)
			}
		}
	}
	return nil
}

// FiltersFor returns the effective filter set for a site: the site
// override when present, the global filters otherwise.
func (c *Config) FiltersFor(site string) FilterConfig {
	for i := range c.Sites {
		if c.Sites[i].Name == site && c.Sites[i].Filters != nil {
			return *c.Sites[i].Filters
		}
	}
	return c.Filters
}

// PolicyFor returns the effective policy for a site.
func (c *Config) PolicyFor(site string) PolicyConfig {
	for i := range c.Sites {
		if c.Sites[i].Name == site && c.Sites[i].Policy != nil {
			return *c.Sites[i].Policy
		}
	}
	return c.Policy
}

// SiteByName returns the site config or nil when unknown.
func (c *Config) SiteByName(name string) *SiteConfig {
	for i := range c.Sites {
		if c.Sites[i].Name == name {
			return &c.Sites[i]
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}
	if c.ERP.PageSize == 0 {
		c.ERP.PageSize = 500
	}
	if c.ERP.Timeout == 0 {
		c.ERP.Timeout = 30 * time.Second
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = time.Hour
	}
	for i := range c.Sites {
		if c.Sites[i].PageSize == 0 {
			c.Sites[i].PageSize = 100
		}
		if c.Sites[i].Timeout == 0 {
			c.Sites[i].Timeout = 30 * time.Second
		}
	}
	if c.Controller.InitialWindow == 0 {
		c.Controller.InitialWindow = 30
	}
	if c.Controller.MinWindow == 0 {
		c.Controller.MinWindow = 5
	}
	if c.Controller.MaxWindow == 0 {
		c.Controller.MaxWindow = 50
	}
	if c.Controller.InitialDelay == 0 {
		c.Controller.InitialDelay = 500 * time.Millisecond
	}
	if c.Controller.MinDelay == 0 {
		c.Controller.MinDelay = 250 * time.Millisecond
	}
	if c.Controller.MaxDelay == 0 {
		c.Controller.MaxDelay = 10 * time.Second
	}
	if c.Scheduler.ReconcileInterval == 0 {
		c.Scheduler.ReconcileInterval = 15 * time.Minute
	}
	if c.Scheduler.OrderInterval == 0 {
		c.Scheduler.OrderInterval = 10 * time.Minute
	}
	if c.Scheduler.ProductInterval == 0 {
		c.Scheduler.ProductInterval = time.Hour
	}
	if c.Scheduler.PollInterval == 0 {
		c.Scheduler.PollInterval = 2 * time.Second
	}
	if c.Scheduler.ClaimBatch == 0 {
		c.Scheduler.ClaimBatch = 20
	}
	if c.Scheduler.MaxRetries == 0 {
		c.Scheduler.MaxRetries = 5
	}
}
