package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// HTTP server configuration
	Port string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`

	// Outbound fetch configuration
	UserAgent    string `long:"user-agent" env:"USER_AGENT" description:"Override User-Agent string for outbound HTTP requests"`
	ProxyAPIKey  string `long:"proxy-api-key" env:"PROXY_API_KEY" description:"API key for the rendering proxy tier (optional)"`
	ProxyBaseUrl string `long:"proxy-base-url" env:"PROXY_BASE_URL" default:"https://app.scrapingbee.com/api/v1/" description:"Rendering proxy endpoint"`

	AllowPrivateNetworks bool `long:"allow-private-networks" env:"ALLOW_PRIVATE_NETWORKS" description:"Allow fetching from private and loopback addresses (development only)"`

	// Feed cache configuration
	CacheTTL           int `long:"cache-ttl" env:"CACHE_TTL" default:"3600" description:"Feed cache TTL in seconds"`
	CacheSweepInterval int `long:"cache-sweep-interval" env:"CACHE_SWEEP_INTERVAL" default:"600" description:"Feed cache expiry sweep interval in seconds"`

	// Bulk ingestion configuration
	SourcesFile       string `long:"sources-file" env:"SOURCES_FILE" description:"YAML file with sources for bulk ingestion (optional)"`
	WebhookUrl        string `long:"webhook-url" env:"WEBHOOK_URL" description:"Webhook endpoint ingested items are forwarded to (optional)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for source ingestion"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"900" description:"Ingestion scheduler interval in seconds"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Port:                 raw.Port,
		UserAgent:            raw.UserAgent,
		ProxyAPIKey:          raw.ProxyAPIKey,
		ProxyBaseUrl:         raw.ProxyBaseUrl,
		AllowPrivateNetworks: raw.AllowPrivateNetworks,
		CacheTTL:             raw.CacheTTL,
		CacheSweepInterval:   raw.CacheSweepInterval,
		SourcesFile:          raw.SourcesFile,
		WebhookUrl:           raw.WebhookUrl,
		WorkerCount:          raw.WorkerCount,
		SchedulerInterval:    raw.SchedulerInterval,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
