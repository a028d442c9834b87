package cfg

type Cfg struct {
	// HTTP server configuration
	Port string

	// Outbound fetch configuration
	UserAgent            string
	ProxyAPIKey          string
	ProxyBaseUrl         string
	AllowPrivateNetworks bool

	// Feed cache configuration
	CacheTTL           int // seconds
	CacheSweepInterval int // seconds

	// Bulk ingestion configuration
	SourcesFile       string
	WebhookUrl        string
	WorkerCount       int
	SchedulerInterval int

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
