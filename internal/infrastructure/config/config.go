package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Feed types accepted by settlement.feed
const (
	FeedLND  = "lnd"
	FeedMock = "mock"
)

// Config holds all application configuration
type Config struct {
	App             AppConfig
	Database        DatabaseConfig
	Redis           RedisConfig
	Log             LogConfig
	HTTP            HTTPConfig
	Telemetry       TelemetryConfig
	Lightning       LightningConfig
	LND             LNDConfig
	AddressResolver AddressResolverConfig
	Settlement      SettlementConfig
	Auction         AuctionConfig
	Payout          PayoutConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// IsProduction reports whether the service runs with production safeguards
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds operator HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodyBytes   int64
	TrustedProxies []string
	OperatorToken  string // bearer token for settlement start/stop; empty disables
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool   // Whether to enable OpenTelemetry
	CollectorEndpoint string // OTEL Collector endpoint (e.g., "localhost:4317")
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	ExportInterval    time.Duration
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
	LogsEnabled       bool // Export logs to the collector through the zap bridge
}

// LightningConfig holds the LNDHub account used to create and pay invoices
type LightningConfig struct {
	URL         string
	User        string
	Password    string
	Timeout     time.Duration
	AuthBackoff time.Duration // minimum wait after a failed login
	Mock        bool          // use the fixed-response client instead of LNDHub
}

// LNDConfig holds the node connection used by the settlement feed
type LNDConfig struct {
	Host         string // host:port of the node gRPC endpoint
	TLSCertPath  string
	MacaroonPath string
}

// AddressResolverConfig holds the Lightning address proxy settings
type AddressResolverConfig struct {
	ProxyURL        string
	Timeout         time.Duration
	BreakerFailures uint32        // consecutive failures that open the breaker
	BreakerTimeout  time.Duration // how long the breaker stays open
}

// SettlementConfig holds reconciliation loop settings
type SettlementConfig struct {
	Feed              string        // lnd or mock
	AutoStart         bool          // start the loop on boot
	ExtensionWindow   time.Duration // last-minute bid extension
	ReconnectDelay    time.Duration
	MockPollInterval  time.Duration
	MockStartingIndex uint64
}

// AuctionConfig holds bidding and contribution rules
type AuctionConfig struct {
	BidInvoiceAmount           int64 // sats charged to place a bid
	MinimumContributionAmount  int64 // contributions below this are waived
	ContributionPercentDefault float64
}

// PayoutConfig holds seller payout settings
type PayoutConfig struct {
	IdempotencyStore string // memory or redis
	IdempotencyTTL   time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with PM_ prefix (e.g., PM_LIGHTNING_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("PM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodyBytes:   v.GetInt64("http.max_body_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			OperatorToken:  v.GetString("http.operator_token"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
		Lightning: LightningConfig{
			URL:         v.GetString("lightning.url"),
			User:        v.GetString("lightning.user"),
			Password:    v.GetString("lightning.password"),
			Timeout:     v.GetDuration("lightning.timeout"),
			AuthBackoff: v.GetDuration("lightning.auth_backoff"),
			Mock:        v.GetBool("lightning.mock"),
		},
		LND: LNDConfig{
			Host:         v.GetString("lnd.host"),
			TLSCertPath:  v.GetString("lnd.tls_cert_path"),
			MacaroonPath: v.GetString("lnd.macaroon_path"),
		},
		AddressResolver: AddressResolverConfig{
			ProxyURL:        v.GetString("address_resolver.proxy_url"),
			Timeout:         v.GetDuration("address_resolver.timeout"),
			BreakerFailures: v.GetUint32("address_resolver.breaker_failures"),
			BreakerTimeout:  v.GetDuration("address_resolver.breaker_timeout"),
		},
		Settlement: SettlementConfig{
			Feed:              v.GetString("settlement.feed"),
			AutoStart:         v.GetBool("settlement.auto_start"),
			ExtensionWindow:   v.GetDuration("settlement.extension_window"),
			ReconnectDelay:    v.GetDuration("settlement.reconnect_delay"),
			MockPollInterval:  v.GetDuration("settlement.mock_poll_interval"),
			MockStartingIndex: v.GetUint64("settlement.mock_starting_index"),
		},
		Auction: AuctionConfig{
			BidInvoiceAmount:           v.GetInt64("auction.bid_invoice_amount"),
			MinimumContributionAmount:  v.GetInt64("auction.minimum_contribution_amount"),
			ContributionPercentDefault: v.GetFloat64("auction.contribution_percent_default"),
		},
		Payout: PayoutConfig{
			IdempotencyStore: v.GetString("payout.idempotency_store"),
			IdempotencyTTL:   v.GetDuration("payout.idempotency_ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "plebmarket-settlement"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "plebmarket"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 64 << 10
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "plebmarket-settlement"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.Lightning.URL == "" {
		cfg.Lightning.URL = "https://ln.getalby.com"
	}
	if cfg.Lightning.Timeout == 0 {
		cfg.Lightning.Timeout = 30 * time.Second
	}
	if cfg.Lightning.AuthBackoff == 0 {
		cfg.Lightning.AuthBackoff = 60 * time.Second
	}
	if cfg.AddressResolver.ProxyURL == "" {
		cfg.AddressResolver.ProxyURL = "https://lnaddressproxy.getalby.com"
	}
	if cfg.AddressResolver.Timeout == 0 {
		cfg.AddressResolver.Timeout = 30 * time.Second
	}
	if cfg.Settlement.Feed == "" {
		cfg.Settlement.Feed = FeedLND
	}
	if cfg.Settlement.ExtensionWindow == 0 {
		cfg.Settlement.ExtensionWindow = 5 * time.Minute
	}
	if cfg.Settlement.ReconnectDelay == 0 {
		cfg.Settlement.ReconnectDelay = 5 * time.Second
	}
	if cfg.Settlement.MockPollInterval == 0 {
		cfg.Settlement.MockPollInterval = 3 * time.Second
	}
	if cfg.Auction.BidInvoiceAmount == 0 {
		cfg.Auction.BidInvoiceAmount = 1000
	}
	if cfg.Auction.MinimumContributionAmount == 0 {
		cfg.Auction.MinimumContributionAmount = 21
	}
	if cfg.Auction.ContributionPercentDefault == 0 {
		cfg.Auction.ContributionPercentDefault = 5.0
	}
	if cfg.Payout.IdempotencyStore == "" {
		cfg.Payout.IdempotencyStore = "memory"
	}
	if cfg.Payout.IdempotencyTTL == 0 {
		cfg.Payout.IdempotencyTTL = 24 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Settlement.Feed {
	case FeedLND:
		if c.LND.Host == "" || c.LND.TLSCertPath == "" || c.LND.MacaroonPath == "" {
			return fmt.Errorf("lnd.host, lnd.tls_cert_path and lnd.macaroon_path are required when settlement.feed is %q", FeedLND)
		}
	case FeedMock:
	default:
		return fmt.Errorf("settlement.feed must be %q or %q, got %q", FeedLND, FeedMock, c.Settlement.Feed)
	}

	if c.Lightning.AuthBackoff < 60*time.Second {
		return fmt.Errorf("lightning.auth_backoff must be at least 60s, got %s", c.Lightning.AuthBackoff)
	}
	if !c.Lightning.Mock && (c.Lightning.User == "" || c.Lightning.Password == "") {
		return fmt.Errorf("lightning.user and lightning.password are required unless lightning.mock is set")
	}

	if c.Auction.ContributionPercentDefault < 0 || c.Auction.ContributionPercentDefault > 100 {
		return fmt.Errorf("auction.contribution_percent_default must be between 0 and 100, got %f", c.Auction.ContributionPercentDefault)
	}
	if c.Payout.IdempotencyStore != "memory" && c.Payout.IdempotencyStore != "redis" {
		return fmt.Errorf("payout.idempotency_store must be memory or redis, got %q", c.Payout.IdempotencyStore)
	}

	if c.App.IsProduction() {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Settlement.Feed == FeedMock || c.Lightning.Mock {
			return fmt.Errorf("mock lightning backends cannot be used in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the redis host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
