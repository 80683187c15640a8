package config

import (
	"fmt"
	"log"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// Secret precedence order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (RESUMERANK_CLIENT_APIKEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Dispatch      DispatchConfig      `mapstructure:"dispatch"`
	Client        ClientConfig        `mapstructure:"client"`
	Results       ResultsConfig       `mapstructure:"results"`
	Watch         WatchConfig         `mapstructure:"watch"`
	Server        ServerConfig        `mapstructure:"server"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	// MaxJobDescriptionSize bounds the job description file read by the CLI
	MaxJobDescriptionSize int64 `mapstructure:"maxJobDescriptionSize"`
}

// QueueConfig holds upload queue limits
type QueueConfig struct {
	MaxItems          int      `mapstructure:"maxItems"`
	MaxFileSize       int64    `mapstructure:"maxFileSize"`
	AllowedExtensions []string `mapstructure:"allowedExtensions"`
}

// DispatchConfig holds upload dispatcher configuration
type DispatchConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`   // Maximum uploads in flight
	UploadTimeout time.Duration `mapstructure:"uploadTimeout"` // Per-upload deadline, 0 means the 120s default
}

// ClientConfig describes the analysis endpoint uploads are sent to
type ClientConfig struct {
	Endpoint       string                `mapstructure:"endpoint"`
	APIKey         string                `mapstructure:"apiKey"`
	FileField      string                `mapstructure:"fileField"`
	JobField       string                `mapstructure:"jobField"`
	CircuitBreaker CircuitBreakerConfig  `mapstructure:"circuitBreaker"`
	RateLimit      ClientRateLimitConfig `mapstructure:"rateLimit"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// ClientRateLimitConfig throttles how fast uploads are launched
type ClientRateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requestsPerSecond"`
	Burst             int     `mapstructure:"burst"`
}

// ResultsConfig holds aggregation settings
type ResultsConfig struct {
	TopN int `mapstructure:"topN"`
}

// WatchConfig holds inbox watcher settings
type WatchConfig struct {
	DebounceDelay   time.Duration `mapstructure:"debounceDelay"`
	ProcessExisting bool          `mapstructure:"processExisting"`
}

// ServerConfig holds local session API configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	// Upper bound for a single request body, multipart uploads included
	MaxRequestSize int64 `mapstructure:"maxRequestSize"`

	// API Authentication
	APIKeys []string `mapstructure:"apiKeys"` // Valid API keys for authentication

	// Rate Limiting Configuration
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByAPIKey       bool          `mapstructure:"byAPIKey"`       // Enable per-API-key rate limiting
	Window         time.Duration `mapstructure:"window"`         // Rate limiting window duration
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	Uploads        UploadMetricsConfig         `mapstructure:"uploads"`
	Queue          QueueMetricsConfig          `mapstructure:"queue"`
	Infrastructure InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// UploadMetricsConfig holds upload metrics configuration
type UploadMetricsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	TrackDuration bool `mapstructure:"trackDuration"`
	TrackSizes    bool `mapstructure:"trackSizes"`
}

// QueueMetricsConfig holds queue and aggregation metrics configuration
type QueueMetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	TrackRateLimits     bool `mapstructure:"trackRateLimits"`
	TrackCircuitBreaker bool `mapstructure:"trackCircuitBreaker"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix("RESUMERANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'RESUMERANK'")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/resumerank/")
	v.AddConfigPath("$HOME/.resumerank")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/resumerank/, $HOME/.resumerank, .")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	config, err := unmarshalConfig(v)
	if err != nil {
		return nil, err
	}

	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return config, nil
}

// Default returns the built-in configuration without reading files or the environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshalConfig(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration does not decode: %v", err))
	}
	return cfg
}

func unmarshalConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.applyFallbacks()
	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Queue.MaxItems <= 0 {
		return fmt.Errorf("queue maxItems must be positive")
	}

	if c.Queue.MaxFileSize <= 0 {
		return fmt.Errorf("queue maxFileSize must be positive")
	}

	if len(c.Queue.AllowedExtensions) == 0 {
		return fmt.Errorf("queue allowedExtensions must not be empty")
	}

	if c.Dispatch.Concurrency <= 0 {
		return fmt.Errorf("dispatch concurrency must be positive")
	}

	if c.Dispatch.UploadTimeout < 0 {
		return fmt.Errorf("dispatch uploadTimeout must not be negative")
	}

	if err := validateEndpoint(c.Client.Endpoint); err != nil {
		return err
	}

	if c.Client.RateLimit.Enabled && c.Client.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("client rateLimit requestsPerSecond must be positive when enabled")
	}

	if cb := c.Client.CircuitBreaker; cb.Enabled && (cb.FailureThreshold <= 0 || cb.FailureThreshold > 1) {
		return fmt.Errorf("client circuitBreaker failureThreshold must be in (0, 1]")
	}

	if c.Results.TopN <= 0 {
		return fmt.Errorf("results topN must be positive")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	return nil
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("client endpoint is required (set RESUMERANK_CLIENT_ENDPOINT environment variable)")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid client endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("client endpoint must be http or https, got %q", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("client endpoint %q has no host", endpoint)
	}
	return nil
}
