// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const defaultServerAddr = ":8080"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Server() ServerConfig
	Scoring() ScoringConfig
	Filler() FillerConfig
	Detector() DetectorConfig
	Submit() SubmitConfig
	Harvest() HarvestConfig
	Dictionary() DictionaryConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserConcurrency(int)

	// Server Setters
	SetServerAddr(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	NetworkCfg    NetworkConfig    `mapstructure:"network" yaml:"network"`
	ServerCfg     ServerConfig     `mapstructure:"server" yaml:"server"`
	ScoringCfg    ScoringConfig    `mapstructure:"scoring" yaml:"scoring"`
	FillerCfg     FillerConfig     `mapstructure:"filler" yaml:"filler"`
	DetectorCfg   DetectorConfig   `mapstructure:"detector" yaml:"detector"`
	SubmitCfg     SubmitConfig     `mapstructure:"submit" yaml:"submit"`
	HarvestCfg    HarvestConfig    `mapstructure:"harvest" yaml:"harvest"`
	DictionaryCfg DictionaryConfig `mapstructure:"dictionary" yaml:"dictionary"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig       { return c.NetworkCfg }
func (c *Config) Server() ServerConfig         { return c.ServerCfg }
func (c *Config) Scoring() ScoringConfig       { return c.ScoringCfg }
func (c *Config) Filler() FillerConfig         { return c.FillerCfg }
func (c *Config) Detector() DetectorConfig     { return c.DetectorCfg }
func (c *Config) Submit() SubmitConfig         { return c.SubmitCfg }
func (c *Config) Harvest() HarvestConfig       { return c.HarvestCfg }
func (c *Config) Dictionary() DictionaryConfig { return c.DictionaryCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserConcurrency(n int) { c.BrowserCfg.Concurrency = n }
func (c *Config) SetServerAddr(addr string)   { c.ServerCfg.Addr = addr }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the shared browser process and the per-request sessions.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	DisableGPU      bool           `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	// Concurrency bounds the number of simultaneously open sessions.
	Concurrency    int            `mapstructure:"concurrency" yaml:"concurrency"`
	ExecutablePath string         `mapstructure:"executable_path" yaml:"executable_path"`
	Args           []string       `mapstructure:"args" yaml:"args"`
	Viewport       map[string]int `mapstructure:"viewport" yaml:"viewport"`
	// StartupTimeout bounds the liveness check run right after launch.
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	// Locale, Timezone and UserAgent shape what each page presents to the
	// portal. An empty UserAgent keeps the browser's own.
	Locale    string `mapstructure:"locale" yaml:"locale"`
	Timezone  string `mapstructure:"timezone" yaml:"timezone"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// NetworkConfig tunes navigation and the network quiescence windows.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// QuietPeriod is how long the page must go without in-flight requests to count as idle.
	QuietPeriod          time.Duration `mapstructure:"quiet_period" yaml:"quiet_period"`
	PostLoadTimeout      time.Duration `mapstructure:"post_load_timeout" yaml:"post_load_timeout"`
	SubmitSettleTimeout  time.Duration `mapstructure:"submit_settle_timeout" yaml:"submit_settle_timeout"`
	HarvestSettleTimeout time.Duration `mapstructure:"harvest_settle_timeout" yaml:"harvest_settle_timeout"`
	// OperationTimeout bounds single page operations (snapshot, screenshot, evaluate).
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ScoringConfig holds the candidate scorer weights. The defaults were picked
// empirically and should be tuned against a corpus of real portals.
type ScoringConfig struct {
	LabelForWeight      int      `mapstructure:"label_for_weight" yaml:"label_for_weight"`
	AncestorLabelWeight int      `mapstructure:"ancestor_label_weight" yaml:"ancestor_label_weight"`
	AttributeWeight     int      `mapstructure:"attribute_weight" yaml:"attribute_weight"`
	TypeAffinityWeight  int      `mapstructure:"type_affinity_weight" yaml:"type_affinity_weight"`
	MaxCandidates       int      `mapstructure:"max_candidates" yaml:"max_candidates"`
	EmailMarkers        []string `mapstructure:"email_markers" yaml:"email_markers"`
	DateMarkers         []string `mapstructure:"date_markers" yaml:"date_markers"`
}

// FillerConfig controls how values are typed into the page.
type FillerConfig struct {
	KeyDelay       time.Duration `mapstructure:"key_delay" yaml:"key_delay"`
	Pacing         time.Duration `mapstructure:"pacing" yaml:"pacing"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout"`
}

// DetectorConfig lists the challenge markers recognized by the block detector.
type DetectorConfig struct {
	Providers []string `mapstructure:"providers" yaml:"providers"`
	Phrases   []string `mapstructure:"phrases" yaml:"phrases"`
}

// SubmitConfig holds the clickable control categories and the action vocabulary.
type SubmitConfig struct {
	Selectors []string `mapstructure:"selectors" yaml:"selectors"`
	Terms     []string `mapstructure:"terms" yaml:"terms"`
}

// HarvestConfig describes what a downloadable document looks like.
type HarvestConfig struct {
	Extension string   `mapstructure:"extension" yaml:"extension"`
	LinkTerms []string `mapstructure:"link_terms" yaml:"link_terms"`
}

// DictionaryConfig holds synonym overrides merged on top of the built-in dictionary.
type DictionaryConfig struct {
	Synonyms map[string][]string `mapstructure:"synonyms" yaml:"synonyms"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "autoform")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.concurrency", 4)
	v.SetDefault("browser.args", []string{"--no-sandbox", "--disable-setuid-sandbox", "--disable-dev-shm-usage"})
	v.SetDefault("browser.viewport", map[string]int{"width": 1366, "height": 900})
	v.SetDefault("browser.startup_timeout", "30s")
	v.SetDefault("browser.locale", "es-MX")
	v.SetDefault("browser.timezone", "America/Mexico_City")
	v.SetDefault("browser.user_agent", "")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.quiet_period", "1s")
	v.SetDefault("network.post_load_timeout", "15s")
	v.SetDefault("network.submit_settle_timeout", "20s")
	v.SetDefault("network.harvest_settle_timeout", "10s")
	v.SetDefault("network.operation_timeout", "30s")

	// -- Server --
	v.SetDefault("server.addr", defaultServerAddr)
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.request_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// -- Scoring --
	v.SetDefault("scoring.label_for_weight", 4)
	v.SetDefault("scoring.ancestor_label_weight", 3)
	v.SetDefault("scoring.attribute_weight", 2)
	v.SetDefault("scoring.type_affinity_weight", 2)
	v.SetDefault("scoring.max_candidates", 4)
	v.SetDefault("scoring.email_markers", []string{"correo", "email"})
	v.SetDefault("scoring.date_markers", []string{"fecha"})

	// -- Filler --
	v.SetDefault("filler.key_delay", "10ms")
	v.SetDefault("filler.pacing", "200ms")
	v.SetDefault("filler.attempt_timeout", "15s")

	// -- Detector --
	v.SetDefault("detector.providers", []string{"recaptcha", "hcaptcha", "challenges.cloudflare.com", "turnstile"})
	v.SetDefault("detector.phrases", []string{"no soy un robot", "i'm not a robot", "verify you are human", "verifica que eres humano"})

	// -- Submit --
	v.SetDefault("submit.selectors", []string{
		"button", `input[type="submit"]`, `a[role="button"]`, "a.button", "a.btn", ".btn", ".button",
	})
	v.SetDefault("submit.terms", []string{"factur", "generar", "continuar", "siguiente", "enviar", "buscar"})

	// -- Harvest --
	v.SetDefault("harvest.extension", ".pdf")
	v.SetDefault("harvest.link_terms", []string{"descargar", "factura", "download", "invoice"})
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// PORT only applies when the listen address was left at its default.
	if port := os.Getenv("PORT"); port != "" && cfg.ServerCfg.Addr == defaultServerAddr {
		cfg.ServerCfg.Addr = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.NetworkCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if c.ServerCfg.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if err := c.ScoringCfg.Validate(); err != nil {
		return fmt.Errorf("scoring configuration invalid: %w", err)
	}
	if err := c.FillerCfg.Validate(); err != nil {
		return fmt.Errorf("filler configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the scorer weights.
func (s *ScoringConfig) Validate() error {
	if s.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be a positive integer")
	}
	if s.LabelForWeight < 0 || s.AncestorLabelWeight < 0 || s.AttributeWeight < 0 || s.TypeAffinityWeight < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	return nil
}

// Validate checks the filler timings.
func (f *FillerConfig) Validate() error {
	if f.KeyDelay < 0 || f.Pacing < 0 {
		return fmt.Errorf("key_delay and pacing must not be negative")
	}
	if f.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt_timeout must be a positive duration")
	}
	return nil
}
