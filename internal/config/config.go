// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Safety   SafetyConfig   `mapstructure:"safety" yaml:"safety"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Verifier VerifierConfig `mapstructure:"verifier" yaml:"verifier"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
}

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

// ServerConfig tunes the websocket/HTTP transport.
type ServerConfig struct {
	Host                string        `mapstructure:"host" yaml:"host"`
	Port                int           `mapstructure:"port" yaml:"port"`
	AllowedOrigins      []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownGrace       time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
	TranscriptPerMinute float64       `mapstructure:"transcript_per_minute" yaml:"transcript_per_minute"`
	TranscriptBurst     int           `mapstructure:"transcript_burst" yaml:"transcript_burst"`
}

// SafetyConfig governs the gate, the confirmation machine and the turn loop.
type SafetyConfig struct {
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// SafePaymentDomains is the navigation allowlist consulted when the
	// transcript signals payment intent. Empty disables the allowlist rule.
	SafePaymentDomains []string      `mapstructure:"safe_payment_domains" yaml:"safe_payment_domains"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	// StrictConfirmation requires the exact confirmation phrase instead of
	// the fuzzy affirmative/negative keyword sets.
	StrictConfirmation        bool   `mapstructure:"strict_confirmation" yaml:"strict_confirmation"`
	DefaultConfirmationPhrase string `mapstructure:"default_confirmation_phrase" yaml:"default_confirmation_phrase"`
	MaxActionHistory          int    `mapstructure:"max_action_history" yaml:"max_action_history"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// LLMConfig configures the tiered model routing for the brain.
type LLMConfig struct {
	Enabled       bool           `mapstructure:"enabled" yaml:"enabled"`
	FastModel     LLMModelConfig `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel LLMModelConfig `mapstructure:"powerful_model" yaml:"powerful_model"`
	// FastRiskTimeout bounds the fast risk pass before the heuristic
	// fallback takes over. Kept short so the first risk update is prompt.
	FastRiskTimeout time.Duration `mapstructure:"fast_risk_timeout" yaml:"fast_risk_timeout"`
	PlanTimeout     time.Duration `mapstructure:"plan_timeout" yaml:"plan_timeout"`
	DeepRiskTimeout time.Duration `mapstructure:"deep_risk_timeout" yaml:"deep_risk_timeout"`
}

// BrowserConfig holds settings for the driven browser instance.
type BrowserConfig struct {
	// Enabled selects the real chromedp-backed executor; when false a
	// deterministic stub keeps the rest of the system operable.
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	CaptureScreenshot bool          `mapstructure:"capture_screenshot" yaml:"capture_screenshot"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// VerifierConfig configures the official-domain lookup service.
type VerifierConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" yaml:"-"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// NumResults caps how many search hits are considered for the
	// verified-domain candidate list.
	NumResults int `mapstructure:"num_results" yaml:"num_results"`
}

// AuditConfig gates the persistent turn audit log.
type AuditConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "guidelight")
	v.SetDefault("logger.log_file", "guidelight.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_grace", "5s")
	v.SetDefault("server.transcript_per_minute", 60.0)
	v.SetDefault("server.transcript_burst", 5)

	// -- Safety --
	v.SetDefault("safety.max_steps", 4)
	v.SetDefault("safety.safe_payment_domains", []string{})
	v.SetDefault("safety.heartbeat_interval", "2500ms")
	v.SetDefault("safety.strict_confirmation", false)
	v.SetDefault("safety.default_confirmation_phrase", "yes, proceed safely")
	v.SetDefault("safety.max_action_history", 20)

	// -- LLM --
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.fast_model.model", "gemini-2.5-flash")
	v.SetDefault("llm.fast_model.api_timeout", "5s")
	v.SetDefault("llm.fast_model.temperature", 0.1)
	v.SetDefault("llm.fast_model.max_tokens", 512)
	v.SetDefault("llm.powerful_model.model", "gemini-2.5-pro")
	v.SetDefault("llm.powerful_model.api_timeout", "20s")
	v.SetDefault("llm.powerful_model.temperature", 0.1)
	v.SetDefault("llm.powerful_model.max_tokens", 1024)
	v.SetDefault("llm.fast_risk_timeout", "2200ms")
	v.SetDefault("llm.plan_timeout", "10s")
	v.SetDefault("llm.deep_risk_timeout", "15s")

	// -- Browser --
	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.action_timeout", "20s")
	v.SetDefault("browser.capture_screenshot", false)

	// -- Verifier --
	v.SetDefault("verifier.enabled", false)
	v.SetDefault("verifier.endpoint", "https://api.exa.ai/search")
	v.SetDefault("verifier.timeout", "6s")
	v.SetDefault("verifier.num_results", 5)

	// -- Audit --
	v.SetDefault("audit.enabled", false)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("llm.fast_model.api_key", "GUIDELIGHT_LLM_API_KEY")
	v.BindEnv("llm.powerful_model.api_key", "GUIDELIGHT_LLM_API_KEY")
	v.BindEnv("verifier.api_key", "GUIDELIGHT_VERIFIER_API_KEY")
	v.BindEnv("audit.database_url", "GUIDELIGHT_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Safety.MaxSteps <= 0 {
		return fmt.Errorf("safety.max_steps must be a positive integer")
	}
	if c.Safety.HeartbeatInterval <= 0 {
		return fmt.Errorf("safety.heartbeat_interval must be a positive duration")
	}
	if c.Safety.MaxActionHistory < 2 {
		return fmt.Errorf("safety.max_action_history must be at least 2")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port")
	}
	if c.LLM.Enabled {
		if c.LLM.FastModel.APIKey == "" && c.LLM.PowerfulModel.APIKey == "" {
			return fmt.Errorf("llm enabled but no API key configured; set GUIDELIGHT_LLM_API_KEY")
		}
		if c.LLM.FastRiskTimeout <= 0 {
			return fmt.Errorf("llm.fast_risk_timeout must be a positive duration")
		}
	}
	if c.Verifier.Enabled && c.Verifier.APIKey == "" {
		return fmt.Errorf("verifier enabled but no API key configured; set GUIDELIGHT_VERIFIER_API_KEY")
	}
	if c.Audit.Enabled && c.Audit.DatabaseURL == "" {
		return fmt.Errorf("audit enabled but no database URL configured; set GUIDELIGHT_DATABASE_URL")
	}
	return nil
}
