package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"b2b-analyst/internal/classifier"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

type Config struct {
	Server     ServerConfig        `yaml:"server"`
	Data       DataConfig          `yaml:"data"`
	Logger     LoggerConfig        `yaml:"logger" envconfig:"log"`
	Security   SecurityConfig      `yaml:"security"`
	LLM        LLMConfig           `yaml:"llm"`
	Tracing    TracingConfig       `yaml:"tracing"`
	Classifier classifier.Keywords `yaml:"classifier" ignored:"true"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"shutdown_timeout"`
}

type DataConfig struct {
	SalesFile      string        `yaml:"sales_file" envconfig:"sales_file"`
	CompanyFile    string        `yaml:"company_file" envconfig:"company_file"`
	CompanySheet   string        `yaml:"company_sheet" envconfig:"company_sheet"`
	Watch          bool          `yaml:"watch"`
	ReloadDebounce time.Duration `yaml:"reload_debounce" envconfig:"reload_debounce"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `yaml:"rate_limit_enabled" envconfig:"rate_limit_enabled"`
	RateLimitRPS    int      `yaml:"rate_limit_rps" envconfig:"rate_limit_rps"`
	RateLimitBurst  int      `yaml:"rate_limit_burst" envconfig:"rate_limit_burst"`
	AllowedOrigins  []string `yaml:"allowed_origins" envconfig:"allowed_origins"`
	TrustedProxies  []string `yaml:"trusted_proxies" envconfig:"trusted_proxies"`
}

type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key" envconfig:"api_key"`
	BaseURL      string        `yaml:"base_url" envconfig:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	HistoryTurns int           `yaml:"history_turns" envconfig:"history_turns"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"`
	ServiceName string `yaml:"service_name" envconfig:"service_name"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Data: DataConfig{
			SalesFile:      "data/sales.csv",
			CompanyFile:    "data/companies.xlsx",
			ReloadDebounce: 2 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  10,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
		LLM: LLMConfig{
			Provider:     ProviderGemini,
			Model:        "gemini-2.5-pro",
			Timeout:      90 * time.Second,
			HistoryTurns: 10,
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "b2b-analyst",
		},
		Classifier: classifier.DefaultKeywords(),
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $CONFIG_FILE), then environment variables such as SERVER_PORT,
// DATA_SALES_FILE and LLM_PROVIDER.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.LLM.applyKeyFallback()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyKeyFallback picks up the provider's conventional key variable when no
// key was configured.
func (l *LLMConfig) applyKeyFallback() {
	if l.APIKey != "" {
		return
	}
	switch l.Provider {
	case ProviderGemini:
		l.APIKey = os.Getenv("GEMINI_API_KEY")
	case ProviderOpenAI:
		l.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return errors.New("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return errors.New("server write timeout must be positive")
	}

	if c.Data.SalesFile == "" {
		return errors.New("sales file path cannot be empty")
	}

	if c.Data.CompanyFile == "" {
		return errors.New("company file path cannot be empty")
	}

	if c.Data.Watch && c.Data.ReloadDebounce <= 0 {
		return errors.New("reload debounce must be positive when watching data files")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return errors.New("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return errors.New("rate limit burst must be positive")
	}

	validProviders := []string{ProviderGemini, ProviderOpenAI, ProviderMock}
	if !slices.Contains(validProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid llm provider %q, must be one of: %s", c.LLM.Provider, strings.Join(validProviders, ", "))
	}

	if c.LLM.Provider != ProviderMock {
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm api key is required for provider %q", c.LLM.Provider)
		}
		if c.LLM.Model == "" {
			return errors.New("llm model cannot be empty")
		}
	}

	if c.LLM.Timeout <= 0 {
		return errors.New("llm timeout must be positive")
	}

	if c.LLM.HistoryTurns < 0 {
		return errors.New("llm history turns cannot be negative")
	}

	validExporters := []string{"stdout", "none"}
	if c.Tracing.Enabled && !slices.Contains(validExporters, c.Tracing.Exporter) {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: %s", c.Tracing.Exporter, strings.Join(validExporters, ", "))
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
