package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Company  CompanyConfig  `mapstructure:"company"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Currency CurrencyConfig `mapstructure:"currency"`
	Expense  ExpenseConfig  `mapstructure:"expense"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Report   ReportConfig   `mapstructure:"report"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SeedDemo        bool          `mapstructure:"seed_demo"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// CompanyConfig seeds the company row on startup
type CompanyConfig struct {
	Name         string `mapstructure:"name"`
	BaseCurrency string `mapstructure:"base_currency"`
}

// WorkflowConfig holds the approval chain
type WorkflowConfig struct {
	Stages []string `mapstructure:"stages"`
}

// CurrencyConfig holds exchange rate settings
type CurrencyConfig struct {
	RateAPIURL      string        `mapstructure:"rate_api_url"`
	Freshness       time.Duration `mapstructure:"freshness"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// CurrenciesAPIURL lists supported currencies; empty disables the check
	CurrenciesAPIURL string        `mapstructure:"currencies_api_url"`
	CatalogTTL       time.Duration `mapstructure:"catalog_ttl"`
}

// ExpenseConfig holds submission limits
type ExpenseConfig struct {
	MaxAmount string `mapstructure:"max_amount"`
}

// MaxAmountDecimal parses MaxAmount. Zero means the service default.
func (e ExpenseConfig) MaxAmountDecimal() (decimal.Decimal, error) {
	if strings.TrimSpace(e.MaxAmount) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(e.MaxAmount))
}

// OpenAIConfig holds OpenAI API configuration. Receipt extraction is
// disabled when APIKey is empty.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// Enabled reports whether receipt extraction is configured
func (o OpenAIConfig) Enabled() bool {
	return o.APIKey != ""
}

// LarkConfig holds Lark API configuration. Notifications are disabled
// when credentials are missing.
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
	LinkURL   string `mapstructure:"link_url"`
}

// Enabled reports whether approver notifications are configured
func (l LarkConfig) Enabled() bool {
	return l.AppID != "" && l.AppSecret != ""
}

// ReportConfig holds report export settings
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// Load loads configuration from file and environment variables.
// An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EXPENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_mb", 10)

	// Database defaults
	v.SetDefault("database.path", "data/expenses.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.seed_demo", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("company.name", "Acme Corp")
	v.SetDefault("company.base_currency", "USD")

	v.SetDefault("workflow.stages", []string{"Manager", "Admin"})

	// Currency defaults
	v.SetDefault("currency.rate_api_url", "https://api.exchangerate-api.com/v4/latest")
	v.SetDefault("currency.freshness", currency.DefaultFreshness)
	v.SetDefault("currency.fetch_timeout", currency.DefaultFetchTimeout)
	v.SetDefault("currency.cleanup_interval", 10*time.Minute)
	v.SetDefault("currency.currencies_api_url", "https://restcountries.com/v3.1/all?fields=name,currencies")
	v.SetDefault("currency.catalog_ttl", currency.DefaultCatalogTTL)

	v.SetDefault("expense.max_amount", "1000000")

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout", 60*time.Second)

	v.SetDefault("report.output_dir", "reports")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("database.path", "EXPENSE_DATABASE_PATH", "DATABASE_PATH")
	_ = v.BindEnv("server.port", "EXPENSE_SERVER_PORT", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if !currency.ValidCode(currency.NormalizeCode(c.Company.BaseCurrency)) {
		return fmt.Errorf("company.base_currency %q is not a currency code", c.Company.BaseCurrency)
	}

	if _, err := c.BuildWorkflow(); err != nil {
		return fmt.Errorf("workflow.stages: %w", err)
	}

	if c.Currency.RateAPIURL == "" {
		return fmt.Errorf("currency.rate_api_url is required")
	}
	if c.Currency.Freshness <= 0 {
		return fmt.Errorf("currency.freshness must be positive")
	}
	if c.Currency.FetchTimeout <= 0 {
		return fmt.Errorf("currency.fetch_timeout must be positive")
	}

	maxAmount, err := c.Expense.MaxAmountDecimal()
	if err != nil {
		return fmt.Errorf("expense.max_amount: %w", err)
	}
	if maxAmount.IsNegative() {
		return fmt.Errorf("expense.max_amount must not be negative")
	}

	// Lark credentials come in pairs
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	return nil
}

// BuildWorkflow returns the configured approval chain
func (c *Config) BuildWorkflow() (*workflow.Workflow, error) {
	stages, err := workflow.ParseStages(c.Workflow.Stages)
	if err != nil {
		return nil, err
	}
	return workflow.New(stages...)
}
