package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"merchant-metrics-pipeline/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Input      InputConfig      `mapstructure:"input"`
	Validation ValidationConfig `mapstructure:"validation"`
	Export     ExportConfig     `mapstructure:"export"`
	Report     ReportConfig     `mapstructure:"report"`
	Generate   GenerateConfig   `mapstructure:"generate"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// InputConfig locates the raw CSV files consumed by a run.
type InputConfig struct {
	MerchantsCSV    string `mapstructure:"merchants_csv"`
	TransactionsCSV string `mapstructure:"transactions_csv"`
}

// ValidationConfig bounds the accepted transaction timestamp window.
type ValidationConfig struct {
	EarliestTimestamp time.Time     `mapstructure:"earliest_timestamp"`
	FutureGrace       time.Duration `mapstructure:"future_grace"`
}

// ExportConfig sets flat-file export behaviour.
type ExportConfig struct {
	CSVPath      string `mapstructure:"csv_path"`
	PNGPath      string `mapstructure:"png_path"`
	MaxChartDays int    `mapstructure:"max_chart_days"`
}

// ReportConfig governs end-of-run reporting.
type ReportConfig struct {
	RejectsCSV string         `mapstructure:"rejects_csv"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the optional run-summary push channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// GenerateConfig parameterises the sample-data generator.
type GenerateConfig struct {
	OutputDir  string    `mapstructure:"output_dir"`
	StartDate  time.Time `mapstructure:"start_date"`
	Days       int       `mapstructure:"days"`
	PerDay     int       `mapstructure:"per_day"`
	Seed       int64     `mapstructure:"seed"`
	BadRecords bool      `mapstructure:"bad_records"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MERCHANTMETRICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "merchantmetrics")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("input.merchants_csv", "data/merchants.csv")
	v.SetDefault("input.transactions_csv", "data/transactions.csv")

	v.SetDefault("validation.earliest_timestamp", "2000-01-01T00:00:00Z")
	v.SetDefault("validation.future_grace", "24h")

	v.SetDefault("export.csv_path", "out/daily_merchant_metrics.csv")
	v.SetDefault("export.png_path", "")
	v.SetDefault("export.max_chart_days", 120)

	v.SetDefault("report.rejects_csv", "")
	v.SetDefault("report.telegram.enabled", false)
	v.SetDefault("report.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("generate.output_dir", "data")
	v.SetDefault("generate.start_date", "2026-01-01T00:00:00Z")
	v.SetDefault("generate.days", 30)
	v.SetDefault("generate.per_day", 250)
	v.SetDefault("generate.seed", 42)
	v.SetDefault("generate.bad_records", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Input.MerchantsCSV == "" {
		return fmt.Errorf("input.merchants_csv is required")
	}
	if c.Input.TransactionsCSV == "" {
		return fmt.Errorf("input.transactions_csv is required")
	}
	if c.Validation.FutureGrace < 0 {
		return fmt.Errorf("validation.future_grace cannot be negative")
	}
	if c.Export.MaxChartDays <= 0 {
		return fmt.Errorf("export.max_chart_days must be greater than zero")
	}
	if c.Generate.Days <= 0 {
		return fmt.Errorf("generate.days must be greater than zero")
	}
	if c.Generate.PerDay <= 0 {
		return fmt.Errorf("generate.per_day must be greater than zero")
	}
	if c.Report.Telegram.Enabled {
		if c.Report.Telegram.BotToken == "" {
			return fmt.Errorf("report.telegram.bot_token is required when telegram is enabled")
		}
		if c.Report.Telegram.ChatID == "" {
			return fmt.Errorf("report.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxChartDays returns either the CLI override or config default.
func (c *Config) ResolveMaxChartDays(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxChartDays
}
