package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"BreakoutSentinel/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider string        `yaml:"provider"` // yahoo, rest or mock
		BaseURL  string        `yaml:"base_url"`
		APIKey   string        `yaml:"api_key"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Cache struct {
		RedisAddr string        `yaml:"redis_addr"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	Database struct {
		Driver   string `yaml:"driver"` // sqlite, postgres or none
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Name     string `yaml:"name"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"database"`
	Analysis struct {
		PeriodMonths int `yaml:"period_months"`
	} `yaml:"analysis"`
	Backtest struct {
		TotalDays  int `yaml:"total_days"`
		WindowDays int `yaml:"window_days"`
	} `yaml:"backtest"`
	Concurrency struct {
		Workers int `yaml:"workers"`
	} `yaml:"concurrency"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Stocks []model.Stock `yaml:"stocks"`
	Proxy  string        `yaml:"proxy"`
}

// Load reads .env (if present) and the YAML config file, then applies
// environment variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("BARS_API_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("BARS_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency.Workers = n
		}
	}

	// Defaults
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = 30 * time.Second
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 12 * time.Hour
	}
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 30 22 * * 1-5"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = cfg.defaultDSN()
	}
	if cfg.Analysis.PeriodMonths == 0 {
		cfg.Analysis.PeriodMonths = 3
	}
	if cfg.Backtest.TotalDays == 0 {
		cfg.Backtest.TotalDays = 365
	}
	if cfg.Backtest.WindowDays == 0 {
		cfg.Backtest.WindowDays = 90
	}
	if cfg.Concurrency.Workers == 0 {
		cfg.Concurrency.Workers = 1
	}

	return cfg, nil
}

func (c *Config) defaultDSN() string {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return ""
		}
		port := c.Database.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
			c.Database.Host, port, c.Database.Name, c.Database.User, c.Database.Password)
	case "sqlite":
		return "data/breakout_sentinel.db"
	}
	return ""
}

// NotificationsEnabled reports whether a Telegram chat is configured.
func (c *Config) NotificationsEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("unknown data_source.provider %q", c.DataSource.Provider)
	}
	switch c.Database.Driver {
	case "sqlite", "none":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.host or database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Analysis.PeriodMonths < 1 {
		return fmt.Errorf("analysis.period_months must be positive")
	}
	if c.Backtest.WindowDays < 1 || c.Backtest.WindowDays > c.Backtest.TotalDays {
		return fmt.Errorf("backtest.window_days must be in [1, total_days]")
	}
	if c.Concurrency.Workers < 1 {
		return fmt.Errorf("concurrency.workers must be at least 1")
	}
	for i, s := range c.Stocks {
		if s.Symbol == "" {
			return fmt.Errorf("stocks[%d].symbol is required", i)
		}
	}
	return nil
}
