package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PortfolioSentinel/internal/analysis"
	"PortfolioSentinel/internal/collector"
	"PortfolioSentinel/internal/risk"
)

// Config holds all application configuration.
type Config struct {
	PortfolioFile       string  `yaml:"portfolio_file" default:"portfolio.json" validate:"required"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" default:"70" validate:"gte=0,lte=100"`
	MinRiskReward       float64 `yaml:"min_risk_reward" default:"1.5" validate:"gt=0"`
	OutputDir           string  `yaml:"output_dir" default:"output"`
	Proxy               string  `yaml:"proxy"`

	Schedule struct {
		IntervalSeconds   int           `yaml:"interval_seconds" default:"60" validate:"gte=1"`
		Cron              string        `yaml:"cron"`
		InstrumentDelay   time.Duration `yaml:"instrument_delay" default:"2s" validate:"gte=0"`
		InstrumentTimeout time.Duration `yaml:"instrument_timeout" default:"3m" validate:"gt=0"`
		Workers           int           `yaml:"workers" default:"1" validate:"gte=1,lte=16"`
		SkipInitialRun    bool          `yaml:"skip_initial_run"`
	} `yaml:"schedule"`

	MarketData struct {
		Provider        string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo vstrader"`
		Fallback        string        `yaml:"fallback" validate:"omitempty,oneof=yahoo vstrader"`
		BaseURL         string        `yaml:"base_url"`
		APIKey          string        `yaml:"api_key"`
		HistoryPeriod   string        `yaml:"history_period" default:"1y"`
		HistoryInterval string        `yaml:"history_interval" default:"1d" validate:"oneof=1d 1wk"`
		Timeout         time.Duration `yaml:"timeout" default:"10s"`
		RequestsPerSec  float64       `yaml:"requests_per_sec" default:"2"`
		Burst           int           `yaml:"burst" default:"4"`
		MaxRetryElapsed time.Duration `yaml:"max_retry_elapsed" default:"30s"`
	} `yaml:"market_data"`

	Cache struct {
		Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		TTL     time.Duration `yaml:"ttl" default:"60s" validate:"gt=0"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"sentinel"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Analysis struct {
		APIKey            string        `yaml:"api_key"`
		BaseURL           string        `yaml:"base_url" default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
		Model             string        `yaml:"model" default:"gemini-2.5-flash"`
		Temperature       float32       `yaml:"temperature" default:"0.7" validate:"gte=0,lte=2"`
		MaxTokens         int           `yaml:"max_tokens" default:"2048" validate:"gt=0"`
		Timeout           time.Duration `yaml:"timeout" default:"60s"`
		RequestsPerMinute int           `yaml:"requests_per_minute" default:"10" validate:"gte=0"`
		MaxRetryElapsed   time.Duration `yaml:"max_retry_elapsed" default:"2m"`
		NewsLookbackHours int           `yaml:"news_lookback_hours" default:"24"`
		MaxNewsArticles   int           `yaml:"max_news_articles" default:"10"`
		Indicators        struct {
			RSIPeriod       int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
			RSIOverbought   float64 `yaml:"rsi_overbought" default:"70"`
			RSIOversold     float64 `yaml:"rsi_oversold" default:"30"`
			MACDFast        int     `yaml:"macd_fast" default:"12"`
			MACDSlow        int     `yaml:"macd_slow" default:"26"`
			MACDSignal      int     `yaml:"macd_signal" default:"9"`
			BollingerPeriod int     `yaml:"bollinger_period" default:"20"`
			BollingerStdDev float64 `yaml:"bollinger_std" default:"2"`
			MAPeriods       []int   `yaml:"ma_periods" default:"[50,100,200]"`
			PriceWindow     int     `yaml:"price_window" default:"100" validate:"gt=0"`
		} `yaml:"indicators"`
	} `yaml:"analysis"`

	Risk struct {
		StopLossPct      float64 `yaml:"stop_loss_pct" default:"5" validate:"gt=0,lt=100"`
		TakeProfit1Pct   float64 `yaml:"take_profit_1_pct" default:"10" validate:"gt=0"`
		TakeProfit2Pct   float64 `yaml:"take_profit_2_pct" default:"20" validate:"gt=0"`
		ATRStopMult      float64 `yaml:"atr_stop_multiplier" default:"2" validate:"gt=0"`
		ATRTP1Mult       float64 `yaml:"atr_tp1_multiplier" default:"3" validate:"gt=0"`
		ATRTP2Mult       float64 `yaml:"atr_tp2_multiplier" default:"5" validate:"gt=0"`
		ATRPeriod        int     `yaml:"atr_period" default:"14" validate:"gte=1"`
		VolatilityPeriod int     `yaml:"volatility_period" default:"20" validate:"gte=2"`
	} `yaml:"risk"`

	Telegram struct {
		BotToken   string `yaml:"bot_token"`
		ChatID     string `yaml:"chat_id"`
		MaxRetries int    `yaml:"max_retries" default:"3"`
	} `yaml:"telegram"`

	Database struct {
		Driver      string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres none"`
		SQLitePath  string `yaml:"sqlite_path" default:"data/portfolio_sentinel.db"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"database"`

	Server struct {
		Disabled bool   `yaml:"disabled"`
		Addr     string `yaml:"addr" default:":8080"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stderr"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, applies .env and environment variable
// overrides, then fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
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

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORTFOLIO_FILE"); v != "" {
		cfg.PortfolioFile = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Analysis.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("VSTRADER_BASE_URL"); v != "" {
		cfg.MarketData.BaseURL = v
	}
	if v := os.Getenv("VSTRADER_API_KEY"); v != "" {
		cfg.MarketData.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
		if cfg.Database.Driver == "" {
			cfg.Database.Driver = "postgres"
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
		if cfg.Cache.Backend == "" {
			cfg.Cache.Backend = "redis"
		}
	}

	var errs []error
	if v := os.Getenv("UPDATE_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("UPDATE_INTERVAL_SECONDS", err))
		cfg.Schedule.IntervalSeconds = n
	}
	floats := []struct {
		name string
		dst  *float64
	}{
		{"CONFIDENCE_THRESHOLD", &cfg.ConfidenceThreshold},
		{"DEFAULT_STOP_LOSS_PERCENTAGE", &cfg.Risk.StopLossPct},
		{"DEFAULT_TAKE_PROFIT_1_PERCENTAGE", &cfg.Risk.TakeProfit1Pct},
		{"DEFAULT_TAKE_PROFIT_2_PERCENTAGE", &cfg.Risk.TakeProfit2Pct},
	}
	for _, f := range floats {
		if v := os.Getenv(f.name); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			errs = append(errs, envErr(f.name, err))
			*f.dst = n
		}
	}
	return errors.Join(errs...)
}

func envErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("env %s: %w", name, err)
}

var validate = validator.New()

// Validate checks field constraints and settings that depend on each other.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Analysis.APIKey == "" {
		return errors.New("analysis.api_key is required (GEMINI_API_KEY)")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return errors.New("telegram.chat_id is required when telegram.bot_token is set")
	}
	if c.MarketData.Provider == "vstrader" && c.MarketData.BaseURL == "" {
		return errors.New("market_data.base_url is required for the vstrader provider")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("cache.redis.addr is required for the redis backend")
	}
	if c.Database.Driver == "postgres" && c.Database.PostgresDSN == "" {
		return errors.New("database.postgres_dsn is required for the postgres driver")
	}
	if !(c.Risk.TakeProfit1Pct < c.Risk.TakeProfit2Pct) {
		return errors.New("risk.take_profit_1_pct must be below risk.take_profit_2_pct")
	}
	return nil
}

// TelegramEnabled reports whether a bot token is configured.
func (c *Config) TelegramEnabled() bool { return c.Telegram.BotToken != "" }

// CronSpec returns the schedule for the cycle job.
func (c *Config) CronSpec() string {
	if c.Schedule.Cron != "" {
		return c.Schedule.Cron
	}
	return fmt.Sprintf("@every %ds", c.Schedule.IntervalSeconds)
}

// ClientOptions returns the HTTP client settings for market-data fetchers.
func (c *Config) ClientOptions() collector.ClientOptions {
	return collector.ClientOptions{
		Timeout:         c.MarketData.Timeout,
		RequestsPerSec:  c.MarketData.RequestsPerSec,
		Burst:           c.MarketData.Burst,
		MaxRetryElapsed: c.MarketData.MaxRetryElapsed,
		Proxy:           c.Proxy,
	}
}

// AnalysisConfig returns the generative analysis client settings.
func (c *Config) AnalysisConfig() analysis.Config {
	a := c.Analysis
	ind := a.Indicators
	return analysis.Config{
		APIKey:            a.APIKey,
		BaseURL:           a.BaseURL,
		Model:             a.Model,
		Temperature:       a.Temperature,
		MaxTokens:         a.MaxTokens,
		Timeout:           a.Timeout,
		RequestsPerMinute: a.RequestsPerMinute,
		MaxRetryElapsed:   a.MaxRetryElapsed,
		NewsLookbackHours: a.NewsLookbackHours,
		MaxNewsArticles:   a.MaxNewsArticles,
		Indicators: analysis.Indicators{
			RSIPeriod:       ind.RSIPeriod,
			RSIOverbought:   ind.RSIOverbought,
			RSIOversold:     ind.RSIOversold,
			MACDFast:        ind.MACDFast,
			MACDSlow:        ind.MACDSlow,
			MACDSignal:      ind.MACDSignal,
			BollingerPeriod: ind.BollingerPeriod,
			BollingerStdDev: ind.BollingerStdDev,
			MAPeriods:       ind.MAPeriods,
			PriceWindow:     ind.PriceWindow,
		},
	}
}

// RiskParams returns the risk calculator heuristics.
func (c *Config) RiskParams() risk.Params {
	r := c.Risk
	return risk.Params{
		StopLossPct:      r.StopLossPct,
		TakeProfit1Pct:   r.TakeProfit1Pct,
		TakeProfit2Pct:   r.TakeProfit2Pct,
		ATRStopMult:      r.ATRStopMult,
		ATRTP1Mult:       r.ATRTP1Mult,
		ATRTP2Mult:       r.ATRTP2Mult,
		ATRPeriod:        r.ATRPeriod,
		VolatilityPeriod: r.VolatilityPeriod,
	}
}
