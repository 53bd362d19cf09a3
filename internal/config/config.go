package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session is a trading session window in UTC, "HH:MM" bounds inclusive.
type Session struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console | json
		File   string `yaml:"file"`
	} `yaml:"log"`
	Instrument struct {
		Symbol     string   `yaml:"symbol"`
		Currency   string   `yaml:"currency"`
		Timeframes []string `yaml:"timeframes"`
		Primary    string   `yaml:"primary_timeframe"`
		OutputSize int      `yaml:"output_size"`
	} `yaml:"instrument"`
	QuoteProvider struct {
		Name               string            `yaml:"name"` // twelvedata | yahoo | mock
		BaseURL            string            `yaml:"base_url"`
		APIKey             string            `yaml:"api_key"`
		CallsPerMinute     int               `yaml:"calls_per_minute"`
		TimeoutSec         int               `yaml:"timeout_sec"`
		YahooFallback      bool              `yaml:"yahoo_fallback"`
		CorrelationSymbols map[string]string `yaml:"correlation_symbols"`
	} `yaml:"quote_provider"`
	MacroProvider struct {
		BaseURL      string            `yaml:"base_url"`
		APIKey       string            `yaml:"api_key"`
		TimeoutSec   int               `yaml:"timeout_sec"`
		Concurrency  int               `yaml:"concurrency"`
		Series       map[string]string `yaml:"series"`
		HistoryLimit int               `yaml:"history_limit"`
	} `yaml:"macro_provider"`
	Calendar struct {
		CalendarURL  string   `yaml:"calendar_url"`
		FeedURL      string   `yaml:"feed_url"`
		Currency     string   `yaml:"currency"`
		HorizonHours float64  `yaml:"horizon_hours"`
		MaxEvents    int      `yaml:"max_events"`
		TimeoutSec   int      `yaml:"timeout_sec"`
		Timezone     string   `yaml:"timezone"`
		Keywords     []string `yaml:"keywords"`
	} `yaml:"calendar"`
	Schedule struct {
		UpdateIntervalSec int  `yaml:"update_interval_sec"`
		RunTimeoutSec     int  `yaml:"run_timeout_sec"`
		RunOnStart        bool `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Analysis struct {
		RSIPeriod             int     `yaml:"rsi_period"`
		RSIOverbought         float64 `yaml:"rsi_overbought"`
		RSIOversold           float64 `yaml:"rsi_oversold"`
		MAPeriods             []int   `yaml:"ma_periods"`
		LevelLookback         int     `yaml:"level_lookback"`
		LevelClusterPercent   float64 `yaml:"level_cluster_percent"`
		AlertProximityPercent float64 `yaml:"alert_proximity_percent"`
		YieldAlertBps         float64 `yaml:"yield_alert_bps"`
		VolumeLookback        int     `yaml:"volume_lookback"`
		HighVolumeThreshold   float64 `yaml:"high_volume_threshold"`
		MinBars               int     `yaml:"min_bars"`
	} `yaml:"analysis"`
	Cache struct {
		RedisAddr      string `yaml:"redis_addr"`
		RedisPassword  string `yaml:"redis_password"`
		RedisDB        int    `yaml:"redis_db"`
		KeyPrefix      string `yaml:"key_prefix"`
		PriceDataSec   int    `yaml:"price_data_sec"`
		QuoteSec       int    `yaml:"quote_sec"`
		NewsSec        int    `yaml:"news_sec"`
		CorrelationSec int    `yaml:"correlation_sec"`
	} `yaml:"cache"`
	Sessions []Session `yaml:"sessions"`
	Proxy    string    `yaml:"proxy"`
}

// DefaultKeywords is the high-impact vocabulary used by the feed tier.
var DefaultKeywords = []string{
	"NFP", "Non-Farm Payroll", "CPI", "Consumer Price Index",
	"FOMC", "Federal Reserve", "Fed", "Interest Rate",
	"GDP", "Employment", "Inflation", "Powell",
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
func Load(path string) (*Config, error) {
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

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("TWELVE_DATA_API_KEY"); v != "" {
		cfg.QuoteProvider.APIKey = v
	}
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		cfg.MacroProvider.APIKey = v
	}
	if v := os.Getenv("QUOTE_PROVIDER"); v != "" {
		cfg.QuoteProvider.Name = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("UPDATE_INTERVAL"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return fmt.Errorf("invalid UPDATE_INTERVAL: %q", v)
		}
		cfg.Schedule.UpdateIntervalSec = sec
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5000"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	if cfg.Instrument.Symbol == "" {
		cfg.Instrument.Symbol = "XAU/USD"
	}
	if cfg.Instrument.Currency == "" {
		cfg.Instrument.Currency = "USD"
	}
	if len(cfg.Instrument.Timeframes) == 0 {
		cfg.Instrument.Timeframes = []string{"15min", "1h", "4h"}
	}
	if cfg.Instrument.Primary == "" {
		cfg.Instrument.Primary = "1h"
	}
	if cfg.Instrument.OutputSize == 0 {
		cfg.Instrument.OutputSize = 200
	}

	if cfg.QuoteProvider.Name == "" {
		if cfg.QuoteProvider.APIKey != "" {
			cfg.QuoteProvider.Name = "twelvedata"
		} else {
			cfg.QuoteProvider.Name = "yahoo"
		}
	}
	if cfg.QuoteProvider.BaseURL == "" {
		cfg.QuoteProvider.BaseURL = "https://api.twelvedata.com"
	}
	if cfg.QuoteProvider.CallsPerMinute == 0 {
		cfg.QuoteProvider.CallsPerMinute = 8
	}
	if cfg.QuoteProvider.TimeoutSec == 0 {
		cfg.QuoteProvider.TimeoutSec = 10
	}
	if cfg.QuoteProvider.CorrelationSymbols == nil {
		cfg.QuoteProvider.CorrelationSymbols = map[string]string{
			"EUR/USD": "EUR/USD",
			"USD/JPY": "USD/JPY",
			"GBP/USD": "GBP/USD",
			"BTC/USD": "BTC/USD",
		}
	}

	if cfg.MacroProvider.BaseURL == "" {
		cfg.MacroProvider.BaseURL = "https://api.stlouisfed.org/fred"
	}
	if cfg.MacroProvider.TimeoutSec == 0 {
		cfg.MacroProvider.TimeoutSec = 10
	}
	if cfg.MacroProvider.Concurrency == 0 {
		cfg.MacroProvider.Concurrency = 3
	}
	if cfg.MacroProvider.Series == nil {
		cfg.MacroProvider.Series = map[string]string{
			"US10Y":  "DGS10",
			"US2Y":   "DGS2",
			"US30Y":  "DGS30",
			"DXY":    "DTWEXBGS",
			"VIX":    "VIXCLS",
			"USDEUR": "DEXUSEU",
		}
	}
	if cfg.MacroProvider.HistoryLimit == 0 {
		cfg.MacroProvider.HistoryLimit = 30
	}

	if cfg.Calendar.CalendarURL == "" {
		cfg.Calendar.CalendarURL = "https://www.forexfactory.com/calendar"
	}
	if cfg.Calendar.FeedURL == "" {
		cfg.Calendar.FeedURL = "https://www.forexfactory.com/rss"
	}
	if cfg.Calendar.Currency == "" {
		cfg.Calendar.Currency = cfg.Instrument.Currency
	}
	if cfg.Calendar.HorizonHours == 0 {
		cfg.Calendar.HorizonHours = 4
	}
	if cfg.Calendar.MaxEvents == 0 {
		cfg.Calendar.MaxEvents = 5
	}
	if cfg.Calendar.TimeoutSec == 0 {
		cfg.Calendar.TimeoutSec = 5
	}
	if cfg.Calendar.Timezone == "" {
		cfg.Calendar.Timezone = "UTC"
	}
	if len(cfg.Calendar.Keywords) == 0 {
		cfg.Calendar.Keywords = append([]string(nil), DefaultKeywords...)
	}

	if cfg.Schedule.UpdateIntervalSec == 0 {
		cfg.Schedule.UpdateIntervalSec = 900
	}
	if cfg.Schedule.RunTimeoutSec == 0 {
		cfg.Schedule.RunTimeoutSec = 45
	}

	a := &cfg.Analysis
	if a.RSIPeriod == 0 {
		a.RSIPeriod = 14
	}
	if a.RSIOverbought == 0 {
		a.RSIOverbought = 70
	}
	if a.RSIOversold == 0 {
		a.RSIOversold = 30
	}
	if len(a.MAPeriods) == 0 {
		a.MAPeriods = []int{50, 200}
	}
	if a.LevelLookback == 0 {
		a.LevelLookback = 50
	}
	if a.LevelClusterPercent == 0 {
		a.LevelClusterPercent = 0.1
	}
	if a.AlertProximityPercent == 0 {
		a.AlertProximityPercent = 0.2
	}
	if a.YieldAlertBps == 0 {
		a.YieldAlertBps = 5
	}
	if a.VolumeLookback == 0 {
		a.VolumeLookback = 20
	}
	if a.HighVolumeThreshold == 0 {
		a.HighVolumeThreshold = 1.5
	}
	if a.MinBars == 0 {
		a.MinBars = 20
	}

	c := &cfg.Cache
	if c.KeyPrefix == "" {
		c.KeyPrefix = "bullionwatch:"
	}
	if c.PriceDataSec == 0 {
		c.PriceDataSec = 300
	}
	if c.QuoteSec == 0 {
		c.QuoteSec = 30
	}
	if c.NewsSec == 0 {
		c.NewsSec = 3600
	}
	if c.CorrelationSec == 0 {
		c.CorrelationSec = 60
	}

	if len(cfg.Sessions) == 0 {
		cfg.Sessions = []Session{
			{Name: "ASIAN", Start: "00:00", End: "09:00"},
			{Name: "LONDON", Start: "08:00", End: "17:00"},
			{Name: "NY", Start: "13:00", End: "22:00"},
		}
	}
}

// Validate checks that all required fields are consistent.
func (c *Config) Validate() error {
	if c.Instrument.Symbol == "" {
		return fmt.Errorf("instrument.symbol is required")
	}
	switch c.QuoteProvider.Name {
	case "twelvedata":
		if c.QuoteProvider.APIKey == "" {
			return fmt.Errorf("quote_provider.api_key is required for twelvedata")
		}
	case "yahoo", "mock":
	default:
		return fmt.Errorf("unknown quote_provider.name %q", c.QuoteProvider.Name)
	}
	if c.QuoteProvider.CallsPerMinute < 0 {
		return fmt.Errorf("quote_provider.calls_per_minute must not be negative")
	}
	if c.Schedule.UpdateIntervalSec <= 0 {
		return fmt.Errorf("schedule.update_interval_sec must be positive")
	}
	if c.Schedule.RunTimeoutSec <= 0 {
		return fmt.Errorf("schedule.run_timeout_sec must be positive")
	}
	a := c.Analysis
	if a.RSIPeriod <= 0 {
		return fmt.Errorf("analysis.rsi_period must be positive")
	}
	if a.RSIOversold >= a.RSIOverbought {
		return fmt.Errorf("analysis.rsi_oversold must be below rsi_overbought")
	}
	if len(a.MAPeriods) != 2 || a.MAPeriods[0] <= 0 || a.MAPeriods[0] >= a.MAPeriods[1] {
		return fmt.Errorf("analysis.ma_periods must be two increasing positive periods")
	}
	if c.Calendar.HorizonHours <= 0 {
		return fmt.Errorf("calendar.horizon_hours must be positive")
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("calendar.timezone: %w", err)
	}
	for _, s := range c.Sessions {
		if _, err := time.Parse("15:04", s.Start); err != nil {
			return fmt.Errorf("session %s start: %w", s.Name, err)
		}
		if _, err := time.Parse("15:04", s.End); err != nil {
			return fmt.Errorf("session %s end: %w", s.Name, err)
		}
	}
	return nil
}

// UpdateInterval returns the automatic tick interval.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.Schedule.UpdateIntervalSec) * time.Second
}

// RunTimeout bounds a single pipeline run.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Schedule.RunTimeoutSec) * time.Second
}

// Horizon is how far ahead the calendar looks for events.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.Calendar.HorizonHours * float64(time.Hour))
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// TTLs returns the cache lifetimes per data class.
func (c *Config) TTLs() (priceData, quote, news, correlation time.Duration) {
	return seconds(c.Cache.PriceDataSec), seconds(c.Cache.QuoteSec), seconds(c.Cache.NewsSec), seconds(c.Cache.CorrelationSec)
}
