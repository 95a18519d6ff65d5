package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"marketsnapshot/internal/ratelimit"
	"marketsnapshot/internal/snapshot"
)

// Quote providers.
const (
	ProviderYahoo        = "yahoo"
	ProviderAlphaVantage = "alphavantage"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
)

// DefaultMoversUniverse is the bulk-quote universe ranked for gainers and losers.
var DefaultMoversUniverse = []string{
	"RELIANCE.NS", "HDFCBANK.NS", "INFY.NS", "TCS.NS", "ICICIBANK.NS",
	"SBIN.NS", "ITC.NS", "KOTAKBANK.NS", "LT.NS", "AXISBANK.NS",
}

// MoversConfig configures the gainer/loser ranking.
type MoversConfig struct {
	Universe []string `mapstructure:"universe"`
	Limit    int      `mapstructure:"limit"`
}

// NewsConfig configures the headline search.
type NewsConfig struct {
	Query    string `mapstructure:"query"`
	PageSize int    `mapstructure:"page_size"`
	Language string `mapstructure:"language"`
}

// CacheConfig selects the fallback cache backend. Path is a directory for
// the file backend and a database file for the sqlite backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// Config holds all configuration for one snapshot run.
type Config struct {
	// API keys
	NewsAPIKey         string `mapstructure:"newsapi_key"`
	AlphavantageAPIKey string `mapstructure:"alphavantage_api_key"`

	// Base URLs for API endpoints (configurable for testing)
	YahooBaseURL        string `mapstructure:"yahoo_base_url"`
	NSEBaseURL          string `mapstructure:"nse_base_url"`
	NewsAPIBaseURL      string `mapstructure:"newsapi_base_url"`
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url"`

	QuoteProvider string `mapstructure:"quote_provider"`

	// Instruments per quote section
	IndianIndices        []snapshot.Instrument `mapstructure:"indian_indices"`
	InternationalIndices []snapshot.Instrument `mapstructure:"international_indices"`
	Currencies           []snapshot.Instrument `mapstructure:"currencies"`
	Crypto               []snapshot.Instrument `mapstructure:"crypto"`
	Commodities          []snapshot.Instrument `mapstructure:"commodities"`

	Movers MoversConfig `mapstructure:"movers"`
	News   NewsConfig   `mapstructure:"news"`
	Cache  CacheConfig  `mapstructure:"cache"`

	OutputDir   string             `mapstructure:"output_dir"`
	Timeout     time.Duration      `mapstructure:"timeout"`
	Concurrency int                `mapstructure:"concurrency"`
	RateLimits  map[string]float64 `mapstructure:"rate_limits"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

// Sections returns the configured instruments of every quote section.
func (c *Config) Sections() map[string][]snapshot.Instrument {
	return map[string][]snapshot.Instrument{
		snapshot.IndianIndices:        c.IndianIndices,
		snapshot.InternationalIndices: c.InternationalIndices,
		snapshot.Currencies:           c.Currencies,
		snapshot.Crypto:               c.Crypto,
		snapshot.Commodities:          c.Commodities,
	}
}

// Limits returns the per-API request rates, defaults overridden by config.
func (c *Config) Limits() map[ratelimit.API]float64 {
	out := make(map[ratelimit.API]float64, len(ratelimit.DefaultLimits))
	for api, rps := range ratelimit.DefaultLimits {
		out[api] = rps
	}
	for api, rps := range c.RateLimits {
		out[ratelimit.API(strings.ToLower(api))] = rps
	}
	return out
}

// Load reads the ticker configuration file, then environment variables,
// then the command-line flags in flags (may be nil). Later sources take
// precedence. When path is empty, tickers.{yaml,toml,json} is searched in
// ./config, . and $HOME/.marketsnapshot. A missing or unreadable file is an
// error: a run without instruments is a configuration mistake.
//
// Recognised environment variables:
//   - NEWSAPI_KEY
//   - ALPHAVANTAGE_API_KEY
//   - YAHOO_BASE_URL, NSE_BASE_URL, NEWSAPI_BASE_URL, ALPHAVANTAGE_BASE_URL
//     (optional, default to production)
//   - MARKETS_OUTPUT_DIR
//   - MARKETS_LOG_LEVEL
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("nse_base_url", "https://www.nseindia.com")
	v.SetDefault("newsapi_base_url", "https://newsapi.org")
	v.SetDefault("alphavantage_base_url", "https://www.alphavantage.co/query")
	v.SetDefault("quote_provider", ProviderYahoo)
	v.SetDefault("movers.universe", DefaultMoversUniverse)
	v.SetDefault("movers.limit", 5)
	v.SetDefault("news.query", "finance")
	v.SetDefault("news.page_size", 6)
	v.SetDefault("news.language", "en")
	v.SetDefault("cache.backend", CacheFile)
	v.SetDefault("output_dir", "data/raw")
	v.SetDefault("timeout", "10s")
	v.SetDefault("concurrency", 4)
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tickers")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.marketsnapshot")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.BindEnv("newsapi_key", "NEWSAPI_KEY")
	v.BindEnv("alphavantage_api_key", "ALPHAVANTAGE_API_KEY")
	v.BindEnv("yahoo_base_url", "YAHOO_BASE_URL")
	v.BindEnv("nse_base_url", "NSE_BASE_URL")
	v.BindEnv("newsapi_base_url", "NEWSAPI_BASE_URL")
	v.BindEnv("alphavantage_base_url", "ALPHAVANTAGE_BASE_URL")
	v.BindEnv("output_dir", "MARKETS_OUTPUT_DIR")
	v.BindEnv("log_level", "MARKETS_LOG_LEVEL")

	if flags != nil {
		for key, name := range map[string]string{
			"output_dir": "output-dir",
			"log_level":  "log-level",
			"log_pretty": "pretty",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Cache.Path == "" {
		config.Cache.Path = config.OutputDir
		if config.Cache.Backend == CacheSQLite {
			config.Cache.Path = config.OutputDir + "/cache.db"
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var problems []string

	for _, spec := range snapshot.DefaultLayout {
		instruments, ok := c.Sections()[spec.Name]
		if !ok {
			continue
		}
		seen := make(map[string]bool, len(instruments))
		for i, inst := range instruments {
			sym := strings.TrimSpace(inst.Symbol)
			switch {
			case sym == "":
				problems = append(problems, fmt.Sprintf("%s[%d]: missing symbol", spec.Name, i))
			case seen[sym]:
				problems = append(problems, fmt.Sprintf("%s: duplicate symbol %s", spec.Name, sym))
			}
			seen[sym] = true
		}
	}

	seen := make(map[string]bool, len(c.Movers.Universe))
	for _, sym := range c.Movers.Universe {
		if strings.TrimSpace(sym) == "" {
			problems = append(problems, "movers.universe: empty symbol")
		} else if seen[sym] {
			problems = append(problems, "movers.universe: duplicate symbol "+sym)
		}
		seen[sym] = true
	}
	if c.Movers.Limit <= 0 {
		problems = append(problems, "movers.limit must be positive")
	}
	if c.News.PageSize <= 0 {
		problems = append(problems, "news.page_size must be positive")
	}

	switch c.QuoteProvider {
	case ProviderYahoo:
	case ProviderAlphaVantage:
		if c.AlphavantageAPIKey == "" {
			problems = append(problems, "ALPHAVANTAGE_API_KEY is required for the alphavantage provider")
		}
	default:
		problems = append(problems, "unknown quote_provider "+c.QuoteProvider)
	}

	switch c.Cache.Backend {
	case CacheFile, CacheSQLite, CacheMemory:
	default:
		problems = append(problems, "unknown cache.backend "+c.Cache.Backend)
	}

	if c.OutputDir == "" {
		problems = append(problems, "output_dir must be set")
	}
	if c.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.Concurrency <= 0 {
		problems = append(problems, "concurrency must be positive")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
