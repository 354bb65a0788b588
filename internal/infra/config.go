package infra

import (
	"fmt"
	"os"

	"tradeterm/internal/domain"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. LoadConfig reads the yaml
// file and then lets environment variables override endpoint fields.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Exchange struct {
		RestURL              string `yaml:"rest_url"`
		WSURL                string `yaml:"ws_url"`
		CandleLimit          int    `yaml:"candle_limit"`
		DepthLimit           int    `yaml:"depth_limit"`
		StreamDepthLevels    int    `yaml:"stream_depth_levels"`
		PricePollIntervalSec int    `yaml:"price_poll_interval_sec"`
	} `yaml:"exchange"`

	Market struct {
		DefaultPair     string   `yaml:"default_pair"`
		DefaultInterval string   `yaml:"default_interval"`
		Intervals       []string `yaml:"intervals"`
		Pairs           []string `yaml:"pairs"`
		ReferenceQuote  string   `yaml:"reference_quote"`
	} `yaml:"market"`

	Wallet struct {
		Snapshot struct {
			Enabled bool   `yaml:"enabled"`
			Path    string `yaml:"path"`
		} `yaml:"snapshot"`
		SeedBalances []SeedBalance `yaml:"seed_balances"`
	} `yaml:"wallet"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// SeedBalance is one demo balance the wallet starts from. Amounts stay
// strings in yaml and are parsed at the ledger boundary.
type SeedBalance struct {
	Asset  string `yaml:"asset"`
	Free   string `yaml:"free"`
	Locked string `yaml:"locked"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv lets endpoints be redirected without editing the file
// (mock exchanges in tests, regional API hosts).
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("TRADETERM_REST_URL"); v != "" {
		cfg.Exchange.RestURL = v
	}
	if v := os.Getenv("TRADETERM_WS_URL"); v != "" {
		cfg.Exchange.WSURL = v
	}
	if v := os.Getenv("TRADETERM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Exchange.CandleLimit <= 0 {
		cfg.Exchange.CandleLimit = 100
	}
	if cfg.Exchange.DepthLimit <= 0 {
		cfg.Exchange.DepthLimit = 20
	}
	if cfg.Exchange.StreamDepthLevels <= 0 {
		cfg.Exchange.StreamDepthLevels = 15
	}
	if cfg.Exchange.PricePollIntervalSec <= 0 {
		cfg.Exchange.PricePollIntervalSec = 10
	}
	if cfg.Market.ReferenceQuote == "" {
		cfg.Market.ReferenceQuote = "USDT"
	}
	if cfg.Market.DefaultInterval == "" {
		cfg.Market.DefaultInterval = "1m"
	}
	if len(cfg.Market.Intervals) == 0 {
		cfg.Market.Intervals = []string{"1m", "5m", "15m", "1h", "4h", "1d"}
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Exchange.RestURL == "" || (!hasPrefix(c.Exchange.RestURL, "http://") && !hasPrefix(c.Exchange.RestURL, "https://")) {
		return &domain.ConfigError{Field: "exchange.rest_url", Err: fmt.Errorf("not an http(s) URL: %q", c.Exchange.RestURL)}
	}
	if c.Exchange.WSURL == "" || (!hasPrefix(c.Exchange.WSURL, "ws://") && !hasPrefix(c.Exchange.WSURL, "wss://")) {
		return &domain.ConfigError{Field: "exchange.ws_url", Err: fmt.Errorf("not a ws(s) URL: %q", c.Exchange.WSURL)}
	}
	if len(c.Market.Pairs) == 0 {
		return &domain.ConfigError{Field: "market.pairs", Err: fmt.Errorf("at least one market pair is required")}
	}
	for _, p := range c.Market.Pairs {
		if _, err := domain.ParsePair(p); err != nil {
			return &domain.ConfigError{Field: "market.pairs", Err: err}
		}
	}
	if c.Market.DefaultPair == "" {
		c.Market.DefaultPair = c.Market.Pairs[0]
	}
	if _, err := domain.ParsePair(c.Market.DefaultPair); err != nil {
		return &domain.ConfigError{Field: "market.default_pair", Err: err}
	}
	return nil
}

// DefaultPair returns the parsed startup pair. Call after Validate.
func (c *Config) DefaultPair() domain.Pair {
	p, _ := domain.ParsePair(c.Market.DefaultPair)
	return p
}

// PairList returns all configured markets as parsed pairs, skipping
// anything malformed (Validate has already rejected those).
func (c *Config) PairList() []domain.Pair {
	out := make([]domain.Pair, 0, len(c.Market.Pairs))
	for _, s := range c.Market.Pairs {
		p, err := domain.ParsePair(s)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}
