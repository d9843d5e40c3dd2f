package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeoutSecs     = 10
	DefaultDialTimeoutSecs = 5
	DefaultMaxRedirects    = 10
	DefaultMaxBodyBytes    = 64 * 1024
	DefaultTokenLength     = 25
	DefaultMetric          = "sequence"
	DefaultThreshold       = 0.95
	DefaultJaccardThresh   = 0.9
	DefaultShingleSize     = 3
	DefaultConcurrency     = 10
	DefaultServerAddr      = ":8080"
)

// Config drives the CLI and server. The detection core receives its
// values through constructors and never reads files itself.
type Config struct {
	Fetch   FetchConfig   `yaml:"fetch"`
	Probe   ProbeConfig   `yaml:"probe"`
	Compare CompareConfig `yaml:"compare"`
	Verdict VerdictConfig `yaml:"verdict"`
	Batch   BatchConfig   `yaml:"batch"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

type FetchConfig struct {
	TimeoutSecs     int    `yaml:"timeout_seconds"`
	DialTimeoutSecs int    `yaml:"dial_timeout_seconds"`
	MaxRedirects    *int   `yaml:"max_redirects"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
	UserAgent       string `yaml:"user_agent"`
}

type ProbeConfig struct {
	TokenLength int     `yaml:"token_length"`
	Seed        *uint64 `yaml:"seed"`
}

type CompareConfig struct {
	Metric      string  `yaml:"metric"`
	Threshold   float64 `yaml:"threshold"`
	ShingleSize int     `yaml:"shingle_size"`
	StripMarkup *bool   `yaml:"strip_markup"`
}

type VerdictConfig struct {
	UnknownIsDead bool `yaml:"unknown_is_dead"`
}

type BatchConfig struct {
	Concurrency   int     `yaml:"concurrency"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads a YAML file (an empty path means no file), applies
// SOFT404_* environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) WithDefaults() *Config {
	if c == nil {
		c = &Config{}
	}
	if c.Fetch.TimeoutSecs <= 0 {
		c.Fetch.TimeoutSecs = DefaultTimeoutSecs
	}
	if c.Fetch.DialTimeoutSecs <= 0 {
		c.Fetch.DialTimeoutSecs = DefaultDialTimeoutSecs
	}
	if c.Fetch.MaxRedirects == nil {
		n := DefaultMaxRedirects
		c.Fetch.MaxRedirects = &n
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Probe.TokenLength <= 0 {
		c.Probe.TokenLength = DefaultTokenLength
	}
	if strings.TrimSpace(c.Compare.Metric) == "" {
		c.Compare.Metric = DefaultMetric
	}
	c.Compare.Metric = strings.ToLower(strings.TrimSpace(c.Compare.Metric))
	if c.Compare.Threshold <= 0 {
		c.Compare.Threshold = DefaultThreshold
		if c.Compare.Metric == "jaccard" {
			c.Compare.Threshold = DefaultJaccardThresh
		}
	}
	if c.Compare.ShingleSize <= 0 {
		c.Compare.ShingleSize = DefaultShingleSize
	}
	if c.Compare.StripMarkup == nil {
		v := true
		c.Compare.StripMarkup = &v
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = DefaultConcurrency
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	return c
}

func (c *Config) Validate() error {
	var errs []error
	if *c.Fetch.MaxRedirects < 0 {
		errs = append(errs, fmt.Errorf("fetch.max_redirects must be >= 0, got %d", *c.Fetch.MaxRedirects))
	}
	if c.Probe.TokenLength < 10 {
		errs = append(errs, fmt.Errorf("probe.token_length must be >= 10, got %d", c.Probe.TokenLength))
	}
	if c.Compare.Threshold > 1 {
		errs = append(errs, fmt.Errorf("compare.threshold must be in (0, 1], got %v", c.Compare.Threshold))
	}
	switch c.Compare.Metric {
	case "sequence", "jaccard":
	default:
		errs = append(errs, fmt.Errorf("compare.metric must be sequence or jaccard, got %q", c.Compare.Metric))
	}
	if c.Batch.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("batch.rate_per_second must be >= 0, got %v", c.Batch.RatePerSecond))
	}
	return errors.Join(errs...)
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSecs) * time.Second
}

func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Fetch.DialTimeoutSecs) * time.Second
}
