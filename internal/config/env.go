package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides cfg with any SOFT404_* variables that are set.
func ApplyEnv(cfg *Config) error {
	var err error
	setInt := func(name string, dst *int) {
		if v := env(name); v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", name, perr)
				return
			}
			*dst = n
		}
	}
	setFloat := func(name string, dst *float64) {
		if v := env(name); v != "" && err == nil {
			f, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				err = fmt.Errorf("%s: %w", name, perr)
				return
			}
			*dst = f
		}
	}
	setBool := func(name string, dst *bool) {
		if v := env(name); v != "" && err == nil {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", name, perr)
				return
			}
			*dst = b
		}
	}

	setInt("SOFT404_TIMEOUT_SECONDS", &cfg.Fetch.TimeoutSecs)
	if v := env("SOFT404_MAX_REDIRECTS"); v != "" {
		n, perr := strconv.Atoi(v)
		if perr != nil {
			return fmt.Errorf("SOFT404_MAX_REDIRECTS: %w", perr)
		}
		cfg.Fetch.MaxRedirects = &n
	}
	cfg.Fetch.UserAgent = envOr(cfg.Fetch.UserAgent, env("SOFT404_USER_AGENT"))
	cfg.Compare.Metric = envOr(cfg.Compare.Metric, env("SOFT404_METRIC"))
	setFloat("SOFT404_THRESHOLD", &cfg.Compare.Threshold)
	setBool("SOFT404_UNKNOWN_IS_DEAD", &cfg.Verdict.UnknownIsDead)
	setInt("SOFT404_CONCURRENCY", &cfg.Batch.Concurrency)
	setFloat("SOFT404_RATE", &cfg.Batch.RatePerSecond)
	cfg.Log.Level = envOr(cfg.Log.Level, env("SOFT404_LOG_LEVEL"))
	setBool("SOFT404_LOG_JSON", &cfg.Log.JSON)
	cfg.Server.Addr = envOr(cfg.Server.Addr, env("SOFT404_ADDR"))
	return err
}

func env(name string) string { return strings.TrimSpace(os.Getenv(name)) }

func envOr(existing, value string) string {
	if value == "" {
		return existing
	}
	return value
}
