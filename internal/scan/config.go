package scan

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the engine's tunables. Zero values are replaced by defaults
// at construction, so a zero Config is usable.
type Config struct {
	// Network is the CIDR to scan. Autodetected from the local address
	// (assuming /24) when empty.
	Network string `mapstructure:"network"`

	// DiscoveryWindow bounds the ARP reply-collection window.
	DiscoveryWindow time.Duration `mapstructure:"discovery_window"`

	// PingTimeout bounds each ICMP reachability check.
	PingTimeout time.Duration `mapstructure:"ping_timeout"`

	// PortTimeout bounds each TCP connect attempt.
	PortTimeout time.Duration `mapstructure:"port_timeout"`

	// BannerTimeout bounds banner connections and reads; BannerSettle is
	// the wait before reading, giving the service time to greet.
	BannerTimeout time.Duration `mapstructure:"banner_timeout"`
	BannerSettle  time.Duration `mapstructure:"banner_settle"`

	// Concurrency caps each worker pool (discovery pass, port scan).
	Concurrency int `mapstructure:"concurrency"`

	// StopGrace bounds how long Stop waits for workers to drain.
	StopGrace time.Duration `mapstructure:"stop_grace"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DiscoveryWindow: 3 * time.Second,
		PingTimeout:     time.Second,
		PortTimeout:     500 * time.Millisecond,
		BannerTimeout:   time.Second,
		BannerSettle:    200 * time.Millisecond,
		Concurrency:     100,
		StopGrace:       5 * time.Second,
	}
}

// ConfigFromViper reads the engine config from a viper subtree (typically
// the "scan" section), applying defaults for unset keys.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if v == nil {
		return cfg, nil
	}

	v.SetDefault("discovery_window", cfg.DiscoveryWindow)
	v.SetDefault("ping_timeout", cfg.PingTimeout)
	v.SetDefault("port_timeout", cfg.PortTimeout)
	v.SetDefault("banner_timeout", cfg.BannerTimeout)
	v.SetDefault("banner_settle", cfg.BannerSettle)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("stop_grace", cfg.StopGrace)

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg.withDefaults(), nil
}

// withDefaults replaces zero or negative values with the defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DiscoveryWindow <= 0 {
		c.DiscoveryWindow = def.DiscoveryWindow
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = def.PingTimeout
	}
	if c.PortTimeout <= 0 {
		c.PortTimeout = def.PortTimeout
	}
	if c.BannerTimeout <= 0 {
		c.BannerTimeout = def.BannerTimeout
	}
	if c.BannerSettle <= 0 {
		c.BannerSettle = def.BannerSettle
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.StopGrace <= 0 {
		c.StopGrace = def.StopGrace
	}
	return c
}
