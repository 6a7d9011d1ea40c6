// Package config loads and validates the node's structured configuration
// document (spec.md section 6), following the same "one YAML document,
// flag overrides on top" layering the retrieved samoyed server's
// gopkg.in/yaml.v3 + spf13/pflag config loader uses.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ChannelConfig describes one radio-facing transport and its digipeater
// policy binding.
type ChannelConfig struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"` // serial | kiss-tcp | mock
	Port     string `yaml:"port,omitempty"`
	Baud     int    `yaml:"baud,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Callsign string `yaml:"callsign"`
}

// RouteConfig is one {from, to} channel pairing for cross-channel
// forwarding (digipeater.routes[]).
type RouteConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// SeenCacheConfig configures the digipeater's shared seen-cache.
type SeenCacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"maxEntries"`
}

// DigipeaterChannelConfig holds the per-channel WIDE-N policy fields of
// spec.md section 4.4.
type DigipeaterChannelConfig struct {
	Mode            string   `yaml:"mode"` // digipeat | listen-only
	Role            string   `yaml:"role"` // fill-in | wide
	AppendCallsign  bool     `yaml:"appendCallsign"`
	MaxWideN        int      `yaml:"maxWideN,omitempty"`
	PersonalAliases []string `yaml:"personalAliases,omitempty"`
	IGateForward    bool     `yaml:"igateForward"`
}

// DigipeaterConfig groups the digipeater-wide and per-channel settings.
type DigipeaterConfig struct {
	Channels  map[string]DigipeaterChannelConfig `yaml:"channels"`
	Routes    []RouteConfig                      `yaml:"routes"`
	SeenCache SeenCacheConfig                    `yaml:"seenCache"`
}

// RoutingConfig configures backbone path preferences.
type RoutingConfig struct {
	PreferInternet bool `yaml:"preferInternet"`
	MaxHops        int  `yaml:"maxHops"`
}

// SecurityConfig configures the trust plane.
type SecurityConfig struct {
	Enabled         bool          `yaml:"enabled"`
	TrustedNodes    []string      `yaml:"trustedNodes"`
	SessionTimeout  time.Duration `yaml:"sessionTimeout"`
	MaxAuthAttempts int           `yaml:"maxAuthAttempts"`
}

// BackboneConfig groups everything under the backbone. key.
type BackboneConfig struct {
	Enabled       bool            `yaml:"enabled"`
	LocalCallsign string          `yaml:"localCallsign"`
	Transports    []string        `yaml:"transports"`
	Routing       RoutingConfig   `yaml:"routing"`
	QoS           string          `yaml:"qos"`
	LoadBalancing string          `yaml:"loadBalancing"` // weighted | round-robin | least-loaded
	MeshHealing   bool            `yaml:"meshHealing"`
	Security      SecurityConfig  `yaml:"security"`
}

// Config is the top-level document loaded from config.yaml.
type Config struct {
	UIPassword string          `yaml:"uiPassword"`
	Channels   []ChannelConfig `yaml:"channels"`
	Digipeater DigipeaterConfig `yaml:"digipeater"`
	Backbone   BackboneConfig  `yaml:"backbone"`
}

// Default returns a Config with spec.md section 3 defaults applied.
func Default() Config {
	return Config{
		Digipeater: DigipeaterConfig{
			Channels: make(map[string]DigipeaterChannelConfig),
			SeenCache: SeenCacheConfig{
				TTL:        5 * time.Second,
				MaxEntries: 1000,
			},
		},
		Backbone: BackboneConfig{
			LoadBalancing: "weighted",
			Security: SecurityConfig{
				SessionTimeout:  300 * time.Second,
				MaxAuthAttempts: 5,
			},
		},
	}
}

// Load reads and parses the YAML document at path, applying defaults to
// any zero-valued fields first.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Digipeater.SeenCache.TTL == 0 {
		cfg.Digipeater.SeenCache.TTL = 5 * time.Second
	}
	if cfg.Digipeater.SeenCache.MaxEntries == 0 {
		cfg.Digipeater.SeenCache.MaxEntries = 1000
	}
	return cfg, nil
}

// BindFlags registers CLI overrides for the handful of settings operators
// commonly override at launch, mirroring the teacher's pflag-over-yaml
// layering.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Backbone.LocalCallsign, "callsign", cfg.Backbone.LocalCallsign, "local node callsign")
	fs.BoolVar(&cfg.Backbone.Enabled, "backbone", cfg.Backbone.Enabled, "enable the backbone plane")
	fs.BoolVar(&cfg.Backbone.MeshHealing, "mesh-healing", cfg.Backbone.MeshHealing, "enable mesh self-healing")
	fs.BoolVar(&cfg.Backbone.Security.Enabled, "auth", cfg.Backbone.Security.Enabled, "require peer authentication")
}
