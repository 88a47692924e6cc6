// Package config loads monocle's runtime configuration (spec.md §6.4).
//
// Locating a config file is the caller's job (the CLI front-end is out
// of scope for this module, spec.md §1) — Load takes an explicit path,
// which may be empty. Precedence, loudest wins: CLI flags > environment
// (MONOCLE_ prefixed) > YAML file > built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "MONOCLE_"

// Config is the fully resolved runtime configuration.
type Config struct {
	DataDir string        `koanf:"data_dir"`
	Server  ServerConfig  `koanf:"server"`
	Cache   CacheConfig   `koanf:"cache"`
	Sources SourcesConfig `koanf:"sources"`
	Log     LogConfig     `koanf:"log"`
}

// ServerConfig controls the WebSocket RPC listener (spec.md §4.6, §6.4).
type ServerConfig struct {
	Address               string        `koanf:"address"`
	Port                  int           `koanf:"port"`
	MaxConcurrentOps      int           `koanf:"max_concurrent_ops"`
	MaxMessageSize        int64         `koanf:"max_message_size"`
	PingIntervalSecs      time.Duration `koanf:"ping_interval_secs"`
	ConnectionTimeoutSecs time.Duration `koanf:"connection_timeout_secs"`
}

// CacheConfig carries the per-dataset freshness windows (spec.md §3.3, §4.3).
type CacheConfig struct {
	RPKITTL   time.Duration `koanf:"rpki_ttl"`
	Pfx2asTTL time.Duration `koanf:"pfx2as_ttl"`
	AsinfoTTL time.Duration `koanf:"asinfo_ttl"`
	As2relTTL time.Duration `koanf:"as2rel_ttl"`
}

// SourcesConfig carries the upstream URLs consumed by the refresh
// coordinator (spec.md §6.3). None of these are contacted from the query
// path except the RPKI lens's explicit historical-date queries.
type SourcesConfig struct {
	AsinfoURL   string `koanf:"asinfo_url"`
	As2relURL   string `koanf:"as2rel_url"`
	RPKIURL     string `koanf:"rpki_url"`
	RPKIArchive string `koanf:"rpki_archive_url"`
	Pfx2asURL   string `koanf:"pfx2as_url"`
	BrokerURL   string `koanf:"broker_url"`
}

// LogConfig controls zerolog output (not part of spec.md's data model,
// but ambient stack every component needs).
type LogConfig struct {
	Level   string `koanf:"level"`
	Console bool   `koanf:"console"`
}

// Load resolves a Config from defaults, an optional YAML file at path
// (ignored if empty or missing), environment variables, and flags (if f
// is non-nil, parsed with posflag the way core/config.go does for bgpipe).
func Load(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			if _, statErr := os.Stat(abs); statErr == nil {
				if err := k.Load(file.Provider(abs), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("config: file %s: %w", abs, err)
				}
			} else if !os.IsNotExist(statErr) {
				return nil, fmt.Errorf("config: file %s: %w", abs, statErr)
			}
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("config: flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve data_dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".monocle")
	}

	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"server.address":                  "127.0.0.1",
		"server.port":                      7878,
		"server.max_concurrent_ops":        64,
		"server.max_message_size":          4 << 20, // 4 MiB
		"server.ping_interval_secs":        30 * time.Second,
		"server.connection_timeout_secs":   5 * time.Minute,
		"cache.rpki_ttl":                   1 * time.Hour,
		"cache.pfx2as_ttl":                 24 * time.Hour,
		"cache.asinfo_ttl":                 7 * 24 * time.Hour,
		"cache.as2rel_ttl":                 24 * time.Hour,
		"sources.asinfo_url":               "https://data.bgpkit.com/as-info/as-info.jsonl",
		"sources.as2rel_url":               "https://data.bgpkit.com/as2rel/as2rel-latest.bz2",
		"sources.rpki_url":                 "https://rpki.cloudflare.com/rpki.json",
		"sources.rpki_archive_url":         "https://rpki-archive.bgpkit.com",
		"sources.pfx2as_url":               "https://data.bgpkit.com/pfx2as/pfx2as-latest.json.bz2",
		"sources.broker_url":               "https://api.bgpkit.com/v3/broker",
		"log.level":                        "info",
		"log.console":                      true,
	}
}
