// Package config loads midibridge settings from a YAML file and MIDIBRIDGE_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leandrodaf/midibridge/internal/install"
	"github.com/leandrodaf/midibridge/internal/provider"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/spf13/viper"
)

const (
	fileName  = "config"
	fileType  = "yaml"
	envPrefix = "MIDIBRIDGE"
)

// Config is the effective configuration.
type Config struct {
	Provider      string        `mapstructure:"provider"` // http(s) URL or directory
	Cache         bool          `mapstructure:"cache"`
	AssetDir      string        `mapstructure:"asset_dir"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFile       string        `mapstructure:"log_file"`
	ClientName    string        `mapstructure:"client_name"`
	MaxConcurrent int64         `mapstructure:"max_concurrent"`
	Retry         RetryConfig   `mapstructure:"retry"`
	DrainDeadline time.Duration `mapstructure:"drain_deadline"`
	EventBuffer   int           `mapstructure:"event_buffer"`
}

type RetryConfig struct {
	MaxRetries uint64        `mapstructure:"max_retries"`
	Initial    time.Duration `mapstructure:"initial"`
	Max        time.Duration `mapstructure:"max"`
}

// Dir returns the midibridge config directory.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".midibridge")
	}
	return filepath.Join(base, "midibridge")
}

// FilePath returns the default config file path.
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// Load reads path, or the default file when path is empty. A missing default
// file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(fileType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = FilePath()
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "")
	v.SetDefault("cache", true)
	v.SetDefault("asset_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("client_name", "midibridge")
	v.SetDefault("max_concurrent", install.DefaultMaxConcurrent)
	v.SetDefault("retry.max_retries", install.DefaultMaxRetries)
	v.SetDefault("retry.initial", install.DefaultInitialInterval)
	v.SetDefault("retry.max", install.DefaultMaxInterval)
	v.SetDefault("drain_deadline", 500*time.Millisecond)
	v.SetDefault("event_buffer", 256)
}

// ParseLevel maps a level name to a contracts.LogLevel.
func ParseLevel(name string) (contracts.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return contracts.DebugLevel, nil
	case "", "info":
		return contracts.InfoLevel, nil
	case "warn", "warning":
		return contracts.WarnLevel, nil
	case "error":
		return contracts.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// NewProvider builds the configured provider, or returns nil when none is
// configured.
func (c *Config) NewProvider() (contracts.Provider, error) {
	var p contracts.Provider
	switch {
	case c.Provider == "":
		return nil, nil
	case strings.HasPrefix(c.Provider, "http://"), strings.HasPrefix(c.Provider, "https://"):
		remote, err := provider.NewRemoteProvider(c.Provider)
		if err != nil {
			return nil, err
		}
		p = remote
	default:
		local, err := provider.NewLocalProvider(c.Provider)
		if err != nil {
			return nil, err
		}
		p = local
	}
	if c.Cache {
		p = provider.NewCachedProvider(p)
	}
	return p, nil
}

// Options converts the configuration into bridge options.
func (c *Config) Options() ([]contracts.Option, error) {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := []contracts.Option{
		contracts.WithLogLevel(level),
		contracts.WithCoreMIDIConfig(contracts.CoreMIDIConfig{ClientName: c.ClientName}),
		contracts.WithMaxConcurrentInstalls(c.MaxConcurrent),
		contracts.WithRetryPolicy(contracts.RetryPolicy{
			MaxRetries:      c.Retry.MaxRetries,
			InitialInterval: c.Retry.Initial,
			MaxInterval:     c.Retry.Max,
		}),
		contracts.WithDrainDeadline(c.DrainDeadline),
		contracts.WithEventBuffer(c.EventBuffer),
	}
	if c.LogFile != "" {
		opts = append(opts, contracts.WithLogFile(c.LogFile))
	}
	if c.AssetDir != "" {
		opts = append(opts, contracts.WithAssetDir(c.AssetDir))
	}

	p, err := c.NewProvider()
	if err != nil {
		return nil, fmt.Errorf("configuring provider %s: %w", c.Provider, err)
	}
	if p != nil {
		opts = append(opts, contracts.WithProvider(p))
	}
	return opts, nil
}
