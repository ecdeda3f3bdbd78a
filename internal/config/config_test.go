package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/midibridge/internal/install"
	"github.com/leandrodaf/midibridge/internal/provider"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "info" || !cfg.Cache || cfg.Provider != "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Retry.MaxRetries != install.DefaultMaxRetries || cfg.Retry.Initial != install.DefaultInitialInterval {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.DrainDeadline != 500*time.Millisecond || cfg.EventBuffer != 256 {
		t.Errorf("session defaults = %v, %d", cfg.DrainDeadline, cfg.EventBuffer)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "midibridge.yaml")
	body := `
provider: ` + dir + `
cache: false
log_level: debug
max_concurrent: 2
retry:
  max_retries: 5
  initial: 10ms
drain_deadline: 2s
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MIDIBRIDGE_EVENT_BUFFER", "32")
	t.Setenv("MIDIBRIDGE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != dir || cfg.Cache || cfg.MaxConcurrent != 2 {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.Initial != 10*time.Millisecond || cfg.Retry.Max != install.DefaultMaxInterval {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.DrainDeadline != 2*time.Second {
		t.Errorf("drain deadline = %v", cfg.DrainDeadline)
	}
	if cfg.EventBuffer != 32 || cfg.LogLevel != "warn" {
		t.Errorf("env overrides lost: buffer %d level %q", cfg.EventBuffer, cfg.LogLevel)
	}

	p, err := cfg.NewProvider()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*provider.LocalProvider); !ok {
		t.Errorf("provider = %T, want *provider.LocalProvider", p)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestNewProviderKinds(t *testing.T) {
	remote := &Config{Provider: "https://example.com/instruments", Cache: true}
	p, err := remote.NewProvider()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*provider.CachedProvider); !ok {
		t.Errorf("provider = %T, want cached", p)
	}

	none := &Config{}
	if p, err := none.NewProvider(); err != nil || p != nil {
		t.Errorf("empty provider = %v, %v", p, err)
	}

	missing := &Config{Provider: filepath.Join(t.TempDir(), "nope")}
	if _, err := missing.NewProvider(); err == nil {
		t.Error("expected an error for a missing provider directory")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]contracts.LogLevel{
		"debug": contracts.DebugLevel,
		"INFO":  contracts.InfoLevel,
		"":      contracts.InfoLevel,
		"warn":  contracts.WarnLevel,
		"error": contracts.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestOptions(t *testing.T) {
	cfg := &Config{LogLevel: "error", ClientName: "x", AssetDir: t.TempDir(), EventBuffer: 8}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatal(err)
	}
	var applied contracts.ClientOptions
	for _, opt := range opts {
		opt(&applied)
	}
	if applied.LogLevel != contracts.ErrorLevel || applied.CoreMIDIConfig.ClientName != "x" || applied.EventBuffer != 8 {
		t.Errorf("applied = %+v", applied)
	}
	if applied.Provider != nil {
		t.Errorf("provider = %v, want none", applied.Provider)
	}
}
