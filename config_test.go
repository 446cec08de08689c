package tldk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultContextConfigValidates(t *testing.T) {
	cfg := DefaultContextConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadContextConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadContextConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg != DefaultContextConfig() {
		t.Fatalf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadContextConfigOverridesOnlyWhatsSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tldk.yaml")
	if err := os.WriteFile(path, []byte("default_mss: 1460\nmax_retries: 7\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadContextConfig(path)
	if err != nil {
		t.Fatalf("LoadContextConfig: %v", err)
	}
	if cfg.DefaultMSS != 1460 {
		t.Fatalf("DefaultMSS = %d, want 1460", cfg.DefaultMSS)
	}
	if cfg.MaxRetries != 7 {
		t.Fatalf("MaxRetries = %d, want 7", cfg.MaxRetries)
	}
	want := DefaultContextConfig()
	if cfg.StreamPoolSize != want.StreamPoolSize {
		t.Fatalf("StreamPoolSize should keep its default, got %d", cfg.StreamPoolSize)
	}
}

func TestLoadContextConfigRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tldk.yaml")
	if err := os.WriteFile(path, []byte("default_mss: [this is not a scalar"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadContextConfig(path); err == nil {
		t.Fatalf("expected an error parsing malformed YAML")
	}
}

func TestValidateRejectsNonPositiveStreamPoolSize(t *testing.T) {
	cfg := DefaultContextConfig()
	cfg.StreamPoolSize = 0
	if err := cfg.validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("validate() = %v, want ErrInvalidArgument", err)
	}
}

func TestValidateRejectsZeroDefaultMSS(t *testing.T) {
	cfg := DefaultContextConfig()
	cfg.DefaultMSS = 0
	if err := cfg.validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("validate() = %v, want ErrInvalidArgument", err)
	}
}

func TestValidateRejectsNonPositiveBufferSizes(t *testing.T) {
	cfg := DefaultContextConfig()
	cfg.SendBufferBytes = 0
	if err := cfg.validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("validate() = %v, want ErrInvalidArgument for send buffer", err)
	}

	cfg = DefaultContextConfig()
	cfg.RecvBufferBytes = -1
	if err := cfg.validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("validate() = %v, want ErrInvalidArgument for recv buffer", err)
	}
}

func TestValidateFillsInMissingTickAndMSL(t *testing.T) {
	cfg := DefaultContextConfig()
	cfg.TickInterval = 0
	cfg.MSL = -1

	if err := cfg.validate(); err != nil {
		t.Fatalf("validate(): %v", err)
	}
	if cfg.TickInterval != defaultTick {
		t.Fatalf("TickInterval = %v, want the default %v", cfg.TickInterval, defaultTick)
	}
	if cfg.MSL != 30*time.Second {
		t.Fatalf("MSL = %v, want 30s", cfg.MSL)
	}
}
