package tldk

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ContextConfig holds the process-wide parameters a Context is built with:
// default MSS, retry cap, buffer sizing, and timer intervals. The RTO
// bounds are not part of it; they are fixed constants in rtt.go.
// It is typically loaded from YAML alongside a deployment's other settings.
type ContextConfig struct {
	StreamPoolSize  int           `yaml:"stream_pool_size"`
	DefaultMSS      uint16        `yaml:"default_mss"`
	MaxRetries      int           `yaml:"max_retries"`
	SendBufferBytes int           `yaml:"send_buffer_bytes"`
	RecvBufferBytes int           `yaml:"recv_buffer_bytes"`
	MaxOOOSegments  int           `yaml:"max_ooo_segments"`
	ListenBacklog   int           `yaml:"listen_backlog"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	DelayedACK      time.Duration `yaml:"delayed_ack"`
	KeepaliveIdle   time.Duration `yaml:"keepalive_idle"`
	MSL             time.Duration `yaml:"msl"`
	EgressBytesPerSec int         `yaml:"egress_bytes_per_sec"`
	EgressBurstBytes  int         `yaml:"egress_burst_bytes"`
}

// DefaultContextConfig returns the configuration a Context uses when none
// is supplied: values tuned for a low-latency virtual link rather than a
// long-haul physical network, matching this stack's lineage.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		StreamPoolSize:    4096,
		DefaultMSS:        defaultMSS,
		MaxRetries:        defaultRetries,
		SendBufferBytes:   256 * 1024,
		RecvBufferBytes:   256 * 1024,
		MaxOOOSegments:    64,
		ListenBacklog:     128,
		TickInterval:      defaultTick,
		DelayedACK:        200 * time.Millisecond,
		KeepaliveIdle:     2 * time.Hour,
		MSL:               30 * time.Second,
		EgressBytesPerSec: 0,
		EgressBurstBytes:  0,
	}
}

// LoadContextConfig reads and parses a YAML configuration file, starting
// from DefaultContextConfig so a partial file only overrides what it sets.
// A missing file is not an error: the defaults are returned as-is.
func LoadContextConfig(path string) (ContextConfig, error) {
	cfg := DefaultContextConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("context config not found, using defaults", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read context config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse context config: %w", err)
	}

	slog.Info("loaded context config", "path", path, "stream_pool_size", cfg.StreamPoolSize, "default_mss", cfg.DefaultMSS)
	return cfg, nil
}

// validate checks a config for internally-consistent values, called once
// from NewContext.
func (c *ContextConfig) validate() error {
	if c.StreamPoolSize <= 0 {
		return fmt.Errorf("%w: stream_pool_size must be positive", ErrInvalidArgument)
	}
	if c.DefaultMSS == 0 {
		return fmt.Errorf("%w: default_mss must be positive", ErrInvalidArgument)
	}
	if c.SendBufferBytes <= 0 || c.RecvBufferBytes <= 0 {
		return fmt.Errorf("%w: buffer sizes must be positive", ErrInvalidArgument)
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTick
	}
	if c.MSL <= 0 {
		c.MSL = 30 * time.Second
	}
	return nil
}
