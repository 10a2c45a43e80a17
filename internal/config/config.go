// Package config loads the YAML configuration shared by cmd/simulator and
// cmd/monitor, grounded on coordinator.LoadConfig in the teacher repo:
// unmarshal onto a DefaultConfig(), byte sizes via datasize.ByteSize.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/z-monitor/sensorcore/internal/logging"
)

// DefaultSocketPath is the well-known control channel path (spec §4.E, §6).
const DefaultSocketPath = "/tmp/z-monitor-sensor.sock"

// Config is the full set of options recognized at startup (spec §6).
type Config struct {
	// SocketPath is the control channel's UNIX-domain path.
	SocketPath string `yaml:"socket_path"`
	// Ring is the shared-memory ring buffer geometry.
	Ring RingConfig `yaml:"ring"`
	// HeartbeatThresholdMs is the reader's stall-detection threshold.
	HeartbeatThresholdMs int `yaml:"heartbeat_threshold_ms"`
	// HandshakeTimeoutMs bounds how long a reader waits for the control
	// channel handshake record.
	HandshakeTimeoutMs int `yaml:"handshake_timeout_ms"`
	// Logging configures the process-wide logger.
	Logging logging.Config `yaml:"logging"`
}

// RingConfig is the shared-memory geometry (spec §3, §6).
type RingConfig struct {
	// FrameSize is the size in bytes of each slot, including the slot
	// header. Default sized to hold one worst-case waveform chunk (a
	// one-second, 250 Hz batch serialized as JSON) plus slot header.
	FrameSize datasize.ByteSize `yaml:"frame_size"`
	// FrameCount is the number of slots. Default yields comfortably more
	// than 1s of buffered history even at the highest expected publish
	// rate (250 Hz waveform chunks).
	FrameCount uint32 `yaml:"frame_count"`
}

// DefaultConfig returns the configuration every field in spec.md §6 names a
// default for.
func DefaultConfig() *Config {
	return &Config{
		SocketPath: DefaultSocketPath,
		Ring: RingConfig{
			FrameSize:  4 * datasize.KB,
			FrameCount: 256,
		},
		HeartbeatThresholdMs: 250,
		HandshakeTimeoutMs:   2000,
		Logging: logging.Config{
			Level: zapcore.InfoLevel,
		},
	}
}

// Load reads YAML from path and unmarshals it onto DefaultConfig(). A
// missing path is not an error: the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// HeartbeatThreshold is HeartbeatThresholdMs as a time.Duration.
func (c *Config) HeartbeatThreshold() time.Duration {
	return time.Duration(c.HeartbeatThresholdMs) * time.Millisecond
}

// HandshakeTimeout is HandshakeTimeoutMs as a time.Duration.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMs) * time.Millisecond
}
