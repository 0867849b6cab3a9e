// Package config loads go-talkback configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables (a .env file is read first if present). Command
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-talkback/pkg/audioio"
)

// DefaultEndpoint is the voice service the client connects to.
const DefaultEndpoint = "ws://localhost:8000/ws"

// Environment variables.
const (
	EnvEndpoint      = "TALKBACK_ENDPOINT"
	EnvAudioBackend  = "TALKBACK_AUDIO_BACKEND"
	EnvAudioDevice   = "TALKBACK_AUDIO_DEVICE"
	EnvSampleRate    = "TALKBACK_SAMPLE_RATE"
	EnvDashboardAddr = "TALKBACK_DASHBOARD_ADDR"
	EnvLogLevel      = "LOG_LEVEL"
)

// Config is the complete client configuration.
type Config struct {
	// Endpoint is the base URL; the session id is appended as a path element.
	Endpoint string `yaml:"endpoint"`

	Audio     audioio.Config  `yaml:"audio"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Log       LogConfig       `yaml:"log"`
}

// PlaybackConfig configures the output device.
type PlaybackConfig struct {
	SampleRate int           `yaml:"sample_rate"`
	Buffer     time.Duration `yaml:"buffer"`
}

// DashboardConfig configures the web dashboard. An empty Addr disables it.
type DashboardConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		Audio:    audioio.DefaultConfig(),
		Playback: PlaybackConfig{
			SampleRate: 44100,
			Buffer:     100 * time.Millisecond,
		},
		Dashboard: DashboardConfig{Addr: ":8090"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory, and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvEndpoint); ok && v != "" {
		c.Endpoint = v
	}
	if v, ok := lookup(EnvAudioBackend); ok && v != "" {
		c.Audio.Backend = audioio.Backend(v)
	}
	if v, ok := lookup(EnvAudioDevice); ok {
		c.Audio.Device = v
	}
	if v, ok := lookup(EnvSampleRate); ok && v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSampleRate, err)
		}
		c.Audio.SampleRate = rate
	}
	if v, ok := lookup(EnvDashboardAddr); ok {
		c.Dashboard.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", c.Endpoint)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if c.Playback.SampleRate <= 0 {
		return fmt.Errorf("playback: sample_rate must be positive, got %d", c.Playback.SampleRate)
	}
	if c.Playback.Buffer <= 0 {
		return fmt.Errorf("playback: buffer must be positive, got %v", c.Playback.Buffer)
	}
	return nil
}
