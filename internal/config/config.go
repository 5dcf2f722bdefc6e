// Package config loads the playback service configuration from a YAML file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/observability"
)

// ErrInvalidConfig is returned when the merged configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Config is the root of the playback configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Store    StoreConfig    `yaml:"store"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	HTTP     HTTPConfig     `yaml:"http"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Tiles    TilesConfig    `yaml:"tiles"`
	Playback PlaybackConfig `yaml:"playback"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// SnapshotConfig points at a snapshot bundle on disk. When Watch is set the
// session reloads whenever one of the files changes.
type SnapshotConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type StoreConfig struct {
	Path     string `yaml:"path" validate:"required_without=InMemory"`
	InMemory bool   `yaml:"in_memory"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter" validate:"omitempty,oneof=stdout otlp otlpgrpc"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// TilesConfig controls the map tile building loader.
type TilesConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
	Rate        float64       `yaml:"rate" validate:"gte=0"`
	Burst       int           `yaml:"burst" validate:"gte=1"`
	Concurrency int           `yaml:"concurrency" validate:"gte=1,lte=64"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

type PlaybackConfig struct {
	TicksPerSecond float64 `yaml:"ticks_per_second" validate:"gt=0"`
	// SelectAll selects every agent right after a snapshot loads.
	SelectAll bool `yaml:"select_all"`
	// ActiveOnlyFocus ignores focus requests for agents not flying at the
	// current tick.
	ActiveOnlyFocus bool `yaml:"active_only_focus"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{Path: "data/playback"},
		GRPC:  GRPCConfig{Addr: ":50061"},
		HTTP:  HTTPConfig{Addr: ":8080"},
		Tracing: TracingConfig{
			ServiceName: "airspace-playback",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
		Tiles: TilesConfig{
			BaseURL:     "https://data.osmbuildings.org/0.2/anonymous/tile",
			Rate:        8,
			Burst:       4,
			Concurrency: 4,
			Timeout:     10 * time.Second,
		},
		Playback: PlaybackConfig{TicksPerSecond: 4, SelectAll: true},
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Tiles.Enabled && c.Tiles.BaseURL == "" {
		return fmt.Errorf("%w: tiles.base_url is required when tiles are enabled", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = b
		return nil
	}
	float := func(key string, dst *float64) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = f
		return nil
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)

	str("PLAYBACK_SNAPSHOT_PATH", &c.Snapshot.Path)
	str("PLAYBACK_STORE_PATH", &c.Store.Path)
	str("PLAYBACK_GRPC_ADDR", &c.GRPC.Addr)
	str("PLAYBACK_HTTP_ADDR", &c.HTTP.Addr)
	str("PLAYBACK_TILES_BASE_URL", &c.Tiles.BaseURL)
	str("PLAYBACK_TRACING_EXPORTER", &c.Tracing.Exporter)
	str("PLAYBACK_TRACING_SERVICE_NAME", &c.Tracing.ServiceName)
	str("PLAYBACK_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	c.Tracing.Exporter = strings.ToLower(c.Tracing.Exporter)

	for key, dst := range map[string]*bool{
		"PLAYBACK_SNAPSHOT_WATCH":    &c.Snapshot.Watch,
		"PLAYBACK_STORE_IN_MEMORY":   &c.Store.InMemory,
		"PLAYBACK_TRACING_ENABLED":   &c.Tracing.Enabled,
		"PLAYBACK_TILES_ENABLED":     &c.Tiles.Enabled,
		"PLAYBACK_SELECT_ALL":        &c.Playback.SelectAll,
		"PLAYBACK_ACTIVE_ONLY_FOCUS": &c.Playback.ActiveOnlyFocus,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*float64{
		"PLAYBACK_TRACING_SAMPLE_RATIO": &c.Tracing.SampleRatio,
		"PLAYBACK_TICKS_PER_SECOND":     &c.Playback.TicksPerSecond,
		"PLAYBACK_TILES_RATE":           &c.Tiles.Rate,
	} {
		if err := float(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Logger builds a logger from the log section.
func (c Config) Logger() logging.Logger {
	return logging.New(logging.Config{Level: c.Log.Level, Format: c.Log.Format})
}

// TracingOptions converts the tracing section for observability.InitTracing.
func (c Config) TracingOptions() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
