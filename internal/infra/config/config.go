// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	MPD       MPDConfig       `yaml:"mpd"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	AutoQueue AutoQueueConfig `yaml:"auto_queue"`
	Library   LibraryConfig   `yaml:"library"`
	Log       LogConfig       `yaml:"log"`
}

// MPDConfig represents MPD connection configuration.
type MPDConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6600" validate:"gt=0,lte=65535"`
	Password string `yaml:"password"`
}

// TrackerConfig represents playback-tracker threshold configuration.
type TrackerConfig struct {
	PlayTime    int     `yaml:"play_time" default:"240" validate:"gte=0"`
	PlayPercent float64 `yaml:"play_percent" default:"0.5" validate:"gte=0,lte=1"`
	SkipTime    int     `yaml:"skip_time" default:"20" validate:"gte=0"`
	SkipPercent float64 `yaml:"skip_percent" default:"0" validate:"gte=0,lte=1"`

	// EndToleranceMs is the "near expected end" wall-clock slack used to
	// disambiguate Replay from Seek and PlaylistEnd from Stop. The plugin
	// this was adapted from hard-codes this at one second; this repo
	// exposes it as a config knob instead.
	EndToleranceMs int `yaml:"end_tolerance_ms" default:"1000" validate:"gt=0"`
}

// AutoQueueConfig represents auto-queue configuration.
type AutoQueueConfig struct {
	Items int  `yaml:"items" default:"20" validate:"gt=0"`
	Album bool `yaml:"album"`
}

// LibraryConfig represents music-library configuration.
type LibraryConfig struct {
	Directory  string `yaml:"directory" validate:"required"`
	TimeFormat string `yaml:"time_format" default:"2006-01-02 15:04:05"`
	DBPath     string `yaml:"db_path" default:"library.db"`
}

// LogConfig represents logger configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info"`
	File   string `yaml:"file"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for the MPD
// connection fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("MPD_HOST"); v != "" {
		c.MPD.Host = v
	}
	if v := os.Getenv("MPD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MPD.Port = port
		}
	}
	if v := os.Getenv("MPD_PASSWORD"); v != "" {
		c.MPD.Password = v
	}
}

// Validate validates the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// EndTolerance returns the configured "near expected end" tolerance.
func (c TrackerConfig) EndTolerance() time.Duration {
	return time.Duration(c.EndToleranceMs) * time.Millisecond
}

// PlayTimeCap returns the play-time cap as a time.Duration.
func (c TrackerConfig) PlayTimeCap() time.Duration {
	return time.Duration(c.PlayTime) * time.Second
}

// SkipTimeFloor returns the skip-time floor as a time.Duration.
func (c TrackerConfig) SkipTimeFloor() time.Duration {
	return time.Duration(c.SkipTime) * time.Second
}
