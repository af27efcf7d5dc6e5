package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: Config{
				MPD:       MPDConfig{Host: "localhost", Port: 6600},
				Tracker:   TrackerConfig{EndToleranceMs: 1000},
				AutoQueue: AutoQueueConfig{Items: 20},
				Library:   LibraryConfig{Directory: "/music"},
			},
			wantErr: false,
		},
		{
			name: "missing library directory",
			config: Config{
				MPD:     MPDConfig{Host: "localhost", Port: 6600},
				Tracker: TrackerConfig{EndToleranceMs: 1000},
			},
			wantErr: true,
			errMsg:  "Directory",
		},
		{
			name: "port out of range",
			config: Config{
				MPD:     MPDConfig{Host: "localhost", Port: 70000},
				Tracker: TrackerConfig{EndToleranceMs: 1000},
				Library: LibraryConfig{Directory: "/music"},
			},
			wantErr: true,
			errMsg:  "Port",
		},
		{
			name: "zero end tolerance",
			config: Config{
				MPD:     MPDConfig{Host: "localhost", Port: 6600},
				Tracker: TrackerConfig{EndToleranceMs: 0},
				Library: LibraryConfig{Directory: "/music"},
			},
			wantErr: true,
			errMsg:  "EndToleranceMs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestConfig_OverrideFromEnv(t *testing.T) {
	t.Setenv("MPD_HOST", "example.com")
	t.Setenv("MPD_PORT", "7700")
	t.Setenv("MPD_PASSWORD", "secret")

	cfg := &Config{}
	cfg.overrideFromEnv()

	assert.Equal(t, "example.com", cfg.MPD.Host)
	assert.Equal(t, 7700, cfg.MPD.Port)
	assert.Equal(t, "secret", cfg.MPD.Password)
}

func TestConfig_OverrideFromEnv_IgnoresInvalidPort(t *testing.T) {
	t.Setenv("MPD_PORT", "not-a-number")

	cfg := &Config{MPD: MPDConfig{Port: 6600}}
	cfg.overrideFromEnv()

	assert.Equal(t, 6600, cfg.MPD.Port)
}

func TestTrackerConfig_DurationHelpers(t *testing.T) {
	tc := TrackerConfig{PlayTime: 240, SkipTime: 20, EndToleranceMs: 1000}

	assert.Equal(t, 240_000_000_000, int(tc.PlayTimeCap()))
	assert.Equal(t, 20_000_000_000, int(tc.SkipTimeFloor()))
	assert.Equal(t, 1_000_000_000, int(tc.EndTolerance()))
}
