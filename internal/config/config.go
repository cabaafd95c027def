// Package config resolves runtime configuration from the environment.
// Settings are never persisted to disk; the UI layer owns user preferences.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable the startup core needs. All values come from
// TTS_* environment variables with sensible defaults.
type Config struct {
	// ResourcesDir is the root of bundled platform binaries, laid out as
	// resources/<platform>/<arch>/<binary>.
	ResourcesDir string `env:"TTS_RESOURCES_DIR" envDefault:"resources"`

	// ProbeTimeout bounds one encoder version check. Independent from the
	// enumeration timeout and from the retry backoff delay.
	ProbeTimeout time.Duration `env:"TTS_PROBE_TIMEOUT" envDefault:"5s"`

	// EnumerationTimeout bounds one voice listing invocation.
	EnumerationTimeout time.Duration `env:"TTS_ENUMERATION_TIMEOUT" envDefault:"10s"`

	// MaxLoadAttempts caps the automatic voice-load retry sequence.
	MaxLoadAttempts int `env:"TTS_MAX_LOAD_ATTEMPTS" envDefault:"3"`

	// MaxChunkLength is the synthesis engine input-length limit in runes.
	MaxChunkLength int `env:"TTS_MAX_CHUNK_LENGTH" envDefault:"3000"`

	// OutputDir overrides the computed default output folder when set.
	OutputDir string `env:"TTS_OUTPUT_DIR"`

	// Locale overrides the default-voice locale heuristic when set.
	Locale string `env:"TTS_LOCALE"`
}

// Load parses the environment and fills computed defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.ProbeTimeout <= 0 {
		return Config{}, fmt.Errorf("probe timeout must be positive, got %s", cfg.ProbeTimeout)
	}
	if cfg.EnumerationTimeout <= 0 {
		return Config{}, fmt.Errorf("enumeration timeout must be positive, got %s", cfg.EnumerationTimeout)
	}
	if cfg.MaxLoadAttempts <= 0 {
		return Config{}, fmt.Errorf("max load attempts must be positive, got %d", cfg.MaxLoadAttempts)
	}
	if cfg.MaxChunkLength <= 0 {
		return Config{}, fmt.Errorf("max chunk length must be positive, got %d", cfg.MaxChunkLength)
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir()
	}
	return cfg, nil
}

// defaultOutputDir is the home-relative fallback used until the user picks
// an output folder.
func defaultOutputDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, "Documents", "Text to Speech")
}
