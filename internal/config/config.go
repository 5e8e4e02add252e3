package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	Athlete  AthleteConfig  `json:"athlete"`
	Recorder RecorderConfig `json:"recorder"`
}

// AthleteConfig holds athlete-specific thresholds
type AthleteConfig struct {
	FTP         int     `json:"ftp"`          // watts
	ThresholdHR int     `json:"threshold_hr"` // bpm
	MaxHR       int     `json:"max_hr"`
	RestingHR   int     `json:"resting_hr"`
	Weight      float64 `json:"weight"` // kg
}

// RecorderConfig holds recording and adherence tuning
type RecorderConfig struct {
	NPWindowSeconds  int     `json:"np_window_seconds"`
	TolerancePercent float64 `json:"tolerance_percent"` // adherence band, e.g. 5
	AscentEpsilon    float64 `json:"ascent_epsilon"`    // meters
	SnapshotSeconds  int     `json:"snapshot_seconds"`
	DataDir          string  `json:"data_dir"` // empty = ~/.trainlog
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Athlete: AthleteConfig{
			FTP:         200,
			ThresholdHR: 165,
			MaxHR:       185,
			RestingHR:   50,
			Weight:      70,
		},
		Recorder: RecorderConfig{
			NPWindowSeconds:  30,
			TolerancePercent: 5,
			AscentEpsilon:    1.0,
			SnapshotSeconds:  1,
		},
	}
}

// Load reads the configuration from ~/.trainlog/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for missing values
	defaults := DefaultConfig()
	if cfg.Athlete.MaxHR == 0 {
		cfg.Athlete.MaxHR = defaults.Athlete.MaxHR
	}
	if cfg.Athlete.RestingHR == 0 {
		cfg.Athlete.RestingHR = defaults.Athlete.RestingHR
	}
	if cfg.Athlete.Weight == 0 {
		cfg.Athlete.Weight = defaults.Athlete.Weight
	}
	if cfg.Recorder.NPWindowSeconds == 0 {
		cfg.Recorder.NPWindowSeconds = defaults.Recorder.NPWindowSeconds
	}
	if cfg.Recorder.TolerancePercent == 0 {
		cfg.Recorder.TolerancePercent = defaults.Recorder.TolerancePercent
	}
	if cfg.Recorder.AscentEpsilon == 0 {
		cfg.Recorder.AscentEpsilon = defaults.Recorder.AscentEpsilon
	}
	if cfg.Recorder.SnapshotSeconds == 0 {
		cfg.Recorder.SnapshotSeconds = defaults.Recorder.SnapshotSeconds
	}

	return &cfg, nil
}

// Save writes the configuration to ~/.trainlog/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	return Save(&example)
}

// Validate checks if the config has usable values
func (c *Config) Validate() error {
	if c.Athlete.FTP < 0 {
		return fmt.Errorf("athlete.ftp must not be negative, got %d", c.Athlete.FTP)
	}
	if c.Athlete.ThresholdHR > 0 && c.Athlete.MaxHR > 0 && c.Athlete.ThresholdHR >= c.Athlete.MaxHR {
		return fmt.Errorf("athlete.threshold_hr (%d) must be less than athlete.max_hr (%d)", c.Athlete.ThresholdHR, c.Athlete.MaxHR)
	}
	if c.Recorder.TolerancePercent < 0 || c.Recorder.TolerancePercent > 50 {
		return fmt.Errorf("recorder.tolerance_percent must be within 0..50, got %v", c.Recorder.TolerancePercent)
	}
	if c.Recorder.NPWindowSeconds < 0 {
		return fmt.Errorf("recorder.np_window_seconds must not be negative, got %d", c.Recorder.NPWindowSeconds)
	}
	return nil
}

// DataDir resolves the sample-store directory, defaulting to
// ~/.trainlog.
func (c *Config) DataDir() (string, error) {
	if c.Recorder.DataDir != "" {
		return c.Recorder.DataDir, nil
	}
	return GetConfigDir()
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".trainlog", "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".trainlog"), nil
}
