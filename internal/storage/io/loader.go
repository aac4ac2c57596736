package io

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/convq/internal/model"
)

// SettingsYAMLRepository loads convq settings from YAML files.
type SettingsYAMLRepository struct {
	fs fs.FS
}

// NewSettingsYAMLRepository creates a new YAML settings repository.
func NewSettingsYAMLRepository(filesystem fs.FS) *SettingsYAMLRepository {
	return &SettingsYAMLRepository{fs: filesystem}
}

// GetSettings loads the settings from a YAML file and returns a validated domain model.
func (r *SettingsYAMLRepository) GetSettings(ctx context.Context, path string) (model.Settings, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Settings{}, fmt.Errorf("reading settings file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Settings{}, ctx.Err()
	}

	var s SettingsFile
	if err := yaml.Unmarshal(data, &s); err != nil {
		return model.Settings{}, fmt.Errorf("parsing YAML: %w", err)
	}

	settings, err := s.toModel()
	if err != nil {
		return model.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}

	return settings, nil
}

// SettingsFile represents the YAML structure of the settings file.
type SettingsFile struct {
	BackendURL        string  `yaml:"backend_url"`
	PollInterval      string  `yaml:"poll_interval"`
	DismissDelay      string  `yaml:"dismiss_delay"`
	HistoryLimit      int     `yaml:"history_limit"`
	RequestTimeout    string  `yaml:"request_timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

func (s SettingsFile) toModel() (model.Settings, error) {
	if s.BackendURL != "" {
		u, err := url.Parse(s.BackendURL)
		if err != nil {
			return model.Settings{}, fmt.Errorf("backend_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return model.Settings{}, fmt.Errorf("backend_url must be http or https, got: %q", s.BackendURL)
		}
	}
	if s.HistoryLimit < 0 {
		return model.Settings{}, fmt.Errorf("history_limit must be positive, got: %d", s.HistoryLimit)
	}
	if s.RequestsPerSecond < 0 {
		return model.Settings{}, fmt.Errorf("requests_per_second must be positive, got: %v", s.RequestsPerSecond)
	}

	pollInterval, err := parseDuration("poll_interval", s.PollInterval)
	if err != nil {
		return model.Settings{}, err
	}
	dismissDelay, err := parseDuration("dismiss_delay", s.DismissDelay)
	if err != nil {
		return model.Settings{}, err
	}
	requestTimeout, err := parseDuration("request_timeout", s.RequestTimeout)
	if err != nil {
		return model.Settings{}, err
	}

	return model.Settings{
		BackendURL:        s.BackendURL,
		PollInterval:      pollInterval,
		DismissDelay:      dismissDelay,
		HistoryLimit:      s.HistoryLimit,
		RequestTimeout:    requestTimeout,
		RequestsPerSecond: s.RequestsPerSecond,
	}, nil
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got: %s", field, v)
	}
	return d, nil
}
