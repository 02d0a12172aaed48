package runtimeconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values, so credentials can stay
// out of the config file.
const (
	EnvSourceURL       = "PAGESYNC_SOURCE_URL"
	EnvWordPressDomain = "PAGESYNC_WORDPRESS_DOMAIN"
	EnvUsername        = "PAGESYNC_USERNAME"
	EnvAPIKey          = "PAGESYNC_APIKEY"
)

// Load reads the config file at path, layering it over DefaultConfig and the
// environment overrides, and validates the result. Files ending in .yaml or
// .yml are read as YAML, everything else as JSON.
func Load(path string) (Config, error) {
	cfg, err := ParseFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseFile is Load without the final Validate, for commands that only need
// part of the configuration.
func ParseFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configError(fmt.Errorf("pagesync config: read %s: %w", path, err))
	}
	cfg, err := Parse(data, formatFor(path))
	if err != nil {
		return Config{}, err
	}
	return cfg.WithEnv(os.LookupEnv), nil
}

// Parse decodes data in the given format ("json" or "yaml") over the
// defaults. It checks structure but not required fields; call Validate.
func Parse(data []byte, format string) (Config, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if strings.EqualFold(format, "yaml") {
		converted, err := yamlToJSON(data)
		if err != nil {
			return Config{}, err
		}
		data = converted
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}

	if err := checkStructure(data); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, configError(fmt.Errorf("pagesync config: decode: %w", err))
	}
	return cfg, nil
}

// WithEnv applies the PAGESYNC_* overrides found through lookup.
func (cfg Config) WithEnv(lookup func(string) (string, bool)) Config {
	if lookup == nil {
		return cfg
	}
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvSourceURL, &cfg.SourceURL},
		{EnvWordPressDomain, &cfg.WordPressDomain},
		{EnvUsername, &cfg.Username},
		{EnvAPIKey, &cfg.APIKey},
	}
	for _, override := range overrides {
		if value, ok := lookup(override.key); ok && strings.TrimSpace(value) != "" {
			*override.target = value
		}
	}
	return cfg
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var payload any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, configError(fmt.Errorf("pagesync config: decode yaml: %w", err))
	}
	if payload == nil {
		return []byte("{}"), nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, configError(fmt.Errorf("pagesync config: yaml is not representable as json: %w", err))
	}
	return encoded, nil
}
