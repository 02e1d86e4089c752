package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML layout. Durations are strings in Go duration
// syntax ("90s", "5m") so the file stays hand-editable.
type File struct {
	App struct {
		Name     string `yaml:"name"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		BaseURL     string `yaml:"base_url"`
		BasePath    string `yaml:"base_path"`
		HTTPTimeout string `yaml:"http_timeout"`
	} `yaml:"server"`

	Session struct {
		CheckInterval string `yaml:"check_interval"`
		WarningBuffer string `yaml:"warning_buffer"`
		RefreshBuffer string `yaml:"refresh_buffer"`
	} `yaml:"session"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Channel struct {
		Name string `yaml:"name"`
	} `yaml:"channel"`

	Dev struct {
		Listen     string `yaml:"listen"`
		SigningKey string `yaml:"signing_key"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"dev"`
}

// DefaultConfigPath is where the portal CLI looks for its config file.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".easybase", "portal.yaml")
}

// LoadFile reads and parses the YAML config at path. "" means the default
// location. A missing file returns nil without error; every setting then
// falls back to env vars and defaults.
func LoadFile(path string) (*File, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[LoadFile] read config: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("[LoadFile] parse config: %w", err)
	}
	return &file, nil
}
