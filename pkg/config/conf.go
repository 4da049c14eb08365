// Package config reads and writes the xray config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mchmarny/xray/pkg/judge"
	"github.com/mchmarny/xray/pkg/profile"
	"gopkg.in/yaml.v3"
)

const (
	// AppDirName is the app directory under the user home.
	AppDirName = ".xray"

	// FileName is the config file name inside the app directory.
	FileName = "config.yaml"

	dirMode  = 0700
	fileMode = 0600
)

// Judge holds the strict mode endpoint settings. The API key is never
// written to the config file.
type Judge struct {
	BaseURL     string        `yaml:"baseURL,omitempty"`
	Model       string        `yaml:"model,omitempty"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// Config represents app config object.
type Config struct {
	Profile  string                        `yaml:"profile,omitempty"`
	Rules    string                        `yaml:"rules,omitempty"`
	Workers  int                           `yaml:"workers,omitempty"`
	Judge    Judge                         `yaml:"judge"`
	Profiles map[string]map[string]float64 `yaml:"profiles,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	d := judge.DefaultConfig()
	return &Config{
		Profile: profile.Balanced,
		Judge: Judge{
			BaseURL:     d.BaseURL,
			Model:       d.Model,
			Temperature: d.Temperature,
			Timeout:     d.Timeout,
		},
	}
}

// JudgeConfig combines the file settings with apiKey. Empty settings take
// the judge defaults.
func (c *Config) JudgeConfig(apiKey string) judge.Config {
	d := judge.DefaultConfig()
	jc := judge.Config{
		BaseURL:     c.Judge.BaseURL,
		APIKey:      apiKey,
		Model:       c.Judge.Model,
		Temperature: c.Judge.Temperature,
		Timeout:     c.Judge.Timeout,
	}
	if jc.BaseURL == "" {
		jc.BaseURL = d.BaseURL
	}
	if jc.Model == "" {
		jc.Model = d.Model
	}
	if jc.Timeout <= 0 {
		jc.Timeout = d.Timeout
	}
	return jc
}

// DefaultPath is ~/.xray/config.yaml.
func DefaultPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// HomeDir returns the app directory path without creating it.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home dir: %w", err)
	}
	return filepath.Join(home, AppDirName), nil
}

// Load reads the config at path. A missing file yields the defaults; fields
// absent from the file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path required")
	}

	c := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	if strings.TrimSpace(c.Profile) == "" {
		c.Profile = profile.Balanced
	}
	return c, nil
}

// Save writes c to path, creating the parent directory.
func Save(path string, c *Config) error {
	if path == "" {
		return errors.New("config path required")
	}
	if c == nil {
		return errors.New("config required")
	}

	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("failed to create dir: %s: %w", filepath.Dir(path), err)
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file: %s: %w", path, err)
	}
	return nil
}
