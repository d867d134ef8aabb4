package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFilename is the default configuration filename.
const DefaultConfigFilename = "stack.yaml"

// Environment variables that override the trust settings, so CI specific
// values can stay out of the committed stack file.
const (
	EnvSubjectPattern = "CDK_TRUST_SUBJECT_PATTERN"
	EnvThumbprints    = "CDK_TRUST_THUMBPRINTS"
	EnvAccount        = "CDK_DEFAULT_ACCOUNT"
	EnvRegion         = "CDK_DEFAULT_REGION"
)

// LoadFile reads a stack file, applies a sibling .env file and the process
// environment, fills defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg, err := LoadFileWithoutValidation(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFileWithoutValidation loads and defaults a stack file without
// validating it.
func LoadFileWithoutValidation(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	env, err := readEnv(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg, env)
	cfg.ApplyDefaults()

	return cfg, nil
}

// LoadFromBytes parses, defaults and validates a stack definition. Only the
// process environment is consulted.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg, processEnv())
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// parseConfig decodes YAML strictly: unknown keys are errors.
func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// readEnv merges an optional dotenv file under the process environment.
// Process variables win.
func readEnv(path string) (map[string]string, error) {
	env := make(map[string]string)
	if _, err := os.Stat(path); err == nil {
		fileEnv, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for k, v := range processEnv() {
		env[k] = v
	}
	return env, nil
}

func processEnv() map[string]string {
	env := make(map[string]string)
	for _, key := range []string{EnvSubjectPattern, EnvThumbprints, EnvAccount, EnvRegion} {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			env[key] = v
		}
	}
	return env
}

func applyEnv(cfg *Config, env map[string]string) {
	if v := env[EnvSubjectPattern]; v != "" {
		cfg.Trust.SubjectPattern = v
	}
	if v := env[EnvThumbprints]; v != "" {
		var prints []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				prints = append(prints, p)
			}
		}
		cfg.Trust.Thumbprints = prints
	}
	if v := env[EnvAccount]; v != "" && cfg.Account == "" {
		cfg.Account = v
	}
	if v := env[EnvRegion]; v != "" && cfg.Region == "" {
		cfg.Region = v
	}
}

// FindConfigFile searches the current directory and its parents for
// stack.yaml.
func FindConfigFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := cwd
	for {
		path := filepath.Join(dir, DefaultConfigFilename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("config file %s not found", DefaultConfigFilename)
}

// Save writes a configuration to a file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// UserData returns the bootstrap payload, reading user_data_file relative to
// baseDir when set.
func (c *Config) UserData(baseDir string) (string, error) {
	if c.Fleet.UserDataFile == "" {
		return c.Fleet.UserData, nil
	}
	path := c.Fleet.UserDataFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read user data: %w", err)
	}
	return string(data), nil
}
