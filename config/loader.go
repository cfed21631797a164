package config

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/grovetools/hpcode/errors"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// ConfigFileName is the canonical configuration file name.
const ConfigFileName = "hpcode.yml"

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration data, expands ${ENV} references, applies
// defaults and validates the result.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault finds and loads the configuration, falling back to built-in
// defaults when no file exists. Lookup order:
// 1. $HPCODE_CONFIG
// 2. ~/.config/hpcode/hpcode.yml
// 3. ~/.hpcode/hpcode.yml
func LoadDefault() (*Config, error) {
	path := FindConfigFile()
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// FindConfigFile returns the first existing configuration file path, or empty
// when none is found.
func FindConfigFile() string {
	if p := os.Getenv("HPCODE_CONFIG"); p != "" {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	candidates := []string{
		filepath.Join(home, ".config", "hpcode", ConfigFileName),
		filepath.Join(home, ".hpcode", ConfigFileName),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// expandEnvVars replaces ${VAR} references with environment values. Unset
// variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRegex.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// Validate performs semantic checks that the schema cannot express.
func (c *Config) Validate() error {
	if c.Ports.Min > c.Ports.Max {
		return errors.ConfigInvalid("ports.min must not exceed ports.max")
	}
	if c.Ports.Min < 1024 || c.Ports.Max > 65535 {
		return errors.ConfigInvalid("port range must lie within 1024-65535")
	}
	switch c.Ports.Policy {
	case "pick-once", "probe":
	default:
		return errors.ConfigInvalid("ports.policy must be 'pick-once' or 'probe'")
	}
	if c.Ports.MaxAttempts < 1 {
		return errors.ConfigInvalid("ports.max_attempts must be at least 1")
	}
	if c.Server.GraceSeconds < 1 {
		return errors.ConfigInvalid("server.grace_seconds must be at least 1")
	}
	if _, ok := c.Partitions[c.DefaultPartition]; !ok {
		return errors.ConfigInvalid("default_partition does not name a configured partition")
	}
	for name, p := range c.Partitions {
		if p.CPUs < 1 || p.MemGB < 1 || p.TimeHours < 1 {
			return errors.ConfigInvalid("partition '" + name + "' limits must be positive")
		}
		if p.GPUs < 0 {
			return errors.ConfigInvalid("partition '" + name + "' gpu limit must not be negative")
		}
	}
	return nil
}
