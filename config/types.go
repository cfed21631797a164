package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// SlurmConfig locates the scheduler client binaries. When BinDir is empty the
// binaries are resolved from PATH.
type SlurmConfig struct {
	BinDir string `yaml:"bin_dir,omitempty" json:"bin_dir,omitempty" jsonschema:"description=Directory containing sbatch/sacct/scancel (empty: resolve from PATH)"`
	// WarnSeconds is forwarded as `--signal B:SIGTERM@<n>` so the batch shell
	// receives SIGTERM this many seconds before the walltime limit.
	WarnSeconds int `yaml:"warn_seconds,omitempty" json:"warn_seconds,omitempty" jsonschema:"description=Seconds before the time limit at which the scheduler signals the job"`
}

// PortsConfig describes the reserved port range for editor servers and the
// allocation policy applied inside the job.
type PortsConfig struct {
	Min int `yaml:"min" json:"min" jsonschema:"description=Lowest candidate port (inclusive)"`
	Max int `yaml:"max" json:"max" jsonschema:"description=Highest candidate port (inclusive)"`
	// Policy selects how an allocated port is claimed: "pick-once" trusts the
	// scan, "probe" additionally bind-checks the candidate before use.
	Policy      string `yaml:"policy,omitempty" json:"policy,omitempty" jsonschema:"description=Allocation policy: pick-once or probe,enum=pick-once,enum=probe"`
	MaxAttempts int    `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty" jsonschema:"description=Bounded retries when a probed port loses the bind race"`
}

// ServerConfig describes the editor server started inside the job.
type ServerConfig struct {
	Binary string `yaml:"binary,omitempty" json:"binary,omitempty" jsonschema:"description=Editor server executable name or path"`
	// Module is loaded with the cluster's environment-module system before
	// the server starts.
	Module       string   `yaml:"module,omitempty" json:"module,omitempty" jsonschema:"description=Environment module providing the editor server"`
	ExtraArgs    []string `yaml:"extra_args,omitempty" json:"extra_args,omitempty" jsonschema:"description=Additional arguments appended to the server command line"`
	GraceSeconds int      `yaml:"grace_seconds,omitempty" json:"grace_seconds,omitempty" jsonschema:"description=Upper bound in seconds for graceful shutdown after a termination signal"`
}

// SessionConfig groups session bookkeeping settings.
type SessionConfig struct {
	StoreDir string `yaml:"store_dir,omitempty" json:"store_dir,omitempty" jsonschema:"description=Directory holding per-session YAML records (default ~/.hpcode/sessions)"`
	JobName  string `yaml:"job_name,omitempty" json:"job_name,omitempty" jsonschema:"description=Default scheduler job name for sessions"`
}

// PartitionLimits caps a resource request against a scheduler partition and
// carries the QOS submitted with it.
type PartitionLimits struct {
	CPUs      int    `yaml:"cpus" json:"cpus" jsonschema:"description=Maximum CPUs per session"`
	MemGB     int    `yaml:"mem_gb" json:"mem_gb" jsonschema:"description=Maximum memory in GB per session"`
	GPUs      int    `yaml:"gpus" json:"gpus" jsonschema:"description=Maximum GPUs per session"`
	TimeHours int    `yaml:"time_hours" json:"time_hours" jsonschema:"description=Maximum walltime in hours per session"`
	QOS       string `yaml:"qos" json:"qos" jsonschema:"description=QOS submitted for this partition"`
}

// Config is the top-level hpcode.yml structure.
type Config struct {
	Version string `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Configuration format version"`

	Slurm      SlurmConfig                `yaml:"slurm,omitempty" json:"slurm,omitempty" jsonschema:"description=Scheduler client settings"`
	Ports      PortsConfig                `yaml:"ports,omitempty" json:"ports,omitempty" jsonschema:"description=Reserved port range and allocation policy"`
	Server     ServerConfig               `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"description=Editor server settings"`
	Session    SessionConfig              `yaml:"session,omitempty" json:"session,omitempty" jsonschema:"description=Session bookkeeping settings"`
	Partitions map[string]PartitionLimits `yaml:"partitions,omitempty" json:"partitions,omitempty" jsonschema:"description=Per-partition resource limits"`
	// DefaultPartition is used when `start` is invoked without --partition.
	DefaultPartition string `yaml:"default_partition,omitempty" json:"default_partition,omitempty" jsonschema:"description=Partition used when none is requested"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" json:"-" jsonschema:"-"`
}

// UnmarshalYAML implements custom YAML unmarshaling so unknown top-level keys
// land in Extensions instead of failing the load.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig struct {
		Version          string                     `yaml:"version,omitempty" json:"version,omitempty"`
		Slurm            SlurmConfig                `yaml:"slurm,omitempty" json:"slurm,omitempty"`
		Ports            PortsConfig                `yaml:"ports,omitempty" json:"ports,omitempty"`
		Server           ServerConfig               `yaml:"server,omitempty" json:"server,omitempty"`
		Session          SessionConfig              `yaml:"session,omitempty" json:"session,omitempty"`
		Partitions       map[string]PartitionLimits `yaml:"partitions,omitempty" json:"partitions,omitempty"`
		DefaultPartition string                     `yaml:"default_partition,omitempty" json:"default_partition,omitempty"`
		Extensions       map[string]interface{}     `yaml:",inline"`
	}

	var raw rawConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}

	c.Version = raw.Version
	c.Slurm = raw.Slurm
	c.Ports = raw.Ports
	c.Server = raw.Server
	c.Session = raw.Session
	c.Partitions = raw.Partitions
	c.DefaultPartition = raw.DefaultPartition
	c.Extensions = raw.Extensions

	return nil
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded hpcode.yml into the provided target struct. The target must be a
// pointer. This provides a type-safe way for companion tooling to access its
// custom configuration sections.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	// Use mapstructure to decode the generic map[string]interface{}
	// into the strongly-typed target struct. We configure it to use
	// `yaml` tags for consistency.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
