package config

import (
	"testing"

	hperrors "github.com/grovetools/hpcode/errors"
)

func TestLoadFromBytesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("version: \"1\"\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Ports.Min != 44000 || cfg.Ports.Max != 44099 {
		t.Errorf("Expected default port range 44000-44099, got %d-%d", cfg.Ports.Min, cfg.Ports.Max)
	}
	if cfg.Server.GraceSeconds != 10 {
		t.Errorf("Expected default grace of 10s, got %d", cfg.Server.GraceSeconds)
	}
	if cfg.Session.JobName != "vscode_server" {
		t.Errorf("Expected default job name 'vscode_server', got %q", cfg.Session.JobName)
	}
	if cfg.DefaultPartition != "int" {
		t.Errorf("Expected default partition 'int', got %q", cfg.DefaultPartition)
	}
	if _, ok := cfg.Partitions["hmem"]; !ok {
		t.Error("Expected built-in partition table to include 'hmem'")
	}
}

func TestLoadFromBytesOverrides(t *testing.T) {
	yamlContent := []byte(`
version: "1"
ports:
  min: 50000
  max: 50009
  policy: pick-once
slurm:
  bin_dir: /opt/slurm/22.05.8/bin
partitions:
  debug:
    cpus: 2
    mem_gb: 8
    gpus: 0
    time_hours: 2
    qos: qos_debug
default_partition: debug
`)

	cfg, err := LoadFromBytes(yamlContent)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Ports.Min != 50000 || cfg.Ports.Max != 50009 {
		t.Errorf("Expected port range 50000-50009, got %d-%d", cfg.Ports.Min, cfg.Ports.Max)
	}
	if cfg.Ports.Policy != "pick-once" {
		t.Errorf("Expected policy pick-once, got %q", cfg.Ports.Policy)
	}
	if cfg.Slurm.BinDir != "/opt/slurm/22.05.8/bin" {
		t.Errorf("Unexpected slurm bin dir: %q", cfg.Slurm.BinDir)
	}
	if cfg.Partitions["debug"].QOS != "qos_debug" {
		t.Errorf("Expected qos_debug, got %q", cfg.Partitions["debug"].QOS)
	}
}

func TestLoadFromBytesInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"inverted range", "ports:\n  min: 44099\n  max: 44000\n"},
		{"privileged range", "ports:\n  min: 80\n  max: 90\n"},
		{"bad policy", "ports:\n  policy: optimistic\n"},
		{"unknown default partition", "default_partition: nosuch\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tc.yaml))
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !hperrors.Is(err, hperrors.ErrCodeConfigInvalid) {
				t.Errorf("Expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestExtensions(t *testing.T) {
	yamlContent := []byte(`
version: "1"

# Extension field consumed by the logging package
logging:
  level: debug
  format:
    preset: simple
`)

	cfg, err := LoadFromBytes(yamlContent)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Extensions == nil {
		t.Fatal("Extensions map should not be nil")
	}
	if _, ok := cfg.Extensions["logging"]; !ok {
		t.Fatal("Expected 'logging' extension to be present")
	}

	type formatCfg struct {
		Preset string `yaml:"preset"`
	}
	type logCfg struct {
		Level  string    `yaml:"level"`
		Format formatCfg `yaml:"format"`
	}

	var lc logCfg
	if err := cfg.UnmarshalExtension("logging", &lc); err != nil {
		t.Fatalf("Failed to unmarshal logging extension: %v", err)
	}
	if lc.Level != "debug" {
		t.Errorf("Expected level 'debug', got %q", lc.Level)
	}
	if lc.Format.Preset != "simple" {
		t.Errorf("Expected preset 'simple', got %q", lc.Format.Preset)
	}

	// Missing keys leave the target zero-valued
	var missing logCfg
	if err := cfg.UnmarshalExtension("nosuch", &missing); err != nil {
		t.Fatalf("Missing extension should not error: %v", err)
	}
	if missing.Level != "" {
		t.Error("Missing extension should leave target zero-valued")
	}
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatalf("Failed to generate schema: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Schema should not be empty")
	}
}

func TestValidateAgainstSchema(t *testing.T) {
	cfg := Default()
	if err := ValidateAgainstSchema(cfg); err != nil {
		t.Fatalf("Default config should pass schema validation: %v", err)
	}
}
