package config

// Built-in partition limits. Operators override these in hpcode.yml; the
// shipped values match the cluster this tool was written for.
func defaultPartitions() map[string]PartitionLimits {
	return map[string]PartitionLimits{
		"int": {
			CPUs:      8,
			MemGB:     250,
			GPUs:      2,
			TimeHours: 16,
			QOS:       "qos_int",
		},
		"cpu": {
			CPUs:      16,
			MemGB:     250,
			GPUs:      0,
			TimeHours: 72,
			QOS:       "qos_batch",
		},
		"gpu": {
			CPUs:      56,
			MemGB:     500,
			GPUs:      4,
			TimeHours: 168,
			QOS:       "qos_batch",
		},
		"hmem": {
			CPUs:      64,
			MemGB:     4000,
			GPUs:      0,
			TimeHours: 168,
			QOS:       "qos_batch",
		},
	}
}

// ApplyDefaults fills in zero-valued fields. The range default must stay
// disjoint from ports used by other cluster services.
func (c *Config) ApplyDefaults() {
	if c.Slurm.WarnSeconds == 0 {
		c.Slurm.WarnSeconds = 60
	}
	if c.Ports.Min == 0 {
		c.Ports.Min = 44000
	}
	if c.Ports.Max == 0 {
		c.Ports.Max = 44099
	}
	if c.Ports.Policy == "" {
		c.Ports.Policy = "probe"
	}
	if c.Ports.MaxAttempts == 0 {
		c.Ports.MaxAttempts = 3
	}
	if c.Server.Binary == "" {
		c.Server.Binary = "code-server"
	}
	if c.Server.Module == "" {
		c.Server.Module = "code-server"
	}
	if c.Server.GraceSeconds == 0 {
		c.Server.GraceSeconds = 10
	}
	if c.Session.JobName == "" {
		c.Session.JobName = "vscode_server"
	}
	if len(c.Partitions) == 0 {
		c.Partitions = defaultPartitions()
	}
	if c.DefaultPartition == "" {
		c.DefaultPartition = "int"
	}
}

// Default returns a configuration with all defaults applied, used when no
// hpcode.yml exists.
func Default() *Config {
	cfg := &Config{Version: "1"}
	cfg.ApplyDefaults()
	return cfg
}
