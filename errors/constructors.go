package errors

import (
	"fmt"
	"os/exec"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *HpcodeError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *HpcodeError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InvalidRequest creates a resource request validation error
func InvalidRequest(partition, reason string) *HpcodeError {
	return New(ErrCodeInvalidRequest,
		fmt.Sprintf("invalid request for partition '%s': %s", partition, reason)).
		WithDetail("partition", partition).
		WithDetail("reason", reason)
}

// PartitionUnknown creates an unknown partition error
func PartitionUnknown(partition string) *HpcodeError {
	return New(ErrCodePartitionUnknown, fmt.Sprintf("unknown partition '%s'", partition)).
		WithDetail("partition", partition)
}

// SubmissionFailed wraps a scheduler job rejection, preserving the
// scheduler's own rejection reason for display.
func SubmissionFailed(reason string, err error) *HpcodeError {
	return Wrap(err, ErrCodeSubmissionFailed, fmt.Sprintf("job submission rejected: %s", reason)).
		WithDetail("reason", reason)
}

// SchedulerFailed creates an error for a scheduler query that did not complete
func SchedulerFailed(cmd string, err error) *HpcodeError {
	hpErr := Wrap(err, ErrCodeSchedulerFailed, fmt.Sprintf("scheduler command failed: %s", cmd)).
		WithDetail("command", cmd)

	if exitErr, ok := err.(*exec.ExitError); ok {
		hpErr = hpErr.WithDetail("exitCode", exitErr.ExitCode())
		if len(exitErr.Stderr) > 0 {
			hpErr = hpErr.WithDetail("stderr", string(exitErr.Stderr))
		}
	}

	return hpErr
}

// SessionNotFound creates a session resolution error
func SessionNotFound(ref string) *HpcodeError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("no session matches '%s'", ref)).
		WithDetail("ref", ref)
}

// PermissionDenied creates an ownership error for a session action
func PermissionDenied(ref, owner string) *HpcodeError {
	return New(ErrCodePermissionDenied,
		fmt.Sprintf("session '%s' is owned by '%s'", ref, owner)).
		WithDetail("ref", ref).
		WithDetail("owner", owner)
}

// NoPortAvailable creates a port range exhaustion error
func NoPortAvailable(min, max int) *HpcodeError {
	return New(ErrCodeNoPortAvailable,
		fmt.Sprintf("no free port in range %d-%d", min, max)).
		WithDetail("min", min).
		WithDetail("max", max)
}

// ServerStartFailed wraps an editor server launch failure
func ServerStartFailed(err error) *HpcodeError {
	return Wrap(err, ErrCodeServerStartFailed, "editor server failed to start")
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *HpcodeError {
	hpErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		hpErr = hpErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return hpErr
}
