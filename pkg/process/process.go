// Package process holds small pid-level helpers used by the in-job agent.
package process

import (
	"os"
	"syscall"
)

// IsProcessAlive reports whether a process with the given pid exists. Signal
// 0 probes existence without delivering anything; EPERM still means the
// process is there, just owned by someone else.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}
