// Package session implements the session lifecycle: submitting editor-server
// jobs, deriving live session state from the scheduler, and requesting
// cancellation. Sessions are never persisted authoritatively; they are
// re-derived from scheduler queries plus the address each job recorded.
package session

import (
	"time"

	"github.com/grovetools/hpcode/pkg/slurm"
)

// Record is the per-session bookkeeping written by the CLI once a job's
// address is known. The scheduler remains the source of truth for lifecycle
// state; the record only carries what the scheduler cannot report.
type Record struct {
	JobName   string    `yaml:"job_name"`
	Partition string    `yaml:"partition"`
	Node      string    `yaml:"node"`
	URL       string    `yaml:"url"`
	Submitted time.Time `yaml:"submitted,omitempty"`
}

// View is one row of `hpcode list`: live scheduler state correlated with the
// recorded address.
type View struct {
	JobID     string `json:"job_id"`
	Name      string `json:"name"`
	Partition string `json:"partition"`
	Node      string `json:"node"`
	State     string `json:"state"`
	URL       string `json:"url"`
}

// StateStarting is reported for a session whose job exists but whose address
// has not been recorded yet. Such sessions are listed, never omitted.
const StateStarting = "starting"

// StateRunning is reported once the address is known.
const StateRunning = "running"

// StatePending is reported while the job waits for an allocation.
const StatePending = "pending"

// viewState maps scheduler state plus address knowledge onto the user-facing
// session state.
func viewState(job slurm.Job, url string) string {
	switch job.State {
	case slurm.StatePending:
		return StatePending
	case slurm.StateRunning:
		if url == "" {
			return StateStarting
		}
		return StateRunning
	default:
		return string(job.State)
	}
}
