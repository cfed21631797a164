// Package slurm is a thin client for the external Slurm scheduler. It shells
// out to sbatch, sacct and scancel; the scheduler itself owns queuing,
// allocation and signal delivery.
package slurm

import "strings"

// JobState is the scheduler-reported lifecycle state of a job.
type JobState string

const (
	StatePending   JobState = "PENDING"
	StateRunning   JobState = "RUNNING"
	StateCompleted JobState = "COMPLETED"
	StateCancelled JobState = "CANCELLED"
	StateFailed    JobState = "FAILED"
	StateTimeout   JobState = "TIMEOUT"
)

// ParseState normalizes a raw sacct State field. Cancelled jobs are reported
// as "CANCELLED by <uid>", and array/requeue suffixes may appear; only the
// leading token matters here.
func ParseState(raw string) JobState {
	token := raw
	if i := strings.IndexAny(raw, " +"); i >= 0 {
		token = raw[:i]
	}
	return JobState(strings.ToUpper(token))
}

// Active reports whether the job still occupies or awaits a slot.
func (s JobState) Active() bool {
	return s == StatePending || s == StateRunning
}

// Job is one sacct record for a job owned by the querying user.
type Job struct {
	ID        string
	Name      string
	Partition string
	State     JobState
	Node      string
	User      string
}

// SubmitRequest carries everything needed to compose an sbatch call.
type SubmitRequest struct {
	JobName     string
	Partition   string
	QOS         string
	CPUs        int
	MemGB       int
	GPUs        int
	TimeHours   int
	OutputPath  string // job stdout, captured for address discovery
	ScriptPath  string // self-contained startup payload
	WarnSeconds int    // --signal B:SIGTERM@<n>
}
