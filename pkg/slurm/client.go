package slurm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/grovetools/hpcode/command"
	"github.com/grovetools/hpcode/errors"
)

// sacctFields is the fixed --format column list; parseJob depends on the order.
const sacctFields = "JobID,JobName,Partition,State,NodeList,User"

// Client wraps the Slurm user commands. All methods surface scheduler
// rejections as structured errors carrying the scheduler's own stderr.
type Client struct {
	sbatch  string
	sacct   string
	scancel string
	exec    command.Executor
}

// NewClient creates a Client. binDir may be empty, in which case the
// binaries are resolved from PATH.
func NewClient(binDir string) *Client {
	return NewClientWithExecutor(binDir, &command.RealExecutor{})
}

// NewClientWithExecutor creates a Client with a custom Executor for tests.
func NewClientWithExecutor(binDir string, exec command.Executor) *Client {
	bin := func(name string) string {
		if binDir == "" {
			return name
		}
		return filepath.Join(binDir, name)
	}
	return &Client{
		sbatch:  bin("sbatch"),
		sacct:   bin("sacct"),
		scancel: bin("scancel"),
		exec:    exec,
	}
}

// Submit submits the job script and returns the scheduler-assigned job ID.
// --parsable makes sbatch print the bare ID; --signal asks the scheduler to
// deliver SIGTERM to the batch shell ahead of the walltime limit so the
// in-job relay can shut the server down cleanly.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := command.ValidateJobName(req.JobName); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid job name")
	}
	if err := command.ValidatePartition(req.Partition); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid partition")
	}

	args := []string{
		"--job-name", req.JobName,
		"--output", req.OutputPath,
		"--partition", req.Partition,
		"--qos", req.QOS,
		"--ntasks", "1",
		"--cpus-per-task", fmt.Sprintf("%d", req.CPUs),
		"--mem", fmt.Sprintf("%dG", req.MemGB),
		"--time", fmt.Sprintf("%d:00:00", req.TimeHours),
		"--signal", fmt.Sprintf("B:SIGTERM@%d", req.WarnSeconds),
	}
	// Only request GPUs when asked for; `--gres gpu:0` is rejected on
	// CPU-only partitions.
	if req.GPUs > 0 {
		args = append(args, "--gres", fmt.Sprintf("gpu:%d", req.GPUs))
	}
	args = append(args, "--parsable", req.ScriptPath)

	stdout, stderr, err := c.run(ctx, c.sbatch, args...)
	if err != nil {
		return "", errors.SubmissionFailed(rejectionReason(stderr, err), err)
	}

	jobID := strings.TrimSpace(stdout)
	// --parsable may emit "jobid;cluster"
	if i := strings.IndexByte(jobID, ';'); i >= 0 {
		jobID = jobID[:i]
	}
	if err := command.ValidateJobID(jobID); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSubmissionFailed,
			fmt.Sprintf("sbatch returned an unexpected job id: %q", jobID))
	}
	return jobID, nil
}

// Job queries sacct for a single job. An empty result (the job is not yet
// visible in accounting) returns ok=false with no error; callers poll.
func (c *Client) Job(ctx context.Context, jobID string) (Job, bool, error) {
	if err := command.ValidateJobID(jobID); err != nil {
		return Job{}, false, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid job id")
	}

	stdout, stderr, err := c.run(ctx, c.sacct,
		"-PXn", "--format", sacctFields, "-j", jobID)
	if err != nil {
		return Job{}, false, errors.SchedulerFailed("sacct", err).
			WithDetail("stderr", strings.TrimSpace(stderr))
	}

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		// sacct briefly reports placeholder allocation rows before the job
		// record proper appears
		if line == "" || strings.HasPrefix(line, "allocation") {
			continue
		}
		j, perr := parseJob(line)
		if perr != nil {
			return Job{}, false, perr
		}
		return j, true, nil
	}
	return Job{}, false, nil
}

// UserJobs lists the user's jobs whose name matches namePrefix, in
// scheduler-reported submission order. Completed jobs are included; callers
// filter on State as needed.
func (c *Client) UserJobs(ctx context.Context, user, namePrefix string) ([]Job, error) {
	stdout, stderr, err := c.run(ctx, c.sacct,
		"-PXn", "--format", sacctFields, "-u", user)
	if err != nil {
		return nil, errors.SchedulerFailed("sacct", err).
			WithDetail("stderr", strings.TrimSpace(stderr))
	}

	var jobs []Job
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "allocation") {
			continue
		}
		j, perr := parseJob(line)
		if perr != nil {
			return nil, perr
		}
		if namePrefix != "" && !strings.HasPrefix(j.Name, namePrefix) {
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Cancel requests cancellation of a job. `-b -s TERM` signals only the batch
// shell with SIGTERM, giving the in-job relay its graceful-shutdown window
// instead of killing the whole step tree outright.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	if err := command.ValidateJobID(jobID); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid job id")
	}

	_, stderr, err := c.run(ctx, c.scancel, "-b", "-s", "TERM", jobID)
	if err != nil {
		return errors.SchedulerFailed("scancel", err).
			WithDetail("stderr", strings.TrimSpace(stderr))
	}
	return nil
}

func (c *Client) run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := c.exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// parseJob splits one pipe-delimited sacct line in sacctFields order.
func parseJob(line string) (Job, error) {
	fields := strings.Split(line, "|")
	if len(fields) < 6 {
		return Job{}, errors.New(errors.ErrCodeSchedulerFailed,
			fmt.Sprintf("malformed sacct record: %q", line))
	}
	return Job{
		ID:        fields[0],
		Name:      fields[1],
		Partition: fields[2],
		State:     ParseState(fields[3]),
		Node:      fields[4],
		User:      fields[5],
	}, nil
}

// rejectionReason extracts a human-readable reason from sbatch stderr, falling
// back to the exec error.
func rejectionReason(stderr string, err error) string {
	reason := strings.TrimSpace(stderr)
	if reason == "" {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			reason = strings.TrimSpace(string(exitErr.Stderr))
		}
	}
	if reason == "" {
		reason = err.Error()
	}
	// sbatch prefixes errors with its own name
	reason = strings.TrimPrefix(reason, "sbatch: error: ")
	return reason
}
