package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpcloud/tail"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/hpcode/command"
	"github.com/grovetools/hpcode/config"
	"github.com/grovetools/hpcode/errors"
	"github.com/grovetools/hpcode/logging"
	"github.com/grovetools/hpcode/pkg/script"
	"github.com/grovetools/hpcode/pkg/slurm"
)

// Scheduler is the slice of the slurm client the manager uses, separated out
// so tests can substitute a fake.
type Scheduler interface {
	Submit(ctx context.Context, req slurm.SubmitRequest) (string, error)
	Job(ctx context.Context, jobID string) (slurm.Job, bool, error)
	UserJobs(ctx context.Context, user, namePrefix string) ([]slurm.Job, error)
	Cancel(ctx context.Context, jobID string) error
}

// StartRequest is a validated-on-use resource request for a new session.
type StartRequest struct {
	Name      string
	Partition string
	CPUs      int
	MemGB     int
	GPUs      int
	TimeHours int
}

// Manager drives the session lifecycle against the external scheduler.
type Manager struct {
	scheduler Scheduler
	store     *Store
	cfg       *config.Config
	user      string
	log       *logrus.Entry

	// progress receives user-facing step lines during the start wait.
	// Defaults to io.Discard; the CLI points it at stderr unless --quiet.
	progress io.Writer

	// Seams for tests. Production values are set by NewManager.
	sleep      func(time.Duration)
	waitLine   func(ctx context.Context, path string) (string, error)
	reachable  func(url string) bool
	selfPath   func() (string, error)
	backoffMax time.Duration
	pollEvery  time.Duration
}

// NewManager wires a production manager.
func NewManager(cfg *config.Config) (*Manager, error) {
	store, err := NewStore(cfg.Session.StoreDir)
	if err != nil {
		return nil, err
	}

	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}

	return &Manager{
		scheduler:  slurm.NewClient(cfg.Slurm.BinDir),
		store:      store,
		cfg:        cfg,
		user:       u.Username,
		log:        logging.NewLogger("session"),
		progress:   io.Discard,
		sleep:      time.Sleep,
		waitLine:   tailFirstLine,
		reachable:  httpReachable,
		selfPath:   os.Executable,
		backoffMax: 60 * time.Second,
		pollEvery:  2 * time.Second,
	}, nil
}

// User returns the identity sessions are owned by.
func (m *Manager) User() string { return m.user }

// StoreDir returns the resolved session store directory.
func (m *Manager) StoreDir() string { return m.store.Dir() }

// SetProgress directs user-facing progress lines to w.
func (m *Manager) SetProgress(w io.Writer) { m.progress = w }

func (m *Manager) step(format string, args ...interface{}) {
	if m.progress == nil {
		return
	}
	fmt.Fprintf(m.progress, format+"\n", args...)
}

// validate checks the request against the configured partition limits and
// returns the partition's QOS.
func (m *Manager) validate(req *StartRequest) (string, error) {
	if req.Partition == "" {
		req.Partition = m.cfg.DefaultPartition
	}
	if req.Name == "" {
		req.Name = m.cfg.Session.JobName
	}
	if err := command.ValidateJobName(req.Name); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid session name")
	}

	limits, ok := m.cfg.Partitions[req.Partition]
	if !ok {
		return "", errors.PartitionUnknown(req.Partition)
	}
	switch {
	case req.CPUs < 1 || req.CPUs > limits.CPUs:
		return "", errors.InvalidRequest(req.Partition,
			fmt.Sprintf("cpus must be 1-%d", limits.CPUs))
	case req.MemGB < 1 || req.MemGB > limits.MemGB:
		return "", errors.InvalidRequest(req.Partition,
			fmt.Sprintf("mem must be 1-%d GB", limits.MemGB))
	case req.GPUs < 0 || req.GPUs > limits.GPUs:
		return "", errors.InvalidRequest(req.Partition,
			fmt.Sprintf("gpus must be 0-%d", limits.GPUs))
	case req.TimeHours < 1 || req.TimeHours > limits.TimeHours:
		return "", errors.InvalidRequest(req.Partition,
			fmt.Sprintf("time must be 1-%d hours", limits.TimeHours))
	}
	return limits.QOS, nil
}

// logPath returns the job-output path for a job. The %j form is handed to
// sbatch, which substitutes the assigned job ID.
func (m *Manager) logPath(jobID string) string {
	return filepath.Join(m.store.Dir(), "logs", "hpcode_"+jobID+".log")
}

// Start validates the request, submits the session job and blocks until the
// editor server is reachable. On context cancellation (Ctrl-C during the
// wait) the submitted job is cancelled so no orphaned allocation lingers.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*View, error) {
	qos, err := m.validate(&req)
	if err != nil {
		return nil, err
	}

	logDir := filepath.Join(m.store.Dir(), "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	self, err := m.selfPath()
	if err != nil {
		return nil, fmt.Errorf("resolve own binary path: %w", err)
	}

	m.log.Info("Composing the job payload")
	scriptPath, err := script.Write(logDir, script.Params{
		Self:         self,
		Module:       m.cfg.Server.Module,
		PortMin:      m.cfg.Ports.Min,
		PortMax:      m.cfg.Ports.Max,
		Policy:       m.cfg.Ports.Policy,
		MaxAttempts:  m.cfg.Ports.MaxAttempts,
		ServerBinary: m.cfg.Server.Binary,
		ServerArgs:   m.cfg.Server.ExtraArgs,
		Grace:        time.Duration(m.cfg.Server.GraceSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	defer os.Remove(scriptPath)

	m.log.Info("Submitting the job")
	m.step("Submitting job (partition %s, %d cpus, %d GB, %d gpus, %dh)",
		req.Partition, req.CPUs, req.MemGB, req.GPUs, req.TimeHours)
	jobID, err := m.scheduler.Submit(ctx, slurm.SubmitRequest{
		JobName:     req.Name,
		Partition:   req.Partition,
		QOS:         qos,
		CPUs:        req.CPUs,
		MemGB:       req.MemGB,
		GPUs:        req.GPUs,
		TimeHours:   req.TimeHours,
		OutputPath:  filepath.Join(logDir, "hpcode_%j.log"),
		ScriptPath:  scriptPath,
		WarnSeconds: m.cfg.Slurm.WarnSeconds,
	})
	if err != nil {
		return nil, err
	}
	m.log.WithField("jobId", jobID).Info("Job submitted")
	m.step("Job %s submitted", jobID)

	// From here on an interrupted wait must not leave the job behind.
	defer func() {
		if ctx.Err() != nil {
			m.log.WithField("jobId", jobID).Warn("Interrupted, cancelling job and cleaning up")
			if cerr := m.scheduler.Cancel(context.Background(), jobID); cerr != nil {
				m.log.WithError(cerr).Error("Failed to cancel job after interrupt")
			}
		}
	}()

	if err := m.store.Write(jobID, Record{
		JobName:   req.Name,
		Partition: req.Partition,
		Submitted: time.Now(),
	}); err != nil {
		return nil, err
	}

	m.log.WithField("jobId", jobID).Info("Waiting for the job to schedule")
	m.step("Waiting for the job to be scheduled ...")
	job, err := m.waitRunning(ctx, jobID)
	if err != nil {
		return nil, err
	}

	m.log.Info("Waiting for the editor server to launch")
	m.step("Job is running on a compute node, waiting for the editor server ...")
	addr, err := m.waitLine(ctx, m.logPath(jobID))
	if err != nil {
		return nil, err
	}
	url := "http://" + strings.TrimSpace(addr)

	rec := Record{
		JobName:   req.Name,
		Partition: req.Partition,
		Node:      job.Node,
		URL:       url,
		Submitted: time.Now(),
	}
	if err := m.store.Write(jobID, rec); err != nil {
		return nil, err
	}

	// The server answers only after its workbench finishes loading; poll
	// until the URL connects.
	for !m.reachable(url) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.sleep(m.pollEvery)
	}

	m.log.WithField("node", job.Node).Info("Editor server is running")
	m.step("Editor server is up")
	return &View{
		JobID:     jobID,
		Name:      req.Name,
		Partition: req.Partition,
		Node:      job.Node,
		State:     StateRunning,
		URL:       url,
	}, nil
}

// waitRunning polls the scheduler with exponential backoff until the job
// leaves PENDING. A job that goes straight to a terminal state failed to
// schedule.
func (m *Manager) waitRunning(ctx context.Context, jobID string) (slurm.Job, error) {
	backoff := time.Second
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return slurm.Job{}, err
		}

		job, ok, err := m.scheduler.Job(ctx, jobID)
		if err != nil {
			return slurm.Job{}, err
		}
		if ok {
			switch job.State {
			case slurm.StateRunning:
				return job, nil
			case slurm.StatePending:
				// keep waiting
			default:
				return slurm.Job{}, errors.New(errors.ErrCodeJobNotScheduled,
					fmt.Sprintf("job %s failed to schedule (state %s)", jobID, job.State))
			}
		}

		sleepFor := backoff * (1 << attempt)
		if sleepFor > m.backoffMax {
			sleepFor = m.backoffMax
		}
		m.log.Infof("... Trying again in %s", sleepFor)
		m.sleep(sleepFor)
	}
}

// List derives the user's live sessions from the scheduler, correlated with
// recorded addresses, in scheduler-reported submission order. Jobs with no
// retrievable address yet are reported as starting, never omitted. Stale
// store records for ended jobs are pruned as a side effect.
func (m *Manager) List(ctx context.Context) ([]View, error) {
	jobs, err := m.scheduler.UserJobs(ctx, m.user, m.cfg.Session.JobName)
	if err != nil {
		return nil, err
	}

	active := make(map[string]bool)
	var views []View
	for _, job := range jobs {
		if !job.State.Active() {
			continue
		}
		active[job.ID] = true

		url := m.recordedURL(job.ID)
		views = append(views, View{
			JobID:     job.ID,
			Name:      job.Name,
			Partition: job.Partition,
			Node:      job.Node,
			State:     viewState(job, url),
			URL:       url,
		})
	}

	m.prune(active)
	return views, nil
}

// recordedURL fetches the session's address from the store, falling back to
// the job's captured output for sessions recorded by another host.
func (m *Manager) recordedURL(jobID string) string {
	if rec, ok, err := m.store.Load(jobID); err == nil && ok && rec.URL != "" {
		return rec.URL
	}

	data, err := os.ReadFile(m.logPath(jobID))
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	return "http://" + line
}

// prune removes store records and captured logs for jobs the scheduler no
// longer reports as active.
func (m *Manager) prune(active map[string]bool) {
	ids, err := m.store.JobIDs()
	if err != nil {
		m.log.WithError(err).Debug("Failed to scan session store for pruning")
		return
	}
	for _, id := range ids {
		if active[id] {
			continue
		}
		if err := m.store.Remove(id); err != nil {
			m.log.WithError(err).Debug("Failed to prune session record")
		}
		os.Remove(m.logPath(id))
	}
}

// Stop resolves each ref (job ID, job name, or glob pattern over names) to
// jobs and requests cancellation. Actual shutdown happens asynchronously
// inside the job; this returns once every cancellation was requested.
func (m *Manager) Stop(ctx context.Context, refs []string, all bool) ([]string, error) {
	jobs, err := m.scheduler.UserJobs(ctx, m.user, "")
	if err != nil {
		return nil, err
	}

	var activeSessions []slurm.Job
	for _, job := range jobs {
		if job.State.Active() && strings.HasPrefix(job.Name, m.cfg.Session.JobName) {
			activeSessions = append(activeSessions, job)
		}
	}

	var targets []slurm.Job
	if all {
		targets = activeSessions
	} else {
		for _, ref := range refs {
			matched, err := m.resolve(ctx, ref, activeSessions)
			if err != nil {
				return nil, err
			}
			targets = append(targets, matched...)
		}
	}

	var cancelled []string
	seen := make(map[string]bool)
	for _, job := range targets {
		if seen[job.ID] {
			continue
		}
		seen[job.ID] = true

		m.log.WithField("jobId", job.ID).Warn("Terminating job and cleaning up")
		if err := m.scheduler.Cancel(ctx, job.ID); err != nil {
			return cancelled, err
		}
		cancelled = append(cancelled, job.ID)
	}
	return cancelled, nil
}

// resolve matches one user-supplied ref against the active sessions. Refs
// that match nothing are checked against the scheduler directly so a job
// owned by someone else yields PERMISSION_DENIED rather than a silent miss.
func (m *Manager) resolve(ctx context.Context, ref string, sessions []slurm.Job) ([]slurm.Job, error) {
	var matched []slurm.Job
	for _, job := range sessions {
		if job.ID == ref || job.Name == ref {
			matched = append(matched, job)
		}
	}

	// Glob refs match against job names.
	if len(matched) == 0 && strings.ContainsAny(ref, "*?[") {
		for _, job := range sessions {
			ok, err := patternmatcher.Matches(job.Name, []string{ref})
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInvalidInput,
					fmt.Sprintf("invalid session pattern %q", ref))
			}
			if ok {
				matched = append(matched, job)
			}
		}
	}

	if len(matched) > 0 {
		return matched, nil
	}

	if command.ValidateJobID(ref) == nil {
		job, ok, err := m.scheduler.Job(ctx, ref)
		if err != nil {
			return nil, err
		}
		if ok {
			if job.User != m.user {
				return nil, errors.PermissionDenied(ref, job.User)
			}
			if job.State.Active() {
				// Owned and active but not a session job; still honor the
				// explicit id.
				return []slurm.Job{job}, nil
			}
		}
	}

	return nil, errors.SessionNotFound(ref)
}

// tailFirstLine follows path until its first line appears. The file may not
// exist yet when the tail starts; the job creates it on the assigned node.
func tailFirstLine(ctx context.Context, path string) (string, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return "", fmt.Errorf("tail job log: %w", err)
	}
	defer t.Cleanup()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return "", fmt.Errorf("job log closed before an address appeared")
			}
			if line.Err != nil {
				return "", fmt.Errorf("tail job log: %w", line.Err)
			}
			text := strings.TrimSpace(line.Text)
			if text != "" {
				return text, nil
			}
		}
	}
}

// httpReachable reports whether the session URL answers at all. Any HTTP
// response counts; the workbench serves redirects and auth-free pages alike.
func httpReachable(url string) bool {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
