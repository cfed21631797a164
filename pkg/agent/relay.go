package agent

import (
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/hpcode/pkg/process"
)

// State tracks the relay's position in the shutdown lifecycle.
type State int

const (
	// StateRunning: editor server active, no termination requested.
	StateRunning State = iota
	// StateCancelling: termination received, graceful shutdown in progress.
	StateCancelling
	// StateTerminated: teardown reached; the process is about to exit.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Process is the slice of os.Process the relay needs, separated out so tests
// can substitute a fake.
type Process interface {
	Signal(sig os.Signal) error
	Pid() int
}

// OSProcess adapts *os.Process to the Process interface.
type OSProcess struct{ P *os.Process }

func (p OSProcess) Signal(sig os.Signal) error { return p.P.Signal(sig) }
func (p OSProcess) Pid() int                   { return p.P.Pid }

// Relay forwards scheduler termination notifications to the editor server
// process and bounds the graceful-shutdown window. It runs as a single
// control loop: asynchronous signals arrive on a channel and are handled as
// plain state transitions, never as re-entrant callbacks.
//
// The server process handle is fixed at construction; it may be nil when no
// server was ever started, in which case cancellation is a no-op but the
// hold-then-exit sequence still runs.
type Relay struct {
	proc    Process
	grace   time.Duration
	signals <-chan os.Signal
	exited  <-chan error
	log     *logrus.Entry

	state     State
	forwarded bool

	// alive reports whether a pid still exists; swappable for tests.
	alive func(pid int) bool
}

// NewRelay builds a relay. signals delivers the scheduler's termination
// notifications; exited fires once when the server process has exited. proc
// may be nil.
func NewRelay(proc Process, grace time.Duration, signals <-chan os.Signal, exited <-chan error, log *logrus.Entry) *Relay {
	return &Relay{
		proc:    proc,
		grace:   grace,
		signals: signals,
		exited:  exited,
		log:     log,
		state:   StateRunning,
		alive:   process.IsProcessAlive,
	}
}

// Run drives the state machine until termination and returns the final state
// (always StateTerminated). It blocks while the server runs; the grace window
// is a hard upper bound on the Cancelling state, after which exit proceeds
// whether or not the server has stopped. The external scheduler remains the
// backstop if even that overruns.
func (r *Relay) Run() State {
	for r.state == StateRunning {
		select {
		case err := <-r.exited:
			r.logExit(err)
			r.state = StateTerminated
		case sig := <-r.signals:
			r.log.WithField("signal", sig).Warn("Termination requested, shutting down server")
			r.forward()
			r.state = StateCancelling
		}
	}

	if r.state == StateCancelling {
		timer := time.NewTimer(r.grace)
		defer timer.Stop()
		for r.state == StateCancelling {
			select {
			case err := <-r.exited:
				r.logExit(err)
				r.state = StateTerminated
			case <-timer.C:
				r.log.Warnf("Server did not stop within %s, proceeding with teardown", r.grace)
				r.kill()
				r.state = StateTerminated
			case <-r.signals:
				// Duplicate or coalesced delivery; the forward already
				// happened and repeating it must not abort the handler.
				r.forward()
			}
		}
	}

	return r.state
}

// CancelNow moves the relay straight to Cancelling, for terminations that
// arrive before the control loop starts.
func (r *Relay) CancelNow() {
	r.forward()
	r.state = StateCancelling
}

// forward sends SIGTERM to the server at most once. With no server process
// there is nothing to signal.
func (r *Relay) forward() {
	if r.forwarded || r.proc == nil {
		return
	}
	r.forwarded = true
	if err := r.proc.Signal(syscall.SIGTERM); err != nil {
		// The server may already be exiting; that is not a failure.
		r.log.WithError(err).Debug("Forwarding SIGTERM returned an error")
	}
}

// kill escalates to SIGKILL when the server outlives the grace window. The
// liveness check avoids signalling a pid that already exited.
func (r *Relay) kill() {
	if r.proc == nil || !r.alive(r.proc.Pid()) {
		return
	}
	if err := r.proc.Signal(syscall.SIGKILL); err != nil {
		r.log.WithError(err).Debug("Escalating to SIGKILL returned an error")
	}
}

// Forwarded reports whether a graceful-termination signal was sent.
func (r *Relay) Forwarded() bool { return r.forwarded }

func (r *Relay) logExit(err error) {
	if err != nil {
		r.log.WithError(err).Info("Server exited")
		return
	}
	r.log.Info("Server exited cleanly")
}
