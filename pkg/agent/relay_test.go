package agent

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcess counts forwarded signals and can simulate a process that is
// already gone.
type fakeProcess struct {
	signals atomic.Int32
	err     error
}

func (f *fakeProcess) Signal(sig os.Signal) error {
	f.signals.Add(1)
	return f.err
}

func (f *fakeProcess) Pid() int { return 4242 }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l.WithField("component", "test")
}

func TestRelayNormalCompletion(t *testing.T) {
	proc := &fakeProcess{}
	signals := make(chan os.Signal, 2)
	exited := make(chan error, 1)
	r := NewRelay(proc, 10*time.Second, signals, exited, testLogger())

	exited <- nil
	state := r.Run()

	assert.Equal(t, StateTerminated, state)
	assert.False(t, r.Forwarded())
	assert.Equal(t, int32(0), proc.signals.Load())
}

func TestRelayForwardsOnCancellation(t *testing.T) {
	proc := &fakeProcess{}
	signals := make(chan os.Signal, 2)
	exited := make(chan error, 1)
	r := NewRelay(proc, time.Second, signals, exited, testLogger())

	signals <- syscall.SIGTERM
	go func() {
		// server exits shortly after receiving the forwarded signal
		time.Sleep(20 * time.Millisecond)
		exited <- fmt.Errorf("signal: terminated")
	}()

	start := time.Now()
	state := r.Run()
	elapsed := time.Since(start)

	assert.Equal(t, StateTerminated, state)
	assert.True(t, r.Forwarded())
	assert.Equal(t, int32(1), proc.signals.Load())
	// teardown follows server exit, not the full grace window
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestRelayDuplicateNotificationsIdempotent(t *testing.T) {
	proc := &fakeProcess{}
	signals := make(chan os.Signal, 2)
	exited := make(chan error, 1)
	r := NewRelay(proc, time.Second, signals, exited, testLogger())

	// coalesced or duplicate delivery
	signals <- syscall.SIGTERM
	signals <- syscall.SIGTERM
	go func() {
		time.Sleep(50 * time.Millisecond)
		exited <- nil
	}()

	state := r.Run()

	assert.Equal(t, StateTerminated, state)
	assert.Equal(t, int32(1), proc.signals.Load(), "exactly one forwarded signal")
}

func TestRelayGraceWindowIsUpperBound(t *testing.T) {
	proc := &fakeProcess{}
	signals := make(chan os.Signal, 2)
	exited := make(chan error, 1) // server never exits
	r := NewRelay(proc, 50*time.Millisecond, signals, exited, testLogger())

	r.alive = func(int) bool { return false }

	signals <- syscall.SIGTERM

	start := time.Now()
	state := r.Run()
	elapsed := time.Since(start)

	assert.Equal(t, StateTerminated, state)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second, "teardown must not block past the grace window")
}

func TestRelayEscalatesAfterGraceWindow(t *testing.T) {
	proc := &fakeProcess{}
	signals := make(chan os.Signal, 2)
	exited := make(chan error, 1) // server ignores SIGTERM
	r := NewRelay(proc, 30*time.Millisecond, signals, exited, testLogger())
	r.alive = func(int) bool { return true }

	signals <- syscall.SIGTERM
	state := r.Run()

	assert.Equal(t, StateTerminated, state)
	assert.Equal(t, int32(2), proc.signals.Load(), "SIGTERM then SIGKILL")
}

func TestRelayNoEscalationForExitedProcess(t *testing.T) {
	proc := &fakeProcess{}
	signals := make(chan os.Signal, 2)
	exited := make(chan error, 1)
	r := NewRelay(proc, 30*time.Millisecond, signals, exited, testLogger())
	r.alive = func(int) bool { return false }

	signals <- syscall.SIGTERM
	state := r.Run()

	assert.Equal(t, StateTerminated, state)
	assert.Equal(t, int32(1), proc.signals.Load(), "no SIGKILL for a gone process")
}

func TestRelayForwardErrorDoesNotAbort(t *testing.T) {
	// Forwarding to an already-exiting process returns ESRCH; the handler
	// must carry on to teardown regardless.
	proc := &fakeProcess{err: syscall.ESRCH}
	signals := make(chan os.Signal, 2)
	exited := make(chan error, 1)
	r := NewRelay(proc, 50*time.Millisecond, signals, exited, testLogger())

	r.alive = func(int) bool { return false }

	signals <- syscall.SIGTERM
	state := r.Run()

	assert.Equal(t, StateTerminated, state)
	assert.True(t, r.Forwarded())
}

func TestRelayNoServerProcess(t *testing.T) {
	signals := make(chan os.Signal, 2)
	r := NewRelay(nil, 30*time.Millisecond, signals, nil, testLogger())

	r.CancelNow()
	state := r.Run()

	assert.Equal(t, StateTerminated, state)
	assert.False(t, r.Forwarded(), "nothing to signal without a server")
}

func TestRelayStateStrings(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "cancelling", StateCancelling.String())
	assert.Equal(t, "terminated", StateTerminated.String())
}
