// Package agent is the in-job runtime. It runs as the batch step of a
// scheduler job on whichever node the job landed on: it allocates a free
// port, emits the reachable address exactly once, starts the editor server,
// and relays termination signals until teardown.
package agent

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/hpcode/command"
	"github.com/grovetools/hpcode/logging"
	"github.com/grovetools/hpcode/pkg/port"
)

// Options parameterizes one agent run. Values arrive on the generated job
// script's command line so the payload stays self-contained.
type Options struct {
	Range        port.Range
	Policy       string // "pick-once" or "probe"
	MaxAttempts  int
	ServerBinary string
	ServerArgs   []string
	Grace        time.Duration

	// Stdout receives the single address line. Defaults to os.Stdout, which
	// the scheduler captures into the job log the lister reads.
	Stdout io.Writer

	// Executor creates the server process; swappable for tests.
	Executor command.Executor
}

// Run executes the agent lifecycle. Errors before the server starts are
// returned and fail the job (they are logged, never user-interactive, since
// the job runs detached). Once the server is up, Run always completes the
// hold-then-exit sequence and returns nil so a deliberate teardown is never
// misreported as a job failure.
func Run(opts Options) error {
	log := logging.NewLogger("agent")

	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Executor == nil {
		opts.Executor = &command.RealExecutor{}
	}

	// The signal channel exists before the server does, so no termination
	// window is unhandled. Buffered: coalesced deliveries must not be lost
	// while the loop is between selects.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(signals)

	ip, err := NodeIP()
	if err != nil {
		return err
	}

	allocator := NewAllocatorForNode()
	p, err := allocator.AllocateVerified(opts.Range, opts.Policy == "probe", opts.MaxAttempts)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", ip, p)
	log.WithField("addr", addr).Info("Allocated server address")

	// A termination that raced the startup sequence still holds-then-exits
	// without a server to signal.
	select {
	case sig := <-signals:
		log.WithField("signal", sig).Warn("Terminated before server start")
		relay := NewRelay(nil, opts.Grace, signals, nil, log)
		relay.CancelNow()
		relay.Run()
		return nil
	default:
	}

	// Emit the address exactly once, immediately before starting the server.
	fmt.Fprintf(opts.Stdout, "%s\n", addr)

	server, err := StartServer(opts.Executor, opts.ServerBinary, addr, opts.ServerArgs)
	if err != nil {
		return err
	}
	log.WithField("pid", server.Proc.Pid()).Info("Editor server started")

	relay := NewRelay(server.Proc, opts.Grace, signals, server.Exited(), log)
	state := relay.Run()
	log.WithField("state", state).Info("Teardown complete")
	return nil
}

// NewAllocatorForNode returns the production port allocator. Split out so the
// agent wiring is visible in one place.
func NewAllocatorForNode() *port.Allocator {
	return port.NewAllocator()
}
