package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovetools/hpcode/cli"
	"github.com/grovetools/hpcode/pkg/session"
)

// NewStopCmd creates the `stop` command.
func NewStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stop [job-id|name|pattern]...",
		Aliases: []string{"delete", "cancel", "kill"},
		Short:   "Stop one or more editor sessions",
		Long: `Requests graceful shutdown of the given sessions. Each argument may be a
job ID, a session name, or a glob pattern over session names. The server
inside the job gets a termination signal and a grace window before the
allocation is released.

Examples:
  # Stop a session by job ID
  hpcode stop 12345

  # Stop by name
  hpcode stop vscode_server_thesis

  # Stop every session whose name matches
  hpcode stop 'vscode_server_*'

  # Stop everything
  hpcode stop --all
`,
		RunE: runStopE,
	}

	cmd.Flags().BoolP("all", "a", false, "Stop all of your sessions")

	return cmd
}

func runStopE(cmd *cobra.Command, args []string) error {
	opts := cli.GetOptions(cmd)
	handler := cli.NewErrorHandler(opts.Verbose)

	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("nothing to stop: give a job ID, name or pattern, or pass --all")
	}

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return handler.Handle(err)
	}

	mgr, err := session.NewManager(cfg)
	if err != nil {
		return handler.Handle(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cancelled, err := mgr.Stop(ctx, args, all)
	if err != nil {
		return handler.Handle(err)
	}

	if len(cancelled) == 0 {
		if !opts.Quiet {
			fmt.Println("No running sessions.")
		}
		return nil
	}

	if !opts.Quiet {
		for _, id := range cancelled {
			fmt.Printf("Requested shutdown of session %s\n", id)
		}
	}
	return nil
}
