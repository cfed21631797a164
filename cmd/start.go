package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovetools/hpcode/cli"
	"github.com/grovetools/hpcode/pkg/session"
)

// NewStartCmd creates the `start` command.
func NewStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"create", "new"},
		Short:   "Start a browser editor session on a compute node",
		Long: `Submits a batch job that launches the editor server on a compute node,
waits until it is reachable and prints its address. Ctrl-C during the
wait cancels the submitted job.

Examples:
  # Start with the partition defaults
  hpcode start

  # A GPU session with more memory
  hpcode start -p gpu --gpus 1 --mem 64

  # A named session, useful with several running at once
  hpcode start -n vscode_server_thesis
`,
		RunE: runStartE,
	}

	cmd.Flags().StringP("partition", "p", "", "Partition to run on")
	cmd.Flags().StringP("name", "n", "", "Session job name")
	cmd.Flags().Int("cpus", 1, "Number of CPU cores")
	cmd.Flags().Int("mem", 8, "Memory in GB")
	cmd.Flags().Int("gpus", 0, "Number of GPUs")
	cmd.Flags().IntP("time", "t", 4, "Wall time in hours")

	return cmd
}

func runStartE(cmd *cobra.Command, args []string) error {
	opts := cli.GetOptions(cmd)
	handler := cli.NewErrorHandler(opts.Verbose)

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return handler.Handle(err)
	}

	mgr, err := session.NewManager(cfg)
	if err != nil {
		return handler.Handle(err)
	}
	if !opts.Quiet && !opts.JSONOutput {
		mgr.SetProgress(os.Stderr)
	}

	partition, _ := cmd.Flags().GetString("partition")
	name, _ := cmd.Flags().GetString("name")
	cpus, _ := cmd.Flags().GetInt("cpus")
	mem, _ := cmd.Flags().GetInt("mem")
	gpus, _ := cmd.Flags().GetInt("gpus")
	hours, _ := cmd.Flags().GetInt("time")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	view, err := mgr.Start(ctx, session.StartRequest{
		Name:      name,
		Partition: partition,
		CPUs:      cpus,
		MemGB:     mem,
		GPUs:      gpus,
		TimeHours: hours,
	})
	if err != nil {
		return handler.Handle(err)
	}

	if opts.JSONOutput {
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if opts.Quiet {
		fmt.Println(view.URL)
		return nil
	}

	fmt.Printf("\nSession %s is running on %s\n", view.JobID, view.Node)
	fmt.Printf("URL:   %s\n", view.URL)
	return nil
}
