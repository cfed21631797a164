package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/hpcode/pkg/agent"
	"github.com/grovetools/hpcode/pkg/port"
)

// NewAgentCmd creates the hidden `agent` command, the batch step of a
// session job. The generated job script execs it on the compute node; it is
// never run by hand.
func NewAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "agent",
		Short:  "Run the in-job session agent",
		Hidden: true,
		RunE:   runAgentE,
	}

	cmd.Flags().Int("port-min", 0, "Lower bound of the port range")
	cmd.Flags().Int("port-max", 0, "Upper bound of the port range")
	cmd.Flags().String("port-policy", "probe", "Port allocation policy: pick-once or probe")
	cmd.Flags().Int("port-attempts", 3, "Bounded retries for the probe policy")
	cmd.Flags().String("server", "code-server", "Editor server executable")
	cmd.Flags().StringArray("server-arg", nil, "Extra argument for the server (repeatable)")
	cmd.Flags().Int("grace", 10, "Graceful shutdown window in seconds")

	return cmd
}

func runAgentE(cmd *cobra.Command, args []string) error {
	min, _ := cmd.Flags().GetInt("port-min")
	max, _ := cmd.Flags().GetInt("port-max")
	policy, _ := cmd.Flags().GetString("port-policy")
	attempts, _ := cmd.Flags().GetInt("port-attempts")
	server, _ := cmd.Flags().GetString("server")
	serverArgs, _ := cmd.Flags().GetStringArray("server-arg")
	grace, _ := cmd.Flags().GetInt("grace")

	return agent.Run(agent.Options{
		Range:        port.Range{Min: min, Max: max},
		Policy:       policy,
		MaxAttempts:  attempts,
		ServerBinary: server,
		ServerArgs:   serverArgs,
		Grace:        time.Duration(grace) * time.Second,
	})
}
