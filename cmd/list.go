package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/grovetools/hpcode/cli"
	"github.com/grovetools/hpcode/pkg/session"
)

var (
	listHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	listURLStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	listDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// NewListCmd creates the `list` command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "show"},
		Short:   "List your editor sessions",
		Long: `Shows your live sessions as the scheduler reports them, with the address
for each session that has one. Sessions whose server is still coming up
are shown as starting.

Examples:
  # Show sessions once
  hpcode list

  # Keep the view updated
  hpcode list --watch

  # Machine-readable output
  hpcode list --json
`,
		RunE: runListE,
	}

	cmd.Flags().BoolP("watch", "w", false, "Keep the list updated until interrupted")

	return cmd
}

func runListE(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return runListWatch(ctx, mgr, mgr.StoreDir())
	}

	views, err := mgr.List(ctx)
	if err != nil {
		return handler.Handle(err)
	}

	if opts.JSONOutput {
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	styled := isatty.IsTerminal(os.Stdout.Fd()) && !termenv.EnvNoColor()
	fmt.Print(renderSessionTable(views, styled))
	return nil
}

// renderSessionTable formats session rows as an aligned table. Styling is
// dropped when stdout is not a terminal.
func renderSessionTable(views []session.View, styled bool) string {
	if len(views) == 0 {
		return "No VS Code servers are running.\n"
	}

	header := []string{"JOB ID", "NAME", "PARTITION", "NODE", "STATE", "URL"}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		node := v.Node
		if node == "" {
			node = "-"
		}
		url := v.URL
		if url == "" {
			url = "-"
		}
		rows = append(rows, []string{v.JobID, v.Name, v.Partition, node, v.State, url})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-len(s))
	}

	var b strings.Builder
	for i, h := range header {
		cell := pad(h, widths[i])
		if styled {
			cell = listHeaderStyle.Render(cell)
		}
		b.WriteString(cell)
		b.WriteString("  ")
	}
	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			padded := pad(cell, widths[i])
			if styled {
				switch {
				case i == 5 && cell != "-":
					padded = listURLStyle.Render(padded)
				case cell == "-":
					padded = listDimStyle.Render(padded)
				case i == 4 && cell != session.StateRunning:
					padded = listDimStyle.Render(padded)
				}
			}
			b.WriteString(padded)
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}
	return b.String()
}
