package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/hpcode/config"
	"github.com/grovetools/hpcode/logging"
)

// CommandOptions holds the flags shared by every hpcode command.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	JSONOutput bool
}

// NewStandardCommand creates a command carrying the standard hpcode flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to hpcode.yml config file")

	SetStyledHelp(cmd)

	return cmd
}

// GetOptions extracts the shared options from a command's flags.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		Quiet:      quiet,
		JSONOutput: jsonOutput,
	}
}

// GetLogger returns the shared CLI logger, adjusted for the command's flags.
func GetLogger(cmd *cobra.Command) *logrus.Logger {
	entry := logging.NewLogger("hpcode")
	logger := entry.Logger

	opts := GetOptions(cmd)
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if opts.Quiet {
		logger.SetLevel(logrus.WarnLevel)
	}
	if opts.JSONOutput {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}

// LoadConfig resolves the configuration for a command: the --config flag if
// given, otherwise the standard lookup chain.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}
