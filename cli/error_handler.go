package cli

import (
	"fmt"
	"os"

	"github.com/grovetools/hpcode/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle prints a user-friendly message for the error and returns it.
func (h *ErrorHandler) Handle(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(os.Stderr, "❌ Configuration not found. Create ~/.config/hpcode/hpcode.yml or pass --config.\n")
		return err

	case errors.ErrCodePartitionUnknown:
		if herr, ok := err.(*errors.HpcodeError); ok {
			fmt.Fprintf(os.Stderr, "❌ Unknown partition '%s'\n", herr.Details["partition"])
			fmt.Fprintf(os.Stderr, "Run 'hpcode config show' to see the configured partitions.\n")
		}
		return err

	case errors.ErrCodeInvalidRequest:
		if herr, ok := err.(*errors.HpcodeError); ok {
			fmt.Fprintf(os.Stderr, "❌ Invalid resource request for partition '%s': %s\n",
				herr.Details["partition"], herr.Details["reason"])
		}
		return err

	case errors.ErrCodeSubmissionFailed:
		if herr, ok := err.(*errors.HpcodeError); ok {
			fmt.Fprintf(os.Stderr, "❌ The scheduler rejected the job: %s\n", herr.Details["reason"])
		}
		return err

	case errors.ErrCodeJobNotScheduled:
		fmt.Fprintf(os.Stderr, "❌ The job never reached a compute node.\n")
		fmt.Fprintf(os.Stderr, "Check cluster load or request fewer resources.\n")
		return err

	case errors.ErrCodeSessionNotFound:
		if herr, ok := err.(*errors.HpcodeError); ok {
			fmt.Fprintf(os.Stderr, "❌ No session matches '%s'\n", herr.Details["ref"])
			fmt.Fprintf(os.Stderr, "Run 'hpcode list' to see your sessions.\n")
		}
		return err

	case errors.ErrCodePermissionDenied:
		if herr, ok := err.(*errors.HpcodeError); ok {
			fmt.Fprintf(os.Stderr, "❌ Job %s belongs to another user and was left untouched.\n",
				herr.Details["ref"])
		}
		return err

	case errors.ErrCodeCommandNotFound:
		fmt.Fprintf(os.Stderr, "❌ Scheduler command not found. Is this host part of the cluster?\n")
		return err

	default:
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		if h.Verbose {
			if herr, ok := err.(*errors.HpcodeError); ok {
				fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", herr.ToJSON())
			}
		}
		return err
	}
}
