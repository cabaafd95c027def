package voices

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Troubleshoot returns user-facing guidance for a terminal enumeration
// failure, chosen by coarse classification of the last error. The generic
// list is the default when no classifier matches and is never empty.
func Troubleshoot(err error) []string {
	if err == nil {
		return nil
	}

	switch {
	case isPermissionError(err):
		return []string{
			"The speech engine could not be executed due to missing permissions.",
			"Check that your user account is allowed to run the platform voice tools.",
			"On managed machines, ask an administrator to unblock the speech components.",
		}
	case isTimeoutError(err):
		return []string{
			"Listing voices took too long and was aborted.",
			"Close other heavy applications and retry.",
			"If the problem persists, restart the application; the speech service may be hung.",
		}
	default:
		return []string{
			"No synthesis voices could be loaded.",
			"Verify that at least one text-to-speech voice is installed in your system settings.",
			"Retry the voice load; transient failures usually resolve on a second attempt.",
		}
	}
}

// isPermissionError classifies access failures.
func isPermissionError(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "access is denied")
}

// isTimeoutError classifies timeouts and stalled connections.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection")
}
