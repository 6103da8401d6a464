package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0   // Run finished, nothing detected
	ExitFindings      = 1   // At least one payload was classified above info
	ExitUserError     = 2   // Invalid arguments or configuration
	ExitNetworkError  = 3   // Baseline or single request failed
	ExitInternalError = 4   // Unexpected internal error
	ExitInterrupted   = 130 // Second interrupt during shutdown
)
