package cli

import "fmt"

// Process exit codes. Zero is success.
const (
	// exitConfig covers usage mistakes and unusable configuration.
	exitConfig = 1
	// exitPass covers identity, cache, and job database failures during
	// a reconciliation pass.
	exitPass = 2
	// exitCatalog covers an unreachable or malformed tool catalog.
	exitCatalog = 3
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
