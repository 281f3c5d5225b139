package app

import "fmt"

// Process exit codes. The scheduler wrapping the bot distinguishes
// failure causes by these.
const (
	CodeConfig    = 1 // configuration or unexpected fatal error
	CodeSource    = 2 // paper source error
	CodeSummarize = 3 // summarization / digest-mode error
	CodeEmail     = 4 // email delivery error
	CodeNothing   = 5 // no papers, nothing to do
)

// ExitError carries the process exit code alongside the cause. The
// command layer unwraps it to set the final status.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitErr(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}
