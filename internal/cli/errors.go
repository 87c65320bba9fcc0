package cli

import (
	"errors"
	"fmt"

	"paytrack/internal/core"
	"paytrack/internal/csvcodec"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var rowErr *csvcodec.RowError
	if errors.As(err, &rowErr) {
		return NewCLIError(
			fmt.Sprintf("bad row on line %d", rowErr.Line),
			"Fix the row or remove it, then import again",
			err,
		)
	}

	switch {
	case errors.Is(err, core.ErrInvalidFormat):
		return NewCLIError("times must be written as HH:MM", "Example: paytrack add 2025-05-01 09:00 17:30", err)
	case errors.Is(err, core.ErrRejectedEntry):
		return NewCLIError("work day rejected", "Time out must be later than time in on the same day", err)
	case errors.Is(err, core.ErrInvalidRate):
		return NewCLIError("invalid hourly rate", "Use a non-negative number such as 15.50", err)
	case errors.Is(err, core.ErrInvalidDate):
		return NewCLIError("invalid date", "Use the YYYY-MM-DD format", err)
	case errors.Is(err, csvcodec.ErrEmptyImport):
		return NewCLIError("nothing to import", "Check that the file has a header, data rows and a TOTAL row", err)
	}

	return err
}
