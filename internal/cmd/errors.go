package cmd

import (
	"errors"
	"fmt"
)

// ExitError ends psb with Code without printing an error message. Commands
// return it after reporting the failure themselves, like a failing
// psb check.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func exitWith(code int) *ExitError {
	return &ExitError{Code: code}
}

// exitCode returns the code of an ExitError anywhere in err's chain.
func exitCode(err error) (int, bool) {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return 0, false
}
