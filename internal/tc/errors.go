package tc

import (
	"errors"
	"fmt"
)

// InitError reports a working directory that cannot host THERMOCALC runs.
type InitError struct {
	Msg string
}

func (e *InitError) Error() string { return e.Msg }

// ScriptfileError reports a scriptfile setting incompatible with psb.
type ScriptfileError struct {
	Msg string
}

func (e *ScriptfileError) Error() string { return e.Msg }

// TCError reports a calculation THERMOCALC itself aborted (BOMBED).
type TCError struct {
	Msg string
}

func (e *TCError) Error() string { return e.Msg }

// ErrNoDrawpd is returned when drawpd is requested but not installed.
var ErrNoDrawpd = errors.New("no drawpd executable in working directory")

// Status renders err the way the settings report shows it:
// "<Kind>: <message>", or the initial check message when err is nil.
func Status(err error) string {
	if err == nil {
		return "Initial check done."
	}
	var ie *InitError
	var se *ScriptfileError
	var te *TCError
	switch {
	case errors.As(err, &ie):
		return fmt.Sprintf("InitError: %s", ie.Msg)
	case errors.As(err, &se):
		return fmt.Sprintf("ScriptfileError: %s", se.Msg)
	case errors.As(err, &te):
		return fmt.Sprintf("TCError: %s", te.Msg)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
