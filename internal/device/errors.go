package device

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCommunication means the Modbus link is down or timed out.
	ErrCommunication = errors.New("roaster communication error")
	// ErrInterlock means a gate operation would break the one-gate-open rule.
	ErrInterlock = errors.New("gate interlock violation")
	// ErrInvalidParameter means a setter got an out-of-range value.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNotConnected means an operation was attempted before Connect or after Close.
	ErrNotConnected = errors.New("roaster not connected")
)

// InterlockError is the recoverable error returned by gate operations.
type InterlockError struct {
	Gate    Gate
	Action  string // "open" | "close"
	Blocked []Gate // other gates found open
	Already bool   // target gate already in the requested state
}

func (e *InterlockError) Error() string {
	if e.Already {
		state := "open"
		if e.Action == "close" {
			state = "closed"
		}
		return fmt.Sprintf("%s %s: gate already %s", e.Action, e.Gate, state)
	}
	names := make([]string, 0, len(e.Blocked))
	for _, g := range e.Blocked {
		names = append(names, g.String())
	}
	return fmt.Sprintf("%s %s: other gates open: %s", e.Action, e.Gate, strings.Join(names, ", "))
}

func (e *InterlockError) Is(target error) bool { return target == ErrInterlock }

// IsInterlock reports whether err is a gate interlock violation.
func IsInterlock(err error) bool { return errors.Is(err, ErrInterlock) }

func commError(op string, addr uint16, err error) error {
	return fmt.Errorf("%s at %d: %w: %w", op, addr, ErrCommunication, err)
}

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
