// Package transport issues read and write operations against device
// endpoints and surfaces every failure as a typed Error. Retry policy
// lives with the callers; this layer reports outcomes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/goburrow/modbus"
)

// Kind classifies a transport failure.
type Kind int

const (
	KindConnection Kind = iota + 1
	KindTimeout
	KindProtocol    // device returned an exception / error response
	KindContentType // HTTP only
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection failed"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol error"
	case KindContentType:
		return "unexpected content type"
	default:
		return "transport error"
	}
}

// Error carries the failure kind next to the operation and target that
// produced it.
type Error struct {
	Kind   Kind
	Op     string
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Target, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, or 0 when err is not a transport
// error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// wrap builds a classified *Error around err. An err that already is a
// transport error passes through unchanged.
func wrap(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Kind: classify(err), Op: op, Target: target, Err: err}
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return KindProtocol
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return KindTimeout
	}
	return KindConnection
}

// isTransient reports whether a reconnect attempt is worth making.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "reset") ||
		strings.Contains(s, "closed") ||
		strings.Contains(s, "i/o") ||
		strings.Contains(s, "timeout")
}
