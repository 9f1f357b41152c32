package listener

import (
	"errors"
	"fmt"
)

// BindError is returned by Listen when the socket cannot be bound.
type BindError struct {
	Addr  string
	Cause error
}

func (e *BindError) Error() string {
	if e.AddrInUse() {
		return fmt.Sprintf("listener: address already in use: %s", e.Addr)
	}
	return fmt.Sprintf("listener: bind %s: %v", e.Addr, e.Cause)
}

func (e *BindError) Unwrap() error { return e.Cause }

// AddrInUse reports whether another socket already holds the address.
func (e *BindError) AddrInUse() bool {
	return isAddrInUse(e.Cause)
}

// IsAddrInUse reports whether err, or any error it wraps, is a bind failure
// caused by the address being held by another socket.
func IsAddrInUse(err error) bool {
	var be *BindError
	if errors.As(err, &be) {
		return be.AddrInUse()
	}
	return err != nil && isAddrInUse(err)
}
