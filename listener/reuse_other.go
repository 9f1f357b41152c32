//go:build !unix && !windows

package listener

import (
	"errors"
	"syscall"
)

func reuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
