//go:build unix

package listener

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

func reuseAddr(_, _ string, c syscall.RawConn) error {
	var serr error
	if err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return serr
}

func isAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}
