//go:build windows

package listener

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// SO_REUSEADDR on Windows lets a second process steal a port that is still
// being listened on, so it is left unset. Windows does not quarantine a
// closed listening port the way unix kernels do.
func reuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}

func isAddrInUse(err error) bool {
	return errors.Is(err, windows.WSAEADDRINUSE)
}
