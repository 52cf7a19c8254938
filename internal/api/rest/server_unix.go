//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package rest

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reusePort lets a replacement process bind the port before the old one exits
func reusePort(network, address string, c syscall.RawConn) error {
	var err error
	if cerr := c.Control(func(fd uintptr) {
		err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	}); cerr != nil {
		return cerr
	}
	return err
}
