//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package rest

import "syscall"

// SO_REUSEPORT is unavailable here; the listener binds normally
func reusePort(network, address string, c syscall.RawConn) error {
	return nil
}
