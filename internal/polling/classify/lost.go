package classify

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"
)

// connectionLost reports errors raised by the client side when the
// server went away mid-session. Drivers surface these without a native
// code, so adapters map them onto their own "connection lost" code.
func connectionLost(err error) bool {
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op != "dial"
}
