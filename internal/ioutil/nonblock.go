// Package ioutil provides the thin non-blocking-socket helpers the
// Transport FSM's four suspension points (UDP connect/send/recv, TCP
// connect) rely on: putting a freshly dialed/listened socket into
// O_NONBLOCK mode and recognizing the EAGAIN/EWOULDBLOCK/EINPROGRESS
// errors that result, across whatever error-wrapping net.Conn's
// operations produce.
package ioutil

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// Nonblocker is the subset of net.Conn (and net.Listener) that exposes
// the underlying file descriptor. *net.UDPConn and *net.TCPConn both
// satisfy it.
type Nonblocker interface {
	SyscallConn() (syscall.RawConn, error)
}

// SetNonblock puts conn's underlying file descriptor into O_NONBLOCK
// mode. Go's runtime-integrated netpoller already multiplexes blocking
// Read/Write calls without the caller's help, so this is only needed by
// callers that intend to drive the fd with raw syscalls directly rather
// than through net.Conn's Read/Write.
func SetNonblock(conn Nonblocker) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		setErr = unix.SetNonblock(int(fd), true)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return setErr
}

// IsEAGAIN reports whether err (possibly wrapped) is EAGAIN/EWOULDBLOCK
// — the signal a non-blocking socket operation returns instead of
// blocking, which the Transport FSM maps to ErrAgain.
func IsEAGAIN(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// IsEINPROGRESS reports whether err is EINPROGRESS — the signal a
// non-blocking connect() returns while the handshake is still underway.
func IsEINPROGRESS(err error) bool {
	return errors.Is(err, unix.EINPROGRESS)
}
