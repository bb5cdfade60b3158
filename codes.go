// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"context"
	"errors"
	"net"
	"os"
)

// Status is the numeric result code returned by every entry point.
//
// The values are part of the binary contract with the foreign caller and
// must not change. Anything other than these codes crossing the boundary
// is a bug in this package, not an acceptable failure mode.
type Status = uint32

const (
	// StatusOK indicates success.
	StatusOK Status = 0

	// StatusConnClosed indicates that the connection was closed or that
	// an I/O operation on it failed, including malformed frames.
	StatusConnClosed Status = 1

	// StatusOpenFailed indicates that resolution or connect failed.
	StatusOpenFailed Status = 2

	// StatusInvalidParameter indicates an unknown or stale handle.
	StatusInvalidParameter Status = 87

	// StatusTimeout indicates an operation-scoped timeout on paths where
	// the caller explicitly distinguishes timeouts from I/O failures.
	StatusTimeout Status = 258
)

// Sentinel errors produced by this package and reduced to status codes
// at the entry-point boundary.
var (
	// ErrConnClosed means the peer closed the connection, or the frame
	// header was malformed and there is no recovery at this layer.
	ErrConnClosed = errors.New("sni: connection closed")

	// ErrInvalidParameter means a handle did not resolve to a live object
	// of the expected kind.
	ErrInvalidParameter = errors.New("sni: invalid parameter")

	// ErrOpenFailed means target resolution or connect failed.
	ErrOpenFailed = errors.New("sni: open failed")
)

// statusFromReadError reduces a read-path error to a status code.
//
// Timeouts get their distinct code because the synchronous-over-async read
// entry point accepts an explicit timeout and its caller expects 258 when
// that timeout fires. Everything else on the read path is a connection
// closed condition.
func statusFromReadError(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidParameter):
		return StatusInvalidParameter
	case isTimeout(err):
		return StatusTimeout
	default:
		return StatusConnClosed
	}
}

// statusFromWriteError reduces a write-path error to a status code.
func statusFromWriteError(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidParameter):
		return StatusInvalidParameter
	default:
		return StatusConnClosed
	}
}

// statusFromOpenError reduces an open-path error to a status code. Both
// resolution failures and connect failures collapse into the single open
// failed condition: the caller never observes which stage failed.
func statusFromOpenError(err error) Status {
	if err == nil {
		return StatusOK
	}
	return StatusOpenFailed
}

// isTimeout reports whether err represents an operation timeout, either a
// deadline exceeded from the transport or an expired context.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
