// SPDX-License-Identifier: GPL-3.0-or-later

package sni

// QueryType selects which per-session or library-wide value the
// informational entry points report.
type QueryType uint32

const (
	// QueryConnBufSize is the session's negotiated packet size.
	QueryConnBufSize QueryType = iota

	// QueryConnProviderNum is the numeric provider behind the session.
	QueryConnProviderNum

	// QueryConnPeerPort is the remote TCP port of the session.
	QueryConnPeerPort

	// QueryConnEncryptPossible reports whether encryption could be
	// negotiated on the session.
	QueryConnEncryptPossible

	// QueryConnEncryptEnabled reports whether encryption is active on
	// the session.
	QueryConnEncryptEnabled

	// QueryConnSyncOverAsync reports whether the session completes
	// nominally asynchronous operations synchronously.
	QueryConnSyncOverAsync
)

// GetInfo writes the queried per-session value to out.
//
// Encryption queries always report false: this library never negotiates
// TLS, by contract. An unrecognized query reports zero rather than an
// error so that newer callers probing for capabilities degrade cleanly.
func (s *Shim) GetInfo(h Handle, query QueryType, out *uint32) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if out == nil {
		return StatusInvalidParameter
	}
	*out = 0

	conn, ok := s.registry.Conn(h)
	if !ok {
		return StatusInvalidParameter
	}

	switch query {
	case QueryConnBufSize:
		*out = conn.PacketSize()
	case QueryConnProviderNum:
		*out = uint32(ProviderTCP)
	case QueryConnPeerPort:
		*out = uint32(conn.Port())
	case QueryConnEncryptPossible, QueryConnEncryptEnabled:
		*out = 0
	case QueryConnSyncOverAsync:
		*out = 1
	}
	return StatusOK
}

// GetInfo queries a session via the default [*Shim].
func GetInfo(h Handle, query QueryType, out *uint32) Status {
	return ensureInit().GetInfo(h, query, out)
}

// SetInfo changes the queried per-session value. Only the packet size is
// mutable; every other recognized query is accepted and ignored, which
// matches how the caller uses this surface (fire-and-forget tuning).
func (s *Shim) SetInfo(h Handle, query QueryType, value uint32) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	conn, ok := s.registry.Conn(h)
	if !ok {
		return StatusInvalidParameter
	}
	if query == QueryConnBufSize {
		conn.SetPacketSize(value)
	}
	return StatusOK
}

// SetInfo tunes a session via the default [*Shim].
func SetInfo(h Handle, query QueryType, value uint32) Status {
	return ensureInit().SetInfo(h, query, value)
}

// CheckConnection reports the session's liveness: ok for a live session,
// connection closed for a session whose socket is gone, invalid
// parameter for a handle that does not resolve at all.
func (s *Shim) CheckConnection(h Handle) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	conn, ok := s.registry.Conn(h)
	if !ok {
		return StatusInvalidParameter
	}
	if !conn.IsOpen() {
		return StatusConnClosed
	}
	return StatusOK
}

// CheckConnection checks a session via the default [*Shim].
func CheckConnection(h Handle) Status {
	return ensureInit().CheckConnection(h)
}

// GetLastError writes the last error record to out.
//
// Errors are fully reduced to status codes at each entry point, so there
// is never a richer record to hand back: out is zero-filled and the call
// succeeds, keeping callers that unconditionally fetch it working.
func (s *Shim) GetLastError(out *LastError) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if out != nil {
		*out = LastError{}
	}
	return StatusOK
}

// GetLastError fetches the last error record via the default [*Shim].
func GetLastError(out *LastError) Status {
	return ensureInit().GetLastError(out)
}

// GetPeerAddrStr writes the session's remote host text, NUL terminated,
// into outBuf and the text length (NUL excluded) into outLen. The text
// is truncated to bufSize-1 bytes when it does not fit. An unknown
// handle reports the loopback address and still succeeds, which is what
// the caller's diagnostics path expects.
func (s *Shim) GetPeerAddrStr(h Handle, bufSize uint32, outBuf []byte, outLen *uint32) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if outLen == nil || bufSize == 0 {
		return StatusInvalidParameter
	}
	*outLen = 0

	host := "127.0.0.1"
	if conn, ok := s.registry.Conn(h); ok {
		host = conn.Host()
	}

	limit := int(bufSize) - 1
	if limit > len(outBuf)-1 {
		limit = len(outBuf) - 1
	}
	if limit < 0 {
		return StatusInvalidParameter
	}
	if len(host) > limit {
		host = host[:limit]
	}
	n := copy(outBuf, host)
	outBuf[n] = 0
	*outLen = uint32(n)
	return StatusOK
}

// GetPeerAddrStr fetches a session's peer host via the default [*Shim].
func GetPeerAddrStr(h Handle, bufSize uint32, outBuf []byte, outLen *uint32) Status {
	return ensureInit().GetPeerAddrStr(h, bufSize, outBuf, outLen)
}

// QueryInfo writes the queried library-wide value to out. Only the
// default packet size is meaningful without a session; everything else
// reports zero.
func (s *Shim) QueryInfo(query QueryType, out *uint32) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if out == nil {
		return StatusInvalidParameter
	}
	*out = 0
	if query == QueryConnBufSize {
		*out = s.cfg.PacketSize
	}
	return StatusOK
}

// QueryInfo queries a library-wide value via the default [*Shim].
func QueryInfo(query QueryType, out *uint32) Status {
	return ensureInit().QueryInfo(query, out)
}
