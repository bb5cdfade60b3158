// SPDX-License-Identifier: GPL-3.0-or-later

package sni

// This file is the contractual no-op surface: entry points the foreign
// caller invokes unconditionally but whose functionality (TLS, security
// contexts, server enumeration, provider stacking) is out of scope for a
// TCP-only shim. Each one succeeds and zero-fills its outputs so callers
// that consume the results observe "nothing available" rather than an
// error they would escalate.

// AddProvider would stack a transport provider (TLS, multiplexing) on
// the session. The TCP session is the whole stack here, so the request
// succeeds without effect.
func (s *Shim) AddProvider(h Handle, provider Provider) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if _, ok := s.registry.Conn(h); !ok {
		return StatusInvalidParameter
	}
	return StatusOK
}

// AddProvider stacks a provider via the default [*Shim].
func AddProvider(h Handle, provider Provider) Status {
	return ensureInit().AddProvider(h, provider)
}

// RemoveProvider would unstack a transport provider from the session.
func (s *Shim) RemoveProvider(h Handle, provider Provider) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if _, ok := s.registry.Conn(h); !ok {
		return StatusInvalidParameter
	}
	return StatusOK
}

// RemoveProvider unstacks a provider via the default [*Shim].
func RemoveProvider(h Handle, provider Provider) Status {
	return ensureInit().RemoveProvider(h, provider)
}

// SecInitPackage would initialize the security package and report the
// maximum token length. There is no security package; the maximum is
// zero.
func (s *Shim) SecInitPackage(outMaxLen *uint32) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if outMaxLen != nil {
		*outMaxLen = 0
	}
	return StatusOK
}

// SecInitPackage initializes the security package via the default [*Shim].
func SecInitPackage(outMaxLen *uint32) Status {
	return ensureInit().SecInitPackage(outMaxLen)
}

// SecGenClientContext would generate the next client token of a security
// handshake. No token is ever produced: outLen reports zero and done
// reports true so the caller's handshake loop terminates immediately.
func (s *Shim) SecGenClientContext(h Handle, in []byte, out []byte, outLen *uint32, done *bool) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if outLen != nil {
		*outLen = 0
	}
	if done != nil {
		*done = true
	}
	return StatusOK
}

// SecGenClientContext generates a client token via the default [*Shim].
func SecGenClientContext(h Handle, in []byte, out []byte, outLen *uint32, done *bool) Status {
	return ensureInit().SecGenClientContext(h, in, out, outLen, done)
}

// WaitForSSLHandshakeToComplete would block until TLS negotiation
// finishes. No handshake ever starts, so the wait completes at once and
// the negotiated protocol reports zero.
func (s *Shim) WaitForSSLHandshakeToComplete(h Handle, timeoutMS int32, outProtocol *uint32) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if outProtocol != nil {
		*outProtocol = 0
	}
	return StatusOK
}

// WaitForSSLHandshakeToComplete waits for TLS via the default [*Shim].
func WaitForSSLHandshakeToComplete(h Handle, timeoutMS int32, outProtocol *uint32) Status {
	return ensureInit().WaitForSSLHandshakeToComplete(h, timeoutMS, outProtocol)
}

// ServerEnumOpen would start a server browse session. Browsing is not
// implemented: the returned handle is the always-invalid 0, which the
// paired read and close below accept.
func (s *Shim) ServerEnumOpen() Handle {
	return 0
}

// ServerEnumOpen starts a server browse via the default [*Shim].
func ServerEnumOpen() Handle {
	return ensureInit().ServerEnumOpen()
}

// ServerEnumRead would read the next chunk of browse results. There are
// never any: outLen reports zero and the call succeeds, ending the
// caller's read loop.
func (s *Shim) ServerEnumRead(h Handle, buf []byte, outLen *uint32) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if outLen != nil {
		*outLen = 0
	}
	return StatusOK
}

// ServerEnumRead reads browse results via the default [*Shim].
func ServerEnumRead(h Handle, buf []byte, outLen *uint32) Status {
	return ensureInit().ServerEnumRead(h, buf, outLen)
}

// ServerEnumClose would end a server browse session. Accepts the 0
// handle that [ServerEnumOpen] returns.
func (s *Shim) ServerEnumClose(h Handle) {
	// nothing
}

// ServerEnumClose ends a server browse via the default [*Shim].
func ServerEnumClose(h Handle) {
	ensureInit().ServerEnumClose(h)
}

// ClientCertificateFallback would register a client-certificate fallback
// callback for TLS. There is no TLS to fall back from.
func (s *Shim) ClientCertificateFallback(h Handle) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	return StatusOK
}

// ClientCertificateFallback registers a fallback via the default [*Shim].
func ClientCertificateFallback(h Handle) Status {
	return ensureInit().ClientCertificateFallback(h)
}

// GetMaxSPNLength would report the maximum service principal name
// length of the security package. There is none; the maximum is zero.
func (s *Shim) GetMaxSPNLength(out *uint32) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if out != nil {
		*out = 0
	}
	return StatusOK
}

// GetMaxSPNLength reports the maximum SPN length via the default [*Shim].
func GetMaxSPNLength(out *uint32) Status {
	return ensureInit().GetMaxSPNLength(out)
}

// CheckTokenRestrictions would inspect the caller's security token. No
// restrictions apply.
func (s *Shim) CheckTokenRestrictions(h Handle) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	return StatusOK
}

// CheckTokenRestrictions checks token restrictions via the default [*Shim].
func CheckTokenRestrictions(h Handle) Status {
	return ensureInit().CheckTokenRestrictions(h)
}
