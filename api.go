// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"sync"
	"time"
)

// Provider identifies a transport provider in the numeric space the
// foreign caller uses. Only [ProviderTCP] is backed by a real transport
// here; the rest exist so informational results stay within the caller's
// expected value range.
type Provider uint32

const (
	// ProviderHTTP is the HTTP transport provider.
	ProviderHTTP Provider = iota

	// ProviderNamedPipe is the named-pipe transport provider.
	ProviderNamedPipe

	// ProviderSession is the session provider.
	ProviderSession

	// ProviderSign is the signing provider.
	ProviderSign

	// ProviderSharedMemory is the shared-memory transport provider.
	ProviderSharedMemory

	// ProviderSMux is the session-multiplexer provider.
	ProviderSMux

	// ProviderSSL is the TLS provider.
	ProviderSSL

	// ProviderTCP is the TCP transport provider, the one this library
	// implements.
	ProviderTCP

	// ProviderVIA is the VIA transport provider.
	ProviderVIA

	// ProviderCTAIP is the CTAIP provider.
	ProviderCTAIP

	// ProviderInvalid marks the end of the provider space.
	ProviderInvalid
)

// IPPreference expresses the caller's address-family preference for
// resolution. This library resolves IPv4 only, so the preference is
// accepted and recorded but does not change behavior.
type IPPreference uint32

const (
	// IPPreferenceNone requests no particular address family.
	IPPreferenceNone IPPreference = iota

	// IPPreferenceIPv4 prefers IPv4 addresses.
	IPPreferenceIPv4

	// IPPreferenceIPv6 prefers IPv6 addresses.
	IPPreferenceIPv6
)

// ConsumerInfo carries the per-session settings the caller supplies at
// open time.
type ConsumerInfo struct {
	// PacketSize overrides the configured packet size for the new
	// session when > 0.
	PacketSize uint32
}

// DNSCacheInfo is the caller-supplied cached DNS record for a target.
// A non-empty FQDN takes precedence over connection-string parsing.
type DNSCacheInfo struct {
	// FQDN is the cached fully qualified host name.
	FQDN string

	// AddrIPv4 is the cached IPv4 address text, informational only.
	AddrIPv4 string

	// AddrIPv6 is the cached IPv6 address text, informational only.
	AddrIPv6 string

	// PortText is the cached port as text. It overrides the default
	// port when numeric.
	PortText string
}

// LastError is the per-call error record returned by [GetLastError].
type LastError struct {
	// Provider is the provider that reported the error.
	Provider Provider

	// Code is the numeric error code.
	Code uint32

	// Message is the human-readable error text.
	Message string
}

// The package-level entry points share one lazily created Shim. The
// sync.Once is the init barrier: concurrent first calls from threads the
// runtime has never seen elect exactly one initializer, and everyone
// else blocks until the shared state is fully built.
var (
	defaultShim *Shim
	initOnce    sync.Once
)

func ensureInit() *Shim {
	initOnce.Do(func() {
		defaultShim = New(NewConfig())
	})
	return defaultShim
}

// recoverStatus converts a panic escaping an entry point into the given
// fallback status. Panics must not cross the boundary into the foreign
// caller, which cannot unwind Go stacks.
func recoverStatus(status *Status, fallback Status) {
	if recover() != nil {
		*status = fallback
	}
}

// Initialize prepares the library for use. It is safe to call from any
// number of threads concurrently; every call returns only after shared
// state is fully built.
func Initialize() Status {
	ensureInit()
	return StatusOK
}

// Terminate is the shutdown counterpart of [Initialize]. Open handles
// stay valid: the foreign caller routinely terminates with sessions
// still registered and closes them afterwards, so teardown here would
// break it.
func Terminate() Status {
	return StatusOK
}

// Open establishes a session from a textual connection string plus an
// optional cached DNS record, writing the new handle to outHandle.
//
// The existing argument names a session to reuse; reuse is not
// supported, so it is ignored and a fresh session is always opened. The
// async flag selects a completion model this library does not have:
// opens always complete synchronously.
func (s *Shim) Open(consumer *ConsumerInfo, connString string, existing Handle,
	outHandle *Handle, async bool, ipPref IPPreference, cache *DNSCacheInfo) (status Status) {
	defer recoverStatus(&status, StatusOpenFailed)

	if outHandle == nil {
		return StatusInvalidParameter
	}
	*outHandle = 0

	var cacheFQDN, cachePortText string
	if cache != nil {
		cacheFQDN, cachePortText = cache.FQDN, cache.PortText
	}
	target, err := resolveTarget(connString, connString != "", cacheFQDN, cachePortText)
	if err != nil {
		return StatusOpenFailed
	}

	handle, err := s.open(target, 0)
	if err != nil {
		return statusFromOpenError(err)
	}
	if consumer != nil && consumer.PacketSize > 0 {
		if conn, ok := s.registry.Conn(handle); ok {
			conn.SetPacketSize(consumer.PacketSize)
		}
	}
	*outHandle = handle
	return StatusOK
}

// Open establishes a session via the default [*Shim].
func Open(consumer *ConsumerInfo, connString string, existing Handle,
	outHandle *Handle, async bool, ipPref IPPreference, cache *DNSCacheInfo) Status {
	return ensureInit().Open(consumer, connString, existing, outHandle, async, ipPref, cache)
}

// OpenSyncEx establishes a session from a caller-supplied connection
// parameter blob, writing the new handle to outHandle.
//
// The blob is decoded with the configured [Layout]; its embedded timeout
// in milliseconds, when positive, bounds the whole open.
func (s *Shim) OpenSyncEx(blob []byte, outHandle *Handle) (status Status) {
	defer recoverStatus(&status, StatusOpenFailed)

	if outHandle == nil {
		return StatusInvalidParameter
	}
	*outHandle = 0

	params, err := DecodeConnParams(blob, s.cfg.Layout, s.cfg.DerefUTF16)
	if err != nil {
		return StatusOpenFailed
	}
	target, err := params.Resolve()
	if err != nil {
		return StatusOpenFailed
	}

	handle, err := s.open(target, params.Timeout)
	if err != nil {
		return statusFromOpenError(err)
	}
	*outHandle = handle
	return StatusOK
}

// OpenSyncEx establishes a session via the default [*Shim].
func OpenSyncEx(blob []byte, outHandle *Handle) Status {
	return ensureInit().OpenSyncEx(blob, outHandle)
}

// Close closes the session identified by h and invalidates the handle.
// Closing an unknown or already-closed handle reports an invalid
// parameter; packets allocated against the session stay alive.
func (s *Shim) Close(h Handle) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if err := s.closeConn(h); err != nil {
		return StatusInvalidParameter
	}
	return StatusOK
}

// Close closes a session via the default [*Shim].
func Close(h Handle) Status {
	return ensureInit().Close(h)
}

// ReadSyncOverAsync reads one whole frame from the session identified by
// h, allocates a packet holding it, and writes the packet handle to
// outPacket. A timeoutMS > 0 bounds only this read and reports
// [StatusTimeout] when it fires.
func (s *Shim) ReadSyncOverAsync(h Handle, outPacket *Handle, timeoutMS int32) (status Status) {
	defer recoverStatus(&status, StatusConnClosed)

	if outPacket == nil {
		return StatusInvalidParameter
	}
	*outPacket = 0

	var timeout time.Duration
	if timeoutMS > 0 {
		timeout = time.Duration(timeoutMS) * time.Millisecond
	}
	pktHandle, err := s.readConn(h, timeout)
	if err != nil {
		return statusFromReadError(err)
	}
	*outPacket = pktHandle
	return StatusOK
}

// ReadSyncOverAsync reads one frame via the default [*Shim].
func ReadSyncOverAsync(h Handle, outPacket *Handle, timeoutMS int32) Status {
	return ensureInit().ReadSyncOverAsync(h, outPacket, timeoutMS)
}

// ReadAsync reads one whole frame like [ReadSyncOverAsync] but without a
// timeout: the read blocks until a frame arrives or the connection
// fails. Completion is synchronous despite the name, which belongs to
// the binary contract.
func (s *Shim) ReadAsync(h Handle, outPacket *Handle) Status {
	return s.ReadSyncOverAsync(h, outPacket, 0)
}

// ReadAsync reads one frame via the default [*Shim].
func ReadAsync(h Handle, outPacket *Handle) Status {
	return ensureInit().ReadAsync(h, outPacket)
}

// WriteSyncOverAsync writes the data of packet p to the session
// identified by h. The packet is not consumed: releasing it remains the
// caller's responsibility.
func (s *Shim) WriteSyncOverAsync(h Handle, p Handle) (status Status) {
	defer recoverStatus(&status, StatusConnClosed)

	return statusFromWriteError(s.writeConn(h, p))
}

// WriteSyncOverAsync writes a packet via the default [*Shim].
func WriteSyncOverAsync(h Handle, p Handle) Status {
	return ensureInit().WriteSyncOverAsync(h, p)
}

// WriteAsync writes like [WriteSyncOverAsync]; both complete
// synchronously, the distinct name is part of the binary contract.
func (s *Shim) WriteAsync(h Handle, p Handle) Status {
	return s.WriteSyncOverAsync(h, p)
}

// WriteAsync writes a packet via the default [*Shim].
func WriteAsync(h Handle, p Handle) Status {
	return ensureInit().WriteAsync(h, p)
}

// PacketAllocate allocates a packet against the session identified by h,
// sized to the session's packet size, and returns its handle. An unknown
// session yields handle 0, the always-invalid handle.
func (s *Shim) PacketAllocate(h Handle, ioType IOType) (out Handle) {
	defer func() {
		if recover() != nil {
			out = 0
		}
	}()

	conn, ok := s.registry.Conn(h)
	if !ok {
		return 0
	}
	pkt := NewPacket(conn.PacketSize(), h, ioType)
	return s.registry.AllocPacket(pkt)
}

// PacketAllocate allocates a packet via the default [*Shim].
func PacketAllocate(h Handle, ioType IOType) Handle {
	return ensureInit().PacketAllocate(h, ioType)
}

// PacketRelease releases the packet identified by p. Releasing an
// unknown or stale handle is a no-op; there is no result to report.
func (s *Shim) PacketRelease(p Handle) {
	s.registry.Release(p)
}

// PacketRelease releases a packet via the default [*Shim].
func PacketRelease(p Handle) {
	ensureInit().PacketRelease(p)
}

// PacketSetData copies data into the packet identified by p, growing its
// buffer when needed.
func (s *Shim) PacketSetData(p Handle, data []byte) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	pkt, ok := s.registry.Packet(p)
	if !ok {
		return StatusInvalidParameter
	}
	pkt.SetData(data)
	return StatusOK
}

// PacketSetData copies data into a packet via the default [*Shim].
func PacketSetData(p Handle, data []byte) Status {
	return ensureInit().PacketSetData(p, data)
}

// PacketGetDataWrapper copies the packet's data into buf and writes the
// number of bytes copied to outLen. The copy is bounded by len(buf): a
// short buffer truncates without error. The Wrapper suffix belongs to
// the binary contract.
func (s *Shim) PacketGetDataWrapper(p Handle, buf []byte, outLen *uint32) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	if outLen == nil {
		return StatusInvalidParameter
	}
	*outLen = 0

	pkt, ok := s.registry.Packet(p)
	if !ok {
		return StatusInvalidParameter
	}
	*outLen = uint32(pkt.GetData(buf))
	return StatusOK
}

// PacketGetDataWrapper copies a packet's data via the default [*Shim].
func PacketGetDataWrapper(p Handle, buf []byte, outLen *uint32) Status {
	return ensureInit().PacketGetDataWrapper(p, buf, outLen)
}

// PacketReset recycles the packet identified by p for another use:
// the data length drops to zero and the packet is reassociated with the
// session h and the given direction. The consumer argument is accepted
// for signature compatibility and ignored.
func (s *Shim) PacketReset(h Handle, ioType IOType, p Handle, consumer *ConsumerInfo) (status Status) {
	defer recoverStatus(&status, StatusInvalidParameter)

	pkt, ok := s.registry.Packet(p)
	if !ok {
		return StatusInvalidParameter
	}
	pkt.Reset()
	pkt.Rebind(h, ioType)
	return StatusOK
}

// PacketReset recycles a packet via the default [*Shim].
func PacketReset(h Handle, ioType IOType, p Handle, consumer *ConsumerInfo) Status {
	return ensureInit().PacketReset(h, ioType, p, consumer)
}
