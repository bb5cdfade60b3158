// SPDX-License-Identifier: GPL-3.0-or-later

// Package sni implements the client-side network-interface surface that the
// TDS protocol driver binds against: a fixed set of exported entry points
// speaking a length-prefixed framed protocol over plain TCP.
//
// # Entry-Point Surface
//
// The foreign caller invokes package-level functions ([Initialize], [Open],
// [OpenSyncEx], [Close], [ReadSyncOverAsync], [WriteSyncOverAsync], the
// packet helpers, and the informational getters) exactly as it would invoke
// the platform-native library. Every entry point validates its handles,
// performs the operation synchronously on the calling goroutine, and reduces
// every possible outcome to one of the numeric status codes:
//
//   - [StatusOK] (0): success
//   - [StatusConnClosed] (1): connection closed or I/O failure
//   - [StatusOpenFailed] (2): resolution or connect failure
//   - [StatusInvalidParameter] (87): unknown or stale handle
//   - [StatusTimeout] (258): timeout where the caller distinguishes it
//
// No internal fault crosses the boundary: each entry point carries a recover
// guard that degrades unexpected conditions to the nearest applicable code.
//
// Security, enumeration, and certificate entry points ([SecInitPackage],
// [ServerEnumOpen], [ClientCertificateFallback], and friends) are part of
// the binary contract but perform no work: they return success with outputs
// indicating the feature is absent.
//
// # Sessions, Packets, and Handles
//
// [Open] and [OpenSyncEx] establish a TCP session and return an opaque
// handle. Handles reference entries in a process-wide generation-tagged
// registry: a released handle is never resolved again, even after its slot
// is reused. Packets are independently handled buffers framed by an 8-byte
// header whose bytes 2-3 encode the total frame length big-endian.
//
// The target host and port come from either the caller's connection-info
// blob (decoded at fixed byte offsets, see [Layout]) or a textual
// connection string of the form "tcp:host,port". A caller-supplied cached
// FQDN always takes precedence over the connection string.
//
// # DNS Fast Path
//
// When [Config.DNSServer] is set, non-literal hosts are resolved to IPv4
// addresses before dialing: DNS-over-UDP first, falling back to
// DNS-over-TCP on truncation. Successful resolutions populate an in-process
// cache consulted by subsequent opens; a connect failure invalidates the
// cached entry. Without a configured server the textual host is handed to
// the dialer unchanged.
//
// # Observability
//
// All operations support structured logging via [SLogger] (compatible with
// [log/slog]). By default logging is disabled; set [Config.Logger] to
// enable it. Span events come in Start/Done pairs (openStart/openDone,
// connectStart/connectDone, frameReadStart/frameReadDone, and so on) with
// common fields: localAddr, remoteAddr, protocol, t, and on completion t0,
// err, and errClass. Per-I/O events are emitted at [slog.LevelDebug]. Use
// [NewSpanID] to correlate all log entries of one entry-point invocation.
//
// # Concurrency
//
// Entry points may be called concurrently from any number of caller
// threads, including threads unknown to the runtime until their first call.
// The registry supports concurrent allocate/lookup/release; a one-time init
// barrier guarantees setup runs exactly once even when first calls race.
// At most one logical session should drive a given connection's reads and
// writes at a time, matching the request/response usage of the protocol.
//
// # Design Boundaries
//
// This package does not implement TLS negotiation, credential exchange,
// named pipes, shared memory transports, or server enumeration; those
// reach the surface only as contractual no-ops. It performs no internal
// retries: all retry policy belongs to the caller.
package sni
