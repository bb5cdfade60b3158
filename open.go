// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// Shim is one instance of the entry-point surface with its own handle
// registry, DNS cache, and configuration.
//
// The package-level entry points delegate to a lazily created default
// Shim; tests create their own so state never leaks between them.
//
// A Shim is safe for concurrent use from any number of caller threads.
type Shim struct {
	// cfg is the frozen configuration. Not mutated after New.
	cfg *Config

	// registry maps opaque handles to live sessions and packets.
	registry *Registry

	// dnscache remembers resolutions across opens.
	dnscache *dnsCache

	// resolver is the DNS fast path, nil when no server is configured.
	resolver *Resolver
}

// New creates a [*Shim] from the given configuration.
//
// The configuration is used as-is: callers start from [NewConfig] and
// override what they need before calling New.
func New(cfg *Config) *Shim {
	s := &Shim{
		cfg:      cfg,
		registry: NewRegistry(),
		dnscache: newDNSCache(),
	}
	if cfg.DNSServer.IsValid() {
		s.resolver = NewResolver(cfg, cfg.Logger)
	}
	return s
}

// open establishes a session to target and registers it.
//
// A timeoutMS > 0 bounds the whole open, resolution included, via a
// context deadline. The dial pipeline is endpoint → connect → session
// wrap; a failure anywhere surfaces as a single open failure.
func (s *Shim) open(target Target, timeoutMS int32) (Handle, error) {
	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if timeoutMS > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	}
	defer cancel()

	t0 := s.cfg.TimeNow()
	spanID := NewSpanID()
	s.cfg.Logger.Info(
		"openStart",
		slog.String("spanID", spanID),
		slog.String("host", target.Host),
		slog.Int("port", int(target.Port)),
		slog.Int("timeoutMS", int(timeoutMS)),
		slog.Time("t", t0),
	)

	address, fromCache := s.targetAddress(ctx, target)

	pipeline := Compose3(
		NewEndpointFunc(address),
		NewConnectFunc(s.cfg, "tcp", s.cfg.Logger),
		FuncAdapter[net.Conn, *Conn](func(ctx context.Context, sock net.Conn) (*Conn, error) {
			return newConn(s.cfg, s.cfg.Logger, sock, target), nil
		}),
	)

	conn, err := pipeline.Call(ctx, Unit{})
	if err != nil {
		// A cached address that no longer connects must not poison the
		// next open for the same host.
		if fromCache {
			s.dnscache.Invalidate(target.Host)
		}
		err = fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	var handle Handle
	if err == nil {
		handle = s.registry.AllocConn(conn)
	}

	s.cfg.Logger.Info(
		"openDone",
		slog.String("spanID", spanID),
		slog.Any("err", err),
		slog.String("errClass", s.cfg.ErrClassifier.Classify(err)),
		slog.String("host", target.Host),
		slog.Int("port", int(target.Port)),
		slog.Uint64("handle", uint64(handle)),
		slog.Time("t0", t0),
		slog.Time("t", s.cfg.TimeNow()),
	)

	return handle, err
}

// targetAddress turns a target into the "host:port" text handed to the
// dialer, preferring in order: an address literal, the in-process DNS
// cache, the resolver fast path, and finally the textual host (letting
// the dialer resolve). The second result reports whether the address
// came from the cache, so a failed connect can invalidate it.
func (s *Shim) targetAddress(ctx context.Context, target Target) (string, bool) {
	if addr, err := netip.ParseAddr(target.Host); err == nil {
		return netip.AddrPortFrom(addr.Unmap(), target.Port).String(), false
	}
	if addr, ok := s.dnscache.Get(target.Host); ok {
		return netip.AddrPortFrom(addr, target.Port).String(), true
	}
	if s.resolver != nil {
		if addr, err := s.resolver.LookupA(ctx, target.Host); err == nil {
			s.dnscache.Put(target.Host, addr, s.cfg.TimeNow())
			return netip.AddrPortFrom(addr, target.Port).String(), false
		}
	}
	return net.JoinHostPort(target.Host, strconv.Itoa(int(target.Port))), false
}

// closeConn closes the session identified by h and releases its handle.
//
// The socket close error is deliberately dropped: once the caller asked
// to close, the handle is gone either way and there is nothing useful to
// report back across the boundary.
func (s *Shim) closeConn(h Handle) error {
	conn, ok := s.registry.Conn(h)
	if !ok {
		return ErrInvalidParameter
	}
	_ = conn.Close()
	s.registry.Release(h)
	return nil
}

// readConn reads one frame from the session identified by h and returns
// a fresh packet handle holding the frame bytes.
func (s *Shim) readConn(h Handle, timeout time.Duration) (Handle, error) {
	conn, ok := s.registry.Conn(h)
	if !ok {
		return 0, ErrInvalidParameter
	}
	frame, err := conn.ReadFrame(timeout)
	if err != nil {
		return 0, err
	}
	pkt := NewPacket(conn.PacketSize(), h, IORead)
	pkt.SetData(frame)
	return s.registry.AllocPacket(pkt), nil
}

// writeConn writes the packet's data to the session identified by h.
func (s *Shim) writeConn(h Handle, p Handle) error {
	conn, ok := s.registry.Conn(h)
	if !ok {
		return ErrInvalidParameter
	}
	pkt, ok := s.registry.Packet(p)
	if !ok {
		return ErrInvalidParameter
	}
	return conn.WriteFrame(pkt.Data())
}
