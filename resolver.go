// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/dnsoverstream"
	"github.com/bassosimone/minest"
	"github.com/bassosimone/safeconn"
	"github.com/bassosimone/sud"
	"github.com/miekg/dns"
)

// Resolver resolves host names to IPv4 addresses ahead of dialing, using
// a configured DNS server: DNS-over-UDP first, falling back to
// DNS-over-TCP when the UDP exchange fails (which covers truncation).
//
// The resolver is a fast path, not a gate: callers degrade to dialing the
// textual host when every exchange fails.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to LookupA.
type Resolver struct {
	// Dialer is the [Dialer] used for resolver connections.
	//
	// Set by [NewResolver] from [Config.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewResolver] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewResolver] to the user-provided logger.
	Logger SLogger

	// Server is the DNS server endpoint.
	//
	// Set by [NewResolver] from [Config.DNSServer].
	Server netip.AddrPort

	// TimeNow is the function to get the current time.
	//
	// Set by [NewResolver] from [Config.TimeNow].
	TimeNow func() time.Time
}

// NewResolver returns a new [*Resolver].
//
// The cfg argument contains the common configuration for sni operations;
// [Config.DNSServer] must be a valid endpoint.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewResolver(cfg *Config, logger SLogger) *Resolver {
	return &Resolver{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Server:        cfg.DNSServer,
		TimeNow:       cfg.TimeNow,
	}
}

// LookupA resolves host to one IPv4 address.
func (r *Resolver) LookupA(ctx context.Context, host string) (netip.Addr, error) {
	query := dnscodec.NewQuery(host, dns.TypeA)

	resp, err := r.exchangeUDP(ctx, query)
	if err != nil {
		resp, err = r.exchangeTCP(ctx, query)
	}
	if err != nil {
		return netip.Addr{}, err
	}

	records, err := resp.RecordsA()
	if err != nil {
		return netip.Addr{}, err
	}
	for _, record := range records {
		addr, err := netip.ParseAddr(record)
		if err == nil && addr.Is4() {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: no usable A records for %q", ErrOpenFailed, host)
}

// exchangeUDP performs one DNS exchange over UDP.
func (r *Resolver) exchangeUDP(ctx context.Context, query *dnscodec.Query) (*dnscodec.Response, error) {
	connectOp := &ConnectFunc{
		Dialer:        r.Dialer,
		ErrClassifier: r.ErrClassifier,
		Logger:        r.Logger,
		Network:       "udp",
		TimeNow:       r.TimeNow,
	}
	conn, err := connectOp.Call(ctx, r.Server.String())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	t0 := r.TimeNow()
	deadline, _ := ctx.Deadline()
	var rqr []byte
	lc := r.newExchangeLogContext(conn, "udp")

	// The transport never dials: it reuses the connection we just
	// established, so a dialing transport is a programming error.
	txp := minest.NewDNSOverUDPTransport(resolverUnusedDialer{}, netip.AddrPortFrom(netip.IPv4Unspecified(), 0))
	txp.ObserveRawQuery = lc.makeQueryObserver(t0, &rqr)
	txp.ObserveRawResponse = lc.makeResponseObserver(t0, &rqr)

	lc.logStart(t0, deadline)
	resp, err := txp.ExchangeWithConn(ctx, conn, query)
	lc.logDone(t0, deadline, err)

	return resp, err
}

// exchangeTCP performs one DNS exchange over TCP.
func (r *Resolver) exchangeTCP(ctx context.Context, query *dnscodec.Query) (*dnscodec.Response, error) {
	connectOp := &ConnectFunc{
		Dialer:        r.Dialer,
		ErrClassifier: r.ErrClassifier,
		Logger:        r.Logger,
		Network:       "tcp",
		TimeNow:       r.TimeNow,
	}
	conn, err := connectOp.Call(ctx, r.Server.String())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	t0 := r.TimeNow()
	deadline, _ := ctx.Deadline()
	var rqr []byte
	lc := r.newExchangeLogContext(conn, "tcp")

	// Should the stream transport ever need to dial, the single-use
	// dialer hands it the connection we already own.
	streamDialer := dnsoverstream.NewStreamOpenerDialerTCP(sud.NewSingleUseDialer(conn))
	txp := dnsoverstream.NewTransport(streamDialer, netip.AddrPortFrom(netip.IPv4Unspecified(), 0))
	txp.ObserveRawQuery = lc.makeQueryObserver(t0, &rqr)
	txp.ObserveRawResponse = lc.makeResponseObserver(t0, &rqr)

	lc.logStart(t0, deadline)
	so := dnsoverstream.NewTCPStreamOpener(conn)
	resp, err := txp.ExchangeWithStreamOpener(ctx, so, query)
	lc.logDone(t0, deadline, err)

	return resp, err
}

func (r *Resolver) newExchangeLogContext(conn net.Conn, serverProtocol string) *dnsExchangeLogContext {
	return &dnsExchangeLogContext{
		ErrClassifier:  r.ErrClassifier,
		LocalAddr:      safeconn.LocalAddr(conn),
		Logger:         r.Logger,
		Protocol:       safeconn.Network(conn),
		RemoteAddr:     safeconn.RemoteAddr(conn),
		ServerProtocol: serverProtocol,
		TimeNow:        r.TimeNow,
	}
}

// resolverUnusedDialer is a [Dialer] that panics if DialContext is called.
//
// Resolver exchange methods use pre-established connections and never
// dial through the transport. This type serves as a sentinel to catch
// programming errors where the transport attempts to dial anyway.
type resolverUnusedDialer struct{}

var _ Dialer = resolverUnusedDialer{}

// DialContext implements [Dialer] and always panics.
func (resolverUnusedDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	panic("sni: DNS transport must not dial; this is a programming error")
}

// dnsExchangeLogContext holds common logging state for DNS exchanges.
//
// This type exists to consolidate the logging boilerplate shared by the
// UDP and TCP exchange methods.
type dnsExchangeLogContext struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// LocalAddr is the local address of the connection.
	LocalAddr string

	// Logger is the SLogger to use.
	Logger SLogger

	// Protocol is the network protocol (e.g., "tcp", "udp").
	Protocol string

	// RemoteAddr is the remote address of the connection.
	RemoteAddr string

	// ServerProtocol is the DNS protocol (e.g., "udp", "tcp").
	ServerProtocol string

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

// logStart logs the start of a DNS exchange.
func (lc *dnsExchangeLogContext) logStart(t0 time.Time, deadline time.Time) {
	lc.Logger.Info(
		"dnsExchangeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.String("serverProtocol", lc.ServerProtocol),
		slog.Time("t", t0),
	)
}

// logDone logs the completion of a DNS exchange.
func (lc *dnsExchangeLogContext) logDone(t0 time.Time, deadline time.Time, err error) {
	lc.Logger.Info(
		"dnsExchangeDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", lc.ErrClassifier.Classify(err)),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.String("serverProtocol", lc.ServerProtocol),
		slog.Time("t0", t0),
		slog.Time("t", lc.TimeNow()),
	)
}

// makeQueryObserver returns an observer function for raw DNS queries.
//
// The rqr pointer is used to capture the raw query for correlation
// with the response observer.
func (lc *dnsExchangeLogContext) makeQueryObserver(t0 time.Time, rqr *[]byte) func([]byte) {
	return func(rawQuery []byte) {
		lc.Logger.Info(
			"dnsQuery",
			slog.String("serverProtocol", lc.ServerProtocol),
			slog.Any("dnsRawQuery", rawQuery),
			slog.String("localAddr", lc.LocalAddr),
			slog.String("protocol", lc.Protocol),
			slog.String("remoteAddr", lc.RemoteAddr),
			slog.Time("t", t0),
		)
		*rqr = rawQuery
	}
}

// makeResponseObserver returns an observer function for raw DNS responses.
//
// The rqr pointer should be the same one passed to makeQueryObserver,
// allowing the response to be correlated with the original query.
func (lc *dnsExchangeLogContext) makeResponseObserver(t0 time.Time, rqr *[]byte) func([]byte) {
	return func(rawResp []byte) {
		lc.Logger.Info(
			"dnsResponse",
			slog.String("serverProtocol", lc.ServerProtocol),
			slog.Any("dnsRawQuery", *rqr),
			slog.String("localAddr", lc.LocalAddr),
			slog.String("protocol", lc.Protocol),
			slog.String("remoteAddr", lc.RemoteAddr),
			slog.Time("t0", t0),
			slog.Time("t", lc.TimeNow()),
			slog.Any("dnsRawResponse", rawResp),
		)
	}
}
