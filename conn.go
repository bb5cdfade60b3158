// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassosimone/safeconn"
)

// Conn is one live TCP session to a server.
//
// A Conn exclusively owns its underlying socket and releases it exactly
// once at close. At most one logical session should drive a Conn's reads
// and writes at a time; the mutable packet size and the closed flag are
// nonetheless safe for concurrent access because the informational entry
// points may race with I/O.
type Conn struct {
	// conn is the owned socket.
	conn net.Conn

	// host and port are the resolved remote target.
	host string
	port uint16

	// packetSize is the negotiated packet size, mutable via [SetInfo].
	packetSize atomic.Uint32

	// closed flips once when the session is closed.
	closed atomic.Bool

	// closeonce guarantees the socket is released exactly once.
	closeonce sync.Once

	// laddr, raddr, protocol are cached at construction for logging.
	laddr    string
	raddr    string
	protocol string

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the SLogger to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

// newConn wraps an established socket into a session.
func newConn(cfg *Config, logger SLogger, sock net.Conn, target Target) *Conn {
	c := &Conn{
		conn:          sock,
		host:          target.Host,
		port:          target.Port,
		laddr:         safeconn.LocalAddr(sock),
		raddr:         safeconn.RemoteAddr(sock),
		protocol:      safeconn.Network(sock),
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
	c.packetSize.Store(cfg.PacketSize)
	return c
}

// Host returns the remote host text.
func (c *Conn) Host() string {
	return c.host
}

// Port returns the remote TCP port.
func (c *Conn) Port() uint16 {
	return c.port
}

// PacketSize returns the session's negotiated packet size.
func (c *Conn) PacketSize() uint32 {
	return c.packetSize.Load()
}

// SetPacketSize changes the session's negotiated packet size.
func (c *Conn) SetPacketSize(size uint32) {
	c.packetSize.Store(size)
}

// IsOpen reports whether the session still owns a live socket.
func (c *Conn) IsOpen() bool {
	return c.conn != nil && !c.closed.Load()
}

// ReadFrame reads one whole frame from the session.
//
// A timeout > 0 bounds only this read: the receive deadline is set before
// the frame read and cleared afterwards, so subsequent reads are
// unaffected. A Conn with no live socket fails immediately.
func (c *Conn) ReadFrame(timeout time.Duration) ([]byte, error) {
	if !c.IsOpen() {
		return nil, ErrConnClosed
	}

	t0 := c.TimeNow()
	c.Logger.Info(
		"frameReadStart",
		slog.Duration("timeout", timeout),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", t0),
	)

	if timeout > 0 {
		c.setReadDeadline(t0.Add(timeout))
		defer c.setReadDeadline(time.Time{})
	}

	frame, err := readFrame(c.conn)

	c.Logger.Info(
		"frameReadDone",
		slog.Int("ioBytesCount", len(frame)),
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.TimeNow()),
	)

	return frame, err
}

// WriteFrame writes exactly data to the session's socket.
//
// The caller owns header construction: data must already be a correctly
// framed sequence of bytes. A Conn with no live socket fails immediately.
func (c *Conn) WriteFrame(data []byte) error {
	if !c.IsOpen() {
		return ErrConnClosed
	}

	t0 := c.TimeNow()
	c.Logger.Info(
		"frameWriteStart",
		slog.Int("ioBytesCount", len(data)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", t0),
	)

	err := writeFrame(c.conn, data)

	c.Logger.Info(
		"frameWriteDone",
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.TimeNow()),
	)

	return err
}

// setReadDeadline applies a receive deadline, logging at Debug like every
// other per-I/O event.
func (c *Conn) setReadDeadline(t time.Time) {
	c.Logger.Debug(
		"setReadDeadline",
		slog.Time("deadline", t),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", c.TimeNow()),
	)
	_ = c.conn.SetReadDeadline(t)
}

// Close releases the owned socket.
//
// Subsequent calls return [net.ErrClosed], consistent with Go's standard
// library behavior for closed connections.
func (c *Conn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		t0 := c.TimeNow()
		c.Logger.Info(
			"closeStart",
			slog.String("localAddr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t", t0),
		)

		c.closed.Store(true)
		err = c.conn.Close()

		c.Logger.Info(
			"closeDone",
			slog.Any("err", err),
			slog.String("errClass", c.ErrClassifier.Classify(err)),
			slog.String("localAddr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t0", t0),
			slog.Time("t", c.TimeNow()),
		)
	})
	return
}
