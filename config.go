// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"net"
	"net/netip"
	"time"
)

// DefaultPacketSize is the negotiated packet size assigned to new
// sessions until the caller changes it via [SetInfo].
const DefaultPacketSize uint32 = 4096

// DefaultPort is the server port used when neither the connection string
// nor the cached DNS record carries an explicit port.
const DefaultPort uint16 = 1433

// Config holds common configuration for sni operations.
//
// Pass this to [New] to pre-wire dependencies. All fields have sensible
// defaults set by [NewConfig].
type Config struct {
	// Dialer is used to establish TCP sessions and, when the DNS fast
	// path is enabled, UDP/TCP resolver connections.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// DNSServer is the endpoint of the DNS server used by the resolution
	// fast path. The zero value disables pre-dial resolution and hands
	// textual hosts to the dialer unchanged.
	//
	// Left zero by [NewConfig].
	DNSServer netip.AddrPort

	// DerefUTF16 dereferences pointer fields inside the caller-supplied
	// connection-parameter blob, returning the NUL-terminated UTF-16
	// string stored at the given address.
	//
	// Set by [NewConfig] to a direct memory reader. Tests override it to
	// decode synthetic blobs without fabricating machine addresses.
	DerefUTF16 DerefUTF16

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Layout is the byte-offset profile used to decode the
	// connection-parameter blob.
	//
	// Set by [NewConfig] to [Layout64].
	Layout *Layout

	// Logger is the [SLogger] used for structured logging.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// PacketSize is the packet size assigned to new sessions.
	//
	// Set by [NewConfig] to [DefaultPacketSize].
	PacketSize uint32

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		DNSServer:     netip.AddrPort{},
		DerefUTF16:    derefUTF16Memory,
		ErrClassifier: DefaultErrClassifier,
		Layout:        Layout64(),
		Logger:        DefaultSLogger(),
		PacketSize:    DefaultPacketSize,
		TimeNow:       time.Now,
	}
}
