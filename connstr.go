// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Target is a parsed server address: host plus TCP port.
type Target struct {
	// Host is the server host name or address literal.
	Host string

	// Port is the TCP port, defaulting to [DefaultPort].
	Port uint16
}

// errBadConnString is wrapped by all parse failures.
var errBadConnString = errors.New("sni: malformed connection string")

// ParseConnString parses a textual server specification.
//
// Accepted forms are "tcp:host,port", "host,port", and bare "host" (the
// port defaults to [DefaultPort]). The "tcp" prefix is matched case
// insensitively. Surrounding whitespace around the host and port segments
// is trimmed.
//
// Any other colon-delimited prefix ("np:", "lpc:", "admin:", ...) selects
// a transport this library does not speak and is rejected, as is an empty
// host or a non-numeric port.
func ParseConnString(s string) (Target, error) {
	rest := strings.TrimSpace(s)

	// A colon anywhere denotes a transport selector; only tcp is ours.
	if idx := strings.IndexByte(rest, ':'); idx >= 0 {
		prefix := rest[:idx]
		if !strings.EqualFold(strings.TrimSpace(prefix), "tcp") {
			return Target{}, fmt.Errorf("%w: unsupported transport %q", errBadConnString, prefix)
		}
		rest = rest[idx+1:]
	}

	host, portText, hasPort := strings.Cut(rest, ",")
	host = strings.TrimSpace(host)
	if host == "" {
		return Target{}, fmt.Errorf("%w: empty host", errBadConnString)
	}

	port := DefaultPort
	if hasPort {
		parsed, err := strconv.ParseUint(strings.TrimSpace(portText), 10, 16)
		if err != nil {
			return Target{}, fmt.Errorf("%w: bad port %q", errBadConnString, portText)
		}
		port = uint16(parsed)
	}

	return Target{Host: host, Port: port}, nil
}
