// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"unicode/utf16"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var records []slog.Record
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network]
// during construction.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
}

// newTableDeref returns a [DerefUTF16] backed by a string table, so blob
// tests can use small integer "addresses" instead of machine pointers.
// Address 0 is always a miss, like the real null pointer.
func newTableDeref(table map[uint64]string) DerefUTF16 {
	return func(addr uint64) ([]uint16, bool) {
		s, ok := table[addr]
		if addr == 0 || !ok {
			return nil, false
		}
		return utf16.Encode([]rune(s)), true
	}
}

// blobFields is the input to [makeBlob]: the raw field values written at
// the layout's offsets.
type blobFields struct {
	// connStringAddr is the address stored in the connection-string
	// pointer field (0 for null).
	connStringAddr uint64

	// timeout is the signed timeout in milliseconds.
	timeout int32

	// cacheFQDNAddr is the address stored in the cache-FQDN pointer
	// field (0 for null).
	cacheFQDNAddr uint64

	// cachePortAddr is the address stored in the cache-port pointer
	// field (0 for null).
	cachePortAddr uint64
}

// makeBlob builds a synthetic connection-parameter blob for the given
// layout, with the given field values at the layout's offsets.
func makeBlob(lay *Layout, f blobFields) []byte {
	blob := make([]byte, lay.minBlobSize())
	binary.LittleEndian.PutUint64(blob[lay.ConnString.Offset:], f.connStringAddr)
	binary.LittleEndian.PutUint32(blob[lay.Timeout.Offset:], uint32(f.timeout))
	binary.LittleEndian.PutUint64(blob[lay.CacheFQDN.Offset:], f.cacheFQDNAddr)
	binary.LittleEndian.PutUint64(blob[lay.CachePort.Offset:], f.cachePortAddr)
	return blob
}
