// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unsafe"
)

// DerefUTF16 dereferences a pointer field from the connection-parameter
// blob. It returns the UTF-16 code units stored at addr up to but not
// including the NUL terminator, and false when addr is null or does not
// resolve.
//
// The default implementation reads the caller's memory directly. Tests
// substitute a table-backed implementation so synthetic blobs need no
// machine addresses.
type DerefUTF16 func(addr uint64) ([]uint16, bool)

// derefUTF16Memory walks the caller's memory at addr until the UTF-16 NUL
// terminator. The foreign caller owns the string and guarantees it stays
// mapped for the duration of the entry-point call.
func derefUTF16Memory(addr uint64) ([]uint16, bool) {
	if addr == 0 {
		return nil, false
	}
	var out []uint16
	for off := uintptr(0); ; off += 2 {
		cu := *(*uint16)(unsafe.Pointer(uintptr(addr) + off))
		if cu == 0 {
			return out, true
		}
		out = append(out, cu)
	}
}

// ConnParams is the decoded content of a connection-parameter blob.
//
// The blob itself is foreign-owned and read-only from this package's
// perspective; decoding copies everything out of it.
type ConnParams struct {
	// ConnString is the textual connection string, empty when the
	// pointer field was null.
	ConnString string

	// HasConnString distinguishes a null pointer from an empty string.
	HasConnString bool

	// Timeout is the caller's timeout in milliseconds. Values <= 0 mean
	// no timeout override.
	Timeout int32

	// CacheFQDN is the caller-cached fully qualified host, empty when
	// absent.
	CacheFQDN string

	// CachePortText is the caller-cached port as text, empty when absent.
	CachePortText string
}

// DecodeConnParams decodes the caller-supplied blob using the given layout
// profile and pointer dereference function.
//
// Every pointer field tolerates null. The only hard failure is a blob too
// short to contain the layout's fields.
func DecodeConnParams(blob []byte, lay *Layout, deref DerefUTF16) (*ConnParams, error) {
	if len(blob) < lay.minBlobSize() {
		return nil, fmt.Errorf("%w: blob is %d bytes, layout needs %d",
			ErrOpenFailed, len(blob), lay.minBlobSize())
	}

	params := &ConnParams{}
	params.ConnString, params.HasConnString = decodeStringField(blob, lay, lay.ConnString, deref)
	params.Timeout = int32(binary.LittleEndian.Uint32(blob[lay.Timeout.Offset:]))
	params.CacheFQDN, _ = decodeStringField(blob, lay, lay.CacheFQDN, deref)
	params.CachePortText, _ = decodeStringField(blob, lay, lay.CachePort, deref)
	return params, nil
}

// decodeStringField reads a pointer field and dereferences it into a Go
// string. The second result is false when the pointer was null.
func decodeStringField(blob []byte, lay *Layout, f Field, deref DerefUTF16) (string, bool) {
	addr := decodePointer(blob, lay, f)
	units, ok := deref(addr)
	if !ok {
		return "", false
	}
	return string(utf16.Decode(units)), true
}

// decodePointer reads a pointer-width little-endian address.
func decodePointer(blob []byte, lay *Layout, f Field) uint64 {
	switch lay.PtrSize {
	case 8:
		return binary.LittleEndian.Uint64(blob[f.Offset:])
	case 4:
		return uint64(binary.LittleEndian.Uint32(blob[f.Offset:]))
	default:
		panic(fmt.Sprintf("sni: unsupported pointer width %d", lay.PtrSize))
	}
}

// Resolve applies the target-resolution policy to decoded parameters.
//
// A non-empty cached FQDN wins outright: the cached port text overrides
// the default port when numeric, and connection-string parsing is skipped
// entirely. Otherwise the connection string is parsed; when that is absent
// or malformed the open operation fails.
func (p *ConnParams) Resolve() (Target, error) {
	return resolveTarget(p.ConnString, p.HasConnString, p.CacheFQDN, p.CachePortText)
}

// resolveTarget is shared by the blob path and the direct-open path, which
// receives its connection string and DNS-cache record separately.
func resolveTarget(connString string, hasConnString bool, cacheFQDN, cachePortText string) (Target, error) {
	if fqdn := strings.TrimSpace(cacheFQDN); fqdn != "" {
		target := Target{Host: fqdn, Port: DefaultPort}
		if parsed, err := strconv.ParseUint(strings.TrimSpace(cachePortText), 10, 16); err == nil {
			target.Port = uint16(parsed)
		}
		return target, nil
	}
	if !hasConnString {
		return Target{}, fmt.Errorf("%w: no connection string and no cached host", ErrOpenFailed)
	}
	return ParseConnString(connString)
}
