// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import "fmt"

// FieldKind says how a blob field's bytes are decoded.
type FieldKind uint8

const (
	// FieldPointer is a platform-pointer-sized little-endian address of a
	// NUL-terminated UTF-16 string. The address may be null.
	FieldPointer FieldKind = iota + 1

	// FieldInt32 is a signed 32-bit little-endian integer.
	FieldInt32
)

// Field describes one field of the connection-parameter blob: where it
// lives and how to decode it. Isolating this knowledge in data keeps the
// decoder's control flow free of ABI-layout arithmetic.
type Field struct {
	// Name identifies the field in errors and tests.
	Name string

	// Offset is the byte offset from the start of the blob.
	Offset int

	// Kind selects the decode function.
	Kind FieldKind
}

// Layout is the byte-offset profile of the connection-parameter blob for
// one target platform. Pointer width and field offsets are explicit
// configuration, never inferred: a different pointer width or struct
// ordering is a different Layout value, validated separately.
type Layout struct {
	// PtrSize is the platform pointer width in bytes.
	PtrSize int

	// ConnString locates the connection-string pointer.
	ConnString Field

	// Timeout locates the signed 32-bit timeout.
	Timeout Field

	// CacheFQDN locates the DNS-cache FQDN pointer.
	CacheFQDN Field

	// CachePort locates the DNS-cache port-text pointer.
	CachePort Field
}

// Layout64 returns the profile for 64-bit little-endian platforms, the
// only layout the foreign caller currently ships.
func Layout64() *Layout {
	return &Layout{
		PtrSize:    8,
		ConnString: Field{Name: "connString", Offset: 72, Kind: FieldPointer},
		Timeout:    Field{Name: "timeout", Offset: 132, Kind: FieldInt32},
		CacheFQDN:  Field{Name: "cacheFQDN", Offset: 160, Kind: FieldPointer},
		CachePort:  Field{Name: "cachePort", Offset: 184, Kind: FieldPointer},
	}
}

// fields returns the schema as a table, in blob order.
func (lay *Layout) fields() []Field {
	return []Field{lay.ConnString, lay.Timeout, lay.CacheFQDN, lay.CachePort}
}

// minBlobSize returns the smallest blob length that contains every field.
func (lay *Layout) minBlobSize() int {
	max := 0
	for _, f := range lay.fields() {
		end := f.Offset + lay.fieldWidth(f)
		if end > max {
			max = end
		}
	}
	return max
}

// fieldWidth returns the width in bytes of the given field.
func (lay *Layout) fieldWidth(f Field) int {
	switch f.Kind {
	case FieldPointer:
		return lay.PtrSize
	case FieldInt32:
		return 4
	default:
		panic(fmt.Sprintf("sni: unknown field kind %d", f.Kind))
	}
}
