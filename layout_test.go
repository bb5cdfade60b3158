// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Layout64 carries the 64-bit profile's offsets and a minimum blob size
// that covers the farthest field.
func TestLayout64(t *testing.T) {
	lay := Layout64()

	assert.Equal(t, 8, lay.PtrSize)
	assert.Equal(t, 72, lay.ConnString.Offset)
	assert.Equal(t, 132, lay.Timeout.Offset)
	assert.Equal(t, 160, lay.CacheFQDN.Offset)
	assert.Equal(t, 184, lay.CachePort.Offset)

	// The cache-port pointer at 184 is the farthest field: 184 + 8.
	assert.Equal(t, 192, lay.minBlobSize())
}

// fieldWidth depends only on the field kind and the pointer width.
func TestLayoutFieldWidth(t *testing.T) {
	lay := Layout64()

	assert.Equal(t, 8, lay.fieldWidth(lay.ConnString))
	assert.Equal(t, 4, lay.fieldWidth(lay.Timeout))

	lay32 := &Layout{PtrSize: 4}
	assert.Equal(t, 4, lay32.fieldWidth(Field{Kind: FieldPointer}))
}
