// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame layout constants. A frame is an 8-byte header followed by body
// bytes; the header's bytes 2-3 encode the total frame length (header
// included) big-endian.
const (
	frameHeaderSize = 8
	frameLenOffset  = 2
)

// readFrame reads exactly one frame from r and returns it whole (header
// plus body).
//
// A peer close before the header completes, a length field below the
// header size, or a short body read are all connection-closed conditions:
// there is no recovery at this layer.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		// Wrap the cause too so that timeouts remain detectable when the
		// read path maps errors to status codes.
		return nil, fmt.Errorf("%w: reading frame header: %w", ErrConnClosed, err)
	}

	total := int(binary.BigEndian.Uint16(header[frameLenOffset:]))
	if total < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame length %d below header size", ErrConnClosed, total)
	}

	frame := make([]byte, total)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[frameHeaderSize:]); err != nil {
		return nil, fmt.Errorf("%w: reading frame body: %w", ErrConnClosed, err)
	}
	return frame, nil
}

// writeFrame writes exactly data to w.
//
// No framing is added: the protocol layer above owns header construction,
// so data must already start with a correctly built header. The write is
// unbuffered, so returning without error means the bytes were handed to
// the transport in full.
func writeFrame(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: writing frame: %w", ErrConnClosed, err)
	}
	return nil
}

// buildFrameHeader writes a valid 8-byte header for a frame of the given
// total length into header. Exposed to tests and callers that compose
// outbound frames from scratch.
func buildFrameHeader(header []byte, total uint16) {
	clear(header[:frameHeaderSize])
	binary.BigEndian.PutUint16(header[frameLenOffset:], total)
}
