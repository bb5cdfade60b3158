// SPDX-License-Identifier: GPL-3.0-or-later

package sni

// IOType tags a packet with the direction it was allocated for. The tag is
// informational: the caller passes it through the packet entry points and
// this library preserves it without acting on it.
type IOType uint32

const (
	// IORead marks packets allocated for receiving.
	IORead IOType = iota

	// IOWrite marks packets allocated for sending.
	IOWrite
)

// Packet is one buffered unit of protocol data.
//
// A packet is created against a session but its buffer is independently
// addressable afterwards: releasing the session does not release its
// packets, which remains the caller's responsibility. A packet must not be
// used concurrently from multiple threads, matching the one-session-
// one-driver discipline of the protocol.
type Packet struct {
	// buf is the backing buffer. It grows when the caller supplies more
	// bytes than its capacity and never shrinks.
	buf []byte

	// dataLen is the number of meaningful bytes in buf.
	dataLen int

	// owner is the handle of the session this packet was allocated
	// against. Lookup only: it does not control the packet's lifetime.
	owner Handle

	// ioType is the direction tag supplied at allocation.
	ioType IOType
}

// NewPacket creates a packet with the given initial buffer capacity.
func NewPacket(capacity uint32, owner Handle, ioType IOType) *Packet {
	return &Packet{
		buf:    make([]byte, capacity),
		owner:  owner,
		ioType: ioType,
	}
}

// SetData copies data into the packet, growing the buffer if needed, and
// sets the data length to len(data).
func (p *Packet) SetData(data []byte) {
	if len(data) > len(p.buf) {
		p.buf = make([]byte, len(data))
	}
	copy(p.buf, data)
	p.dataLen = len(data)
}

// GetData copies min(len(out), data length) bytes into out and returns the
// number of bytes copied.
func (p *Packet) GetData(out []byte) int {
	n := min(len(out), p.dataLen)
	copy(out, p.buf[:n])
	return n
}

// Data returns the meaningful bytes of the packet. The slice aliases the
// internal buffer and is invalidated by the next SetData or Reset.
func (p *Packet) Data() []byte {
	return p.buf[:p.dataLen]
}

// DataLen returns the number of meaningful bytes in the packet.
func (p *Packet) DataLen() int {
	return p.dataLen
}

// Capacity returns the size of the backing buffer.
func (p *Packet) Capacity() int {
	return len(p.buf)
}

// Owner returns the handle of the session the packet was allocated against.
func (p *Packet) Owner() Handle {
	return p.owner
}

// Reset sets the data length to zero. The buffer keeps its capacity.
func (p *Packet) Reset() {
	p.dataLen = 0
}

// Rebind reassociates the packet with a session and direction, as the
// packet-reset entry point does when recycling a packet for another use.
func (p *Packet) Rebind(owner Handle, ioType IOType) {
	p.owner = owner
	p.ioType = ioType
}
