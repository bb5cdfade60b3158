// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import "sync"

// Handle is an opaque reference to a live session or packet.
//
// The low 32 bits index a registry slot; the high 32 bits carry the slot's
// generation, which starts at 1 and is bumped on every release. Handle 0 is
// therefore never issued and always invalid. A released handle never
// resolves again, even after its slot is reused for a new object.
type Handle uint64

// objectKind tags which handle space a registry slot belongs to.
//
// Sessions and packets share one arena, so a handle is unambiguous even
// when misused across spaces: a lookup in the wrong space reports not
// found instead of returning an object of the wrong kind.
type objectKind uint8

const (
	kindConn objectKind = iota + 1
	kindPacket
)

// Registry is the process-wide mapping from opaque handles to live
// sessions and packets.
//
// It is safe for concurrent use from any number of caller threads,
// including threads unknown to the runtime until their first call.
// Entries are added on allocation and removed on explicit release,
// never implicitly.
type Registry struct {
	mu    sync.Mutex
	slots []regSlot
	free  []uint32
}

// regSlot is one arena entry. A slot outlives the objects stored in it:
// its generation survives release so stale handles can be detected.
type regSlot struct {
	value any
	gen   uint32
	kind  objectKind
	live  bool
}

// NewRegistry creates an empty [*Registry].
func NewRegistry() *Registry {
	return &Registry{
		slots: make([]regSlot, 0, 64),
		free:  make([]uint32, 0, 16),
	}
}

// AllocConn stores a session and returns a fresh handle. It never fails.
func (r *Registry) AllocConn(c *Conn) Handle {
	return r.alloc(kindConn, c)
}

// AllocPacket stores a packet and returns a fresh handle. It never fails.
func (r *Registry) AllocPacket(p *Packet) Handle {
	return r.alloc(kindPacket, p)
}

func (r *Registry) alloc(kind objectKind, value any) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, regSlot{})
		idx = uint32(len(r.slots) - 1)
	}

	slot := &r.slots[idx]
	slot.gen++
	if slot.gen == 0 {
		// Generation wrapped after ~4G reuses of this slot; skip zero so
		// the packed handle can never be 0.
		slot.gen = 1
	}
	slot.kind = kind
	slot.value = value
	slot.live = true

	return Handle(uint64(slot.gen)<<32 | uint64(idx))
}

// Conn resolves a handle in the session space.
func (r *Registry) Conn(h Handle) (*Conn, bool) {
	value, ok := r.lookup(h, kindConn)
	if !ok {
		return nil, false
	}
	return value.(*Conn), true
}

// Packet resolves a handle in the packet space.
func (r *Registry) Packet(h Handle) (*Packet, bool) {
	value, ok := r.lookup(h, kindPacket)
	if !ok {
		return nil, false
	}
	return value.(*Packet), true
}

func (r *Registry) lookup(h Handle, kind objectKind) (any, bool) {
	idx, gen := uint32(h), uint32(h>>32)

	r.mu.Lock()
	defer r.mu.Unlock()

	if int(idx) >= len(r.slots) {
		return nil, false
	}
	slot := &r.slots[idx]
	if !slot.live || slot.gen != gen || slot.kind != kind {
		return nil, false
	}
	return slot.value, true
}

// Release removes the object identified by h from the registry.
//
// Releasing an unknown, stale, or already-released handle is a no-op, not
// an error. The removal is atomic with respect to concurrent lookups: a
// lookup either observes the live entry or not-found, never a partially
// destroyed one.
func (r *Registry) Release(h Handle) {
	idx, gen := uint32(h), uint32(h>>32)

	r.mu.Lock()
	defer r.mu.Unlock()

	if int(idx) >= len(r.slots) {
		return
	}
	slot := &r.slots[idx]
	if !slot.live || slot.gen != gen {
		return
	}
	slot.live = false
	slot.value = nil
	slot.gen++
	r.free = append(r.free, idx)
}

// Len returns the number of live entries across both handle spaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for i := range r.slots {
		if r.slots[i].live {
			count++
		}
	}
	return count
}
