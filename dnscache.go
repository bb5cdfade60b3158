// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"net/netip"
	"sync"
	"time"
)

// dnsCache is the in-process map from host names to previously resolved
// addresses. It is the library-side complement of the caller-supplied
// cached FQDN: the caller's cache always wins, this one only accelerates
// repeated opens against the same logical target.
//
// Entries are overwritten by newer resolutions and invalidated when a
// connect to the cached address fails, so a stale address cannot wedge
// subsequent opens.
type dnsCache struct {
	mu      sync.Mutex
	entries map[string]dnsCacheEntry
}

type dnsCacheEntry struct {
	addr netip.Addr
	t    time.Time
}

func newDNSCache() *dnsCache {
	return &dnsCache{entries: make(map[string]dnsCacheEntry)}
}

// Get returns the cached address for host, if any.
func (dc *dnsCache) Get(host string) (netip.Addr, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	entry, ok := dc.entries[host]
	return entry.addr, ok
}

// Put records a resolution for host.
func (dc *dnsCache) Put(host string, addr netip.Addr, now time.Time) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.entries[host] = dnsCacheEntry{addr: addr, t: now}
}

// Invalidate drops the entry for host, if any.
func (dc *dnsCache) Invalidate(host string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	delete(dc.entries, host)
}
