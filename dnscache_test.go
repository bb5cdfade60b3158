// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Get reports a miss for unknown hosts and returns whatever Put last
// recorded.
func TestDNSCachePutGet(t *testing.T) {
	cache := newDNSCache()
	now := time.Now()

	_, ok := cache.Get("db.example.com")
	assert.False(t, ok)

	first := netip.MustParseAddr("192.0.2.10")
	cache.Put("db.example.com", first, now)

	got, ok := cache.Get("db.example.com")
	assert.True(t, ok)
	assert.Equal(t, first, got)

	// A newer resolution overwrites the old one.
	second := netip.MustParseAddr("192.0.2.20")
	cache.Put("db.example.com", second, now.Add(time.Second))

	got, ok = cache.Get("db.example.com")
	assert.True(t, ok)
	assert.Equal(t, second, got)
}

// Invalidate drops the entry and tolerates unknown hosts.
func TestDNSCacheInvalidate(t *testing.T) {
	cache := newDNSCache()
	cache.Put("db.example.com", netip.MustParseAddr("192.0.2.10"), time.Now())

	cache.Invalidate("db.example.com")

	_, ok := cache.Get("db.example.com")
	assert.False(t, ok)

	// Invalidating again is a no-op.
	cache.Invalidate("db.example.com")
	cache.Invalidate("never.seen.example.com")
}

// The cache is safe under concurrent mixed access.
func TestDNSCacheConcurrent(t *testing.T) {
	cache := newDNSCache()
	addr := netip.MustParseAddr("192.0.2.10")
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				cache.Put("db.example.com", addr, time.Now())
				cache.Get("db.example.com")
				cache.Invalidate("db.example.com")
			}
		}()
	}
	wg.Wait()
}
