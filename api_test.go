// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFrameEchoServer starts a TCP server that echoes back every frame
// it receives, and returns its host and port.
func startFrameEchoServer(t *testing.T) (string, uint16) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				for {
					frame, err := readFrame(c)
					if err != nil {
						return
					}
					if err := writeFrame(c, frame); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", uint16(addr.Port)
}

// startSilentServer starts a TCP server that accepts connections and
// never writes anything, for exercising read timeouts.
func startSilentServer(t *testing.T) (string, uint16) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	t.Cleanup(func() {
		listener.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			conn.Close()
		}
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", uint16(addr.Port)
}

// makeTestFrame builds a well-formed frame carrying the given body.
func makeTestFrame(body string) []byte {
	frame := make([]byte, frameHeaderSize+len(body))
	buildFrameHeader(frame, uint16(len(frame)))
	copy(frame[frameHeaderSize:], body)
	return frame
}

// A full session lifecycle against a real server: open by connection
// string, allocate a packet, write a frame, read the echo back, close.
func TestShimSessionLifecycle(t *testing.T) {
	host, port := startFrameEchoServer(t)
	s := New(NewConfig())

	var handle Handle
	connString := fmt.Sprintf("tcp:%s,%d", host, port)
	status := s.Open(nil, connString, 0, &handle, false, IPPreferenceNone, nil)
	require.Equal(t, StatusOK, status)
	require.NotZero(t, handle)

	// The session is live and reports its peer port.
	require.Equal(t, StatusOK, s.CheckConnection(handle))
	var peerPort uint32
	require.Equal(t, StatusOK, s.GetInfo(handle, QueryConnPeerPort, &peerPort))
	assert.Equal(t, uint32(port), peerPort)

	// Write one frame through a packet.
	outPkt := s.PacketAllocate(handle, IOWrite)
	require.NotZero(t, outPkt)
	frame := makeTestFrame("login payload")
	require.Equal(t, StatusOK, s.PacketSetData(outPkt, frame))
	require.Equal(t, StatusOK, s.WriteSyncOverAsync(handle, outPkt))

	// Read the echo back into a fresh packet.
	var inPkt Handle
	require.Equal(t, StatusOK, s.ReadSyncOverAsync(handle, &inPkt, 5000))
	require.NotZero(t, inPkt)

	buf := make([]byte, len(frame)+16)
	var n uint32
	require.Equal(t, StatusOK, s.PacketGetDataWrapper(inPkt, buf, &n))
	assert.Equal(t, frame, buf[:n])

	// Packets outlive nothing: the caller releases them.
	s.PacketRelease(outPkt)
	s.PacketRelease(inPkt)

	// Close invalidates the handle; the second close reports it.
	require.Equal(t, StatusOK, s.Close(handle))
	assert.Equal(t, StatusInvalidParameter, s.Close(handle))
	assert.Equal(t, StatusInvalidParameter, s.CheckConnection(handle))
}

// Open zeroes the out handle first and reports open failed when the
// target is unreachable or the connection string is malformed.
func TestShimOpenFailures(t *testing.T) {
	s := New(NewConfig())

	t.Run("nil out handle", func(t *testing.T) {
		status := s.Open(nil, "tcp:127.0.0.1,1433", 0, nil, false, IPPreferenceNone, nil)
		assert.Equal(t, StatusInvalidParameter, status)
	})

	t.Run("malformed connection string", func(t *testing.T) {
		handle := Handle(0xDEAD)
		status := s.Open(nil, `np:\\.\pipe\sql\query`, 0, &handle, false, IPPreferenceNone, nil)
		assert.Equal(t, StatusOpenFailed, status)
		assert.Zero(t, handle, "out handle must be zeroed on failure")
	})

	t.Run("empty connection string and no cache", func(t *testing.T) {
		var handle Handle
		status := s.Open(nil, "", 0, &handle, false, IPPreferenceNone, nil)
		assert.Equal(t, StatusOpenFailed, status)
		assert.Zero(t, handle)
	})

	t.Run("connection refused", func(t *testing.T) {
		handle := Handle(0xDEAD)
		status := s.Open(nil, "tcp:127.0.0.1,1", 0, &handle, false, IPPreferenceNone, nil)
		assert.Equal(t, StatusOpenFailed, status)
		assert.Zero(t, handle)
	})
}

// The caller's cached DNS record takes precedence over the connection
// string.
func TestShimOpenWithDNSCacheInfo(t *testing.T) {
	host, port := startFrameEchoServer(t)
	s := New(NewConfig())

	cache := &DNSCacheInfo{
		FQDN:     host,
		PortText: strconv.Itoa(int(port)),
	}

	var handle Handle
	// The connection string points at a dead port; the cached record
	// must win.
	status := s.Open(nil, "tcp:127.0.0.1,1", 0, &handle, false, IPPreferenceNone, cache)
	require.Equal(t, StatusOK, status)
	require.NotZero(t, handle)

	conn, ok := s.registry.Conn(handle)
	require.True(t, ok)
	assert.Equal(t, host, conn.Host())
	assert.Equal(t, port, conn.Port())

	require.Equal(t, StatusOK, s.Close(handle))
}

// A consumer-supplied packet size overrides the configured one for the
// new session.
func TestShimOpenConsumerPacketSize(t *testing.T) {
	host, port := startFrameEchoServer(t)
	s := New(NewConfig())

	consumer := &ConsumerInfo{PacketSize: 512}
	var handle Handle
	connString := fmt.Sprintf("tcp:%s,%d", host, port)
	status := s.Open(consumer, connString, 0, &handle, false, IPPreferenceNone, nil)
	require.Equal(t, StatusOK, status)

	var bufSize uint32
	require.Equal(t, StatusOK, s.GetInfo(handle, QueryConnBufSize, &bufSize))
	assert.Equal(t, uint32(512), bufSize)

	require.Equal(t, StatusOK, s.Close(handle))
}

// OpenSyncEx decodes the caller blob, honors the DNS-cache precedence,
// and opens the session.
func TestShimOpenSyncEx(t *testing.T) {
	host, port := startFrameEchoServer(t)

	lay := Layout64()
	cfg := NewConfig()
	cfg.DerefUTF16 = newTableDeref(map[uint64]string{
		0x1000: fmt.Sprintf("tcp:%s,%d", host, port),
	})
	s := New(cfg)

	blob := makeBlob(lay, blobFields{
		connStringAddr: 0x1000,
		timeout:        5000,
	})

	var handle Handle
	status := s.OpenSyncEx(blob, &handle)
	require.Equal(t, StatusOK, status)
	require.NotZero(t, handle)

	require.Equal(t, StatusOK, s.CheckConnection(handle))
	require.Equal(t, StatusOK, s.Close(handle))
}

// OpenSyncEx failure paths: nil out handle, short blob, and a blob whose
// fields resolve to nothing.
func TestShimOpenSyncExFailures(t *testing.T) {
	s := New(NewConfig())
	lay := Layout64()

	t.Run("nil out handle", func(t *testing.T) {
		status := s.OpenSyncEx(makeBlob(lay, blobFields{}), nil)
		assert.Equal(t, StatusInvalidParameter, status)
	})

	t.Run("short blob", func(t *testing.T) {
		handle := Handle(0xDEAD)
		status := s.OpenSyncEx(make([]byte, 16), &handle)
		assert.Equal(t, StatusOpenFailed, status)
		assert.Zero(t, handle)
	})

	t.Run("all pointers null", func(t *testing.T) {
		handle := Handle(0xDEAD)
		status := s.OpenSyncEx(makeBlob(lay, blobFields{}), &handle)
		assert.Equal(t, StatusOpenFailed, status)
		assert.Zero(t, handle)
	})
}

// ReadSyncOverAsync reports the timeout status when the deadline fires
// before a frame arrives, and the session survives for later use.
func TestShimReadTimeout(t *testing.T) {
	host, port := startSilentServer(t)
	s := New(NewConfig())

	var handle Handle
	connString := fmt.Sprintf("tcp:%s,%d", host, port)
	require.Equal(t, StatusOK, s.Open(nil, connString, 0, &handle, false, IPPreferenceNone, nil))

	var pkt Handle
	status := s.ReadSyncOverAsync(handle, &pkt, 50)

	assert.Equal(t, StatusTimeout, status)
	assert.Zero(t, pkt, "out packet must be zeroed on failure")
	assert.Equal(t, StatusOK, s.CheckConnection(handle))

	require.Equal(t, StatusOK, s.Close(handle))
}

// Read and write entry points report invalid parameter for unknown
// handles and zero their out parameters.
func TestShimIOUnknownHandle(t *testing.T) {
	s := New(NewConfig())
	unknown := Handle(1<<32 | 7)

	pkt := Handle(0xDEAD)
	assert.Equal(t, StatusInvalidParameter, s.ReadSyncOverAsync(unknown, &pkt, 100))
	assert.Zero(t, pkt)

	assert.Equal(t, StatusInvalidParameter, s.ReadAsync(unknown, &pkt))
	assert.Equal(t, StatusInvalidParameter, s.ReadSyncOverAsync(unknown, nil, 100))

	assert.Equal(t, StatusInvalidParameter, s.WriteSyncOverAsync(unknown, unknown))
	assert.Equal(t, StatusInvalidParameter, s.WriteAsync(unknown, unknown))
}

// Packet entry points work against the registry without a live socket.
func TestShimPacketSurface(t *testing.T) {
	host, port := startFrameEchoServer(t)
	s := New(NewConfig())

	var handle Handle
	connString := fmt.Sprintf("tcp:%s,%d", host, port)
	require.Equal(t, StatusOK, s.Open(nil, connString, 0, &handle, false, IPPreferenceNone, nil))

	t.Run("allocate against unknown session", func(t *testing.T) {
		assert.Zero(t, s.PacketAllocate(Handle(1<<32|42), IORead))
	})

	t.Run("set and get data", func(t *testing.T) {
		pkt := s.PacketAllocate(handle, IOWrite)
		require.NotZero(t, pkt)

		require.Equal(t, StatusOK, s.PacketSetData(pkt, []byte("abc")))

		buf := make([]byte, 8)
		var n uint32
		require.Equal(t, StatusOK, s.PacketGetDataWrapper(pkt, buf, &n))
		assert.Equal(t, uint32(3), n)
		assert.Equal(t, []byte("abc"), buf[:n])

		s.PacketRelease(pkt)
	})

	t.Run("reset rebinds the packet", func(t *testing.T) {
		pkt := s.PacketAllocate(handle, IORead)
		require.NotZero(t, pkt)
		require.Equal(t, StatusOK, s.PacketSetData(pkt, []byte("stale")))

		require.Equal(t, StatusOK, s.PacketReset(handle, IOWrite, pkt, nil))

		var n uint32
		require.Equal(t, StatusOK, s.PacketGetDataWrapper(pkt, make([]byte, 8), &n))
		assert.Zero(t, n)

		s.PacketRelease(pkt)
	})

	t.Run("unknown packet handles", func(t *testing.T) {
		unknown := Handle(1<<32 | 99)
		assert.Equal(t, StatusInvalidParameter, s.PacketSetData(unknown, []byte("x")))
		var n uint32
		assert.Equal(t, StatusInvalidParameter, s.PacketGetDataWrapper(unknown, make([]byte, 8), &n))
		assert.Equal(t, StatusInvalidParameter, s.PacketReset(handle, IORead, unknown, nil))

		// Releasing garbage is a silent no-op.
		s.PacketRelease(unknown)
	})

	t.Run("packets survive session close", func(t *testing.T) {
		pkt := s.PacketAllocate(handle, IORead)
		require.NotZero(t, pkt)

		require.Equal(t, StatusOK, s.Close(handle))

		require.Equal(t, StatusOK, s.PacketSetData(pkt, []byte("still alive")))
		s.PacketRelease(pkt)
	})
}

// Initialize is safe to call concurrently from many goroutines; every
// call observes fully built shared state.
func TestInitializeConcurrent(t *testing.T) {
	const goroutines = 32
	var wg sync.WaitGroup

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, StatusOK, Initialize())

			// The package-level surface must be usable right away.
			var size uint32
			assert.Equal(t, StatusOK, QueryInfo(QueryConnBufSize, &size))
			assert.Equal(t, DefaultPacketSize, size)
		}()
	}
	wg.Wait()

	assert.Equal(t, StatusOK, Terminate())
}

// The package-level entry points delegate to the shared default shim.
func TestPackageLevelSurface(t *testing.T) {
	require.Equal(t, StatusOK, Initialize())

	var lastErr LastError
	assert.Equal(t, StatusOK, GetLastError(&lastErr))
	assert.Equal(t, LastError{}, lastErr)

	assert.Equal(t, StatusInvalidParameter, Close(Handle(1<<32|3)))
	assert.Equal(t, StatusInvalidParameter, CheckConnection(Handle(1<<32|3)))
	assert.Zero(t, PacketAllocate(Handle(1<<32|3), IORead))
	PacketRelease(Handle(1<<32 | 3))

	assert.Equal(t, StatusOK, Terminate())
}
