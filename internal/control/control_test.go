//go:build linux

package control

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/z-monitor/sensorcore/internal/shmem"
)

// Scenario 6 / P7: a reader connecting to the control path receives a body
// whose ringBufferSize matches the region and exactly one FD, and mapping
// that FD independently yields byte-identical contents to the writer's own
// mapping (FD identity, not a copy).
func TestHandshakeDeliversWorkingFD(t *testing.T) {
	const size = 4096
	region, err := shmem.Create("sensorcore-test-ring", size)
	require.NoError(t, err)
	defer region.Close()

	msg := []byte("hello from the writer")
	copy(region.Bytes, msg)

	sockPath := filepath.Join(t.TempDir(), "sensor.sock")
	srv, err := NewServer(sockPath, region.FD, uint64(size), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	conn, hs, err := Connect(sockPath, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, uint64(size), hs.RingBufferSize)
	assert.GreaterOrEqual(t, hs.FD, 0)

	attached, err := shmem.Attach(hs.FD, size)
	require.NoError(t, err)
	defer func() {
		attached.Close()
		unix.Close(hs.FD)
	}()

	assert.Equal(t, region.Bytes[:len(msg)], attached.Bytes[:len(msg)])

	// The mapping is the same physical pages, not a snapshot: writes made
	// after handshake are visible through the reader's independent mmap too.
	copy(region.Bytes[len(msg):], []byte(" and now a second write"))
	assert.Equal(t, region.Bytes, attached.Bytes)

	cancel()
	require.NoError(t, <-runErr)

	err = WaitForShutdown(conn)
	assert.NoError(t, err)
}

func TestConnectFailsWithoutServer(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "nobody-listening.sock")
	_, _, err := Connect(sockPath, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestConnectTimesOutWithoutHandshake(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "silent.sock")
	addr, err := net.ResolveUnixAddr("unix", sockPath)
	require.NoError(t, err)
	ln, err := net.ListenUnix("unix", addr)
	require.NoError(t, err)
	defer ln.Close()

	// A listener exists and will accept the connection at the kernel level,
	// but nothing ever calls AcceptUnix or writes a record: Connect must
	// give up once its read deadline passes rather than block forever.
	_, _, err = Connect(sockPath, 100*time.Millisecond)
	assert.Error(t, err)
}
