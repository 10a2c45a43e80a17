//go:build linux

package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyMarshalUnmarshalRoundTrip(t *testing.T) {
	body := Body{
		Type:           RecordHandshake,
		RingBufferSize: 4096*64 + 48,
		SocketPath:     "/tmp/z-monitor-sensor.sock",
	}

	buf, err := body.Marshal()
	require.NoError(t, err)
	assert.Len(t, buf, BodySize)

	got, err := UnmarshalBody(buf)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestBodyMarshalShutdownHasNoPath(t *testing.T) {
	body := Body{Type: RecordShutdown}
	buf, err := body.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalBody(buf)
	require.NoError(t, err)
	assert.Equal(t, RecordShutdown, got.Type)
	assert.Equal(t, uint64(0), got.RingBufferSize)
	assert.Empty(t, got.SocketPath)
}

// The memfd FD never travels as payload bytes (spec §6, §9); Marshal must
// leave the reserved/placeholder prefix before ringBufferSize at zero.
func TestMarshalPlaceholderAlwaysZero(t *testing.T) {
	body := Body{Type: RecordHandshake, RingBufferSize: 1, SocketPath: "x"}
	buf, err := body.Marshal()
	require.NoError(t, err)

	for i := bodyOffReserved; i < bodyOffRingBufferSize; i++ {
		assert.Zerof(t, buf[i], "byte %d of reserved/placeholder region must be zero", i)
	}
}

func TestMarshalRejectsOversizedSocketPath(t *testing.T) {
	long := make([]byte, socketPathLen)
	for i := range long {
		long[i] = 'a'
	}
	body := Body{Type: RecordHandshake, SocketPath: string(long)}
	_, err := body.Marshal()
	assert.Error(t, err)
}

func TestUnmarshalRejectsWrongSize(t *testing.T) {
	_, err := UnmarshalBody(make([]byte, BodySize-1))
	assert.Error(t, err)
}

func TestUnmarshalTrimsTrailingNulPadding(t *testing.T) {
	buf := make([]byte, BodySize)
	buf[bodyOffType] = byte(RecordHandshake)
	copy(buf[bodyOffSocketPath:], "/tmp/short.sock")

	got, err := UnmarshalBody(buf)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/short.sock", got.SocketPath)
}
