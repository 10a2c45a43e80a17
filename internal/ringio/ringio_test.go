package ringio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-monitor/sensorcore/internal/ringio"
	"github.com/z-monitor/sensorcore/internal/wire"
)

func newRegion(frameSize uint32, frameCount uint32) []byte {
	return make([]byte, wire.HeaderSize+int(frameSize)*int(frameCount))
}

// Scenario 1: basic vitals. A reader attaches (starting from "now", spec
// §4.D) before the writer publishes, then observes the frame on its next poll.
func TestBasicVitals(t *testing.T) {
	region := newRegion(4096, 64)
	w, err := ringio.NewWriter(region, 4096, 64, nil)
	require.NoError(t, err)
	r, err := ringio.Attach(region, nil)
	require.NoError(t, err)

	require.NoError(t, w.PublishVitals(1_700_000_000_000, 72, 98, 16))
	assert.Equal(t, uint64(1), w.WriteIndex())

	frame, ok := r.Poll()
	require.True(t, ok)
	assert.Equal(t, wire.SlotVitals, frame.Kind)
	assert.Equal(t, int64(1_700_000_000_000), frame.Timestamp)
	assert.Equal(t, 72, frame.Vitals.HR)
	assert.Equal(t, 98, frame.Vitals.SpO2)
	assert.Equal(t, 16, frame.Vitals.RR)
}

// Scenario 2: waveform chunk.
func TestWaveformChunk(t *testing.T) {
	region := newRegion(4096, 64)
	w, err := ringio.NewWriter(region, 4096, 64, nil)
	require.NoError(t, err)
	r, err := ringio.Attach(region, nil)
	require.NoError(t, err)

	values := make([]int, 250)
	for i := range values {
		values[i] = i
	}
	require.NoError(t, w.PublishWaveform(2_000_000, wire.ChannelECGLeadII, 250, 2_000_000, values))

	frame, ok := r.Poll()
	require.True(t, ok)
	assert.Equal(t, wire.SlotWaveform, frame.Kind)
	assert.Equal(t, wire.ChannelECGLeadII, frame.Waveform.Channel)
	require.Len(t, frame.Waveform.Values, 250)
	assert.Equal(t, values, frame.Waveform.Values)
}

// Scenario 3 / P5: overrun.
func TestOverrun(t *testing.T) {
	region := newRegion(256, 4)
	w, err := ringio.NewWriter(region, 256, 4, nil)
	require.NoError(t, err)
	r, err := ringio.Attach(region, nil)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, w.PublishVitals(int64(i), 70, 98, 16))
	}

	// First poll after falling this far behind detects the overrun and
	// rewinds to the most recent slot, but itself returns empty.
	_, ok := r.Poll()
	assert.False(t, ok)
	assert.GreaterOrEqual(t, r.Metrics().Overruns, uint64(1))

	frame, ok := r.Poll()
	require.True(t, ok)
	assert.Equal(t, uint32(6), frame.SequenceNumber)

	_, ok = r.Poll()
	assert.False(t, ok)
}

// P4: no overrun when the reader keeps up.
func TestNoOverrunWhenKeptUp(t *testing.T) {
	const frameCount = 8
	region := newRegion(256, frameCount)
	w, err := ringio.NewWriter(region, 256, frameCount, nil)
	require.NoError(t, err)
	r, err := ringio.Attach(region, nil)
	require.NoError(t, err)

	var seen []uint32
	for i := 0; i < frameCount*3; i++ {
		require.NoError(t, w.PublishVitals(int64(i), 70, 98, 16))
		frame, ok := r.Poll()
		require.True(t, ok)
		seen = append(seen, frame.SequenceNumber)
	}

	assert.Zero(t, r.Metrics().Overruns)
	for i, seq := range seen {
		assert.Equal(t, uint32(i), seq)
	}
}

// Scenario 4 / P2: CRC flip.
func TestCRCMismatchIsSkippedThenRecovers(t *testing.T) {
	region := newRegion(256, 4)
	w, err := ringio.NewWriter(region, 256, 4, nil)
	require.NoError(t, err)
	r, err := ringio.Attach(region, nil)
	require.NoError(t, err)

	require.NoError(t, w.PublishVitals(1, 70, 98, 16))

	// Flip one payload byte in place.
	slot := wire.SlotAt(region, 0, 256, 4)
	payload := slot.Payload()
	payload[0] ^= 0xFF

	_, ok := r.Poll()
	assert.False(t, ok, "corrupted frame must not be delivered")
	assert.Equal(t, uint64(1), r.Metrics().CRCFailures)

	require.NoError(t, w.PublishVitals(2, 71, 97, 15))
	frame, ok := r.Poll()
	require.True(t, ok)
	assert.Equal(t, uint32(1), frame.SequenceNumber)
}

// P3: ordering — sequence numbers strictly increase across successful polls.
func TestSequenceNumbersStrictlyIncreasing(t *testing.T) {
	region := newRegion(256, 16)
	w, err := ringio.NewWriter(region, 256, 16, nil)
	require.NoError(t, err)
	r, err := ringio.Attach(region, nil)
	require.NoError(t, err)

	var last uint32
	for i := 0; i < 20; i++ {
		require.NoError(t, w.PublishVitals(int64(i), 70, 98, 16))
		frame, ok := r.Poll()
		require.True(t, ok)
		if i > 0 {
			assert.Greater(t, frame.SequenceNumber, last)
		}
		last = frame.SequenceNumber
	}
}

// P6: stall detection.
func TestWriterStalled(t *testing.T) {
	region := newRegion(256, 4)
	w, err := ringio.NewWriter(region, 256, 4, nil)
	require.NoError(t, err)
	r, err := ringio.Attach(region, nil)
	require.NoError(t, err)

	base := time.UnixMilli(1_700_000_000_000)
	w.Heartbeat(base.UnixMilli())

	assert.False(t, r.WriterStalled(250*time.Millisecond, base.Add(100*time.Millisecond)))
	assert.True(t, r.WriterStalled(250*time.Millisecond, base.Add(400*time.Millisecond)))

	w.Heartbeat(base.Add(500 * time.Millisecond).UnixMilli())
	assert.False(t, r.WriterStalled(250*time.Millisecond, base.Add(520*time.Millisecond)))
}

// Payload too large is a programmer error (spec §7) and is reported, not absorbed.
func TestPublishRejectsOversizedPayload(t *testing.T) {
	region := newRegion(wire.SlotHeaderSize+8, 4)
	w, err := ringio.NewWriter(region, wire.SlotHeaderSize+8, 4, nil)
	require.NoError(t, err)

	big := make([]int, 100)
	err = w.PublishWaveform(0, wire.ChannelPleth, 250, 0, big)
	assert.ErrorIs(t, err, wire.ErrPayloadTooLarge)
}

// Publish fails with ErrHeaderInvalid if something else has overwritten the
// header's magic/version bytes out from under this writer (spec §4.C).
func TestPublishRejectsTamperedHeader(t *testing.T) {
	region := newRegion(256, 4)
	w, err := ringio.NewWriter(region, 256, 4, nil)
	require.NoError(t, err)

	region[0] ^= 0xFF // corrupt the magic's first byte in place

	err = w.PublishVitals(0, 72, 98, 16)
	assert.ErrorIs(t, err, wire.ErrHeaderInvalid)
}

// Before anything is published, Poll returns empty and counts no invalid slot.
func TestPollReturnsEmptyBeforeFirstPublish(t *testing.T) {
	region := newRegion(256, 4)
	_, err := ringio.NewWriter(region, 256, 4, nil)
	require.NoError(t, err)
	r, err := ringio.Attach(region, nil)
	require.NoError(t, err)

	// Nothing published yet: readIndex == writeIndex == 0, poll returns empty
	// without touching metrics.
	_, ok := r.Poll()
	assert.False(t, ok)
	assert.Zero(t, r.Metrics().InvalidSlots)
}
