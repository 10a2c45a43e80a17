package ringio

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/z-monitor/sensorcore/internal/metrics"
	"github.com/z-monitor/sensorcore/internal/wire"
)

// Writer owns a mapped region (component C). It is the sole mutator of the
// region; publish never blocks and never allocates on the hot path.
type Writer struct {
	region     []byte
	header     wire.Header
	frameSize  uint32
	frameCount uint32
	sequence   uint32
	metrics    metrics.Writer
	log        *zap.SugaredLogger
}

// NewWriter zeroes region and writes the header and every slot's type as
// Invalid (spec §4.C Initialize). region must be exactly
// HeaderSize + frameSize*frameCount bytes.
func NewWriter(region []byte, frameSize, frameCount uint32, log *zap.SugaredLogger) (*Writer, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	want := wire.HeaderSize + int(frameSize)*int(frameCount)
	if len(region) != want {
		return nil, fmt.Errorf("ringio: region size %d does not match frameSize*frameCount+header (%d): %w",
			len(region), want, wire.ErrRegionSizeMismatch)
	}
	if frameSize < wire.SlotHeaderSize || frameCount < 2 {
		return nil, fmt.Errorf("ringio: invalid geometry frameSize=%d frameCount=%d", frameSize, frameCount)
	}

	for i := range region {
		region[i] = 0
	}
	if err := wire.InitializeFields(region, frameSize, frameCount); err != nil {
		return nil, err
	}
	h, err := wire.View(region)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		region:     region,
		header:     h,
		frameSize:  frameSize,
		frameCount: frameCount,
		log:        log,
	}
	for i := uint64(0); i < uint64(frameCount); i++ {
		wire.SlotAt(region, i, frameSize, frameCount).SetType(wire.SlotInvalid)
	}
	log.Infow("ring initialized", "frame_size", frameSize, "frame_count", frameCount, "region_bytes", len(region))
	return w, nil
}

// RegionSize is the number of bytes of the mapped region this writer owns.
func (w *Writer) RegionSize() int { return len(w.region) }

// WriteIndex is the current (not-yet-observed-by-callers) write position,
// exposed for diagnostics per spec §4.C.
func (w *Writer) WriteIndex() uint64 { return w.header.LoadWriteIndex() }

// FramesWritten is the writer's local frames-published counter.
func (w *Writer) FramesWritten() uint64 { return w.metrics.FramesWritten() }

func nowMillis() int64 { return time.Now().UnixMilli() }

// Publish installs a new frame at the current write slot and advances
// writeIndex. It implements the eight-step algorithm of spec §4.C exactly.
func (w *Writer) Publish(kind wire.SlotType, timestampMs int64, payload []byte) error {
	// Cheap tamper check: magic/version are written once at Initialize and
	// never touched again by this Writer, so any change means something
	// else overwrote the header out from under us.
	if w.header.Magic() != wire.Magic || w.header.Version() != wire.ProtocolVersion {
		return fmt.Errorf("ringio: %w: magic=%#x version=%d", wire.ErrHeaderInvalid, w.header.Magic(), w.header.Version())
	}

	// Step 1: read W with acquire ordering.
	idx := w.header.LoadWriteIndex()

	// Step 2: address slot S = slotAt(W).
	slot := wire.SlotAt(w.region, idx, w.frameSize, w.frameCount)

	if len(payload) > slot.PayloadCapacity() {
		return fmt.Errorf("ringio: %w: payload=%d max=%d", wire.ErrPayloadTooLarge, len(payload), slot.PayloadCapacity())
	}

	// Step 3: zero the slot bytes.
	slot.Zero()

	// Step 4: write header fields, copy payload.
	slot.SetType(kind)
	slot.SetTimestamp(timestampMs)
	slot.SetSequenceNumber(w.sequence)
	w.sequence++
	slot.SetDataSize(uint32(len(payload)))
	copy(slot.Payload(), payload)

	// Step 5: compute and store CRC.
	slot.SetCRC32(wire.SlotChecksum(slot))

	// Step 6: release-store writeIndex := W+1. This is the publication point.
	w.header.StoreWriteIndex(idx + 1)

	// Step 7: release-store heartbeatTimestamp.
	w.header.StoreHeartbeat(timestampMs)

	// Step 8: local bookkeeping.
	w.metrics.IncFramesWritten()
	return nil
}

// PublishVitals encodes and publishes a vitals frame.
func (w *Writer) PublishVitals(timestampMs int64, hr, spo2, rr int) error {
	return w.Publish(wire.SlotVitals, timestampMs, wire.EncodeVitals(hr, spo2, rr))
}

// PublishWaveform encodes and publishes a waveform chunk.
func (w *Writer) PublishWaveform(timestampMs int64, channel wire.Channel, sampleRate int, startTimestampMs int64, values []int) error {
	payload, err := wire.EncodeWaveform(channel, sampleRate, startTimestampMs, values)
	if err != nil {
		return err
	}
	return w.Publish(wire.SlotWaveform, timestampMs, payload)
}

// Heartbeat updates heartbeatTimestamp without publishing a frame (spec §4.C).
func (w *Writer) Heartbeat(timestampMs int64) {
	w.header.StoreHeartbeat(timestampMs)
}

// HeartbeatNow is a convenience wrapper using the wall clock.
func (w *Writer) HeartbeatNow() { w.Heartbeat(nowMillis()) }
