package ringio

import (
	"time"

	"go.uber.org/zap"

	"github.com/z-monitor/sensorcore/internal/metrics"
	"github.com/z-monitor/sensorcore/internal/wire"
)

// DefaultStallThreshold is the default writer_stalled() threshold (spec §4.D).
const DefaultStallThreshold = 250 * time.Millisecond

// Reader maps a region read-only and consumes frames in order (component D).
// A Reader owns a local read position; it never writes into shared memory.
type Reader struct {
	region     []byte
	header     wire.Header
	frameSize  uint32
	frameCount uint32
	readIndex  uint64
	metrics    metrics.Reader
	log        *zap.SugaredLogger
}

// Attach maps region (already mapped read-only by the caller, see
// internal/shmem.Attach) and validates the header (I1, I2). readIndex
// starts at the writer's current writeIndex, so the reader begins from
// "now" rather than replaying history (spec §4.D).
func Attach(region []byte, log *zap.SugaredLogger) (*Reader, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := wire.ValidateInvariants(region, len(region)); err != nil {
		return nil, err
	}
	h, err := wire.View(region)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		region:     region,
		header:     h,
		frameSize:  h.FrameSize(),
		frameCount: h.FrameCount(),
		log:        log,
	}
	r.readIndex = h.LoadWriteIndex()
	log.Infow("reader attached", "frame_size", r.frameSize, "frame_count", r.frameCount, "start_index", r.readIndex)
	return r, nil
}

// Resync sets the local read position to the writer's current writeIndex,
// discarding any frames in between, for a caller that wants to skip to
// "now". Poll's own overrun handling does not call it; it rewinds to W-1.
func (r *Reader) Resync() {
	r.readIndex = r.header.LoadWriteIndex()
}

// Poll returns the next frame in order if one is available and valid;
// otherwise it returns (Frame{}, false). Implements spec §4.D's seven-step
// algorithm. Wait-free: no syscalls, no allocation beyond the decoded
// payload's own fields.
func (r *Reader) Poll() (Frame, bool) {
	// Step 1: acquire-load W.
	w := r.header.LoadWriteIndex()

	// Step 2: nothing new.
	if r.readIndex == w {
		return Frame{}, false
	}

	// Step 3: overrun check. Rewind to the most recently written slot
	// (not all the way to W) so the next poll() picks it up; jumping all
	// the way to W would permanently skip the one frame still intact.
	lag := w - r.readIndex
	if lag > uint64(r.frameCount) {
		r.readIndex = w - 1
		r.metrics.IncOverrun()
		r.log.Warnw("reader overrun: writer lapped this reader", "lag", lag, "frame_count", r.frameCount)
		return Frame{}, false
	}

	slot := wire.SlotAt(r.region, r.readIndex, r.frameSize, r.frameCount)

	// Step 4: Invalid slot -> skip.
	if slot.Type() == wire.SlotInvalid {
		r.readIndex++
		r.metrics.IncInvalidSlot()
		return Frame{}, false
	}

	// Step 5: I4 size violation -> torn write, skip.
	if uint32(wire.SlotHeaderSize)+slot.DataSize() > r.frameSize {
		r.readIndex++
		r.metrics.IncSizeViolation()
		r.log.Warnw("reader skipped slot: size violation", "index", r.readIndex-1, "data_size", slot.DataSize())
		return Frame{}, false
	}

	// Step 6: CRC check -> torn write, skip.
	if wire.SlotChecksum(slot) != slot.CRC32() {
		r.readIndex++
		r.metrics.IncCRCFailure()
		r.log.Warnw("reader skipped slot: crc mismatch", "index", r.readIndex-1)
		return Frame{}, false
	}

	// Step 7: produce the typed frame and advance.
	frame := Frame{
		Kind:           slot.Type(),
		Timestamp:      slot.Timestamp(),
		SequenceNumber: slot.SequenceNumber(),
	}
	switch slot.Type() {
	case wire.SlotVitals:
		v, err := wire.DecodeVitals(slot.Payload())
		if err != nil {
			r.readIndex++
			r.metrics.IncDecodeError() // malformed payload despite a valid CRC: treat as a dropped frame
			r.log.Warnw("reader dropped frame: bad vitals payload", "error", err)
			return Frame{}, false
		}
		frame.Vitals = v
	case wire.SlotWaveform:
		wv, err := wire.DecodeWaveform(slot.Payload())
		if err != nil {
			r.readIndex++
			r.metrics.IncDecodeError()
			r.log.Warnw("reader dropped frame: bad waveform payload", "error", err)
			return Frame{}, false
		}
		frame.Waveform = wv
	case wire.SlotHeartbeat:
		// no payload to decode
	}

	r.readIndex++
	r.metrics.IncFramesRead()
	return frame, true
}

// WriterStalled reports whether the writer has gone silent for longer than
// threshold (spec §4.D, §5). now is injected for testability.
func (r *Reader) WriterStalled(threshold time.Duration, now time.Time) bool {
	last := r.header.LoadHeartbeat()
	if last == 0 {
		// No heartbeat published yet: Initialize leaves the field zero until
		// the first Publish or Heartbeat.
		return true
	}
	return now.UnixMilli()-last > threshold.Milliseconds()
}

// Metrics returns a point-in-time snapshot of this reader's diagnostic counters.
func (r *Reader) Metrics() metrics.ReaderSnapshot { return r.metrics.Snapshot() }

// ReadIndex is this reader's local position, exposed for diagnostics.
func (r *Reader) ReadIndex() uint64 { return r.readIndex }
