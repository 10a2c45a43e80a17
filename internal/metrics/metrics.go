// Package metrics holds the plain, non-RPC diagnostic counters spec.md
// §4.C/§4.D call out: frames written, overrun count, CRC-fail count, and
// similar. They are incremented with sync/atomic and read via accessors —
// no global state, one instance per Writer or Reader.
package metrics

import "sync/atomic"

// Writer counters, diagnostic only (spec §4.C "Accessors for writeIndex and
// frames-written counter for diagnostics").
type Writer struct {
	framesWritten atomic.Uint64
}

func (m *Writer) IncFramesWritten() { m.framesWritten.Add(1) }
func (m *Writer) FramesWritten() uint64 { return m.framesWritten.Load() }

// Reader counters, all non-fatal data-path anomalies per spec §7.
type Reader struct {
	overruns      atomic.Uint64
	crcFailures   atomic.Uint64
	invalidSlots  atomic.Uint64
	sizeViolation atomic.Uint64
	decodeErrors  atomic.Uint64
	framesRead    atomic.Uint64
}

func (m *Reader) IncOverrun()       { m.overruns.Add(1) }
func (m *Reader) IncCRCFailure()    { m.crcFailures.Add(1) }
func (m *Reader) IncInvalidSlot()   { m.invalidSlots.Add(1) }
func (m *Reader) IncSizeViolation() { m.sizeViolation.Add(1) }
func (m *Reader) IncDecodeError()   { m.decodeErrors.Add(1) }
func (m *Reader) IncFramesRead()    { m.framesRead.Add(1) }

func (m *Reader) Overruns() uint64       { return m.overruns.Load() }
func (m *Reader) CRCFailures() uint64    { return m.crcFailures.Load() }
func (m *Reader) InvalidSlots() uint64   { return m.invalidSlots.Load() }
func (m *Reader) SizeViolations() uint64 { return m.sizeViolation.Load() }
func (m *Reader) DecodeErrors() uint64   { return m.decodeErrors.Load() }
func (m *Reader) FramesRead() uint64     { return m.framesRead.Load() }

// Snapshot is an immutable point-in-time copy suitable for logging.
type ReaderSnapshot struct {
	FramesRead     uint64
	Overruns       uint64
	CRCFailures    uint64
	InvalidSlots   uint64
	SizeViolations uint64
	DecodeErrors   uint64
}

func (m *Reader) Snapshot() ReaderSnapshot {
	return ReaderSnapshot{
		FramesRead:     m.FramesRead(),
		Overruns:       m.Overruns(),
		CRCFailures:    m.CRCFailures(),
		InvalidSlots:   m.InvalidSlots(),
		SizeViolations: m.SizeViolations(),
		DecodeErrors:   m.DecodeErrors(),
	}
}
