// Package ringio implements the writer and reader halves of the ring
// buffer protocol (spec §4.C, §4.D): publish/poll logic layered on the POD
// views in internal/wire and the mapped bytes from internal/shmem.
package ringio

import "github.com/z-monitor/sensorcore/internal/wire"

// Frame is the poll-returning tagged union spec.md §9's design notes call
// "friendlier to systems languages without virtual dispatch" — the
// alternative to a two-method callback interface. Poll returns one of
// these on success.
type Frame struct {
	Kind           wire.SlotType
	Timestamp      int64
	SequenceNumber uint32
	Vitals         wire.Vitals
	Waveform       wire.Waveform
}
