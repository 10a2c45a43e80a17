// Package wire defines the on-wire layout of the shared-memory ring buffer:
// the region header, the per-slot header, and the CRC-32 used to protect
// both. The layout is POD by construction — fixed-width integers, explicit
// padding, no pointers — so that independently compiled processes mapping
// the same region agree on every byte.
package wire

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Magic identifies a region as a sensorcore ring buffer ("SMRB").
const Magic uint32 = 0x534D5242

// ProtocolVersion is the only wire version this package understands.
const ProtocolVersion uint16 = 1

// Header field byte offsets within the mapped region. HeaderSize is the
// offset of the first slot.
const (
	offMagic              = 0
	offVersion            = 4
	offReserved           = 6
	offFrameSize          = 8
	offFrameCount         = 12
	offWriteIndex         = 16 // atomic, 8-byte aligned
	offReadIndex          = 24
	offHeartbeatTimestamp = 32 // atomic, 8-byte aligned
	offCRC32              = 40
	offHeaderReserved2    = 44

	// HeaderSize is sizeof(Header); kept a multiple of 8 so the slot
	// array that follows starts 8-byte aligned.
	HeaderSize = 48
)

// Slot header field byte offsets, relative to the start of a slot.
const (
	slotOffType           = 0
	slotOffReserved       = 1
	slotOffTimestamp      = 4
	slotOffSequenceNumber = 12
	slotOffDataSize       = 16
	slotOffCRC32          = 20

	// SlotHeaderSize is sizeof(SlotHeader); payload bytes follow immediately.
	SlotHeaderSize = 24
)

// SlotType identifies the payload shape carried by a slot.
type SlotType uint8

const (
	SlotInvalid   SlotType = 0xFF
	SlotVitals    SlotType = 0x01
	SlotWaveform  SlotType = 0x02
	SlotHeartbeat SlotType = 0x03
)

func (t SlotType) String() string {
	switch t {
	case SlotInvalid:
		return "invalid"
	case SlotVitals:
		return "vitals"
	case SlotWaveform:
		return "waveform"
	case SlotHeartbeat:
		return "heartbeat"
	default:
		return fmt.Sprintf("slot-type(%#02x)", uint8(t))
	}
}

// Header is a view over the first HeaderSize bytes of a mapped region.
// It does not own the memory; callers obtain one via View and must keep
// the backing mapping alive for as long as the Header is in use.
type Header struct {
	buf []byte
}

// View returns a Header backed by buf[0:HeaderSize]. buf must be at least
// HeaderSize bytes and must remain valid (mapped) for the Header's lifetime.
func View(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: region too small for header: %d < %d", len(buf), HeaderSize)
	}
	return Header{buf: buf[:HeaderSize:HeaderSize]}, nil
}

func (h Header) Magic() uint32    { return binary.LittleEndian.Uint32(h.buf[offMagic:]) }
func (h Header) Version() uint16  { return binary.LittleEndian.Uint16(h.buf[offVersion:]) }
func (h Header) FrameSize() uint32  { return binary.LittleEndian.Uint32(h.buf[offFrameSize:]) }
func (h Header) FrameCount() uint32 { return binary.LittleEndian.Uint32(h.buf[offFrameCount:]) }

// ReadIndex is advisory only; the writer never consults it (spec §3).
func (h Header) ReadIndex() uint64 { return binary.LittleEndian.Uint64(h.buf[offReadIndex:]) }

// SetReadIndex updates the advisory diagnostic field. Never read by the writer.
func (h Header) SetReadIndex(v uint64) { binary.LittleEndian.PutUint64(h.buf[offReadIndex:], v) }

// InitCRC32 is the CRC computed once at Initialize time over all header
// bytes preceding it, while the atomic fields are still zero. It is informational
// only; readers must not re-validate it at runtime (spec §3, §9) because
// WriteIndex and HeartbeatTimestamp mutate continuously.
func (h Header) InitCRC32() uint32 { return binary.LittleEndian.Uint32(h.buf[offCRC32:]) }

func (h Header) writeIndexPtr() *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&h.buf[offWriteIndex]))
}

func (h Header) heartbeatPtr() *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&h.buf[offHeartbeatTimestamp]))
}

// LoadWriteIndex performs the acquire-ordered read readers synchronize on (I7).
func (h Header) LoadWriteIndex() uint64 { return h.writeIndexPtr().Load() }

// StoreWriteIndex performs the release-ordered store that publishes a frame (I7).
func (h Header) StoreWriteIndex(v uint64) { h.writeIndexPtr().Store(v) }

// LoadHeartbeat returns the last heartbeat timestamp (ms since epoch).
func (h Header) LoadHeartbeat() int64 { return int64(h.heartbeatPtr().Load()) }

// StoreHeartbeat records a heartbeat timestamp (ms since epoch).
func (h Header) StoreHeartbeat(tsMillis int64) { h.heartbeatPtr().Store(uint64(tsMillis)) }

// InitializeFields zeroes the header region and writes the fixed (non-atomic)
// fields plus an initial CRC. frameSize and frameCount must already be
// validated by the caller (see ringio.NewWriter).
func InitializeFields(buf []byte, frameSize, frameCount uint32) error {
	h, err := View(buf)
	if err != nil {
		return err
	}
	for i := range h.buf {
		h.buf[i] = 0
	}
	binary.LittleEndian.PutUint32(h.buf[offMagic:], Magic)
	binary.LittleEndian.PutUint16(h.buf[offVersion:], ProtocolVersion)
	binary.LittleEndian.PutUint16(h.buf[offReserved:], 0)
	binary.LittleEndian.PutUint32(h.buf[offFrameSize:], frameSize)
	binary.LittleEndian.PutUint32(h.buf[offFrameCount:], frameCount)
	// WriteIndex, ReadIndex, HeartbeatTimestamp are left at zero by the
	// preceding clear loop.
	binary.LittleEndian.PutUint32(h.buf[offCRC32:], Checksum(h.buf[:offCRC32]))
	return nil
}

// ValidateInvariants checks I1 and I2 against a mapped region of the given
// total size. It never inspects the atomic fields for CRC purposes.
func ValidateInvariants(buf []byte, regionSize int) error {
	h, err := View(buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHeaderInvalid, err)
	}
	if h.Magic() != Magic || h.Version() != ProtocolVersion {
		return fmt.Errorf("%w: magic=%#x version=%d", ErrHeaderInvalid, h.Magic(), h.Version())
	}
	frameSize := h.FrameSize()
	frameCount := h.FrameCount()
	if frameSize < SlotHeaderSize || frameCount < 2 {
		return fmt.Errorf("%w: frameSize=%d frameCount=%d", ErrHeaderInvalid, frameSize, frameCount)
	}
	want := HeaderSize + int(frameSize)*int(frameCount)
	if regionSize != want {
		return fmt.Errorf("%w: region=%d want=%d", ErrRegionSizeMismatch, regionSize, want)
	}
	return nil
}
