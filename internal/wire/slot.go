package wire

import "encoding/binary"

// Slot is a view over one fixed-size slot: SlotHeaderSize header bytes
// followed by up to (frameSize - SlotHeaderSize) payload bytes. Like
// Header, it borrows the backing array and does not own it.
type Slot struct {
	buf []byte // length == frameSize
}

// SlotAt returns a view over the slot at the given absolute index. region is
// the full mapped region, header included. frameSize/frameCount come from
// the validated header.
func SlotAt(region []byte, index uint64, frameSize, frameCount uint32) Slot {
	n := index % uint64(frameCount)
	start := uint64(HeaderSize) + n*uint64(frameSize)
	return Slot{buf: region[start : start+uint64(frameSize) : start+uint64(frameSize)]}
}

func (s Slot) Type() SlotType { return SlotType(s.buf[slotOffType]) }
func (s Slot) SetType(t SlotType) { s.buf[slotOffType] = uint8(t) }

func (s Slot) Timestamp() int64 {
	return int64(binary.LittleEndian.Uint64(s.buf[slotOffTimestamp:]))
}
func (s Slot) SetTimestamp(ms int64) {
	binary.LittleEndian.PutUint64(s.buf[slotOffTimestamp:], uint64(ms))
}

func (s Slot) SequenceNumber() uint32 {
	return binary.LittleEndian.Uint32(s.buf[slotOffSequenceNumber:])
}
func (s Slot) SetSequenceNumber(v uint32) {
	binary.LittleEndian.PutUint32(s.buf[slotOffSequenceNumber:], v)
}

func (s Slot) DataSize() uint32 { return binary.LittleEndian.Uint32(s.buf[slotOffDataSize:]) }
func (s Slot) SetDataSize(v uint32) {
	binary.LittleEndian.PutUint32(s.buf[slotOffDataSize:], v)
}

func (s Slot) CRC32() uint32 { return binary.LittleEndian.Uint32(s.buf[slotOffCRC32:]) }
func (s Slot) SetCRC32(v uint32) { binary.LittleEndian.PutUint32(s.buf[slotOffCRC32:], v) }

// Payload returns the payload region sized to DataSize. Callers must have
// already validated DataSize against FrameSize (I4).
func (s Slot) Payload() []byte { return s.buf[SlotHeaderSize : SlotHeaderSize+s.DataSize()] }

// PayloadCapacity is the maximum payload this slot can carry.
func (s Slot) PayloadCapacity() int { return len(s.buf) - SlotHeaderSize }

// Zero clears every byte of the slot (writer publish step 3, spec §4.C).
func (s Slot) Zero() {
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// crcPrefix returns the slot-header bytes preceding CRC32, the first of the
// two ranges covered by I3; SlotChecksum feeds it and Payload() into one
// running checksum to avoid an intermediate copy.
func (s Slot) crcPrefix() []byte { return s.buf[:slotOffCRC32] }
