//go:build linux

// Package control implements the UNIX-domain bootstrap channel (component
// E): a single handshake record carrying ring-buffer geometry and an FD
// transferred via SCM_RIGHTS, after which the socket is idle except for
// shutdown and disconnect detection.
package control

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// RecordType identifies the one control record kind a connection may
// receive (Handshake) plus the graceful-shutdown sentinel.
type RecordType uint8

const (
	RecordHandshake RecordType = 0x01
	RecordShutdown  RecordType = 0x03
)

// Wire layout of the control record body (spec §6): 124 bytes, no padding
// beyond what's declared.
const (
	bodyOffType           = 0
	bodyOffReserved       = 1
	bodyOffMemfdPlaceholder = 4
	bodyOffRingBufferSize = 8
	bodyOffSocketPath     = 16

	socketPathLen = 108
	BodySize      = bodyOffSocketPath + socketPathLen // 124
)

// Body is the fixed-size control record sent by the server on accept.
type Body struct {
	Type           RecordType
	RingBufferSize uint64
	SocketPath     string // diagnostic only, spec §4.E
}

// Marshal encodes b into the 124-byte wire form. memfdFd_placeholder is
// always written as zero (spec §6, §9): the real descriptor travels only
// in the sendmsg ancillary data.
func (b Body) Marshal() ([]byte, error) {
	if len(b.SocketPath) >= socketPathLen {
		return nil, fmt.Errorf("control: socket path too long for %d-byte field: %q", socketPathLen, b.SocketPath)
	}
	buf := make([]byte, BodySize)
	buf[bodyOffType] = byte(b.Type)
	// bodyOffReserved..bodyOffMemfdPlaceholder already zero.
	binary.LittleEndian.PutUint64(buf[bodyOffRingBufferSize:], b.RingBufferSize)
	copy(buf[bodyOffSocketPath:], b.SocketPath)
	return buf, nil
}

// UnmarshalBody decodes a 124-byte control record.
func UnmarshalBody(buf []byte) (Body, error) {
	if len(buf) != BodySize {
		return Body{}, fmt.Errorf("control: record body wrong size: %d != %d", len(buf), BodySize)
	}
	pathBytes := buf[bodyOffSocketPath:BodySize]
	if n := bytes.IndexByte(pathBytes, 0); n >= 0 {
		pathBytes = pathBytes[:n]
	}
	return Body{
		Type:           RecordType(buf[bodyOffType]),
		RingBufferSize: binary.LittleEndian.Uint64(buf[bodyOffRingBufferSize:]),
		SocketPath:     string(pathBytes),
	}, nil
}
