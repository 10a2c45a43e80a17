//go:build linux

package control

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Handshake is the result of a successful client handshake: the duplicated
// ring-buffer FD and the total mapped region size.
type Handshake struct {
	FD             int
	RingBufferSize uint64
}

// Connect dials the control socket at path and waits up to timeout for the
// single incoming handshake record (spec §4.E). The client refuses any
// record whose type is not Handshake — that's a protocol violation before
// the first (and only) record has arrived.
//
// The returned net.UnixConn is kept open so the caller can later detect a
// producer shutdown by reading from it; the caller owns closing it.
func Connect(path string, timeout time.Duration) (*net.UnixConn, Handshake, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, Handshake{}, fmt.Errorf("control: resolve %q: %w", path, err)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, Handshake{}, fmt.Errorf("control: dial %q: %w", path, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, Handshake{}, fmt.Errorf("control: set read deadline: %w", err)
	}

	body, fds, err := recvRecord(conn)
	if err != nil {
		conn.Close()
		return nil, Handshake{}, err
	}

	if body.Type != RecordHandshake {
		conn.Close()
		closeAll(fds)
		return nil, Handshake{}, fmt.Errorf("control: expected handshake record, got type %#02x", body.Type)
	}
	if len(fds) != 1 {
		conn.Close()
		closeAll(fds)
		return nil, Handshake{}, fmt.Errorf("control: expected exactly one FD in handshake, got %d", len(fds))
	}

	// The handshake is a one-shot bootstrap; clear the deadline for the
	// ensuing idle disconnect-detection reads (spec §4.E).
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		conn.Close()
		unix.Close(fds[0])
		return nil, Handshake{}, fmt.Errorf("control: clear read deadline: %w", err)
	}

	return conn, Handshake{FD: fds[0], RingBufferSize: body.RingBufferSize}, nil
}

// recvRecord reads exactly one control record and the SCM_RIGHTS file
// descriptors (if any) carried alongside it.
func recvRecord(conn *net.UnixConn) (Body, []int, error) {
	buf := make([]byte, BodySize)
	oob := make([]byte, unix.CmsgSpace(4)) // space for exactly one int FD

	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return Body{}, nil, fmt.Errorf("control: recvmsg: %w", err)
	}
	if n != BodySize {
		return Body{}, nil, fmt.Errorf("control: short record: got %d bytes, want %d", n, BodySize)
	}

	body, err := UnmarshalBody(buf)
	if err != nil {
		return Body{}, nil, err
	}

	var fds []int
	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return Body{}, nil, fmt.Errorf("control: parse control message: %w", err)
		}
		for _, cmsg := range cmsgs {
			if cmsg.Header.Level != unix.SOL_SOCKET || cmsg.Header.Type != unix.SCM_RIGHTS {
				continue
			}
			parsed, err := unix.ParseUnixRights(&cmsg)
			if err != nil {
				return Body{}, nil, fmt.Errorf("control: parse unix rights: %w", err)
			}
			fds = append(fds, parsed...)
		}
	}

	return body, fds, nil
}

func closeAll(fds []int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}

// WaitForShutdown blocks on conn until the server either sends a Shutdown
// record or the connection is closed/errors, whichever happens first. It is
// intended to run on its own goroutine so the caller can treat either
// outcome as "producer gone".
func WaitForShutdown(conn *net.UnixConn) error {
	buf := make([]byte, BodySize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		if n != BodySize {
			continue
		}
		body, err := UnmarshalBody(buf)
		if err != nil {
			continue
		}
		if body.Type == RecordShutdown {
			return nil
		}
	}
}
