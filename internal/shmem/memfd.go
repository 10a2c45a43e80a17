//go:build linux

// Package shmem wraps the anonymous-file (memfd) and mmap primitives the
// ring buffer is built on. memfd_create is Linux-specific, so this package
// (and anything that imports it) only builds on linux.
package shmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is a single mmapped view over an anonymous file. The zero value is
// not usable; obtain one via Create or Attach.
type Region struct {
	FD       int
	Bytes    []byte
	writable bool
}

// Create makes a new memfd of exactly size bytes and maps it read/write.
// The returned Region's FD is suitable for passing to another process via
// SCM_RIGHTS; the caller owns closing it (via Close).
func Create(name string, size int) (*Region, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("shmem: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shmem: ftruncate: %w", err)
	}
	b, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shmem: mmap: %w", err)
	}
	return &Region{FD: fd, Bytes: b, writable: true}, nil
}

// Attach maps an existing fd (typically received via SCM_RIGHTS) read-only
// for exactly size bytes. The caller owns fd and is responsible for closing
// it once the Region is Closed.
func Attach(fd int, size int) (*Region, error) {
	b, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shmem: mmap (read-only): %w", err)
	}
	return &Region{FD: fd, Bytes: b, writable: false}, nil
}

// Close unmaps the region and, for regions created with Create, closes the
// underlying fd. Regions obtained via Attach leave fd ownership with the
// caller that passed it in.
func (r *Region) Close() error {
	if r == nil || r.Bytes == nil {
		return nil
	}
	err := unix.Munmap(r.Bytes)
	r.Bytes = nil
	if r.writable {
		if cerr := unix.Close(r.FD); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
