//go:build linux

package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Server is the writer-side control endpoint (spec §4.E). It listens on a
// UNIX-domain path, and on every accept sends exactly one handshake record
// carrying the ring's memfd via SCM_RIGHTS. After that the connection is
// only used to detect client disconnect; the server never sends a second
// handshake on the same connection.
type Server struct {
	path     string
	fd       int
	ringSize uint64
	log      *zap.SugaredLogger

	listener *net.UnixListener

	mu      sync.Mutex
	clients map[*net.UnixConn]struct{}
}

// NewServer removes any stale socket at path and binds a new listening
// endpoint. fd is the ring buffer's memfd; ringSize is the total mapped
// region size in bytes (spec §6: header + frameSize*frameCount).
func NewServer(path string, fd int, ringSize uint64, log *zap.SugaredLogger) (*Server, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("control: removing stale socket %q: %w", path, err)
	}
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("control: resolve %q: %w", path, err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("control: listen %q: %w", path, err)
	}
	return &Server{
		path:     path,
		fd:       fd,
		ringSize: ringSize,
		log:      log,
		listener: ln,
		clients:  make(map[*net.UnixConn]struct{}),
	}, nil
}

// Run accepts clients and performs the handshake with each until ctx is
// canceled, at which point it sends a graceful Shutdown record to every
// connected client, closes the listener, removes the socket file, and
// returns nil.
func (s *Server) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.listener.Close()
		case <-done:
		}
	}()

	var acceptErr error
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			acceptErr = err
			break
		}
		go s.handshake(conn)
	}

	s.shutdownClients()
	os.Remove(s.path)

	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(acceptErr, net.ErrClosed) {
		return nil
	}
	return acceptErr
}

func (s *Server) handshake(conn *net.UnixConn) {
	body := Body{Type: RecordHandshake, RingBufferSize: s.ringSize, SocketPath: s.path}
	buf, err := body.Marshal()
	if err != nil {
		s.log.Errorw("failed to marshal handshake body", "error", err)
		conn.Close()
		return
	}
	oob := unix.UnixRights(s.fd)

	// FD passing requires at least one byte of regular payload in the same
	// sendmsg call as the ancillary data (spec §4.E); buf unconditionally
	// satisfies that.
	if _, _, err := conn.WriteMsgUnix(buf, oob, nil); err != nil {
		s.log.Warnw("handshake send failed, dropping client", "error", err)
		conn.Close()
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	s.watchDisconnect(conn)
}

// watchDisconnect blocks on reads from conn purely to notice when the
// client goes away; the control channel carries no further data plane
// traffic after the handshake (spec §4.E).
func (s *Server) watchDisconnect(conn *net.UnixConn) {
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) shutdownClients() {
	body := Body{Type: RecordShutdown}
	buf, err := body.Marshal()
	if err != nil {
		s.log.Errorw("failed to marshal shutdown body", "error", err)
		return
	}

	s.mu.Lock()
	conns := make([]*net.UnixConn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.clients = make(map[*net.UnixConn]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		if _, err := c.Write(buf); err != nil {
			s.log.Debugw("shutdown notice failed for a client", "error", err)
		}
		c.Close()
	}
}

// Close stops accepting new connections. Prefer canceling the context
// passed to Run, which also notifies connected clients.
func (s *Server) Close() error {
	return s.listener.Close()
}
