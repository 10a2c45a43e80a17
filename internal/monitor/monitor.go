//go:build linux

// Package monitor wires components A, B, D, and E into the reader-side
// process: control client, shared-region attach, poll loop, and connection
// state tracking.
package monitor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/z-monitor/sensorcore/internal/config"
	"github.com/z-monitor/sensorcore/internal/control"
	"github.com/z-monitor/sensorcore/internal/ringio"
	"github.com/z-monitor/sensorcore/internal/shmem"
	"github.com/z-monitor/sensorcore/internal/wire"
)

const pollInterval = time.Second / 60 // ~60 Hz, spec §5

// Handler receives frames and connection-state transitions, mirroring the
// callback-style upward API spec.md §6 describes as an alternative to
// poll(): on_vitals / on_waveform / on_connection_changed.
type Handler interface {
	OnVitals(timestampMs int64, hr, spo2, rr int)
	OnWaveform(timestampMs int64, channel wire.Channel, sampleRate int, startTimestampMs int64, values []int)
	OnConnectionChanged(connected bool, reason string)
}

// Monitor is the reader-side process (one of possibly several consumers).
type Monitor struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	handler Handler

	// pendingConn is a short-lived handoff slot set by the operation
	// closure inside connectWithBackoff and consumed immediately after
	// backoff.Retry returns; it is never touched concurrently.
	pendingConn *net.UnixConn
}

// New constructs a Monitor bound to cfg and handler.
func New(cfg *config.Config, handler Handler, log *zap.SugaredLogger) *Monitor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Monitor{cfg: cfg, log: log, handler: handler}
}

// Run connects to the control channel, attaches the ring, and polls until
// ctx is canceled or the producer shuts down. On producer shutdown or
// connection loss it reconnects with exponential backoff and resumes
// polling from "now" (a fresh Reader), reporting connection-state changes
// to handler throughout.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := m.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Warnw("session ended, reconnecting", "error", err)
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) error {
	conn, reader, err := m.connectWithBackoff(ctx)
	if err != nil {
		return err
	}
	m.handler.OnConnectionChanged(true, "handshake complete")

	disconnected := make(chan error, 1)
	go func() {
		disconnected <- control.WaitForShutdown(conn)
	}()
	defer conn.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	stalled := false
	metricsTicker := time.NewTicker(5 * time.Second)
	defer metricsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.handler.OnConnectionChanged(false, "shutting down")
			return nil
		case err := <-disconnected:
			reason := "producer shutdown"
			if err != nil {
				reason = fmt.Sprintf("control channel lost: %v", err)
			}
			m.handler.OnConnectionChanged(false, reason)
			return fmt.Errorf("monitor: %s", reason)
		case <-metricsTicker.C:
			snap := reader.Metrics()
			m.log.Infow("reader counters",
				"frames_read", snap.FramesRead,
				"overruns", snap.Overruns,
				"crc_failures", snap.CRCFailures,
				"invalid_slots", snap.InvalidSlots,
				"size_violations", snap.SizeViolations,
				"decode_errors", snap.DecodeErrors,
			)
		case <-ticker.C:
			nowStalled := reader.WriterStalled(m.cfg.HeartbeatThreshold(), time.Now())
			if nowStalled != stalled {
				stalled = nowStalled
				if stalled {
					m.handler.OnConnectionChanged(false, "writer stalled")
				} else {
					m.handler.OnConnectionChanged(true, "writer resumed")
				}
			}

			for {
				frame, ok := reader.Poll()
				if !ok {
					break
				}
				m.dispatch(frame)
			}
		}
	}
}

func (m *Monitor) dispatch(frame ringio.Frame) {
	switch frame.Kind {
	case wire.SlotVitals:
		m.handler.OnVitals(frame.Timestamp, frame.Vitals.HR, frame.Vitals.SpO2, frame.Vitals.RR)
	case wire.SlotWaveform:
		m.handler.OnWaveform(frame.Timestamp, frame.Waveform.Channel, frame.Waveform.SampleRate, frame.Waveform.StartTimestampMs, frame.Waveform.Values)
	case wire.SlotHeartbeat:
		// no payload; heartbeat is already reflected in WriterStalled.
	}
}

func (m *Monitor) connectWithBackoff(ctx context.Context) (*net.UnixConn, *ringio.Reader, error) {
	operation := func() (*ringio.Reader, error) {
		conn, hs, err := control.Connect(m.cfg.SocketPath, m.cfg.HandshakeTimeout())
		if err != nil {
			return nil, err
		}
		region, err := shmem.Attach(hs.FD, int(hs.RingBufferSize))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("monitor: attach shared region: %w", err)
		}
		reader, err := ringio.Attach(region.Bytes, m.log.Named("reader"))
		if err != nil {
			region.Close()
			conn.Close()
			return nil, fmt.Errorf("monitor: %w", err)
		}
		m.pendingConn = conn
		return reader, nil
	}

	reader, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("monitor: connect: %w", err)
	}
	conn := m.pendingConn
	m.pendingConn = nil
	return conn, reader, nil
}
