//go:build linux

// Package simulator wires components A, B, C, and E into the writer-side
// process: it owns the shared-memory region and the control server, and
// drives synthetic vitals and waveform generation. Grounded on the
// teacher's coordinator.Coordinator (a top-level struct with New/Run/Close
// wired from Config, driven from cmd/ via errgroup).
package simulator

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/z-monitor/sensorcore/internal/config"
	"github.com/z-monitor/sensorcore/internal/control"
	"github.com/z-monitor/sensorcore/internal/ringio"
	"github.com/z-monitor/sensorcore/internal/shmem"
	"github.com/z-monitor/sensorcore/internal/wire"
)

const (
	vitalsInterval    = time.Second            // ~1 Hz, spec §1
	waveformRate      = 250                    // Hz, spec §1
	waveformInterval  = 100 * time.Millisecond // one chunk per tick
	waveformChunk     = waveformRate * int(waveformInterval/time.Millisecond) / 1000
	idleHeartbeatTick = 100 * time.Millisecond
)

// Simulator is the writer-side process (producer): region owner, ring
// writer, and control server.
type Simulator struct {
	cfg    *config.Config
	log    *zap.SugaredLogger
	region *shmem.Region
	writer *ringio.Writer
	server *control.Server

	waveformPhase float64
}

// New creates the memfd-backed region, initializes the ring header and
// slots, and binds the control socket. Nothing is published yet.
func New(cfg *config.Config, log *zap.SugaredLogger) (*Simulator, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	frameSize := uint32(cfg.Ring.FrameSize.Bytes())
	frameCount := cfg.Ring.FrameCount
	regionSize := wire.HeaderSize + int(frameSize)*int(frameCount)

	region, err := shmem.Create("z-monitor-sensor-ring", regionSize)
	if err != nil {
		return nil, fmt.Errorf("simulator: create shared region: %w", err)
	}

	writer, err := ringio.NewWriter(region.Bytes, frameSize, frameCount, log.Named("writer"))
	if err != nil {
		region.Close()
		return nil, fmt.Errorf("simulator: initialize ring: %w", err)
	}

	server, err := control.NewServer(cfg.SocketPath, region.FD, uint64(regionSize), log.Named("control"))
	if err != nil {
		region.Close()
		return nil, fmt.Errorf("simulator: start control server: %w", err)
	}

	return &Simulator{
		cfg:    cfg,
		log:    log,
		region: region,
		writer: writer,
		server: server,
	}, nil
}

// Close releases the control socket and unmaps the shared region.
func (s *Simulator) Close() error {
	closeErr := s.server.Close()
	if err := s.region.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	return closeErr
}

// Run drives the control server and the synthetic publish loops until ctx
// is canceled. Each loop runs on its own goroutine managed by an errgroup,
// the shape the teacher's gateway.BuiltInModuleRunner.Run uses to combine
// a background job with a server loop.
func (s *Simulator) Run(ctx context.Context) error {
	wg, ctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		return s.server.Run(ctx)
	})
	wg.Go(func() error {
		return s.runVitals(ctx)
	})
	wg.Go(func() error {
		return s.runWaveform(ctx)
	})
	wg.Go(func() error {
		return s.runIdleHeartbeat(ctx)
	})

	err := wg.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Simulator) runVitals(ctx context.Context) error {
	ticker := time.NewTicker(vitalsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			hr, spo2, rr := syntheticVitals(t)
			if err := s.writer.PublishVitals(t.UnixMilli(), hr, spo2, rr); err != nil {
				s.log.Errorw("failed to publish vitals", "error", err)
			}
		}
	}
}

func (s *Simulator) runWaveform(ctx context.Context) error {
	ticker := time.NewTicker(waveformInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			values := s.syntheticECGChunk(waveformChunk)
			err := s.writer.PublishWaveform(t.UnixMilli(), wire.ChannelECGLeadII, waveformRate, t.UnixMilli(), values)
			if err != nil {
				s.log.Errorw("failed to publish waveform", "error", err)
			}
		}
	}
}

func (s *Simulator) runIdleHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(idleHeartbeatTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			s.writer.Heartbeat(t.UnixMilli())
		}
	}
}

// syntheticVitals produces a plausible, slowly drifting vital-sign triple.
func syntheticVitals(t time.Time) (hr, spo2, rr int) {
	phase := float64(t.UnixMilli()%10000) / 10000 * 2 * math.Pi
	hr = 70 + int(4*math.Sin(phase))
	spo2 = 97 + int(math.Round(math.Sin(phase/3)))
	rr = 15 + int(math.Round(math.Sin(phase/2)))
	return hr, spo2, rr
}

// syntheticECGChunk produces n integer samples continuing the generator's
// running phase, so consecutive chunks form a continuous waveform.
func (s *Simulator) syntheticECGChunk(n int) []int {
	values := make([]int, n)
	const step = 2 * math.Pi / waveformRate
	for i := range values {
		values[i] = int(1000 * math.Sin(s.waveformPhase))
		s.waveformPhase += step
	}
	return values
}
