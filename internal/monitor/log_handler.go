//go:build linux

package monitor

import (
	"go.uber.org/zap"

	"github.com/z-monitor/sensorcore/internal/wire"
)

// LogHandler is a Handler that logs every callback, standing in for a real
// UI cache (spec §1's "monitor UI, recorders" collaborators). Collaborators
// outside the core implement Handler themselves; this one exists so
// cmd/monitor has something to drive out of the box.
type LogHandler struct {
	log *zap.SugaredLogger
}

// NewLogHandler returns a Handler that logs frames and connection changes.
func NewLogHandler(log *zap.SugaredLogger) *LogHandler {
	return &LogHandler{log: log}
}

func (h *LogHandler) OnVitals(timestampMs int64, hr, spo2, rr int) {
	h.log.Infow("vitals", "ts", timestampMs, "hr", hr, "spo2", spo2, "rr", rr)
}

func (h *LogHandler) OnWaveform(timestampMs int64, channel wire.Channel, sampleRate int, startTimestampMs int64, values []int) {
	h.log.Debugw("waveform", "ts", timestampMs, "channel", channel, "sample_rate", sampleRate, "samples", len(values))
}

func (h *LogHandler) OnConnectionChanged(connected bool, reason string) {
	h.log.Infow("connection state changed", "connected", connected, "reason", reason)
}
