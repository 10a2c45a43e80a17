package wire

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"strconv"
)

// Checksum computes the CRC-32 (reflected IEEE 802.3 polynomial 0xEDB88320,
// init 0xFFFFFFFF, final XOR 0xFFFFFFFF) over an arbitrary byte range. This
// is exactly hash/crc32's IEEETable; no third-party library in the example
// pack implements this incremental two-segment checksum more idiomatically
// than the standard library's Update, so it is used directly rather than
// reimplemented.
func Checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// SlotChecksum computes I3's CRC: the slot-header bytes preceding the
// stored crc32 field, concatenated with the payload bytes.
func SlotChecksum(s Slot) uint32 {
	c := crc32.NewIEEE()
	c.Write(s.crcPrefix())
	c.Write(s.Payload())
	return c.Sum32()
}

// Channel identifies a recognized waveform source.
type Channel string

const (
	ChannelECGLeadII Channel = "ECG_LEAD_II"
	ChannelPleth     Channel = "PLETH"
	ChannelResp      Channel = "RESP"
)

func validChannel(c Channel) bool {
	switch c {
	case ChannelECGLeadII, ChannelPleth, ChannelResp:
		return true
	default:
		return false
	}
}

// Vitals is the decoded form of a Vitals payload.
type Vitals struct {
	HR   int
	SpO2 int
	RR   int
}

// Waveform is the decoded form of a Waveform payload.
type Waveform struct {
	Channel          Channel
	SampleRate       int
	StartTimestampMs int64
	Values           []int
}

// EncodeVitals produces the compact JSON form `{"hr":..,"spo2":..,"rr":..}`
// with no whitespace beyond the separators shown.
func EncodeVitals(hr, spo2, rr int) []byte {
	buf := make([]byte, 0, 40)
	buf = append(buf, `{"hr":`...)
	buf = strconv.AppendInt(buf, int64(hr), 10)
	buf = append(buf, `,"spo2":`...)
	buf = strconv.AppendInt(buf, int64(spo2), 10)
	buf = append(buf, `,"rr":`...)
	buf = strconv.AppendInt(buf, int64(rr), 10)
	buf = append(buf, '}')
	return buf
}

// EncodeWaveform produces the compact JSON form for a waveform chunk. values
// is rendered as decimal integers with no whitespace beyond the separators
// shown. Returns an error if channel is not one of the recognized shapes.
func EncodeWaveform(channel Channel, sampleRate int, startTimestampMs int64, values []int) ([]byte, error) {
	if !validChannel(channel) {
		return nil, fmt.Errorf("wire: unknown waveform channel %q", channel)
	}
	buf := make([]byte, 0, 32+8*len(values))
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","sample_rate":`...)
	buf = strconv.AppendInt(buf, int64(sampleRate), 10)
	buf = append(buf, `,"start_timestamp_ms":`...)
	buf = strconv.AppendInt(buf, startTimestampMs, 10)
	buf = append(buf, `,"values":[`...)
	for i, v := range values {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(v), 10)
	}
	buf = append(buf, ']', '}')
	return buf, nil
}

// wireVitals/wireWaveform mirror the JSON shapes for decoding via
// encoding/json, which is intentionally more lenient on input formatting
// than the encoder is on output — decoders must tolerate whatever a
// cooperating writer emits, per spec §4.A's "no error is fatal" contract.
type wireVitals struct {
	HR   int `json:"hr"`
	SpO2 int `json:"spo2"`
	RR   int `json:"rr"`
}

type wireWaveform struct {
	Channel          string `json:"channel"`
	SampleRate       int    `json:"sample_rate"`
	StartTimestampMs int64  `json:"start_timestamp_ms"`
	Values           []int  `json:"values"`
}

// DecodeVitals parses a Vitals payload. payload must be exactly the slot's
// declared DataSize bytes (callers enforce that before calling in).
func DecodeVitals(payload []byte) (Vitals, error) {
	var v wireVitals
	if err := json.Unmarshal(payload, &v); err != nil {
		return Vitals{}, fmt.Errorf("wire: decode vitals: %w", err)
	}
	return Vitals{HR: v.HR, SpO2: v.SpO2, RR: v.RR}, nil
}

// DecodeWaveform parses a Waveform payload, rejecting unrecognized channels.
func DecodeWaveform(payload []byte) (Waveform, error) {
	var w wireWaveform
	if err := json.Unmarshal(payload, &w); err != nil {
		return Waveform{}, fmt.Errorf("wire: decode waveform: %w", err)
	}
	ch := Channel(w.Channel)
	if !validChannel(ch) {
		return Waveform{}, fmt.Errorf("wire: unknown waveform channel %q", w.Channel)
	}
	return Waveform{
		Channel:          ch,
		SampleRate:       w.SampleRate,
		StartTimestampMs: w.StartTimestampMs,
		Values:           w.Values,
	}, nil
}
