package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// P1: round-trip codec for vitals and waveform payloads.
func TestEncodeDecodeVitalsRoundTrip(t *testing.T) {
	cases := []struct {
		hr, spo2, rr int
	}{
		{72, 98, 16},
		{0, 0, 0},
		{250, 100, 60},
	}
	for _, c := range cases {
		encoded := EncodeVitals(c.hr, c.spo2, c.rr)
		assert.NotContains(t, string(encoded), " ")

		decoded, err := DecodeVitals(encoded)
		require.NoError(t, err)
		assert.Equal(t, Vitals{HR: c.hr, SpO2: c.spo2, RR: c.rr}, decoded)
	}
}

func TestEncodeDecodeWaveformRoundTrip(t *testing.T) {
	values := make([]int, 250)
	for i := range values {
		values[i] = i
	}

	encoded, err := EncodeWaveform(ChannelECGLeadII, 250, 2_000_000, values)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), " ")

	decoded, err := DecodeWaveform(encoded)
	require.NoError(t, err)
	assert.Equal(t, ChannelECGLeadII, decoded.Channel)
	assert.Equal(t, 250, decoded.SampleRate)
	assert.Equal(t, int64(2_000_000), decoded.StartTimestampMs)
	require.Len(t, decoded.Values, 250)
	assert.Equal(t, values, decoded.Values)
}

func TestEncodeWaveformRejectsUnknownChannel(t *testing.T) {
	_, err := EncodeWaveform("BOGUS", 250, 0, nil)
	assert.Error(t, err)
}

func TestDecodeWaveformRejectsUnknownChannel(t *testing.T) {
	_, err := DecodeWaveform([]byte(`{"channel":"BOGUS","sample_rate":250,"start_timestamp_ms":0,"values":[]}`))
	assert.Error(t, err)
}

// Waveform decoding must reproduce every field of a larger, irregular
// sample set exactly; cmp.Diff pinpoints which field or index regressed
// instead of just reporting "not equal" on the whole struct.
func TestDecodeWaveformMatchesEncodedInputExactly(t *testing.T) {
	values := make([]int, 300)
	for i := range values {
		values[i] = (i*37 - 150) % 2048
	}

	encoded, err := EncodeWaveform(ChannelPleth, 100, 42_000, values)
	require.NoError(t, err)

	decoded, err := DecodeWaveform(encoded)
	require.NoError(t, err)

	want := Waveform{
		Channel:          ChannelPleth,
		SampleRate:       100,
		StartTimestampMs: 42_000,
		Values:           values,
	}
	if diff := cmp.Diff(want, decoded); diff != "" {
		t.Errorf("decoded waveform mismatch (-want +got):\n%s", diff)
	}
}

func TestChecksumKnownVector(t *testing.T) {
	// "123456789" is the standard CRC-32/ISO-HDLC (Ethernet) check vector.
	got := Checksum([]byte("123456789"))
	assert.Equal(t, uint32(0xCBF43926), got)
}
