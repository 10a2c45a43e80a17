package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeFieldsAndValidate(t *testing.T) {
	const frameSize, frameCount = 128, 8
	region := make([]byte, HeaderSize+frameSize*frameCount)

	require.NoError(t, InitializeFields(region, frameSize, frameCount))
	require.NoError(t, ValidateInvariants(region, len(region)))

	h, err := View(region)
	require.NoError(t, err)
	assert.Equal(t, Magic, h.Magic())
	assert.Equal(t, ProtocolVersion, h.Version())
	assert.Equal(t, uint32(frameSize), h.FrameSize())
	assert.Equal(t, uint32(frameCount), h.FrameCount())
	assert.Equal(t, uint64(0), h.LoadWriteIndex())
}

// P8: header invariant failures are reported and slots are never read.
func TestValidateInvariantsRejectsBadMagic(t *testing.T) {
	region := make([]byte, HeaderSize+128*8)
	require.NoError(t, InitializeFields(region, 128, 8))
	region[offMagic] ^= 0xFF

	err := ValidateInvariants(region, len(region))
	assert.ErrorIs(t, err, ErrHeaderInvalid)
}

func TestValidateInvariantsRejectsWrongVersion(t *testing.T) {
	region := make([]byte, HeaderSize+128*8)
	require.NoError(t, InitializeFields(region, 128, 8))
	h, err := View(region)
	require.NoError(t, err)
	_ = h
	region[offVersion] = 9

	err = ValidateInvariants(region, len(region))
	assert.ErrorIs(t, err, ErrHeaderInvalid)
}

func TestValidateInvariantsRejectsRegionSizeMismatch(t *testing.T) {
	region := make([]byte, HeaderSize+128*8)
	require.NoError(t, InitializeFields(region, 128, 8))

	err := ValidateInvariants(region, len(region)-1)
	assert.ErrorIs(t, err, ErrRegionSizeMismatch)
}

func TestWriteIndexAtomicRoundTrip(t *testing.T) {
	region := make([]byte, HeaderSize+128*8)
	require.NoError(t, InitializeFields(region, 128, 8))
	h, err := View(region)
	require.NoError(t, err)

	h.StoreWriteIndex(42)
	assert.Equal(t, uint64(42), h.LoadWriteIndex())

	h.StoreHeartbeat(1_700_000_000_000)
	assert.Equal(t, int64(1_700_000_000_000), h.LoadHeartbeat())
}
