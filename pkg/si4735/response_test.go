package si4735

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseRSQ(t *testing.T) {
	r := Response{0x80, 0x00, 0x09, 0x80, 0x40, 0x1E, 0x00, 0xFE}

	assert.True(t, r.ClearToSend())
	assert.False(t, r.HasError())
	assert.True(t, r.Valid())
	assert.True(t, r.SoftMute())
	assert.True(t, r.FMStereo())
	assert.Equal(t, byte(0), r.StereoBlend())
	assert.Equal(t, byte(0x40), r.RSSI())
	assert.Equal(t, byte(0x1E), r.SNR())
	assert.Equal(t, int8(-2), r.FrequencyOffset())
}

func TestResponseTuneStatus(t *testing.T) {
	r := Response{0x81, 0x81, 0x03, 0xF0, 0x20, 0x08, 0x01, 0x2C}

	assert.True(t, r.STCInterrupt())
	assert.True(t, r.BandLimit())
	assert.True(t, r.TuneValid())
	assert.Equal(t, uint16(1008), r.Frequency())
	assert.Equal(t, uint16(0x012C), r.AntennaCapacitance(ModeAM))
	assert.Equal(t, uint16(0x2C), r.AntennaCapacitance(ModeFM))
}

func TestResponseRevision(t *testing.T) {
	r := Response{0x80, 0x23, '6', '0', 0x12, 0x34, '2', '0', 'D'}

	assert.Equal(t, byte(0x23), r.PartNumber())
	assert.Equal(t, byte('6'), r.FirmwareMajor())
	assert.Equal(t, uint16(0x1234), r.PatchID())
	assert.Equal(t, byte('D'), r.ChipRevision())
}

func TestResponseRDS(t *testing.T) {
	r := Response{0x84, 0x05, 0x01, 0x02, 0xD3, 0xC2, 0x04, 0x00, 0x11, 0x22, 0x33, 0x44, 0x6C}

	assert.True(t, r.RDSInterrupt())
	assert.True(t, r.RDSSynchronized())
	assert.Equal(t, byte(2), r.RDSFIFOUsed())
	assert.Equal(t, [4]uint16{0xD3C2, 0x0400, 0x1122, 0x3344}, r.RDSBlocks())
	assert.Equal(t, [4]byte{1, 2, 3, 0}, r.RDSBlockErrors())
}
