package radio

import (
	"time"

	"github.com/dougsko/si4735d/pkg/si4735"
)

// Measurement is one snapshot of the receiver
type Measurement struct {
	Band            string              `json:"band"`
	Mode            si4735.ReceiverMode `json:"mode"`
	Frequency       uint16              `json:"frequency"`
	Antcap          uint16              `json:"antcap,omitempty"` // AM only
	Valid           bool                `json:"valid"`
	BandLimit       bool                `json:"band_limit,omitempty"`
	RSSI            byte                `json:"rssi"`
	SNR             byte                `json:"snr"`
	Multipath       byte                `json:"multipath"`
	FrequencyOffset int8                `json:"frequency_offset"`
	Stereo          bool                `json:"stereo"`
	Blend           byte                `json:"blend"`
	AGCDisabled     bool                `json:"agc_disabled,omitempty"`
	LNAGain         byte                `json:"lna_gain"`
	Status          byte                `json:"status"`
	Time            time.Time           `json:"time"`
}

// FrequencyString formats the frequency the way a receiver display does
func (m Measurement) FrequencyString() string {
	return FormatFrequency(m.Mode, m.Frequency)
}

// RDSGroup is one RDS group read from the FIFO
type RDSGroup struct {
	Synchronized bool      `json:"synchronized"`
	FIFOUsed     byte      `json:"fifo_used"`
	Blocks       [4]uint16 `json:"blocks"`
	Errors       [4]byte   `json:"errors"`
}

// PI returns the program identification carried in block A
func (g RDSGroup) PI() uint16 {
	return g.Blocks[0]
}

// Revision identifies the tuner chip and its firmware
type Revision struct {
	PartNumber   string `json:"part_number"`
	Firmware     string `json:"firmware"`
	PatchID      uint16 `json:"patch_id"`
	Component    string `json:"component,omitempty"`
	ChipRevision string `json:"chip_revision"`
	LibraryID    byte   `json:"library_id,omitempty"`
}
