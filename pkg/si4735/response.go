package si4735

// Response is a decoded view of the interface buffer after a receive.
// Byte 0 is always the status byte; the meaning of the other bytes depends
// on the command that filled the buffer. Nothing here is cached.
type Response [16]byte

func (r Response) word(i int) uint16 {
	return uint16(r[i])<<8 | uint16(r[i+1])
}

// Status returns the raw status byte.
func (r Response) Status() byte { return r[0] }

// ClearToSend reports whether the chip accepts the next command.
func (r Response) ClearToSend() bool { return r[0]&StatusCTS != 0 }

// HasError reports the status ERR bit.
func (r Response) HasError() bool { return r[0]&StatusERR != 0 }

// RSQInterrupt reports the received signal quality interrupt.
func (r Response) RSQInterrupt() bool { return r[0]&StatusRSQINT != 0 }

// RDSInterrupt reports the RDS interrupt.
func (r Response) RDSInterrupt() bool { return r[0]&StatusRDSINT != 0 }

// STCInterrupt reports seek/tune complete.
func (r Response) STCInterrupt() bool { return r[0]&StatusSTCINT != 0 }

// Revision fields, filled by GET_REV and by a QLID power-up.

// PartNumber returns the last two digits of the part number.
func (r Response) PartNumber() byte { return r[1] }

// FirmwareMajor returns the firmware major revision (ASCII).
func (r Response) FirmwareMajor() byte { return r[2] }

// FirmwareMinor returns the firmware minor revision (ASCII).
func (r Response) FirmwareMinor() byte { return r[3] }

// PatchID returns the patch id.
func (r Response) PatchID() uint16 { return r.word(4) }

// ComponentMajor returns the component major revision (ASCII).
func (r Response) ComponentMajor() byte { return r[6] }

// ComponentMinor returns the component minor revision (ASCII).
func (r Response) ComponentMinor() byte { return r[7] }

// ChipRevision returns the chip revision (ASCII).
func (r Response) ChipRevision() byte { return r[8] }

// LibraryID returns the library id of a QLID power-up.
func (r Response) LibraryID() byte { return r[7] }

// PropertyValue returns the value at bytes 2-3.
func (r Response) PropertyValue() uint16 { return r.word(2) }

// Tune status fields.

// BandLimit reports that a seek hit the band limit or wrapped.
func (r Response) BandLimit() bool { return r[1]&0x80 != 0 }

// TuneValid reports a valid channel after tune or seek.
func (r Response) TuneValid() bool { return r[1]&0x01 != 0 }

// Frequency returns the tuned frequency.
func (r Response) Frequency() uint16 { return r.word(2) }

// TuneRSSI returns the RSSI captured at the end of the tune.
func (r Response) TuneRSSI() byte { return r[4] }

// TuneSNR returns the SNR captured at the end of the tune.
func (r Response) TuneSNR() byte { return r[5] }

// AntennaCapacitanceFM returns the single-byte FM antenna capacitor value.
func (r Response) AntennaCapacitanceFM() uint16 { return uint16(r[7]) }

// AntennaCapacitanceAM returns the two-byte AM antenna capacitor value.
func (r Response) AntennaCapacitanceAM() uint16 { return r.word(6) }

// AntennaCapacitance picks the layout for mode.
func (r Response) AntennaCapacitance(mode ReceiverMode) uint16 {
	if mode == ModeAM {
		return r.AntennaCapacitanceAM()
	}
	return r.AntennaCapacitanceFM()
}

// RSQ status fields.

func (r Response) BlendInterrupt() bool    { return r[1]&0x80 != 0 }
func (r Response) SNRHighInterrupt() bool  { return r[1]&0x08 != 0 }
func (r Response) SNRLowInterrupt() bool   { return r[1]&0x04 != 0 }
func (r Response) RSSIHighInterrupt() bool { return r[1]&0x02 != 0 }
func (r Response) RSSILowInterrupt() bool  { return r[1]&0x01 != 0 }

// SoftMute reports soft mute engaged.
func (r Response) SoftMute() bool { return r[2]&0x08 != 0 }

// AFCRail reports the AFC railing indicator.
func (r Response) AFCRail() bool { return r[2]&0x02 != 0 }

// Valid reports a valid channel.
func (r Response) Valid() bool { return r[2]&0x01 != 0 }

// FMStereo reports the stereo pilot.
func (r Response) FMStereo() bool { return r[3]&0x80 != 0 }

// StereoBlend returns the blend, 0 (mono) to 100 (stereo).
func (r Response) StereoBlend() byte { return r[3] & 0x7F }

// RSSI returns the signal strength in dBuV.
func (r Response) RSSI() byte { return r[4] }

// SNR returns the signal to noise ratio in dB.
func (r Response) SNR() byte { return r[5] }

// Multipath returns the multipath metric.
func (r Response) Multipath() byte { return r[6] }

// FrequencyOffset returns the signed frequency offset in kHz.
func (r Response) FrequencyOffset() int8 { return int8(r[7]) }

// RDS status fields.

func (r Response) RDSNewBlockB() bool    { return r[1]&0x20 != 0 }
func (r Response) RDSNewBlockA() bool    { return r[1]&0x10 != 0 }
func (r Response) RDSSyncFound() bool    { return r[1]&0x04 != 0 }
func (r Response) RDSSyncLost() bool     { return r[1]&0x02 != 0 }
func (r Response) RDSReceived() bool     { return r[1]&0x01 != 0 }
func (r Response) RDSGroupLost() bool    { return r[2]&0x04 != 0 }
func (r Response) RDSSynchronized() bool { return r[2]&0x01 != 0 }

// RDSFIFOUsed returns the number of groups left in the RDS FIFO.
func (r Response) RDSFIFOUsed() byte { return r[3] }

// RDSBlocks returns blocks A to D.
func (r Response) RDSBlocks() [4]uint16 {
	return [4]uint16{r.word(4), r.word(6), r.word(8), r.word(10)}
}

// RDSBlockErrors returns the corrected error counts of blocks A to D.
func (r Response) RDSBlockErrors() [4]byte {
	ble := r[12]
	return [4]byte{ble >> 6, (ble >> 4) & 0x03, (ble >> 2) & 0x03, ble & 0x03}
}

// AGC status fields.

// RFAGCDisabled reports that the RF AGC is disabled.
func (r Response) RFAGCDisabled() bool { return r[1]&0x01 != 0 }

// LNAGainIndex returns the LNA gain index for mode. FM uses 5 bits.
func (r Response) LNAGainIndex(mode ReceiverMode) byte {
	if mode == ModeAM {
		return r[2]
	}
	return r[2] & 0x1F
}
