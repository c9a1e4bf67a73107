package emulator

// Default seek band limits and spacing when the properties are unset.
const (
	fmBandBottom  uint16 = 8750
	fmBandTop     uint16 = 10790
	fmSpacing     uint16 = 10
	amBandBottom  uint16 = 520
	amBandTop     uint16 = 1710
	amSpacing     uint16 = 10
	maxSeekSteps         = 4096
	propBandLow   uint16 = 0x1400
	propBandHigh  uint16 = 0x1401
	propSpacing   uint16 = 0x1402
	amPropOffset  uint16 = 0x2000
	noiseRSSI     byte   = 8
	noiseSNR      byte   = 1
	intAckArg     byte   = 0x01
	cancelArg     byte   = 0x02
	seekUpArg     byte   = 0x08
	seekWrapArg   byte   = 0x04
	rdsRecv       byte   = 0x01
	rdsSyncFound  byte   = 0x04
	rdsSynced     byte   = 0x01
	rdsBlockBInit uint16 = 0x0400
)

func (c *Chip) status() byte {
	s := statusCTS
	if c.stc {
		s |= statusSTCINT
	}
	if c.powered && c.mode == modeFM {
		if st, ok := c.station(); ok && st.PI != 0 {
			s |= statusRDSINT
		}
	}
	return s
}

func (c *Chip) fail() {
	c.response = [16]byte{}
	c.response[0] = statusCTS | statusERR
}

func (c *Chip) station() (Station, bool) {
	st, ok := c.stations[c.mode][c.freq]
	return st, ok
}

func (c *Chip) signal() Station {
	if st, ok := c.station(); ok {
		return st
	}
	return Station{RSSI: noiseRSSI, SNR: noiseSNR}
}

func (c *Chip) prop(fmID uint16, def uint16) uint16 {
	id := fmID
	if c.mode == modeAM {
		id += amPropOffset
	}
	if v, ok := c.props[id]; ok {
		return v
	}
	return def
}

func (c *Chip) band() (bottom, top, spacing uint16) {
	if c.mode == modeAM {
		return c.prop(propBandLow, amBandBottom), c.prop(propBandHigh, amBandTop), c.prop(propSpacing, amSpacing)
	}
	return c.prop(propBandLow, fmBandBottom), c.prop(propBandHigh, fmBandTop), c.prop(propSpacing, fmSpacing)
}

// autoAntcap is the capacitor value the chip settles on when asked to
// choose one itself.
func (c *Chip) autoAntcap() uint16 {
	if c.mode == modeAM {
		return c.freq/4 + 1
	}
	return c.freq/100 + 1
}

// familyMatches reports whether a mode-specific opcode belongs to the
// running receiver: 0x2x is FM, 0x4x is AM.
func (c *Chip) familyMatches(op byte) bool {
	switch op & 0xF0 {
	case 0x20:
		return c.mode == modeFM
	case 0x40:
		return c.mode == modeAM
	}
	return true
}

func (c *Chip) executeLocked(p []byte) {
	op := p[0]

	if !c.powered {
		if op != 0x01 {
			// a powered down chip does not answer
			c.response = [16]byte{}
			return
		}
		c.powerUp(p[1], p[2])
		return
	}

	if !c.familyMatches(op) {
		c.fail()
		return
	}

	c.response = [16]byte{}
	switch op {
	case 0x01:
		c.fail()
		return
	case 0x10:
		c.writeRevision()
	case 0x11:
		c.powered = false
		c.stc = false
	case 0x12:
		c.props[uint16(p[2])<<8|uint16(p[3])] = uint16(p[4])<<8 | uint16(p[5])
	case 0x13:
		v := c.props[uint16(p[2])<<8|uint16(p[3])]
		c.response[2] = byte(v >> 8)
		c.response[3] = byte(v)
	case 0x14:
	case 0x20, 0x40:
		c.freq = uint16(p[2])<<8 | uint16(p[3])
		if op == 0x20 {
			c.antcap = uint16(p[4])
		} else {
			c.antcap = uint16(p[4])<<8 | uint16(p[5])
		}
		if c.antcap == 0 {
			c.antcap = c.autoAntcap()
		}
		_, c.valid = c.station()
		c.limit = false
		c.stc = true
	case 0x21, 0x41:
		if op == 0x41 {
			c.antcap = uint16(p[4])<<8 | uint16(p[5])
		}
		if c.holdSeek {
			c.seeking = true
			c.stc = false
			break
		}
		c.seek(p[1]&seekUpArg != 0, p[1]&seekWrapArg != 0)
		if c.antcap == 0 {
			c.antcap = c.autoAntcap()
		}
		c.stc = true
	case 0x22, 0x42:
		if p[1]&cancelArg != 0 && c.seeking {
			// the seek stops where it is
			c.seeking = false
			c.valid = false
			c.stc = true
		}
		c.writeTuneStatus()
		if p[1]&intAckArg != 0 {
			c.stc = false
		}
		return
	case 0x23, 0x43:
		c.writeRSQ()
	case 0x24:
		if c.mode != modeFM {
			c.fail()
			return
		}
		c.writeRDS()
	case 0x27, 0x47:
		if c.agcOff {
			c.response[1] = 0x01
		}
		c.response[2] = c.lnaGain
	case 0x28, 0x48:
		c.agcOff = p[1]&0x01 != 0
		c.lnaGain = p[2]
	case 0x80:
		c.gpoEn = p[1]
	case 0x81:
		c.gpoLevel = p[1]
	default:
		c.fail()
		return
	}
	c.response[0] = c.status()
}

func (c *Chip) powerUp(setup, audioOut byte) {
	c.response = [16]byte{}
	switch fn := setup & 0x0F; fn {
	case modeFM, modeAM:
		c.powered = true
		c.mode = fn
		c.audioOut = audioOut
		c.stc = false
		c.response[0] = statusCTS
	case modeLib:
		// the library id query reports and stays powered down
		c.writeRevision()
		c.response[0] = statusCTS
	default:
		c.fail()
	}
}

func (c *Chip) writeRevision() {
	r := c.rev
	c.response[1] = r.PartNumber
	c.response[2] = r.FirmwareMajor
	c.response[3] = r.FirmwareMinor
	c.response[4] = byte(r.PatchID >> 8)
	c.response[5] = byte(r.PatchID)
	c.response[6] = r.ComponentMajor
	c.response[7] = r.ComponentMinor
	c.response[8] = r.ChipRevision
	if c.powered {
		return
	}
	c.response[7] = r.LibraryID
}

func (c *Chip) seek(up, wrap bool) {
	bottom, top, spacing := c.band()
	if spacing == 0 {
		spacing = 1
	}
	f := c.freq
	if f < bottom || f > top {
		f = bottom
	}
	start := f
	c.limit = false
	c.valid = false

	for i := 0; i < maxSeekSteps; i++ {
		if up {
			f += spacing
		} else {
			f -= spacing
		}
		if f > top || f < bottom {
			if !wrap {
				c.limit = true
				if up {
					f = top
				} else {
					f = bottom
				}
				break
			}
			if up {
				f = bottom
			} else {
				f = top
			}
		}
		if _, ok := c.stations[c.mode][f]; ok {
			c.valid = true
			break
		}
		if f == start {
			break
		}
	}
	c.freq = f
}

func (c *Chip) writeTuneStatus() {
	sig := c.signal()
	c.response[0] = c.status()
	if c.limit {
		c.response[1] |= 0x80
	}
	if c.valid {
		c.response[1] |= 0x01
	}
	c.response[2] = byte(c.freq >> 8)
	c.response[3] = byte(c.freq)
	c.response[4] = sig.RSSI
	c.response[5] = sig.SNR
	if c.mode == modeAM {
		c.response[6] = byte(c.antcap >> 8)
		c.response[7] = byte(c.antcap)
		return
	}
	c.response[6] = sig.Multipath
	c.response[7] = byte(c.antcap)
}

func (c *Chip) writeRSQ() {
	sig := c.signal()
	_, on := c.station()
	if on {
		c.response[2] |= 0x01
	}
	if c.mode == modeFM && sig.Stereo {
		c.response[3] = 0x80 | (sig.Blend & 0x7F)
	}
	c.response[4] = sig.RSSI
	c.response[5] = sig.SNR
	c.response[6] = sig.Multipath
	c.response[7] = byte(sig.Offset)
}

func (c *Chip) writeRDS() {
	st, ok := c.station()
	if !ok || st.PI == 0 {
		return
	}
	c.response[1] = rdsRecv | rdsSyncFound
	c.response[2] = rdsSynced
	c.response[3] = 1
	c.response[4] = byte(st.PI >> 8)
	c.response[5] = byte(st.PI)
	c.response[6] = byte(rdsBlockBInit >> 8)
	c.response[7] = byte(rdsBlockBInit & 0xFF)
}
