// Package emulator models a tuner chip at the level of its three bus lines.
//
// A Chip can stand in for real hardware anywhere a si4735.Bus is accepted.
// It decodes the control byte of every transaction, executes write payloads
// when the enable line is released and shifts response bytes out most
// significant bit first while the host clocks a read.
package emulator

import (
	"sync"
)

// Status and control values seen on the wire.
const (
	statusCTS    byte = 0x80
	statusERR    byte = 0x40
	statusRSQINT byte = 0x08
	statusRDSINT byte = 0x04
	statusSTCINT byte = 0x01

	controlWrite     byte = 0x48
	controlShortRead byte = 0x80
	controlLongRead  byte = 0xC0

	modeFM  byte = 0x00
	modeAM  byte = 0x01
	modeLib byte = 0x0F
)

type phase int

const (
	phaseIdle phase = iota
	phaseControl
	phaseWrite
	phaseRead
	phaseIgnore
)

// Transaction is one enable-bracketed exchange as seen by the chip.
type Transaction struct {
	Control   byte
	Payload   []byte // bytes clocked in after the control byte
	BytesRead int    // whole bytes clocked out to the host
}

// Station is a signal present at one frequency.
type Station struct {
	RSSI      byte
	SNR       byte
	Stereo    bool
	Blend     byte
	Offset    int8
	Multipath byte
	PI        uint16 // RDS program identification, FM only
}

// Revision is what GET_REV and the library id query report.
type Revision struct {
	PartNumber     byte
	FirmwareMajor  byte
	FirmwareMinor  byte
	PatchID        uint16
	ComponentMajor byte
	ComponentMinor byte
	ChipRevision   byte
	LibraryID      byte
}

// DefaultRevision matches an Si4735-D60.
var DefaultRevision = Revision{
	PartNumber:     0x23,
	FirmwareMajor:  '6',
	FirmwareMinor:  '0',
	PatchID:        0x0000,
	ComponentMajor: '2',
	ComponentMinor: '0',
	ChipRevision:   'D',
	LibraryID:      0x0A,
}

// Chip is an emulated tuner. All methods are safe for concurrent use.
type Chip struct {
	mu sync.Mutex

	// line state
	enabled    bool
	clock      bool
	dataIn     bool
	hostDrives bool

	// framing
	phase   phase
	shift   byte
	bits    int
	current Transaction
	out     []byte
	outBit  int
	log     []Transaction

	// device state
	powered  bool
	mode     byte
	audioOut byte
	freq     uint16
	antcap   uint16
	valid    bool
	limit    bool
	stc      bool
	holdSeek bool
	seeking  bool
	agcOff   bool
	lnaGain  byte
	gpoEn    byte
	gpoLevel byte
	props    map[uint16]uint16
	stations map[byte]map[uint16]Station
	rev      Revision
	response [16]byte
}

// Option configures a Chip
type Option func(*Chip)

// WithRevision sets the revision data the chip reports.
func WithRevision(rev Revision) Option {
	return func(c *Chip) {
		c.rev = rev
	}
}

// WithStation places a station on the FM or AM band.
func WithStation(am bool, freq uint16, st Station) Option {
	return func(c *Chip) {
		c.addStation(am, freq, st)
	}
}

// New creates a powered down chip.
func New(opts ...Option) *Chip {
	c := &Chip{
		rev: DefaultRevision,
		stations: map[byte]map[uint16]Station{
			modeFM: {},
			modeAM: {},
		},
	}
	c.resetLocked()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chip) addStation(am bool, freq uint16, st Station) {
	band := modeFM
	if am {
		band = modeAM
	}
	c.stations[band][freq] = st
}

// AddStation places a station on the FM or AM band.
func (c *Chip) AddStation(am bool, freq uint16, st Station) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addStation(am, freq, st)
}

// Reset emulates a pulse on the reset line: the chip powers down and
// forgets its properties. Recorded transactions are kept.
func (c *Chip) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Chip) resetLocked() {
	c.phase = phaseIdle
	c.powered = false
	c.mode = modeFM
	c.freq = 0
	c.antcap = 0
	c.valid = false
	c.limit = false
	c.stc = false
	c.seeking = false
	c.agcOff = false
	c.lnaGain = 0
	c.gpoEn = 0
	c.gpoLevel = 0
	c.props = make(map[uint16]uint16)
	c.response = [16]byte{}
}

// SetEnable implements the enable line. Asserting starts a transaction,
// releasing it ends one.
func (c *Chip) SetEnable(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case active && !c.enabled:
		c.phase = phaseControl
		c.shift = 0
		c.bits = 0
		c.outBit = 0
		c.out = nil
		c.current = Transaction{}
	case !active && c.enabled:
		c.finishLocked()
	}
	c.enabled = active
}

// SetClock implements the clock line. The chip samples host data on the
// rising edge and advances its output bit after it.
func (c *Chip) SetClock(high bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rising := high && !c.clock
	c.clock = high
	if !rising || !c.enabled {
		return
	}

	switch c.phase {
	case phaseControl, phaseWrite:
		c.shift <<= 1
		if c.dataIn {
			c.shift |= 1
		}
		c.bits++
		if c.bits == 8 {
			c.byteInLocked(c.shift)
			c.shift = 0
			c.bits = 0
		}
	case phaseRead:
		c.outBit++
	}
}

// SetData implements the host side of the data line.
func (c *Chip) SetData(high bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataIn = high
}

// DataOutput records that the host drives the data line.
func (c *Chip) DataOutput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostDrives = true
}

// DataInput records that the host released the data line.
func (c *Chip) DataInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostDrives = false
}

// ReadData returns the bit the chip currently drives, or low when it is
// not driving.
func (c *Chip) ReadData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hostDrives || c.phase != phaseRead {
		return false
	}
	idx := c.outBit / 8
	if idx >= len(c.out) {
		return false
	}
	return c.out[idx]&(0x80>>uint(c.outBit%8)) != 0
}

func (c *Chip) byteInLocked(b byte) {
	if c.phase == phaseControl {
		c.current.Control = b
		switch b {
		case controlWrite:
			c.phase = phaseWrite
		case controlShortRead:
			c.phase = phaseRead
			c.out = c.response[:1]
		case controlLongRead:
			c.phase = phaseRead
			c.out = c.response[:16]
		default:
			c.phase = phaseIgnore
		}
		return
	}
	c.current.Payload = append(c.current.Payload, b)
}

func (c *Chip) finishLocked() {
	if c.phase == phaseRead {
		n := c.outBit / 8
		if n > len(c.out) {
			n = len(c.out)
		}
		c.current.BytesRead = n
	}
	if c.phase == phaseWrite && len(c.current.Payload) == 8 {
		c.executeLocked(c.current.Payload)
	}
	c.log = append(c.log, c.current)
	c.phase = phaseIdle
}

// Transactions returns a copy of every transaction seen so far.
func (c *Chip) Transactions() []Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Transaction, len(c.log))
	for i, t := range c.log {
		t.Payload = append([]byte(nil), t.Payload...)
		out[i] = t
	}
	return out
}

// ClearTransactions drops the transaction log.
func (c *Chip) ClearTransactions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = nil
}

// Powered reports whether the chip is powered up.
func (c *Chip) Powered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.powered
}

// AM reports whether the chip runs the AM receiver.
func (c *Chip) AM() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode == modeAM
}

// Frequency returns the tuned frequency.
func (c *Chip) Frequency() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freq
}

// AntennaCapacitance returns the antenna capacitor value in use.
func (c *Chip) AntennaCapacitance() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.antcap
}

// Property returns a property value and whether it was ever set.
func (c *Chip) Property(id uint16) (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.props[id]
	return v, ok
}

// GPO returns the GPIO output enable and level bytes.
func (c *Chip) GPO() (enable, level byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gpoEn, c.gpoLevel
}

// AGC returns the AGC override state.
func (c *Chip) AGC() (disabled bool, lnaGain byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agcOff, c.lnaGain
}

// HoldSeek makes seeks run until cancelled with TUNE_STATUS, the way a
// chip that never finds the end of the band behaves.
func (c *Chip) HoldSeek(hold bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdSeek = hold
}

// Seeking reports whether a held seek is still running.
func (c *Chip) Seeking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seeking
}

// AudioOutput returns the audio output selection of the last power-up.
func (c *Chip) AudioOutput() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioOut
}
