package si4735

import (
	"fmt"
	"time"

	"github.com/dougsko/si4735d/pkg/logging"
)

// Device is one session with a tuner chip. It owns the interface buffer,
// the receiver mode and the power state.
//
// A Device is not safe for concurrent use. Every command runs to completion
// on the calling goroutine, including its settle delay, and nothing may touch
// the Device between the write and the receive of a command.
type Device struct {
	buf   [interfaceBufferSize]byte
	mode  ReceiverMode
	state PowerState

	strict bool
	delay  Delayer
	frame  framer
}

// Option configures a Device
type Option func(*Device)

// WithStrict enables the precondition and status checks. Commands refused by
// a check never reach the bus.
func WithStrict(strict bool) Option {
	return func(d *Device) {
		d.strict = strict
	}
}

// WithClockHalfPeriod inserts a delay before each clock edge.
func WithClockHalfPeriod(half time.Duration) Option {
	return func(d *Device) {
		d.frame.t.halfPeriod = half
	}
}

// New creates a Device on the given bus. The chip is assumed powered down.
func New(bus Bus, delay Delayer, opts ...Option) *Device {
	d := &Device{
		mode:  ModePoweredDown,
		state: StateDown,
		delay: delay,
		frame: framer{t: &transport{bus: bus, delay: delay}},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mode returns the receiver mode recorded by the last power-up.
func (d *Device) Mode() ReceiverMode {
	return d.mode
}

// State returns the power state.
func (d *Device) State() PowerState {
	return d.state
}

// Strict reports whether strict checks are enabled.
func (d *Device) Strict() bool {
	return d.strict
}

// Buffer returns a copy of the interface buffer.
func (d *Device) Buffer() [16]byte {
	return d.buf
}

// Response returns the decoder view of the interface buffer. It reflects
// the last command run; reading fields of another command yields stale data.
func (d *Device) Response() Response {
	return Response(d.buf)
}

// exec encodes cmd into the buffer, sends it, waits the settle time and
// performs the matching receive.
func (d *Device) exec(cmd Command, p params, shape func(ResponseShape) ResponseShape) error {
	spec, ok := lookup(cmd, d.mode)
	if !ok {
		return fmt.Errorf("si4735: no layout for %s in mode %s", cmd, d.mode)
	}

	b := d.buf[:writePayloadSize]
	b[0] = spec.opcode
	if spec.encode != nil {
		spec.encode(b, p)
	}
	for i := spec.length; i < writePayloadSize; i++ {
		b[i] = 0x00
	}
	d.frame.send(b)

	d.delay.Delay(BaselineSettle)
	if spec.settle > 0 {
		d.delay.Delay(spec.settle)
	}

	response := spec.response
	if shape != nil {
		response = shape(response)
	}
	switch response {
	case ResponseLong:
		d.frame.longReceive(d.buf[:])
	default:
		d.frame.shortReceive(d.buf[:])
	}

	logging.Debugf("si4735", "%s opcode=0x%02X mode=%s status=0x%02X", cmd, spec.opcode, d.mode, d.buf[0])

	if d.strict && d.buf[0]&StatusERR != 0 {
		return fmt.Errorf("%w: %s returned status 0x%02X", ErrDeviceError, cmd, d.buf[0])
	}
	return nil
}

// requireUp is the strict-mode guard for every command except power-up.
func (d *Device) requireUp(cmd Command) error {
	if d.strict && d.state != StateUp {
		return fmt.Errorf("%w: cannot run %s", ErrNotPoweredUp, cmd)
	}
	return nil
}

// PowerUp moves the chip out of power down. The low nibble of setup selects
// FM, AM or the library id query; the latter leaves the chip powered down
// with the revision data in the buffer.
func (d *Device) PowerUp(setup, audioOut byte) error {
	if d.strict && d.state == StateUp {
		return fmt.Errorf("%w: cannot run %s", ErrAlreadyPoweredUp, CmdPowerUp)
	}

	d.mode = ReceiverMode(setup & 0x0F)
	query := d.mode == ModeLibraryID

	err := d.exec(CmdPowerUp, params{setup: setup, audioOut: audioOut}, func(r ResponseShape) ResponseShape {
		if query {
			return ResponseLong
		}
		return r
	})

	if query {
		d.state = StateDown
	} else {
		d.state = StateUp
	}
	return err
}

// GetRev reads part number and revision information.
func (d *Device) GetRev() error {
	if err := d.requireUp(CmdGetRev); err != nil {
		return err
	}
	return d.exec(CmdGetRev, params{}, nil)
}

// PowerDown moves the chip to power down.
func (d *Device) PowerDown() error {
	if err := d.requireUp(CmdPowerDown); err != nil {
		return err
	}
	err := d.exec(CmdPowerDown, params{}, nil)
	d.state = StateDown
	return err
}

// SetProperty writes a 16-bit property value.
func (d *Device) SetProperty(property, value uint16) error {
	if err := d.requireUp(CmdSetProperty); err != nil {
		return err
	}
	return d.exec(CmdSetProperty, params{property: property, value: value}, nil)
}

// GetProperty requests a property value. Only the status byte is read back.
func (d *Device) GetProperty(property uint16) error {
	if err := d.requireUp(CmdGetProperty); err != nil {
		return err
	}
	return d.exec(CmdGetProperty, params{property: property}, nil)
}

// GetIntStatus refreshes the interrupt bits of the status byte.
func (d *Device) GetIntStatus() error {
	if err := d.requireUp(CmdGetIntStatus); err != nil {
		return err
	}
	return d.exec(CmdGetIntStatus, params{}, nil)
}

// TuneFreq tunes to freq (10 kHz units in FM, kHz in AM). FM sends the low
// byte of antcap only; AM sends both bytes and drops the FM-only freeze bit
// from setup.
func (d *Device) TuneFreq(freq, antcap uint16, setup byte) error {
	if err := d.requireUp(CmdTuneFreq); err != nil {
		return err
	}
	return d.exec(CmdTuneFreq, params{freq: freq, antcap: antcap, setup: setup}, nil)
}

// SeekStart starts a hardware seek. antcap is sent in AM only.
func (d *Device) SeekStart(arg1 byte, antcap uint16) error {
	if err := d.requireUp(CmdSeekStart); err != nil {
		return err
	}
	return d.exec(CmdSeekStart, params{arg1: arg1, antcap: antcap}, nil)
}

// TuneStatus reads the result of the last tune or seek.
func (d *Device) TuneStatus(arg1 byte) error {
	if err := d.requireUp(CmdTuneStatus); err != nil {
		return err
	}
	return d.exec(CmdTuneStatus, params{arg1: arg1}, nil)
}

// RSQStatus reads the received signal quality.
func (d *Device) RSQStatus(arg1 byte) error {
	if err := d.requireUp(CmdRSQStatus); err != nil {
		return err
	}
	return d.exec(CmdRSQStatus, params{arg1: arg1}, nil)
}

// RDSStatus reads RDS state and one FIFO entry. FM only.
func (d *Device) RDSStatus(arg1 byte) error {
	if err := d.requireUp(CmdRDSStatus); err != nil {
		return err
	}
	return d.exec(CmdRDSStatus, params{arg1: arg1}, nil)
}

// AGCStatus reads the AGC state and LNA gain index.
func (d *Device) AGCStatus() error {
	if err := d.requireUp(CmdAGCStatus); err != nil {
		return err
	}
	return d.exec(CmdAGCStatus, params{}, nil)
}

// AGCOverride disables the AGC and forces the LNA gain index.
func (d *Device) AGCOverride(rfAgcDis, lnaGain byte) error {
	if err := d.requireUp(CmdAGCOverride); err != nil {
		return err
	}
	return d.exec(CmdAGCOverride, params{arg1: rfAgcDis, arg2: lnaGain}, nil)
}

// GPIOCtl enables GPO1-3 as outputs.
func (d *Device) GPIOCtl(arg1 byte) error {
	if err := d.requireUp(CmdGPIOCtl); err != nil {
		return err
	}
	return d.exec(CmdGPIOCtl, params{arg1: arg1}, nil)
}

// GPIOSet sets the GPO1-3 output levels.
func (d *Device) GPIOSet(arg1 byte) error {
	if err := d.requireUp(CmdGPIOSet); err != nil {
		return err
	}
	return d.exec(CmdGPIOSet, params{arg1: arg1}, nil)
}

// ReadResponse re-reads the pending response with a long receive, without
// sending a command. It recovers fields of commands whose table entry only
// reads the status byte, such as the value of GET_PROPERTY.
func (d *Device) ReadResponse() error {
	d.frame.longReceive(d.buf[:])
	if d.strict && d.buf[0]&StatusERR != 0 {
		return fmt.Errorf("%w: response read returned status 0x%02X", ErrDeviceError, d.buf[0])
	}
	return nil
}
