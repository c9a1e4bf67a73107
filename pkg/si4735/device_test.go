package si4735

import (
	"errors"
	"testing"
	"time"

	"github.com/dougsko/si4735d/pkg/emulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects every requested delay instead of sleeping.
type recorder struct {
	delays []time.Duration
}

func (r *recorder) Delay(d time.Duration) {
	r.delays = append(r.delays, d)
}

func newTestDevice(opts ...Option) (*Device, *emulator.Chip, *recorder) {
	chip := emulator.New(
		emulator.WithStation(false, 9410, emulator.Station{RSSI: 45, SNR: 20, Stereo: true, Blend: 0x20}),
		emulator.WithStation(true, 1008, emulator.Station{RSSI: 30, SNR: 9}),
	)
	rec := &recorder{}
	return New(chip, rec, opts...), chip, rec
}

// lastWrite returns the payload of the most recent write transaction.
func lastWrite(t *testing.T, chip *emulator.Chip) []byte {
	t.Helper()
	txs := chip.Transactions()
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Control == ControlWrite {
			return txs[i].Payload
		}
	}
	t.Fatal("no write transaction recorded")
	return nil
}

func lastRead(t *testing.T, chip *emulator.Chip) emulator.Transaction {
	t.Helper()
	txs := chip.Transactions()
	require.NotEmpty(t, txs)
	return txs[len(txs)-1]
}

func TestPowerUp(t *testing.T) {
	t.Run("FM Power Up", func(t *testing.T) {
		dev, chip, rec := newTestDevice()
		require.NoError(t, dev.PowerUp(SetupXOSCEN|SetupFM, AudioAnalog))

		assert.Equal(t, []byte{0x01, 0x10, 0x05, 0, 0, 0, 0, 0}, lastWrite(t, chip))
		read := lastRead(t, chip)
		assert.Equal(t, ControlShortRead, read.Control)
		assert.Equal(t, 1, read.BytesRead)

		assert.Equal(t, ModeFM, dev.Mode())
		assert.Equal(t, StateUp, dev.State())
		assert.True(t, dev.Response().ClearToSend())
		assert.Equal(t, []time.Duration{BaselineSettle, PowerUpSettle}, rec.delays)
	})

	t.Run("Library ID Query", func(t *testing.T) {
		dev, chip, _ := newTestDevice()
		require.NoError(t, dev.PowerUp(SetupQLID, AudioRDSOnly))

		read := lastRead(t, chip)
		assert.Equal(t, ControlLongRead, read.Control)
		assert.Equal(t, 16, read.BytesRead)
		assert.Equal(t, ModeLibraryID, dev.Mode())
		assert.Equal(t, StateDown, dev.State())
		assert.Equal(t, emulator.DefaultRevision.LibraryID, dev.Response().LibraryID())
	})

	t.Run("AM Mode From Low Nibble", func(t *testing.T) {
		dev, chip, _ := newTestDevice()
		require.NoError(t, dev.PowerUp(SetupCTSIEN|SetupXOSCEN|SetupAM, AudioAnalog))
		assert.Equal(t, ModeAM, dev.Mode())
		assert.True(t, chip.AM())
	})
}

// stuckBus reads every bit high while stuck, filling the device buffer
// with 0xFF on the next receive.
type stuckBus struct {
	*emulator.Chip
	stuck bool
}

func (b *stuckBus) ReadData() bool {
	if b.stuck {
		return true
	}
	return b.Chip.ReadData()
}

func TestZeroPadding(t *testing.T) {
	commands := []struct {
		cmd Command
		run func(d *Device, mode ReceiverMode) error
	}{
		{CmdPowerUp, func(d *Device, mode ReceiverMode) error { return d.PowerUp(byte(mode), AudioAnalog) }},
		{CmdGetRev, func(d *Device, _ ReceiverMode) error { return d.GetRev() }},
		{CmdSetProperty, func(d *Device, _ ReceiverMode) error { return d.SetProperty(0x1100, 0x0001) }},
		{CmdGetProperty, func(d *Device, _ ReceiverMode) error { return d.GetProperty(0x1100) }},
		{CmdGetIntStatus, func(d *Device, _ ReceiverMode) error { return d.GetIntStatus() }},
		{CmdTuneFreq, func(d *Device, _ ReceiverMode) error { return d.TuneFreq(0x0102, 0x0304, TuneFast) }},
		{CmdSeekStart, func(d *Device, _ ReceiverMode) error { return d.SeekStart(SeekUp|SeekWrap, 0x0304) }},
		{CmdTuneStatus, func(d *Device, _ ReceiverMode) error { return d.TuneStatus(ArgIntAck) }},
		{CmdRSQStatus, func(d *Device, _ ReceiverMode) error { return d.RSQStatus(ArgIntAck) }},
		{CmdRDSStatus, func(d *Device, _ ReceiverMode) error { return d.RDSStatus(ArgIntAck) }},
		{CmdAGCStatus, func(d *Device, _ ReceiverMode) error { return d.AGCStatus() }},
		{CmdAGCOverride, func(d *Device, _ ReceiverMode) error { return d.AGCOverride(0x01, 0x0C) }},
		{CmdGPIOCtl, func(d *Device, _ ReceiverMode) error { return d.GPIOCtl(0x0E) }},
		{CmdGPIOSet, func(d *Device, _ ReceiverMode) error { return d.GPIOSet(0x04) }},
		{CmdPowerDown, func(d *Device, _ ReceiverMode) error { return d.PowerDown() }},
	}
	require.Len(t, commands, 15)

	for _, mode := range []ReceiverMode{ModeFM, ModeAM} {
		chip := emulator.New()
		bus := &stuckBus{Chip: chip}
		dev := New(bus, DelayFunc(func(time.Duration) {}))
		require.NoError(t, dev.PowerUp(byte(mode), AudioAnalog))

		for _, tc := range commands {
			t.Run(mode.String()+" "+tc.cmd.String(), func(t *testing.T) {
				spec, ok := lookup(tc.cmd, mode)
				require.True(t, ok)

				bus.stuck = true
				require.NoError(t, dev.ReadResponse())
				bus.stuck = false
				buf := dev.Buffer()
				require.Equal(t, byte(0xFF), buf[writePayloadSize-1], "buffer not pre-filled")

				require.NoError(t, tc.run(dev, mode))
				payload := lastWrite(t, chip)
				require.Len(t, payload, writePayloadSize)
				assert.Equal(t, spec.opcode, payload[0])
				for i := spec.length; i < writePayloadSize; i++ {
					assert.Zero(t, payload[i], "byte %d of %s", i, tc.cmd)
				}
			})
		}
	}

	t.Run("Set Property Layout", func(t *testing.T) {
		dev, chip, _ := newTestDevice()
		require.NoError(t, dev.PowerUp(SetupFM, AudioAnalog))
		require.NoError(t, dev.SetProperty(PropFMDeemphasis, DeemphasisEUR50us))
		assert.Equal(t, []byte{0x12, 0x00, 0x11, 0x00, 0x00, 0x01, 0x00, 0x00}, lastWrite(t, chip))

		v, ok := chip.Property(PropFMDeemphasis)
		assert.True(t, ok)
		assert.Equal(t, DeemphasisEUR50us, v)
	})
}

func TestSetPropertyBytes(t *testing.T) {
	dev, chip, rec := newTestDevice()
	require.NoError(t, dev.PowerUp(SetupFM, AudioAnalog))
	rec.delays = nil

	require.NoError(t, dev.SetProperty(0x1100, 0x0002))
	assert.Equal(t, []byte{0x12, 0x00, 0x11, 0x00, 0x00, 0x02, 0x00, 0x00}, lastWrite(t, chip))
	assert.Equal(t, []time.Duration{BaselineSettle, SetPropertySettle}, rec.delays)
}

func TestTuneLayouts(t *testing.T) {
	t.Run("FM Tune", func(t *testing.T) {
		dev, chip, rec := newTestDevice()
		require.NoError(t, dev.PowerUp(SetupFM, AudioAnalog))
		rec.delays = nil

		require.NoError(t, dev.TuneFreq(9410, 0x1234, TuneFreeze|TuneFast))
		assert.Equal(t, []byte{0x20, 0x03, 0x24, 0xC2, 0x34, 0, 0, 0}, lastWrite(t, chip))
		assert.Equal(t, []time.Duration{BaselineSettle, FMTuneSettle}, rec.delays)
		assert.Equal(t, uint16(9410), chip.Frequency())
	})

	t.Run("AM Tune", func(t *testing.T) {
		dev, chip, rec := newTestDevice()
		require.NoError(t, dev.PowerUp(SetupAM, AudioAnalog))
		rec.delays = nil

		require.NoError(t, dev.TuneFreq(1008, 0x0123, TuneFreeze|TuneFast))
		assert.Equal(t, []byte{0x40, 0x01, 0x03, 0xF0, 0x01, 0x23, 0, 0}, lastWrite(t, chip))
		assert.Equal(t, []time.Duration{BaselineSettle, AMTuneSettle}, rec.delays)
		assert.Equal(t, uint16(0x0123), chip.AntennaCapacitance())
	})

	t.Run("Seek Layouts", func(t *testing.T) {
		dev, chip, _ := newTestDevice()
		require.NoError(t, dev.PowerUp(SetupFM, AudioAnalog))
		require.NoError(t, dev.SeekStart(SeekUp|SeekWrap, 0xFFFF))
		assert.Equal(t, []byte{0x21, 0x0C, 0, 0, 0, 0, 0, 0}, lastWrite(t, chip))

		require.NoError(t, dev.PowerDown())
		require.NoError(t, dev.PowerUp(SetupAM, AudioAnalog))
		require.NoError(t, dev.SeekStart(SeekDown, 0x0102))
		assert.Equal(t, []byte{0x41, 0x00, 0, 0, 0x01, 0x02, 0, 0}, lastWrite(t, chip))
	})
}

func TestReceiveShapes(t *testing.T) {
	dev, chip, rec := newTestDevice()
	require.NoError(t, dev.PowerUp(SetupFM, AudioAnalog))
	require.NoError(t, dev.TuneFreq(9410, 0, 0))

	cases := []struct {
		name  string
		run   func() error
		bytes int
	}{
		{"Tune Status", func() error { return dev.TuneStatus(ArgIntAck) }, 16},
		{"RSQ Status", func() error { return dev.RSQStatus(0) }, 16},
		{"RDS Status", func() error { return dev.RDSStatus(0) }, 16},
		{"AGC Status", dev.AGCStatus, 16},
		{"Get Rev", dev.GetRev, 16},
		{"Get Property", func() error { return dev.GetProperty(PropRXVolume) }, 1},
		{"Int Status", dev.GetIntStatus, 1},
		{"GPIO Ctl", func() error { return dev.GPIOCtl(GPO1OutputEnable) }, 1},
		{"AGC Override", func() error { return dev.AGCOverride(AGCDisable, 4) }, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec.delays = nil
			require.NoError(t, tc.run())
			assert.Equal(t, tc.bytes, lastRead(t, chip).BytesRead)
			assert.Equal(t, []time.Duration{BaselineSettle}, rec.delays)
		})
	}
}

func TestMeasurementDecoding(t *testing.T) {
	dev, _, _ := newTestDevice()
	require.NoError(t, dev.PowerUp(SetupFM, AudioAnalog))
	require.NoError(t, dev.TuneFreq(9410, 0, 0))

	require.NoError(t, dev.RSQStatus(ArgIntAck))
	r := dev.Response()
	assert.Equal(t, byte(45), r.RSSI())
	assert.Equal(t, byte(20), r.SNR())
	assert.True(t, r.FMStereo())
	assert.True(t, r.Valid())

	require.NoError(t, dev.TuneStatus(ArgIntAck))
	r = dev.Response()
	assert.True(t, r.TuneValid())
	assert.Equal(t, uint16(9410), r.Frequency())
}

func TestStrictMode(t *testing.T) {
	t.Run("Refuses Commands Before Power Up", func(t *testing.T) {
		dev, chip, rec := newTestDevice(WithStrict(true))
		err := dev.TuneFreq(9410, 0, 0)
		assert.True(t, errors.Is(err, ErrNotPoweredUp))
		assert.Empty(t, chip.Transactions(), "refused command must not reach the bus")
		assert.Empty(t, rec.delays)
	})

	t.Run("Refuses Second Power Up", func(t *testing.T) {
		dev, chip, _ := newTestDevice(WithStrict(true))
		require.NoError(t, dev.PowerUp(SetupFM, AudioAnalog))
		n := len(chip.Transactions())
		assert.True(t, errors.Is(dev.PowerUp(SetupFM, AudioAnalog), ErrAlreadyPoweredUp))
		assert.Len(t, chip.Transactions(), n)
	})

	t.Run("Reports Error Status", func(t *testing.T) {
		dev, _, _ := newTestDevice(WithStrict(true))
		require.NoError(t, dev.PowerUp(SetupAM, AudioAnalog))
		// RDS is an FM-only command
		err := dev.RDSStatus(0)
		assert.True(t, errors.Is(err, ErrDeviceError))
		assert.True(t, dev.Response().HasError())
	})

	t.Run("Permissive By Default", func(t *testing.T) {
		dev, chip, _ := newTestDevice()
		assert.False(t, dev.Strict())
		assert.NoError(t, dev.TuneFreq(9410, 0, 0))
		assert.NotEmpty(t, chip.Transactions())
		assert.Equal(t, byte(0), dev.Response().Status(), "powered down chip stays silent")
	})
}

func TestLookup(t *testing.T) {
	assert.True(t, IsModeDependent(CmdTuneFreq))
	assert.False(t, IsModeDependent(CmdSetProperty))

	op, ok := Opcode(CmdRSQStatus, ModeAM)
	assert.True(t, ok)
	assert.Equal(t, byte(0x43), op)

	op, ok = Opcode(CmdRSQStatus, ModePoweredDown)
	assert.True(t, ok)
	assert.Equal(t, byte(0x23), op)

	assert.Equal(t, "TUNE_FREQ", CmdTuneFreq.String())
	assert.Equal(t, "COMMAND(99)", Command(99).String())
}

func TestClockHalfPeriod(t *testing.T) {
	dev, _, rec := newTestDevice(WithClockHalfPeriod(time.Microsecond))
	require.NoError(t, dev.GetIntStatus())

	var edges int
	for _, d := range rec.delays {
		if d == time.Microsecond {
			edges++
		}
	}
	// 9 bytes written plus 2 for the read transaction, two delays per bit
	assert.Equal(t, (9+2)*8*2, edges)
}

func TestReadResponse(t *testing.T) {
	dev, chip, rec := newTestDevice()
	require.NoError(t, dev.PowerUp(SetupFM, AudioAnalog))
	require.NoError(t, dev.SetProperty(PropRXVolume, 0x0021))
	require.NoError(t, dev.GetProperty(PropRXVolume))
	assert.Equal(t, 1, lastRead(t, chip).BytesRead)

	rec.delays = nil
	n := len(chip.Transactions())
	require.NoError(t, dev.ReadResponse())
	assert.Len(t, chip.Transactions(), n+1, "no command is written")
	assert.Empty(t, rec.delays)
	assert.Equal(t, uint16(0x0021), dev.Response().PropertyValue())
}
