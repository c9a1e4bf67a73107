package radio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dougsko/si4735d/pkg/config"
	"github.com/dougsko/si4735d/pkg/emulator"
	"github.com/dougsko/si4735d/pkg/si4735"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memMemory struct {
	bands map[string][2]uint16
	saves int
}

func (m *memMemory) LoadBand(name string) (uint16, uint16, bool, error) {
	v, ok := m.bands[name]
	return v[0], v[1], ok, nil
}

func (m *memMemory) SaveBand(name string, freq, antcap uint16) error {
	m.bands[name] = [2]uint16{freq, antcap}
	m.saves++
	return nil
}

func newTestController(t *testing.T) (*Controller, *emulator.Chip, *si4735.Device) {
	t.Helper()
	chip := emulator.New(
		emulator.WithStation(false, 9410, emulator.Station{RSSI: 45, SNR: 22, Stereo: true, Blend: 0x28, PI: 0xD3C2}),
		emulator.WithStation(true, 1008, emulator.Station{RSSI: 33, SNR: 11}),
	)
	dev := si4735.New(chip, si4735.DelayFunc(func(time.Duration) {}))
	bands := append(config.DefaultBands(), config.BandConfig{Name: "LW", Mode: "am", Bottom: 153, Top: 279, Step: 9})
	targets, err := BandsFromConfig(bands)
	require.NoError(t, err)
	return NewController(dev, targets), chip, dev
}

func TestSelectBand(t *testing.T) {
	c, chip, dev := newTestController(t)

	t.Run("FM", func(t *testing.T) {
		m, err := c.SelectBand("fm")
		require.NoError(t, err)
		assert.Equal(t, "FM", m.Band)
		assert.Equal(t, uint16(8750), m.Frequency)
		assert.False(t, m.Valid)
		assert.Equal(t, si4735.ModeFM, dev.Mode())

		v, ok := chip.Property(si4735.PropFMSeekBandTop)
		assert.True(t, ok)
		assert.Equal(t, uint16(10800), v)
		v, _ = chip.Property(si4735.PropFMDeemphasis)
		assert.Equal(t, si4735.DeemphasisEUR50us, v)
	})

	t.Run("Switch To MW Powers Down First", func(t *testing.T) {
		chip.ClearTransactions()
		_, err := c.SelectBand("MW")
		require.NoError(t, err)

		txs := chip.Transactions()
		require.NotEmpty(t, txs)
		assert.Equal(t, byte(0x11), txs[0].Payload[0], "power down comes first")
		assert.True(t, chip.AM())

		v, _ := chip.Property(si4735.PropAMChannelFilter)
		assert.Equal(t, si4735.AMChannelFilter4kHz, v)
		cur, ok := c.Current()
		assert.True(t, ok)
		assert.Equal(t, "MW", cur.Name)
	})

	t.Run("Unknown Band", func(t *testing.T) {
		_, err := c.SelectBand("UKW")
		assert.True(t, errors.Is(err, ErrUnknownBand))
	})
}

func TestStep(t *testing.T) {
	c, chip, _ := newTestController(t)

	_, err := c.Step(Up)
	assert.True(t, errors.Is(err, ErrNotRunning))

	_, err = c.SelectBand("FM")
	require.NoError(t, err)

	t.Run("Up", func(t *testing.T) {
		m, err := c.Step(Up)
		require.NoError(t, err)
		assert.Equal(t, uint16(8755), m.Frequency)
		assert.Equal(t, uint16(8755), chip.Frequency())
	})

	t.Run("Down Wraps To Top", func(t *testing.T) {
		_, err := c.Step(Down)
		require.NoError(t, err)
		m, err := c.Step(Down)
		require.NoError(t, err)
		assert.Equal(t, uint16(10800), m.Frequency)
	})

	t.Run("Up Wraps To Bottom", func(t *testing.T) {
		m, err := c.Step(Up)
		require.NoError(t, err)
		assert.Equal(t, uint16(8750), m.Frequency)
	})
}

func TestScan(t *testing.T) {
	c, _, _ := newTestController(t)
	_, err := c.SelectBand("FM")
	require.NoError(t, err)

	t.Run("Finds Station", func(t *testing.T) {
		m, found, err := c.Scan(context.Background(), Up)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, uint16(9410), m.Frequency)
		assert.Equal(t, byte(45), m.RSSI)
		assert.True(t, m.Stereo)
		assert.Equal(t, byte(0x28), m.Blend)
	})

	t.Run("Full Pass Without Station", func(t *testing.T) {
		_, err := c.SelectBand("LW")
		require.NoError(t, err)
		m, found, err := c.Scan(context.Background(), Down)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, uint16(153), m.Frequency, "one full pass ends where it started")
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, found, err := c.Scan(ctx, Up)
		assert.False(t, found)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestSeek(t *testing.T) {
	c, chip, _ := newTestController(t)
	mem := &memMemory{bands: map[string][2]uint16{}}
	require.NoError(t, c.SetMemory(mem))

	_, err := c.SelectBand("MW")
	require.NoError(t, err)

	m, err := c.Seek(context.Background(), Up)
	require.NoError(t, err)
	assert.Equal(t, uint16(1008), m.Frequency)
	assert.True(t, m.Valid)
	assert.NotZero(t, m.Antcap)
	assert.Equal(t, uint16(1008), chip.Frequency())

	cur, _ := c.Current()
	assert.Equal(t, uint16(1008), cur.Frequency)
	assert.Equal(t, uint16(1008), mem.bands["MW"][0])
}

// quietBus stops answering once muted, like a tuner that fell off the bus
type quietBus struct {
	*emulator.Chip
	muted bool
}

func (b *quietBus) ReadData() bool {
	if b.muted {
		return false
	}
	return b.Chip.ReadData()
}

// lastWrite returns the payload of the most recent write transaction
func lastWrite(t *testing.T, chip *emulator.Chip) []byte {
	t.Helper()
	txs := chip.Transactions()
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Control == 0x48 {
			return txs[i].Payload
		}
	}
	t.Fatal("no write transaction recorded")
	return nil
}

func TestSeekGivesUp(t *testing.T) {
	chip := emulator.New(emulator.WithStation(false, 9410, emulator.Station{RSSI: 45, SNR: 22}))
	bus := &quietBus{Chip: chip}
	dev := si4735.New(bus, si4735.DelayFunc(func(time.Duration) {}))
	targets, err := BandsFromConfig(config.DefaultBands())
	require.NoError(t, err)
	c := NewController(dev, targets)
	_, err = c.SelectBand("FM")
	require.NoError(t, err)

	t.Run("Silent Bus Times Out", func(t *testing.T) {
		bus.muted = true
		defer func() { bus.muted = false }()
		c.SetSeekTimeout(100 * time.Millisecond)
		defer c.SetSeekTimeout(0)

		start := time.Now()
		_, err := c.Seek(context.Background(), Up)
		assert.ErrorIs(t, err, ErrSeekTimeout)
		assert.True(t, time.Since(start) < 2*time.Second, "seek ran for %v", time.Since(start))

		payload := lastWrite(t, chip)
		assert.Equal(t, byte(0x22), payload[0], "tune status follows the timeout")
		assert.Equal(t, si4735.ArgCancel|si4735.ArgIntAck, payload[1])
	})

	t.Run("Context Done Cancels Held Seek", func(t *testing.T) {
		chip.HoldSeek(true)
		defer chip.HoldSeek(false)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := c.Seek(ctx, Down)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, chip.Seeking(), "seek left running on the chip")

		payload := lastWrite(t, chip)
		assert.Equal(t, si4735.ArgCancel|si4735.ArgIntAck, payload[1])
	})

	t.Run("Seek Works Again", func(t *testing.T) {
		m, err := c.Seek(context.Background(), Up)
		require.NoError(t, err)
		assert.Equal(t, uint16(9410), m.Frequency)
	})
}

func TestTuneAndMemory(t *testing.T) {
	c, _, _ := newTestController(t)
	mem := &memMemory{bands: map[string][2]uint16{"FM": {10070, 0}, "MW": {9999, 0}}}
	require.NoError(t, c.SetMemory(mem))

	bands := c.Bands()
	assert.Equal(t, uint16(10070), bands[0].Frequency, "remembered frequency restored")
	assert.Equal(t, uint16(522), bands[1].Frequency, "out of band memory ignored")

	m, err := c.SelectBand("FM")
	require.NoError(t, err)
	assert.Equal(t, uint16(10070), m.Frequency)

	m, err = c.Tune(9410)
	require.NoError(t, err)
	assert.True(t, m.Valid)
	assert.Equal(t, "94.10 MHz", m.FrequencyString())
	assert.Equal(t, uint16(9410), mem.bands["FM"][0])

	_, err = c.Tune(7000)
	assert.True(t, errors.Is(err, ErrOutOfBand))
}

func TestRDSAndProperties(t *testing.T) {
	c, _, _ := newTestController(t)
	_, err := c.SelectBand("FM")
	require.NoError(t, err)
	_, err = c.Tune(9410)
	require.NoError(t, err)

	g, err := c.RDS()
	require.NoError(t, err)
	assert.True(t, g.Synchronized)
	assert.Equal(t, uint16(0xD3C2), g.PI())

	require.NoError(t, c.SetProperty(si4735.PropRXVolume, 0x20))
	v, err := c.GetProperty(si4735.PropRXVolume)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x20), v)

	_, err = c.SelectBand("MW")
	require.NoError(t, err)
	_, err = c.RDS()
	assert.Error(t, err)
}

func TestPowerOffAndRevision(t *testing.T) {
	c, chip, dev := newTestController(t)

	t.Run("Library Query While Off", func(t *testing.T) {
		rev, err := c.Revision()
		require.NoError(t, err)
		assert.Equal(t, "Si4735", rev.PartNumber)
		assert.Equal(t, "6.0", rev.Firmware)
		assert.Equal(t, emulator.DefaultRevision.LibraryID, rev.LibraryID)
		assert.False(t, chip.Powered())
		assert.Equal(t, si4735.StateDown, dev.State())
	})

	t.Run("Revision While Running", func(t *testing.T) {
		_, err := c.SelectBand("FM")
		require.NoError(t, err)
		rev, err := c.Revision()
		require.NoError(t, err)
		assert.Equal(t, "2.0", rev.Component)
		assert.Equal(t, "D", rev.ChipRevision)
	})

	t.Run("Power Off", func(t *testing.T) {
		require.NoError(t, c.PowerOff())
		assert.False(t, chip.Powered())
		_, ok := c.Current()
		assert.False(t, ok)
		_, err := c.Measure()
		assert.True(t, errors.Is(err, ErrNotRunning))
	})
}

func TestStrictTuner(t *testing.T) {
	chip := emulator.New()
	dev := si4735.New(chip, si4735.DelayFunc(func(time.Duration) {}), si4735.WithStrict(true))
	targets, err := BandsFromConfig(config.DefaultBands())
	require.NoError(t, err)
	c := NewController(dev, targets)

	_, err = c.SelectBand("FM")
	require.NoError(t, err)
	_, err = c.SelectBand("SW")
	require.NoError(t, err, "band switch powers down before powering up")
	require.NoError(t, c.PowerOff())
	require.NoError(t, c.PowerOff(), "power off twice is harmless")
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("UP")
	assert.NoError(t, err)
	assert.Equal(t, Up, d)
	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
