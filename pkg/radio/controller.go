// Package radio drives the tuner the way a receiver front panel does:
// select a band, step or scan through it, seek and take measurements.
package radio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dougsko/si4735d/pkg/logging"
	"github.com/dougsko/si4735d/pkg/si4735"
)

var (
	// ErrUnknownBand is returned for a band name missing from the table
	ErrUnknownBand = errors.New("unknown band")
	// ErrNotRunning is returned when an operation needs a selected band
	ErrNotRunning = errors.New("receiver is off")
	// ErrOutOfBand is returned when a frequency lies outside the band
	ErrOutOfBand = errors.New("frequency outside band")
	// ErrSeekTimeout is returned when a hardware seek does not complete
	ErrSeekTimeout = errors.New("seek did not complete")
)

// Direction of a step, scan or seek
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

// ParseDirection parses "up" or "down"
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("invalid direction %q", s)
}

// String returns "up" or "down"
func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

const (
	seekPollInterval = 20 * time.Millisecond

	// DefaultSeekTimeout bounds one hardware seek. A full pass over the
	// widest band takes a few seconds on a working chip.
	DefaultSeekTimeout = 30 * time.Second
)

// Tuner is the command set the controller needs. *si4735.Device
// implements it.
type Tuner interface {
	PowerUp(setup, audioOut byte) error
	PowerDown() error
	GetRev() error
	SetProperty(property, value uint16) error
	GetProperty(property uint16) error
	GetIntStatus() error
	TuneFreq(freq, antcap uint16, setup byte) error
	SeekStart(arg1 byte, antcap uint16) error
	TuneStatus(arg1 byte) error
	RSQStatus(arg1 byte) error
	RDSStatus(arg1 byte) error
	AGCStatus() error
	ReadResponse() error
	Response() si4735.Response
	Mode() si4735.ReceiverMode
	State() si4735.PowerState
}

// Memory persists the last frequency used on each band
type Memory interface {
	LoadBand(name string) (freq, antcap uint16, ok bool, err error)
	SaveBand(name string, freq, antcap uint16) error
}

// Controller runs band selection, tuning and measurement on one tuner.
// Like the tuner it is not safe for concurrent use.
type Controller struct {
	dev     Tuner
	targets []TuneTarget
	index   map[string]int
	current int // -1 when off
	memory  Memory

	seekTimeout time.Duration
}

// NewController creates a controller over the band table. The receiver
// starts off.
func NewController(dev Tuner, targets []TuneTarget) *Controller {
	c := &Controller{
		dev:         dev,
		targets:     append([]TuneTarget(nil), targets...),
		index:       make(map[string]int, len(targets)),
		current:     -1,
		seekTimeout: DefaultSeekTimeout,
	}
	for i, t := range c.targets {
		c.index[strings.ToUpper(t.Name)] = i
	}
	return c
}

// SetSeekTimeout sets how long Seek waits for the chip before
// cancelling. Zero or less restores the default.
func (c *Controller) SetSeekTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultSeekTimeout
	}
	c.seekTimeout = d
}

// SetMemory attaches band memory and restores remembered frequencies
func (c *Controller) SetMemory(m Memory) error {
	c.memory = m
	for i := range c.targets {
		t := &c.targets[i]
		freq, antcap, ok, err := m.LoadBand(t.Name)
		if err != nil {
			return fmt.Errorf("failed to load band %s: %w", t.Name, err)
		}
		if ok && t.Contains(freq) {
			t.Frequency = freq
			t.Antcap = antcap
		}
	}
	return nil
}

// Bands returns the band table with the current frequencies
func (c *Controller) Bands() []TuneTarget {
	return append([]TuneTarget(nil), c.targets...)
}

// Current returns the selected band, or false when off
func (c *Controller) Current() (TuneTarget, bool) {
	if c.current < 0 {
		return TuneTarget{}, false
	}
	return c.targets[c.current], true
}

// SelectBand powers the tuner up for the band and tunes to its frequency.
// The tuner is always powered down first so the new mode takes effect.
func (c *Controller) SelectBand(name string) (Measurement, error) {
	i, ok := c.index[strings.ToUpper(name)]
	if !ok {
		return Measurement{}, fmt.Errorf("%w: %s", ErrUnknownBand, name)
	}
	t := c.targets[i]

	if c.dev.State() == si4735.StateUp {
		if err := c.dev.PowerDown(); err != nil {
			return Measurement{}, fmt.Errorf("failed to power down: %w", err)
		}
	}
	c.current = -1

	setup := si4735.SetupXOSCEN | si4735.SetupFM
	bottomProp, topProp := si4735.PropFMSeekBandBottom, si4735.PropFMSeekBandTop
	spacingProp := si4735.PropFMSeekFreqSpacing
	filterProp, filterValue := si4735.PropFMDeemphasis, si4735.DeemphasisEUR50us
	if t.Mode == si4735.ModeAM {
		setup = si4735.SetupXOSCEN | si4735.SetupAM
		bottomProp, topProp = si4735.PropAMSeekBandBottom, si4735.PropAMSeekBandTop
		spacingProp = si4735.PropAMSeekFreqSpacing
		filterProp, filterValue = si4735.PropAMChannelFilter, si4735.AMChannelFilter4kHz
	}

	if err := c.dev.PowerUp(setup, si4735.AudioAnalog); err != nil {
		return Measurement{}, fmt.Errorf("failed to power up: %w", err)
	}
	props := []struct{ id, value uint16 }{
		{bottomProp, t.Bottom},
		{topProp, t.Top},
		{spacingProp, t.Step},
		{filterProp, filterValue},
	}
	for _, p := range props {
		if err := c.dev.SetProperty(p.id, p.value); err != nil {
			return Measurement{}, fmt.Errorf("failed to set property 0x%04X: %w", p.id, err)
		}
	}

	c.current = i
	logging.Infof("radio", "Band %s (%s %d-%d)", t.Name, t.ModeName(), t.Bottom, t.Top)
	return c.tune(t.Frequency)
}

// Step moves one channel up or down, wrapping at the band edges
func (c *Controller) Step(dir Direction) (Measurement, error) {
	t, ok := c.Current()
	if !ok {
		return Measurement{}, ErrNotRunning
	}
	return c.tune(t.next(t.Frequency, int(dir)))
}

// Scan steps until a valid station is found or ctx is done. It gives up
// after one pass over the band. found is false when it stopped without a
// station.
func (c *Controller) Scan(ctx context.Context, dir Direction) (m Measurement, found bool, err error) {
	t, ok := c.Current()
	if !ok {
		return Measurement{}, false, ErrNotRunning
	}

	for i := 0; i < t.Channels(); i++ {
		m, err = c.Step(dir)
		if err != nil {
			return m, false, err
		}
		if m.Valid {
			logging.Infof("radio", "Scan %s found %d", dir, m.Frequency)
			return m, true, nil
		}
		select {
		case <-ctx.Done():
			return m, false, ctx.Err()
		default:
		}
	}
	return m, false, nil
}

// Seek starts a hardware seek with wrap-around and waits for it to
// complete. A seek still running when ctx is done or the seek timeout
// passes is cancelled on the chip.
func (c *Controller) Seek(ctx context.Context, dir Direction) (Measurement, error) {
	t, ok := c.Current()
	if !ok {
		return Measurement{}, ErrNotRunning
	}

	arg := si4735.SeekWrap | si4735.SeekDown
	if dir == Up {
		arg = si4735.SeekWrap | si4735.SeekUp
	}
	if err := c.dev.SeekStart(arg, t.Antcap); err != nil {
		return Measurement{}, fmt.Errorf("failed to start seek: %w", err)
	}

	limit := time.NewTimer(c.seekTimeout)
	defer limit.Stop()
	for {
		if err := c.dev.GetIntStatus(); err != nil {
			return Measurement{}, fmt.Errorf("failed to poll seek: %w", err)
		}
		if c.dev.Response().STCInterrupt() {
			break
		}
		select {
		case <-ctx.Done():
			return Measurement{}, c.cancelSeek(ctx.Err())
		case <-limit.C:
			return Measurement{}, c.cancelSeek(ErrSeekTimeout)
		case <-time.After(seekPollInterval):
		}
	}

	m, err := c.Measure()
	if err != nil {
		return m, err
	}
	c.remember(m.Frequency)
	return m, nil
}

// cancelSeek stops a running seek where it is and returns cause
func (c *Controller) cancelSeek(cause error) error {
	logging.Warnf("radio", "Cancelling seek: %v", cause)
	if err := c.dev.TuneStatus(si4735.ArgCancel | si4735.ArgIntAck); err != nil {
		return fmt.Errorf("failed to cancel seek: %w", err)
	}
	return cause
}

// Tune tunes to freq inside the current band
func (c *Controller) Tune(freq uint16) (Measurement, error) {
	t, ok := c.Current()
	if !ok {
		return Measurement{}, ErrNotRunning
	}
	if !t.Contains(freq) {
		return Measurement{}, fmt.Errorf("%w: %d not in %s %d-%d", ErrOutOfBand, freq, t.Name, t.Bottom, t.Top)
	}
	return c.tune(freq)
}

func (c *Controller) tune(freq uint16) (Measurement, error) {
	t := &c.targets[c.current]
	if err := c.dev.TuneFreq(freq, t.Antcap, 0); err != nil {
		return Measurement{}, fmt.Errorf("failed to tune %d: %w", freq, err)
	}
	t.Frequency = freq

	m, err := c.Measure()
	if err != nil {
		return m, err
	}
	c.remember(freq)
	return m, nil
}

func (c *Controller) remember(freq uint16) {
	t := &c.targets[c.current]
	if t.Contains(freq) {
		t.Frequency = freq
	}
	if c.memory == nil {
		return
	}
	if err := c.memory.SaveBand(t.Name, t.Frequency, t.Antcap); err != nil {
		logging.Warnf("radio", "Failed to save band %s: %v", t.Name, err)
	}
}

// Measure reads signal quality, AGC state and tune status
func (c *Controller) Measure() (Measurement, error) {
	t, ok := c.Current()
	if !ok {
		return Measurement{}, ErrNotRunning
	}
	mode := c.dev.Mode()
	m := Measurement{Band: t.Name, Mode: mode, Time: time.Now()}

	if err := c.dev.RSQStatus(0); err != nil {
		return m, fmt.Errorf("failed to read signal quality: %w", err)
	}
	r := c.dev.Response()
	m.RSSI = r.RSSI()
	m.SNR = r.SNR()
	m.Multipath = r.Multipath()
	m.FrequencyOffset = r.FrequencyOffset()
	m.Stereo = r.FMStereo()
	if m.Stereo {
		m.Blend = r.StereoBlend()
	}

	if err := c.dev.AGCStatus(); err != nil {
		return m, fmt.Errorf("failed to read agc status: %w", err)
	}
	r = c.dev.Response()
	m.AGCDisabled = r.RFAGCDisabled()
	m.LNAGain = r.LNAGainIndex(mode)

	if err := c.dev.TuneStatus(si4735.ArgIntAck); err != nil {
		return m, fmt.Errorf("failed to read tune status: %w", err)
	}
	r = c.dev.Response()
	m.Frequency = r.Frequency()
	m.Valid = r.TuneValid()
	m.BandLimit = r.BandLimit()
	if mode == si4735.ModeAM {
		m.Antcap = r.AntennaCapacitanceAM()
	}
	m.Status = r.Status()

	logging.Debugf("radio", "Measure %s %d rssi=%d snr=%d valid=%t", m.Band, m.Frequency, m.RSSI, m.SNR, m.Valid)
	return m, nil
}

// RDS reads one RDS group. FM only.
func (c *Controller) RDS() (RDSGroup, error) {
	t, ok := c.Current()
	if !ok {
		return RDSGroup{}, ErrNotRunning
	}
	if t.Mode != si4735.ModeFM {
		return RDSGroup{}, fmt.Errorf("rds needs an FM band, %s is %s", t.Name, t.ModeName())
	}
	if err := c.dev.RDSStatus(si4735.ArgIntAck); err != nil {
		return RDSGroup{}, fmt.Errorf("failed to read rds status: %w", err)
	}
	r := c.dev.Response()
	return RDSGroup{
		Synchronized: r.RDSSynchronized(),
		FIFOUsed:     r.RDSFIFOUsed(),
		Blocks:       r.RDSBlocks(),
		Errors:       r.RDSBlockErrors(),
	}, nil
}

// PowerOff powers the tuner down and turns the receiver off
func (c *Controller) PowerOff() error {
	if c.dev.State() == si4735.StateUp {
		if err := c.dev.PowerDown(); err != nil {
			return fmt.Errorf("failed to power down: %w", err)
		}
	}
	c.current = -1
	logging.Infof("radio", "Power off")
	return nil
}

// Revision reads the chip revision. A powered down tuner is asked through
// the library id query, which also reports the library id and leaves it
// powered down.
func (c *Controller) Revision() (Revision, error) {
	var libraryQuery bool
	if c.dev.State() == si4735.StateUp {
		if err := c.dev.GetRev(); err != nil {
			return Revision{}, fmt.Errorf("failed to read revision: %w", err)
		}
	} else {
		if err := c.dev.PowerUp(si4735.SetupQLID, si4735.AudioRDSOnly); err != nil {
			return Revision{}, fmt.Errorf("failed to query library id: %w", err)
		}
		libraryQuery = true
	}

	r := c.dev.Response()
	rev := Revision{
		PartNumber:   fmt.Sprintf("Si47%02d", r.PartNumber()),
		Firmware:     fmt.Sprintf("%c.%c", r.FirmwareMajor(), r.FirmwareMinor()),
		PatchID:      r.PatchID(),
		ChipRevision: string(rune(r.ChipRevision())),
	}
	if libraryQuery {
		rev.LibraryID = r.LibraryID()
	} else {
		rev.Component = fmt.Sprintf("%c.%c", r.ComponentMajor(), r.ComponentMinor())
	}
	return rev, nil
}

// SetProperty writes a tuner property
func (c *Controller) SetProperty(id, value uint16) error {
	if _, ok := c.Current(); !ok {
		return ErrNotRunning
	}
	if err := c.dev.SetProperty(id, value); err != nil {
		return fmt.Errorf("failed to set property 0x%04X: %w", id, err)
	}
	return nil
}

// GetProperty reads a tuner property. The command itself only returns the
// status byte, so the value is fetched with a second long read.
func (c *Controller) GetProperty(id uint16) (uint16, error) {
	if _, ok := c.Current(); !ok {
		return 0, ErrNotRunning
	}
	if err := c.dev.GetProperty(id); err != nil {
		return 0, fmt.Errorf("failed to get property 0x%04X: %w", id, err)
	}
	if err := c.dev.ReadResponse(); err != nil {
		return 0, fmt.Errorf("failed to read property 0x%04X: %w", id, err)
	}
	return c.dev.Response().PropertyValue(), nil
}
