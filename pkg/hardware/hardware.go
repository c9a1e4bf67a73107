package hardware

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dougsko/si4735d/pkg/config"
	"github.com/dougsko/si4735d/pkg/emulator"
	"github.com/dougsko/si4735d/pkg/si4735"
	"periph.io/x/conn/v3/gpio"
)

// resetStep is each phase of the reset pulse
const resetStep = time.Millisecond

// HardwareConfig represents hardware configuration
type HardwareConfig struct {
	Driver    string
	EnablePin string
	ClockPin  string
	DataPin   string
	ResetPin  string
	LEDPin    string
	ClockHz   int
	Stations  []config.StationConfig
}

// ConfigFromSettings extracts the hardware section of the daemon config
func ConfigFromSettings(cfg *config.Config) HardwareConfig {
	return HardwareConfig{
		Driver:    cfg.Bus.Driver,
		EnablePin: cfg.Bus.EnablePin,
		ClockPin:  cfg.Bus.ClockPin,
		DataPin:   cfg.Bus.DataPin,
		ResetPin:  cfg.Bus.ResetPin,
		LEDPin:    cfg.Bus.LEDPin,
		ClockHz:   cfg.Bus.ClockHz,
		Stations:  cfg.Bus.Stations,
	}
}

// HardwareManager owns the tuner's lines: it opens them for the chosen
// driver, puts them in their idle state, pulses reset and releases them.
type HardwareManager struct {
	config HardwareConfig
	mutex  sync.RWMutex

	enable Pin
	clock  Pin
	data   Pin
	reset  Pin
	led    Pin

	bus   *PinBus
	delay si4735.Delayer
	chip  *emulator.Chip

	initialized bool
}

// NewHardwareManager creates a new hardware manager
func NewHardwareManager(config HardwareConfig) *HardwareManager {
	return &HardwareManager{
		config: config,
	}
}

// Initialize opens the lines and sets them to their idle levels
func (h *HardwareManager) Initialize() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.initialized {
		return nil
	}

	log.Printf("Hardware: Initializing %s bus...", h.config.Driver)

	if err := h.openLocked(); err != nil {
		return err
	}

	// SEN released, SCLK idle low, SDIO released to the tuner, RST high
	steps := []struct {
		what string
		err  func() error
	}{
		{"enable", func() error { return h.enable.Out(gpio.High) }},
		{"clock", func() error { return h.clock.Out(gpio.Low) }},
		{"data", func() error { return h.data.In(gpio.PullNoChange, gpio.NoEdge) }},
		{"reset", func() error { return h.reset.Out(gpio.High) }},
	}
	for _, step := range steps {
		if err := step.err(); err != nil {
			h.closeLinesLocked()
			return fmt.Errorf("failed to initialize %s line: %w", step.what, err)
		}
	}
	if h.led != nil {
		if err := h.led.Out(gpio.Low); err != nil {
			log.Printf("Hardware: Status LED unavailable: %v", err)
			h.led = nil
		}
	}

	h.bus = NewPinBus(h.enable, h.clock, h.data)
	h.initialized = true
	log.Printf("Hardware: Bus initialized (SEN %s, SCLK %s, SDIO %s, RST %s)",
		h.enable.Name(), h.clock.Name(), h.data.Name(), h.reset.Name())
	return nil
}

func (h *HardwareManager) openLocked() error {
	switch h.config.Driver {
	case config.DriverEmulator, "":
		h.chip = newEmulatedChip(h.config.Stations)
		h.enable, h.clock, h.data, h.reset = emulatedPins(h.chip)
		// the emulator needs no real time to settle
		h.delay = si4735.DelayFunc(func(time.Duration) {})
		if h.config.LEDPin != "" {
			h.led = NewMockPin(h.config.LEDPin)
		}
		return nil

	case config.DriverPeriph:
		names := []string{h.config.EnablePin, h.config.ClockPin, h.config.DataPin, h.config.ResetPin}
		if h.config.LEDPin != "" {
			names = append(names, h.config.LEDPin)
		}
		pins, err := OpenPeriphPins(names...)
		if err != nil {
			return err
		}
		h.enable, h.clock, h.data, h.reset = pins[0], pins[1], pins[2], pins[3]
		if len(pins) > 4 {
			h.led = pins[4]
		}

	case config.DriverSysfs:
		names := []string{h.config.EnablePin, h.config.ClockPin, h.config.DataPin, h.config.ResetPin}
		if h.config.LEDPin != "" {
			names = append(names, h.config.LEDPin)
		}
		pins := make([]Pin, len(names))
		for i, name := range names {
			p, err := NewSysfsPin(name)
			if err != nil {
				return err
			}
			pins[i] = p
		}
		h.enable, h.clock, h.data, h.reset = pins[0], pins[1], pins[2], pins[3]
		if len(pins) > 4 {
			h.led = pins[4]
		}

	default:
		return fmt.Errorf("unknown bus driver %q", h.config.Driver)
	}

	h.delay = Delay{ClockHz: h.config.ClockHz}
	return nil
}

func newEmulatedChip(stations []config.StationConfig) *emulator.Chip {
	opts := make([]emulator.Option, 0, len(stations))
	for _, s := range stations {
		opts = append(opts, emulator.WithStation(s.Band == "am", s.Frequency, emulator.Station{
			RSSI:   s.RSSI,
			SNR:    s.SNR,
			Stereo: s.Stereo,
			PI:     s.PI,
		}))
	}
	return emulator.New(opts...)
}

// Close returns every line to its idle level and releases it
func (h *HardwareManager) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.initialized {
		return nil
	}

	log.Printf("Hardware: Shutting down bus...")

	if err := h.enable.Out(gpio.High); err != nil {
		log.Printf("Hardware: Error releasing enable line: %v", err)
	}
	if h.led != nil {
		if err := h.led.Out(gpio.Low); err != nil {
			log.Printf("Hardware: Error clearing status LED: %v", err)
		}
	}
	h.closeLinesLocked()

	h.initialized = false
	log.Printf("Hardware: Bus shut down")
	return nil
}

func (h *HardwareManager) closeLinesLocked() {
	for _, p := range []Pin{h.enable, h.clock, h.data, h.reset, h.led} {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				log.Printf("Hardware: Error closing %s: %v", p.Name(), err)
			}
		}
	}
}

// ResetTuner pulses the reset line: high, low and high again, one
// millisecond each.
func (h *HardwareManager) ResetTuner() error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if !h.initialized {
		return fmt.Errorf("hardware not initialized")
	}

	h.delay.Delay(resetStep)
	if err := h.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to assert reset: %w", err)
	}
	h.delay.Delay(resetStep)
	if err := h.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to release reset: %w", err)
	}
	h.delay.Delay(resetStep)

	log.Printf("Hardware: Tuner reset")
	return nil
}

// Bus returns the tuner bus
func (h *HardwareManager) Bus() *PinBus {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.bus
}

// Delayer returns the delay source matching the driver
func (h *HardwareManager) Delayer() si4735.Delayer {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.delay
}

// Chip returns the emulated chip, or nil on real hardware
func (h *HardwareManager) Chip() *emulator.Chip {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.chip
}

// Err reports the first line error seen by the bus
func (h *HardwareManager) Err() error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.bus == nil {
		return nil
	}
	return h.bus.Err()
}

// SetStatusLED controls the status LED
func (h *HardwareManager) SetStatusLED(active bool) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if !h.initialized || h.led == nil {
		return nil
	}

	if err := h.led.Out(gpio.Level(active)); err != nil {
		return fmt.Errorf("failed to set status LED: %w", err)
	}
	return nil
}

// IsInitialized returns whether hardware is initialized
func (h *HardwareManager) IsInitialized() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.initialized
}

// GetConfig returns the hardware configuration
func (h *HardwareManager) GetConfig() HardwareConfig {
	return h.config
}
