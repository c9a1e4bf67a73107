package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// PinBus drives the tuner's three serial lines. It implements si4735.Bus.
//
// The bus interface has no error returns, so the first line error is
// latched and reported by Err.
type PinBus struct {
	enable Pin // SEN, active low
	clock  Pin // SCLK
	data   Pin // SDIO

	mu  sync.Mutex
	err error
}

// NewPinBus creates a bus from its enable, clock and data lines
func NewPinBus(enable, clock, data Pin) *PinBus {
	return &PinBus{enable: enable, clock: clock, data: data}
}

func (b *PinBus) latch(err error, line Pin) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = fmt.Errorf("failed to drive %s: %w", line.Name(), err)
	}
}

// SetEnable asserts the enable line by pulling it low
func (b *PinBus) SetEnable(active bool) {
	b.latch(b.enable.Out(gpio.Level(!active)), b.enable)
}

// SetClock drives the clock line
func (b *PinBus) SetClock(high bool) {
	b.latch(b.clock.Out(gpio.Level(high)), b.clock)
}

// SetData drives the data line
func (b *PinBus) SetData(high bool) {
	b.latch(b.data.Out(gpio.Level(high)), b.data)
}

// DataOutput turns the data line into an output, starting low
func (b *PinBus) DataOutput() {
	b.latch(b.data.Out(gpio.Low), b.data)
}

// DataInput releases the data line to the tuner
func (b *PinBus) DataInput() {
	b.latch(b.data.In(gpio.PullNoChange, gpio.NoEdge), b.data)
}

// ReadData samples the data line
func (b *PinBus) ReadData() bool {
	return b.data.Read() == gpio.High
}

// Err returns the first line error since the last ClearErr
func (b *PinBus) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// ClearErr forgets the latched error
func (b *PinBus) ClearErr() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = nil
}
