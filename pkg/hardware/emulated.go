package hardware

import (
	"github.com/dougsko/si4735d/pkg/emulator"
	"periph.io/x/conn/v3/gpio"
)

// chipLine routes one emulated line to the chip model, so the emulator
// driver goes through the same PinBus as real hardware.
type chipLine struct {
	name string
	chip *emulator.Chip
	out  func(c *emulator.Chip, l gpio.Level)
	in   func(c *emulator.Chip)
	read func(c *emulator.Chip) gpio.Level
}

func (l *chipLine) Name() string { return l.name }

func (l *chipLine) Out(level gpio.Level) error {
	if l.out != nil {
		l.out(l.chip, level)
	}
	return nil
}

func (l *chipLine) In(pull gpio.Pull, edge gpio.Edge) error {
	if l.in != nil {
		l.in(l.chip)
	}
	return nil
}

func (l *chipLine) Read() gpio.Level {
	if l.read != nil {
		return l.read(l.chip)
	}
	return gpio.Low
}

// emulatedPins returns the SEN, SCLK, SDIO and RST lines of chip.
func emulatedPins(chip *emulator.Chip) (sen, sclk, sdio, rst Pin) {
	sen = &chipLine{name: "EMU_SEN", chip: chip,
		out: func(c *emulator.Chip, l gpio.Level) { c.SetEnable(l == gpio.Low) }}
	sclk = &chipLine{name: "EMU_SCLK", chip: chip,
		out: func(c *emulator.Chip, l gpio.Level) { c.SetClock(l == gpio.High) }}
	sdio = &chipLine{name: "EMU_SDIO", chip: chip,
		out: func(c *emulator.Chip, l gpio.Level) {
			c.DataOutput()
			c.SetData(l == gpio.High)
		},
		in:   func(c *emulator.Chip) { c.DataInput() },
		read: func(c *emulator.Chip) gpio.Level { return gpio.Level(c.ReadData()) }}
	rst = &resetLine{chip: chip, level: gpio.High}
	return sen, sclk, sdio, rst
}

// resetLine resets the chip on a rising edge after a low pulse.
type resetLine struct {
	chip  *emulator.Chip
	level gpio.Level
}

func (r *resetLine) Name() string { return "EMU_RST" }

func (r *resetLine) Out(l gpio.Level) error {
	if r.level == gpio.Low && l == gpio.High {
		r.chip.Reset()
	}
	r.level = l
	return nil
}

func (r *resetLine) In(pull gpio.Pull, edge gpio.Edge) error { return nil }

func (r *resetLine) Read() gpio.Level { return r.level }
