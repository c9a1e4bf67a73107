package si4735

import "time"

// transport shifts single bytes over the bus, most significant bit first,
// one bit per clock pulse.
type transport struct {
	bus        Bus
	delay      Delayer
	halfPeriod time.Duration
}

// pulse raises and lowers the clock line once.
func (t *transport) pulse() {
	if t.halfPeriod > 0 {
		t.delay.Delay(t.halfPeriod)
	}
	t.bus.SetClock(true)
	if t.halfPeriod > 0 {
		t.delay.Delay(t.halfPeriod)
	}
	t.bus.SetClock(false)
}

// sendByte writes b while the data line is driven by this side.
func (t *transport) sendByte(b byte) {
	for i := 7; i >= 0; i-- {
		t.bus.SetData(b&(1<<uint(i)) != 0)
		t.pulse()
	}
}

// receiveByte samples the data line once before each clock pulse.
func (t *transport) receiveByte() byte {
	var b byte
	for i := 7; i >= 0; i-- {
		if t.bus.ReadData() {
			b |= 1 << uint(i)
		}
		t.pulse()
	}
	return b
}
