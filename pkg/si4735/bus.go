package si4735

import "time"

// Bus is the three-line serial interface the tuner is wired to.
//
// Enable is active low on the chip; SetEnable(true) asserts it. Data is
// driven by this side only after DataOutput and sampled after DataInput.
// None of the methods report errors: a broken bus shows up as garbage in
// the interface buffer and nowhere else.
type Bus interface {
	SetEnable(active bool)
	SetClock(high bool)
	SetData(high bool)
	DataOutput()
	DataInput()
	ReadData() bool
}

// Delayer blocks the caller for at least d.
type Delayer interface {
	Delay(d time.Duration)
}

// DelayFunc adapts an ordinary function to the Delayer interface.
type DelayFunc func(d time.Duration)

// Delay calls f(d).
func (f DelayFunc) Delay(d time.Duration) {
	f(d)
}
