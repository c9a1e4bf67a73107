package hardware

import (
	"runtime"
	"time"
)

// sleepThreshold is the shortest wait handed to the scheduler. Shorter
// waits spin, since a sleep overshoots them by far.
const sleepThreshold = time.Millisecond

// Delay blocks for a number of platform clock cycles. It implements
// si4735.Delayer by converting durations to cycles at ClockHz, so relative
// durations are kept whatever the clock.
type Delay struct {
	ClockHz int
}

// Cycles converts d to clock cycles, rounding up
func (d Delay) Cycles(dur time.Duration) uint64 {
	if dur <= 0 || d.ClockHz <= 0 {
		return 0
	}
	num := uint64(dur) * uint64(d.ClockHz)
	return (num + uint64(time.Second) - 1) / uint64(time.Second)
}

// DelayCycles blocks for n clock cycles
func (d Delay) DelayCycles(n uint64) {
	if n == 0 || d.ClockHz <= 0 {
		return
	}
	wait := time.Duration(n * uint64(time.Second) / uint64(d.ClockHz))
	if wait >= sleepThreshold {
		time.Sleep(wait)
		return
	}
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
}

// Delay blocks for at least dur
func (d Delay) Delay(dur time.Duration) {
	d.DelayCycles(d.Cycles(dur))
}
