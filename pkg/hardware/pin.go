package hardware

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Pin is one digital line. Every gpio.PinIO satisfies it, so periph pins
// are used as they are; the other drivers in this package implement the
// same subset.
type Pin interface {
	Name() string
	Out(l gpio.Level) error
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// OpenPeriphPins registers the host drivers and resolves each name through
// the periph registry.
func OpenPeriphPins(names ...string) ([]Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	pins := make([]Pin, len(names))
	for i, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("failed to find GPIO pin %s", name)
		}
		pins[i] = p
	}

	log.Printf("Periph: Opened pins %v", names)
	return pins, nil
}
