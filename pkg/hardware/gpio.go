package hardware

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const sysfsRoot = "/sys/class/gpio"

// SysfsPin implements Pin on the legacy Linux sysfs GPIO interface
type SysfsPin struct {
	number    int
	root      string
	exported  bool
	direction string
	value     *os.File
	mutex     sync.Mutex
}

// NewSysfsPin creates a sysfs line from its kernel GPIO number given as
// a decimal string
func NewSysfsPin(name string) (*SysfsPin, error) {
	number, err := strconv.Atoi(strings.TrimPrefix(name, "GPIO"))
	if err != nil {
		return nil, fmt.Errorf("sysfs pin %q is not a GPIO number: %w", name, err)
	}
	return &SysfsPin{number: number, root: sysfsRoot}, nil
}

// Name returns the kernel name of the line
func (p *SysfsPin) Name() string {
	return fmt.Sprintf("GPIO%d", p.number)
}

// Out drives the line, switching it to output first if needed
func (p *SysfsPin) Out(l gpio.Level) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err := p.setDirection("out"); err != nil {
		return err
	}

	valueStr := "0"
	if l == gpio.High {
		valueStr = "1"
	}
	if _, err := p.value.WriteAt([]byte(valueStr), 0); err != nil {
		return fmt.Errorf("failed to set pin %d value: %w", p.number, err)
	}
	return nil
}

// In releases the line. Pull and edge detection are not available through
// sysfs and are ignored.
func (p *SysfsPin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.setDirection("in")
}

// Read samples the line. A failed read yields Low.
func (p *SysfsPin) Read() gpio.Level {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.value == nil {
		return gpio.Low
	}
	buf := make([]byte, 1)
	if _, err := p.value.ReadAt(buf, 0); err != nil {
		log.Printf("SysfsGPIO: Failed to read pin %d: %v", p.number, err)
		return gpio.Low
	}
	return buf[0] == '1'
}

// Close unexports the line
func (p *SysfsPin) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.value != nil {
		p.value.Close()
		p.value = nil
	}
	if !p.exported {
		return nil
	}
	p.exported = false
	p.direction = ""

	unexportPath := p.root + "/unexport"
	if err := os.WriteFile(unexportPath, []byte(strconv.Itoa(p.number)), 0644); err != nil {
		return fmt.Errorf("failed to unexport GPIO pin %d: %w", p.number, err)
	}
	log.Printf("SysfsGPIO: Unexported pin %d", p.number)
	return nil
}

// setDirection exports the pin on first use and keeps the value file open
// so a clock edge is a single write.
func (p *SysfsPin) setDirection(direction string) error {
	if !p.exported {
		if err := p.export(); err != nil {
			return err
		}
		p.exported = true
	}
	if p.direction == direction {
		return nil
	}

	directionPath := fmt.Sprintf("%s/gpio%d/direction", p.root, p.number)
	if err := os.WriteFile(directionPath, []byte(direction), 0644); err != nil {
		return fmt.Errorf("failed to set pin %d direction to %s: %w", p.number, direction, err)
	}
	p.direction = direction

	if p.value == nil {
		valuePath := fmt.Sprintf("%s/gpio%d/value", p.root, p.number)
		f, err := os.OpenFile(valuePath, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("failed to open pin %d value: %w", p.number, err)
		}
		p.value = f
	}
	return nil
}

// export exports a GPIO pin to userspace
func (p *SysfsPin) export() error {
	pinPath := fmt.Sprintf("%s/gpio%d", p.root, p.number)
	if _, err := os.Stat(pinPath); err == nil {
		return nil // Already exported
	}

	exportPath := p.root + "/export"
	if err := os.WriteFile(exportPath, []byte(strconv.Itoa(p.number)), 0644); err != nil {
		return fmt.Errorf("failed to export GPIO pin %d: %w", p.number, err)
	}

	// Wait for the kernel to create the pin directory
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(pinPath); err == nil {
			log.Printf("SysfsGPIO: Exported pin %d", p.number)
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}

	return fmt.Errorf("pin %d directory did not appear after export", p.number)
}
