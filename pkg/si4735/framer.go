package si4735

import "github.com/dougsko/si4735d/pkg/verbose"

// Control bytes opening each transaction shape.
const (
	ControlWrite     byte = 0x48
	ControlShortRead byte = 0x80
	ControlLongRead  byte = 0xC0
)

const (
	writePayloadSize    = 8
	longResponseSize    = 16
	interfaceBufferSize = 16
)

// framer brackets transport traffic with the enable line.
type framer struct {
	t *transport
}

// send emits the write control byte followed by all 8 payload bytes.
func (f *framer) send(payload []byte) {
	bus := f.t.bus
	bus.DataOutput()
	bus.SetEnable(true)
	f.t.sendByte(ControlWrite)
	for i := 0; i < writePayloadSize; i++ {
		f.t.sendByte(payload[i])
	}
	bus.SetEnable(false)
	verbose.Transaction(ControlWrite, payload[:writePayloadSize])
}

// shortReceive reads the status byte into buf[0]. buf[1:] is untouched.
func (f *framer) shortReceive(buf []byte) {
	bus := f.t.bus
	bus.DataOutput()
	bus.SetEnable(true)
	f.t.sendByte(ControlShortRead)
	bus.DataInput()
	buf[0] = f.t.receiveByte()
	bus.SetEnable(false)
	verbose.Transaction(ControlShortRead, buf[:1])
}

// longReceive reads the status byte and all 15 response bytes, including
// filler the command does not define.
func (f *framer) longReceive(buf []byte) {
	bus := f.t.bus
	bus.DataOutput()
	bus.SetEnable(true)
	f.t.sendByte(ControlLongRead)
	bus.DataInput()
	for i := 0; i < longResponseSize; i++ {
		buf[i] = f.t.receiveByte()
	}
	bus.SetEnable(false)
	verbose.Transaction(ControlLongRead, buf[:longResponseSize])
}
