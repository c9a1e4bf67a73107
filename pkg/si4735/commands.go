package si4735

import (
	"fmt"
	"time"
)

// Command names a logical tuner command.
type Command int

const (
	CmdPowerUp Command = iota
	CmdGetRev
	CmdPowerDown
	CmdSetProperty
	CmdGetProperty
	CmdGetIntStatus
	CmdTuneFreq
	CmdSeekStart
	CmdTuneStatus
	CmdRSQStatus
	CmdRDSStatus
	CmdAGCStatus
	CmdAGCOverride
	CmdGPIOCtl
	CmdGPIOSet
)

var commandNames = map[Command]string{
	CmdPowerUp:      "POWER_UP",
	CmdGetRev:       "GET_REV",
	CmdPowerDown:    "POWER_DOWN",
	CmdSetProperty:  "SET_PROPERTY",
	CmdGetProperty:  "GET_PROPERTY",
	CmdGetIntStatus: "GET_INT_STATUS",
	CmdTuneFreq:     "TUNE_FREQ",
	CmdSeekStart:    "SEEK_START",
	CmdTuneStatus:   "TUNE_STATUS",
	CmdRSQStatus:    "RSQ_STATUS",
	CmdRDSStatus:    "FM_RDS_STATUS",
	CmdAGCStatus:    "AGC_STATUS",
	CmdAGCOverride:  "AGC_OVERRIDE",
	CmdGPIOCtl:      "GPIO_CTL",
	CmdGPIOSet:      "GPIO_SET",
}

// String returns the command name
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COMMAND(%d)", int(c))
}

// ResponseShape says which receive transaction follows a command.
type ResponseShape int

const (
	ResponseShort ResponseShape = iota // status byte only
	ResponseLong                       // status byte plus 15 response bytes
)

// String returns string representation of the response shape
func (r ResponseShape) String() string {
	if r == ResponseLong {
		return "long"
	}
	return "short"
}

// params carries every argument a command encoder may need.
type params struct {
	setup    byte
	audioOut byte
	arg1     byte
	arg2     byte
	freq     uint16
	antcap   uint16
	property uint16
	value    uint16
}

// commandSpec describes the wire layout of one command in one mode.
// length counts the opcode plus argument bytes; offsets length..7 are
// zeroed before the write.
type commandSpec struct {
	opcode   byte
	length   int
	response ResponseShape
	settle   time.Duration
	encode   func(b []byte, p params)
}

type commandKey struct {
	cmd  Command
	mode ReceiverMode
}

// anyMode keys commands whose layout does not depend on the receiver mode.
const anyMode ReceiverMode = 0xFE

func putUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

var commandTable = map[commandKey]commandSpec{
	{CmdPowerUp, anyMode}: {opcode: 0x01, length: 3, response: ResponseShort, settle: PowerUpSettle,
		encode: func(b []byte, p params) {
			b[1] = p.setup
			b[2] = p.audioOut
		}},
	{CmdGetRev, anyMode}:       {opcode: 0x10, length: 1, response: ResponseLong},
	{CmdPowerDown, anyMode}:    {opcode: 0x11, length: 1, response: ResponseShort},
	{CmdGetIntStatus, anyMode}: {opcode: 0x14, length: 1, response: ResponseShort},
	{CmdSetProperty, anyMode}: {opcode: 0x12, length: 6, response: ResponseShort, settle: SetPropertySettle,
		encode: func(b []byte, p params) {
			b[1] = 0x00
			putUint16(b[2:], p.property)
			putUint16(b[4:], p.value)
		}},
	{CmdGetProperty, anyMode}: {opcode: 0x13, length: 4, response: ResponseShort,
		encode: func(b []byte, p params) {
			b[1] = 0x00
			putUint16(b[2:], p.property)
		}},
	{CmdRDSStatus, anyMode}: {opcode: 0x24, length: 2, response: ResponseLong, encode: encodeArg1},
	{CmdGPIOCtl, anyMode}:   {opcode: 0x80, length: 2, response: ResponseShort, encode: encodeArg1},
	{CmdGPIOSet, anyMode}:   {opcode: 0x81, length: 2, response: ResponseShort, encode: encodeArg1},

	{CmdTuneFreq, ModeFM}: {opcode: 0x20, length: 5, response: ResponseShort, settle: FMTuneSettle,
		encode: func(b []byte, p params) {
			b[1] = p.setup
			putUint16(b[2:], p.freq)
			b[4] = byte(p.antcap)
		}},
	{CmdTuneFreq, ModeAM}: {opcode: 0x40, length: 6, response: ResponseShort, settle: AMTuneSettle,
		encode: func(b []byte, p params) {
			b[1] = p.setup & TuneFast
			putUint16(b[2:], p.freq)
			putUint16(b[4:], p.antcap)
		}},
	{CmdSeekStart, ModeFM}: {opcode: 0x21, length: 6, response: ResponseShort,
		encode: func(b []byte, p params) {
			b[1] = p.arg1
			b[2], b[3], b[4], b[5] = 0, 0, 0, 0
		}},
	{CmdSeekStart, ModeAM}: {opcode: 0x41, length: 6, response: ResponseShort,
		encode: func(b []byte, p params) {
			b[1] = p.arg1
			b[2], b[3] = 0, 0
			putUint16(b[4:], p.antcap)
		}},
	{CmdTuneStatus, ModeFM}:  {opcode: 0x22, length: 2, response: ResponseLong, encode: encodeArg1},
	{CmdTuneStatus, ModeAM}:  {opcode: 0x42, length: 2, response: ResponseLong, encode: encodeArg1},
	{CmdRSQStatus, ModeFM}:   {opcode: 0x23, length: 2, response: ResponseLong, encode: encodeArg1},
	{CmdRSQStatus, ModeAM}:   {opcode: 0x43, length: 2, response: ResponseLong, encode: encodeArg1},
	{CmdAGCStatus, ModeFM}:   {opcode: 0x27, length: 1, response: ResponseLong},
	{CmdAGCStatus, ModeAM}:   {opcode: 0x47, length: 1, response: ResponseLong},
	{CmdAGCOverride, ModeFM}: {opcode: 0x28, length: 3, response: ResponseShort, encode: encodeAGCOverride},
	{CmdAGCOverride, ModeAM}: {opcode: 0x48, length: 3, response: ResponseShort, encode: encodeAGCOverride},
}

func encodeArg1(b []byte, p params) {
	b[1] = p.arg1
}

func encodeAGCOverride(b []byte, p params) {
	b[1] = p.arg1
	b[2] = p.arg2
}

// lookup resolves the layout of cmd for the given mode. Mode-dependent
// commands issued outside FM or AM resolve to the FM layout, which is what
// the chip's zero function code selects.
func lookup(cmd Command, mode ReceiverMode) (commandSpec, bool) {
	if spec, ok := commandTable[commandKey{cmd, anyMode}]; ok {
		return spec, true
	}
	if spec, ok := commandTable[commandKey{cmd, mode}]; ok {
		return spec, true
	}
	spec, ok := commandTable[commandKey{cmd, ModeFM}]
	return spec, ok
}

// IsModeDependent reports whether the opcode and layout of cmd follow the
// receiver mode.
func IsModeDependent(cmd Command) bool {
	_, generic := commandTable[commandKey{cmd, anyMode}]
	return !generic
}

// Opcode returns the opcode cmd uses in mode.
func Opcode(cmd Command, mode ReceiverMode) (byte, bool) {
	spec, ok := lookup(cmd, mode)
	return spec.opcode, ok
}
