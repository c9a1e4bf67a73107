package si4735

import "time"

// Status byte bits (byte 0 of every response).
const (
	StatusCTS    byte = 0x80 // clear to send
	StatusERR    byte = 0x40
	StatusRSQINT byte = 0x08
	StatusRDSINT byte = 0x04
	StatusSTCINT byte = 0x01
)

// Power-up setup bits. The high nibble bits may be ORed together; exactly
// one function code goes in the low nibble.
const (
	SetupCTSIEN byte = 0x80
	SetupGPO2OE byte = 0x40
	SetupPatch  byte = 0x20
	SetupXOSCEN byte = 0x10
	SetupFM     byte = 0x00
	SetupAM     byte = 0x01
	SetupQLID   byte = 0x0F
)

// Power-up audio output selection.
const (
	AudioRDSOnly byte = 0x00
	AudioAnalog  byte = 0x05
	AudioDigital byte = 0xB0
)

// Tune and seek arguments.
const (
	TuneFast   byte = 0x01
	TuneFreeze byte = 0x02 // FM only

	SeekUp     byte = 0x08
	SeekDown   byte = 0x00
	SeekWrap   byte = 0x04
	SeekNoWrap byte = 0x00
)

// Status command arguments.
const (
	ArgCancel byte = 0x02 // tune status: cancel a running seek
	ArgIntAck byte = 0x01

	RDSStatusOnly byte = 0x04
	RDSClearFIFO  byte = 0x02
)

// AGC override and GPIO arguments.
const (
	AGCDisable byte = 0x01
	AGCEnable  byte = 0x00

	GPO3OutputEnable byte = 0x08
	GPO2OutputEnable byte = 0x04
	GPO1OutputEnable byte = 0x02

	GPO3High byte = 0x08
	GPO2High byte = 0x04
	GPO1High byte = 0x02
)

// Settle delays between a write transaction and its receive.
const (
	BaselineSettle    = 300 * time.Microsecond
	PowerUpSettle     = 300 * time.Millisecond
	SetPropertySettle = 10 * time.Millisecond
	FMTuneSettle      = 120 * time.Millisecond
	AMTuneSettle      = 200 * time.Millisecond
)
