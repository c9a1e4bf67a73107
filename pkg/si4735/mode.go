package si4735

import "fmt"

// ReceiverMode is the function code recorded from the low nibble of the
// power-up setup argument.
type ReceiverMode uint8

// Receiver modes. ModePoweredDown is the value before the first power-up.
const (
	ModeFM          ReceiverMode = 0x00
	ModeAM          ReceiverMode = 0x01
	ModeLibraryID   ReceiverMode = 0x0F
	ModePoweredDown ReceiverMode = 0xFF
)

// String returns a short name for the mode
func (m ReceiverMode) String() string {
	switch m {
	case ModeFM:
		return "FM"
	case ModeAM:
		return "AM"
	case ModeLibraryID:
		return "QLID"
	case ModePoweredDown:
		return "DOWN"
	default:
		return fmt.Sprintf("MODE(0x%02X)", uint8(m))
	}
}

// MarshalText encodes the mode by name
func (m ReceiverMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name written by MarshalText
func (m *ReceiverMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "FM":
		*m = ModeFM
	case "AM":
		*m = ModeAM
	case "QLID":
		*m = ModeLibraryID
	case "DOWN":
		*m = ModePoweredDown
	default:
		var v uint8
		if _, err := fmt.Sscanf(string(text), "MODE(0x%02X)", &v); err != nil {
			return fmt.Errorf("unknown receiver mode %q", text)
		}
		*m = ReceiverMode(v)
	}
	return nil
}

// PowerState tracks the power sequencing state machine.
type PowerState int

const (
	StateDown PowerState = iota
	StateUp
)

// String returns string representation of the power state
func (s PowerState) String() string {
	if s == StateUp {
		return "UP"
	}
	return "DOWN"
}
