package radio

import (
	"fmt"

	"github.com/dougsko/si4735d/pkg/si4735"
)

// FormatFrequency renders freq in MHz for FM and kHz for AM
func FormatFrequency(mode si4735.ReceiverMode, freq uint16) string {
	if mode == si4735.ModeAM {
		return fmt.Sprintf("%d kHz", freq)
	}
	return fmt.Sprintf("%d.%02d MHz", freq/100, freq%100)
}
