package radio

import (
	"fmt"
	"strings"

	"github.com/dougsko/si4735d/pkg/config"
	"github.com/dougsko/si4735d/pkg/si4735"
)

// Band is one entry of the band table. Frequencies are in the tuner's
// units: 10 kHz in FM, 1 kHz in AM.
type Band struct {
	Name   string              `json:"name"`
	Mode   si4735.ReceiverMode `json:"mode"`
	Bottom uint16              `json:"bottom"`
	Top    uint16              `json:"top"`
	Step   uint16              `json:"step"`
	Antcap uint16              `json:"antcap"`
}

// TuneTarget is a band together with the frequency last used on it.
type TuneTarget struct {
	Band
	Frequency uint16 `json:"frequency"`
}

// ModeName returns "FM" or "AM"
func (b Band) ModeName() string {
	return b.Mode.String()
}

// Contains reports whether freq lies inside the band
func (b Band) Contains(freq uint16) bool {
	return freq >= b.Bottom && freq <= b.Top
}

// Channels returns the number of step positions in the band
func (b Band) Channels() int {
	return int(b.Top-b.Bottom)/int(b.Step) + 1
}

// next steps freq by dir channels, wrapping at both edges.
func (b Band) next(freq uint16, dir int) uint16 {
	f := int(freq) + int(b.Step)*dir
	if f < int(b.Bottom) {
		return b.Top
	}
	if f > int(b.Top) {
		return b.Bottom
	}
	return uint16(f)
}

// BandsFromConfig builds the band table from the config
func BandsFromConfig(cfg []config.BandConfig) ([]TuneTarget, error) {
	targets := make([]TuneTarget, 0, len(cfg))
	for _, bc := range cfg {
		mode := si4735.ModeFM
		switch strings.ToLower(bc.Mode) {
		case "fm":
		case "am":
			mode = si4735.ModeAM
		default:
			return nil, fmt.Errorf("band %s: unknown mode %q", bc.Name, bc.Mode)
		}
		freq := bc.Frequency
		if freq == 0 {
			freq = bc.Bottom
		}
		targets = append(targets, TuneTarget{
			Band: Band{
				Name:   strings.ToUpper(bc.Name),
				Mode:   mode,
				Bottom: bc.Bottom,
				Top:    bc.Top,
				Step:   bc.Step,
				Antcap: bc.Antcap,
			},
			Frequency: freq,
		})
	}
	return targets, nil
}
