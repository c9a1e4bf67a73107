package console

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dougsko/si4735d/pkg/protocol"
	"github.com/dougsko/si4735d/pkg/radio"
	"github.com/dougsko/si4735d/pkg/si4735"
)

// fakeRadio records calls and answers with canned measurements
type fakeRadio struct {
	calls []string
	freq  uint16
	on    bool
}

func (f *fakeRadio) m() *radio.Measurement {
	return &radio.Measurement{Band: "FM", Mode: si4735.ModeFM, Frequency: f.freq, RSSI: 42, SNR: 24, Stereo: true, Blend: 100, Valid: f.freq == 9410}
}

func (f *fakeRadio) GetStatus() (*protocol.Status, error) {
	f.calls = append(f.calls, "status")
	st := &protocol.Status{Station: "bench", PowerState: "DOWN", Mode: "DOWN", Driver: "emulator", Version: "0.1.0-dev"}
	if f.on {
		st.Running, st.Band, st.Display, st.PowerState, st.Mode = true, "FM", "94.10 MHz", "UP", "FM"
	}
	return st, nil
}

func (f *fakeRadio) GetBands() ([]radio.TuneTarget, error) {
	f.calls = append(f.calls, "bands")
	return []radio.TuneTarget{
		{Band: radio.Band{Name: "FM", Mode: si4735.ModeFM, Bottom: 8750, Top: 10800, Step: 5}, Frequency: 9410},
		{Band: radio.Band{Name: "MW", Mode: si4735.ModeAM, Bottom: 522, Top: 1620, Step: 9}, Frequency: 522},
	}, nil
}

func (f *fakeRadio) SelectBand(name string) (*radio.Measurement, error) {
	f.calls = append(f.calls, "band "+name)
	if name != "FM" {
		return nil, radio.ErrUnknownBand
	}
	f.on, f.freq = true, 8750
	return f.m(), nil
}

func (f *fakeRadio) Step(dir radio.Direction) (*radio.Measurement, error) {
	f.calls = append(f.calls, "step "+dir.String())
	f.freq = uint16(int(f.freq) + 5*int(dir))
	return f.m(), nil
}

func (f *fakeRadio) Scan(dir radio.Direction) (*radio.Measurement, error) {
	f.calls = append(f.calls, "scan "+dir.String())
	f.freq = 9410
	return f.m(), nil
}

func (f *fakeRadio) Seek(dir radio.Direction) (*radio.Measurement, error) {
	f.calls = append(f.calls, "seek "+dir.String())
	f.freq = 9410
	return f.m(), nil
}

func (f *fakeRadio) Tune(freq uint16) (*radio.Measurement, error) {
	f.calls = append(f.calls, "tune")
	f.freq = freq
	return f.m(), nil
}

func (f *fakeRadio) Measure() (*radio.Measurement, error) {
	f.calls = append(f.calls, "measure")
	return f.m(), nil
}

func (f *fakeRadio) RDS() (*radio.RDSGroup, error) {
	return &radio.RDSGroup{Synchronized: true, FIFOUsed: 1, Blocks: [4]uint16{0xD3C2, 0x0400, 0, 0}}, nil
}

func (f *fakeRadio) PowerOff() error {
	f.calls = append(f.calls, "off")
	f.on = false
	return nil
}

func (f *fakeRadio) Revision() (*radio.Revision, error) {
	return &radio.Revision{PartNumber: "Si4735", Firmware: "6.0", PatchID: 0x1234, Component: "2.0", ChipRevision: "D"}, nil
}

func (f *fakeRadio) GetHistory(limit int) ([]radio.Measurement, error) {
	if limit > 2 {
		limit = 2
	}
	out := make([]radio.Measurement, limit)
	for i := range out {
		out[i] = *f.m()
		out[i].Time = time.Now()
	}
	return out, nil
}

func TestExecute(t *testing.T) {
	fake := &fakeRadio{}
	s := New(fake)

	run := func(t *testing.T, args ...string) string {
		t.Helper()
		out, err := s.Execute(args...)
		if err != nil {
			t.Fatalf("Execute %v failed: %v", args, err)
		}
		return out
	}
	lastCall := func() string {
		return fake.calls[len(fake.calls)-1]
	}

	t.Run("Band", func(t *testing.T) {
		out := run(t, "band", "fm")
		if !strings.Contains(out, "87.50 MHz") {
			t.Errorf("Expected 87.50 MHz in output, got %q", out)
		}
		if lastCall() != "band FM" {
			t.Errorf("Expected band FM call, got %q", lastCall())
		}
	})

	t.Run("Step Aliases", func(t *testing.T) {
		run(t, "+")
		out := run(t, "down")
		if !strings.Contains(out, "87.50 MHz") {
			t.Errorf("Expected 87.50 MHz in output, got %q", out)
		}
		calls := strings.Join(fake.calls[len(fake.calls)-2:], ",")
		if calls != "step up,step down" {
			t.Errorf("Expected step up then step down, got %s", calls)
		}
	})

	t.Run("Scan Marks Valid", func(t *testing.T) {
		out := run(t, "scan", "up")
		if !strings.HasSuffix(out, "*") {
			t.Errorf("Expected valid marker, got %q", out)
		}
		if !strings.Contains(out, "stereo 100%") {
			t.Errorf("Expected stereo blend in output, got %q", out)
		}
	})

	t.Run("Seek Direction", func(t *testing.T) {
		run(t, "seek", "down")
		if lastCall() != "seek down" {
			t.Errorf("Expected seek down call, got %q", lastCall())
		}
		if _, err := s.Execute("seek", "left"); err == nil {
			t.Error("Expected error for direction left")
		}
	})

	t.Run("Tune", func(t *testing.T) {
		out := run(t, "tune", "10070")
		if !strings.Contains(out, "100.70 MHz") {
			t.Errorf("Expected 100.70 MHz in output, got %q", out)
		}
		if _, err := s.Execute("tune", "fm"); err == nil {
			t.Error("Expected error for non-numeric frequency")
		}
		if _, err := s.Execute("tune"); err == nil {
			t.Error("Expected error for missing frequency")
		}
	})

	t.Run("Bands", func(t *testing.T) {
		lines := strings.Split(run(t, "bands"), "\n")
		if len(lines) != 2 {
			t.Fatalf("Expected 2 lines, got %d", len(lines))
		}
		if !strings.Contains(lines[1], "522 kHz - 1620 kHz") {
			t.Errorf("Expected MW range, got %q", lines[1])
		}
	})

	t.Run("RDS", func(t *testing.T) {
		if out := run(t, "rds"); !strings.Contains(out, "PI D3C2") {
			t.Errorf("Expected PI D3C2, got %q", out)
		}
	})

	t.Run("Revision", func(t *testing.T) {
		if out := run(t, "rev"); !strings.HasPrefix(out, "Si4735-D60") {
			t.Errorf("Expected Si4735-D60 prefix, got %q", out)
		}
	})

	t.Run("History", func(t *testing.T) {
		out := run(t, "history", "5")
		if n := len(strings.Split(out, "\n")); n != 2 {
			t.Errorf("Expected 2 history lines, got %d", n)
		}
		if _, err := s.Execute("history", "x"); err == nil {
			t.Error("Expected error for bad limit")
		}
	})

	t.Run("Off And Status", func(t *testing.T) {
		if out := run(t, "off"); out != "OFF" {
			t.Errorf("Expected OFF, got %q", out)
		}
		if out := run(t, "status"); !strings.Contains(out, "bench: off") {
			t.Errorf("Expected bench: off, got %q", out)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		if _, err := s.Execute("band", "LW"); !errors.Is(err, radio.ErrUnknownBand) {
			t.Errorf("Expected ErrUnknownBand, got %v", err)
		}
		if _, err := s.Execute("jump"); err == nil {
			t.Error("Expected error for unknown command")
		}
		if _, err := s.Execute(); err == nil {
			t.Error("Expected error for empty command")
		}
	})
}

func TestExecuteJSON(t *testing.T) {
	fake := &fakeRadio{}
	s := New(fake)
	s.OutputJSON = true

	out, err := s.Execute("band", "FM")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, want := range []string{`"frequency":8750`, `"mode":"FM"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in %s", want, out)
		}
	}
}

func TestFormatMeasurement(t *testing.T) {
	m := radio.Measurement{Band: "MW", Mode: si4735.ModeAM, Frequency: 1008, RSSI: 35, SNR: 12, FrequencyOffset: -2, Antcap: 291, Valid: true}
	out := FormatMeasurement(m)
	for _, want := range []string{"1008 kHz", "offset -2 kHz", "antcap 291"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "stereo") {
		t.Errorf("Expected no stereo for AM, got %q", out)
	}
}
