// Package console is an interactive shell for the tuner daemon. It takes
// the place of the receiver's keypad: select a band, step, scan, seek and
// read the signal.
package console

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/dougsko/si4735d/pkg/protocol"
	"github.com/dougsko/si4735d/pkg/radio"
)

const (
	shellKey  = "$shell"
	offPrompt = "[off] > "
)

// Radio is the daemon surface the console drives. *client.SocketClient
// implements it.
type Radio interface {
	GetStatus() (*protocol.Status, error)
	GetBands() ([]radio.TuneTarget, error)
	SelectBand(name string) (*radio.Measurement, error)
	Step(dir radio.Direction) (*radio.Measurement, error)
	Scan(dir radio.Direction) (*radio.Measurement, error)
	Seek(dir radio.Direction) (*radio.Measurement, error)
	Tune(frequency uint16) (*radio.Measurement, error)
	Measure() (*radio.Measurement, error)
	RDS() (*radio.RDSGroup, error)
	PowerOff() error
	Revision() (*radio.Revision, error)
	GetHistory(limit int) ([]radio.Measurement, error)
}

// Shell provides the ishell backed console
type Shell struct {
	OutputJSON bool

	Shell *ishell.Shell
	Radio Radio
}

// command is one console command. run returns the text to print.
type command struct {
	name    string
	aliases []string
	help    string
	run     func(s *Shell, args []string) (string, error)
}

var commands = []command{
	{"band", []string{"b"}, "NAME  select a band (FM, MW, SW)", (*Shell).band},
	{"bands", nil, "list the band table", (*Shell).bands},
	{"up", []string{"u", "+"}, "step one channel up", stepCmd(radio.Up)},
	{"down", []string{"d", "-"}, "step one channel down", stepCmd(radio.Down)},
	{"scan", nil, "[up|down]  step until a station is found", (*Shell).scan},
	{"seek", nil, "[up|down]  hardware seek to the next station", (*Shell).seek},
	{"tune", []string{"t"}, "FREQ  tune to 9410 (94.10 MHz) or 1008 (kHz)", (*Shell).tune},
	{"measure", []string{"m"}, "read signal quality", (*Shell).measure},
	{"rds", nil, "read one RDS group (FM)", (*Shell).rds},
	{"off", nil, "power the tuner down", (*Shell).off},
	{"status", []string{"s"}, "show daemon status", (*Shell).status},
	{"rev", nil, "show chip revision", (*Shell).rev},
	{"history", nil, "[N]  show stored measurements", (*Shell).history},
}

// New creates a console driving r
func New(r Radio) *Shell {
	s := &Shell{
		Shell: ishell.New(),
		Radio: r,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(offPrompt)
	for _, cmd := range commands {
		cmd := cmd
		s.Shell.AddCmd(&ishell.Cmd{
			Name:    cmd.name,
			Aliases: cmd.aliases,
			Help:    cmd.help,
			Func: func(c *ishell.Context) {
				out, err := cmd.run(ShellFrom(c), c.Args)
				if err != nil {
					c.Err(err)
					return
				}
				if out != "" {
					c.Println(out)
				}
			},
		})
	}
	return s
}

// ShellFrom gets Shell from ishell context
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Execute runs one command line without the interactive shell and
// returns its output
func (s *Shell) Execute(args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("command expected")
	}
	name := strings.ToLower(args[0])
	for _, cmd := range commands {
		if cmd.name == name || contains(cmd.aliases, name) {
			return cmd.run(s, args[1:])
		}
	}
	return "", fmt.Errorf("unknown command %q", args[0])
}

// Run runs a single command when args are given, the interactive shell
// otherwise
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		out, err := s.Execute(args...)
		if err != nil {
			return err
		}
		if out != "" {
			fmt.Println(out)
		}
		return nil
	}
	if st, err := s.Radio.GetStatus(); err == nil {
		s.updatePrompt(st.Running, st.Band, st.Display)
	}
	s.Shell.Println("si4735 console, type help for commands")
	s.Shell.Run()
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *Shell) updatePrompt(on bool, band, display string) {
	if !on {
		s.Shell.SetPrompt(offPrompt)
		return
	}
	s.Shell.SetPrompt(fmt.Sprintf("[%s %s] > ", band, display))
}

func (s *Shell) json(v interface{}) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// show prints a measurement and moves the prompt to its frequency
func (s *Shell) show(m *radio.Measurement, err error) (string, error) {
	if err != nil {
		return "", err
	}
	s.updatePrompt(true, m.Band, m.FrequencyString())
	if s.OutputJSON {
		return s.json(m)
	}
	return FormatMeasurement(*m), nil
}

// FormatMeasurement renders a measurement on one line
func FormatMeasurement(m radio.Measurement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-3s %12s  RSSI %3d dBuV  SNR %3d dB", m.Band, m.FrequencyString(), m.RSSI, m.SNR)
	if m.Stereo {
		fmt.Fprintf(&b, "  stereo %d%%", m.Blend)
	}
	fmt.Fprintf(&b, "  offset %+d kHz  LNA %d", m.FrequencyOffset, m.LNAGain)
	if m.Antcap != 0 {
		fmt.Fprintf(&b, "  antcap %d", m.Antcap)
	}
	if m.Valid {
		b.WriteString("  *")
	}
	return b.String()
}

func direction(args []string) (radio.Direction, error) {
	if len(args) == 0 {
		return radio.Up, nil
	}
	return radio.ParseDirection(args[0])
}

func (s *Shell) band(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: band NAME")
	}
	return s.show(s.Radio.SelectBand(strings.ToUpper(args[0])))
}

func (s *Shell) bands(args []string) (string, error) {
	bands, err := s.Radio.GetBands()
	if err != nil {
		return "", err
	}
	if s.OutputJSON {
		return s.json(bands)
	}
	lines := make([]string, 0, len(bands))
	for _, b := range bands {
		lines = append(lines, fmt.Sprintf("%-3s %s  %s - %s  step %d  at %s",
			b.Name, b.ModeName(),
			radio.FormatFrequency(b.Mode, b.Bottom), radio.FormatFrequency(b.Mode, b.Top),
			b.Step, radio.FormatFrequency(b.Mode, b.Frequency)))
	}
	return strings.Join(lines, "\n"), nil
}

func stepCmd(dir radio.Direction) func(*Shell, []string) (string, error) {
	return func(s *Shell, args []string) (string, error) {
		return s.show(s.Radio.Step(dir))
	}
}

func (s *Shell) scan(args []string) (string, error) {
	dir, err := direction(args)
	if err != nil {
		return "", err
	}
	return s.show(s.Radio.Scan(dir))
}

func (s *Shell) seek(args []string) (string, error) {
	dir, err := direction(args)
	if err != nil {
		return "", err
	}
	return s.show(s.Radio.Seek(dir))
}

func (s *Shell) tune(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: tune FREQ")
	}
	freq, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return "", fmt.Errorf("invalid frequency %q", args[0])
	}
	return s.show(s.Radio.Tune(uint16(freq)))
}

func (s *Shell) measure(args []string) (string, error) {
	return s.show(s.Radio.Measure())
}

func (s *Shell) rds(args []string) (string, error) {
	g, err := s.Radio.RDS()
	if err != nil {
		return "", err
	}
	if s.OutputJSON {
		return s.json(g)
	}
	return fmt.Sprintf("PI %04X  blocks %04X %04X %04X %04X  sync %t  fifo %d",
		g.PI(), g.Blocks[0], g.Blocks[1], g.Blocks[2], g.Blocks[3], g.Synchronized, g.FIFOUsed), nil
}

func (s *Shell) off(args []string) (string, error) {
	if err := s.Radio.PowerOff(); err != nil {
		return "", err
	}
	s.updatePrompt(false, "", "")
	return "OFF", nil
}

func (s *Shell) status(args []string) (string, error) {
	st, err := s.Radio.GetStatus()
	if err != nil {
		return "", err
	}
	s.updatePrompt(st.Running, st.Band, st.Display)
	if s.OutputJSON {
		return s.json(st)
	}
	state := "off"
	if st.Running {
		state = fmt.Sprintf("%s %s", st.Band, st.Display)
	}
	return fmt.Sprintf("%s: %s  tuner %s (%s)  driver %s  up %s  v%s",
		st.Station, state, st.PowerState, st.Mode, st.Driver, st.Uptime, st.Version), nil
}

func (s *Shell) rev(args []string) (string, error) {
	rev, err := s.Radio.Revision()
	if err != nil {
		return "", err
	}
	if s.OutputJSON {
		return s.json(rev)
	}
	out := fmt.Sprintf("%s-%s%s firmware %s patch %04X", rev.PartNumber, rev.ChipRevision,
		strings.ReplaceAll(rev.Firmware, ".", ""), rev.Firmware, rev.PatchID)
	if rev.Component != "" {
		out += " component " + rev.Component
	}
	if rev.LibraryID != 0 {
		out += fmt.Sprintf(" library %d", rev.LibraryID)
	}
	return out, nil
}

func (s *Shell) history(args []string) (string, error) {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return "", fmt.Errorf("invalid count %q", args[0])
		}
		limit = n
	}
	history, err := s.Radio.GetHistory(limit)
	if err != nil {
		return "", err
	}
	if s.OutputJSON {
		return s.json(history)
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Time.Local().Format("15:04:05")+"  "+FormatMeasurement(m))
	}
	return strings.Join(lines, "\n"), nil
}
