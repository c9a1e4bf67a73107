package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dougsko/si4735d/pkg/config"
	"github.com/dougsko/si4735d/pkg/hardware"
	"github.com/dougsko/si4735d/pkg/logging"
	"github.com/dougsko/si4735d/pkg/protocol"
	"github.com/dougsko/si4735d/pkg/radio"
	"github.com/dougsko/si4735d/pkg/si4735"
	"github.com/dougsko/si4735d/pkg/storage"
)

// Version of the daemon reported in the status
const Version = "0.1.0-dev"

// ErrStopped is returned for work submitted to a stopped engine
var ErrStopped = errors.New("engine stopped")

const defaultHistory = 20

// searchTimeout bounds one scan or seek. It stays under the socket
// client's own wait so the client sees the error instead of a timeout.
var searchTimeout = 110 * time.Second

// request is one unit of tuner work run on the engine goroutine
type request struct {
	fn    func() (interface{}, error)
	reply chan result
}

type result struct {
	value interface{}
	err   error
}

// CoreEngine owns the tuner. Every tuner transaction runs on a single
// goroutine; the socket server, HTTP handlers and the poller submit work
// to it and wait for the result.
type CoreEngine struct {
	config     *config.Config
	socketPath string
	listener   net.Listener
	running    bool
	mutex      sync.RWMutex
	startTime  time.Time

	hardwareManager *hardware.HardwareManager
	device          *si4735.Device
	controller      *radio.Controller
	store           *storage.Store

	requests chan request
	done     chan struct{}
	wg       sync.WaitGroup

	// cancelled when Stop begins so a running scan or seek lets go of
	// the worker
	stopping   context.Context
	cancelStop context.CancelFunc

	// Last measurement, guarded by mutex
	last    radio.Measurement
	hasLast bool

	subMutex    sync.RWMutex
	subscribers map[int]chan radio.Measurement
	nextSub     int
}

// NewCoreEngine creates a new core engine
func NewCoreEngine(cfg *config.Config, socketPath string) *CoreEngine {
	return &CoreEngine{
		config:          cfg,
		socketPath:      socketPath,
		startTime:       time.Now(),
		hardwareManager: hardware.NewHardwareManager(hardware.ConfigFromSettings(cfg)),
		subscribers:     make(map[int]chan radio.Measurement),
	}
}

// Start brings up the bus, resets the tuner and starts serving
func (e *CoreEngine) Start() error {
	if err := e.hardwareManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware manager: %w", err)
	}
	if err := e.hardwareManager.ResetTuner(); err != nil {
		e.hardwareManager.Close()
		return fmt.Errorf("failed to reset tuner: %w", err)
	}

	targets, err := radio.BandsFromConfig(e.config.Bands)
	if err != nil {
		e.hardwareManager.Close()
		return fmt.Errorf("failed to build band table: %w", err)
	}

	opts := []si4735.Option{si4735.WithStrict(e.config.Bus.Strict)}
	if e.config.Bus.SCLKDelayUs > 0 {
		opts = append(opts, si4735.WithClockHalfPeriod(time.Duration(e.config.Bus.SCLKDelayUs)*time.Microsecond))
	}
	e.device = si4735.New(e.hardwareManager.Bus(), e.hardwareManager.Delayer(), opts...)
	e.controller = radio.NewController(e.device, targets)

	if e.config.Storage.DatabasePath != "" {
		store, err := storage.NewStore(e.config.Storage.DatabasePath, e.config.Storage.MaxMeasurements)
		if err != nil {
			e.hardwareManager.Close()
			return fmt.Errorf("failed to open store: %w", err)
		}
		if err := e.controller.SetMemory(store); err != nil {
			log.Printf("Warning: failed to restore band memory: %v", err)
		}
		e.store = store
	}

	if e.socketPath != "" {
		os.Remove(e.socketPath)

		listener, err := net.Listen("unix", e.socketPath)
		if err != nil {
			e.closeResources()
			return fmt.Errorf("failed to create Unix socket: %w", err)
		}
		e.listener = listener

		if err := os.Chmod(e.socketPath, 0660); err != nil {
			log.Printf("Warning: failed to set socket permissions: %v", err)
		}
		log.Printf("Core engine listening on %s", e.socketPath)
	}

	e.mutex.Lock()
	e.running = true
	e.requests = make(chan request)
	e.done = make(chan struct{})
	e.stopping, e.cancelStop = context.WithCancel(context.Background())
	e.mutex.Unlock()

	e.wg.Add(1)
	go e.worker()

	if e.listener != nil {
		e.wg.Add(1)
		go e.acceptConnections()
	}

	if band := e.config.Station.StartBand; band != "" {
		if _, err := e.SelectBand(band); err != nil {
			log.Printf("Warning: failed to select start band %s: %v", band, err)
		}
	}

	return nil
}

// Stop powers the tuner down and releases everything
func (e *CoreEngine) Stop() error {
	e.mutex.Lock()
	if !e.running {
		e.mutex.Unlock()
		return nil
	}
	e.cancelStop()
	e.mutex.Unlock()

	// power down while the worker still runs
	if err := e.PowerOff(); err != nil {
		log.Printf("Warning: failed to power down tuner: %v", err)
	}

	e.mutex.Lock()
	e.running = false
	close(e.done)
	e.mutex.Unlock()

	if e.listener != nil {
		e.listener.Close()
	}
	e.wg.Wait()

	e.subMutex.Lock()
	for id, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, id)
	}
	e.subMutex.Unlock()

	e.closeResources()
	return nil
}

func (e *CoreEngine) closeResources() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			log.Printf("Warning: failed to close store: %v", err)
		}
		e.store = nil
	}
	if e.hardwareManager != nil {
		e.hardwareManager.Close()
	}
	if e.socketPath != "" {
		os.Remove(e.socketPath)
	}
}

// isRunning checks if the engine is running
func (e *CoreEngine) isRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.running
}

// worker executes tuner work and the periodic measurement, one at a time
func (e *CoreEngine) worker() {
	defer e.wg.Done()

	var tick <-chan time.Time
	if e.config.Poll.IntervalMs > 0 {
		ticker := time.NewTicker(time.Duration(e.config.Poll.IntervalMs) * time.Millisecond)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case req := <-e.requests:
			value, err := req.fn()
			e.checkBus()
			req.reply <- result{value: value, err: err}

		case <-tick:
			e.poll()

		case <-e.done:
			return
		}
	}
}

// submit runs fn on the worker goroutine and waits for it
func (e *CoreEngine) submit(fn func() (interface{}, error)) (interface{}, error) {
	e.mutex.RLock()
	requests, done, running := e.requests, e.done, e.running
	e.mutex.RUnlock()
	if !running {
		return nil, ErrStopped
	}

	req := request{fn: fn, reply: make(chan result, 1)}
	select {
	case requests <- req:
	case <-done:
		return nil, ErrStopped
	}
	res := <-req.reply
	return res.value, res.err
}

// measured runs a measuring operation and records its result
func (e *CoreEngine) measured(fn func() (radio.Measurement, error)) (radio.Measurement, error) {
	v, err := e.submit(func() (interface{}, error) {
		m, err := fn()
		if err != nil {
			return m, err
		}
		e.record(m)
		return m, nil
	})
	m, _ := v.(radio.Measurement)
	return m, err
}

// poll takes the periodic measurement while a band is selected
func (e *CoreEngine) poll() {
	if _, ok := e.controller.Current(); !ok {
		return
	}
	m, err := e.controller.Measure()
	e.checkBus()
	if err != nil {
		logging.Warnf("engine", "Poll measurement failed: %v", err)
		return
	}
	e.record(m)
}

// record keeps, stores and fans out a measurement
func (e *CoreEngine) record(m radio.Measurement) {
	e.mutex.Lock()
	e.last = m
	e.hasLast = true
	e.mutex.Unlock()

	if e.store != nil {
		if err := e.store.StoreMeasurement(m); err != nil {
			logging.Warnf("engine", "Failed to store measurement: %v", err)
		}
	}

	e.subMutex.RLock()
	defer e.subMutex.RUnlock()
	for _, ch := range e.subscribers {
		select {
		case ch <- m:
		default:
			// slow subscriber, drop
		}
	}
}

// checkBus reports and clears a latched line error
func (e *CoreEngine) checkBus() {
	if err := e.hardwareManager.Err(); err != nil {
		logging.GetGlobalLogger().WithFields(map[string]interface{}{
			"driver": e.config.Bus.Driver,
			"sen":    e.config.Bus.EnablePin,
			"sdio":   e.config.Bus.DataPin,
		}).Error("engine", fmt.Sprintf("Bus line error: %v", err))
		if bus := e.hardwareManager.Bus(); bus != nil {
			bus.ClearErr()
		}
	}
}

// Subscribe returns a channel receiving every new measurement and a
// function that cancels the subscription
func (e *CoreEngine) Subscribe() (<-chan radio.Measurement, func()) {
	ch := make(chan radio.Measurement, 16)

	e.subMutex.Lock()
	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = ch
	e.subMutex.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMutex.Lock()
			if _, ok := e.subscribers[id]; ok {
				delete(e.subscribers, id)
				close(ch)
			}
			e.subMutex.Unlock()
		})
	}
}

// tunerState is a snapshot taken on the worker goroutine
type tunerState struct {
	target radio.TuneTarget
	on     bool
	mode   si4735.ReceiverMode
	state  si4735.PowerState
}

// Status returns the daemon status
func (e *CoreEngine) Status() protocol.Status {
	status := protocol.Status{
		Station:    e.config.Station.Name,
		Mode:       si4735.ModePoweredDown.String(),
		PowerState: si4735.StateDown.String(),
		Driver:     e.config.Bus.Driver,
		Strict:     e.config.Bus.Strict,
		Uptime:     time.Since(e.startTime).Round(time.Second).String(),
		StartTime:  e.startTime,
		Version:    Version,
	}

	v, err := e.submit(func() (interface{}, error) {
		t, ok := e.controller.Current()
		return tunerState{target: t, on: ok, mode: e.device.Mode(), state: e.device.State()}, nil
	})
	if err != nil {
		return status
	}

	snap := v.(tunerState)
	status.Mode = snap.mode.String()
	status.PowerState = snap.state.String()
	if snap.on {
		status.Running = true
		status.Band = snap.target.Name
		status.Frequency = snap.target.Frequency
		status.Display = radio.FormatFrequency(snap.target.Mode, snap.target.Frequency)
	}
	return status
}

// LastMeasurement returns the most recent measurement, if any
func (e *CoreEngine) LastMeasurement() (radio.Measurement, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.last, e.hasLast
}

// Bands returns the band table with current frequencies
func (e *CoreEngine) Bands() ([]radio.TuneTarget, error) {
	v, err := e.submit(func() (interface{}, error) {
		return e.controller.Bands(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]radio.TuneTarget), nil
}

// SelectBand switches to a band and lights the status LED
func (e *CoreEngine) SelectBand(name string) (radio.Measurement, error) {
	return e.measured(func() (radio.Measurement, error) {
		m, err := e.controller.SelectBand(name)
		if err == nil {
			if err := e.hardwareManager.SetStatusLED(true); err != nil {
				logging.Warnf("engine", "Failed to set status LED: %v", err)
			}
		}
		return m, err
	})
}

// Step moves one channel
func (e *CoreEngine) Step(dir radio.Direction) (radio.Measurement, error) {
	return e.measured(func() (radio.Measurement, error) {
		return e.controller.Step(dir)
	})
}

// searchContext bounds a scan or seek by searchTimeout and by engine
// shutdown.
func (e *CoreEngine) searchContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, searchTimeout)
	e.mutex.RLock()
	stopping := e.stopping
	e.mutex.RUnlock()
	if stopping == nil {
		return ctx, cancel
	}
	release := context.AfterFunc(stopping, cancel)
	return ctx, func() {
		release()
		cancel()
	}
}

// Scan steps until a valid channel, until ctx is done or until
// searchTimeout passes. found is false when the whole band was passed
// without a valid channel.
func (e *CoreEngine) Scan(ctx context.Context, dir radio.Direction) (m radio.Measurement, found bool, err error) {
	ctx, cancel := e.searchContext(ctx)
	defer cancel()
	m, err = e.measured(func() (radio.Measurement, error) {
		var scanErr error
		m, found, scanErr = e.controller.Scan(ctx, dir)
		return m, scanErr
	})
	return m, found, err
}

// Seek runs a hardware seek, bounded like Scan
func (e *CoreEngine) Seek(ctx context.Context, dir radio.Direction) (radio.Measurement, error) {
	ctx, cancel := e.searchContext(ctx)
	defer cancel()
	return e.measured(func() (radio.Measurement, error) {
		return e.controller.Seek(ctx, dir)
	})
}

// Tune tunes within the current band
func (e *CoreEngine) Tune(freq uint16) (radio.Measurement, error) {
	return e.measured(func() (radio.Measurement, error) {
		return e.controller.Tune(freq)
	})
}

// Measure takes a measurement now
func (e *CoreEngine) Measure() (radio.Measurement, error) {
	return e.measured(e.controller.Measure)
}

// RDS reads one RDS group
func (e *CoreEngine) RDS() (radio.RDSGroup, error) {
	v, err := e.submit(func() (interface{}, error) {
		return e.controller.RDS()
	})
	g, _ := v.(radio.RDSGroup)
	return g, err
}

// PowerOff powers the tuner down and clears the status LED
func (e *CoreEngine) PowerOff() error {
	_, err := e.submit(func() (interface{}, error) {
		if err := e.controller.PowerOff(); err != nil {
			return nil, err
		}
		if err := e.hardwareManager.SetStatusLED(false); err != nil {
			logging.Warnf("engine", "Failed to clear status LED: %v", err)
		}
		return nil, nil
	})
	return err
}

// Revision reads the chip revision
func (e *CoreEngine) Revision() (radio.Revision, error) {
	v, err := e.submit(func() (interface{}, error) {
		return e.controller.Revision()
	})
	rev, _ := v.(radio.Revision)
	return rev, err
}

// SetProperty writes a tuner property
func (e *CoreEngine) SetProperty(id, value uint16) error {
	_, err := e.submit(func() (interface{}, error) {
		return nil, e.controller.SetProperty(id, value)
	})
	return err
}

// GetProperty reads a tuner property
func (e *CoreEngine) GetProperty(id uint16) (uint16, error) {
	v, err := e.submit(func() (interface{}, error) {
		return e.controller.GetProperty(id)
	})
	value, _ := v.(uint16)
	return value, err
}

// History returns the most recent stored measurements
func (e *CoreEngine) History(limit int) ([]radio.Measurement, error) {
	if e.store == nil {
		return nil, fmt.Errorf("measurement storage is disabled")
	}
	return e.store.GetRecentMeasurements(limit)
}

// Store returns the measurement store, nil when storage is disabled
func (e *CoreEngine) Store() *storage.Store {
	return e.store
}

// acceptConnections accepts and handles socket connections
func (e *CoreEngine) acceptConnections() {
	defer e.wg.Done()
	for e.isRunning() {
		conn, err := e.listener.Accept()
		if err != nil {
			if e.isRunning() {
				log.Printf("Socket accept error: %v", err)
				continue
			}
			return
		}

		go e.handleConnection(conn)
	}
}

// handleConnection handles a single socket connection. Lines are read on
// their own goroutine so a client hanging up cancels the command it is
// waiting on.
func (e *CoreEngine) handleConnection(conn net.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := make(chan string)
	go func() {
		defer cancel()
		defer close(lines)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for line := range lines {
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := e.HandleCommandContext(ctx, cmd)
		conn.Write([]byte(response.String() + "\n"))

		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// HandleCommand processes a single command
func (e *CoreEngine) HandleCommand(cmd *protocol.Command) *protocol.Response {
	return e.HandleCommandContext(context.Background(), cmd)
}

// HandleCommandContext processes a single command. ctx bounds scans and
// seeks.
func (e *CoreEngine) HandleCommandContext(ctx context.Context, cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdStatus:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"status": e.Status(),
		})

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	case protocol.CmdBands:
		bands, err := e.Bands()
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"bands": bands,
		})

	case protocol.CmdBand:
		band, _ := cmd.Args["band"].(string)
		return measurementResponse(e.SelectBand(band))

	case protocol.CmdStep, protocol.CmdScan, protocol.CmdSeek:
		return e.handleDirection(ctx, cmd)

	case protocol.CmdTune:
		freq, err := parseUint16(cmd.Args["frequency"])
		if err != nil {
			return protocol.NewErrorResponse(fmt.Sprintf("invalid frequency: %v", err))
		}
		return measurementResponse(e.Tune(freq))

	case protocol.CmdMeasure:
		return measurementResponse(e.Measure())

	case protocol.CmdRDS:
		group, err := e.RDS()
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"rds": group,
			"pi":  fmt.Sprintf("%04X", group.PI()),
		})

	case protocol.CmdPower:
		if err := e.PowerOff(); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"power": "off",
		})

	case protocol.CmdRev:
		rev, err := e.Revision()
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"revision": rev,
		})

	case protocol.CmdProperty:
		return e.handleProperty(cmd)

	case protocol.CmdHistory:
		return e.handleHistory(cmd)

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

func (e *CoreEngine) handleDirection(ctx context.Context, cmd *protocol.Command) *protocol.Response {
	text, _ := cmd.Args["direction"].(string)
	dir, err := radio.ParseDirection(text)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}

	switch cmd.Type {
	case protocol.CmdScan:
		m, found, err := e.Scan(ctx, dir)
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"measurement": m,
			"found":       found,
		})
	case protocol.CmdSeek:
		return measurementResponse(e.Seek(ctx, dir))
	default:
		return measurementResponse(e.Step(dir))
	}
}

func (e *CoreEngine) handleProperty(cmd *protocol.Command) *protocol.Response {
	id, err := parseUint16(cmd.Args["id"])
	if err != nil {
		return protocol.NewErrorResponse(fmt.Sprintf("invalid property id: %v", err))
	}

	if cmd.Args["action"] == "set" {
		value, err := parseUint16(cmd.Args["value"])
		if err != nil {
			return protocol.NewErrorResponse(fmt.Sprintf("invalid property value: %v", err))
		}
		if err := e.SetProperty(id, value); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"property": fmt.Sprintf("0x%04X", id),
			"value":    value,
		})
	}

	value, err := e.GetProperty(id)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"property": fmt.Sprintf("0x%04X", id),
		"value":    value,
	})
}

func (e *CoreEngine) handleHistory(cmd *protocol.Command) *protocol.Response {
	limit := defaultHistory
	if text, ok := cmd.Args["limit"].(string); ok {
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 {
			return protocol.NewErrorResponse(fmt.Sprintf("invalid limit %q", text))
		}
		limit = n
	}

	history, err := e.History(limit)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"measurements": history,
		"count":        len(history),
	})
}

func measurementResponse(m radio.Measurement, err error) *protocol.Response {
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"measurement": m,
		"display":     m.FrequencyString(),
	})
}

// parseUint16 accepts decimal or 0x-prefixed hex
func parseUint16(v interface{}) (uint16, error) {
	text, _ := v.(string)
	n, err := strconv.ParseUint(text, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}
