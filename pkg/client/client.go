package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dougsko/si4735d/pkg/protocol"
	"github.com/dougsko/si4735d/pkg/radio"
)

const (
	defaultTimeout = 5 * time.Second
	// a full scan of a wide band at FM settle times takes close to a minute
	searchTimeout = 2 * time.Minute
)

// SocketClient represents a client connection to the core engine
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    defaultTimeout,
	}
}

// SetTimeout changes the timeout of short commands
func (c *SocketClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	return c.send(cmd, c.timeout)
}

func (c *SocketClient) send(cmd string, timeout time.Duration) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

// call sends cmd and decodes the value under key into out when out is not nil
func (c *SocketClient) call(cmd string, timeout time.Duration, key string, out interface{}) error {
	resp, err := c.send(cmd, timeout)
	if err != nil {
		return err
	}

	if !resp.Success {
		name := strings.ToLower(strings.SplitN(cmd, ":", 2)[0])
		return fmt.Errorf("%s error: %s", name, resp.Error)
	}

	if out == nil {
		return nil
	}
	return resp.Decode(key, out)
}

// GetStatus gets the current daemon status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	var status protocol.Status
	if err := c.call(protocol.CmdStatus, c.timeout, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetBands gets the band table with the current frequency of every band
func (c *SocketClient) GetBands() ([]radio.TuneTarget, error) {
	var bands []radio.TuneTarget
	if err := c.call(protocol.CmdBands, c.timeout, "bands", &bands); err != nil {
		return nil, err
	}
	return bands, nil
}

// SelectBand switches the receiver to a band
func (c *SocketClient) SelectBand(name string) (*radio.Measurement, error) {
	return c.measurement(fmt.Sprintf("%s:%s", protocol.CmdBand, name), c.timeout)
}

// Step moves one channel up or down
func (c *SocketClient) Step(dir radio.Direction) (*radio.Measurement, error) {
	return c.measurement(fmt.Sprintf("%s:%s", protocol.CmdStep, dir), c.timeout)
}

// Scan steps until a valid channel is found
func (c *SocketClient) Scan(dir radio.Direction) (*radio.Measurement, error) {
	return c.measurement(fmt.Sprintf("%s:%s", protocol.CmdScan, dir), searchTimeout)
}

// Seek runs the tuner's hardware seek
func (c *SocketClient) Seek(dir radio.Direction) (*radio.Measurement, error) {
	return c.measurement(fmt.Sprintf("%s:%s", protocol.CmdSeek, dir), searchTimeout)
}

// Tune sets the frequency within the current band
func (c *SocketClient) Tune(frequency uint16) (*radio.Measurement, error) {
	return c.measurement(fmt.Sprintf("%s:%d", protocol.CmdTune, frequency), c.timeout)
}

// Measure takes a fresh measurement
func (c *SocketClient) Measure() (*radio.Measurement, error) {
	return c.measurement(protocol.CmdMeasure, c.timeout)
}

func (c *SocketClient) measurement(cmd string, timeout time.Duration) (*radio.Measurement, error) {
	var m radio.Measurement
	if err := c.call(cmd, timeout, "measurement", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// RDS reads one RDS group
func (c *SocketClient) RDS() (*radio.RDSGroup, error) {
	var group radio.RDSGroup
	if err := c.call(protocol.CmdRDS, c.timeout, "rds", &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// PowerOff powers the tuner down
func (c *SocketClient) PowerOff() error {
	return c.call(protocol.CmdPower+":OFF", c.timeout, "", nil)
}

// Revision reads the chip revision
func (c *SocketClient) Revision() (*radio.Revision, error) {
	var rev radio.Revision
	if err := c.call(protocol.CmdRev, c.timeout, "revision", &rev); err != nil {
		return nil, err
	}
	return &rev, nil
}

// SetProperty writes a tuner property
func (c *SocketClient) SetProperty(id, value uint16) error {
	return c.call(fmt.Sprintf("%s:set:0x%04X:%d", protocol.CmdProperty, id, value), c.timeout, "", nil)
}

// GetProperty reads a tuner property
func (c *SocketClient) GetProperty(id uint16) (uint16, error) {
	var value uint16
	err := c.call(fmt.Sprintf("%s:get:0x%04X", protocol.CmdProperty, id), c.timeout, "value", &value)
	return value, err
}

// GetHistory gets the most recent stored measurements
func (c *SocketClient) GetHistory(limit int) ([]radio.Measurement, error) {
	cmd := protocol.CmdHistory
	if limit > 0 {
		cmd = fmt.Sprintf("%s:%d", protocol.CmdHistory, limit)
	}

	var history []radio.Measurement
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("history error: %s", resp.Error)
	}
	if _, ok := resp.Data["measurements"]; !ok {
		return []radio.Measurement{}, nil
	}
	if err := resp.Decode("measurements", &history); err != nil {
		return nil, err
	}
	return history, nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	return c.call(protocol.CmdPing, c.timeout, "", nil)
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
