package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Command represents a command sent to the core engine
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the core engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Status represents the current daemon status
type Status struct {
	Station    string    `json:"station"`
	Running    bool      `json:"running"`
	Band       string    `json:"band,omitempty"`
	Mode       string    `json:"mode"`
	Frequency  uint16    `json:"frequency,omitempty"`
	Display    string    `json:"display,omitempty"`
	PowerState string    `json:"power_state"`
	Driver     string    `json:"driver"`
	Strict     bool      `json:"strict"`
	Uptime     string    `json:"uptime"`
	StartTime  time.Time `json:"start_time"`
	Version    string    `json:"version"`
}

// Protocol commands
const (
	CmdStatus   = "STATUS"
	CmdPing     = "PING"
	CmdQuit     = "QUIT"
	CmdBand     = "BAND"
	CmdBands    = "BANDS"
	CmdStep     = "STEP"
	CmdScan     = "SCAN"
	CmdSeek     = "SEEK"
	CmdTune     = "TUNE"
	CmdMeasure  = "MEASURE"
	CmdRDS      = "RDS"
	CmdPower    = "POWER"
	CmdRev      = "REV"
	CmdProperty = "PROPERTY"
	CmdHistory  = "HISTORY"
)

// ParseCommand parses a text command into a Command struct. Commands are
// NAME or NAME:ARGS; the argument layout depends on the command.
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty command")
	}
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(parts[0]),
		Args: make(map[string]interface{}),
	}

	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	switch cmd.Type {
	case CmdBand:
		// BAND:FM
		if args == "" {
			return nil, fmt.Errorf("BAND requires a band name")
		}
		cmd.Args["band"] = strings.ToUpper(args)

	case CmdStep, CmdScan, CmdSeek:
		// STEP:UP, SCAN:DOWN, SEEK:UP
		direction := strings.ToLower(args)
		if direction == "" {
			direction = "up"
		}
		if direction != "up" && direction != "down" {
			return nil, fmt.Errorf("%s direction must be UP or DOWN, got %q", cmd.Type, args)
		}
		cmd.Args["direction"] = direction

	case CmdTune:
		// TUNE:9410
		if args == "" {
			return nil, fmt.Errorf("TUNE requires a frequency")
		}
		cmd.Args["frequency"] = args

	case CmdPower:
		// POWER:OFF
		if strings.ToUpper(args) != "OFF" {
			return nil, fmt.Errorf("POWER only supports OFF")
		}
		cmd.Args["state"] = "off"

	case CmdProperty:
		// PROPERTY:set:0x1100:1 or PROPERTY:get:0x1100
		propertyParts := strings.SplitN(args, ":", 3)
		action := strings.ToLower(propertyParts[0])
		switch {
		case action == "get" && len(propertyParts) >= 2:
		case action == "set" && len(propertyParts) == 3:
			cmd.Args["value"] = propertyParts[2]
		default:
			return nil, fmt.Errorf("PROPERTY expects set:<id>:<value> or get:<id>")
		}
		cmd.Args["action"] = action
		cmd.Args["id"] = propertyParts[1]

	case CmdHistory:
		// HISTORY or HISTORY:20
		if args != "" {
			cmd.Args["limit"] = args
		}
	}

	return cmd, nil
}

// String converts a Response to its JSON line form
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// Decode re-encodes the value stored under key into out
func (r *Response) Decode(key string, out interface{}) error {
	value, ok := r.Data[key]
	if !ok {
		return fmt.Errorf("%s not found in response", key)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}
