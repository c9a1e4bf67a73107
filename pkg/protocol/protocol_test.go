package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseCommand(t *testing.T) {
	t.Run("STATUS Command", func(t *testing.T) {
		cmd, err := ParseCommand("STATUS")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cmd.Type != "STATUS" {
			t.Errorf("Expected type STATUS, got %s", cmd.Type)
		}
		if len(cmd.Args) != 0 {
			t.Errorf("Expected no args for STATUS, got %d", len(cmd.Args))
		}
	})

	t.Run("BAND Command", func(t *testing.T) {
		cmd, err := ParseCommand("BAND:mw")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cmd.Type != CmdBand {
			t.Errorf("Expected type BAND, got %s", cmd.Type)
		}
		if cmd.Args["band"] != "MW" {
			t.Errorf("Expected band MW, got %v", cmd.Args["band"])
		}
	})

	t.Run("BAND Without Name", func(t *testing.T) {
		if _, err := ParseCommand("BAND"); err == nil {
			t.Error("Expected error for BAND without a name")
		}
	})

	t.Run("Direction Commands", func(t *testing.T) {
		tests := []struct {
			text      string
			typ       string
			direction string
		}{
			{"STEP:UP", CmdStep, "up"},
			{"step:down", CmdStep, "down"},
			{"SCAN:DOWN", CmdScan, "down"},
			{"SEEK:Up", CmdSeek, "up"},
			{"SEEK", CmdSeek, "up"},
		}
		for _, tt := range tests {
			t.Run(tt.text, func(t *testing.T) {
				cmd, err := ParseCommand(tt.text)
				if err != nil {
					t.Fatalf("Expected no error, got: %v", err)
				}
				if cmd.Type != tt.typ {
					t.Errorf("Expected type %s, got %s", tt.typ, cmd.Type)
				}
				if cmd.Args["direction"] != tt.direction {
					t.Errorf("Expected direction %s, got %v", tt.direction, cmd.Args["direction"])
				}
			})
		}
	})

	t.Run("Invalid Direction", func(t *testing.T) {
		if _, err := ParseCommand("STEP:SIDEWAYS"); err == nil {
			t.Error("Expected error for invalid direction")
		}
	})

	t.Run("TUNE Command", func(t *testing.T) {
		cmd, err := ParseCommand("TUNE:9410")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Args["frequency"] != "9410" {
			t.Errorf("Expected frequency 9410, got %v", cmd.Args["frequency"])
		}
	})

	t.Run("POWER Command", func(t *testing.T) {
		cmd, err := ParseCommand("POWER:off")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Args["state"] != "off" {
			t.Errorf("Expected state off, got %v", cmd.Args["state"])
		}

		if _, err := ParseCommand("POWER:ON"); err == nil {
			t.Error("Expected error for POWER:ON")
		}
	})

	t.Run("PROPERTY Command Set", func(t *testing.T) {
		cmd, err := ParseCommand("PROPERTY:set:0x1100:1")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cmd.Type != CmdProperty {
			t.Errorf("Expected type PROPERTY, got %s", cmd.Type)
		}
		if cmd.Args["action"] != "set" {
			t.Errorf("Expected action set, got %v", cmd.Args["action"])
		}
		if cmd.Args["id"] != "0x1100" {
			t.Errorf("Expected id 0x1100, got %v", cmd.Args["id"])
		}
		if cmd.Args["value"] != "1" {
			t.Errorf("Expected value 1, got %v", cmd.Args["value"])
		}
	})

	t.Run("PROPERTY Command Get", func(t *testing.T) {
		cmd, err := ParseCommand("PROPERTY:get:0x1100")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cmd.Args["action"] != "get" {
			t.Errorf("Expected action get, got %v", cmd.Args["action"])
		}
		if _, exists := cmd.Args["value"]; exists {
			t.Errorf("Expected no value for get command, got %v", cmd.Args["value"])
		}
	})

	t.Run("PROPERTY Malformed", func(t *testing.T) {
		for _, text := range []string{"PROPERTY", "PROPERTY:get", "PROPERTY:set:0x1100", "PROPERTY:del:1"} {
			if _, err := ParseCommand(text); err == nil {
				t.Errorf("Expected error for %s", text)
			}
		}
	})

	t.Run("HISTORY Command", func(t *testing.T) {
		cmd, err := ParseCommand("HISTORY:20")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Args["limit"] != "20" {
			t.Errorf("Expected limit 20, got %v", cmd.Args["limit"])
		}

		cmd, err = ParseCommand("HISTORY")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(cmd.Args) != 0 {
			t.Errorf("Expected no args for bare HISTORY, got %d", len(cmd.Args))
		}
	})

	t.Run("Simple Commands", func(t *testing.T) {
		commands := []string{"QUIT", "PING", "MEASURE", "REV", "BANDS", "RDS"}
		for _, cmdText := range commands {
			t.Run(cmdText, func(t *testing.T) {
				cmd, err := ParseCommand(cmdText)
				if err != nil {
					t.Fatalf("Expected no error for %s, got: %v", cmdText, err)
				}
				if cmd.Type != cmdText {
					t.Errorf("Expected type %s, got %s", cmdText, cmd.Type)
				}
				if len(cmd.Args) != 0 {
					t.Errorf("Expected no args for %s, got %d", cmdText, len(cmd.Args))
				}
			})
		}
	})

	t.Run("Case Insensitive", func(t *testing.T) {
		cmd, err := ParseCommand("measure")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Type != "MEASURE" {
			t.Errorf("Expected uppercase MEASURE, got %s", cmd.Type)
		}
	})

	t.Run("Whitespace Handling", func(t *testing.T) {
		cmd, err := ParseCommand("  PING  ")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Type != "PING" {
			t.Errorf("Expected type PING, got %s", cmd.Type)
		}
	})

	t.Run("Unknown Command", func(t *testing.T) {
		cmd, err := ParseCommand("UNKNOWN:test")
		if err != nil {
			t.Fatalf("Expected no error for unknown command, got: %v", err)
		}
		if cmd.Type != "UNKNOWN" {
			t.Errorf("Expected type UNKNOWN, got %s", cmd.Type)
		}
		if len(cmd.Args) != 0 {
			t.Errorf("Expected no args for unknown command, got %d", len(cmd.Args))
		}
	})

	t.Run("Empty Command", func(t *testing.T) {
		if _, err := ParseCommand("   "); err == nil {
			t.Error("Expected error for empty command")
		}
	})
}

func TestResponse(t *testing.T) {
	t.Run("Success Response JSON", func(t *testing.T) {
		resp := NewSuccessResponse(map[string]interface{}{
			"band":      "FM",
			"frequency": 9410,
		})

		if !resp.Success {
			t.Error("Expected success to be true")
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(resp.String()), &parsed); err != nil {
			t.Fatalf("Failed to parse JSON: %v", err)
		}
		if parsed["success"] != true {
			t.Error("Expected success true in JSON")
		}
		data := parsed["data"].(map[string]interface{})
		if data["frequency"] != float64(9410) {
			t.Errorf("Expected frequency 9410, got %v", data["frequency"])
		}
	})

	t.Run("Error Response JSON", func(t *testing.T) {
		resp := NewErrorResponse("unknown band")

		if resp.Success {
			t.Error("Expected success to be false")
		}
		if resp.Data != nil {
			t.Errorf("Expected no data for error response, got %v", resp.Data)
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(resp.String()), &parsed); err != nil {
			t.Fatalf("Failed to parse JSON: %v", err)
		}
		if parsed["error"] != "unknown band" {
			t.Errorf("Expected error in JSON, got %v", parsed["error"])
		}
	})

	t.Run("Decode Through The Wire", func(t *testing.T) {
		resp := NewSuccessResponse(map[string]interface{}{
			"status": Status{Station: "kitchen", Running: true, Band: "FM", Frequency: 9410, PowerState: "UP"},
		})

		var wire Response
		if err := json.Unmarshal([]byte(resp.String()), &wire); err != nil {
			t.Fatalf("Failed to parse JSON: %v", err)
		}

		var status Status
		if err := wire.Decode("status", &status); err != nil {
			t.Fatalf("Failed to decode status: %v", err)
		}
		if status.Station != "kitchen" || status.Band != "FM" || status.Frequency != 9410 {
			t.Errorf("Unexpected status %+v", status)
		}

		if err := wire.Decode("missing", &status); err == nil {
			t.Error("Expected error for a missing key")
		}
	})
}
