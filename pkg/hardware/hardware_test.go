package hardware

import (
	"testing"

	"github.com/dougsko/si4735d/pkg/config"
	"github.com/dougsko/si4735d/pkg/si4735"
	"periph.io/x/conn/v3/gpio"
)

func TestHardwareManagerEmulator(t *testing.T) {
	manager := NewHardwareManager(HardwareConfig{
		Driver: config.DriverEmulator,
		LEDPin: "LED",
		Stations: []config.StationConfig{
			{Band: "fm", Frequency: 9410, RSSI: 40, SNR: 20},
		},
	})

	if manager.IsInitialized() {
		t.Error("Expected manager to not be initialized initially")
	}

	t.Run("Initialize", func(t *testing.T) {
		if err := manager.Initialize(); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !manager.IsInitialized() {
			t.Error("Expected manager to be initialized")
		}
		if manager.Chip() == nil {
			t.Fatal("Expected emulated chip")
		}
		// Second call is a no-op
		if err := manager.Initialize(); err != nil {
			t.Errorf("Expected no error on double initialization, got: %v", err)
		}
	})

	t.Run("Reset Powers The Tuner Down", func(t *testing.T) {
		dev := si4735.New(manager.Bus(), manager.Delayer())
		if err := dev.PowerUp(si4735.SetupFM, si4735.AudioAnalog); err != nil {
			t.Fatalf("Failed to power up: %v", err)
		}
		if !manager.Chip().Powered() {
			t.Fatal("Expected chip to be powered")
		}
		if err := manager.ResetTuner(); err != nil {
			t.Fatalf("Failed to reset: %v", err)
		}
		if manager.Chip().Powered() {
			t.Error("Expected reset to power the chip down")
		}
	})

	t.Run("Status LED", func(t *testing.T) {
		if err := manager.SetStatusLED(true); err != nil {
			t.Errorf("Failed to set LED: %v", err)
		}
		if manager.led.Read() != gpio.High {
			t.Error("Expected LED on")
		}
	})

	t.Run("Close", func(t *testing.T) {
		if err := manager.Close(); err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if manager.IsInitialized() {
			t.Error("Expected manager to be closed")
		}
		if err := manager.ResetTuner(); err == nil {
			t.Error("Expected error resetting a closed bus")
		}
	})
}

func TestHardwareManagerUnknownDriver(t *testing.T) {
	manager := NewHardwareManager(HardwareConfig{Driver: "spidev"})
	if err := manager.Initialize(); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
