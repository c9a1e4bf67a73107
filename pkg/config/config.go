package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Bus drivers
const (
	DriverPeriph   = "periph"
	DriverSysfs    = "sysfs"
	DriverEmulator = "emulator"
)

// BandConfig describes one entry of the band table
type BandConfig struct {
	Name      string `yaml:"name"`
	Mode      string `yaml:"mode"` // "fm" or "am"
	Bottom    uint16 `yaml:"bottom"`
	Top       uint16 `yaml:"top"`
	Step      uint16 `yaml:"step"`
	Antcap    uint16 `yaml:"antcap"`
	Frequency uint16 `yaml:"frequency"`
}

// StationConfig places a signal on the emulated chip
type StationConfig struct {
	Band      string `yaml:"band"` // "fm" or "am"
	Frequency uint16 `yaml:"frequency"`
	RSSI      byte   `yaml:"rssi"`
	SNR       byte   `yaml:"snr"`
	Stereo    bool   `yaml:"stereo"`
	PI        uint16 `yaml:"pi"`
}

// Config represents the si4735d configuration
type Config struct {
	Station struct {
		Name string `yaml:"name"`
		// Band selected at startup; empty leaves the receiver off
		StartBand string `yaml:"start_band"`
	} `yaml:"station"`

	Bus struct {
		Driver string `yaml:"driver"`

		// Line names as known to the driver: periph pin names
		// ("GPIO17") or sysfs numbers ("17").
		EnablePin string `yaml:"sen_pin"`
		ClockPin  string `yaml:"sclk_pin"`
		DataPin   string `yaml:"sdio_pin"`
		ResetPin  string `yaml:"rst_pin"`
		LEDPin    string `yaml:"status_led_pin"`

		ClockHz     int  `yaml:"clock_hz"`
		SCLKDelayUs int  `yaml:"sclk_delay_us"`
		Strict      bool `yaml:"strict"`

		// Signals present when the emulator driver is selected
		Stations []StationConfig `yaml:"emulator_stations"`
	} `yaml:"bus"`

	Bands []BandConfig `yaml:"bands"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Storage struct {
		DatabasePath    string `yaml:"database_path"`
		MaxMeasurements int    `yaml:"max_measurements"`
	} `yaml:"storage"`

	MQTT struct {
		Enabled bool   `yaml:"enabled"`
		Broker  string `yaml:"broker"`
		Topic   string `yaml:"topic"`
	} `yaml:"mqtt"`

	Poll struct {
		IntervalMs int `yaml:"interval_ms"`
	} `yaml:"poll"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// DefaultBands is the band table used when the config lists none
func DefaultBands() []BandConfig {
	return []BandConfig{
		{Name: "FM", Mode: "fm", Bottom: 8750, Top: 10800, Step: 5, Frequency: 8750},
		{Name: "MW", Mode: "am", Bottom: 522, Top: 1620, Step: 9, Frequency: 522},
		{Name: "SW", Mode: "am", Bottom: 2300, Top: 23000, Step: 5, Frequency: 2300},
	}
}

// Default returns a configuration with every default applied
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Station.Name == "" {
		c.Station.Name = "si4735d"
	}
	if c.Bus.Driver == "" {
		c.Bus.Driver = DriverEmulator
	}
	if c.Bus.EnablePin == "" {
		c.Bus.EnablePin = "GPIO8"
	}
	if c.Bus.ClockPin == "" {
		c.Bus.ClockPin = "GPIO11"
	}
	if c.Bus.DataPin == "" {
		c.Bus.DataPin = "GPIO10"
	}
	if c.Bus.ResetPin == "" {
		c.Bus.ResetPin = "GPIO25"
	}
	if c.Bus.ClockHz == 0 {
		c.Bus.ClockHz = 8000000
	}
	if c.Bus.Driver == DriverEmulator && len(c.Bus.Stations) == 0 {
		c.Bus.Stations = []StationConfig{
			{Band: "fm", Frequency: 9410, RSSI: 42, SNR: 24, Stereo: true, PI: 0xD3C2},
			{Band: "fm", Frequency: 10070, RSSI: 30, SNR: 15, Stereo: true},
			{Band: "am", Frequency: 1008, RSSI: 35, SNR: 12},
			{Band: "am", Frequency: 6005, RSSI: 22, SNR: 8},
		}
	}
	if len(c.Bands) == 0 {
		c.Bands = DefaultBands()
	}
	for i := range c.Bands {
		b := &c.Bands[i]
		b.Mode = strings.ToLower(b.Mode)
		if b.Frequency == 0 {
			b.Frequency = b.Bottom
		}
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/si4735d.sock"
	}
	if c.Storage.MaxMeasurements == 0 {
		c.Storage.MaxMeasurements = 10000
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "si4735d"
	}
	if c.Poll.IntervalMs == 0 {
		c.Poll.IntervalMs = 1000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 30
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Bus.Driver {
	case DriverPeriph, DriverSysfs, DriverEmulator:
	default:
		return fmt.Errorf("unknown bus driver %q", c.Bus.Driver)
	}
	if c.Bus.Driver != DriverEmulator {
		if c.Bus.EnablePin == "" || c.Bus.ClockPin == "" || c.Bus.DataPin == "" || c.Bus.ResetPin == "" {
			return fmt.Errorf("bus pins are required for driver %s", c.Bus.Driver)
		}
	}
	if c.Bus.SCLKDelayUs < 0 {
		return fmt.Errorf("sclk delay must not be negative")
	}

	seen := make(map[string]bool)
	for _, b := range c.Bands {
		name := strings.ToUpper(b.Name)
		if name == "" {
			return fmt.Errorf("band name is required")
		}
		if seen[name] {
			return fmt.Errorf("duplicate band %s", b.Name)
		}
		seen[name] = true

		if b.Mode != "fm" && b.Mode != "am" {
			return fmt.Errorf("band %s: mode must be fm or am, got %q", b.Name, b.Mode)
		}
		if b.Bottom == 0 || b.Top <= b.Bottom {
			return fmt.Errorf("band %s: invalid range %d..%d", b.Name, b.Bottom, b.Top)
		}
		if b.Step == 0 {
			return fmt.Errorf("band %s: step is required", b.Name)
		}
		if b.Frequency < b.Bottom || b.Frequency > b.Top {
			return fmt.Errorf("band %s: frequency %d outside %d..%d", b.Name, b.Frequency, b.Bottom, b.Top)
		}
	}

	if c.Station.StartBand != "" && !seen[strings.ToUpper(c.Station.StartBand)] {
		return fmt.Errorf("start band %s is not in the band table", c.Station.StartBand)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required when mqtt is enabled")
	}
	if c.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	return nil
}
