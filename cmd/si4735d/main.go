package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/si4735d/pkg/config"
	"github.com/dougsko/si4735d/pkg/engine"
	"github.com/dougsko/si4735d/pkg/logging"
	"github.com/dougsko/si4735d/pkg/verbose"
)

var (
	configPath  = flag.String("config", "config.yaml", "Configuration file path")
	version     = flag.Bool("version", false, "Show version information")
	verboseFlag = flag.Bool("v", false, "Log every bus transfer")
)

const Build = "development"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("si4735d version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}
	verbose.SetEnabled(*verboseFlag)

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Info("main", fmt.Sprintf("si4735d version %s starting...", engine.Version))
	logging.Info("main", fmt.Sprintf("Station: %s", cfg.Station.Name))
	logging.Info("main", fmt.Sprintf("Bus: %s (SEN %s, SCLK %s, SDIO %s, RST %s)",
		cfg.Bus.Driver, cfg.Bus.EnablePin, cfg.Bus.ClockPin, cfg.Bus.DataPin, cfg.Bus.ResetPin))
	logging.Info("main", fmt.Sprintf("Web interface: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port))

	daemon, err := NewDaemon(cfg, *configPath)
	if err != nil {
		logging.Error("main", fmt.Sprintf("Failed to create daemon: %v", err))
		os.Exit(1)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Error("main", fmt.Sprintf("Failed to start daemon: %v", err))
		os.Exit(1)
	}

	logging.Info("main", "si4735d started successfully")

	<-sigChan
	logging.Info("main", "Shutting down...")

	if err := daemon.Stop(); err != nil {
		logging.Error("main", fmt.Sprintf("Error during shutdown: %v", err))
	}

	logging.Info("main", "si4735d stopped")
}
