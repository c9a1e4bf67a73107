package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/si4735d/pkg/client"
	"github.com/dougsko/si4735d/pkg/config"
	"github.com/dougsko/si4735d/pkg/engine"
	"github.com/dougsko/si4735d/pkg/logging"
	"github.com/dougsko/si4735d/pkg/publish"
)

// Daemon owns the core engine and the surfaces around it: the web API and
// the MQTT publisher
type Daemon struct {
	config     *config.Config
	configPath string
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	// Core components
	coreEngine   *engine.CoreEngine
	socketClient *client.SocketClient
	router       *gin.Engine
	webServer    *http.Server
	publisher    *publish.Publisher

	socketPath string
}

// NewDaemon creates a new daemon instance
func NewDaemon(cfg *config.Config, configPath string) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	socketPath := cfg.API.UnixSocket
	if socketPath == "" {
		socketPath = "/tmp/si4735d.sock"
	}

	daemon := &Daemon{
		config:       cfg,
		configPath:   configPath,
		ctx:          ctx,
		cancel:       cancel,
		socketPath:   socketPath,
		socketClient: client.NewSocketClient(socketPath),
	}

	daemon.coreEngine = engine.NewCoreEngine(cfg, socketPath)

	if err := daemon.setupWebServer(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup web server: %w", err)
	}

	return daemon, nil
}

// Start starts the daemon
func (d *Daemon) Start() error {
	log.Printf("Starting si4735d daemon...")

	if err := d.coreEngine.Start(); err != nil {
		return fmt.Errorf("failed to start core engine: %w", err)
	}

	if !d.socketClient.IsConnected() {
		d.coreEngine.Stop()
		return fmt.Errorf("failed to connect to core engine socket")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		log.Printf("Starting web server on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Web server error: %v", err)
		}
	}()

	if d.config.MQTT.Enabled {
		if err := d.startPublisher(); err != nil {
			// the tuner is still usable locally
			logging.Warnf("mqtt", "Publisher disabled: %v", err)
		}
	}

	return nil
}

// startPublisher connects to the broker and forwards every measurement
func (d *Daemon) startPublisher() error {
	publisher, err := publish.NewPublisher(d.config.MQTT.Broker, d.config.MQTT.Topic)
	if err != nil {
		return err
	}
	if err := publisher.Connect(); err != nil {
		return err
	}
	d.publisher = publisher

	updates, unsubscribe := d.coreEngine.Subscribe()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer unsubscribe()
		publisher.Run(d.ctx, updates)
	}()

	logging.Infof("mqtt", "Publishing measurements on %s", publisher.Topic(publish.TopicRSQ))
	return nil
}

// Stop stops the daemon gracefully
func (d *Daemon) Stop() error {
	log.Printf("Stopping daemon...")

	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			log.Printf("Web server shutdown error: %v", err)
		}
	}

	if d.coreEngine != nil {
		if err := d.coreEngine.Stop(); err != nil {
			log.Printf("Core engine shutdown error: %v", err)
		}
	}

	d.wg.Wait()

	if d.publisher != nil {
		d.publisher.Close()
	}

	log.Printf("Daemon stopped")
	return nil
}

// setupWebServer initializes the web server and routes
func (d *Daemon) setupWebServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/bands", d.handleGetBands)
		api.PUT("/band", d.handleSelectBand)
		api.POST("/step", d.handleStep)
		api.POST("/scan", d.handleScan)
		api.POST("/seek", d.handleSeek)
		api.PUT("/frequency", d.handleSetFrequency)
		api.GET("/measure", d.handleMeasure)
		api.GET("/rds", d.handleRDS)
		api.POST("/power/off", d.handlePowerOff)
		api.GET("/rev", d.handleRevision)
		api.GET("/properties/:id", d.handleGetProperty)
		api.PUT("/properties/:id", d.handleSetProperty)
		api.GET("/history", d.handleGetHistory)
		api.GET("/channels", d.handleGetChannels)
		api.GET("/stats", d.handleGetStats)
		api.DELETE("/history", d.handleClearHistory)
		api.GET("/config", d.handleGetConfig)
		api.GET("/ws", d.handleWebSocket)
	}

	d.router = router
	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: router,
	}

	return nil
}
