package main

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v2"

	"github.com/dougsko/si4735d/pkg/engine"
	"github.com/dougsko/si4735d/pkg/radio"
	"github.com/dougsko/si4735d/pkg/storage"
)

// directionRequest is the body of step, scan and seek. An empty
// direction means up.
type directionRequest struct {
	Direction string `json:"direction"`
}

func (d *Daemon) direction(c *gin.Context) (radio.Direction, bool) {
	var req directionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return 0, false
		}
	}
	if req.Direction == "" {
		req.Direction = c.DefaultQuery("direction", "up")
	}
	dir, err := radio.ParseDirection(req.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return dir, true
}

// respondMeasurement writes a measurement or the error that prevented it
func respondMeasurement(c *gin.Context, m *radio.Measurement, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"measurement": m,
		"display":     m.FrequencyString(),
	})
}

// handleGetStatus returns daemon status via socket
func (d *Daemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// handleGetBands returns the band table
func (d *Daemon) handleGetBands(c *gin.Context) {
	bands, err := d.socketClient.GetBands()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bands": bands,
		"count": len(bands),
	})
}

// handleSelectBand switches the receiver to a band
func (d *Daemon) handleSelectBand(c *gin.Context) {
	var req struct {
		Band string `json:"band" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := d.socketClient.SelectBand(strings.ToUpper(req.Band))
	respondMeasurement(c, m, err)
}

// handleStep moves one channel
func (d *Daemon) handleStep(c *gin.Context) {
	dir, ok := d.direction(c)
	if !ok {
		return
	}
	m, err := d.socketClient.Step(dir)
	respondMeasurement(c, m, err)
}

// handleScan steps until a station is found
func (d *Daemon) handleScan(c *gin.Context) {
	dir, ok := d.direction(c)
	if !ok {
		return
	}
	m, err := d.socketClient.Scan(dir)
	respondMeasurement(c, m, err)
}

// handleSeek runs the tuner's hardware seek
func (d *Daemon) handleSeek(c *gin.Context) {
	dir, ok := d.direction(c)
	if !ok {
		return
	}
	m, err := d.socketClient.Seek(dir)
	respondMeasurement(c, m, err)
}

// handleSetFrequency tunes within the current band via socket
func (d *Daemon) handleSetFrequency(c *gin.Context) {
	var req struct {
		Frequency uint16 `json:"frequency" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := d.socketClient.Tune(req.Frequency)
	respondMeasurement(c, m, err)
}

// handleMeasure takes a fresh measurement
func (d *Daemon) handleMeasure(c *gin.Context) {
	m, err := d.socketClient.Measure()
	respondMeasurement(c, m, err)
}

// handleRDS reads one RDS group
func (d *Daemon) handleRDS(c *gin.Context) {
	group, err := d.socketClient.RDS()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rds": group,
		"pi":  fmt.Sprintf("%04X", group.PI()),
	})
}

// handlePowerOff powers the tuner down
func (d *Daemon) handlePowerOff(c *gin.Context) {
	if err := d.socketClient.PowerOff(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"power":  "off",
	})
}

// handleRevision reads the chip revision
func (d *Daemon) handleRevision(c *gin.Context) {
	rev, err := d.socketClient.Revision()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, rev)
}

func propertyID(c *gin.Context) (uint16, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 0, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid property id %q", c.Param("id"))})
		return 0, false
	}
	return uint16(id), true
}

// handleGetProperty reads a tuner property
func (d *Daemon) handleGetProperty(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	value, err := d.socketClient.GetProperty(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"property": fmt.Sprintf("0x%04X", id),
		"value":    value,
	})
}

// handleSetProperty writes a tuner property
func (d *Daemon) handleSetProperty(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	var req struct {
		Value *uint16 `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := d.socketClient.SetProperty(id, *req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"property": fmt.Sprintf("0x%04X", id),
		"value":    *req.Value,
	})
}

// store returns the measurement store, answering 503 when storage is off
func (d *Daemon) store(c *gin.Context) *storage.Store {
	store := d.coreEngine.Store()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "storage disabled",
		})
	}
	return store
}

// handleGetHistory returns stored measurements, newest first
func (d *Daemon) handleGetHistory(c *gin.Context) {
	store := d.store(c)
	if store == nil {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}

	query := storage.MeasurementQuery{
		Limit:     limit,
		Offset:    offset,
		Band:      strings.ToUpper(c.Query("band")),
		ValidOnly: c.Query("valid") == "true",
	}
	if f := c.Query("frequency"); f != "" {
		freq, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid frequency %q", f)})
			return
		}
		query.Frequency = uint16(freq)
	}
	for key, dst := range map[string]**time.Time{"since": &query.Since, "until": &query.Until} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s time: %v", key, err)})
			return
		}
		*dst = &t
	}

	measurements, err := store.GetMeasurements(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to get history: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"measurements": measurements,
		"count":        len(measurements),
	})
}

// handleGetChannels returns the stations heard on a band, strongest first
func (d *Daemon) handleGetChannels(c *gin.Context) {
	store := d.store(c)
	if store == nil {
		return
	}

	band := strings.ToUpper(c.Query("band"))
	if band == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "band required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}

	channels, err := store.GetChannels(band, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to get channels: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"band":     band,
		"channels": channels,
		"count":    len(channels),
	})
}

// handleGetStats returns database statistics
func (d *Daemon) handleGetStats(c *gin.Context) {
	store := d.store(c)
	if store == nil {
		return
	}

	stats, err := store.GetMeasurementStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to get stats: %v", err),
		})
		return
	}
	count, err := store.GetMeasurementCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to count measurements: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":  stats,
		"stored": count,
	})
}

// handleClearHistory deletes every stored measurement
func (d *Daemon) handleClearHistory(c *gin.Context) {
	store := d.store(c)
	if store == nil {
		return
	}

	if err := store.ClearMeasurements(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to clear history: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}

// handleGetConfig returns the running configuration
func (d *Daemon) handleGetConfig(c *gin.Context) {
	// Round trip through YAML so field names match the config file
	yamlData, err := yaml.Marshal(d.config)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to marshal config: %v", err),
		})
		return
	}

	var yamlConfig interface{}
	if err := yaml.Unmarshal(yamlData, &yamlConfig); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to unmarshal config: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path":   d.configPath,
		"config": convertYamlToJson(yamlConfig),
	})
}

// convertYamlToJson converts YAML map[interface{}]interface{} to JSON-compatible map[string]interface{}
func convertYamlToJson(i interface{}) interface{} {
	switch x := i.(type) {
	case map[interface{}]interface{}:
		m2 := map[string]interface{}{}
		for k, v := range x {
			m2[fmt.Sprint(k)] = convertYamlToJson(v)
		}
		return m2
	case []interface{}:
		for i, v := range x {
			x[i] = convertYamlToJson(v)
		}
	}
	return i
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket streams every measurement the engine records
func (d *Daemon) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := d.coreEngine.Subscribe()
	defer unsubscribe()

	log.Printf("Measurement WebSocket client connected")

	// The client never sends anything we act on; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if m, ok := d.coreEngine.LastMeasurement(); ok {
		if err := conn.WriteJSON(measurementMessage(m)); err != nil {
			return
		}
	}

	for {
		select {
		case m, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(measurementMessage(m)); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-closed:
			log.Printf("Measurement WebSocket client disconnected")
			return

		case <-d.ctx.Done():
			return
		}
	}
}

func measurementMessage(m radio.Measurement) map[string]interface{} {
	return map[string]interface{}{
		"type":        "measurement",
		"version":     engine.Version,
		"measurement": m,
		"display":     m.FrequencyString(),
	}
}
