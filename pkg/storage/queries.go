package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dougsko/si4735d/pkg/radio"
	"github.com/dougsko/si4735d/pkg/si4735"
)

// MeasurementQuery represents query parameters for retrieving measurements
type MeasurementQuery struct {
	Limit     int
	Offset    int
	Since     *time.Time
	Until     *time.Time
	Band      string
	Frequency uint16
	ValidOnly bool
}

// ChannelSummary aggregates the measurements taken on one channel
type ChannelSummary struct {
	Band         string    `json:"band"`
	Frequency    uint16    `json:"frequency"`
	Measurements int       `json:"measurements"`
	BestRSSI     int       `json:"best_rssi"`
	BestSNR      int       `json:"best_snr"`
	LastSeen     time.Time `json:"last_seen"`
}

// MeasurementStats represents database statistics
type MeasurementStats struct {
	TotalMeasurements int       `json:"total_measurements"`
	TotalValid        int       `json:"total_valid"`
	LastCleanup       time.Time `json:"last_cleanup"`
}

func parseMode(s string) si4735.ReceiverMode {
	if s == "AM" {
		return si4735.ModeAM
	}
	return si4735.ModeFM
}

// GetMeasurements retrieves measurements based on query parameters,
// newest first
func (s *Store) GetMeasurements(query MeasurementQuery) ([]radio.Measurement, error) {
	var args []interface{}

	sqlQuery := `
		SELECT timestamp, band, mode, frequency, antcap, valid, rssi, snr,
			   multipath, frequency_offset, stereo, blend, lna_gain
		FROM measurements
		WHERE 1=1
	`

	if query.Since != nil {
		sqlQuery += " AND timestamp >= ?"
		args = append(args, query.Since.UTC())
	}

	if query.Until != nil {
		sqlQuery += " AND timestamp <= ?"
		args = append(args, query.Until.UTC())
	}

	if query.Band != "" {
		sqlQuery += " AND band = ?"
		args = append(args, query.Band)
	}

	if query.Frequency != 0 {
		sqlQuery += " AND frequency = ?"
		args = append(args, query.Frequency)
	}

	if query.ValidOnly {
		sqlQuery += " AND valid = TRUE"
	}

	sqlQuery += " ORDER BY timestamp DESC, id DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var measurements []radio.Measurement
	for rows.Next() {
		var m radio.Measurement
		var mode string
		err := rows.Scan(
			&m.Time,
			&m.Band,
			&mode,
			&m.Frequency,
			&m.Antcap,
			&m.Valid,
			&m.RSSI,
			&m.SNR,
			&m.Multipath,
			&m.FrequencyOffset,
			&m.Stereo,
			&m.Blend,
			&m.LNAGain,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		m.Mode = parseMode(mode)
		measurements = append(measurements, m)
	}

	return measurements, rows.Err()
}

// GetRecentMeasurements retrieves the most recent measurements
func (s *Store) GetRecentMeasurements(limit int) ([]radio.Measurement, error) {
	return s.GetMeasurements(MeasurementQuery{Limit: limit})
}

// GetChannels summarises the valid channels heard on a band, strongest first
func (s *Store) GetChannels(band string, limit int) ([]ChannelSummary, error) {
	query := `
		SELECT band, frequency, COUNT(*), MAX(rssi), MAX(snr), MAX(timestamp)
		FROM measurements
		WHERE valid = TRUE AND band = ?
		GROUP BY band, frequency
		ORDER BY MAX(rssi) DESC, frequency ASC
	`

	args := []interface{}{band}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []ChannelSummary
	for rows.Next() {
		var ch ChannelSummary
		var lastSeen string
		if err := rows.Scan(&ch.Band, &ch.Frequency, &ch.Measurements, &ch.BestRSSI, &ch.BestSNR, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		ch.LastSeen = parseTimestamp(lastSeen)
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

// aggregates lose the column type, so MAX(timestamp) comes back as text
func parseTimestamp(s string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// GetMeasurementStats retrieves database statistics
func (s *Store) GetMeasurementStats() (*MeasurementStats, error) {
	var stats MeasurementStats
	var lastCleanup sql.NullTime

	err := s.db.QueryRow(`
		SELECT total_measurements, total_valid, last_cleanup
		FROM measurement_stats WHERE id = 1
	`).Scan(&stats.TotalMeasurements, &stats.TotalValid, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get measurement stats: %w", err)
	}

	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}

	return &stats, nil
}

// GetMeasurementCount returns the number of stored measurements
func (s *Store) GetMeasurementCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM measurements").Scan(&count)
	return count, err
}

// ClearMeasurements deletes the whole measurement log
func (s *Store) ClearMeasurements() error {
	if _, err := s.db.Exec("DELETE FROM measurements"); err != nil {
		return fmt.Errorf("failed to clear measurements: %w", err)
	}
	return nil
}
