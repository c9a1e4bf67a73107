package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dougsko/si4735d/pkg/radio"
	_ "github.com/mattn/go-sqlite3"
)

// Store keeps the last tuning of every band and a bounded log of
// measurements in SQLite
type Store struct {
	db              *sql.DB
	dbPath          string
	maxMeasurements int
}

// NewStore creates a new store with SQLite backend
func NewStore(dbPath string, maxMeasurements int) (*Store, error) {
	store := &Store{
		dbPath:          dbPath,
		maxMeasurements: maxMeasurements,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return store, nil
}

// initialize sets up the database connection and creates tables
func (s *Store) initialize() error {
	if s.dbPath == "" {
		s.dbPath = "./si4735d.db"
	}

	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := s.dbPath + "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	s.db = db

	if err := s.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := s.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Printf("Store initialized: %s (max %d measurements)", s.dbPath, s.maxMeasurements)
	return nil
}

// createTables creates the database schema
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bands (
		name TEXT PRIMARY KEY,
		frequency INTEGER NOT NULL,
		antcap INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		band TEXT NOT NULL,
		mode TEXT NOT NULL CHECK (mode IN ('FM', 'AM')),
		frequency INTEGER NOT NULL,
		antcap INTEGER NOT NULL DEFAULT 0,
		valid BOOLEAN NOT NULL DEFAULT FALSE,
		rssi INTEGER NOT NULL DEFAULT 0,
		snr INTEGER NOT NULL DEFAULT 0,
		multipath INTEGER NOT NULL DEFAULT 0,
		frequency_offset INTEGER NOT NULL DEFAULT 0,
		stereo BOOLEAN NOT NULL DEFAULT FALSE,
		blend INTEGER NOT NULL DEFAULT 0,
		lna_gain INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS measurement_stats (
		id INTEGER PRIMARY KEY,
		total_measurements INTEGER NOT NULL DEFAULT 0,
		total_valid INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO measurement_stats (id, total_measurements, total_valid)
	VALUES (1, 0, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// createIndexes creates database indexes for performance
func (s *Store) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_measurements_timestamp ON measurements(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_measurements_band ON measurements(band)",
		"CREATE INDEX IF NOT EXISTS idx_measurements_frequency ON measurements(band, frequency)",
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// LoadBand returns the last frequency and antcap stored for a band
func (s *Store) LoadBand(name string) (frequency, antcap uint16, ok bool, err error) {
	err = s.db.QueryRow(
		"SELECT frequency, antcap FROM bands WHERE name = ?",
		strings.ToUpper(name),
	).Scan(&frequency, &antcap)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to load band %s: %w", name, err)
	}
	return frequency, antcap, true, nil
}

// SaveBand records the current tuning of a band
func (s *Store) SaveBand(name string, frequency, antcap uint16) error {
	_, err := s.db.Exec(`
		INSERT INTO bands (name, frequency, antcap) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			frequency = excluded.frequency,
			antcap = excluded.antcap,
			updated_at = CURRENT_TIMESTAMP
	`, strings.ToUpper(name), frequency, antcap)
	if err != nil {
		return fmt.Errorf("failed to save band %s: %w", name, err)
	}
	return nil
}

// StoreMeasurement appends a measurement to the log
func (s *Store) StoreMeasurement(m radio.Measurement) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	timestamp := m.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO measurements (
			timestamp, band, mode, frequency, antcap, valid, rssi, snr,
			multipath, frequency_offset, stereo, blend, lna_gain
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		timestamp.UTC(), m.Band, m.Mode.String(), m.Frequency, m.Antcap, m.Valid,
		m.RSSI, m.SNR, m.Multipath, m.FrequencyOffset, m.Stereo, m.Blend, m.LNAGain,
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}

	if err := s.updateStats(tx, m.Valid); err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}

	if err := s.cleanupOldMeasurements(tx); err != nil {
		log.Printf("Warning: failed to cleanup old measurements: %v", err)
	}

	return tx.Commit()
}

// updateStats updates measurement statistics
func (s *Store) updateStats(tx *sql.Tx, valid bool) error {
	_, err := tx.Exec(`
		UPDATE measurement_stats SET
			total_measurements = total_measurements + 1,
			total_valid = CASE WHEN ? THEN total_valid + 1 ELSE total_valid END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, valid)
	return err
}

// CleanupOldMeasurements removes measurements beyond the maximum limit
func (s *Store) CleanupOldMeasurements() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.cleanupOldMeasurements(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) cleanupOldMeasurements(tx *sql.Tx) error {
	if s.maxMeasurements <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM measurements").Scan(&count); err != nil {
		return err
	}

	if count <= s.maxMeasurements {
		return nil
	}

	_, err := tx.Exec(`
		DELETE FROM measurements
		WHERE id IN (
			SELECT id FROM measurements
			ORDER BY timestamp ASC, id ASC
			LIMIT ?
		)
	`, count-s.maxMeasurements)
	if err != nil {
		return err
	}

	_, err = tx.Exec("UPDATE measurement_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
