// This file implements the SQLite-backed store for readings, medications,
// adherence events, receipts and responses.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/zhanghealth/zhanghealth/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is
// a file path to the SQLite database file; the directory is created if it
// doesn't exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.New: creating SQLite store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.New: migrations applied")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddReading(r models.ReadingRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO readings (member_id, phone, kind, systolic, diastolic, value, unit, category, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.MemberID, r.Phone, string(r.Reading.Kind), r.Reading.Systolic, r.Reading.Diastolic,
		r.Reading.Value, r.Reading.Unit, r.Reading.Category, r.RecordedAt)
	if err != nil {
		slog.Error("SQLiteStore AddReading failed", "error", err, "member", r.MemberID)
		return fmt.Errorf("failed to insert reading for %s: %w", r.MemberID, err)
	}
	slog.Debug("SQLiteStore AddReading succeeded", "member", r.MemberID, "kind", r.Reading.Kind)
	return nil
}

func (s *SQLiteStore) GetReadings(memberID string, since time.Time) ([]models.ReadingRecord, error) {
	rows, err := s.db.Query(
		`SELECT member_id, phone, kind, systolic, diastolic, value, unit, category, recorded_at
		 FROM readings WHERE member_id = ? AND recorded_at >= ? ORDER BY recorded_at`,
		memberID, since)
	if err != nil {
		slog.Error("SQLiteStore GetReadings query failed", "error", err, "member", memberID)
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.ReadingRecord
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			slog.Error("SQLiteStore GetReadings scan failed", "error", err)
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reading rows: %w", err)
	}
	slog.Debug("SQLiteStore GetReadings succeeded", "member", memberID, "count", len(readings))
	return readings, nil
}

func (s *SQLiteStore) ListMedications(memberID string) ([]models.Medication, error) {
	query := `SELECT member_id, name, dosage, frequency, times, prescriber, pharmacy,
	                 supply_remaining, refill_threshold, notes, active, created_at
	          FROM medications`
	var args []interface{}
	if memberID != "" {
		query += ` WHERE member_id = ?`
		args = append(args, memberID)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListMedications query failed", "error", err, "member", memberID)
		return nil, fmt.Errorf("failed to query medications: %w", err)
	}
	defer rows.Close()

	var medications []models.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			slog.Error("SQLiteStore ListMedications scan failed", "error", err)
			return nil, err
		}
		medications = append(medications, m)
	}
	return medications, rows.Err()
}

func (s *SQLiteStore) UpsertMedication(med models.Medication) error {
	timesJSON, err := encodeTimes(med.Times)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO medications
		 (member_id, name, dosage, frequency, times, prescriber, pharmacy, supply_remaining, refill_threshold, notes, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		med.MemberID, med.Name, med.Dosage, med.Frequency, timesJSON, med.Prescriber, med.Pharmacy,
		med.SupplyRemaining, med.RefillThreshold, med.Notes, med.Active, med.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore UpsertMedication failed", "error", err, "member", med.MemberID, "name", med.Name)
		return fmt.Errorf("failed to upsert medication %s: %w", med.Name, err)
	}
	slog.Debug("SQLiteStore UpsertMedication succeeded", "member", med.MemberID, "name", med.Name)
	return nil
}

func (s *SQLiteStore) AddAdherenceEvent(ev models.AdherenceEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO adherence_events (medication_name, member_id, scheduled_time, taken, response_time, method)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.MedicationName, ev.MemberID, ev.ScheduledTime, ev.Taken, ev.ResponseTime, ev.Method)
	if err != nil {
		slog.Error("SQLiteStore AddAdherenceEvent failed", "error", err, "member", ev.MemberID)
		return fmt.Errorf("failed to insert adherence event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AdherenceEvents(memberID string, since time.Time) ([]models.AdherenceEvent, error) {
	rows, err := s.db.Query(
		`SELECT medication_name, member_id, scheduled_time, taken, response_time, method
		 FROM adherence_events WHERE member_id = ? AND response_time >= ? ORDER BY response_time`,
		memberID, since.Format(time.RFC3339))
	if err != nil {
		slog.Error("SQLiteStore AdherenceEvents query failed", "error", err, "member", memberID)
		return nil, fmt.Errorf("failed to query adherence events: %w", err)
	}
	defer rows.Close()

	var events []models.AdherenceEvent
	for rows.Next() {
		ev, err := scanAdherenceEvent(rows)
		if err != nil {
			slog.Error("SQLiteStore AdherenceEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, status, sid, time) VALUES (?, ?, ?, ?)`,
		r.To, r.Status, nilIfEmpty(r.SID), r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	slog.Debug("SQLiteStore AddReceipt succeeded", "to", r.To, "status", r.Status)
	return nil
}

func (s *SQLiteStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, status, sid, time FROM receipts`)
	if err != nil {
		slog.Error("SQLiteStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			slog.Error("SQLiteStore GetReceipts scan failed", "error", err)
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func (s *SQLiteStore) AddResponse(r models.Response) error {
	_, err := s.db.Exec(`INSERT INTO responses (sender, body, time) VALUES (?, ?, ?)`, r.From, r.Body, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	return nil
}

func (s *SQLiteStore) GetResponses() ([]models.Response, error) {
	rows, err := s.db.Query(`SELECT sender, body, time FROM responses`)
	if err != nil {
		slog.Error("SQLiteStore GetResponses query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var responses []models.Response
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.From, &r.Body, &r.Time); err != nil {
			slog.Error("SQLiteStore GetResponses scan failed", "error", err)
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
