// This file implements the PostgreSQL-backed store for readings,
// medications, adherence events, receipts and responses.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/zhanghealth/zhanghealth/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.New: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore.New: migrations applied")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddReading(r models.ReadingRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO readings (member_id, phone, kind, systolic, diastolic, value, unit, category, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.MemberID, r.Phone, string(r.Reading.Kind), r.Reading.Systolic, r.Reading.Diastolic,
		r.Reading.Value, r.Reading.Unit, r.Reading.Category, r.RecordedAt)
	if err != nil {
		slog.Error("PostgresStore AddReading failed", "error", err, "member", r.MemberID)
		return fmt.Errorf("failed to insert reading for %s: %w", r.MemberID, err)
	}
	slog.Debug("PostgresStore AddReading succeeded", "member", r.MemberID, "kind", r.Reading.Kind)
	return nil
}

func (s *PostgresStore) GetReadings(memberID string, since time.Time) ([]models.ReadingRecord, error) {
	rows, err := s.db.Query(
		`SELECT member_id, phone, kind, systolic, diastolic, value, unit, category, recorded_at
		 FROM readings WHERE member_id = $1 AND recorded_at >= $2 ORDER BY recorded_at`,
		memberID, since)
	if err != nil {
		slog.Error("PostgresStore GetReadings query failed", "error", err, "member", memberID)
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.ReadingRecord
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			slog.Error("PostgresStore GetReadings scan failed", "error", err)
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reading rows: %w", err)
	}
	return readings, nil
}

func (s *PostgresStore) ListMedications(memberID string) ([]models.Medication, error) {
	query := `SELECT member_id, name, dosage, frequency, times, prescriber, pharmacy,
	                 supply_remaining, refill_threshold, notes, active, created_at
	          FROM medications`
	var args []interface{}
	if memberID != "" {
		query += ` WHERE member_id = $1`
		args = append(args, memberID)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListMedications query failed", "error", err, "member", memberID)
		return nil, fmt.Errorf("failed to query medications: %w", err)
	}
	defer rows.Close()

	var medications []models.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			slog.Error("PostgresStore ListMedications scan failed", "error", err)
			return nil, err
		}
		medications = append(medications, m)
	}
	return medications, rows.Err()
}

func (s *PostgresStore) UpsertMedication(med models.Medication) error {
	timesJSON, err := encodeTimes(med.Times)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO medications
		 (member_id, name, dosage, frequency, times, prescriber, pharmacy, supply_remaining, refill_threshold, notes, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (member_id, name) DO UPDATE SET
		   dosage = EXCLUDED.dosage, frequency = EXCLUDED.frequency, times = EXCLUDED.times,
		   prescriber = EXCLUDED.prescriber, pharmacy = EXCLUDED.pharmacy,
		   supply_remaining = EXCLUDED.supply_remaining, refill_threshold = EXCLUDED.refill_threshold,
		   notes = EXCLUDED.notes, active = EXCLUDED.active`,
		med.MemberID, med.Name, med.Dosage, med.Frequency, timesJSON, med.Prescriber, med.Pharmacy,
		med.SupplyRemaining, med.RefillThreshold, med.Notes, med.Active, med.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore UpsertMedication failed", "error", err, "member", med.MemberID, "name", med.Name)
		return fmt.Errorf("failed to upsert medication %s: %w", med.Name, err)
	}
	return nil
}

func (s *PostgresStore) AddAdherenceEvent(ev models.AdherenceEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO adherence_events (medication_name, member_id, scheduled_time, taken, response_time, method)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.MedicationName, ev.MemberID, ev.ScheduledTime, ev.Taken, ev.ResponseTime, ev.Method)
	if err != nil {
		slog.Error("PostgresStore AddAdherenceEvent failed", "error", err, "member", ev.MemberID)
		return fmt.Errorf("failed to insert adherence event: %w", err)
	}
	return nil
}

func (s *PostgresStore) AdherenceEvents(memberID string, since time.Time) ([]models.AdherenceEvent, error) {
	rows, err := s.db.Query(
		`SELECT medication_name, member_id, scheduled_time, taken, response_time, method
		 FROM adherence_events WHERE member_id = $1 AND response_time >= $2 ORDER BY response_time`,
		memberID, since.Format(time.RFC3339))
	if err != nil {
		slog.Error("PostgresStore AdherenceEvents query failed", "error", err, "member", memberID)
		return nil, fmt.Errorf("failed to query adherence events: %w", err)
	}
	defer rows.Close()

	var events []models.AdherenceEvent
	for rows.Next() {
		ev, err := scanAdherenceEvent(rows)
		if err != nil {
			slog.Error("PostgresStore AdherenceEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, status, sid, time) VALUES ($1, $2, $3, $4)`,
		r.To, r.Status, nilIfEmpty(r.SID), r.Time)
	if err != nil {
		slog.Error("PostgresStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	return nil
}

func (s *PostgresStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, status, sid, time FROM receipts`)
	if err != nil {
		slog.Error("PostgresStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			slog.Error("PostgresStore GetReceipts scan failed", "error", err)
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func (s *PostgresStore) AddResponse(r models.Response) error {
	_, err := s.db.Exec(`INSERT INTO responses (sender, body, time) VALUES ($1, $2, $3)`, r.From, r.Body, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	return nil
}

func (s *PostgresStore) GetResponses() ([]models.Response, error) {
	rows, err := s.db.Query(`SELECT sender, body, time FROM responses`)
	if err != nil {
		slog.Error("PostgresStore GetResponses query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var responses []models.Response
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.From, &r.Body, &r.Time); err != nil {
			slog.Error("PostgresStore GetResponses scan failed", "error", err)
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
