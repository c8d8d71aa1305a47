package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeTimes serializes a medication's "HH:MM" schedule for storage.
func encodeTimes(times []string) (string, error) {
	if len(times) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(times)
	if err != nil {
		return "", fmt.Errorf("failed to encode medication times: %w", err)
	}
	return string(b), nil
}

// decodeTimes reverses encodeTimes; malformed data yields an empty schedule.
func decodeTimes(raw string) []string {
	if raw == "" {
		return nil
	}
	var times []string
	if err := json.Unmarshal([]byte(raw), &times); err != nil {
		return nil
	}
	return times
}

// scanReading scans one ReadingRecord from sql.Rows.
func scanReading(rows *sql.Rows) (models.ReadingRecord, error) {
	var r models.ReadingRecord
	var kind string
	var phone, unit, category sql.NullString
	var systolic, diastolic sql.NullInt64
	var value sql.NullFloat64
	err := rows.Scan(&r.MemberID, &phone, &kind, &systolic, &diastolic, &value, &unit, &category, &r.RecordedAt)
	if err != nil {
		return r, fmt.Errorf("scan reading failed: %w", err)
	}
	r.Phone = phone.String
	r.Reading = models.HealthReading{
		Kind:      models.ReadingKind(kind),
		Systolic:  int(systolic.Int64),
		Diastolic: int(diastolic.Int64),
		Value:     value.Float64,
		Unit:      unit.String,
		Category:  category.String,
	}
	return r, nil
}

// scanMedication scans one Medication from sql.Rows.
func scanMedication(rows *sql.Rows) (models.Medication, error) {
	var m models.Medication
	var timesJSON string
	var dosage, frequency, prescriber, pharmacy, notes, createdAt sql.NullString
	err := rows.Scan(&m.MemberID, &m.Name, &dosage, &frequency, &timesJSON, &prescriber,
		&pharmacy, &m.SupplyRemaining, &m.RefillThreshold, &notes, &m.Active, &createdAt)
	if err != nil {
		return m, fmt.Errorf("scan medication failed: %w", err)
	}
	m.Dosage = dosage.String
	m.Frequency = frequency.String
	m.Times = decodeTimes(timesJSON)
	m.Prescriber = prescriber.String
	m.Pharmacy = pharmacy.String
	m.Notes = notes.String
	m.CreatedAt = createdAt.String
	return m, nil
}

// scanAdherenceEvent scans one AdherenceEvent from sql.Rows.
func scanAdherenceEvent(rows *sql.Rows) (models.AdherenceEvent, error) {
	var ev models.AdherenceEvent
	var scheduledTime, method sql.NullString
	err := rows.Scan(&ev.MedicationName, &ev.MemberID, &scheduledTime, &ev.Taken, &ev.ResponseTime, &method)
	if err != nil {
		return ev, fmt.Errorf("scan adherence event failed: %w", err)
	}
	ev.ScheduledTime = scheduledTime.String
	ev.Method = method.String
	return ev, nil
}

// scanReceipt scans one Receipt from sql.Rows.
func scanReceipt(rows *sql.Rows) (models.Receipt, error) {
	var r models.Receipt
	var sid sql.NullString
	if err := rows.Scan(&r.To, &r.Status, &sid, &r.Time); err != nil {
		return r, fmt.Errorf("scan receipt failed: %w", err)
	}
	r.SID = sid.String
	return r, nil
}
