package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// TestSQLiteStorePersistence verifies that data written through one store
// instance is visible to a second instance opened on the same file.
func TestSQLiteStorePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "zhanghealth.db")

	s1, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("failed to open SQLite store: %v", err)
	}

	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	err = s1.AddReading(models.ReadingRecord{
		MemberID: "mom",
		Phone:    "+12065551234",
		Reading: models.HealthReading{
			Kind: models.ReadingBloodPressure, Systolic: 135, Diastolic: 85, Category: "high_stage1",
		},
		RecordedAt: now,
	})
	if err != nil {
		t.Fatalf("AddReading failed: %v", err)
	}

	err = s1.UpsertMedication(models.Medication{
		Name: "lisinopril", Dosage: "10mg", Frequency: "daily",
		Times: []string{"08:00"}, MemberID: "mom",
		SupplyRemaining: 30, RefillThreshold: 7, Active: true,
	})
	if err != nil {
		t.Fatalf("UpsertMedication failed: %v", err)
	}

	err = s1.AddAdherenceEvent(models.AdherenceEvent{
		MedicationName: "lisinopril", MemberID: "mom", ScheduledTime: "08:00",
		Taken: true, ResponseTime: now.Format(time.RFC3339), Method: "sms",
	})
	if err != nil {
		t.Fatalf("AddAdherenceEvent failed: %v", err)
	}

	if err := s1.AddReceipt(models.Receipt{To: "+12065551234", Status: "sent", SID: "SM123", Time: now.Unix()}); err != nil {
		t.Fatalf("AddReceipt failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("failed to reopen SQLite store: %v", err)
	}
	defer s2.Close()

	readings, err := s2.GetReadings("mom", now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("GetReadings failed: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("readings = %d, want 1", len(readings))
	}
	r := readings[0].Reading
	if r.Kind != models.ReadingBloodPressure || r.Systolic != 135 || r.Diastolic != 85 || r.Category != "high_stage1" {
		t.Errorf("reading round trip = %+v", r)
	}

	medications, err := s2.ListMedications("mom")
	if err != nil {
		t.Fatalf("ListMedications failed: %v", err)
	}
	if len(medications) != 1 {
		t.Fatalf("medications = %d, want 1", len(medications))
	}
	if got := medications[0].Times; len(got) != 1 || got[0] != "08:00" {
		t.Errorf("medication times round trip = %v", got)
	}

	events, err := s2.AdherenceEvents("mom", now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("AdherenceEvents failed: %v", err)
	}
	if len(events) != 1 || !events[0].Taken {
		t.Errorf("adherence round trip = %+v", events)
	}

	receipts, err := s2.GetReceipts()
	if err != nil {
		t.Fatalf("GetReceipts failed: %v", err)
	}
	if len(receipts) != 1 || receipts[0].SID != "SM123" {
		t.Errorf("receipt round trip = %+v", receipts)
	}
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected error when DSN is not set")
	}
}
