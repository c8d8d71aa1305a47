package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/models"
	"github.com/zhanghealth/zhanghealth/internal/store"
)

func TestTestMemberIsValid(t *testing.T) {
	m := TestMember("+15551234567")
	if err := m.Validate(); err != nil {
		t.Errorf("fixture member should validate: %v", err)
	}
	if m.Phone != "+15551234567" {
		t.Errorf("phone = %q, want +15551234567", m.Phone)
	}
}

func TestCreateJSONRequest(t *testing.T) {
	req := CreateJSONRequest(t, http.MethodPost, "/api/send-now", `{"phone":"+1"}`)
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}

	req = CreateJSONRequest(t, http.MethodGet, "/api/members", "")
	if ct := req.Header.Get("Content-Type"); ct != "" {
		t.Errorf("GET request should not set a content type, got %q", ct)
	}
}

func TestSeedBloodPressureReadings(t *testing.T) {
	st := store.NewInMemoryStore()
	member := TestMember("+15551234567")
	member.ID = "m_test"

	SeedBloodPressureReadings(t, st, member, []models.HealthReading{
		{Kind: models.ReadingBloodPressure, Systolic: 120, Diastolic: 80, Unit: "mmHg", Category: "normal"},
		{Kind: models.ReadingBloodPressure, Systolic: 130, Diastolic: 85, Unit: "mmHg", Category: "high_stage1"},
	})

	readings, err := st.GetReadings("m_test", time.Now().AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("failed to get readings: %v", err)
	}
	if len(readings) != 2 {
		t.Errorf("expected 2 seeded readings, got %d", len(readings))
	}
}
