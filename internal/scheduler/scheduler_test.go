package scheduler

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/meds"
	"github.com/zhanghealth/zhanghealth/internal/messaging"
	"github.com/zhanghealth/zhanghealth/internal/models"
	"github.com/zhanghealth/zhanghealth/internal/secrets"
	"github.com/zhanghealth/zhanghealth/internal/store"
	"github.com/zhanghealth/zhanghealth/internal/twiliosms"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron expression", func() {}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func newTestRunner(t *testing.T) (*ReminderRunner, *store.MemberStore, *store.InMemoryStore, *twiliosms.MockClient) {
	t.Helper()
	cipher, err := secrets.NewCipher("")
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	members, err := store.NewMemberStore(filepath.Join(t.TempDir(), "members.json"), cipher)
	if err != nil {
		t.Fatalf("failed to create member store: %v", err)
	}
	data := store.NewInMemoryStore()
	mock := twiliosms.NewMockClient()
	runner := NewReminderRunner(members, messaging.NewTwilioService(mock), meds.NewManager(data), nil)
	return runner, members, data, mock
}

func TestRunExerciseReminders(t *testing.T) {
	runner, members, _, mock := newTestRunner(t)

	// 08:00 UTC on a fixed day.
	now := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)

	due := models.Member{Name: "奶奶", Phone: "+15551110001", Timezone: "UTC", PreferredHour: 8, Active: true, CadenceDays: 2}
	wrongHour := models.Member{Name: "爷爷", Phone: "+15551110002", Timezone: "UTC", PreferredHour: 9, Active: true, CadenceDays: 2}
	inactive := models.Member{Name: "姑姑", Phone: "+15551110003", Timezone: "UTC", PreferredHour: 8, Active: false, CadenceDays: 2}
	tooSoon := models.Member{Name: "叔叔", Phone: "+15551110004", Timezone: "UTC", PreferredHour: 8, Active: true, CadenceDays: 2,
		LastSentDate: now.AddDate(0, 0, -1).Format(models.DateLayout)}

	for _, m := range []models.Member{due, wrongHour, inactive, tooSoon} {
		if _, err := members.Add(m); err != nil {
			t.Fatalf("failed to add member %s: %v", m.Name, err)
		}
	}

	if err := runner.RunExerciseReminders(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "+15551110001" {
		t.Errorf("reminder sent to %q, want +15551110001", mock.SentMessages[0].To)
	}
	if !strings.Contains(mock.SentMessages[0].Body, "奶奶") {
		t.Errorf("reminder body should address the member by name, got %q", mock.SentMessages[0].Body)
	}

	m, err := members.FindByPhone("+15551110001")
	if err != nil {
		t.Fatalf("failed to find member: %v", err)
	}
	if m.LastSentDate != now.Format(models.DateLayout) {
		t.Errorf("last sent date = %q, want %q", m.LastSentDate, now.Format(models.DateLayout))
	}

	// A second pass at the same instant must not send again.
	if err := runner.RunExerciseReminders(context.Background(), now); err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Errorf("second pass should not resend, got %d messages", len(mock.SentMessages))
	}
}

func TestRunExerciseRemindersBadTimezoneSkips(t *testing.T) {
	runner, members, _, mock := newTestRunner(t)
	now := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)

	// Inject a member with a broken timezone directly; Add would reject it.
	broken := models.Member{ID: "m_bad", Name: "奶奶", Phone: "+15551110001", Timezone: "Mars/Olympus", PreferredHour: 8, Active: true, CadenceDays: 1}
	ok := models.Member{ID: "m_ok", Name: "爷爷", Phone: "+15551110002", Timezone: "UTC", PreferredHour: 8, Active: true, CadenceDays: 1}
	if err := members.Save([]models.Member{broken, ok}); err != nil {
		t.Fatalf("failed to save members: %v", err)
	}

	if err := runner.RunExerciseReminders(context.Background(), now); err != nil {
		t.Fatalf("a bad timezone should not fail the pass: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "+15551110002" {
		t.Errorf("expected only the valid member to receive a reminder, got %+v", mock.SentMessages)
	}
}

func TestRunMedicationReminders(t *testing.T) {
	runner, members, data, mock := newTestRunner(t)

	member, err := members.Add(models.Member{Name: "奶奶", Phone: "+15551110001", Timezone: "UTC", PreferredHour: 8, Active: true, CadenceDays: 1})
	if err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
	err = data.UpsertMedication(models.Medication{
		Name: "lisinopril", Dosage: "10mg", Frequency: "daily",
		Times: []string{"08:00"}, MemberID: member.ID, Active: true,
	})
	if err != nil {
		t.Fatalf("failed to add medication: %v", err)
	}

	at8 := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)
	if err := runner.RunMedicationReminders(context.Background(), at8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 medication reminder, got %d", len(mock.SentMessages))
	}
	if !strings.Contains(mock.SentMessages[0].Body, "lisinopril") {
		t.Errorf("reminder should name the medication, got %q", mock.SentMessages[0].Body)
	}

	at9 := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	if err := runner.RunMedicationReminders(context.Background(), at9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Errorf("no dose is scheduled at 09:00, got %d messages", len(mock.SentMessages))
	}
}

func TestRunRefillAlerts(t *testing.T) {
	runner, members, data, mock := newTestRunner(t)

	member, err := members.Add(models.Member{Name: "奶奶", Phone: "+15551110001", Timezone: "UTC", PreferredHour: 8, Active: true, CadenceDays: 1})
	if err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
	err = data.UpsertMedication(models.Medication{
		Name: "aspirin", Dosage: "81mg", Frequency: "daily",
		Times: []string{"08:00"}, MemberID: member.ID, Active: true,
		SupplyRemaining: 2, RefillThreshold: 7, Pharmacy: "CVS",
	})
	if err != nil {
		t.Fatalf("failed to add medication: %v", err)
	}

	if err := runner.RunRefillAlerts(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 refill alert, got %d", len(mock.SentMessages))
	}
	body := mock.SentMessages[0].Body
	if !strings.Contains(body, "aspirin") || !strings.Contains(body, "CVS") {
		t.Errorf("alert should name the medication and pharmacy, got %q", body)
	}
	if !strings.HasPrefix(body, "⚠️") {
		t.Errorf("a 2-day supply is critical, got %q", body)
	}
}
