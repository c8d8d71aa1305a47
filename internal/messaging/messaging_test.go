package messaging

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/meds"
	"github.com/zhanghealth/zhanghealth/internal/models"
	"github.com/zhanghealth/zhanghealth/internal/secrets"
	"github.com/zhanghealth/zhanghealth/internal/store"
	"github.com/zhanghealth/zhanghealth/internal/twiliosms"
	"github.com/zhanghealth/zhanghealth/internal/whatsapp"
)

func TestValidateAndCanonicalizeRecipient(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())

	tests := []struct {
		name      string
		input     string
		want      string
		expectErr bool
	}{
		{name: "already canonical", input: "+15551234567", want: "+15551234567"},
		{name: "strips formatting", input: "(555) 123-4567", want: "+5551234567"},
		{name: "strips leading plus and spaces", input: "+1 555 123 4567", want: "+15551234567"},
		{name: "too short", input: "12345", expectErr: true},
		{name: "empty", input: "", expectErr: true},
		{name: "letters only", input: "not-a-number", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ValidateAndCanonicalizeRecipient(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected error for %q, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("canonicalized %q = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTwilioServiceSendEmitsReceipt(t *testing.T) {
	mock := twiliosms.NewMockClient()
	svc := NewTwilioService(mock)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("failed to start service: %v", err)
	}
	defer svc.Stop()

	if err := svc.SendMessage(context.Background(), "+15551234567", "早上好"); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}

	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "+15551234567" {
		t.Errorf("unexpected recipient %q", mock.SentMessages[0].To)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "+15551234567" {
			t.Errorf("receipt recipient = %q, want +15551234567", receipt.To)
		}
		if receipt.Status != "sent" {
			t.Errorf("receipt status = %q, want sent", receipt.Status)
		}
		if receipt.SID == "" {
			t.Error("receipt SID should not be empty")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for receipt")
	}
}

func TestTwilioServiceSendAfterStop(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("failed to stop service: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "+15551234567", "hello"); err == nil {
		t.Error("expected error sending after stop")
	}
}

// waitUntil polls until cond holds or the deadline passes.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDispatcherHandlesInboundResponse(t *testing.T) {
	handler, members, data := newTestHandler(t)
	addTestMember(t, members, "+15551234567")

	mock := twiliosms.NewMockClient()
	svc := NewTwilioService(mock)
	defer svc.Stop()

	NewDispatcher(svc, handler, data).Start(context.Background())

	svc.responses <- models.Response{From: "+15551234567", Body: "NO", Time: time.Now().Unix()}

	waitUntil(t, 2*time.Second, func() bool { return len(mock.Sent()) == 1 })

	sent := mock.Sent()[0]
	if sent.To != "+15551234567" {
		t.Errorf("reply recipient = %q, want +15551234567", sent.To)
	}
	if !strings.Contains(sent.Body, "已暂停") {
		t.Errorf("reply %q should confirm the pause", sent.Body)
	}
	member, err := members.FindByPhone("+15551234567")
	if err != nil {
		t.Fatalf("failed to find member: %v", err)
	}
	if member.Active {
		t.Error("member should be inactive after NO reply")
	}
}

func TestDispatcherHandlesWhatsAppInbound(t *testing.T) {
	handler, members, data := newTestHandler(t)
	member := addTestMember(t, members, "+15551234567")

	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	defer svc.Stop()

	NewDispatcher(svc, handler, data).Start(context.Background())

	svc.responses <- models.Response{From: "+15551234567", Body: "血压 135/85", Time: time.Now().Unix()}

	waitUntil(t, 2*time.Second, func() bool { return len(mock.Messages()) == 1 })

	if body := mock.Messages()[0].Body; !strings.Contains(body, "135/85") {
		t.Errorf("reply %q should confirm the reading", body)
	}
	readings, err := data.GetReadings(member.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to load readings: %v", err)
	}
	if len(readings) != 1 || readings[0].Reading.Kind != models.ReadingBloodPressure {
		t.Errorf("readings = %+v, want one blood pressure reading", readings)
	}
}

func TestDispatcherPersistsReceipts(t *testing.T) {
	handler, _, data := newTestHandler(t)

	svc := NewTwilioService(twiliosms.NewMockClient())
	defer svc.Stop()

	NewDispatcher(svc, handler, data).Start(context.Background())

	if err := svc.SendMessage(context.Background(), "+15551234567", "早上好"); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		receipts, err := data.GetReceipts()
		return err == nil && len(receipts) == 1
	})

	receipts, err := data.GetReceipts()
	if err != nil {
		t.Fatalf("failed to load receipts: %v", err)
	}
	if receipts[0].To != "+15551234567" || receipts[0].Status != "sent" {
		t.Errorf("receipt = %+v, want sent receipt for +15551234567", receipts[0])
	}
}

func newTestHandler(t *testing.T) (*ReplyHandler, *store.MemberStore, *store.InMemoryStore) {
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
	return NewReplyHandler(members, data, meds.NewManager(data)), members, data
}

func addTestMember(t *testing.T, members *store.MemberStore, phone string) models.Member {
	t.Helper()
	m, err := members.Add(models.Member{
		Name:          "奶奶",
		Phone:         phone,
		Timezone:      "Asia/Shanghai",
		PreferredHour: 8,
		Active:        true,
		CadenceDays:   1,
	})
	if err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
	return m
}

func TestReplyHandlerUnknownNumber(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	reply, err := handler.Handle("+19998887777", "OK", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "" {
		t.Errorf("expected empty reply for unknown number, got %q", reply)
	}
}

func TestReplyHandlerOptOutAndBackIn(t *testing.T) {
	handler, members, _ := newTestHandler(t)
	addTestMember(t, members, "+15551234567")

	reply, err := handler.Handle("+15551234567", "NO", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "已暂停") {
		t.Errorf("opt-out reply should confirm pause, got %q", reply)
	}
	m, err := members.FindByPhone("+15551234567")
	if err != nil {
		t.Fatalf("failed to find member: %v", err)
	}
	if m.Active {
		t.Error("member should be inactive after opting out")
	}
	if m.LastReply != "NO" {
		t.Errorf("last reply = %q, want NO", m.LastReply)
	}

	reply, err = handler.Handle("+15551234567", "START", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "重新开启") {
		t.Errorf("opt-in reply should confirm resume, got %q", reply)
	}
	m, _ = members.FindByPhone("+15551234567")
	if !m.Active {
		t.Error("member should be active after opting back in")
	}
}

func TestReplyHandlerAcknowledge(t *testing.T) {
	handler, members, _ := newTestHandler(t)
	addTestMember(t, members, "+15551234567")

	reply, err := handler.Handle("+15551234567", "ok", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "奶奶") {
		t.Errorf("acknowledgment should mention member name, got %q", reply)
	}
}

func TestReplyHandlerRecordsReading(t *testing.T) {
	handler, members, data := newTestHandler(t)
	member := addTestMember(t, members, "+15551234567")

	now := time.Now()
	reply, err := handler.Handle("+15551234567", "血压 135/85", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "135/85") {
		t.Errorf("reading confirmation should echo the values, got %q", reply)
	}

	readings, err := data.GetReadings(member.ID, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("failed to get readings: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("expected 1 stored reading, got %d", len(readings))
	}
	if readings[0].Reading.Kind != models.ReadingBloodPressure {
		t.Errorf("reading kind = %q, want %q", readings[0].Reading.Kind, models.ReadingBloodPressure)
	}
	if readings[0].Reading.Category != "high_stage1" {
		t.Errorf("reading category = %q, want high_stage1", readings[0].Reading.Category)
	}
}

func TestReplyHandlerMedicationCommands(t *testing.T) {
	handler, members, data := newTestHandler(t)
	member := addTestMember(t, members, "+15551234567")

	err := data.UpsertMedication(models.Medication{
		Name:      "aspirin",
		Dosage:    "81mg",
		Frequency: "daily",
		Times:     []string{"08:00"},
		MemberID:  member.ID,
		Active:    true,
	})
	if err != nil {
		t.Fatalf("failed to add medication: %v", err)
	}

	now := time.Now()
	reply, err := handler.Handle("+15551234567", "TOOK aspirin", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "aspirin") {
		t.Errorf("medication confirmation should name the drug, got %q", reply)
	}

	events, err := data.AdherenceEvents(member.ID, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("failed to get adherence events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 adherence event, got %d", len(events))
	}

	reply, err = handler.Handle("+15551234567", "MED LIST", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "aspirin") || !strings.Contains(reply, "81mg") {
		t.Errorf("medication list should show name and dosage, got %q", reply)
	}
}

func TestReplyHandlerWeeklySummary(t *testing.T) {
	handler, members, data := newTestHandler(t)
	member := addTestMember(t, members, "+15551234567")

	now := time.Now()
	err := data.AddReading(models.ReadingRecord{
		MemberID: member.ID,
		Phone:    member.Phone,
		Reading: models.HealthReading{
			Kind: models.ReadingBloodPressure, Systolic: 130, Diastolic: 83,
			Unit: "mmHg", Category: "high_stage1",
		},
		RecordedAt: now.AddDate(0, 0, -1),
	})
	if err != nil {
		t.Fatalf("failed to add reading: %v", err)
	}

	reply, err := handler.Handle("+15551234567", "health", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "Weekly Health Summary") {
		t.Errorf("expected the weekly summary, got %q", reply)
	}
	if !strings.Contains(reply, "130/83") {
		t.Errorf("summary should include the latest reading, got %q", reply)
	}
}

func TestReplyHandlerUnknownFallsThrough(t *testing.T) {
	handler, members, _ := newTestHandler(t)
	addTestMember(t, members, "+15551234567")

	reply, err := handler.Handle("+15551234567", "天气怎么样", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "天气怎么样") {
		t.Errorf("unknown reply should echo the message, got %q", reply)
	}
}
