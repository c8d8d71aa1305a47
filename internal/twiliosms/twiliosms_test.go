package twiliosms

import (
	"context"
	"errors"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("expected error without from number")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token"), WithFromNumber("+15555550100")); err != nil {
		t.Errorf("unexpected error with full credentials: %v", err)
	}
}

func TestDryRunClientAlwaysSucceeds(t *testing.T) {
	c := NewDryRunClient()
	sid, err := c.SendSMS(context.Background(), "+12065551234", "hello")
	if err != nil {
		t.Fatalf("dry run send failed: %v", err)
	}
	if sid != "dry_run_sid" {
		t.Errorf("sid = %q, want dry_run_sid", sid)
	}
}

func TestMockClientRecordsMessages(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()

	if _, err := m.SendSMS(ctx, "+12065551234", "first"); err != nil {
		t.Fatalf("mock send failed: %v", err)
	}
	m.SendSMS(ctx, "+12065551235", "second")

	if len(m.SentMessages) != 2 {
		t.Fatalf("sent = %d, want 2", len(m.SentMessages))
	}
	if m.SentMessages[0].To != "+12065551234" || m.SentMessages[0].Body != "first" {
		t.Errorf("first message = %+v", m.SentMessages[0])
	}

	m.Err = errors.New("boom")
	if _, err := m.SendSMS(ctx, "+12065551234", "third"); err == nil {
		t.Error("configured error not returned")
	}
	if len(m.SentMessages) != 2 {
		t.Error("failed send should not be recorded")
	}
}
