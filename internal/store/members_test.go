package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhanghealth/zhanghealth/internal/models"
	"github.com/zhanghealth/zhanghealth/internal/secrets"
)

func newTestMemberStore(t *testing.T, secret string) (*MemberStore, string) {
	t.Helper()
	cipher, err := secrets.NewCipher(secret)
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "members.json")
	s, err := NewMemberStore(path, cipher)
	if err != nil {
		t.Fatalf("NewMemberStore failed: %v", err)
	}
	return s, path
}

func testMember() models.Member {
	return models.Member{
		Name:          "Mom",
		Phone:         "+12065551234",
		Timezone:      "America/Los_Angeles",
		Age:           62,
		PreferredHour: 9,
		Active:        true,
		CadenceDays:   2,
	}
}

func TestMemberStoreMissingFileIsEmpty(t *testing.T) {
	s, _ := newTestMemberStore(t, "")
	members, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("members = %d, want empty roster", len(members))
	}
}

func TestMemberStoreAddAndFind(t *testing.T) {
	s, _ := newTestMemberStore(t, "test-secret")

	added, err := s.Add(testMember())
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if added.ID == "" {
		t.Error("Add did not assign an ID")
	}
	if added.ExercisePlan != "senior_beginner" {
		t.Errorf("default plan = %q, want senior_beginner", added.ExercisePlan)
	}

	byPhone, err := s.FindByPhone("+12065551234")
	if err != nil {
		t.Fatalf("FindByPhone failed: %v", err)
	}
	if byPhone.Name != "Mom" {
		t.Errorf("FindByPhone returned %+v", byPhone)
	}

	byID, err := s.FindByID(added.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if byID.Phone != "+12065551234" {
		t.Errorf("FindByID phone = %q, want decrypted value", byID.Phone)
	}

	if _, err := s.FindByPhone("+19999999999"); !errors.Is(err, models.ErrMemberNotFound) {
		t.Errorf("missing member error = %v, want ErrMemberNotFound", err)
	}
}

func TestMemberStoreRejectsDuplicatePhone(t *testing.T) {
	s, _ := newTestMemberStore(t, "")
	if _, err := s.Add(testMember()); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if _, err := s.Add(testMember()); err == nil {
		t.Error("duplicate phone accepted")
	}
}

func TestMemberStoreValidation(t *testing.T) {
	s, _ := newTestMemberStore(t, "")

	m := testMember()
	m.Name = ""
	if _, err := s.Add(m); !errors.Is(err, models.ErrEmptyName) {
		t.Errorf("empty name error = %v", err)
	}

	m = testMember()
	m.CadenceDays = 0
	if _, err := s.Add(m); !errors.Is(err, models.ErrInvalidCadence) {
		t.Errorf("zero cadence error = %v", err)
	}

	m = testMember()
	m.Timezone = "Not/AZone"
	if _, err := s.Add(m); !errors.Is(err, models.ErrInvalidTimezone) {
		t.Errorf("bad timezone error = %v", err)
	}
}

func TestMemberStorePhoneEncryptedAtRest(t *testing.T) {
	s, path := newTestMemberStore(t, "test-secret")
	if _, err := s.Add(testMember()); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read members file: %v", err)
	}
	if strings.Contains(string(raw), "+12065551234") {
		t.Error("phone number stored in plain text despite encryption key")
	}
	if !strings.Contains(string(raw), `"enc:`) {
		t.Error("stored phone missing enc: prefix")
	}

	// Loading through a fresh store instance decrypts transparently.
	cipher, _ := secrets.NewCipher("test-secret")
	s2, _ := NewMemberStore(path, cipher)
	m, err := s2.FindByPhone("+12065551234")
	if err != nil {
		t.Fatalf("FindByPhone after reload failed: %v", err)
	}
	if m.Phone != "+12065551234" {
		t.Errorf("reloaded phone = %q", m.Phone)
	}
}

func TestMemberStorePlainTextBackwardCompatible(t *testing.T) {
	// A roster written without encryption stays readable when a key is
	// added later.
	s, path := newTestMemberStore(t, "")
	if _, err := s.Add(testMember()); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	cipher, _ := secrets.NewCipher("new-secret")
	s2, _ := NewMemberStore(path, cipher)
	m, err := s2.FindByPhone("+12065551234")
	if err != nil {
		t.Fatalf("FindByPhone failed: %v", err)
	}
	if m.Name != "Mom" {
		t.Errorf("member = %+v", m)
	}
}

func TestMemberStoreUpdateByPhone(t *testing.T) {
	s, _ := newTestMemberStore(t, "test-secret")
	if _, err := s.Add(testMember()); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	updated, err := s.UpdateByPhone("+12065551234", func(m *models.Member) {
		m.Active = false
		m.LastReply = "stop"
	})
	if err != nil {
		t.Fatalf("UpdateByPhone failed: %v", err)
	}
	if updated.Active {
		t.Error("update not applied")
	}

	m, _ := s.FindByPhone("+12065551234")
	if m.Active || m.LastReply != "stop" {
		t.Errorf("persisted member = %+v", m)
	}

	if _, err := s.UpdateByPhone("+19999999999", func(m *models.Member) {}); !errors.Is(err, models.ErrMemberNotFound) {
		t.Errorf("missing member update error = %v", err)
	}
}
