package engine

import (
	"testing"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

func date(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIsDue(t *testing.T) {
	m := models.Member{Name: "Mom", Phone: "+12065550100", Active: true, CadenceDays: 2}

	// Never sent: always due.
	if !IsDue(m, date("2026-08-26")) {
		t.Error("never-sent member should be due")
	}

	// Sent today with cadence 2: not due today, due again two days later.
	m.LastSentDate = "2026-08-26"
	if IsDue(m, date("2026-08-26")) {
		t.Error("member sent today should not be due")
	}
	if IsDue(m, date("2026-08-27")) {
		t.Error("member should not be due one day into a two-day cadence")
	}
	if !IsDue(m, date("2026-08-28")) {
		t.Error("member should be due after the full cadence elapses")
	}

	// Inactive members are never due, even when overdue.
	m.Active = false
	m.LastSentDate = "2026-01-01"
	if IsDue(m, date("2026-08-26")) {
		t.Error("inactive member must never be due")
	}
}

func TestIsSendHour(t *testing.T) {
	m := models.Member{Name: "Dad", Timezone: "America/Los_Angeles", PreferredHour: 9}

	// 16:00 UTC is 09:00 in Los Angeles during DST.
	now := time.Date(2026, 8, 26, 16, 30, 0, 0, time.UTC)
	ok, err := IsSendHour(m, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected 16:30 UTC to be the 9am slot in Los Angeles")
	}

	ok, err = IsSendHour(m, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("hour gate must match exactly, with no tolerance window")
	}
}

func TestIsSendHourUnknownTimezone(t *testing.T) {
	m := models.Member{Name: "Dad", Timezone: "Mars/Olympus_Mons", PreferredHour: 9}
	if _, err := IsSendHour(m, time.Now()); err == nil {
		t.Error("unknown timezone should be reported as an error")
	}
}

func TestMessageIndex(t *testing.T) {
	m := models.Member{Name: "Mom", Active: true, CadenceDays: 2}

	if got := MessageIndex(m, date("2026-08-26")); got != 0 {
		t.Errorf("never-sent index = %d, want 0", got)
	}

	m.LastSentDate = "2026-08-20"
	cases := []struct {
		today string
		want  int
	}{
		{"2026-08-20", 0},
		{"2026-08-22", 1},
		{"2026-08-24", 2},
		{"2026-08-27", 3},
	}
	for _, c := range cases {
		if got := MessageIndex(m, date(c.today)); got != c.want {
			t.Errorf("MessageIndex(today=%s) = %d, want %d", c.today, got, c.want)
		}
	}
}

func TestMessageIndexZeroCadence(t *testing.T) {
	// Roster files edited by hand bypass Add's validation and can carry a
	// zero cadence; it must behave like a daily cadence, not panic.
	m := models.Member{Name: "Mom", Active: true, CadenceDays: 0, LastSentDate: "2026-08-20"}

	if got := MessageIndex(m, date("2026-08-23")); got != 3 {
		t.Errorf("zero-cadence index = %d, want 3", got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 8, 20, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 8, 22, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 2 {
		t.Errorf("DaysBetween = %d, want 2 (time-of-day must be ignored)", got)
	}
}
