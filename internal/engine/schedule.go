package engine

import (
	"fmt"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// IsDue reports whether a reminder is due for the member on the given date.
// Inactive members are never due; never-sent members are always due; otherwise
// the member is due once at least CadenceDays have elapsed since the last send.
func IsDue(m models.Member, today time.Time) bool {
	if !m.Active {
		return false
	}
	last, ok := m.LastSent()
	if !ok {
		return true
	}
	return DaysBetween(last, today) >= m.CadenceDays
}

// IsSendHour reports whether the given instant falls in the member's
// preferred send hour, evaluated in the member's named timezone. The hour
// must match exactly; there is no tolerance window, so a tick cadence coarser
// than hourly can miss the slot. An unknown timezone is an error scoped to
// this member only — callers skip the member and continue the batch.
func IsSendHour(m models.Member, now time.Time) (bool, error) {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return false, fmt.Errorf("unknown timezone %q for member %s: %w", m.Timezone, m.Name, err)
	}
	return now.In(loc).Hour() == m.PreferredHour, nil
}

// MessageIndex returns the rotation index for picking which routine variant
// to send: days since the last send divided by the cadence, or 0 when the
// member has never been sent a reminder. Callers wrap it modulo the plan
// length.
func MessageIndex(m models.Member, today time.Time) int {
	last, ok := m.LastSent()
	if !ok {
		return 0
	}
	days := DaysBetween(last, today)
	if days < 0 {
		return 0
	}
	// Hand-edited roster files can carry a zero cadence that Add would
	// have rejected; treat it as daily instead of dividing by zero.
	cadence := m.CadenceDays
	if cadence < 1 {
		cadence = 1
	}
	return days / cadence
}

// DaysBetween returns the number of whole calendar days from a to b,
// ignoring the time-of-day and location of both instants.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start) / (24 * time.Hour))
}
