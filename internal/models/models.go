// Package models defines the core data structures for the zhanghealth service.
//
// It includes the member record, classified reply intents, parsed health
// readings, medication and adherence types, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// DateLayout is the storage format for calendar dates (member last-sent,
// adherence day keys). Matches time.DateOnly.
const DateLayout = "2006-01-02"

// Validation errors shared by the store and API layers.
var (
	ErrEmptyName        = errors.New("member name cannot be empty")
	ErrEmptyPhone       = errors.New("member phone cannot be empty")
	ErrInvalidCadence   = errors.New("cadence_days must be at least 1")
	ErrInvalidSendHour  = errors.New("preferred_hour must be between 0 and 23")
	ErrInvalidTimezone  = errors.New("invalid timezone name")
	ErrMemberNotFound   = errors.New("member not found")
	ErrEmptyMessageBody = errors.New("message body cannot be empty")
)

// Member represents a family member enrolled in the reminder system.
// Phone numbers are plaintext in memory; the member store encrypts them
// at rest when an encryption key is configured.
type Member struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Timezone      string `json:"timezone"` // IANA name, e.g. "America/Los_Angeles"
	Age           int    `json:"age"`
	PreferredHour int    `json:"preferred_hour"` // local hour 0-23
	Active        bool   `json:"active"`
	CadenceDays   int    `json:"cadence_days"` // send every N days
	LastSentDate  string `json:"last_sent_date,omitempty"` // DateLayout
	LastReply     string `json:"last_reply,omitempty"`
	LastReplyDate string `json:"last_reply_date,omitempty"` // RFC 3339
	ExercisePlan  string `json:"exercise_plan,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// Validate checks the member invariants enforced at the store boundary.
func (m *Member) Validate() error {
	if m.Name == "" {
		return ErrEmptyName
	}
	if m.Phone == "" {
		return ErrEmptyPhone
	}
	if m.CadenceDays < 1 {
		return ErrInvalidCadence
	}
	if m.PreferredHour < 0 || m.PreferredHour > 23 {
		return ErrInvalidSendHour
	}
	if m.Timezone != "" {
		if _, err := time.LoadLocation(m.Timezone); err != nil {
			return ErrInvalidTimezone
		}
	}
	return nil
}

// LastSent parses the stored last-sent date. The second return value is
// false when the member has never been sent a reminder.
func (m *Member) LastSent() (time.Time, bool) {
	if m.LastSentDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, m.LastSentDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ReadingKind identifies the kind of a parsed health reading.
type ReadingKind string

const (
	ReadingBloodPressure ReadingKind = "blood_pressure"
	ReadingBloodSugar    ReadingKind = "blood_sugar"
	ReadingWeight        ReadingKind = "weight"
	ReadingHeartRate     ReadingKind = "heart_rate"
)

// HealthReading is a parsed health metric extracted from an inbound reply.
// Exactly the fields relevant to Kind are populated; Category carries the
// clinical-style band derived from the fixed threshold tables.
type HealthReading struct {
	Kind      ReadingKind `json:"type"`
	Systolic  int         `json:"systolic,omitempty"`
	Diastolic int         `json:"diastolic,omitempty"`
	Value     float64     `json:"value,omitempty"`
	Unit      string      `json:"unit,omitempty"`
	Category  string      `json:"category,omitempty"`
}

// IntentType is the classified meaning of an inbound reply.
type IntentType string

const (
	IntentOptOut      IntentType = "opt_out"
	IntentOptIn       IntentType = "opt_in"
	IntentAcknowledge IntentType = "acknowledge"
	IntentHealthData  IntentType = "health_data"
	IntentUnknown     IntentType = "unknown"
)

// Intent is the result of classifying one inbound message. Reading is set
// only for IntentHealthData; Text carries the original trimmed message for
// IntentUnknown.
type Intent struct {
	Type    IntentType     `json:"type"`
	Reading *HealthReading `json:"reading,omitempty"`
	Text    string         `json:"text,omitempty"`
}

// ReadingRecord is a persisted health reading attributed to a member.
type ReadingRecord struct {
	MemberID   string        `json:"member_id"`
	Phone      string        `json:"phone"`
	Reading    HealthReading `json:"reading"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Medication is one medication on a member's schedule.
type Medication struct {
	Name            string   `json:"name"`
	Dosage          string   `json:"dosage"`    // e.g. "10mg"
	Frequency       string   `json:"frequency"` // "daily", "twice_daily", ...
	Times           []string `json:"times"`     // "HH:MM" local times
	MemberID        string   `json:"member_id"`
	Prescriber      string   `json:"prescriber,omitempty"`
	Pharmacy        string   `json:"pharmacy,omitempty"`
	SupplyRemaining int      `json:"supply_remaining"` // days of supply left
	RefillThreshold int      `json:"refill_threshold"` // alert at this many days
	Notes           string   `json:"notes,omitempty"`
	Active          bool     `json:"active"`
	CreatedAt       string   `json:"created_at,omitempty"`
}

// AdherenceEvent records whether one scheduled dose was taken. Events are
// append-only; they are never mutated after being recorded.
type AdherenceEvent struct {
	MedicationName string `json:"medication_name"`
	MemberID       string `json:"member_id"`
	ScheduledTime  string `json:"scheduled_time"` // "HH:MM"
	Taken          bool   `json:"taken"`
	ResponseTime   string `json:"response_time"` // RFC 3339
	Method         string `json:"method"`        // "sms", "manual", "auto"
}

// Receipt records the outcome of one outbound send attempt.
type Receipt struct {
	To     string `json:"to"`
	Status string `json:"status"` // "sent", "failed", "dry_run"
	SID    string `json:"sid,omitempty"`
	Time   int64  `json:"time"`
}

// Response represents an inbound message from a member.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope returned by admin endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
