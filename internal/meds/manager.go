package meds

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// Store is the persistence surface the manager needs. The store package
// provides SQLite, Postgres, and in-memory implementations.
type Store interface {
	// ListMedications returns every medication (active and inactive) for a
	// member; an empty memberID returns all medications.
	ListMedications(memberID string) ([]models.Medication, error)
	UpsertMedication(med models.Medication) error
	AddAdherenceEvent(ev models.AdherenceEvent) error
	// AdherenceEvents returns a member's adherence events recorded at or
	// after since, oldest first.
	AdherenceEvents(memberID string, since time.Time) ([]models.AdherenceEvent, error)
}

// Manager coordinates medication schedules and adherence tracking on top of
// a Store. It holds no state of its own.
type Manager struct {
	store Store
}

// NewManager creates a medication manager backed by the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// DueReminder identifies one medication due for a reminder right now.
type DueReminder struct {
	MemberID      string `json:"member_id"`
	Medication    string `json:"medication"`
	Dosage        string `json:"dosage"`
	ScheduledTime string `json:"scheduled_time"`
}

// RefillAlert flags a medication whose remaining supply has crossed its
// refill threshold.
type RefillAlert struct {
	MemberID        string `json:"member_id"`
	Medication      string `json:"medication"`
	SupplyRemaining int    `json:"supply_remaining"`
	Pharmacy        string `json:"pharmacy,omitempty"`
	Urgency         string `json:"urgency"` // "critical" at ≤2 days, else "warning"
}

// AddMedication stores a medication on the member's schedule and returns
// warnings for any known interactions with their active medications.
func (m *Manager) AddMedication(med models.Medication) ([]string, error) {
	if med.CreatedAt == "" {
		med.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	existing, err := m.store.ListMedications(med.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	warnings := CheckInteractions(med, existing)
	if len(warnings) > 0 {
		slog.Warn("Manager.AddMedication: drug interactions found", "medication", med.Name, "member", med.MemberID, "warnings", len(warnings))
	}
	if err := m.store.UpsertMedication(med); err != nil {
		return nil, fmt.Errorf("failed to store medication: %w", err)
	}
	return warnings, nil
}

// RemoveMedication deactivates a medication. Removal is a deactivation, not
// a deletion, so adherence history stays attributable.
func (m *Manager) RemoveMedication(memberID, name string) error {
	medsList, err := m.store.ListMedications(memberID)
	if err != nil {
		return fmt.Errorf("failed to list medications: %w", err)
	}
	for _, med := range medsList {
		if strings.EqualFold(med.Name, name) {
			med.Active = false
			return m.store.UpsertMedication(med)
		}
	}
	return fmt.Errorf("medication %q not found for member %s", name, memberID)
}

// DueReminders returns every active medication scheduled at the current
// HH:MM of the given instant.
func (m *Manager) DueReminders(now time.Time) ([]DueReminder, error) {
	all, err := m.store.ListMedications("")
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	hourMin := now.Format("15:04")
	var due []DueReminder
	for _, med := range all {
		if !med.Active {
			continue
		}
		for _, t := range med.Times {
			if t == hourMin {
				due = append(due, DueReminder{
					MemberID:      med.MemberID,
					Medication:    med.Name,
					Dosage:        med.Dosage,
					ScheduledTime: t,
				})
			}
		}
	}
	return due, nil
}

// RecordAdherence appends one taken/skipped event for a medication.
func (m *Manager) RecordAdherence(memberID, medName string, taken bool, scheduledTime string) error {
	if scheduledTime == "" {
		scheduledTime = time.Now().UTC().Format("15:04")
	}
	ev := models.AdherenceEvent{
		MedicationName: medName,
		MemberID:       memberID,
		ScheduledTime:  scheduledTime,
		Taken:          taken,
		ResponseTime:   time.Now().UTC().Format(time.RFC3339),
		Method:         "sms",
	}
	if err := m.store.AddAdherenceEvent(ev); err != nil {
		return fmt.Errorf("failed to record adherence: %w", err)
	}
	slog.Info("Manager.RecordAdherence: dose recorded", "member", memberID, "medication", medName, "taken", taken)
	return nil
}

// RefillAlerts returns alerts for active medications whose supply is at or
// below their refill threshold.
func (m *Manager) RefillAlerts() ([]RefillAlert, error) {
	all, err := m.store.ListMedications("")
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	var alerts []RefillAlert
	for _, med := range all {
		if !med.Active || med.SupplyRemaining > med.RefillThreshold {
			continue
		}
		urgency := "warning"
		if med.SupplyRemaining <= 2 {
			urgency = "critical"
		}
		alerts = append(alerts, RefillAlert{
			MemberID:        med.MemberID,
			Medication:      med.Name,
			SupplyRemaining: med.SupplyRemaining,
			Pharmacy:        med.Pharmacy,
			Urgency:         urgency,
		})
	}
	return alerts, nil
}

// Report builds the member's adherence report over a trailing window.
func (m *Manager) Report(memberID string, days int, now time.Time) (AdherenceReport, error) {
	events, err := m.store.AdherenceEvents(memberID, now.AddDate(0, 0, -days))
	if err != nil {
		return AdherenceReport{}, fmt.Errorf("failed to load adherence events: %w", err)
	}
	return BuildAdherenceReport(events, memberID, days, now), nil
}

// ReplyAction is the parsed outcome of a medication-related SMS reply.
type ReplyAction struct {
	Action      string              `json:"action"` // taken_all, skipped_all, taken_specific, list, refill, unknown
	Medications []models.Medication `json:"medications,omitempty"`
	Medication  string              `json:"medication,omitempty"`
	Raw         string              `json:"raw,omitempty"`
}

// HandleReply parses medication tracking replies:
//
//	"MED Y" / "TOOK"      — mark all currently due doses taken
//	"MED N"               — mark all currently due doses skipped
//	"TOOK aspirin"        — mark one medication taken
//	"MED LIST"            — list active medications
//	"MED REFILL aspirin"  — reset a medication's supply
//
// Bare Y/N/YES/NO are not medication commands; the reply pipeline routes
// them to opt-in/opt-out.
func (m *Manager) HandleReply(text, memberID string, now time.Time) (ReplyAction, error) {
	upper := strings.ToUpper(strings.TrimSpace(text))

	switch upper {
	case "MED Y", "TOOK":
		if err := m.recordAllDue(memberID, now, true); err != nil {
			return ReplyAction{}, err
		}
		return ReplyAction{Action: "taken_all"}, nil
	case "MED N":
		if err := m.recordAllDue(memberID, now, false); err != nil {
			return ReplyAction{}, err
		}
		return ReplyAction{Action: "skipped_all"}, nil
	case "MED LIST":
		medsList, err := m.store.ListMedications(memberID)
		if err != nil {
			return ReplyAction{}, fmt.Errorf("failed to list medications: %w", err)
		}
		var active []models.Medication
		for _, med := range medsList {
			if med.Active {
				active = append(active, med)
			}
		}
		return ReplyAction{Action: "list", Medications: active}, nil
	}

	if name, ok := strings.CutPrefix(upper, "TOOK "); ok {
		name = strings.ToLower(strings.TrimSpace(name))
		if err := m.RecordAdherence(memberID, name, true, ""); err != nil {
			return ReplyAction{}, err
		}
		return ReplyAction{Action: "taken_specific", Medication: name}, nil
	}

	if name, ok := strings.CutPrefix(upper, "MED REFILL "); ok {
		name = strings.ToLower(strings.TrimSpace(name))
		medsList, err := m.store.ListMedications(memberID)
		if err != nil {
			return ReplyAction{}, fmt.Errorf("failed to list medications: %w", err)
		}
		for _, med := range medsList {
			if strings.EqualFold(med.Name, name) {
				med.SupplyRemaining = 30
				if err := m.store.UpsertMedication(med); err != nil {
					return ReplyAction{}, fmt.Errorf("failed to update supply: %w", err)
				}
				return ReplyAction{Action: "refill", Medication: name}, nil
			}
		}
	}

	return ReplyAction{Action: "unknown", Raw: upper}, nil
}

func (m *Manager) recordAllDue(memberID string, now time.Time, taken bool) error {
	due, err := m.DueReminders(now)
	if err != nil {
		return err
	}
	for _, d := range due {
		if d.MemberID != memberID {
			continue
		}
		if err := m.RecordAdherence(memberID, d.Medication, taken, d.ScheduledTime); err != nil {
			return err
		}
	}
	return nil
}
