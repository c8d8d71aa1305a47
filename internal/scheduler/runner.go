package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/engine"
	"github.com/zhanghealth/zhanghealth/internal/genai"
	"github.com/zhanghealth/zhanghealth/internal/meds"
	"github.com/zhanghealth/zhanghealth/internal/messages"
	"github.com/zhanghealth/zhanghealth/internal/messaging"
	"github.com/zhanghealth/zhanghealth/internal/models"
	"github.com/zhanghealth/zhanghealth/internal/store"
)

// Cron expressions for the standing jobs.
const (
	ExerciseReminderSpec   = "0 * * * *" // top of every hour
	MedicationReminderSpec = "* * * * *" // dose times match to the minute
	RefillAlertSpec        = "0 9 * * *" // daily morning sweep
)

// ReminderRunner drives the outbound reminder jobs. Each Run* method does
// one pass over the roster; Schedule registers them with the cron scheduler.
type ReminderRunner struct {
	members *store.MemberStore
	service messaging.Service
	meds    *meds.Manager
	genai   *genai.Client
}

// NewReminderRunner builds a runner. The genai client may be nil or
// disabled; exercise reminders then use the built-in motivation lines.
func NewReminderRunner(members *store.MemberStore, service messaging.Service, medsManager *meds.Manager, genaiClient *genai.Client) *ReminderRunner {
	return &ReminderRunner{members: members, service: service, meds: medsManager, genai: genaiClient}
}

// Schedule registers the standing jobs on the scheduler.
func (r *ReminderRunner) Schedule(ctx context.Context, s *Scheduler) error {
	if err := s.AddJob(ExerciseReminderSpec, func() {
		if err := r.RunExerciseReminders(ctx, time.Now()); err != nil {
			slog.Error("ReminderRunner: exercise reminder pass failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule exercise reminders: %w", err)
	}
	if err := s.AddJob(MedicationReminderSpec, func() {
		if err := r.RunMedicationReminders(ctx, time.Now()); err != nil {
			slog.Error("ReminderRunner: medication reminder pass failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule medication reminders: %w", err)
	}
	if err := s.AddJob(RefillAlertSpec, func() {
		if err := r.RunRefillAlerts(ctx); err != nil {
			slog.Error("ReminderRunner: refill alert pass failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule refill alerts: %w", err)
	}
	return nil
}

// RunExerciseReminders does one pass over the roster and sends an exercise
// reminder to every member who is due at this hour. A bad timezone or a
// send failure skips that member and continues the batch.
func (r *ReminderRunner) RunExerciseReminders(ctx context.Context, now time.Time) error {
	members, err := r.members.Load()
	if err != nil {
		return fmt.Errorf("failed to load members: %w", err)
	}

	sent := 0
	for _, m := range members {
		if !engine.IsDue(m, now) {
			continue
		}
		due, err := engine.IsSendHour(m, now)
		if err != nil {
			slog.Warn("ReminderRunner.RunExerciseReminders: skipping member", "member", m.Name, "error", err)
			continue
		}
		if !due {
			continue
		}

		body := messages.ExerciseMessage(m.Name, m.ExercisePlan, engine.MessageIndex(m, now))
		if r.genai != nil && r.genai.Enabled() {
			body += "\n\n" + r.genai.MotivationLine(ctx, m.Name, engine.MessageIndex(m, now))
		}
		if err := r.service.SendMessage(ctx, m.Phone, body); err != nil {
			slog.Error("ReminderRunner.RunExerciseReminders: send failed", "member", m.Name, "error", err)
			continue
		}

		loc, _ := time.LoadLocation(m.Timezone)
		today := now.In(loc).Format(models.DateLayout)
		if _, err := r.members.UpdateByPhone(m.Phone, func(u *models.Member) {
			u.LastSentDate = today
		}); err != nil {
			slog.Error("ReminderRunner.RunExerciseReminders: failed to record send", "member", m.Name, "error", err)
			continue
		}
		sent++
		slog.Info("ReminderRunner.RunExerciseReminders: reminder sent", "member", m.Name, "date", today)
	}

	if sent > 0 {
		slog.Info("ReminderRunner.RunExerciseReminders: pass complete", "sent", sent, "roster", len(members))
	}
	return nil
}

// RunMedicationReminders sends a dose reminder for every medication whose
// scheduled time matches the current minute.
func (r *ReminderRunner) RunMedicationReminders(ctx context.Context, now time.Time) error {
	due, err := r.meds.DueReminders(now)
	if err != nil {
		return fmt.Errorf("failed to find due medications: %w", err)
	}
	for _, d := range due {
		m, err := r.members.FindByID(d.MemberID)
		if err != nil {
			slog.Warn("ReminderRunner.RunMedicationReminders: medication for unknown member", "member_id", d.MemberID)
			continue
		}
		if !m.Active {
			continue
		}
		body := fmt.Sprintf("💊 %s，该吃药了！\n%s %s (%s)\n\n服用后请回复 TOOK %s", m.Name, d.Medication, d.Dosage, d.ScheduledTime, d.Medication)
		if err := r.service.SendMessage(ctx, m.Phone, body); err != nil {
			slog.Error("ReminderRunner.RunMedicationReminders: send failed", "member", m.Name, "error", err)
		}
	}
	return nil
}

// RunRefillAlerts sends a pharmacy refill alert for every medication at or
// below its refill threshold.
func (r *ReminderRunner) RunRefillAlerts(ctx context.Context) error {
	alerts, err := r.meds.RefillAlerts()
	if err != nil {
		return fmt.Errorf("failed to find refill alerts: %w", err)
	}
	for _, a := range alerts {
		m, err := r.members.FindByID(a.MemberID)
		if err != nil || !m.Active {
			continue
		}
		body := fmt.Sprintf("💊 %s，您的 %s 只剩 %d 天的量了，请尽快补充。", m.Name, a.Medication, a.SupplyRemaining)
		if a.Pharmacy != "" {
			body += fmt.Sprintf("\n药房：%s", a.Pharmacy)
		}
		if a.Urgency == "critical" {
			body = "⚠️ " + body
		}
		if err := r.service.SendMessage(ctx, m.Phone, body); err != nil {
			slog.Error("ReminderRunner.RunRefillAlerts: send failed", "member", m.Name, "error", err)
		}
	}
	return nil
}
