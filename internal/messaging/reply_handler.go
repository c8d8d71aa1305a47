package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/engine"
	"github.com/zhanghealth/zhanghealth/internal/meds"
	"github.com/zhanghealth/zhanghealth/internal/messages"
	"github.com/zhanghealth/zhanghealth/internal/models"
	"github.com/zhanghealth/zhanghealth/internal/store"
	"github.com/zhanghealth/zhanghealth/internal/trends"
)

// ReplyHandler processes inbound replies: it resolves the member, records
// the reply, classifies it, acts on the intent, and returns the response
// body to send back. An empty response means no reply should be sent.
type ReplyHandler struct {
	members *store.MemberStore
	data    store.Store
	meds    *meds.Manager
}

// NewReplyHandler builds the inbound reply pipeline.
func NewReplyHandler(members *store.MemberStore, data store.Store, medsManager *meds.Manager) *ReplyHandler {
	return &ReplyHandler{members: members, data: data, meds: medsManager}
}

// Handle processes one inbound message and returns the reply body.
// Messages from unknown numbers are logged and dropped.
func (h *ReplyHandler) Handle(from, body string, now time.Time) (string, error) {
	member, err := h.members.FindByPhone(from)
	if err != nil {
		if errors.Is(err, models.ErrMemberNotFound) {
			slog.Warn("ReplyHandler.Handle: reply from unknown number")
			return "", nil
		}
		return "", fmt.Errorf("failed to look up member: %w", err)
	}

	trimmed := strings.TrimSpace(body)

	// Record the reply on the member regardless of content.
	if _, err := h.members.UpdateByPhone(from, func(m *models.Member) {
		m.LastReply = trimmed
		m.LastReplyDate = now.UTC().Format(time.RFC3339)
	}); err != nil {
		return "", fmt.Errorf("failed to record reply: %w", err)
	}
	if err := h.data.AddResponse(models.Response{From: from, Body: trimmed, Time: now.Unix()}); err != nil {
		slog.Warn("ReplyHandler.Handle: failed to log response", "error", err)
	}

	// HEALTH requests the weekly summary advertised at the bottom of every
	// summary message.
	if strings.EqualFold(trimmed, "HEALTH") {
		return h.weeklySummary(member, now)
	}

	// Medication tracking commands are prefixed and checked before the
	// general classifier so "TOOK aspirin" never falls through to the
	// unknown-reply echo.
	if isMedCommand(trimmed) {
		action, err := h.meds.HandleReply(trimmed, member.ID, now)
		if err != nil {
			return "", fmt.Errorf("failed to handle medication reply: %w", err)
		}
		if action.Action != "unknown" {
			slog.Info("ReplyHandler.Handle: medication reply processed", "member", member.Name, "action", action.Action)
			return medReplyText(action), nil
		}
	}

	intent := engine.Classify(body)
	switch intent.Type {
	case models.IntentOptOut:
		if _, err := h.members.UpdateByPhone(from, func(m *models.Member) { m.Active = false }); err != nil {
			return "", fmt.Errorf("failed to deactivate member: %w", err)
		}
		slog.Info("ReplyHandler.Handle: member opted out", "member", member.Name)
		return messages.OptOutConfirmation(member.Name), nil

	case models.IntentOptIn:
		if _, err := h.members.UpdateByPhone(from, func(m *models.Member) { m.Active = true }); err != nil {
			return "", fmt.Errorf("failed to reactivate member: %w", err)
		}
		slog.Info("ReplyHandler.Handle: member opted back in", "member", member.Name)
		return messages.OptInConfirmation(member.Name), nil

	case models.IntentAcknowledge:
		slog.Info("ReplyHandler.Handle: exercise completion confirmed", "member", member.Name)
		return messages.OKAcknowledgment(member.Name), nil

	case models.IntentHealthData:
		record := models.ReadingRecord{
			MemberID:   member.ID,
			Phone:      member.Phone,
			Reading:    *intent.Reading,
			RecordedAt: now,
		}
		if err := h.data.AddReading(record); err != nil {
			return "", fmt.Errorf("failed to store reading: %w", err)
		}
		slog.Info("ReplyHandler.Handle: health reading recorded",
			"member", member.Name, "kind", intent.Reading.Kind, "category", intent.Reading.Category)
		return messages.ReadingConfirmation(intent.Reading), nil
	}

	slog.Info("ReplyHandler.Handle: unclassified reply", "member", member.Name)
	return messages.UnknownReply(intent.Text), nil
}

// summaryWindowDays is how far back the HEALTH reply looks for readings.
const summaryWindowDays = 7

// weeklySummary renders the on-demand health summary for a member.
func (h *ReplyHandler) weeklySummary(member models.Member, now time.Time) (string, error) {
	records, err := h.data.GetReadings(member.ID, now.AddDate(0, 0, -summaryWindowDays))
	if err != nil {
		return "", fmt.Errorf("failed to load readings: %w", err)
	}

	var bp []trends.BloodPressurePoint
	var weight []trends.WeightPoint
	for _, rec := range records {
		switch rec.Reading.Kind {
		case models.ReadingBloodPressure:
			bp = append(bp, trends.BloodPressurePoint{
				Systolic:  rec.Reading.Systolic,
				Diastolic: rec.Reading.Diastolic,
				Timestamp: rec.RecordedAt.Format(time.RFC3339),
			})
		case models.ReadingWeight:
			kg := rec.Reading.Value
			if rec.Reading.Unit == "lbs" {
				kg *= 0.453592
			}
			weight = append(weight, trends.WeightPoint{
				WeightKg:  kg,
				Timestamp: rec.RecordedAt.Format(time.RFC3339),
			})
		}
	}

	var adherence *trends.AdherenceSummary
	report, err := h.meds.Report(member.ID, summaryWindowDays, now)
	if err != nil {
		slog.Warn("ReplyHandler.weeklySummary: failed to build adherence report", "error", err)
	} else if report.TotalScheduled > 0 {
		adherence = &trends.AdherenceSummary{OverallRate: report.OverallRate}
	}

	slog.Info("ReplyHandler.weeklySummary: summary requested", "member", member.Name, "readings", len(records))
	return trends.WeeklySummary(member.ID, now, bp, weight, adherence), nil
}

// isMedCommand reports whether a reply uses the medication command prefixes.
// Bare Y/N/YES/NO are left to the general classifier, which treats them as
// opt-in/opt-out.
func isMedCommand(body string) bool {
	upper := strings.ToUpper(strings.TrimSpace(body))
	return strings.HasPrefix(upper, "MED ") || upper == "MED LIST" || upper == "TOOK" || strings.HasPrefix(upper, "TOOK ")
}

// medReplyText renders the confirmation for a handled medication command.
func medReplyText(action meds.ReplyAction) string {
	switch action.Action {
	case "taken_all":
		return "✅ 已记录：按时服药。继续保持！"
	case "skipped_all":
		return "已记录：本次未服药。请尽量按医嘱服用 💊"
	case "taken_specific":
		return fmt.Sprintf("✅ 已记录服用 %s。", action.Medication)
	case "refill":
		return fmt.Sprintf("💊 已更新 %s 的药量。", action.Medication)
	case "list":
		if len(action.Medications) == 0 {
			return "当前没有登记的药物。"
		}
		var b strings.Builder
		b.WriteString("💊 当前用药：")
		for _, med := range action.Medications {
			b.WriteString(fmt.Sprintf("\n• %s %s (%s)", med.Name, med.Dosage, strings.Join(med.Times, ", ")))
		}
		return b.String()
	}
	return ""
}
