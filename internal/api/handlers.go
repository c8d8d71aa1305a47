package api

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/engine"
	"github.com/zhanghealth/zhanghealth/internal/messages"
	"github.com/zhanghealth/zhanghealth/internal/messaging"
	"github.com/zhanghealth/zhanghealth/internal/models"
	"github.com/zhanghealth/zhanghealth/internal/trends"
)

// DefaultAnalysisWindowDays is how far back the trends and risk endpoints
// look for readings.
const DefaultAnalysisWindowDays = 90

// DefaultAdherenceReportDays is the adherence report window.
const DefaultAdherenceReportDays = 30

// DefaultHeightCm is assumed for BMI when the request does not supply a
// height.
const DefaultHeightCm = 165.0

// statusHandler serves the public status page (GET /).
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	roster, err := s.members.Load()
	if err != nil {
		slog.Error("Server.statusHandler: failed to load members", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load members"))
		return
	}
	active := 0
	for _, m := range roster {
		if m.Active {
			active++
		}
	}

	mode := "live"
	if s.dryRun {
		mode = "dry_run"
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"service":         "zhanghealth",
		"status":          "running",
		"mode":            mode,
		"total_users":     len(roster),
		"active_users":    active,
		"server_time_utc": time.Now().UTC().Format(time.RFC3339),
	})
}

// healthHandler provides a health check endpoint for monitoring.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.members.Load(); err != nil {
		slog.Warn("Server.healthHandler: member store unavailable", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Member store unavailable"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}

// twiML is the minimal TwiML document for a synchronous SMS reply.
type twiML struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// twilioWebhookHandler handles inbound SMS (POST /webhook/twilio). The reply
// is returned synchronously as TwiML; an empty reply returns 204 so Twilio
// sends nothing.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	from, body, err := messaging.ParseInboundForm(r)
	if err != nil {
		slog.Warn("Server.twilioWebhookHandler: malformed webhook form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			params[key] = r.PostForm.Get(key)
		}
		signature := r.Header.Get("X-Twilio-Signature")
		url := s.webhookURL
		if url == "" {
			url = "https://" + r.Host + r.URL.RequestURI()
		}
		if !s.validator.ValidateSignature(url, params, signature) {
			slog.Warn("Server.twilioWebhookHandler: signature validation failed", "from", from)
			w.WriteHeader(http.StatusForbidden)
			return
		}
	}

	reply, err := s.reply.Handle(from, body, time.Now())
	if err != nil {
		slog.Error("Server.twilioWebhookHandler: reply pipeline failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if reply == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	out, err := xml.Marshal(twiML{Message: reply})
	if err != nil {
		slog.Error("Server.twilioWebhookHandler: failed to marshal TwiML", "error", err)
		return
	}
	if _, err := w.Write(append([]byte(xml.Header), out...)); err != nil {
		slog.Error("Server.twilioWebhookHandler: failed to write TwiML", "error", err)
	}
}

// requireAdminToken gates /api/ endpoints on a valid admin token.
func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminTokenHeader)
		if valid, reason := s.auth.VerifyToken(token); !valid {
			slog.Warn("Server.requireAdminToken: rejected request", "path", r.URL.Path, "reason", reason)
			writeJSONResponse(w, http.StatusUnauthorized, models.Error(reason))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiHandler dispatches /api/ requests by path segment.
func (s *Server) apiHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/")
	segments := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case segments[0] == "send-now":
		s.sendNowHandler(w, r)
	case segments[0] == "receipts":
		s.receiptsHandler(w, r)
	case segments[0] == "responses":
		s.responsesHandler(w, r)
	case segments[0] == "members" && len(segments) == 1:
		s.listMembersHandler(w, r)
	case segments[0] == "members" && len(segments) == 3:
		switch segments[2] {
		case "toggle":
			s.toggleMemberHandler(w, r, segments[1])
		case "trends":
			s.trendsHandler(w, r, segments[1])
		case "risk":
			s.riskHandler(w, r, segments[1])
		case "adherence":
			s.adherenceHandler(w, r, segments[1])
		case "medications":
			s.medicationsHandler(w, r, segments[1])
		default:
			writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown endpoint"))
		}
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown endpoint"))
	}
}

// receiptsHandler returns the recorded send receipts (GET /api/receipts).
func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	receipts, err := s.st.GetReceipts()
	if err != nil {
		slog.Error("Server.receiptsHandler: failed to fetch receipts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch receipts"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}

// responsesHandler returns the recorded inbound replies (GET /api/responses).
func (s *Server) responsesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	responses, err := s.st.GetResponses()
	if err != nil {
		slog.Error("Server.responsesHandler: failed to fetch responses", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch responses"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(responses))
}

// sendNowHandler sends an exercise reminder immediately (POST /api/send-now).
func (s *Server) sendNowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendNowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: phone"))
		return
	}

	member, err := s.members.FindByPhone(req.Phone)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Member not found"))
		return
	}

	now := time.Now()
	body := messages.ExerciseMessage(member.Name, member.ExercisePlan, engine.MessageIndex(member, now))
	if err := s.msgService.SendMessage(context.Background(), member.Phone, body); err != nil {
		slog.Error("Server.sendNowHandler: failed to send message", "error", err, "member", member.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send message"))
		return
	}
	if _, err := s.members.UpdateByPhone(member.Phone, func(m *models.Member) {
		m.LastSentDate = now.Format(models.DateLayout)
	}); err != nil {
		slog.Error("Server.sendNowHandler: failed to record send", "error", err, "member", member.Name)
	}

	slog.Info("Server.sendNowHandler: reminder sent", "member", member.Name)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Reminder sent", nil))
}

// listMembersHandler returns the roster (GET /api/members).
func (s *Server) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	roster, err := s.members.Load()
	if err != nil {
		slog.Error("Server.listMembersHandler: failed to load members", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load members"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(roster))
}

// toggleMemberHandler flips a member's active flag
// (POST /api/members/{phone}/toggle).
func (s *Server) toggleMemberHandler(w http.ResponseWriter, r *http.Request, phone string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	updated, err := s.members.UpdateByPhone(phone, func(m *models.Member) {
		m.Active = !m.Active
	})
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Member not found"))
		return
	}
	slog.Info("Server.toggleMemberHandler: member toggled", "member", updated.Name, "active", updated.Active)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"id":     updated.ID,
		"name":   updated.Name,
		"active": updated.Active,
	}))
}

// memberReadings loads a member's recent readings split into per-metric
// analysis inputs. Weights stored in pounds are normalized to kilograms.
func (s *Server) memberReadings(memberID string, now time.Time) ([]trends.BloodPressurePoint, []trends.WeightPoint, error) {
	records, err := s.st.GetReadings(memberID, now.AddDate(0, 0, -DefaultAnalysisWindowDays))
	if err != nil {
		return nil, nil, err
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
	return bp, weight, nil
}

// trendsHandler returns BP and weight analyses for a member
// (GET /api/members/{id}/trends).
func (s *Server) trendsHandler(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	member, err := s.members.FindByID(memberID)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Member not found"))
		return
	}

	bp, weight, err := s.memberReadings(member.ID, time.Now())
	if err != nil {
		slog.Error("Server.trendsHandler: failed to load readings", "error", err, "member", member.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load readings"))
		return
	}

	heightCm := queryFloat(r, "height_cm", DefaultHeightCm)
	targetKg := queryFloat(r, "target_kg", 0)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"blood_pressure": trends.AnalyzeBloodPressure(bp, member.ID),
		"weight":         trends.AnalyzeWeight(weight, heightCm, targetKg, member.ID),
	}))
}

// riskHandler returns a combined risk assessment for a member
// (GET /api/members/{id}/risk).
func (s *Server) riskHandler(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	member, err := s.members.FindByID(memberID)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Member not found"))
		return
	}

	bp, weight, err := s.memberReadings(member.ID, time.Now())
	if err != nil {
		slog.Error("Server.riskHandler: failed to load readings", "error", err, "member", member.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load readings"))
		return
	}

	assessment := trends.CalculateRiskScore(trends.RiskInputs{
		Age:              member.Age,
		BPReadings:       bp,
		WeightReadings:   weight,
		HeightCm:         queryFloat(r, "height_cm", DefaultHeightCm),
		Smoker:           queryBool(r, "smoker"),
		Diabetic:         queryBool(r, "diabetic"),
		FamilyHistoryCVD: queryBool(r, "family_history"),
	})
	writeJSONResponse(w, http.StatusOK, models.Success(assessment))
}

// adherenceHandler returns a medication adherence report
// (GET /api/members/{id}/adherence).
func (s *Server) adherenceHandler(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	member, err := s.members.FindByID(memberID)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Member not found"))
		return
	}

	days := int(queryFloat(r, "days", DefaultAdherenceReportDays))
	report, err := s.meds.Report(member.ID, days, time.Now())
	if err != nil {
		slog.Error("Server.adherenceHandler: failed to build report", "error", err, "member", member.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build adherence report"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

// medicationsHandler adds a medication to a member's schedule
// (POST /api/members/{id}/medications) or lists them (GET).
func (s *Server) medicationsHandler(w http.ResponseWriter, r *http.Request, memberID string) {
	member, err := s.members.FindByID(memberID)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Member not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		meds, err := s.st.ListMedications(member.ID)
		if err != nil {
			slog.Error("Server.medicationsHandler: failed to list medications", "error", err, "member", member.Name)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list medications"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(meds))

	case http.MethodPost:
		if r.Body != nil {
			defer r.Body.Close()
		}
		var med models.Medication
		if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
			slog.Warn("Server.medicationsHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		med.MemberID = member.ID
		warnings, err := s.meds.AddMedication(med)
		if err != nil {
			slog.Warn("Server.medicationsHandler: failed to add medication", "error", err, "member", member.Name)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Info("Server.medicationsHandler: medication added", "member", member.Name, "medication", med.Name, "warnings", len(warnings))
		writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Medication added", map[string]interface{}{
			"interaction_warnings": warnings,
		}))

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
