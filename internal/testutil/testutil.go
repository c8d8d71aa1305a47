// Package testutil provides shared helpers for HTTP handler and store tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/models"
	"github.com/zhanghealth/zhanghealth/internal/store"
)

// TestMember returns a valid member fixture for the given phone number.
func TestMember(phone string) models.Member {
	return models.Member{
		Name:          "奶奶",
		Phone:         phone,
		Timezone:      "UTC",
		Age:           72,
		PreferredHour: 8,
		Active:        true,
		CadenceDays:   2,
		ExercisePlan:  "senior_beginner",
	}
}

// AssertHTTPStatus fails the test when the status code does not match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONStatus decodes an APIResponse body and checks its status field,
// returning the decoded response for further assertions.
func AssertJSONStatus(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) models.APIResponse {
	t.Helper()
	var response models.APIResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if response.Status != expectedStatus {
		t.Errorf("expected status %q, got %q", expectedStatus, response.Status)
	}
	return response
}

// CreateJSONRequest builds a request with a JSON string body.
func CreateJSONRequest(t *testing.T, method, url, body string) *http.Request {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	return req
}

// SeedBloodPressureReadings adds a ramp of blood pressure readings for one
// member, oldest first, ending at the member's most recent reading.
func SeedBloodPressureReadings(t *testing.T, st store.Store, member models.Member, readings []models.HealthReading) {
	t.Helper()
	for i, r := range readings {
		err := st.AddReading(models.ReadingRecord{
			MemberID:   member.ID,
			Phone:      member.Phone,
			Reading:    r,
			RecordedAt: time.Now().AddDate(0, 0, i-len(readings)),
		})
		if err != nil {
			t.Fatalf("failed to seed reading %d: %v", i, err)
		}
	}
}
