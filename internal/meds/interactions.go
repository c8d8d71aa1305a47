// Package meds tracks medication schedules, dose adherence, refill alerts,
// and basic drug interaction warnings for family members.
package meds

import (
	"strings"

	"github.com/zhanghealth/zhanghealth/internal/models"
)

// pair is an unordered medication name pair; lookups check both orderings.
type pair struct {
	a, b string
}

// knownInteractions is a fixed rule table of interacting medication pairs.
// Names are lowercase.
var knownInteractions = map[pair]string{
	{"lisinopril", "potassium"}:  "HIGH: ACE inhibitors + potassium supplements can cause hyperkalemia",
	{"metformin", "alcohol"}:     "MODERATE: Alcohol increases risk of lactic acidosis with metformin",
	{"warfarin", "aspirin"}:      "HIGH: Increased bleeding risk",
	{"warfarin", "ibuprofen"}:    "HIGH: NSAIDs increase bleeding risk with warfarin",
	{"amlodipine", "simvastatin"}: "MODERATE: May increase simvastatin levels",
	{"lisinopril", "ibuprofen"}:  "MODERATE: NSAIDs may reduce ACE inhibitor effectiveness",
	{"metoprolol", "verapamil"}:  "HIGH: Risk of severe bradycardia",
}

// CheckInteractions returns warnings for every known interaction between the
// new medication and the member's currently active medications. The lookup
// is unordered: both orderings of each pair are checked.
func CheckInteractions(newMed models.Medication, existing []models.Medication) []string {
	var warnings []string
	newName := strings.ToLower(newMed.Name)

	for _, med := range existing {
		if med.MemberID != newMed.MemberID || !med.Active {
			continue
		}
		existingName := strings.ToLower(med.Name)
		if w, ok := knownInteractions[pair{newName, existingName}]; ok {
			warnings = append(warnings, w)
		} else if w, ok := knownInteractions[pair{existingName, newName}]; ok {
			warnings = append(warnings, w)
		}
	}
	return warnings
}
