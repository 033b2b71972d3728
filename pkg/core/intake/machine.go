package intake

import (
	"strings"
)

// affirmativeTokens close out the confirmation section when any of them
// appears in the patient's reply.
var affirmativeTokens = []string{"yes", "correct", "right", "confirm"}

// ShouldAdvance reports whether the active section's completion predicate
// holds. sectionTurns counts turns recorded while this section was active;
// lastPatientText is the most recent patient utterance.
//
// Greeting and Complete never advance through this check: Greeting
// transitions when the greeting is emitted, Complete is terminal.
func ShouldAdvance(section Section, rec *Record, sectionTurns int, lastPatientText string) bool {
	switch section {
	case SectionDemographics:
		d := rec.Demographics
		return d.FullName != "" && d.DateOfBirth != "" && d.Phone != ""
	case SectionVisitReason:
		return rec.Visit.ChiefComplaint != ""
	case SectionMedicalHistory, SectionMedications, SectionAllergies:
		// One full question/answer exchange is enough. These sections may
		// legitimately collect nothing; absence of data is a valid answer.
		return sectionTurns >= 2
	case SectionConfirmation:
		return containsAffirmative(lastPatientText)
	default:
		return false
	}
}

func containsAffirmative(text string) bool {
	lower := strings.ToLower(text)
	for _, token := range affirmativeTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
