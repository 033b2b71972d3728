package intake

import (
	"time"
)

// RecordStatus tags the lifecycle of an intake record.
type RecordStatus string

const (
	RecordInProgress RecordStatus = "in_progress"
	RecordComplete   RecordStatus = "complete"
	RecordAbandoned  RecordStatus = "abandoned"
)

// SessionStatus tags the lifecycle of a session in the registry.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionComplete  SessionStatus = "complete"
	SessionAbandoned SessionStatus = "abandoned"
)

// ValidSessionStatus reports whether s is a known session status.
func ValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionActive, SessionComplete, SessionAbandoned:
		return true
	}
	return false
}

// Demographics holds patient identity fields. Empty string means the field
// has not been collected yet.
type Demographics struct {
	FullName    string `json:"full_name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Visit describes why the patient is here. Severity is 1-10; zero means
// not collected.
type Visit struct {
	ChiefComplaint string   `json:"chief_complaint,omitempty"`
	Symptoms       []string `json:"symptoms"`
	Duration       string   `json:"duration,omitempty"`
	Severity       int      `json:"severity,omitempty"`
}

// MedicalHistory holds the three append-only history lists.
type MedicalHistory struct {
	ChronicConditions []string `json:"chronic_conditions"`
	Surgeries         []string `json:"surgeries"`
	Hospitalizations  []string `json:"hospitalizations"`
}

// Medication is one current medication. Name is required; entries without
// a name are dropped at merge time.
type Medication struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage,omitempty"`
}

// Allergies holds the allergy lists and an optional reaction description.
type Allergies struct {
	DrugAllergies []string `json:"drug_allergies"`
	FoodAllergies []string `json:"food_allergies"`
	Reactions     string   `json:"reactions,omitempty"`
}

// Metadata carries interview bookkeeping. DurationSeconds is recomputed at
// snapshot time from the session start, never stored incrementally.
// CorrectionsMade is reserved and always zero for now.
type Metadata struct {
	DurationSeconds   float64 `json:"duration_seconds"`
	SectionsCompleted int     `json:"sections_completed"`
	CorrectionsMade   int     `json:"corrections_made"`
}

// Record is the accumulated structured intake data for one session. It is
// created empty at session start and mutated only through ApplyExtraction
// and Absorb.
type Record struct {
	SessionID      string         `json:"session_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Status         RecordStatus   `json:"status"`
	Demographics   Demographics   `json:"demographics"`
	Visit          Visit          `json:"visit"`
	MedicalHistory MedicalHistory `json:"medical_history"`
	Medications    []Medication   `json:"medications"`
	Allergies      Allergies      `json:"allergies"`
	Metadata       Metadata       `json:"metadata"`
}

// NewRecord creates an empty in-progress record. List fields are non-nil so
// they serialize as [] rather than null.
func NewRecord(sessionID string, createdAt time.Time) *Record {
	return &Record{
		SessionID: sessionID,
		Timestamp: createdAt,
		Status:    RecordInProgress,
		Visit: Visit{
			Symptoms: []string{},
		},
		MedicalHistory: MedicalHistory{
			ChronicConditions: []string{},
			Surgeries:         []string{},
			Hospitalizations:  []string{},
		},
		Medications: []Medication{},
		Allergies: Allergies{
			DrugAllergies: []string{},
			FoodAllergies: []string{},
		},
	}
}

// Clone returns a deep copy safe to hand to readers while the original
// keeps being mutated.
func (r *Record) Clone() *Record {
	out := *r
	out.Visit.Symptoms = copyStrings(r.Visit.Symptoms)
	out.MedicalHistory.ChronicConditions = copyStrings(r.MedicalHistory.ChronicConditions)
	out.MedicalHistory.Surgeries = copyStrings(r.MedicalHistory.Surgeries)
	out.MedicalHistory.Hospitalizations = copyStrings(r.MedicalHistory.Hospitalizations)
	out.Medications = make([]Medication, len(r.Medications))
	copy(out.Medications, r.Medications)
	out.Allergies.DrugAllergies = copyStrings(r.Allergies.DrugAllergies)
	out.Allergies.FoodAllergies = copyStrings(r.Allergies.FoodAllergies)
	return &out
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
