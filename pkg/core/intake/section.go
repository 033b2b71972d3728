package intake

// Section identifies one phase of the fixed intake interview sequence.
// The wire values match what clients receive in session state payloads.
type Section string

const (
	SectionGreeting       Section = "GREETING"
	SectionDemographics   Section = "DEMOGRAPHICS"
	SectionVisitReason    Section = "VISIT_REASON"
	SectionMedicalHistory Section = "MEDICAL_HISTORY"
	SectionMedications    Section = "MEDICATIONS"
	SectionAllergies      Section = "ALLERGIES"
	SectionConfirmation   Section = "CONFIRMATION"
	SectionComplete       Section = "COMPLETE"
)

// sectionOrder is the fixed interview sequence. Sections only ever move
// forward through this list, one step at a time.
var sectionOrder = []Section{
	SectionGreeting,
	SectionDemographics,
	SectionVisitReason,
	SectionMedicalHistory,
	SectionMedications,
	SectionAllergies,
	SectionConfirmation,
	SectionComplete,
}

// Sections returns the interview sequence in order.
func Sections() []Section {
	out := make([]Section, len(sectionOrder))
	copy(out, sectionOrder)
	return out
}

// Valid reports whether s is one of the known sections.
func (s Section) Valid() bool {
	return s.index() >= 0
}

func (s Section) index() int {
	for i, sec := range sectionOrder {
		if sec == s {
			return i
		}
	}
	return -1
}

// Next returns the section that follows s in the fixed order. Complete is
// terminal and returns itself; unknown sections also return themselves.
func (s Section) Next() Section {
	i := s.index()
	if i < 0 || i >= len(sectionOrder)-1 {
		return s
	}
	return sectionOrder[i+1]
}

// Extractable reports whether field extraction runs for s. Only the data
// collection sections (Demographics through Allergies) are extractable;
// Greeting, Confirmation, and Complete always skip extraction.
func (s Section) Extractable() bool {
	i := s.index()
	lo := SectionDemographics.index()
	hi := SectionAllergies.index()
	return i >= lo && i <= hi
}
