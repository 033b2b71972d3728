package intake

import (
	"encoding/json"
	"strings"
)

// FieldMap is a partial extraction result: field name to decoded JSON value.
// Absent keys mean "do not touch".
type FieldMap map[string]any

// ApplyExtraction folds extracted fields into the record for the given
// section. Scalars overwrite only when the extracted value is non-empty;
// lists grow and never shrink. Sections outside Demographics..Allergies are
// a no-op.
func (r *Record) ApplyExtraction(section Section, fields FieldMap) {
	if len(fields) == 0 {
		return
	}
	switch section {
	case SectionDemographics:
		setString(&r.Demographics.FullName, fields, "full_name")
		setString(&r.Demographics.DateOfBirth, fields, "date_of_birth")
		setString(&r.Demographics.Phone, fields, "phone")
		setString(&r.Demographics.Email, fields, "email")
	case SectionVisitReason:
		setString(&r.Visit.ChiefComplaint, fields, "chief_complaint")
		r.Visit.Symptoms = append(r.Visit.Symptoms, stringList(fields, "symptoms")...)
		setString(&r.Visit.Duration, fields, "duration")
		if sev, ok := severityValue(fields, "severity"); ok {
			r.Visit.Severity = sev
		}
	case SectionMedicalHistory:
		r.MedicalHistory.ChronicConditions = append(r.MedicalHistory.ChronicConditions, stringList(fields, "chronic_conditions")...)
		r.MedicalHistory.Surgeries = append(r.MedicalHistory.Surgeries, stringList(fields, "surgeries")...)
		r.MedicalHistory.Hospitalizations = append(r.MedicalHistory.Hospitalizations, stringList(fields, "hospitalizations")...)
	case SectionMedications:
		r.Medications = append(r.Medications, medicationList(fields, "medications")...)
	case SectionAllergies:
		r.Allergies.DrugAllergies = append(r.Allergies.DrugAllergies, stringList(fields, "drug_allergies")...)
		r.Allergies.FoodAllergies = append(r.Allergies.FoodAllergies, stringList(fields, "food_allergies")...)
		setString(&r.Allergies.Reactions, fields, "reactions")
	}
}

// Absorb folds another record's collected data into r with merge semantics:
// non-empty scalars overwrite, lists append. Status, timestamps, and
// metadata are left alone. Used to fold a batch-extracted record into the
// live one at end of conversation.
func (r *Record) Absorb(other *Record) {
	if other == nil {
		return
	}
	overwrite(&r.Demographics.FullName, other.Demographics.FullName)
	overwrite(&r.Demographics.DateOfBirth, other.Demographics.DateOfBirth)
	overwrite(&r.Demographics.Phone, other.Demographics.Phone)
	overwrite(&r.Demographics.Email, other.Demographics.Email)

	overwrite(&r.Visit.ChiefComplaint, other.Visit.ChiefComplaint)
	r.Visit.Symptoms = append(r.Visit.Symptoms, other.Visit.Symptoms...)
	overwrite(&r.Visit.Duration, other.Visit.Duration)
	if other.Visit.Severity >= 1 && other.Visit.Severity <= 10 {
		r.Visit.Severity = other.Visit.Severity
	}

	r.MedicalHistory.ChronicConditions = append(r.MedicalHistory.ChronicConditions, other.MedicalHistory.ChronicConditions...)
	r.MedicalHistory.Surgeries = append(r.MedicalHistory.Surgeries, other.MedicalHistory.Surgeries...)
	r.MedicalHistory.Hospitalizations = append(r.MedicalHistory.Hospitalizations, other.MedicalHistory.Hospitalizations...)

	for _, med := range other.Medications {
		if strings.TrimSpace(med.Name) == "" {
			continue
		}
		r.Medications = append(r.Medications, med)
	}

	r.Allergies.DrugAllergies = append(r.Allergies.DrugAllergies, other.Allergies.DrugAllergies...)
	r.Allergies.FoodAllergies = append(r.Allergies.FoodAllergies, other.Allergies.FoodAllergies...)
	overwrite(&r.Allergies.Reactions, other.Allergies.Reactions)
}

func overwrite(dst *string, value string) {
	value = strings.TrimSpace(value)
	if value != "" {
		*dst = value
	}
}

func setString(dst *string, fields FieldMap, key string) {
	value, ok := fields[key]
	if !ok {
		return
	}
	s, ok := value.(string)
	if !ok {
		return
	}
	overwrite(dst, s)
}

// stringList coerces fields[key] to a list of non-blank trimmed strings.
// Handles both decoded JSON ([]any) and native []string values.
func stringList(fields FieldMap, key string) []string {
	value, ok := fields[key]
	if !ok || value == nil {
		return nil
	}
	var out []string
	appendItem := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	switch list := value.(type) {
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok {
				appendItem(s)
			}
		}
	case []string:
		for _, s := range list {
			appendItem(s)
		}
	}
	return out
}

// severityValue coerces fields[key] to an int and validates the 1-10 range.
// Out-of-range or non-numeric values are ignored.
func severityValue(fields FieldMap, key string) (int, bool) {
	value, ok := fields[key]
	if !ok || value == nil {
		return 0, false
	}
	var sev int
	switch v := value.(type) {
	case float64:
		sev = int(v)
	case int:
		sev = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		sev = int(f)
	default:
		return 0, false
	}
	if sev < 1 || sev > 10 {
		return 0, false
	}
	return sev, true
}

// medicationList coerces fields[key] to medication entries. Items without a
// non-empty name are dropped.
func medicationList(fields FieldMap, key string) []Medication {
	value, ok := fields[key]
	if !ok || value == nil {
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var out []Medication
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		dosage, _ := entry["dosage"].(string)
		out = append(out, Medication{Name: name, Dosage: strings.TrimSpace(dosage)})
	}
	return out
}
