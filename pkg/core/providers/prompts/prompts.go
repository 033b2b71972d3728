// Package prompts builds the model prompts for intake conversations and
// parses model output back into intake types. Both providers share it so
// switching providers never changes conversation behavior.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/medvoice-ai/medvoice/pkg/core/intake"
)

// Sampling and budget defaults for the two call shapes.
const (
	ResponseTemperature   = 0.7
	ExtractionTemperature = 0.1

	DefaultResponseMaxTokens  = 200
	RecordExtractionMaxTokens = 2000
)

// sectionSchemas describe the JSON shape the extraction oracle should
// return per section.
var sectionSchemas = map[intake.Section]string{
	intake.SectionDemographics:   `{"full_name": "string or null", "date_of_birth": "YYYY-MM-DD or null", "phone": "string or null", "email": "string or null"}`,
	intake.SectionVisitReason:    `{"chief_complaint": "string or null", "symptoms": ["list of symptoms"], "duration": "string or null", "severity": "1-10 or null"}`,
	intake.SectionMedicalHistory: `{"chronic_conditions": ["list"], "surgeries": ["list"], "hospitalizations": ["list"]}`,
	intake.SectionMedications:    `{"medications": [{"name": "string", "dosage": "string or null"}]}`,
	intake.SectionAllergies:      `{"drug_allergies": ["list"], "food_allergies": ["list"], "reactions": "string or null"}`,
}

// System builds the system prompt for response generation: the assistant
// persona, the active section, and the data collected so far.
func System(section intake.Section, record intake.Record) string {
	return fmt.Sprintf(`You are MedVoice, a friendly and professional AI medical intake assistant.

Current intake section: %s
Data collected so far: %s

Guidelines:
- Be warm, empathetic, and professional
- Ask one question at a time
- Confirm critical information (especially allergies)
- Keep responses concise (1-2 sentences)
- If the patient says something unclear, ask for clarification
- Never provide medical advice

Your task is to continue the intake conversation naturally.`, section, collectedData(record))
}

// collectedData renders the record's collected fields as JSON, leaving out
// session identity and bookkeeping.
func collectedData(record intake.Record) string {
	view := struct {
		Demographics   intake.Demographics   `json:"demographics"`
		Visit          intake.Visit          `json:"visit"`
		MedicalHistory intake.MedicalHistory `json:"medical_history"`
		Medications    []intake.Medication   `json:"medications"`
		Allergies      intake.Allergies      `json:"allergies"`
	}{
		Demographics:   record.Demographics,
		Visit:          record.Visit,
		MedicalHistory: record.MedicalHistory,
		Medications:    record.Medications,
		Allergies:      record.Allergies,
	}
	data, err := json.Marshal(view)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Extraction builds the per-turn extraction prompt for the active section.
func Extraction(section intake.Section, userText string) string {
	schema, ok := sectionSchemas[section]
	if !ok {
		schema = "{}"
	}
	return fmt.Sprintf(`Extract structured data from the patient's response.

Current section: %s
Patient said: %q

Return a JSON object with these fields (use null for missing values):
%s

Only include fields that were explicitly mentioned. Return valid JSON only.`, section, userText, schema)
}

// RecordExtraction builds the end-of-conversation batch extraction prompt
// over the full transcript.
func RecordExtraction(turns []intake.Turn) string {
	return `Extract medical intake information from this conversation.
Return a JSON object with the following structure (use null for missing fields):

{
  "demographics": {
    "full_name": "string or null",
    "date_of_birth": "YYYY-MM-DD or null",
    "phone": "string or null",
    "email": "string or null"
  },
  "visit": {
    "chief_complaint": "main reason for visit or null",
    "symptoms": ["list", "of", "symptoms"],
    "duration": "how long symptoms lasted or null",
    "severity": 1-10 or null
  },
  "medical_history": {
    "chronic_conditions": ["diabetes", "hypertension", etc.],
    "surgeries": ["past surgeries"],
    "hospitalizations": ["past hospitalizations"]
  },
  "medications": [
    {"name": "medication name", "dosage": "dosage or null"}
  ],
  "allergies": {
    "drug_allergies": ["penicillin", etc.],
    "food_allergies": ["peanuts", etc.],
    "reactions": "description of reactions or null"
  }
}

Only include information explicitly mentioned in the conversation.
Return valid JSON only, no markdown or explanations.

CONVERSATION:
` + Transcript(turns)
}

// Transcript renders turns as labeled lines for the batch prompt.
func Transcript(turns []intake.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		switch turn.Speaker {
		case intake.SpeakerPatient:
			lines = append(lines, "Patient: "+turn.Text)
		case intake.SpeakerAgent:
			lines = append(lines, "Assistant: "+turn.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// Role tags a history message in provider-neutral form.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation history entry ready for a provider to map
// onto its SDK types.
type Message struct {
	Role Role
	Text string
}

// History maps ledger turns to provider-neutral messages.
func History(turns []intake.Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, turn := range turns {
		role := RoleUser
		if turn.Speaker == intake.SpeakerAgent {
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Text: turn.Text})
	}
	return out
}

// StripCodeFence removes a wrapping markdown code fence, which models emit
// even when told not to.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ParseFieldMap decodes a per-turn extraction reply into a field map.
func ParseFieldMap(raw string) (intake.FieldMap, error) {
	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return intake.FieldMap{}, nil
	}
	var fields intake.FieldMap
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("parse extraction result: %w", err)
	}
	if fields == nil {
		fields = intake.FieldMap{}
	}
	return fields, nil
}

// ParseRecord decodes a batch extraction reply into an intake record,
// applying the same per-section coercion rules as live extraction.
func ParseRecord(raw string) (*intake.Record, error) {
	cleaned := StripCodeFence(raw)
	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("parse record extraction result: %w", err)
	}

	rec := intake.NewRecord("", time.Now().UTC())
	rec.Status = intake.RecordComplete

	if demo, ok := payload["demographics"].(map[string]any); ok {
		rec.ApplyExtraction(intake.SectionDemographics, intake.FieldMap(demo))
	}
	if visit, ok := payload["visit"].(map[string]any); ok {
		rec.ApplyExtraction(intake.SectionVisitReason, intake.FieldMap(visit))
	}
	if history, ok := payload["medical_history"].(map[string]any); ok {
		rec.ApplyExtraction(intake.SectionMedicalHistory, intake.FieldMap(history))
	}
	if meds, ok := payload["medications"].([]any); ok {
		rec.ApplyExtraction(intake.SectionMedications, intake.FieldMap{"medications": meds})
	}
	if allergies, ok := payload["allergies"].(map[string]any); ok {
		rec.ApplyExtraction(intake.SectionAllergies, intake.FieldMap(allergies))
	}
	return rec, nil
}
