package intake

import (
	"time"
)

// Speaker tags who produced a turn.
type Speaker string

const (
	SpeakerPatient Speaker = "patient"
	SpeakerAgent   Speaker = "agent"
)

// Turn is one utterance in the transcript. Turns are immutable once
// appended, except that the raw extraction payload of the latest patient
// turn may be filled in once after the oracle call returns.
type Turn struct {
	TurnID    int       `json:"turn_id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	State     Section   `json:"state"`
	Extracted FieldMap  `json:"extracted,omitempty"`
}

// Ledger is the append-only transcript of one session. Not safe for
// concurrent use; the owning Interview serializes access.
type Ledger struct {
	turns []Turn
	now   func() time.Time
}

// NewLedger creates an empty ledger. A nil clock defaults to time.Now.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// Append records a turn with the next sequential number and a UTC stamp.
func (l *Ledger) Append(speaker Speaker, text string, section Section) Turn {
	turn := Turn{
		TurnID:    len(l.turns) + 1,
		Speaker:   speaker,
		Text:      text,
		Timestamp: l.now().UTC(),
		State:     section,
	}
	l.turns = append(l.turns, turn)
	return turn
}

// RecordExtraction attaches the raw extraction payload to the most recent
// turn. It only fires once per turn and only for patient turns; anything
// else is a no-op.
func (l *Ledger) RecordExtraction(fields FieldMap) {
	if len(l.turns) == 0 || len(fields) == 0 {
		return
	}
	last := &l.turns[len(l.turns)-1]
	if last.Speaker != SpeakerPatient || last.Extracted != nil {
		return
	}
	last.Extracted = fields
}

// Len returns the number of turns recorded.
func (l *Ledger) Len() int {
	return len(l.turns)
}

// CountInSection returns how many turns were recorded while section was
// active.
func (l *Ledger) CountInSection(section Section) int {
	n := 0
	for _, turn := range l.turns {
		if turn.State == section {
			n++
		}
	}
	return n
}

// Recent returns a copy of the last n turns (all of them when n exceeds
// the ledger length).
func (l *Ledger) Recent(n int) []Turn {
	if n <= 0 {
		return []Turn{}
	}
	start := len(l.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(l.turns)-start)
	copy(out, l.turns[start:])
	return out
}

// Turns returns a copy of the full ordered transcript.
func (l *Ledger) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}
