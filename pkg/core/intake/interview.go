package intake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// GreetingText opens every interview and asks the first demographics
// question.
const GreetingText = "Hi! I'm MedVoice, your virtual intake assistant. " +
	"I'll ask you a few questions to prepare for your visit today. " +
	"This should take about 3 to 4 minutes. Let's start - what's your full name?"

// ClosingText is spoken on the voice channel once the intake is complete.
const ClosingText = "Your intake is complete. Please check in at the front desk."

// DefaultHistoryWindow is how many recent turns the response generator sees.
const DefaultHistoryWindow = 10

// Extractor turns free patient text into a field map for the active
// section. A failed or malformed extraction must never fail the turn; the
// interview substitutes an empty map and keeps going.
type Extractor interface {
	Extract(ctx context.Context, text string, section Section) (FieldMap, error)
}

// Responder produces the next agent utterance from the patient's text, the
// post-advance section, a read-only record snapshot, and recent history.
type Responder interface {
	Respond(ctx context.Context, userText string, section Section, record Record, history []Turn) (string, error)
}

// RecordExtractor extracts a full intake record from a finished transcript
// in one batch pass.
type RecordExtractor interface {
	ExtractRecord(ctx context.Context, turns []Turn) (*Record, error)
}

// Config wires an Interview's collaborators.
type Config struct {
	SessionID string
	Extractor Extractor
	Responder Responder

	Logger *slog.Logger
	// Now is the clock used for turn stamps and duration; nil means time.Now.
	Now func() time.Time
	// HistoryWindow caps the turns passed to the Responder; 0 means
	// DefaultHistoryWindow.
	HistoryWindow int
}

// Interview drives one intake conversation: it owns the record, the turn
// ledger, and the section cursor, and orchestrates extraction and response
// generation around each patient message.
//
// Callers must serialize ProcessMessage per session. The internal mutex
// only protects snapshot readers running concurrently with a turn; it is
// never held across a collaborator call.
type Interview struct {
	sessionID     string
	extractor     Extractor
	responder     Responder
	logger        *slog.Logger
	now           func() time.Time
	historyWindow int
	startedAt     time.Time

	mu      sync.Mutex
	section Section
	record  *Record
	ledger  *Ledger
}

// NewInterview creates an interview positioned at Greeting with an empty
// record and ledger.
func NewInterview(cfg Config) *Interview {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	startedAt := cfg.Now()
	return &Interview{
		sessionID:     cfg.SessionID,
		extractor:     cfg.Extractor,
		responder:     cfg.Responder,
		logger:        cfg.Logger,
		now:           cfg.Now,
		historyWindow: cfg.HistoryWindow,
		startedAt:     startedAt,
		section:       SectionGreeting,
		record:        NewRecord(cfg.SessionID, startedAt),
		ledger:        NewLedger(cfg.Now),
	}
}

// SessionID returns the owning session identifier.
func (iv *Interview) SessionID() string {
	return iv.sessionID
}

// Greeting appends the fixed greeting as an agent turn and moves the
// interview from Greeting to Demographics. The transition is guarded:
// calling Greeting again appends another greeting turn but never moves the
// section and never touches sections_completed.
func (iv *Interview) Greeting() (string, Section) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.ledger.Append(SpeakerAgent, GreetingText, iv.section)
	if iv.section == SectionGreeting {
		iv.section = SectionGreeting.Next()
	}
	return GreetingText, iv.section
}

// ProcessMessage runs one full turn: append the patient turn, extract and
// merge fields for extractable sections, advance the section when its
// predicate holds, generate the reply, and append the agent turn.
//
// Extraction failures are logged and treated as empty results. A response
// generation failure propagates and leaves no agent turn behind.
func (iv *Interview) ProcessMessage(ctx context.Context, text string) (string, error) {
	iv.mu.Lock()
	section := iv.section
	iv.ledger.Append(SpeakerPatient, text, section)
	iv.mu.Unlock()

	if section.Extractable() {
		fields, err := iv.extractor.Extract(ctx, text, section)
		if err != nil {
			iv.logger.Warn("extraction failed, continuing with empty fields",
				"session_id", iv.sessionID,
				"section", string(section),
				"error", err,
			)
			fields = nil
		}
		if len(fields) > 0 {
			iv.mu.Lock()
			iv.ledger.RecordExtraction(fields)
			iv.record.ApplyExtraction(section, fields)
			iv.mu.Unlock()
		}
	}

	iv.mu.Lock()
	if ShouldAdvance(iv.section, iv.record, iv.ledger.CountInSection(iv.section), text) {
		iv.advanceLocked()
	}
	replySection := iv.section
	recordView := iv.snapshotLocked()
	history := iv.ledger.Recent(iv.historyWindow)
	iv.mu.Unlock()

	reply, err := iv.responder.Respond(ctx, text, replySection, recordView, history)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	iv.mu.Lock()
	iv.ledger.Append(SpeakerAgent, reply, iv.section)
	iv.mu.Unlock()
	return reply, nil
}

// advanceLocked takes the single forward transition and does the
// bookkeeping. Caller holds mu.
func (iv *Interview) advanceLocked() {
	next := iv.section.Next()
	if next == iv.section {
		return
	}
	iv.logger.Info("section advanced",
		"session_id", iv.sessionID,
		"from", string(iv.section),
		"to", string(next),
	)
	iv.section = next
	iv.record.Metadata.SectionsCompleted++
	if next == SectionComplete {
		iv.record.Status = RecordComplete
	}
}

// IsComplete reports whether the interview reached the terminal section.
func (iv *Interview) IsComplete() bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.section == SectionComplete
}

// CurrentSection returns the active section.
func (iv *Interview) CurrentSection() Section {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.section
}

// Turns returns a copy of the transcript so far.
func (iv *Interview) Turns() []Turn {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.ledger.Turns()
}

// RecordSnapshot returns a deep copy of the intake record with
// duration_seconds recomputed from the session start.
func (iv *Interview) RecordSnapshot() Record {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.snapshotLocked()
}

func (iv *Interview) snapshotLocked() Record {
	rec := iv.record.Clone()
	rec.Metadata.DurationSeconds = iv.now().Sub(iv.startedAt).Seconds()
	return *rec
}

// AbsorbRecord folds a batch-extracted record into the live one. Nil input
// is a no-op.
func (iv *Interview) AbsorbRecord(other *Record) {
	if other == nil {
		return
	}
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.record.Absorb(other)
}

// SetRecordStatus overrides the record's lifecycle status. The registry
// uses it to mirror session status changes onto the intake record.
func (iv *Interview) SetRecordStatus(status RecordStatus) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.record.Status = status
}
