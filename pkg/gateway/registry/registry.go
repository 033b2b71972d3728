// Package registry is the in-memory session store. Every session the
// gateway knows about lives here; nothing survives a restart.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medvoice-ai/medvoice/pkg/core/intake"
)

type Config struct {
	Logger *slog.Logger
	Now    func() time.Time

	// NewInterview builds the conversation state for a fresh session id.
	// Must be set.
	NewInterview func(sessionID string) *intake.Interview
}

type Registry struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	id        string
	status    intake.SessionStatus
	roomURL   string
	token     string
	createdAt time.Time
	updatedAt time.Time
	interview *intake.Interview
	turnMu    sync.Mutex
}

// Session is a point-in-time view of a stored session. Interview and
// TurnMu reference live shared state; everything else is a copy.
type Session struct {
	ID        string
	Status    intake.SessionStatus
	RoomURL   string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time

	Interview *intake.Interview
	// TurnMu serializes ProcessMessage across the chat, live socket, and
	// voice paths of one session.
	TurnMu *sync.Mutex
}

// Patch carries the mutable fields of Update. Nil fields are left as is.
type Patch struct {
	Status *intake.SessionStatus
}

func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*entry),
	}
}

// Create stores a fresh active session and returns its view. roomURL and
// token are empty for chat-only sessions.
func (r *Registry) Create(roomURL, token string) Session {
	id := uuid.NewString()
	now := r.cfg.Now().UTC()
	e := &entry{
		id:        id,
		status:    intake.SessionActive,
		roomURL:   roomURL,
		token:     token,
		createdAt: now,
		updatedAt: now,
		interview: r.cfg.NewInterview(id),
	}

	r.mu.Lock()
	r.sessions[id] = e
	s := view(e)
	r.mu.Unlock()

	r.cfg.Logger.Info("session created", "session_id", id, "voice", roomURL != "")
	return derive(s)
}

func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	var s Session
	if ok {
		s = view(e)
	}
	r.mu.Unlock()
	if !ok {
		return Session{}, false
	}
	return derive(s), true
}

// Update applies the patch and refreshes updated_at. Status changes are
// mirrored onto the intake record so results reflect the session lifecycle.
func (r *Registry) Update(id string, p Patch) (Session, bool) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return Session{}, false
	}
	if p.Status != nil {
		e.status = *p.Status
	}
	e.updatedAt = r.cfg.Now().UTC()
	s := view(e)
	r.mu.Unlock()

	if p.Status != nil {
		switch *p.Status {
		case intake.SessionComplete:
			s.Interview.SetRecordStatus(intake.RecordComplete)
		case intake.SessionAbandoned:
			s.Interview.SetRecordStatus(intake.RecordAbandoned)
		case intake.SessionActive:
			s.Interview.SetRecordStatus(intake.RecordInProgress)
		}
	}
	return derive(s), true
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if ok {
		r.cfg.Logger.Info("session deleted", "session_id", id)
	}
	return ok
}

// CleanupAll drops every session and reports how many were dropped.
func (r *Registry) CleanupAll() int {
	r.mu.Lock()
	n := len(r.sessions)
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()
	if n > 0 {
		r.cfg.Logger.Info("sessions cleared", "count", n)
	}
	return n
}

// ListActive returns views of sessions whose stored status is active.
func (r *Registry) ListActive() []Session {
	r.mu.Lock()
	out := make([]Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.status != intake.SessionActive {
			continue
		}
		out = append(out, view(e))
	}
	r.mu.Unlock()

	for i := range out {
		out[i] = derive(out[i])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// view copies the entry while r.mu is held.
func view(e *entry) Session {
	return Session{
		ID:        e.id,
		Status:    e.status,
		RoomURL:   e.roomURL,
		Token:     e.token,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
		Interview: e.interview,
		TurnMu:    &e.turnMu,
	}
}

// derive runs outside r.mu: IsComplete takes the interview's own lock.
// An active session whose interview reached the terminal section reports
// complete even before anyone patched the stored status.
func derive(s Session) Session {
	if s.Status == intake.SessionActive && s.Interview.IsComplete() {
		s.Status = intake.SessionComplete
	}
	return s
}
