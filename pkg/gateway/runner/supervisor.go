// Package runner owns the background bot task that drives a voice
// session: join the room, greet, answer each utterance, and close out
// the record when the conversation ends.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/medvoice-ai/medvoice/pkg/core/intake"
	"github.com/medvoice-ai/medvoice/pkg/core/voice"
	"github.com/medvoice-ai/medvoice/pkg/gateway/registry"
)

// DefaultSessionTimeout caps a single bot conversation.
const DefaultSessionTimeout = 10 * time.Minute

// batchExtractTimeout bounds the end-of-conversation extraction pass,
// which runs on its own context because the session context may already
// be expired by then.
const batchExtractTimeout = 30 * time.Second

type Config struct {
	Logger   *slog.Logger
	Registry *registry.Registry

	// Bridge connects to voice rooms. Nil means voice is not configured
	// and Start always refuses.
	Bridge voice.Bridge

	// RecordExtractor runs the batch transcript pass after a conversation
	// ends. Nil skips the pass.
	RecordExtractor intake.RecordExtractor

	SessionTimeout time.Duration
}

// Supervisor tracks one running task per voice session and tears them
// down as a group on shutdown.
type Supervisor struct {
	cfg Config

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

type task struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
}

func New(cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	return &Supervisor{
		cfg:   cfg,
		tasks: make(map[string]*task),
	}
}

// Start launches the bot task for a session. It reports false without
// side effects when voice is unconfigured, the session is unknown, or a
// task is already running for it.
func (s *Supervisor) Start(sessionID, roomURL string) bool {
	if s.cfg.Bridge == nil {
		s.cfg.Logger.Warn("voice bridge not configured, session runs without a bot", "session_id", sessionID)
		return false
	}
	sess, ok := s.cfg.Registry.Get(sessionID)
	if !ok {
		s.cfg.Logger.Warn("voice task requested for unknown session", "session_id", sessionID)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{sessionID: sessionID, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if _, exists := s.tasks[sessionID]; exists {
		s.mu.Unlock()
		cancel()
		s.cfg.Logger.Warn("voice task already running", "session_id", sessionID)
		return false
	}
	s.tasks[sessionID] = t
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, t, sess, roomURL)
	return true
}

func (s *Supervisor) run(ctx context.Context, t *task, sess registry.Session, roomURL string) {
	defer close(t.done)
	defer s.unregister(t)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.SessionTimeout)
	defer cancel()

	s.cfg.Logger.Info("voice task started", "session_id", t.sessionID, "room_url", roomURL)

	err := s.converse(runCtx, sess, roomURL)

	timedOut := runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	switch {
	case ctx.Err() != nil:
		s.cfg.Logger.Info("voice task stopped", "session_id", t.sessionID)
		s.mark(t.sessionID, intake.SessionAbandoned)
	case err != nil && !timedOut:
		s.cfg.Logger.Error("voice task failed", "session_id", t.sessionID, "error", err)
		s.mark(t.sessionID, intake.SessionAbandoned)
	default:
		// Normal end of conversation. A timeout lands here too: the
		// session completes with whatever was collected.
		s.finalize(sess)
		s.cfg.Logger.Info("voice task completed", "session_id", t.sessionID, "timed_out", timedOut)
	}
}

// converse runs the event loop against the room. A nil return means the
// conversation ended without a transport failure; the caller classifies
// cancellation and timeout.
func (s *Supervisor) converse(ctx context.Context, sess registry.Session, roomURL string) error {
	conn, err := s.cfg.Bridge.Join(ctx, roomURL)
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	defer func() { _ = conn.Leave() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-conn.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case voice.EventJoined:
				greeting, _ := sess.Interview.Greeting()
				if err := conn.Say(ctx, greeting); err != nil {
					return fmt.Errorf("say greeting: %w", err)
				}
			case voice.EventUtterance:
				if strings.TrimSpace(ev.Text) == "" {
					continue
				}
				sess.TurnMu.Lock()
				reply, err := sess.Interview.ProcessMessage(ctx, ev.Text)
				sess.TurnMu.Unlock()
				if err != nil {
					s.cfg.Logger.Error("turn failed", "session_id", sess.ID, "error", err)
					continue
				}
				if err := conn.Say(ctx, reply); err != nil {
					return fmt.Errorf("say reply: %w", err)
				}
				if sess.Interview.IsComplete() {
					if err := conn.Say(ctx, intake.ClosingText); err != nil {
						return fmt.Errorf("say closing: %w", err)
					}
					return nil
				}
			case voice.EventLeft:
				return nil
			}
		}
	}
}

// finalize runs the batch transcript pass and marks the session complete.
func (s *Supervisor) finalize(sess registry.Session) {
	turns := sess.Interview.Turns()
	if len(turns) > 0 && s.cfg.RecordExtractor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), batchExtractTimeout)
		rec, err := s.cfg.RecordExtractor.ExtractRecord(ctx, turns)
		cancel()
		if err != nil {
			s.cfg.Logger.Warn("batch record extraction failed", "session_id", sess.ID, "error", err)
		} else {
			sess.Interview.AbsorbRecord(rec)
		}
	}
	s.mark(sess.ID, intake.SessionComplete)
}

func (s *Supervisor) mark(sessionID string, status intake.SessionStatus) {
	s.cfg.Registry.Update(sessionID, registry.Patch{Status: &status})
}

func (s *Supervisor) unregister(t *task) {
	t.once.Do(func() {
		s.mu.Lock()
		if s.tasks[t.sessionID] == t {
			delete(s.tasks, t.sessionID)
		}
		s.mu.Unlock()
		s.wg.Done()
	})
}

// Stop cancels the session's task and waits for it to finish. It reports
// false when no task is running for the id.
func (s *Supervisor) Stop(sessionID string) bool {
	s.mu.Lock()
	t := s.tasks[sessionID]
	s.mu.Unlock()
	if t == nil {
		return false
	}
	t.cancel()
	<-t.done
	return true
}

// StopAll cancels every running task without waiting. Pair with Wait.
func (s *Supervisor) StopAll() int {
	s.mu.Lock()
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	return len(tasks)
}

// Wait blocks until every task finished or ctx expires.
func (s *Supervisor) Wait(ctx context.Context) bool {
	if ctx == nil {
		s.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
