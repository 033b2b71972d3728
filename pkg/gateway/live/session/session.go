// Package session runs one live intake socket. A single reader and a
// single writer goroutine sit on either side of the interview turn
// pipeline; every outbound frame flows through one queue so writes never
// interleave.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/medvoice-ai/medvoice/pkg/core/intake"
	"github.com/medvoice-ai/medvoice/pkg/gateway/live/protocol"
	"github.com/medvoice-ai/medvoice/pkg/gateway/registry"
)

const (
	defaultOutboundQueueSize = 32
	defaultPingInterval      = 20 * time.Second
	defaultWriteTimeout      = 5 * time.Second
)

type Config struct {
	MaxMessageBytes int64
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	// ReadTimeout is the idle cutoff, refreshed by pong frames. Zero
	// means three ping intervals.
	ReadTimeout        time.Duration
	MaxSessionDuration time.Duration
	OutboundQueueSize  int
}

type Dependencies struct {
	Conn    *websocket.Conn
	Logger  *slog.Logger
	Session registry.Session
	// OnComplete fires once, when the interview reaches the terminal
	// section over this socket.
	OnComplete func()
	Config     Config
}

type LiveSession struct {
	conn       *websocket.Conn
	logger     *slog.Logger
	sess       registry.Session
	onComplete func()
	cfg        Config

	ctx    context.Context
	cancel context.CancelFunc

	outbound chan []byte
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Session.Interview == nil || deps.Session.TurnMu == nil {
		return nil, fmt.Errorf("session interview is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = defaultOutboundQueueSize
	}
	if deps.Config.PingInterval <= 0 {
		deps.Config.PingInterval = defaultPingInterval
	}
	if deps.Config.WriteTimeout <= 0 {
		deps.Config.WriteTimeout = defaultWriteTimeout
	}
	if deps.Config.ReadTimeout <= 0 {
		deps.Config.ReadTimeout = 3 * deps.Config.PingInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LiveSession{
		conn:       deps.Conn,
		logger:     deps.Logger,
		sess:       deps.Session,
		onComplete: deps.OnComplete,
		cfg:        deps.Config,
		ctx:        ctx,
		cancel:     cancel,
		outbound:   make(chan []byte, deps.Config.OutboundQueueSize),
	}, nil
}

// Cancel stops the session from outside. The writer flushes queued frames
// and sends a close message before the connection goes down.
func (s *LiveSession) Cancel() { s.cancel() }

// SendWarning queues a non-closing error frame. The tracker uses it to
// announce a draining gateway.
func (s *LiveSession) SendWarning(code, message string) error {
	return s.sendJSON(protocol.ServerError{Type: "error", Code: code, Message: message})
}

// Run drives the socket until the client leaves, the session times out, or
// the connection fails. The greeting goes out first, then every decoded
// user_message runs one interview turn.
func (s *LiveSession) Run() error {
	defer s.cancel()

	if s.cfg.MaxMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	readCh := make(chan inboundFrame, 8)
	writerErrCh := make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{ws: s.conn, ctx: s.ctx, cfg: s.cfg, frames: s.outbound}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	var sessionTimer *time.Timer
	if s.cfg.MaxSessionDuration > 0 {
		sessionTimer = time.NewTimer(s.cfg.MaxSessionDuration)
		defer sessionTimer.Stop()
	}
	sessionTimerCh := func() <-chan time.Time {
		if sessionTimer == nil {
			return nil
		}
		return sessionTimer.C
	}

	greeting, section := s.sess.Interview.Greeting()
	if err := s.sendJSON(protocol.ServerAgentMessage{
		Type:       "agent_message",
		Text:       greeting,
		State:      string(section),
		IsComplete: section == intake.SectionComplete,
	}); err != nil {
		return err
	}

	intakeCompleteSent := false

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case err := <-writerErrCh:
			return err
		case <-sessionTimerCh():
			_ = s.sendJSON(protocol.ServerError{Type: "error", Code: "session_timeout", Message: "maximum session duration reached", Close: true})
			return nil
		case frame, ok := <-readCh:
			if !ok || frame.err != nil {
				return nil
			}
			if frame.messageType != websocket.TextMessage {
				if err := s.sendJSON(protocol.ServerError{Type: "error", Code: "bad_request", Message: "only text frames are supported"}); err != nil {
					return err
				}
				continue
			}

			msg, decErr := protocol.DecodeClientMessage(frame.data)
			if decErr != nil {
				code := "bad_request"
				if de, ok := decErr.(*protocol.DecodeError); ok {
					code = de.Code
				}
				if err := s.sendJSON(protocol.ServerError{Type: "error", Code: code, Message: decErr.Error()}); err != nil {
					return err
				}
				continue
			}

			switch m := msg.(type) {
			case protocol.ClientUserMessage:
				reply, err := s.processTurn(m.Text)
				if err != nil {
					s.logger.Error("live turn failed", "session_id", s.sess.ID, "error", err)
					if err := s.sendJSON(protocol.ServerError{Type: "error", Code: "provider_error", Message: "failed to generate a reply, please try again"}); err != nil {
						return err
					}
					continue
				}
				complete := s.sess.Interview.IsComplete()
				if err := s.sendJSON(protocol.ServerAgentMessage{
					Type:       "agent_message",
					Text:       reply,
					State:      string(s.sess.Interview.CurrentSection()),
					IsComplete: complete,
				}); err != nil {
					return err
				}
				if complete && !intakeCompleteSent {
					intakeCompleteSent = true
					if err := s.sendJSON(protocol.ServerIntakeComplete{Type: "intake_complete", Record: s.sess.Interview.RecordSnapshot()}); err != nil {
						return err
					}
					if s.onComplete != nil {
						s.onComplete()
					}
				}
			case protocol.ClientControl:
				// end_session is the only op the decoder lets through.
				s.logger.Info("live session ended by client", "session_id", s.sess.ID)
				return nil
			}
		}
	}
}

// processTurn serializes with the chat and voice paths of the same session.
func (s *LiveSession) processTurn(text string) (string, error) {
	s.sess.TurnMu.Lock()
	defer s.sess.TurnMu.Unlock()
	return s.sess.Interview.ProcessMessage(s.ctx, text)
}

func (s *LiveSession) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LiveSession) sendJSON(v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.outbound <- blob:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}
