// Package voice defines the boundary between the intake core and the
// real-time audio stack. The gateway only ever sees transcribed text and
// join/leave lifecycle events; audio capture, VAD, STT, and TTS all live
// on the far side of these interfaces.
package voice

import (
	"context"
)

// EventKind tags a pipeline event.
type EventKind string

const (
	// EventJoined fires once the patient is present in the room.
	EventJoined EventKind = "joined"
	// EventUtterance carries one transcribed patient utterance.
	EventUtterance EventKind = "utterance"
	// EventLeft fires when the patient leaves the room.
	EventLeft EventKind = "left"
)

// Event is one lifecycle or transcription event from the pipeline.
type Event struct {
	Kind EventKind
	// Text is the transcribed utterance for EventUtterance, empty otherwise.
	Text string
}

// Conn is one live connection to a voice room.
type Conn interface {
	// Events streams pipeline events in arrival order. The channel closes
	// when the connection ends, however that happens.
	Events() <-chan Event
	// Say synthesizes and speaks text into the room.
	Say(ctx context.Context, text string) error
	// Leave disconnects from the room. Safe to call more than once.
	Leave() error
}

// Bridge joins voice rooms and hands back live connections.
type Bridge interface {
	Join(ctx context.Context, roomURL string) (Conn, error)
}
