package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordedWrite struct {
	messageType int
	data        string
}

type fakeWSWriter struct {
	mu     sync.Mutex
	writes []recordedWrite
	closed bool
}

func (f *fakeWSWriter) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWSWriter) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, recordedWrite{messageType: messageType, data: string(data)})
	return nil
}

func (f *fakeWSWriter) WriteControl(messageType int, data []byte, deadline time.Time) error {
	_ = deadline
	return f.WriteMessage(messageType, data)
}

func (f *fakeWSWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWSWriter) snapshot() []recordedWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakeWSWriter) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestOutboundWriter_WritesFramesInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan []byte, 2)
	frames <- []byte(`{"type":"agent_message","text":"one"}`)
	frames <- []byte(`{"type":"agent_message","text":"two"}`)
	close(frames)

	ws := &fakeWSWriter{}
	w := outboundWriter{ws: ws, ctx: ctx, cfg: Config{}, frames: frames}
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	writes := ws.snapshot()
	if len(writes) != 2 {
		t.Fatalf("writes=%d, want 2: %v", len(writes), writes)
	}
	for i, want := range []string{"one", "two"} {
		if writes[i].messageType != websocket.TextMessage {
			t.Fatalf("writes[%d].messageType=%d, want text", i, writes[i].messageType)
		}
		if writes[i].data != `{"type":"agent_message","text":"`+want+`"}` {
			t.Fatalf("writes[%d].data=%q", i, writes[i].data)
		}
	}
}

func TestOutboundWriter_CancelFlushesAndCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames := make(chan []byte, 2)
	frames <- []byte(`{"type":"intake_complete"}`)
	frames <- []byte(`{"type":"error","code":"session_timeout"}`)

	ws := &fakeWSWriter{}
	w := outboundWriter{ws: ws, ctx: ctx, cfg: Config{}, frames: frames}
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	writes := ws.snapshot()
	var texts, closes int
	for _, wr := range writes {
		switch wr.messageType {
		case websocket.TextMessage:
			texts++
		case websocket.CloseMessage:
			closes++
		}
	}
	if texts != 2 {
		t.Fatalf("text frames=%d, want 2 (queued frames must flush before close)", texts)
	}
	if closes != 1 {
		t.Fatalf("close frames=%d, want 1", closes)
	}
	if !ws.isClosed() {
		t.Fatalf("connection not closed")
	}
	// Close message must come after the flushed frames.
	if writes[len(writes)-1].messageType != websocket.CloseMessage {
		t.Fatalf("last write type=%d, want close", writes[len(writes)-1].messageType)
	}
}

func TestOutboundWriter_SendsPings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	frames := make(chan []byte)
	ws := &fakeWSWriter{}
	w := outboundWriter{ws: ws, ctx: ctx, cfg: Config{PingInterval: 10 * time.Millisecond}, frames: frames}

	done := make(chan error, 1)
	go func() { done <- w.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pings := 0
		for _, wr := range ws.snapshot() {
			if wr.messageType == websocket.PingMessage {
				pings++
			}
		}
		if pings >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	pings := 0
	for _, wr := range ws.snapshot() {
		if wr.messageType == websocket.PingMessage {
			pings++
		}
	}
	if pings < 2 {
		t.Fatalf("pings=%d, want >= 2", pings)
	}
}
