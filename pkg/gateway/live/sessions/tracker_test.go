package sessions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTracker_RegisterUnregisterCountWait(t *testing.T) {
	tr := NewTracker()
	if tr.Count() != 0 {
		t.Fatalf("initial count=%d, want 0", tr.Count())
	}

	u1 := tr.Register("sess-1/c1", Handle{})
	u2 := tr.Register("sess-2/c1", Handle{})
	if tr.Count() != 2 {
		t.Fatalf("count=%d, want 2", tr.Count())
	}

	u1()
	u1() // unregister is idempotent
	if tr.Count() != 1 {
		t.Fatalf("count=%d, want 1", tr.Count())
	}

	u2()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if !tr.Wait(ctx) {
		t.Fatalf("Wait=false with nothing tracked")
	}
}

func TestTracker_WaitTimesOutWhileSocketOpen(t *testing.T) {
	tr := NewTracker()
	unregister := tr.Register("sess-1/c1", Handle{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if tr.Wait(ctx) {
		t.Fatalf("Wait=true while a socket is still registered")
	}

	unregister()
	if !tr.Wait(nil) {
		t.Fatalf("Wait=false after unregister")
	}
}

func TestTracker_ReplaceReleasesOldEntry(t *testing.T) {
	tr := NewTracker()
	oldUnregister := tr.Register("sess-1/c1", Handle{})
	newUnregister := tr.Register("sess-1/c1", Handle{})

	// The replaced entry no longer counts and its unregister is a no-op
	// for the new one.
	if tr.Count() != 1 {
		t.Fatalf("count=%d, want 1", tr.Count())
	}
	oldUnregister()
	if tr.Count() != 1 {
		t.Fatalf("count=%d after old unregister, want 1", tr.Count())
	}

	newUnregister()
	if tr.Count() != 0 {
		t.Fatalf("count=%d, want 0", tr.Count())
	}
	if !tr.Wait(nil) {
		t.Fatalf("Wait=false after all unregistered")
	}
}

func TestTracker_CancelAll(t *testing.T) {
	tr := NewTracker()
	var c1, c2 atomic.Int64
	tr.Register("sess-1/c1", Handle{Cancel: func() { c1.Add(1) }})
	tr.Register("sess-2/c1", Handle{Cancel: func() { c2.Add(1) }})
	tr.Register("sess-3/c1", Handle{})

	if n := tr.CancelAll(); n != 2 {
		t.Fatalf("canceled=%d, want 2", n)
	}
	if c1.Load() != 1 || c2.Load() != 1 {
		t.Fatalf("cancel calls=%d/%d, want 1/1", c1.Load(), c2.Load())
	}
}

func TestTracker_WarnAllIgnoresSendErrors(t *testing.T) {
	tr := NewTracker()
	var gotCode, gotMessage string
	var w2 atomic.Int64
	tr.Register("sess-1/c1", Handle{Warn: func(code, message string) error {
		gotCode, gotMessage = code, message
		return nil
	}})
	tr.Register("sess-2/c1", Handle{Warn: func(code, message string) error {
		w2.Add(1)
		return errors.New("write: broken pipe")
	}})

	if sent := tr.WarnAll("draining", "gateway is shutting down"); sent != 2 {
		t.Fatalf("sent=%d, want 2", sent)
	}
	if gotCode != "draining" || gotMessage != "gateway is shutting down" {
		t.Fatalf("warn got %q/%q", gotCode, gotMessage)
	}
	if w2.Load() != 1 {
		t.Fatalf("failing warn called %d times, want 1", w2.Load())
	}
}
