package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// drain collects every message currently buffered on ch.
func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func countType(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishNoteChange(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteChange("created", NoteChanged{ID: "n1", Path: "a.md"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\nevent: note.created\n") {
			t.Errorf("unexpected framing %q", s)
		}
		if !strings.Contains(s, `data: {"id":"n1","path":"a.md"}`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestGraphUpdated_Coalesced(t *testing.T) {
	b := NewBroker(300 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// The first change announces the graph at once; the rest of the burst
	// collapses into a single trailing event.
	b.PublishNoteChange("created", NoteChanged{Path: "a.md"})
	b.PublishNoteChange("updated", NoteChanged{Path: "b.md"})
	b.PublishDocumentSaved(DocumentSaved{ID: "c", Path: "c.md"})

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)
	if n := len(msgs) - countType(msgs, TypeGraphUpdated); n != 3 {
		t.Errorf("change events = %d, want 3", n)
	}
	if n := countType(msgs, TypeGraphUpdated); n != 1 {
		t.Errorf("graph events before window = %d, want 1", n)
	}

	time.Sleep(400 * time.Millisecond)
	if n := countType(drain(ch), TypeGraphUpdated); n != 1 {
		t.Errorf("trailing graph events = %d, want 1", n)
	}
}

func TestPublishNoteChange_UnknownKindIgnored(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteChange("renamed", NoteChanged{Path: "a.md"})
	b.PublishNoteChange("deleted", NoteChanged{Path: "b.md"})

	select {
	case msg := <-ch:
		if s := string(msg); !strings.Contains(s, "event: note.deleted") {
			t.Errorf("first event = %q, want note.deleted", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishDocumentSaved(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentSaved(DocumentSaved{ID: "n1", Path: "n1.md", Checksum: "abc"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.saved") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `{"id":"n1","path":"n1.md","checksum":"abc"}`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// More events than the client buffer holds must not block the loop.
	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
	if b.ClientCount() != 1 {
		t.Error("broker loop should still answer")
	}
}

// syncRecorder guards the recorder body so the test can read it while the
// handler is still writing.
type syncRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func serve(t *testing.T, b *Broker, lastID string) (*syncRecorder, context.CancelFunc, chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	return w, cancel, done
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	w, cancel, done := serve(t, b, "")
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishNoteChange("updated", NoteChanged{ID: "x", Path: "x.md"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if body := w.body(); !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandler_ReplaysAfterLastEventID(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	// id 1 is the note event, id 2 the immediate graph event, id 3 the save.
	b.PublishNoteChange("created", NoteChanged{Path: "a.md"})
	b.PublishDocumentSaved(DocumentSaved{ID: "b", Path: "b.md"})
	time.Sleep(50 * time.Millisecond)

	w, cancel, done := serve(t, b, "2")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.body()
	if strings.Contains(body, "id: 1\n") || strings.Contains(body, "id: 2\n") {
		t.Errorf("replayed events the client already had: %q", body)
	}
	if !strings.Contains(body, "id: 3\nevent: document.saved") {
		t.Errorf("missing replayed event: %q", body)
	}
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Hour, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	w, cancel, done := serve(t, b, "")
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.body(), ": ping\n\n") {
		t.Errorf("no heartbeat in %q", w.body())
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishNoteChange("updated", NoteChanged{Path: "x.md"})
	b.PublishDocumentSaved(DocumentSaved{ID: "x"})
	if ch := b.Subscribe(); ch == nil {
		t.Fatal("subscribe after close should return a closed channel")
	}
}
