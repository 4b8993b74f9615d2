// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types sent to clients.
const (
	TypeNoteCreated   = "note.created"
	TypeNoteUpdated   = "note.updated"
	TypeNoteDeleted   = "note.deleted"
	TypeGraphUpdated  = "graph.updated"
	TypeDocumentSaved = "document.saved"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteChanged is the payload of the note.* events.
type NoteChanged struct {
	ID   string `json:"id,omitempty"`
	Path string `json:"path"`
}

// DocumentSaved is the payload of a document.saved event.
type DocumentSaved struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

var noteEventTypes = map[string]string{
	"created": TypeNoteCreated,
	"updated": TypeNoteUpdated,
	"deleted": TypeNoteDeleted,
}

const (
	clientBuffer = 64
	historySize  = 128
)

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets the interval of keep-alive comments on open streams.
// Zero disables them.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

type message struct {
	seq uint64
	raw []byte
}

type subscription struct {
	ch    chan []byte
	after uint64 // replay history newer than this sequence; 0 replays nothing
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the client set, the replay history and the graph
// throttle state. Public methods talk to it over channels.
type Broker struct {
	graphMin  time.Duration
	heartbeat time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits graph.updated at most once per
// graphThrottle. Bursts inside the window collapse into one trailing event.
func NewBroker(graphThrottle time.Duration, opts ...Option) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		heartbeat:     25 * time.Second,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}

	go b.run()
	return b
}

// loop is the state owned by the broker goroutine.
type loop struct {
	clients map[chan []byte]struct{}
	history []message
	seq     uint64
}

func (l *loop) broadcast(event Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	l.seq++
	raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", l.seq, event.Type, payload))

	l.history = append(l.history, message{seq: l.seq, raw: raw})
	if len(l.history) > historySize {
		l.history = l.history[len(l.history)-historySize:]
	}

	for ch := range l.clients {
		select {
		case ch <- raw:
		default:
			// Slow client; it can catch up through Last-Event-ID.
		}
	}
}

func (l *loop) replay(sub subscription) {
	if sub.after == 0 {
		return
	}
	for _, m := range l.history {
		if m.seq <= sub.after {
			continue
		}
		select {
		case sub.ch <- m.raw:
		default:
			return
		}
	}
}

func (b *Broker) run() {
	defer close(b.stopped)

	l := &loop{clients: make(map[chan []byte]struct{})}

	var lastGraph time.Time
	graphTimer := time.NewTimer(time.Hour)
	graphTimer.Stop()
	graphPending := false

	graphChanged := func() {
		if graphPending {
			return
		}
		if wait := b.graphMin - time.Since(lastGraph); wait > 0 {
			graphPending = true
			graphTimer.Reset(wait)
			return
		}
		lastGraph = time.Now()
		l.broadcast(Event{Type: TypeGraphUpdated, Data: map[string]string{}})
	}

	for {
		select {
		case <-b.stopCh:
			graphTimer.Stop()
			for ch := range l.clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			l.clients[sub.ch] = struct{}{}
			l.replay(sub)

		case ch := <-b.unsubscribeCh:
			if _, ok := l.clients[ch]; ok {
				delete(l.clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			l.broadcast(event)
			switch event.Type {
			case TypeNoteCreated, TypeNoteUpdated, TypeNoteDeleted, TypeDocumentSaved:
				graphChanged()
			}

		case <-graphTimer.C:
			graphPending = false
			lastGraph = time.Now()
			l.broadcast(Event{Type: TypeGraphUpdated, Data: map[string]string{}})

		case resp := <-b.countReqCh:
			resp <- len(l.clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.subscribe(0)
}

// subscribe adds a client that first receives the buffered events newer than
// lastID.
func (b *Broker) subscribe(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, after: lastID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteChange publishes a note.<kind> event for kind "created",
// "updated" or "deleted". Other kinds are ignored.
func (b *Broker) PublishNoteChange(kind string, c NoteChanged) {
	typ, ok := noteEventTypes[kind]
	if !ok {
		return
	}
	b.Publish(Event{Type: typ, Data: c})
}

// PublishDocumentSaved announces that an editing session wrote its document.
func (b *Broker) PublishDocumentSaved(d DocumentSaved) {
	b.Publish(Event{Type: TypeDocumentSaved, Data: d})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). Reconnecting
// clients that send Last-Event-ID receive the events they missed while the
// broker still buffers them.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.subscribe(lastID)
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
