// Package sse implements a Server-Sent Events broker that tells dashboard
// clients when imported data changed.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Event types sent to clients.
const (
	TypeTransactionsImported = "transactions.imported"
	TypeTransactionsRemoved  = "transactions.removed"
	TypeEmployeesImported    = "employees.imported"
	TypeImportRejected       = "import.rejected"
	TypeBalanceUpdated       = "balance.updated"
)

// clientBuffer is the number of frames a client may lag behind before new
// frames are dropped for it.
const clientBuffer = 64

// Event is one message fanned out to every client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Change describes an applied import for PublishChange.
type Change struct {
	Type string `json:"-"`
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// touchesBalance reports whether c changes the stored transactions.
func (c Change) touchesBalance() bool {
	return c.Type == TypeTransactionsImported || c.Type == TypeTransactionsRemoved
}

// Broker fans events out to connected dashboard clients. Every frame carries
// a broker-wide sequence id. Transaction changes are followed by a
// balance.updated frame, sent at most once per throttle window.
type Broker struct {
	throttle  time.Duration
	heartbeat time.Duration

	mu          sync.Mutex
	clients     map[chan []byte]struct{}
	seq         uint64
	lastBalance time.Time
	closed      bool
}

// NewBroker creates a broker that emits balance.updated at most once per
// balanceThrottle and sends a keep-alive comment every heartbeat.
func NewBroker(balanceThrottle, heartbeat time.Duration) *Broker {
	if balanceThrottle <= 0 {
		balanceThrottle = 2 * time.Second
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Broker{
		throttle:  balanceThrottle,
		heartbeat: heartbeat,
		clients:   make(map[chan []byte]struct{}),
	}
}

// frame renders one event in wire format.
func frame(id uint64, eventType string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(id, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(eventType)
	buf.WriteString("\ndata: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes()
}

// sendLocked numbers ev and offers it to every client. b.mu must be held.
func (b *Broker) sendLocked(ev Event) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	b.seq++
	msg := frame(b.seq, ev.Type, payload)
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe registers a client. The returned channel is closed by
// Unsubscribe or Close; on a closed broker it is returned already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe drops a client and closes its channel. Unknown channels are
// ignored.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; !ok {
		return
	}
	delete(b.clients, ch)
	close(ch)
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client. Later publishes are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		close(ch)
	}
	clear(b.clients)
}

// Publish sends ev to all connected clients. Slow clients miss it.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.sendLocked(ev)
}

// PublishChange announces an applied import.
func (b *Broker) PublishChange(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.sendLocked(Event{Type: c.Type, Data: c})
	if !c.touchesBalance() {
		return
	}
	if now := time.Now(); now.Sub(b.lastBalance) >= b.throttle {
		b.lastBalance = now
		b.sendLocked(Event{Type: TypeBalanceUpdated, Data: struct{}{}})
	}
}

// ServeHTTP streams events to one client until it disconnects or the broker
// closes (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.heartbeat)
	defer ping.Stop()

	write := func(p []byte) {
		_, _ = w.Write(p)
		flusher.Flush()
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			write([]byte(": ping\n\n"))
		case msg, open := <-ch:
			if !open {
				return
			}
			write(msg)
		}
	}
}
