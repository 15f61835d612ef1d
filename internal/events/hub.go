// Package events fans out notices about freshly stored deliveries to stream
// subscribers, keeping a bounded backlog for clients that reconnect.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Notice is one published message.
type Notice struct {
	Seq  int64           `json:"seq"`
	Kind string          `json:"kind"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Hub is an in-memory pub/sub with a ring-buffer backlog.
type Hub struct {
	mu      sync.Mutex
	seq     int64
	backlog []Notice
	head    int
	count   int

	subs    map[int]chan Notice
	nextSub int
	subBuf  int
}

// NewHub returns a Hub retaining up to capacity notices for replay.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	return &Hub{
		backlog: make([]Notice, capacity),
		subs:    make(map[int]chan Notice),
		subBuf:  64,
	}
}

// Publish records a notice and delivers it to every subscriber that has room.
// Slow subscribers miss notices rather than blocking the publisher.
func (h *Hub) Publish(kind string, data any) Notice {
	payload := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	n := Notice{Seq: h.seq, Kind: kind, At: time.Now().UTC(), Data: payload}
	h.remember(n)
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
	return n
}

// Subscribe registers a subscriber. The returned func unsubscribes and closes
// the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Notice, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	ch := make(chan Notice, h.subBuf)
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Since returns retained notices with Seq greater than after, oldest first.
func (h *Hub) Since(after int64) []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Notice, 0, h.count)
	for i := 0; i < h.count; i++ {
		n := h.backlog[(h.head+i)%len(h.backlog)]
		if n.Seq > after {
			out = append(out, n)
		}
	}
	return out
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remember(n Notice) {
	size := len(h.backlog)
	if h.count < size {
		h.backlog[(h.head+h.count)%size] = n
		h.count++
		return
	}
	h.backlog[h.head] = n
	h.head = (h.head + 1) % size
}
