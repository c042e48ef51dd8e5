// Package sse implements a Server-Sent Events broker for pipeline progress
// and module updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Event types published by the broker.
const (
	TypeFitProgress    = "fit.progress"
	TypeModulesUpdated = "modules.updated"
	TypeGraphUpdated   = "graph.updated"
)

// ProgressData is the payload of fit.progress.
type ProgressData struct {
	Run   string `json:"run"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
	Gene  string `json:"gene"`
}

// ModulesData is the payload of modules.updated and graph.updated.
type ModulesData struct {
	RunID   int64 `json:"run_id"`
	SetID   int64 `json:"set_id"`
	Modules int   `json:"modules"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + throttle timestamps). Public methods communicate with this loop
// through channels, so no mutexes are required.
//
// fit.progress and graph.updated are throttled to one event per interval;
// the final progress event of a batch (done == total) is always sent.
type Broker struct {
	throttle time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	progressCh    chan ProgressData
	modulesCh     chan ModulesData
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given throttle interval.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		throttle:      throttle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		progressCh:    make(chan ProgressData, 256),
		modulesCh:     make(chan ModulesData, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGraph, lastProgress time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case p := <-b.progressCh:
			now := time.Now()
			if p.Done == p.Total || now.Sub(lastProgress) >= b.throttle {
				lastProgress = now
				broadcast(Event{Type: TypeFitProgress, Data: p})
			}

		case m := <-b.modulesCh:
			broadcast(Event{Type: TypeModulesUpdated, Data: m})

			now := time.Now()
			if now.Sub(lastGraph) >= b.throttle {
				lastGraph = now
				broadcast(Event{Type: TypeGraphUpdated, Data: m})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
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
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// FitProgress publishes a throttled fit.progress event.
func (b *Broker) FitProgress(run string, done, total int, gene string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.progressCh <- ProgressData{Run: run, Done: done, Total: total, Gene: gene}:
	case <-b.stopped:
	}
}

// ModulesUpdated publishes modules.updated and a throttled graph.updated event.
func (b *Broker) ModulesUpdated(runID, setID int64, modules int) {
	if b.closed.Load() {
		return
	}
	select {
	case b.modulesCh <- ModulesData{RunID: runID, SetID: setID, Modules: modules}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
