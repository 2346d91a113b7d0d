package sse

import (
	"context"
	"strings"
	"sync"

	"ms-registration/internal/models"
	"ms-registration/internal/seating"
)

// SeatEventEmitter fans seat status changes out to SSE clients watching an
// event's seat map.
type SeatEventEmitter struct {
	// key: normalized event title, value: client channels
	clients map[string][]chan models.SeatStatusChangeEvent
	mu      sync.RWMutex
}

func NewSeatEventEmitter() *SeatEventEmitter {
	return &SeatEventEmitter{
		clients: make(map[string][]chan models.SeatStatusChangeEvent),
	}
}

func emitterKey(eventTitle string) string {
	return strings.ToLower(seating.NormalizeTitle(eventTitle))
}

// Subscribe registers a client for an event's seat changes. The channel is
// closed once ctx is done.
func (e *SeatEventEmitter) Subscribe(ctx context.Context, eventTitle string) <-chan models.SeatStatusChangeEvent {
	key := emitterKey(eventTitle)
	clientChan := make(chan models.SeatStatusChangeEvent, 10)

	e.mu.Lock()
	e.clients[key] = append(e.clients[key], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(key, clientChan)
	}()

	return clientChan
}

// Emit broadcasts a change to every subscriber of its event. Slow clients
// miss the update rather than block the caller.
func (e *SeatEventEmitter) Emit(event models.SeatStatusChangeEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[emitterKey(event.EventTitle)] {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *SeatEventEmitter) removeClient(key string, clientChan chan models.SeatStatusChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[key]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[key] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[key]) == 0 {
		delete(e.clients, key)
	}
}

// ClientCount returns the number of clients currently watching an event.
func (e *SeatEventEmitter) ClientCount(eventTitle string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[emitterKey(eventTitle)])
}
