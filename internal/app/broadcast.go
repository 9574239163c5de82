package app

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// subscriberBuffer is how many frames a slow subscriber may lag behind.
const subscriberBuffer = 2

// FrameBroadcaster fans encoded frames out to stream subscribers. A subscriber that falls
// behind loses its oldest queued frame; the producer never blocks.
type FrameBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
}

// NewFrameBroadcaster creates an empty broadcaster.
func NewFrameBroadcaster() *FrameBroadcaster {
	return &FrameBroadcaster{clients: make(map[int]chan []byte)}
}

// Subscribe adds a client and returns its ID and frame channel.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, subscriberBuffer)
	fb.clients[id] = ch

	log.Debug().Int("client", id).Int("clients", len(fb.clients)).Msg("stream subscribed")
	return id, ch
}

// Unsubscribe removes a client and closes its channel.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		log.Debug().Int("client", id).Int("clients", len(fb.clients)).Msg("stream unsubscribed")
	}
}

// Publish queues frame for every subscriber, dropping each full subscriber's oldest frame.
func (fb *FrameBroadcaster) Publish(frame []byte) {
	if len(frame) == 0 {
		return
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for _, ch := range fb.clients {
		select {
		case ch <- frame:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// Count returns the number of subscribers.
func (fb *FrameBroadcaster) Count() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.clients)
}

// Close unsubscribes everyone.
func (fb *FrameBroadcaster) Close() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for id, ch := range fb.clients {
		close(ch)
		delete(fb.clients, id)
	}
}
