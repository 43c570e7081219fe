package events

import (
	"context"
	"sync"
)

// subscriberBuffer bounds events queued for one slow subscriber
const subscriberBuffer = 100

// Subscriber receives the events of one topic
type Subscriber struct {
	ID     string
	Topic  string
	Events chan *Event
	Done   chan struct{}
}

// Hub fans events out to in-process subscribers by topic
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscriber // topic -> subscriberID -> subscriber
	closed      bool
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[string]*Subscriber)}
}

// Subscribe adds a subscriber for a topic
func (h *Hub) Subscribe(topic, subscriberID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:     subscriberID,
		Topic:  topic,
		Events: make(chan *Event, subscriberBuffer),
		Done:   make(chan struct{}),
	}
	if h.closed {
		close(sub.Done)
		close(sub.Events)
		return sub
	}

	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[string]*Subscriber)
	}
	if prev, ok := h.subscribers[topic][subscriberID]; ok {
		close(prev.Done)
		close(prev.Events)
	}
	h.subscribers[topic][subscriberID] = sub
	return sub
}

// Unsubscribe removes a subscriber
func (h *Hub) Unsubscribe(topic, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if topicSubs, ok := h.subscribers[topic]; ok {
		if sub, ok := topicSubs[subscriberID]; ok {
			close(sub.Done)
			close(sub.Events)
			delete(topicSubs, subscriberID)
		}
		if len(topicSubs) == 0 {
			delete(h.subscribers, topic)
		}
	}
}

// Publish sends an event to every subscriber of its topic. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Publish(ctx context.Context, event *Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers[event.Topic()] {
		select {
		case sub.Events <- event:
		default:
			// Buffer full, skip this subscriber
		}
	}
	return nil
}

// SubscriberCount returns the number of subscribers for a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for topic, topicSubs := range h.subscribers {
		for _, sub := range topicSubs {
			close(sub.Done)
			close(sub.Events)
		}
		delete(h.subscribers, topic)
	}
}
