// Package realtime fans out change notifications to subscribers of a topic.
//
// Publishes to one topic are serialized, so subscribers observe them in commit
// order. A slow subscriber whose buffer is full loses its oldest pending event,
// never the newest; the per-topic sequence number exposes the gap so clients
// know to refetch.
package realtime

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

type EventKind string

const (
	EventMessageInserted     EventKind = "message_inserted"
	EventMessagesRead        EventKind = "messages_read"
	EventConversationUpdated EventKind = "conversation_updated"
)

type Event struct {
	Topic          string    `json:"topic"`
	Seq            uint64    `json:"seq"`
	Kind           EventKind `json:"kind"`
	ConversationID uint64    `json:"conversationId"`
	MessageID      uint64    `json:"messageId,omitempty"`
	SenderUID      string    `json:"senderUid,omitempty"`
	RecipientUID   string    `json:"recipientUid,omitempty"`
	At             time.Time `json:"at"`
}

func ConversationTopic(id uint64) string {
	return fmt.Sprintf("conversation:%d", id)
}

func InboxTopic(uid string) string {
	return "inbox:" + uid
}

// ParseTopic splits a topic into its kind ("conversation" or "inbox") and key.
func ParseTopic(topic string) (kind, key string, err error) {
	kind, key, ok := strings.Cut(topic, ":")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid topic %q", topic)
	}
	switch kind {
	case "conversation":
		if _, err := strconv.ParseUint(key, 10, 64); err != nil {
			return "", "", fmt.Errorf("invalid conversation topic %q", topic)
		}
	case "inbox":
	default:
		return "", "", fmt.Errorf("unknown topic kind %q", kind)
	}
	return kind, key, nil
}

type Hub struct {
	mu         sync.Mutex
	topics     map[string]*topicState
	bufferSize int

	holdMu sync.Mutex
	holds  map[string]*keyHold
}

type keyHold struct {
	mu   sync.Mutex
	refs int
}

type topicState struct {
	seq  uint64
	subs map[*Subscription]struct{}
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{topics: make(map[string]*topicState), bufferSize: bufferSize, holds: make(map[string]*keyHold)}
}

// Subscription is an explicit handle; the owner must Close it when the view goes away.
type Subscription struct {
	hub   *Hub
	topic string
	ch    chan Event
	once  sync.Once
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Events is closed after Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{hub: h, topic: topic, ch: make(chan Event, h.bufferSize)}
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.topics[topic]
	if !ok {
		st = &topicState{subs: make(map[*Subscription]struct{})}
		h.topics[topic] = st
	}
	st.subs[sub] = struct{}{}
	return sub
}

// Publish stamps ev with the topic and its next sequence number and delivers it
// without blocking on slow subscribers.
func (h *Hub) Publish(topic string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.topics[topic]
	if !ok {
		return
	}
	st.seq++
	ev.Topic = topic
	ev.Seq = st.seq
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	for sub := range st.subs {
		deliver(sub.ch, ev)
	}
}

// Hold blocks until no other writer holds key and returns its release func.
// A writer keeps the hold from its commit until its last publish, so events of
// one conversation leave in commit order.
func (h *Hub) Hold(key string) (release func()) {
	h.holdMu.Lock()
	kh, ok := h.holds[key]
	if !ok {
		kh = &keyHold{}
		h.holds[key] = kh
	}
	kh.refs++
	h.holdMu.Unlock()

	kh.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			kh.mu.Unlock()
			h.holdMu.Lock()
			kh.refs--
			if kh.refs == 0 {
				delete(h.holds, key)
			}
			h.holdMu.Unlock()
		})
	}
}

// Subscribers reports how many handles are open on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.topics[topic]; ok {
		return len(st.subs)
	}
	return 0
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.topics[sub.topic]; ok {
		delete(st.subs, sub)
		if len(st.subs) == 0 {
			delete(h.topics, sub.topic)
		}
	}
	close(sub.ch)
}

// deliver runs under the hub lock, so it is the only sender on ch.
func deliver(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
