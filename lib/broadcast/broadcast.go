// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// Package broadcast fans session mutation events out to subscribers.
//
// The hub never blocks a publisher on a slow consumer: sends are
// non-blocking, and a subscriber whose channel overflows is marked for
// resync. The subscriber's stream handler checks the resync flag,
// drains the stale buffer, and replays a fresh snapshot to the client
// instead of relying on the dropped events.
package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// EventType discriminates broadcast payloads.
type EventType string

const (
	// EventFileListChanged: a file was added, removed, or renamed. The
	// payload is the full file listing.
	EventFileListChanged EventType = "file_list_changed"

	// EventActiveFileChanged: the session's main file moved, either
	// explicitly or by promotion after a delete.
	EventActiveFileChanged EventType = "active_file_changed"

	// EventFileContentChanged: a file's content was replaced.
	EventFileContentChanged EventType = "file_content_changed"

	// EventLockStatusChanged: the owner toggled the editing lock.
	EventLockStatusChanged EventType = "lock_status_changed"

	// EventExecutionOutput: an execution finished; the payload carries
	// the captured output.
	EventExecutionOutput EventType = "execution_output"

	// EventChatMessage: a chat message was posted.
	EventChatMessage EventType = "chat_message_added"

	// EventSessionUpdated: title, description, privacy, language, or
	// the timer changed.
	EventSessionUpdated EventType = "session_updated"

	// EventSessionDeleted: the owner deleted the session. Terminal;
	// subscribers should close their streams.
	EventSessionDeleted EventType = "session_deleted"
)

// Event is one session mutation dispatched to subscribers. Payload is
// a per-type value from the session manager; it must be encodable by
// the wire codec.
type Event struct {
	Type      EventType `cbor:"type"`
	SessionID string    `cbor:"session_id"`
	Payload   any       `cbor:"payload,omitempty"`
	Timestamp time.Time `cbor:"timestamp"`
}

// channelSize is the per-subscriber event buffer. Large enough to
// absorb a burst of file operations; overflow marks the subscriber
// for resync rather than blocking the publisher.
const channelSize = 256

// Subscriber is one registered event consumer for a session.
type Subscriber struct {
	sessionID string
	channel   chan Event
	resync    atomic.Bool
	done      <-chan struct{}
}

// Events returns the subscriber's receive channel.
func (s *Subscriber) Events() <-chan Event { return s.channel }

// NeedsResync reports whether events were dropped since the last call,
// clearing the flag. A true return means the stream handler must
// replay a snapshot; buffered events are stale and should be drained
// first via Drain.
func (s *Subscriber) NeedsResync() bool {
	return s.resync.CompareAndSwap(true, false)
}

// Drain discards all currently buffered events.
func (s *Subscriber) Drain() {
	for {
		select {
		case <-s.channel:
		default:
			return
		}
	}
}

// Hub is the session-keyed subscriber registry. Safe for concurrent
// use.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string][]*Subscriber
	logger      *slog.Logger
}

// NewHub creates an empty hub. A nil logger discards.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		subscribers: make(map[string][]*Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a consumer for one session's events. The
// subscriber is removed automatically once done is closed, or
// explicitly via Unsubscribe.
func (h *Hub) Subscribe(sessionID string, done <-chan struct{}) *Subscriber {
	sub := &Subscriber{
		sessionID: sessionID,
		channel:   make(chan Event, channelSize),
		done:      done,
	}
	h.mu.Lock()
	h.subscribers[sessionID] = append(h.subscribers[sessionID], sub)
	h.mu.Unlock()
	h.logger.Debug("subscriber added", "session_id", sessionID)
	return sub
}

// Unsubscribe removes a subscriber from the registry. Safe to call for
// a subscriber that was already removed.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscriber) {
	sessionSubscribers := h.subscribers[sub.sessionID]
	for i, existing := range sessionSubscribers {
		if existing == sub {
			h.subscribers[sub.sessionID] = append(sessionSubscribers[:i], sessionSubscribers[i+1:]...)
			break
		}
	}
	if len(h.subscribers[sub.sessionID]) == 0 {
		delete(h.subscribers, sub.sessionID)
	}
}

// Publish dispatches an event to every subscriber of its session.
// Non-blocking: a full subscriber channel drops the event and marks
// the subscriber for resync. Subscribers whose done channel is closed
// are removed.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionSubscribers := h.subscribers[event.SessionID]
	if len(sessionSubscribers) == 0 {
		return
	}

	// Iterate in reverse so removals don't shift unvisited elements.
	for i := len(sessionSubscribers) - 1; i >= 0; i-- {
		sub := sessionSubscribers[i]

		select {
		case <-sub.done:
			sessionSubscribers = append(sessionSubscribers[:i], sessionSubscribers[i+1:]...)
			continue
		default:
		}

		select {
		case sub.channel <- event:
		default:
			sub.resync.Store(true)
		}
	}

	if len(sessionSubscribers) == 0 {
		delete(h.subscribers, event.SessionID)
	} else {
		h.subscribers[event.SessionID] = sessionSubscribers
	}
}

// SubscriberCount returns the number of registered subscribers for a
// session. For tests and diagnostics.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[sessionID])
}
