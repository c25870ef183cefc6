// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// Package collab is the session orchestration layer. It composes the
// session store, the access policy, the language registry, the
// execution runner, and the broadcast hub into the operations the
// service exposes: every mutation is authorized, applied to the store,
// and announced to the session's subscribers, in that order.
//
// Mutations within one session are serialized by a per-session mutex,
// so subscribers observe events in the order the store applied them.
// Operations on different sessions proceed concurrently.
package collab

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codespace-foundation/codespace/lib/access"
	"github.com/codespace-foundation/codespace/lib/broadcast"
	"github.com/codespace-foundation/codespace/lib/clock"
	"github.com/codespace-foundation/codespace/lib/language"
	"github.com/codespace-foundation/codespace/lib/runner"
	"github.com/codespace-foundation/codespace/lib/session"
)

// Config holds the dependencies of a Manager. Store, Registry, Runner,
// and Hub are required.
type Config struct {
	Store    *session.Store
	Registry *language.Registry
	Runner   *runner.Runner
	Hub      *broadcast.Hub
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Manager coordinates all session operations. Safe for concurrent use.
type Manager struct {
	store    *session.Store
	registry *language.Registry
	runner   *runner.Runner
	hub      *broadcast.Hub
	clock    clock.Clock
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("collab: store is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("collab: language registry is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("collab: runner is required")
	}
	if cfg.Hub == nil {
		return nil, fmt.Errorf("collab: broadcast hub is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:    cfg.Store,
		registry: cfg.Registry,
		runner:   cfg.Runner,
		hub:      cfg.Hub,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Registry returns the manager's language registry.
func (m *Manager) Registry() *language.Registry { return m.registry }

// lockSession serializes mutations of one session. The returned
// function releases the lock.
func (m *Manager) lockSession(sessionID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	m.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// forgetSessionLock drops the per-session mutex after a session is
// deleted.
func (m *Manager) forgetSessionLock(sessionID string) {
	m.mu.Lock()
	delete(m.locks, sessionID)
	m.mu.Unlock()
}

// authorize loads the session and the actor's membership, then applies
// the access policy. Returns the session so callers don't reload it.
func (m *Manager) authorize(ctx context.Context, sessionID string, actorID int64, action access.Action) (session.Session, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}
	role, exists, err := m.store.GetRole(ctx, sessionID, actorID)
	if err != nil {
		return session.Session{}, err
	}
	member := access.Membership{Role: role, Exists: exists}
	if err := access.Check(sess, member, action); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// publish stamps and dispatches a broadcast event.
func (m *Manager) publish(eventType broadcast.EventType, sessionID string, payload any) {
	m.hub.Publish(broadcast.Event{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: m.clock.Now(),
	})
}

// Subscribe authorizes the actor for the session and registers a
// broadcast subscriber. The caller owns the done channel.
func (m *Manager) Subscribe(ctx context.Context, sessionID string, actorID int64, done <-chan struct{}) (*broadcast.Subscriber, error) {
	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionView); err != nil {
		return nil, err
	}
	return m.hub.Subscribe(sessionID, done), nil
}

// Unsubscribe removes a subscriber from the hub.
func (m *Manager) Unsubscribe(sub *broadcast.Subscriber) {
	m.hub.Unsubscribe(sub)
}
