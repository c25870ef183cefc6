// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package collab

import (
	"context"

	"github.com/codespace-foundation/codespace/lib/access"
	"github.com/codespace-foundation/codespace/lib/broadcast"
	"github.com/codespace-foundation/codespace/lib/session"
)

// AddCollaborator grants userID a role in the session. Owner only. The
// owner role cannot be granted; ownership is fixed at creation.
func (m *Manager) AddCollaborator(ctx context.Context, sessionID string, actorID, userID int64, role session.Role) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionManageMembers); err != nil {
		return err
	}
	return m.store.AddCollaborator(ctx, sessionID, userID, role)
}

// UpdateCollaboratorRole changes an existing collaborator's role.
// Owner only; the owner's own role is immutable.
func (m *Manager) UpdateCollaboratorRole(ctx context.Context, sessionID string, actorID, userID int64, role session.Role) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionManageMembers); err != nil {
		return err
	}
	return m.store.UpdateCollaboratorRole(ctx, sessionID, userID, role)
}

// RemoveCollaborator removes a collaborator. Owner only; the owner
// cannot be removed.
func (m *Manager) RemoveCollaborator(ctx context.Context, sessionID string, actorID, userID int64) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionManageMembers); err != nil {
		return err
	}
	return m.store.RemoveCollaborator(ctx, sessionID, userID)
}

// ListCollaborators returns the session's members, owner first.
func (m *Manager) ListCollaborators(ctx context.Context, sessionID string, actorID int64) ([]session.Collaborator, error) {
	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionView); err != nil {
		return nil, err
	}
	return m.store.ListCollaborators(ctx, sessionID)
}

// PostChatMessage appends a chat message and broadcasts it. Any
// member may chat, including viewers, and the editing lock does not
// apply.
func (m *Manager) PostChatMessage(ctx context.Context, sessionID string, actorID int64, body string) (session.ChatMessage, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionChat); err != nil {
		return session.ChatMessage{}, err
	}
	message, err := m.store.AddChatMessage(ctx, sessionID, actorID, body)
	if err != nil {
		return session.ChatMessage{}, err
	}
	m.publish(broadcast.EventChatMessage, sessionID, message)
	return message, nil
}

// RecentChatMessages returns the newest messages in chronological
// order. limit <= 0 applies the store default.
func (m *Manager) RecentChatMessages(ctx context.Context, sessionID string, actorID int64, limit int) ([]session.ChatMessage, error) {
	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionView); err != nil {
		return nil, err
	}
	return m.store.RecentChatMessages(ctx, sessionID, limit)
}
