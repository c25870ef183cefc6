// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package collab

import (
	"context"
	"time"

	"github.com/codespace-foundation/codespace/lib/access"
	"github.com/codespace-foundation/codespace/lib/broadcast"
	"github.com/codespace-foundation/codespace/lib/session"
)

// CreateSessionParams are the caller-supplied fields of a new session.
// Language may be empty or unknown; it resolves to plaintext.
type CreateSessionParams struct {
	OwnerID     int64
	Title       string
	Description string
	Language    string
	IsPrivate   bool
}

// CreateSession creates a session with its owner role and a bootstrap
// main file holding the language's starter code.
func (m *Manager) CreateSession(ctx context.Context, params CreateSessionParams) (session.Session, error) {
	lang := m.registry.Resolve(params.Language)
	return m.store.CreateSession(ctx, session.CreateSessionParams{
		OwnerID:          params.OwnerID,
		Title:            params.Title,
		Description:      params.Description,
		IsPrivate:        params.IsPrivate,
		Language:         lang.ID,
		BootstrapName:    m.registry.MainFileName(lang.ID),
		BootstrapContent: lang.Starter,
	})
}

// SessionView is the full state a client needs to render a session.
type SessionView struct {
	Session       session.Session
	Files         []session.File
	Collaborators []session.Collaborator
	Chat          []session.ChatMessage
}

// GetSession returns a consistent view of a session for the actor.
func (m *Manager) GetSession(ctx context.Context, sessionID string, actorID int64) (SessionView, error) {
	sess, err := m.authorize(ctx, sessionID, actorID, access.ActionView)
	if err != nil {
		return SessionView{}, err
	}
	files, err := m.store.ListFiles(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	collaborators, err := m.store.ListCollaborators(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	chat, err := m.store.RecentChatMessages(ctx, sessionID, 0)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{
		Session:       sess,
		Files:         files,
		Collaborators: collaborators,
		Chat:          chat,
	}, nil
}

// ListSessions returns the sessions the user owns or collaborates on,
// most recently accessed first.
func (m *Manager) ListSessions(ctx context.Context, userID int64) ([]session.Session, error) {
	return m.store.ListSessionsForUser(ctx, userID)
}

// JoinSession adds the user as a viewer of a public session. Joining a
// session the user already belongs to is a no-op returning the
// existing role. Private sessions cannot be joined; the owner must add
// the user explicitly.
func (m *Manager) JoinSession(ctx context.Context, sessionID string, userID int64) (session.Role, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	role, exists, err := m.store.GetRole(ctx, sessionID, userID)
	if err != nil {
		return 0, err
	}
	if exists {
		return role, nil
	}
	if sess.IsPrivate {
		return 0, access.ErrPermissionDenied
	}
	if err := m.store.AddCollaborator(ctx, sessionID, userID, session.RoleViewer); err != nil {
		return 0, err
	}
	m.logger.Info("user joined session", "session_id", sessionID, "user_id", userID)
	return session.RoleViewer, nil
}

// UpdateSessionParams are the editable metadata fields of a session.
type UpdateSessionParams struct {
	SessionID   string
	ActorID     int64
	Title       string
	Description string
	Language    string
	IsPrivate   bool
}

// UpdateSession updates session metadata. A language change retags and
// renames the main file to match.
func (m *Manager) UpdateSession(ctx context.Context, params UpdateSessionParams) error {
	unlock := m.lockSession(params.SessionID)
	defer unlock()

	if _, err := m.authorize(ctx, params.SessionID, params.ActorID, access.ActionManageSession); err != nil {
		return err
	}
	lang := m.registry.Resolve(params.Language)
	err := m.store.UpdateSession(ctx, session.UpdateSessionParams{
		SessionID:    params.SessionID,
		Title:        params.Title,
		Description:  params.Description,
		IsPrivate:    params.IsPrivate,
		Language:     lang.ID,
		MainFileName: m.registry.MainFileName(lang.ID),
	})
	if err != nil {
		return err
	}

	sess, err := m.store.GetSession(ctx, params.SessionID)
	if err != nil {
		return err
	}
	m.publish(broadcast.EventSessionUpdated, params.SessionID, sess)

	// The retag may have renamed the main file.
	files, err := m.store.ListFiles(ctx, params.SessionID)
	if err != nil {
		return err
	}
	m.publish(broadcast.EventFileListChanged, params.SessionID, FileListPayload{Files: files})
	return nil
}

// ToggleLock flips the session's editing lock and returns the new
// state. Owner only; works while locked.
func (m *Manager) ToggleLock(ctx context.Context, sessionID string, actorID int64) (bool, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionToggleLock); err != nil {
		return false, err
	}
	locked, err := m.store.ToggleLock(ctx, sessionID)
	if err != nil {
		return false, err
	}
	m.publish(broadcast.EventLockStatusChanged, sessionID, LockPayload{Locked: locked})
	m.logger.Info("editing lock toggled", "session_id", sessionID, "locked", locked)
	return locked, nil
}

// SetTimer sets the session's advisory countdown timer. A zero
// duration clears it. The timer is display state only; nothing is
// enforced when it expires.
func (m *Manager) SetTimer(ctx context.Context, sessionID string, actorID int64, duration time.Duration) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionManageSession); err != nil {
		return err
	}
	if err := m.store.SetTimer(ctx, sessionID, duration); err != nil {
		return err
	}
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	m.publish(broadcast.EventSessionUpdated, sessionID, sess)
	return nil
}

// DeleteSession removes the session and everything under it. Owner
// only. Subscribers receive a terminal session_deleted event.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string, actorID int64) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionManageSession); err != nil {
		return err
	}
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	m.publish(broadcast.EventSessionDeleted, sessionID, nil)
	m.forgetSessionLock(sessionID)
	m.logger.Info("session deleted", "session_id", sessionID, "actor_id", actorID)
	return nil
}
