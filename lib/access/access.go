// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// Package access decides whether a user may perform an action on a
// session. Decisions are pure functions over the session row and the
// caller's membership — no I/O, no side effects — so the manager can
// gate every mutation with one call and tests can table-drive the
// whole policy.
package access

import (
	"errors"
	"fmt"

	"github.com/codespace-foundation/codespace/lib/session"
)

// Sentinel errors for denied actions.
var (
	// ErrPermissionDenied means the caller's role (or lack of one)
	// does not permit the action.
	ErrPermissionDenied = errors.New("access: permission denied")

	// ErrSessionLocked means the session's editing lock blocks the
	// action. Only content mutation and execution are gated by the
	// lock; membership administration and the owner's own lock toggle
	// are not.
	ErrSessionLocked = errors.New("access: session is locked")
)

// Action enumerates the gated operations.
type Action int

const (
	// ActionView reads session state: files, chat, output.
	ActionView Action = iota

	// ActionEditContent mutates files: add, delete, rename, set main,
	// overwrite content.
	ActionEditContent

	// ActionExecute runs the session's code.
	ActionExecute

	// ActionToggleLock flips the editing lock.
	ActionToggleLock

	// ActionManageMembers adds, updates, or removes collaborators.
	ActionManageMembers

	// ActionManageSession edits session metadata, the timer, or
	// deletes the session.
	ActionManageSession

	// ActionChat posts a chat message.
	ActionChat
)

// String returns the action name for error messages and logs.
func (a Action) String() string {
	switch a {
	case ActionView:
		return "view"
	case ActionEditContent:
		return "edit"
	case ActionExecute:
		return "execute"
	case ActionToggleLock:
		return "toggle-lock"
	case ActionManageMembers:
		return "manage-members"
	case ActionManageSession:
		return "manage-session"
	case ActionChat:
		return "chat"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Membership is the caller's standing in the session. Zero value means
// "no role at all", which is how anonymous visitors to public sessions
// are evaluated.
type Membership struct {
	Role   session.Role
	Exists bool
}

// Check returns nil if the caller may perform the action, or one of
// the sentinel errors wrapped with the action name.
//
// The policy, in evaluation order:
//
//   - Private sessions admit only collaborators, for any action.
//   - Lock toggling, membership administration, and session
//     management are owner-only, regardless of the lock. The owner
//     can always unlock a session they locked.
//   - Content mutation and execution require at least editor, and are
//     blocked while the session is locked — for the owner too, who
//     must unlock first.
//   - Chat requires membership but ignores the lock: a locked session
//     can still talk.
//   - Viewing a public session needs no role.
func Check(sess session.Session, member Membership, action Action) error {
	if sess.IsPrivate && !member.Exists {
		return fmt.Errorf("%s: not a collaborator in a private session: %w", action, ErrPermissionDenied)
	}

	switch action {
	case ActionView:
		return nil

	case ActionToggleLock, ActionManageMembers, ActionManageSession:
		if member.Exists && member.Role == session.RoleOwner {
			return nil
		}
		return fmt.Errorf("%s: owner only: %w", action, ErrPermissionDenied)

	case ActionEditContent, ActionExecute:
		if !member.Exists || !member.Role.AtLeast(session.RoleEditor) {
			return fmt.Errorf("%s: requires editor or owner: %w", action, ErrPermissionDenied)
		}
		if sess.EditingLocked {
			return fmt.Errorf("%s: %w", action, ErrSessionLocked)
		}
		return nil

	case ActionChat:
		if !member.Exists {
			return fmt.Errorf("%s: requires membership: %w", action, ErrPermissionDenied)
		}
		return nil
	}

	return fmt.Errorf("%s: unknown action: %w", action, ErrPermissionDenied)
}
