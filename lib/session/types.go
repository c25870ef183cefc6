// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// Package session owns the persistent entities of a collaborative
// workspace — Session, File, Collaborator, ChatMessage — and the
// invariants that bind them: exactly one main file whenever a session
// has files, exactly one owner role per session, file names unique
// within a session, and cascade deletion of a session's children.
//
// The Store enforces these invariants with explicit SQL inside
// IMMEDIATE transactions rather than relying on framework cascades.
// Higher-level concerns — who may call which mutation, and what gets
// broadcast afterwards — live in lib/access and lib/collab.
package session

import (
	"fmt"
	"time"
)

// Role is a collaborator's permission tier within one session.
type Role int

const (
	// RoleViewer may read session state but not mutate it.
	RoleViewer Role = iota

	// RoleEditor may mutate files and execute code.
	RoleEditor

	// RoleOwner has editor rights plus lock toggling, membership
	// administration, and session deletion. Exactly one per session,
	// assigned at creation, never removable.
	RoleOwner
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleEditor:
		return "editor"
	default:
		return "viewer"
	}
}

// ParseRole converts a wire name to a Role.
func ParseRole(name string) (Role, error) {
	switch name {
	case "owner":
		return RoleOwner, nil
	case "editor":
		return RoleEditor, nil
	case "viewer":
		return RoleViewer, nil
	}
	return RoleViewer, fmt.Errorf("session: unknown role %q", name)
}

// AtLeast reports whether r grants at least the rights of other. Roles
// form a strict ladder: viewer < editor < owner.
func (r Role) AtLeast(other Role) bool { return r >= other }

// User is a registered identity. The credential hash is opaque to this
// engine; authentication happens elsewhere.
type User struct {
	ID             int64
	Username       string
	CredentialHash string
	CreatedAt      time.Time
}

// Session is a shared collaborative workspace.
type Session struct {
	// ID is a random 32-hex-character token, unique across the store.
	ID string

	Title       string
	Description string

	// OwnerID is immutable after creation.
	OwnerID int64

	// Language is the session's default/display language. Advisory:
	// individual files carry their own language.
	Language string

	// IsPrivate gates joining: private sessions admit only invited
	// collaborators.
	IsPrivate bool

	// EditingLocked blocks all content mutation and execution while
	// set. Only the owner toggles it.
	EditingLocked bool

	// Output is the last execution's combined text, persisted so late
	// joiners see it.
	Output string

	// TimerDuration and TimerStart describe an advisory countdown.
	// The engine stores and broadcasts them but does not enforce
	// anything when the countdown expires. Zero values mean no timer.
	TimerDuration time.Duration
	TimerStart    time.Time

	CreatedAt    time.Time
	LastAccessed time.Time
}

// File is one source file within a session.
type File struct {
	ID        int64
	SessionID string

	// Name is unique within the session.
	Name string

	Content  string
	Language string

	// IsMain marks the session's entry point. At most one file per
	// session carries it; if the session has files, exactly one does.
	IsMain bool

	LastModified time.Time
}

// Collaborator is the (session, user, role) membership record. One row
// per (session, user) pair.
type Collaborator struct {
	SessionID string
	UserID    int64
	Role      Role
	JoinedAt  time.Time
}

// ChatMessage is an immutable, append-only session chat record.
type ChatMessage struct {
	ID        int64
	SessionID string
	UserID    int64
	Body      string
	Timestamp time.Time
}
