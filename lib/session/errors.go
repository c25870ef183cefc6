// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "errors"

// Sentinel errors returned by Store operations. Callers match with
// errors.Is and translate to their own wire responses; none of these
// leave any partial state behind.
var (
	// ErrNotFound means the referenced session, file, user, or
	// collaborator row does not exist.
	ErrNotFound = errors.New("session: not found")

	// ErrDuplicateFileName means the session already has a file with
	// the requested name.
	ErrDuplicateFileName = errors.New("session: duplicate file name")

	// ErrLastFileUndeletable means the deletion would remove the
	// session's only remaining file.
	ErrLastFileUndeletable = errors.New("session: cannot delete the only file")

	// ErrOwnerRoleImmutable means the mutation would remove or demote
	// the owner role, or add a second owner.
	ErrOwnerRoleImmutable = errors.New("session: owner role cannot be changed")

	// ErrAlreadyCollaborator means the user already holds a role in
	// the session.
	ErrAlreadyCollaborator = errors.New("session: user is already a collaborator")

	// ErrDuplicateUsername means a user with that name already exists.
	ErrDuplicateUsername = errors.New("session: username already taken")
)
