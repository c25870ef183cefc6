// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// GetRole returns the caller's role in the session. The second return
// is false when the user holds no role at all.
func (s *Store) GetRole(ctx context.Context, sessionID string, userID int64) (Role, bool, error) {
	role := RoleViewer
	found := false
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT role FROM collaborators WHERE session_id = ? AND user_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{sessionID, userID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					parsed, err := ParseRole(stmt.ColumnText(0))
					if err != nil {
						return err
					}
					role = parsed
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return RoleViewer, false, fmt.Errorf("session: getting role: %w", err)
	}
	return role, found, nil
}

// AddCollaborator grants a role to a user who has none. Adding a
// second owner is rejected outright; an existing membership returns
// ErrAlreadyCollaborator.
func (s *Store) AddCollaborator(ctx context.Context, sessionID string, userID int64, role Role) error {
	if role == RoleOwner {
		return ErrOwnerRoleImmutable
	}
	return s.withTx(ctx, func(conn *sqlite.Conn) error {
		if err := s.sessionExists(conn, sessionID); err != nil {
			return err
		}
		err := sqlitex.Execute(conn,
			"INSERT INTO collaborators (session_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{
				sessionID, userID, role.String(), s.clock.Now().UnixNano(),
			}})
		if isUniqueViolation(err) {
			return ErrAlreadyCollaborator
		}
		if err != nil {
			return fmt.Errorf("session: adding collaborator: %w", err)
		}
		return nil
	})
}

// UpdateCollaboratorRole changes an existing collaborator's role.
// The owner role is immutable in both directions: the owner cannot be
// demoted and nobody can be promoted to owner.
func (s *Store) UpdateCollaboratorRole(ctx context.Context, sessionID string, userID int64, role Role) error {
	if role == RoleOwner {
		return ErrOwnerRoleImmutable
	}
	return s.withTx(ctx, func(conn *sqlite.Conn) error {
		current, found, err := s.roleInTx(conn, sessionID, userID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if current == RoleOwner {
			return ErrOwnerRoleImmutable
		}
		err = sqlitex.Execute(conn,
			"UPDATE collaborators SET role = ? WHERE session_id = ? AND user_id = ?",
			&sqlitex.ExecOptions{Args: []any{role.String(), sessionID, userID}})
		if err != nil {
			return fmt.Errorf("session: updating collaborator role: %w", err)
		}
		return nil
	})
}

// RemoveCollaborator deletes a membership. The owner role is never
// removable.
func (s *Store) RemoveCollaborator(ctx context.Context, sessionID string, userID int64) error {
	return s.withTx(ctx, func(conn *sqlite.Conn) error {
		current, found, err := s.roleInTx(conn, sessionID, userID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if current == RoleOwner {
			return ErrOwnerRoleImmutable
		}
		err = sqlitex.Execute(conn,
			"DELETE FROM collaborators WHERE session_id = ? AND user_id = ?",
			&sqlitex.ExecOptions{Args: []any{sessionID, userID}})
		if err != nil {
			return fmt.Errorf("session: removing collaborator: %w", err)
		}
		return nil
	})
}

// ListCollaborators returns the session's memberships, owner first,
// then by join time.
func (s *Store) ListCollaborators(ctx context.Context, sessionID string) ([]Collaborator, error) {
	var collaborators []Collaborator
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT session_id, user_id, role, joined_at FROM collaborators
			WHERE session_id = ?
			ORDER BY CASE role WHEN 'owner' THEN 0 ELSE 1 END, joined_at ASC`,
			&sqlitex.ExecOptions{
				Args: []any{sessionID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					role, err := ParseRole(stmt.ColumnText(2))
					if err != nil {
						return err
					}
					collaborators = append(collaborators, Collaborator{
						SessionID: stmt.ColumnText(0),
						UserID:    stmt.ColumnInt64(1),
						Role:      role,
						JoinedAt:  time.Unix(0, stmt.ColumnInt64(3)),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("session: listing collaborators for %s: %w", sessionID, err)
	}
	return collaborators, nil
}

// roleInTx reads a role on an already-borrowed connection.
func (s *Store) roleInTx(conn *sqlite.Conn, sessionID string, userID int64) (Role, bool, error) {
	role := RoleViewer
	found := false
	err := sqlitex.Execute(conn,
		"SELECT role FROM collaborators WHERE session_id = ? AND user_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{sessionID, userID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				parsed, err := ParseRole(stmt.ColumnText(0))
				if err != nil {
					return err
				}
				role = parsed
				found = true
				return nil
			},
		})
	if err != nil {
		return RoleViewer, false, fmt.Errorf("session: reading role: %w", err)
	}
	return role, found, nil
}
