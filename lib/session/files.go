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

func scanFile(stmt *sqlite.Stmt) File {
	return File{
		ID:           stmt.ColumnInt64(0),
		SessionID:    stmt.ColumnText(1),
		Name:         stmt.ColumnText(2),
		Content:      stmt.ColumnText(3),
		Language:     stmt.ColumnText(4),
		IsMain:       stmt.ColumnInt64(5) != 0,
		LastModified: time.Unix(0, stmt.ColumnInt64(6)),
	}
}

const fileColumns = "id, session_id, name, content, language, is_main, last_modified"

// AddFile creates a file in the session. The name must be unique
// within the session; violations return ErrDuplicateFileName. Files
// added after session creation are never main.
func (s *Store) AddFile(ctx context.Context, sessionID, name, content, languageID string) (File, error) {
	file := File{
		SessionID:    sessionID,
		Name:         name,
		Content:      content,
		Language:     languageID,
		LastModified: s.clock.Now(),
	}
	err := s.withTx(ctx, func(conn *sqlite.Conn) error {
		if err := s.sessionExists(conn, sessionID); err != nil {
			return err
		}
		err := sqlitex.Execute(conn, `
			INSERT INTO files (session_id, name, content, language, is_main, last_modified)
			VALUES (?, ?, ?, ?, 0, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				sessionID, name, content, languageID, file.LastModified.UnixNano(),
			}})
		if isUniqueViolation(err) {
			return ErrDuplicateFileName
		}
		if err != nil {
			return fmt.Errorf("session: adding file %q: %w", name, err)
		}
		file.ID = conn.LastInsertRowID()
		return nil
	})
	if err != nil {
		return File{}, err
	}
	return file, nil
}

// GetFile returns one file by ID, scoped to a session so that a caller
// cannot reach into another session's files with a guessed row ID.
func (s *Store) GetFile(ctx context.Context, sessionID string, fileID int64) (File, error) {
	var file File
	found := false
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT "+fileColumns+" FROM files WHERE id = ? AND session_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{fileID, sessionID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					file = scanFile(stmt)
					return nil
				},
			})
	})
	if err != nil {
		return File{}, fmt.Errorf("session: getting file %d: %w", fileID, err)
	}
	if !found {
		return File{}, ErrNotFound
	}
	return file, nil
}

// ListFiles returns the session's files ordered by name.
func (s *Store) ListFiles(ctx context.Context, sessionID string) ([]File, error) {
	var files []File
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT "+fileColumns+" FROM files WHERE session_id = ? ORDER BY name ASC",
			&sqlitex.ExecOptions{
				Args: []any{sessionID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					files = append(files, scanFile(stmt))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("session: listing files for %s: %w", sessionID, err)
	}
	return files, nil
}

// UpdateFileContent overwrites a file's content. Last write wins:
// concurrent editors are serialized by the manager's per-session lock
// and the later write replaces the earlier one wholesale.
func (s *Store) UpdateFileContent(ctx context.Context, sessionID string, fileID int64, content string) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"UPDATE files SET content = ?, last_modified = ? WHERE id = ? AND session_id = ?",
			&sqlitex.ExecOptions{Args: []any{
				content, s.clock.Now().UnixNano(), fileID, sessionID,
			}})
		if err != nil {
			return fmt.Errorf("session: updating file %d: %w", fileID, err)
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteFile removes a file. Deleting the session's only file returns
// ErrLastFileUndeletable. If the deleted file was main, the remaining
// file first in name order is promoted in the same transaction; the
// promoted file's ID is returned, or 0 when no promotion happened.
func (s *Store) DeleteFile(ctx context.Context, sessionID string, fileID int64) (promotedID int64, err error) {
	err = s.withTx(ctx, func(conn *sqlite.Conn) error {
		var count int64
		err := sqlitex.Execute(conn,
			"SELECT COUNT(*) FROM files WHERE session_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{sessionID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					count = stmt.ColumnInt64(0)
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("session: counting files for %s: %w", sessionID, err)
		}
		if count <= 1 {
			return ErrLastFileUndeletable
		}

		wasMain := false
		found := false
		err = sqlitex.Execute(conn,
			"SELECT is_main FROM files WHERE id = ? AND session_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{fileID, sessionID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					wasMain = stmt.ColumnInt64(0) != 0
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("session: reading file %d: %w", fileID, err)
		}
		if !found {
			return ErrNotFound
		}

		err = sqlitex.Execute(conn,
			"DELETE FROM files WHERE id = ? AND session_id = ?",
			&sqlitex.ExecOptions{Args: []any{fileID, sessionID}})
		if err != nil {
			return fmt.Errorf("session: deleting file %d: %w", fileID, err)
		}

		if wasMain {
			err = sqlitex.Execute(conn,
				"SELECT id FROM files WHERE session_id = ? ORDER BY name ASC LIMIT 1",
				&sqlitex.ExecOptions{
					Args: []any{sessionID},
					ResultFunc: func(stmt *sqlite.Stmt) error {
						promotedID = stmt.ColumnInt64(0)
						return nil
					},
				})
			if err != nil {
				return fmt.Errorf("session: picking promotion target: %w", err)
			}
			err = sqlitex.Execute(conn,
				"UPDATE files SET is_main = 1 WHERE id = ?",
				&sqlitex.ExecOptions{Args: []any{promotedID}})
			if err != nil {
				return fmt.Errorf("session: promoting file %d: %w", promotedID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return promotedID, nil
}

// SetMainFile marks fileID as the session's main file, clearing the
// flag on every other file in the same transaction.
func (s *Store) SetMainFile(ctx context.Context, sessionID string, fileID int64) error {
	return s.withTx(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"UPDATE files SET is_main = 0 WHERE session_id = ? AND id <> ?",
			&sqlitex.ExecOptions{Args: []any{sessionID, fileID}})
		if err != nil {
			return fmt.Errorf("session: clearing main flags for %s: %w", sessionID, err)
		}
		err = sqlitex.Execute(conn,
			"UPDATE files SET is_main = 1 WHERE id = ? AND session_id = ?",
			&sqlitex.ExecOptions{Args: []any{fileID, sessionID}})
		if err != nil {
			return fmt.Errorf("session: setting main file %d: %w", fileID, err)
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MainFileCount returns how many files in the session carry is_main.
// Exposed for invariant checks in tests.
func (s *Store) MainFileCount(ctx context.Context, sessionID string) (int, error) {
	count := 0
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT COUNT(*) FROM files WHERE session_id = ? AND is_main = 1",
			&sqlitex.ExecOptions{
				Args: []any{sessionID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					count = int(stmt.ColumnInt64(0))
					return nil
				},
			})
	})
	if err != nil {
		return 0, fmt.Errorf("session: counting main files: %w", err)
	}
	return count, nil
}

// sessionExists returns ErrNotFound unless the session row exists.
func (s *Store) sessionExists(conn *sqlite.Conn, sessionID string) error {
	found := false
	err := sqlitex.Execute(conn,
		"SELECT 1 FROM sessions WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{sessionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("session: checking %s: %w", sessionID, err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}
