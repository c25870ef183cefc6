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

// AddChatMessage appends a chat message. Messages are immutable once
// written.
func (s *Store) AddChatMessage(ctx context.Context, sessionID string, userID int64, body string) (ChatMessage, error) {
	message := ChatMessage{
		SessionID: sessionID,
		UserID:    userID,
		Body:      body,
		Timestamp: s.clock.Now(),
	}
	err := s.withTx(ctx, func(conn *sqlite.Conn) error {
		if err := s.sessionExists(conn, sessionID); err != nil {
			return err
		}
		err := sqlitex.Execute(conn,
			"INSERT INTO chat_messages (session_id, user_id, body, timestamp) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{
				sessionID, userID, body, message.Timestamp.UnixNano(),
			}})
		if err != nil {
			return fmt.Errorf("session: adding chat message: %w", err)
		}
		message.ID = conn.LastInsertRowID()
		return nil
	})
	if err != nil {
		return ChatMessage{}, err
	}
	return message, nil
}

// RecentChatMessages returns the newest limit messages in
// chronological order. A non-positive limit defaults to 50.
func (s *Store) RecentChatMessages(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var messages []ChatMessage
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		// Newest-first with LIMIT picks the window; the outer query
		// restores chronological order for display.
		return sqlitex.Execute(conn, `
			SELECT id, session_id, user_id, body, timestamp FROM (
				SELECT id, session_id, user_id, body, timestamp
				FROM chat_messages WHERE session_id = ?
				ORDER BY timestamp DESC, id DESC LIMIT ?
			) ORDER BY timestamp ASC, id ASC`,
			&sqlitex.ExecOptions{
				Args: []any{sessionID, limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					messages = append(messages, ChatMessage{
						ID:        stmt.ColumnInt64(0),
						SessionID: stmt.ColumnText(1),
						UserID:    stmt.ColumnInt64(2),
						Body:      stmt.ColumnText(3),
						Timestamp: time.Unix(0, stmt.ColumnInt64(4)),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("session: reading chat for %s: %w", sessionID, err)
	}
	return messages, nil
}
