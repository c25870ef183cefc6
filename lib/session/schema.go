// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schema is the store's full DDL. Referential integrity between a
// session and its children is enforced by the Store's own transactions
// (DeleteSession removes children and parent in one unit), not by
// SQLite foreign key actions, so the child tables carry plain indexed
// columns.
//
// Timestamps are Unix nanoseconds (INTEGER).
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id              INTEGER PRIMARY KEY,
    username        TEXT NOT NULL UNIQUE,
    credential_hash TEXT NOT NULL,
    created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    owner_id       INTEGER NOT NULL,
    language       TEXT NOT NULL,
    is_private     INTEGER NOT NULL DEFAULT 1,
    editing_locked INTEGER NOT NULL DEFAULT 0,
    output         TEXT NOT NULL DEFAULT '',
    timer_duration INTEGER NOT NULL DEFAULT 0,
    timer_start    INTEGER NOT NULL DEFAULT 0,
    created_at     INTEGER NOT NULL,
    last_accessed  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id);

CREATE TABLE IF NOT EXISTS files (
    id            INTEGER PRIMARY KEY,
    session_id    TEXT NOT NULL,
    name          TEXT NOT NULL,
    content       TEXT NOT NULL DEFAULT '',
    language      TEXT NOT NULL,
    is_main       INTEGER NOT NULL DEFAULT 0,
    last_modified INTEGER NOT NULL,
    UNIQUE(session_id, name)
);
CREATE INDEX IF NOT EXISTS idx_files_session ON files(session_id);

CREATE TABLE IF NOT EXISTS collaborators (
    session_id TEXT NOT NULL,
    user_id    INTEGER NOT NULL,
    role       TEXT NOT NULL,
    joined_at  INTEGER NOT NULL,
    PRIMARY KEY(session_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_collaborators_user ON collaborators(user_id);

CREATE TABLE IF NOT EXISTS chat_messages (
    id         INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL,
    user_id    INTEGER NOT NULL,
    body       TEXT NOT NULL,
    timestamp  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_session_time ON chat_messages(session_id, timestamp);
`

// createSchema applies the DDL on a fresh pool connection.
func createSchema(conn *sqlite.Conn) error {
	return sqlitex.ExecuteScript(conn, schema, nil)
}
