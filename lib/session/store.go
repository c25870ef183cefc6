// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/codespace-foundation/codespace/lib/clock"
	"github.com/codespace-foundation/codespace/lib/sqlitepool"
)

// Store provides SQLite-backed persistence for sessions and their
// children. Every mutating method is atomic: it either applies fully
// or leaves the database untouched. Multi-row invariant maintenance
// (main-file promotion, cascade delete, owner-role creation) happens
// inside IMMEDIATE transactions.
//
// Store methods do not check permissions; callers gate mutations with
// lib/access before reaching the store.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file. ":memory:" works for tests
	// with PoolSize 1.
	Path string

	// PoolSize is the connection pool size. Zero means the
	// sqlitepool default.
	PoolSize int

	// Clock provides timestamps for created/modified columns.
	// Required.
	Clock clock.Clock

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Open creates the store, applying the schema to every pool
// connection. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("session: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      cfg.Path,
		PoolSize:  cfg.PoolSize,
		Logger:    logger,
		OnConnect: createSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return &Store{pool: pool, clock: cfg.Clock, logger: logger}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// withConn borrows a connection for the duration of fn.
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// withTx runs fn inside an IMMEDIATE transaction. The transaction
// commits if fn returns nil and rolls back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("session: begin transaction: %w", err)
		}
		defer endTransaction(&err)
		return fn(conn)
	})
}

// newSessionID returns a 32-hex-character random token. Random rather
// than sequential so that session URLs are not guessable.
func newSessionID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("session: generating id: %w", err)
	}
	return hex.EncodeToString(raw[:]), nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Users ---

// CreateUser registers a user. The credential hash is stored verbatim;
// this engine never interprets it.
func (s *Store) CreateUser(ctx context.Context, username, credentialHash string) (User, error) {
	user := User{
		Username:       username,
		CredentialHash: credentialHash,
		CreatedAt:      s.clock.Now(),
	}
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"INSERT INTO users (username, credential_hash, created_at) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{username, credentialHash, user.CreatedAt.UnixNano()},
			})
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		if err != nil {
			return fmt.Errorf("session: creating user: %w", err)
		}
		user.ID = conn.LastInsertRowID()
		return nil
	})
	return user, err
}

// GetUser returns the user with the given ID.
func (s *Store) GetUser(ctx context.Context, userID int64) (User, error) {
	var user User
	found := false
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT id, username, credential_hash, created_at FROM users WHERE id = ?",
			&sqlitex.ExecOptions{
				Args: []any{userID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					user = User{
						ID:             stmt.ColumnInt64(0),
						Username:       stmt.ColumnText(1),
						CredentialHash: stmt.ColumnText(2),
						CreatedAt:      time.Unix(0, stmt.ColumnInt64(3)),
					}
					return nil
				},
			})
	})
	if err != nil {
		return User{}, fmt.Errorf("session: getting user %d: %w", userID, err)
	}
	if !found {
		return User{}, ErrNotFound
	}
	return user, nil
}

// --- Sessions ---

// CreateSessionParams bundles the inputs to CreateSession.
type CreateSessionParams struct {
	OwnerID     int64
	Title       string
	Description string
	IsPrivate   bool

	// Language must already be validated/resolved by the caller.
	Language string

	// BootstrapName and BootstrapContent describe the session's
	// initial main file.
	BootstrapName    string
	BootstrapContent string
}

// CreateSession creates the session row, the owner collaborator role,
// and the bootstrap main file as one atomic unit. A session without
// its owner role or bootstrap file can never be observed.
func (s *Store) CreateSession(ctx context.Context, params CreateSessionParams) (Session, error) {
	id, err := newSessionID()
	if err != nil {
		return Session{}, err
	}

	now := s.clock.Now()
	created := Session{
		ID:           id,
		Title:        params.Title,
		Description:  params.Description,
		OwnerID:      params.OwnerID,
		Language:     params.Language,
		IsPrivate:    params.IsPrivate,
		CreatedAt:    now,
		LastAccessed: now,
	}

	err = s.withTx(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO sessions (id, title, description, owner_id, language,
			                      is_private, created_at, last_accessed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				id, params.Title, params.Description, params.OwnerID,
				params.Language, boolToInt(params.IsPrivate),
				now.UnixNano(), now.UnixNano(),
			}})
		if err != nil {
			return fmt.Errorf("session: inserting session: %w", err)
		}

		err = sqlitex.Execute(conn,
			"INSERT INTO collaborators (session_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{
				id, params.OwnerID, RoleOwner.String(), now.UnixNano(),
			}})
		if err != nil {
			return fmt.Errorf("session: inserting owner role: %w", err)
		}

		err = sqlitex.Execute(conn, `
			INSERT INTO files (session_id, name, content, language, is_main, last_modified)
			VALUES (?, ?, ?, ?, 1, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				id, params.BootstrapName, params.BootstrapContent,
				params.Language, now.UnixNano(),
			}})
		if err != nil {
			return fmt.Errorf("session: inserting bootstrap file: %w", err)
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	s.logger.Info("session created", "session_id", id, "owner_id", params.OwnerID)
	return created, nil
}

// scanSession reads one sessions row.
func scanSession(stmt *sqlite.Stmt) Session {
	sess := Session{
		ID:            stmt.ColumnText(0),
		Title:         stmt.ColumnText(1),
		Description:   stmt.ColumnText(2),
		OwnerID:       stmt.ColumnInt64(3),
		Language:      stmt.ColumnText(4),
		IsPrivate:     stmt.ColumnInt64(5) != 0,
		EditingLocked: stmt.ColumnInt64(6) != 0,
		Output:        stmt.ColumnText(7),
		TimerDuration: time.Duration(stmt.ColumnInt64(8)),
		CreatedAt:     time.Unix(0, stmt.ColumnInt64(10)),
		LastAccessed:  time.Unix(0, stmt.ColumnInt64(11)),
	}
	if start := stmt.ColumnInt64(9); start != 0 {
		sess.TimerStart = time.Unix(0, start)
	}
	return sess
}

const sessionColumns = `id, title, description, owner_id, language,
	is_private, editing_locked, output, timer_duration, timer_start,
	created_at, last_accessed`

// GetSession returns the session with the given ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var sess Session
	found := false
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT "+sessionColumns+" FROM sessions WHERE id = ?",
			&sqlitex.ExecOptions{
				Args: []any{sessionID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					sess = scanSession(stmt)
					return nil
				},
			})
	})
	if err != nil {
		return Session{}, fmt.Errorf("session: getting %s: %w", sessionID, err)
	}
	if !found {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// ListSessionsForUser returns every session the user owns or
// collaborates in, most recently accessed first.
func (s *Store) ListSessionsForUser(ctx context.Context, userID int64) ([]Session, error) {
	var sessions []Session
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT `+sessionColumns+` FROM sessions
			WHERE id IN (SELECT session_id FROM collaborators WHERE user_id = ?)
			ORDER BY last_accessed DESC`,
			&sqlitex.ExecOptions{
				Args: []any{userID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					sessions = append(sessions, scanSession(stmt))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("session: listing for user %d: %w", userID, err)
	}
	return sessions, nil
}

// UpdateSessionParams bundles the owner-editable session metadata.
type UpdateSessionParams struct {
	SessionID   string
	Title       string
	Description string
	IsPrivate   bool

	// Language is the new default language, already resolved by the
	// caller. When it differs from the main file's language, the main
	// file is renamed to MainFileName and retagged in the same
	// transaction.
	Language     string
	MainFileName string
}

// UpdateSession updates session metadata, keeping the main file's
// language and name in step with a language change.
func (s *Store) UpdateSession(ctx context.Context, params UpdateSessionParams) error {
	return s.withTx(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			UPDATE sessions SET title = ?, description = ?, is_private = ?,
			                    language = ?, last_accessed = ?
			WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{
				params.Title, params.Description, boolToInt(params.IsPrivate),
				params.Language, s.clock.Now().UnixNano(), params.SessionID,
			}})
		if err != nil {
			return fmt.Errorf("session: updating %s: %w", params.SessionID, err)
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}

		err = sqlitex.Execute(conn, `
			UPDATE files SET language = ?, name = ?, last_modified = ?
			WHERE session_id = ? AND is_main = 1 AND language <> ?`,
			&sqlitex.ExecOptions{Args: []any{
				params.Language, params.MainFileName, s.clock.Now().UnixNano(),
				params.SessionID, params.Language,
			}})
		if err != nil {
			return fmt.Errorf("session: retagging main file: %w", err)
		}
		return nil
	})
}

// SetOutput persists the result text of the latest execution.
func (s *Store) SetOutput(ctx context.Context, sessionID, output string) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"UPDATE sessions SET output = ?, last_accessed = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{
				output, s.clock.Now().UnixNano(), sessionID,
			}})
		if err != nil {
			return fmt.Errorf("session: setting output for %s: %w", sessionID, err)
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ToggleLock flips the editing lock and returns the new state. The
// flip is a single UPDATE, so two concurrent toggles serialize into
// two observable flips rather than a lost update.
func (s *Store) ToggleLock(ctx context.Context, sessionID string) (bool, error) {
	locked := false
	err := s.withTx(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"UPDATE sessions SET editing_locked = 1 - editing_locked WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{sessionID}})
		if err != nil {
			return fmt.Errorf("session: toggling lock for %s: %w", sessionID, err)
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return sqlitex.Execute(conn,
			"SELECT editing_locked FROM sessions WHERE id = ?",
			&sqlitex.ExecOptions{
				Args: []any{sessionID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					locked = stmt.ColumnInt64(0) != 0
					return nil
				},
			})
	})
	return locked, err
}

// SetTimer records an advisory countdown. A zero duration clears it.
func (s *Store) SetTimer(ctx context.Context, sessionID string, duration time.Duration) error {
	start := int64(0)
	if duration > 0 {
		start = s.clock.Now().UnixNano()
	}
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"UPDATE sessions SET timer_duration = ?, timer_start = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{int64(duration), start, sessionID}})
		if err != nil {
			return fmt.Errorf("session: setting timer for %s: %w", sessionID, err)
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteSession removes the session and all of its files,
// collaborator roles, and chat messages in one transaction.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.withTx(ctx, func(conn *sqlite.Conn) error {
		for _, table := range []string{"files", "collaborators", "chat_messages"} {
			err := sqlitex.Execute(conn,
				"DELETE FROM "+table+" WHERE session_id = ?",
				&sqlitex.ExecOptions{Args: []any{sessionID}})
			if err != nil {
				return fmt.Errorf("session: deleting %s for %s: %w", table, sessionID, err)
			}
		}
		err := sqlitex.Execute(conn,
			"DELETE FROM sessions WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{sessionID}})
		if err != nil {
			return fmt.Errorf("session: deleting %s: %w", sessionID, err)
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err == nil {
		s.logger.Info("session deleted", "session_id", sessionID)
	}
	return err
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
