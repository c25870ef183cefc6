// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package collab

import (
	"context"

	"github.com/codespace-foundation/codespace/lib/access"
	"github.com/codespace-foundation/codespace/lib/broadcast"
	"github.com/codespace-foundation/codespace/lib/session"
)

// Broadcast payloads for file events.
type (
	// FileListPayload carries the complete file listing after any
	// change to the set of files.
	FileListPayload struct {
		Files []session.File `cbor:"files"`
	}

	// ActiveFilePayload identifies the new main file.
	ActiveFilePayload struct {
		FileID int64 `cbor:"file_id"`
	}

	// FileContentPayload carries a file's replaced content.
	FileContentPayload struct {
		FileID  int64  `cbor:"file_id"`
		Content string `cbor:"content"`
	}

	// LockPayload carries the editing lock state.
	LockPayload struct {
		Locked bool `cbor:"locked"`
	}
)

// AddFile adds a file to the session and broadcasts the new listing.
// The file's language resolves independently of the session language,
// so a Python session can carry a helper shell script.
func (m *Manager) AddFile(ctx context.Context, sessionID string, actorID int64, name, content, languageID string) (session.File, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionEditContent); err != nil {
		return session.File{}, err
	}
	file, err := m.store.AddFile(ctx, sessionID, name, content, m.registry.Resolve(languageID).ID)
	if err != nil {
		return session.File{}, err
	}
	if err := m.publishFileList(ctx, sessionID); err != nil {
		return session.File{}, err
	}
	return file, nil
}

// DeleteFile removes a file. The last file of a session cannot be
// deleted. Deleting the main file promotes the alphabetically first
// remaining file and announces the new active file.
func (m *Manager) DeleteFile(ctx context.Context, sessionID string, actorID int64, fileID int64) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionEditContent); err != nil {
		return err
	}
	promotedID, err := m.store.DeleteFile(ctx, sessionID, fileID)
	if err != nil {
		return err
	}
	if err := m.publishFileList(ctx, sessionID); err != nil {
		return err
	}
	if promotedID != 0 {
		m.publish(broadcast.EventActiveFileChanged, sessionID, ActiveFilePayload{FileID: promotedID})
	}
	return nil
}

// SetMainFile makes fileID the session's main file.
func (m *Manager) SetMainFile(ctx context.Context, sessionID string, actorID int64, fileID int64) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionEditContent); err != nil {
		return err
	}
	if err := m.store.SetMainFile(ctx, sessionID, fileID); err != nil {
		return err
	}
	m.publish(broadcast.EventActiveFileChanged, sessionID, ActiveFilePayload{FileID: fileID})
	return nil
}

// UpdateFileContent replaces a file's content. Concurrent updates are
// last-write-wins; the store keeps whichever write lands later and
// every subscriber converges on it via the broadcast.
func (m *Manager) UpdateFileContent(ctx context.Context, sessionID string, actorID int64, fileID int64, content string) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionEditContent); err != nil {
		return err
	}
	if err := m.store.UpdateFileContent(ctx, sessionID, fileID, content); err != nil {
		return err
	}
	m.publish(broadcast.EventFileContentChanged, sessionID, FileContentPayload{
		FileID:  fileID,
		Content: content,
	})
	return nil
}

// GetFile returns one file for the actor.
func (m *Manager) GetFile(ctx context.Context, sessionID string, actorID int64, fileID int64) (session.File, error) {
	if _, err := m.authorize(ctx, sessionID, actorID, access.ActionView); err != nil {
		return session.File{}, err
	}
	return m.store.GetFile(ctx, sessionID, fileID)
}

func (m *Manager) publishFileList(ctx context.Context, sessionID string) error {
	files, err := m.store.ListFiles(ctx, sessionID)
	if err != nil {
		return err
	}
	m.publish(broadcast.EventFileListChanged, sessionID, FileListPayload{Files: files})
	return nil
}
