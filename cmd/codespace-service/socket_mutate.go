// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/codespace-foundation/codespace/lib/collab"
	"github.com/codespace-foundation/codespace/lib/session"
)

func (cs *CodespaceService) handleCreateUser(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		Username       string `cbor:"username"`
		CredentialHash string `cbor:"credential_hash"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if request.Username == "" {
		return nil, fmt.Errorf("missing required field: username")
	}
	user, err := cs.store.CreateUser(ctx, request.Username, request.CredentialHash)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user_id": user.ID}, nil
}

func (cs *CodespaceService) handleCreateSession(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		UserID      int64  `cbor:"user_id"`
		Title       string `cbor:"title"`
		Description string `cbor:"description"`
		Language    string `cbor:"language"`
		IsPrivate   bool   `cbor:"is_private"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if request.UserID == 0 {
		return nil, fmt.Errorf("missing required field: user_id")
	}
	if request.Title == "" {
		return nil, fmt.Errorf("missing required field: title")
	}
	sess, err := cs.manager.CreateSession(ctx, collab.CreateSessionParams{
		OwnerID:     request.UserID,
		Title:       request.Title,
		Description: request.Description,
		Language:    request.Language,
		IsPrivate:   request.IsPrivate,
	})
	if err != nil {
		return nil, err
	}
	return toSessionDTO(sess), nil
}

func (cs *CodespaceService) handleUpdateSession(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		Title       string `cbor:"title"`
		Description string `cbor:"description"`
		Language    string `cbor:"language"`
		IsPrivate   bool   `cbor:"is_private"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	err = cs.manager.UpdateSession(ctx, collab.UpdateSessionParams{
		SessionID:   request.SessionID,
		ActorID:     request.UserID,
		Title:       request.Title,
		Description: request.Description,
		Language:    request.Language,
		IsPrivate:   request.IsPrivate,
	})
	return nil, err
}

func (cs *CodespaceService) handleDeleteSession(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[sessionRef](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	return nil, cs.manager.DeleteSession(ctx, request.SessionID, request.UserID)
}

func (cs *CodespaceService) handleJoinSession(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[sessionRef](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	role, err := cs.manager.JoinSession(ctx, request.SessionID, request.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"role": role.String()}, nil
}

func (cs *CodespaceService) handleToggleLock(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[sessionRef](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	locked, err := cs.manager.ToggleLock(ctx, request.SessionID, request.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"locked": locked}, nil
}

func (cs *CodespaceService) handleSetTimer(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		Seconds int64 `cbor:"seconds"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	if request.Seconds < 0 {
		return nil, fmt.Errorf("seconds must not be negative")
	}
	duration := time.Duration(request.Seconds) * time.Second
	return nil, cs.manager.SetTimer(ctx, request.SessionID, request.UserID, duration)
}

func (cs *CodespaceService) handleAddFile(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		Name     string `cbor:"name"`
		Content  string `cbor:"content"`
		Language string `cbor:"language"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	if request.Name == "" {
		return nil, fmt.Errorf("missing required field: name")
	}
	file, err := cs.manager.AddFile(ctx, request.SessionID, request.UserID, request.Name, request.Content, request.Language)
	if err != nil {
		return nil, err
	}
	return toFileDTO(file), nil
}

func (cs *CodespaceService) handleUpdateFile(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		FileID  int64  `cbor:"file_id"`
		Content string `cbor:"content"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	return nil, cs.manager.UpdateFileContent(ctx, request.SessionID, request.UserID, request.FileID, request.Content)
}

func (cs *CodespaceService) handleDeleteFile(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		FileID int64 `cbor:"file_id"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	return nil, cs.manager.DeleteFile(ctx, request.SessionID, request.UserID, request.FileID)
}

func (cs *CodespaceService) handleSetMainFile(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		FileID int64 `cbor:"file_id"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	return nil, cs.manager.SetMainFile(ctx, request.SessionID, request.UserID, request.FileID)
}

func (cs *CodespaceService) handleAddCollaborator(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		TargetID int64  `cbor:"target_id"`
		Role     string `cbor:"role"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	role, err := session.ParseRole(request.Role)
	if err != nil {
		return nil, err
	}
	return nil, cs.manager.AddCollaborator(ctx, request.SessionID, request.UserID, request.TargetID, role)
}

func (cs *CodespaceService) handleUpdateCollaborator(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		TargetID int64  `cbor:"target_id"`
		Role     string `cbor:"role"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	role, err := session.ParseRole(request.Role)
	if err != nil {
		return nil, err
	}
	return nil, cs.manager.UpdateCollaboratorRole(ctx, request.SessionID, request.UserID, request.TargetID, role)
}

func (cs *CodespaceService) handleRemoveCollaborator(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		TargetID int64 `cbor:"target_id"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	return nil, cs.manager.RemoveCollaborator(ctx, request.SessionID, request.UserID, request.TargetID)
}

func (cs *CodespaceService) handlePostChat(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		Body string `cbor:"body"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	if request.Body == "" {
		return nil, fmt.Errorf("missing required field: body")
	}
	message, err := cs.manager.PostChatMessage(ctx, request.SessionID, request.UserID, request.Body)
	if err != nil {
		return nil, err
	}
	return toChatDTO(message), nil
}

func (cs *CodespaceService) handleExecute(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		Source   string `cbor:"source"`
		Language string `cbor:"language"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	result, err := cs.manager.Execute(ctx, request.SessionID, request.UserID, request.Source, request.Language)
	if err != nil {
		return nil, err
	}
	cs.executions.Add(1)
	return map[string]any{
		"outcome":     result.Outcome.String(),
		"output":      result.Output,
		"truncated":   result.Truncated,
		"duration_ms": result.Duration.Milliseconds(),
	}, nil
}
