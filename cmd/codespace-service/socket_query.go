// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/codespace-foundation/codespace/lib/collab"
	"github.com/codespace-foundation/codespace/lib/session"
)

// Wire DTOs. Timestamps are Unix seconds; durations are seconds.

type sessionDTO struct {
	ID            string `cbor:"id"`
	Title         string `cbor:"title"`
	Description   string `cbor:"description,omitempty"`
	OwnerID       int64  `cbor:"owner_id"`
	Language      string `cbor:"language"`
	IsPrivate     bool   `cbor:"is_private"`
	EditingLocked bool   `cbor:"editing_locked"`
	Output        string `cbor:"output,omitempty"`
	TimerSeconds  int64  `cbor:"timer_seconds,omitempty"`
	TimerStart    int64  `cbor:"timer_start,omitempty"`
	CreatedAt     int64  `cbor:"created_at"`
	LastAccessed  int64  `cbor:"last_accessed"`
}

func toSessionDTO(sess session.Session) sessionDTO {
	dto := sessionDTO{
		ID:            sess.ID,
		Title:         sess.Title,
		Description:   sess.Description,
		OwnerID:       sess.OwnerID,
		Language:      sess.Language,
		IsPrivate:     sess.IsPrivate,
		EditingLocked: sess.EditingLocked,
		Output:        sess.Output,
		CreatedAt:     sess.CreatedAt.Unix(),
		LastAccessed:  sess.LastAccessed.Unix(),
	}
	if sess.TimerDuration > 0 {
		dto.TimerSeconds = int64(sess.TimerDuration / time.Second)
		dto.TimerStart = sess.TimerStart.Unix()
	}
	return dto
}

type fileDTO struct {
	ID           int64  `cbor:"id"`
	Name         string `cbor:"name"`
	Content      string `cbor:"content"`
	Language     string `cbor:"language"`
	IsMain       bool   `cbor:"is_main"`
	LastModified int64  `cbor:"last_modified"`
}

func toFileDTO(file session.File) fileDTO {
	return fileDTO{
		ID:           file.ID,
		Name:         file.Name,
		Content:      file.Content,
		Language:     file.Language,
		IsMain:       file.IsMain,
		LastModified: file.LastModified.Unix(),
	}
}

func toFileDTOs(files []session.File) []fileDTO {
	dtos := make([]fileDTO, len(files))
	for i, file := range files {
		dtos[i] = toFileDTO(file)
	}
	return dtos
}

type collaboratorDTO struct {
	UserID   int64  `cbor:"user_id"`
	Role     string `cbor:"role"`
	JoinedAt int64  `cbor:"joined_at"`
}

type chatMessageDTO struct {
	ID        int64  `cbor:"id"`
	UserID    int64  `cbor:"user_id"`
	Body      string `cbor:"body"`
	Timestamp int64  `cbor:"timestamp"`
}

func toChatDTO(message session.ChatMessage) chatMessageDTO {
	return chatMessageDTO{
		ID:        message.ID,
		UserID:    message.UserID,
		Body:      message.Body,
		Timestamp: message.Timestamp.Unix(),
	}
}

// sessionViewDTO is the get_session response and the subscribe
// snapshot body.
type sessionViewDTO struct {
	Session       sessionDTO        `cbor:"session"`
	Files         []fileDTO         `cbor:"files"`
	Collaborators []collaboratorDTO `cbor:"collaborators"`
	Chat          []chatMessageDTO  `cbor:"chat"`
}

func toViewDTO(view collab.SessionView) sessionViewDTO {
	dto := sessionViewDTO{
		Session:       toSessionDTO(view.Session),
		Files:         toFileDTOs(view.Files),
		Collaborators: make([]collaboratorDTO, len(view.Collaborators)),
		Chat:          make([]chatMessageDTO, len(view.Chat)),
	}
	for i, member := range view.Collaborators {
		dto.Collaborators[i] = collaboratorDTO{
			UserID:   member.UserID,
			Role:     member.Role.String(),
			JoinedAt: member.JoinedAt.Unix(),
		}
	}
	for i, message := range view.Chat {
		dto.Chat[i] = toChatDTO(message)
	}
	return dto
}

// --- Query handlers ---

func (cs *CodespaceService) handleGetSession(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[sessionRef](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	view, err := cs.manager.GetSession(ctx, request.SessionID, request.UserID)
	if err != nil {
		return nil, err
	}
	return toViewDTO(view), nil
}

func (cs *CodespaceService) handleListSessions(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		UserID int64 `cbor:"user_id"`
	}](raw)
	if err != nil {
		return nil, err
	}
	sessions, err := cs.manager.ListSessions(ctx, request.UserID)
	if err != nil {
		return nil, err
	}
	dtos := make([]sessionDTO, len(sessions))
	for i, sess := range sessions {
		dtos[i] = toSessionDTO(sess)
	}
	return map[string]any{"sessions": dtos}, nil
}

func (cs *CodespaceService) handleGetFile(ctx context.Context, raw []byte) (any, error) {
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
	file, err := cs.manager.GetFile(ctx, request.SessionID, request.UserID, request.FileID)
	if err != nil {
		return nil, err
	}
	return toFileDTO(file), nil
}

func (cs *CodespaceService) handleRecentChat(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		sessionRef
		Limit int `cbor:"limit"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := request.validate(); err != nil {
		return nil, err
	}
	messages, err := cs.manager.RecentChatMessages(ctx, request.SessionID, request.UserID, request.Limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]chatMessageDTO, len(messages))
	for i, message := range messages {
		dtos[i] = toChatDTO(message)
	}
	return map[string]any{"messages": dtos}, nil
}
