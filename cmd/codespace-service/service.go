// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/codespace-foundation/codespace/lib/clock"
	"github.com/codespace-foundation/codespace/lib/codec"
	"github.com/codespace-foundation/codespace/lib/collab"
	"github.com/codespace-foundation/codespace/lib/language"
	"github.com/codespace-foundation/codespace/lib/service"
	"github.com/codespace-foundation/codespace/lib/session"
	"github.com/codespace-foundation/codespace/lib/version"
)

// CodespaceService holds the state behind the socket protocol.
type CodespaceService struct {
	manager *collab.Manager
	store   *session.Store
	clock   clock.Clock
	logger  *slog.Logger

	// Operation counters for the status action.
	executions    atomic.Uint64
	subscriptions atomic.Uint64
}

// registerActions wires every protocol action to the socket server.
func (cs *CodespaceService) registerActions(server *service.SocketServer) {
	// Queries.
	server.Handle("status", cs.handleStatus)
	server.Handle("list_languages", cs.handleListLanguages)
	server.Handle("get_session", cs.handleGetSession)
	server.Handle("list_sessions", cs.handleListSessions)
	server.Handle("get_file", cs.handleGetFile)
	server.Handle("recent_chat", cs.handleRecentChat)

	// Mutations.
	server.Handle("create_user", cs.handleCreateUser)
	server.Handle("create_session", cs.handleCreateSession)
	server.Handle("update_session", cs.handleUpdateSession)
	server.Handle("delete_session", cs.handleDeleteSession)
	server.Handle("join_session", cs.handleJoinSession)
	server.Handle("toggle_lock", cs.handleToggleLock)
	server.Handle("set_timer", cs.handleSetTimer)
	server.Handle("add_file", cs.handleAddFile)
	server.Handle("update_file", cs.handleUpdateFile)
	server.Handle("delete_file", cs.handleDeleteFile)
	server.Handle("set_main_file", cs.handleSetMainFile)
	server.Handle("add_collaborator", cs.handleAddCollaborator)
	server.Handle("update_collaborator", cs.handleUpdateCollaborator)
	server.Handle("remove_collaborator", cs.handleRemoveCollaborator)
	server.Handle("post_chat", cs.handlePostChat)
	server.Handle("execute", cs.handleExecute)

	// Streams.
	server.HandleStream("subscribe", cs.handleSubscribe)
}

// decode unmarshals a raw request into the handler's request struct.
func decode[T any](raw []byte) (T, error) {
	var request T
	if err := codec.Unmarshal(raw, &request); err != nil {
		return request, fmt.Errorf("invalid request: %w", err)
	}
	return request, nil
}

// sessionRef is the request fragment shared by every session-scoped
// action: which session, acting as whom.
type sessionRef struct {
	SessionID string `cbor:"session_id"`
	UserID    int64  `cbor:"user_id"`
}

func (r sessionRef) validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("missing required field: session_id")
	}
	if r.UserID == 0 {
		return fmt.Errorf("missing required field: user_id")
	}
	return nil
}

// statusResponse is the response for the "status" action.
type statusResponse struct {
	Version       string `cbor:"version"`
	Executions    uint64 `cbor:"executions"`
	Subscriptions uint64 `cbor:"subscriptions"`
	Time          int64  `cbor:"time"`
}

func (cs *CodespaceService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	return statusResponse{
		Version:       version.Info(),
		Executions:    cs.executions.Load(),
		Subscriptions: cs.subscriptions.Load(),
		Time:          cs.clock.Now().Unix(),
	}, nil
}

// languageInfo is one entry in the list_languages response.
type languageInfo struct {
	ID          string `cbor:"id"`
	DisplayName string `cbor:"display_name"`
	Extension   string `cbor:"extension"`
	Executable  bool   `cbor:"executable"`
}

func (cs *CodespaceService) handleListLanguages(ctx context.Context, raw []byte) (any, error) {
	registry := cs.manager.Registry()
	infos := make([]languageInfo, 0, len(registry.IDs()))
	for _, id := range registry.IDs() {
		lang, _ := registry.Lookup(id)
		infos = append(infos, languageInfo{
			ID:          lang.ID,
			DisplayName: lang.DisplayName,
			Extension:   lang.Extension,
			Executable:  lang.Toolchain.Kind != language.Unsupported,
		})
	}
	return map[string]any{"languages": infos}, nil
}
