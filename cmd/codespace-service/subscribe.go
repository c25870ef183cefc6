// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net"
	"time"

	"github.com/codespace-foundation/codespace/lib/broadcast"
	"github.com/codespace-foundation/codespace/lib/codec"
)

// subscribeFrame is a single CBOR value written on a subscribe stream.
// The Type field discriminates frame semantics:
//
//   - "snapshot": the full session view; sent once at stream start and
//     again after every resync (View populated)
//   - "event": a live mutation (Event populated)
//   - "resync": the subscriber's buffer overflowed and events were
//     dropped; the client should discard local state and expect a
//     fresh snapshot frame next
//   - "heartbeat": connection liveness probe (no payload)
//   - "error": terminal error, connection will close (Message populated)
type subscribeFrame struct {
	Type    string           `cbor:"type"`
	View    *sessionViewDTO  `cbor:"view,omitempty"`
	Event   *broadcast.Event `cbor:"event,omitempty"`
	Message string           `cbor:"message,omitempty"`
}

// heartbeatInterval is the time between heartbeat frames on a
// subscribe stream. The client should consider the connection dead if
// no frame (of any type) arrives within 2x this interval.
const heartbeatInterval = 30 * time.Second

// handleSubscribe is the stream handler for the "subscribe" action. It
// registers a hub subscriber, writes a snapshot of the session, then
// forwards live events until the client disconnects, the session is
// deleted, or the server shuts down.
//
// The subscriber is registered before the snapshot is collected, so
// mutations that land during the snapshot write are buffered in the
// subscriber channel and delivered after it.
func (cs *CodespaceService) handleSubscribe(ctx context.Context, raw []byte, conn net.Conn) {
	encoder := codec.NewEncoder(conn)

	request, err := decode[sessionRef](raw)
	if err != nil {
		encoder.Encode(subscribeFrame{Type: "error", Message: err.Error()})
		return
	}
	if err := request.validate(); err != nil {
		encoder.Encode(subscribeFrame{Type: "error", Message: err.Error()})
		return
	}

	done := make(chan struct{})
	defer close(done)

	sub, err := cs.manager.Subscribe(ctx, request.SessionID, request.UserID, done)
	if err != nil {
		encoder.Encode(subscribeFrame{Type: "error", Message: err.Error()})
		return
	}
	defer cs.manager.Unsubscribe(sub)
	cs.subscriptions.Add(1)

	cs.logger.Info("subscribe stream started",
		"session_id", request.SessionID,
		"user_id", request.UserID,
	)
	defer cs.logger.Info("subscribe stream ended",
		"session_id", request.SessionID,
		"user_id", request.UserID,
	)

	if !cs.writeSnapshot(ctx, encoder, request) {
		return
	}

	// Detect client disconnect: the read side returns an error once
	// the peer closes. Nothing meaningful is ever sent after the
	// initial request, so any read completion ends the stream.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	heartbeat := cs.clock.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-clientGone:
			return

		case event := <-sub.Events():
			// If events were dropped, the buffered ones are stale: the
			// fresh snapshot below already reflects their effects.
			if sub.NeedsResync() {
				sub.Drain()
				if err := encoder.Encode(subscribeFrame{Type: "resync"}); err != nil {
					return
				}
				if !cs.writeSnapshot(ctx, encoder, request) {
					return
				}
				continue
			}

			if err := encoder.Encode(subscribeFrame{Type: "event", Event: &event}); err != nil {
				cs.logger.Debug("subscribe stream write error",
					"session_id", request.SessionID, "error", err)
				return
			}
			if event.Type == broadcast.EventSessionDeleted {
				return
			}

		case <-heartbeat.C:
			if err := encoder.Encode(subscribeFrame{Type: "heartbeat"}); err != nil {
				cs.logger.Debug("subscribe stream heartbeat error",
					"session_id", request.SessionID, "error", err)
				return
			}
		}
	}
}

// writeSnapshot writes one snapshot frame. Returns false when the
// stream should end (session gone or connection failed).
func (cs *CodespaceService) writeSnapshot(ctx context.Context, encoder *codec.Encoder, request sessionRef) bool {
	view, err := cs.manager.GetSession(ctx, request.SessionID, request.UserID)
	if err != nil {
		encoder.Encode(subscribeFrame{Type: "error", Message: err.Error()})
		return false
	}
	dto := toViewDTO(view)
	if err := encoder.Encode(subscribeFrame{Type: "snapshot", View: &dto}); err != nil {
		cs.logger.Debug("subscribe stream write error during snapshot",
			"session_id", request.SessionID, "error", err)
		return false
	}
	return true
}
