// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package collab

import (
	"context"
	"time"

	"github.com/codespace-foundation/codespace/lib/access"
	"github.com/codespace-foundation/codespace/lib/broadcast"
	"github.com/codespace-foundation/codespace/lib/language"
	"github.com/codespace-foundation/codespace/lib/runner"
)

// ExecutionPayload is the broadcast payload of a finished execution.
type ExecutionPayload struct {
	Language  string        `cbor:"language"`
	Outcome   string        `cbor:"outcome"`
	Output    string        `cbor:"output"`
	Truncated bool          `cbor:"truncated,omitempty"`
	Duration  time.Duration `cbor:"duration"`
}

// Execute runs caller-supplied source through the sandboxed pipeline,
// persists the output as the session's latest result, and broadcasts
// it. The source is the caller's current buffer, not a stored file: a
// run never reads or mutates the session's files, so executing unsaved
// edits does not overwrite shared state. An empty languageID selects
// the session's language; an unknown one fails with
// runner.ErrUnsupportedLanguage.
//
// The per-session lock is NOT held across the toolchain run; only the
// authorization, the output write, and the broadcast are serialized.
// A long-running execution must not block edits in the same session.
func (m *Manager) Execute(ctx context.Context, sessionID string, actorID int64, source, languageID string) (runner.Result, error) {
	sess, err := m.authorize(ctx, sessionID, actorID, access.ActionExecute)
	if err != nil {
		return runner.Result{}, err
	}
	if languageID == "" {
		languageID = sess.Language
	}
	lang, ok := m.registry.Lookup(languageID)
	if !ok {
		// Unknown IDs flow through with a zero (unsupported) toolchain
		// so the pipeline reports them uniformly.
		lang = language.Language{ID: languageID}
	}

	result, err := m.runner.Execute(ctx, lang, source)
	if err != nil {
		return runner.Result{}, err
	}

	unlock := m.lockSession(sessionID)
	defer unlock()
	if err := m.store.SetOutput(ctx, sessionID, result.Output); err != nil {
		return runner.Result{}, err
	}
	m.publish(broadcast.EventExecutionOutput, sessionID, ExecutionPayload{
		Language:  lang.ID,
		Outcome:   result.Outcome.String(),
		Output:    result.Output,
		Truncated: result.Truncated,
		Duration:  result.Duration,
	})
	return result, nil
}
