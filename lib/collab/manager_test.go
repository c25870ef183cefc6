// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package collab

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/codespace-foundation/codespace/lib/access"
	"github.com/codespace-foundation/codespace/lib/broadcast"
	"github.com/codespace-foundation/codespace/lib/clock"
	"github.com/codespace-foundation/codespace/lib/language"
	"github.com/codespace-foundation/codespace/lib/runner"
	"github.com/codespace-foundation/codespace/lib/session"
	"github.com/codespace-foundation/codespace/lib/testutil"
	"github.com/codespace-foundation/codespace/sandbox"
)

// testRegistry has plaintext (unsupported) plus a shell toolchain so
// executions run on any host without real interpreters installed.
func testRegistry() *language.Registry {
	return language.New([]language.Language{
		{ID: "plaintext", DisplayName: "Plain Text", Extension: "txt", Starter: ""},
		{
			ID:          "shell",
			DisplayName: "Shell",
			Extension:   "sh",
			Starter:     "echo 'hello'",
			Toolchain: language.Toolchain{
				Kind: language.Interpreted,
				Run:  []string{"sh", language.PlaceholderSource},
			},
		},
	})
}

type testEnv struct {
	manager *Manager
	store   *session.Store
	owner   session.User
	editor  session.User
	viewer  session.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := session.Open(session.Config{
		Path:  filepath.Join(t.TempDir(), "collab.db"),
		Clock: clock.Real(),
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sb, err := sandbox.New(sandbox.Config{Mode: sandbox.IsolationNone})
	if err != nil {
		t.Fatal(err)
	}
	run, err := runner.New(runner.Config{
		Sandbox: sb,
		BaseDir: t.TempDir(),
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	manager, err := New(Config{
		Store:    store,
		Registry: testRegistry(),
		Runner:   run,
		Hub:      broadcast.NewHub(nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{manager: manager, store: store}
	for _, u := range []*session.User{&env.owner, &env.editor, &env.viewer} {
		*u, err = store.CreateUser(ctx, testutil.UniqueID("user"), "hash")
		if err != nil {
			t.Fatalf("creating user: %v", err)
		}
	}
	return env
}

// createSession makes a private shell session owned by env.owner, with
// env.editor and env.viewer as members.
func (env *testEnv) createSession(t *testing.T) session.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := env.manager.CreateSession(ctx, CreateSessionParams{
		OwnerID:   env.owner.ID,
		Title:     testutil.UniqueID("session"),
		Language:  "shell",
		IsPrivate: true,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := env.manager.AddCollaborator(ctx, sess.ID, env.owner.ID, env.editor.ID, session.RoleEditor); err != nil {
		t.Fatalf("adding editor: %v", err)
	}
	if err := env.manager.AddCollaborator(ctx, sess.ID, env.owner.ID, env.viewer.ID, session.RoleViewer); err != nil {
		t.Fatalf("adding viewer: %v", err)
	}
	return sess
}

func (env *testEnv) subscribe(t *testing.T, sessionID string, userID int64) *broadcast.Subscriber {
	t.Helper()
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	sub, err := env.manager.Subscribe(context.Background(), sessionID, userID, done)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	return sub
}

func requireEvent(t *testing.T, sub *broadcast.Subscriber, want broadcast.EventType) broadcast.Event {
	t.Helper()
	for {
		event := testutil.RequireReceive(t, sub.Events(), 5*time.Second, "waiting for %s", want)
		if event.Type == want {
			return event
		}
	}
}

func TestCreateSessionResolvesUnknownLanguage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, err := env.manager.CreateSession(ctx, CreateSessionParams{
		OwnerID:  env.owner.ID,
		Title:    "mystery",
		Language: "cobol-2086",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Language != "plaintext" {
		t.Errorf("Language = %q, want plaintext fallback", sess.Language)
	}
	view, err := env.manager.GetSession(ctx, sess.ID, env.owner.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(view.Files) != 1 || view.Files[0].Name != "main.txt" {
		t.Errorf("bootstrap files = %+v, want single main.txt", view.Files)
	}
}

func TestViewerCannotMutate(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	ctx := context.Background()

	if _, err := env.manager.AddFile(ctx, sess.ID, env.viewer.ID, "x.sh", "", "shell"); !errors.Is(err, access.ErrPermissionDenied) {
		t.Errorf("viewer AddFile err = %v, want permission denied", err)
	}
	if _, err := env.manager.ToggleLock(ctx, sess.ID, env.editor.ID); !errors.Is(err, access.ErrPermissionDenied) {
		t.Errorf("editor ToggleLock err = %v, want permission denied", err)
	}
	if err := env.manager.DeleteSession(ctx, sess.ID, env.editor.ID); !errors.Is(err, access.ErrPermissionDenied) {
		t.Errorf("editor DeleteSession err = %v, want permission denied", err)
	}
}

func TestLockBlocksEditsUntilToggledOff(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	ctx := context.Background()
	sub := env.subscribe(t, sess.ID, env.viewer.ID)

	locked, err := env.manager.ToggleLock(ctx, sess.ID, env.owner.ID)
	if err != nil || !locked {
		t.Fatalf("ToggleLock = %v, %v", locked, err)
	}
	event := requireEvent(t, sub, broadcast.EventLockStatusChanged)
	if payload := event.Payload.(LockPayload); !payload.Locked {
		t.Errorf("payload = %+v, want locked", payload)
	}

	if _, err := env.manager.AddFile(ctx, sess.ID, env.editor.ID, "x.sh", "", "shell"); !errors.Is(err, access.ErrSessionLocked) {
		t.Errorf("AddFile under lock err = %v, want session locked", err)
	}
	// The owner is subject to the lock too.
	if err := env.manager.UpdateFileContent(ctx, sess.ID, env.owner.ID, 1, "x"); !errors.Is(err, access.ErrSessionLocked) {
		t.Errorf("owner edit under lock err = %v, want session locked", err)
	}

	if locked, err = env.manager.ToggleLock(ctx, sess.ID, env.owner.ID); err != nil || locked {
		t.Fatalf("second ToggleLock = %v, %v", locked, err)
	}
	if _, err := env.manager.AddFile(ctx, sess.ID, env.editor.ID, "x.sh", "", "shell"); err != nil {
		t.Errorf("AddFile after unlock: %v", err)
	}
}

func TestFileLifecycleBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	ctx := context.Background()
	sub := env.subscribe(t, sess.ID, env.viewer.ID)

	added, err := env.manager.AddFile(ctx, sess.ID, env.editor.ID, "aaa.sh", "echo a", "shell")
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	event := requireEvent(t, sub, broadcast.EventFileListChanged)
	if payload := event.Payload.(FileListPayload); len(payload.Files) != 2 {
		t.Errorf("file list = %d files, want 2", len(payload.Files))
	}

	if err := env.manager.UpdateFileContent(ctx, sess.ID, env.editor.ID, added.ID, "echo b"); err != nil {
		t.Fatalf("UpdateFileContent: %v", err)
	}
	event = requireEvent(t, sub, broadcast.EventFileContentChanged)
	if payload := event.Payload.(FileContentPayload); payload.Content != "echo b" {
		t.Errorf("content payload = %+v", payload)
	}

	if err := env.manager.SetMainFile(ctx, sess.ID, env.editor.ID, added.ID); err != nil {
		t.Fatalf("SetMainFile: %v", err)
	}
	event = requireEvent(t, sub, broadcast.EventActiveFileChanged)
	if payload := event.Payload.(ActiveFilePayload); payload.FileID != added.ID {
		t.Errorf("active file = %d, want %d", payload.FileID, added.ID)
	}
}

func TestDeleteMainFileAnnouncesPromotion(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	ctx := context.Background()

	view, err := env.manager.GetSession(ctx, sess.ID, env.owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	mainID := view.Files[0].ID

	other, err := env.manager.AddFile(ctx, sess.ID, env.editor.ID, "zzz.sh", "", "shell")
	if err != nil {
		t.Fatal(err)
	}

	sub := env.subscribe(t, sess.ID, env.viewer.ID)
	if err := env.manager.DeleteFile(ctx, sess.ID, env.editor.ID, mainID); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	event := requireEvent(t, sub, broadcast.EventActiveFileChanged)
	if payload := event.Payload.(ActiveFilePayload); payload.FileID != other.ID {
		t.Errorf("promoted file = %d, want %d", payload.FileID, other.ID)
	}
}

func TestJoinSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	public, err := env.manager.CreateSession(ctx, CreateSessionParams{
		OwnerID:  env.owner.ID,
		Title:    "public",
		Language: "shell",
	})
	if err != nil {
		t.Fatal(err)
	}

	role, err := env.manager.JoinSession(ctx, public.ID, env.viewer.ID)
	if err != nil || role != session.RoleViewer {
		t.Fatalf("JoinSession = %v, %v", role, err)
	}
	// Idempotent: joining again keeps the existing role.
	if err := env.manager.UpdateCollaboratorRole(ctx, public.ID, env.owner.ID, env.viewer.ID, session.RoleEditor); err != nil {
		t.Fatal(err)
	}
	role, err = env.manager.JoinSession(ctx, public.ID, env.viewer.ID)
	if err != nil || role != session.RoleEditor {
		t.Errorf("rejoin = %v, %v, want existing editor role", role, err)
	}

	private := env.createSession(t)
	stranger, err := env.store.CreateUser(ctx, testutil.UniqueID("user"), "hash")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.manager.JoinSession(ctx, private.ID, stranger.ID); !errors.Is(err, access.ErrPermissionDenied) {
		t.Errorf("joining private session err = %v, want permission denied", err)
	}
}

func TestExecutePersistsAndBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	ctx := context.Background()

	view, err := env.manager.GetSession(ctx, sess.ID, env.owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	mainBefore := view.Files[0]

	sub := env.subscribe(t, sess.ID, env.viewer.ID)
	// The source is the caller's buffer: nothing needs to be saved
	// before a run, and the run language defaults to the session's.
	result, err := env.manager.Execute(ctx, sess.ID, env.editor.ID, "echo ran-fine", "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Outcome != runner.OutcomeSuccess {
		t.Fatalf("Outcome = %v, output %q", result.Outcome, result.Output)
	}

	event := requireEvent(t, sub, broadcast.EventExecutionOutput)
	payload := event.Payload.(ExecutionPayload)
	if payload.Outcome != "success" || payload.Output != result.Output {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Language != sess.Language {
		t.Errorf("payload language = %q, want session language %q", payload.Language, sess.Language)
	}

	view, err = env.manager.GetSession(ctx, sess.ID, env.owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Session.Output != result.Output {
		t.Errorf("persisted output = %q, want %q", view.Session.Output, result.Output)
	}
	// The run must not have touched the stored file.
	if view.Files[0].Content != mainBefore.Content {
		t.Errorf("stored file content changed from %q to %q", mainBefore.Content, view.Files[0].Content)
	}
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess, err := env.manager.CreateSession(ctx, CreateSessionParams{
		OwnerID:  env.owner.ID,
		Title:    "notes",
		Language: "plaintext",
	})
	if err != nil {
		t.Fatal(err)
	}
	// The session's own language has no toolchain.
	_, err = env.manager.Execute(ctx, sess.ID, env.owner.ID, "text", "")
	if !errors.Is(err, runner.ErrUnsupportedLanguage) {
		t.Errorf("err = %v, want ErrUnsupportedLanguage", err)
	}

	// A language ID absent from the registry entirely.
	_, err = env.manager.Execute(ctx, sess.ID, env.owner.ID, "text", "klingon")
	if !errors.Is(err, runner.ErrUnsupportedLanguage) {
		t.Errorf("unknown language err = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestChatIgnoresLock(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	ctx := context.Background()

	if _, err := env.manager.ToggleLock(ctx, sess.ID, env.owner.ID); err != nil {
		t.Fatal(err)
	}
	sub := env.subscribe(t, sess.ID, env.editor.ID)

	message, err := env.manager.PostChatMessage(ctx, sess.ID, env.viewer.ID, "still here")
	if err != nil {
		t.Fatalf("PostChatMessage under lock: %v", err)
	}
	event := requireEvent(t, sub, broadcast.EventChatMessage)
	if payload := event.Payload.(session.ChatMessage); payload.ID != message.ID {
		t.Errorf("payload = %+v", payload)
	}
}

func TestUpdateSessionRetagsAndBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	ctx := context.Background()
	sub := env.subscribe(t, sess.ID, env.viewer.ID)

	err := env.manager.UpdateSession(ctx, UpdateSessionParams{
		SessionID: sess.ID,
		ActorID:   env.owner.ID,
		Title:     "renamed",
		Language:  "plaintext",
		IsPrivate: true,
	})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	event := requireEvent(t, sub, broadcast.EventSessionUpdated)
	updated := event.Payload.(session.Session)
	if updated.Title != "renamed" || updated.Language != "plaintext" {
		t.Errorf("session payload = %+v", updated)
	}
	event = requireEvent(t, sub, broadcast.EventFileListChanged)
	files := event.Payload.(FileListPayload).Files
	foundMain := false
	for _, f := range files {
		if f.IsMain && f.Name == "main.txt" {
			foundMain = true
		}
	}
	if !foundMain {
		t.Errorf("main file not renamed after retag: %+v", files)
	}
}

func TestDeleteSessionBroadcastsTerminalEvent(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	ctx := context.Background()
	sub := env.subscribe(t, sess.ID, env.viewer.ID)

	if err := env.manager.DeleteSession(ctx, sess.ID, env.owner.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	requireEvent(t, sub, broadcast.EventSessionDeleted)

	if _, err := env.manager.GetSession(ctx, sess.ID, env.owner.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("GetSession after delete err = %v, want not found", err)
	}
}

func TestStrangerCannotSubscribeToPrivateSession(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	ctx := context.Background()

	stranger, err := env.store.CreateUser(ctx, testutil.UniqueID("user"), "hash")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	defer close(done)
	if _, err := env.manager.Subscribe(ctx, sess.ID, stranger.ID, done); !errors.Is(err, access.ErrPermissionDenied) {
		t.Errorf("Subscribe err = %v, want permission denied", err)
	}
}
