// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/codespace-foundation/codespace/lib/clock"
	"github.com/codespace-foundation/codespace/lib/testutil"
)

func openTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store, err := Open(Config{
		Path:  filepath.Join(t.TempDir(), "store.db"),
		Clock: clk,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, clk
}

func createTestSession(t *testing.T, store *Store, ownerID int64) Session {
	t.Helper()
	sess, err := store.CreateSession(context.Background(), CreateSessionParams{
		OwnerID:          ownerID,
		Title:            testutil.UniqueID("session"),
		Description:      "test",
		IsPrivate:        true,
		Language:         "python",
		BootstrapName:    "main.py",
		BootstrapContent: "print('hi')",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func requireMainInvariant(t *testing.T, store *Store, sessionID string) {
	t.Helper()
	ctx := context.Background()
	count, err := store.MainFileCount(ctx, sessionID)
	if err != nil {
		t.Fatalf("MainFileCount: %v", err)
	}
	files, err := store.ListFiles(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) > 0 && count != 1 {
		t.Fatalf("main file invariant violated: %d files, %d main", len(files), count)
	}
	if len(files) == 0 && count != 0 {
		t.Fatalf("main flag present with zero files")
	}
}

func TestCreateSessionIsAtomicUnit(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 7)

	role, found, err := store.GetRole(ctx, sess.ID, 7)
	if err != nil || !found {
		t.Fatalf("owner role missing: found=%v err=%v", found, err)
	}
	if role != RoleOwner {
		t.Errorf("owner role = %v", role)
	}

	files, err := store.ListFiles(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0].Name != "main.py" || !files[0].IsMain {
		t.Errorf("bootstrap file wrong: %+v", files)
	}
	requireMainInvariant(t, store, sess.ID)
}

func TestAddFileDuplicateNameRejected(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	if _, err := store.AddFile(ctx, sess.ID, "util.py", "", "python"); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	_, err := store.AddFile(ctx, sess.ID, "util.py", "other", "python")
	if !errors.Is(err, ErrDuplicateFileName) {
		t.Fatalf("duplicate AddFile err = %v, want ErrDuplicateFileName", err)
	}

	// The file set is unchanged: still bootstrap + one util.py.
	files, _ := store.ListFiles(ctx, sess.ID)
	if len(files) != 2 {
		t.Errorf("file count = %d, want 2", len(files))
	}
	requireMainInvariant(t, store, sess.ID)
}

func TestDeleteOnlyFileRejected(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	files, _ := store.ListFiles(ctx, sess.ID)
	_, err := store.DeleteFile(ctx, sess.ID, files[0].ID)
	if !errors.Is(err, ErrLastFileUndeletable) {
		t.Fatalf("DeleteFile err = %v, want ErrLastFileUndeletable", err)
	}
	requireMainInvariant(t, store, sess.ID)
}

func TestDeleteMainFilePromotesByName(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	alpha, _ := store.AddFile(ctx, sess.ID, "alpha.py", "", "python")
	if _, err := store.AddFile(ctx, sess.ID, "zeta.py", "", "python"); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	files, _ := store.ListFiles(ctx, sess.ID)
	var mainID int64
	for _, file := range files {
		if file.IsMain {
			mainID = file.ID
		}
	}

	promoted, err := store.DeleteFile(ctx, sess.ID, mainID)
	if err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if promoted != alpha.ID {
		t.Errorf("promoted = %d, want alpha %d (first in name order)", promoted, alpha.ID)
	}
	requireMainInvariant(t, store, sess.ID)

	got, _ := store.GetFile(ctx, sess.ID, alpha.ID)
	if !got.IsMain {
		t.Error("alpha.py not promoted to main")
	}
}

func TestDeleteNonMainFileNoPromotion(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	extra, _ := store.AddFile(ctx, sess.ID, "extra.py", "", "python")
	promoted, err := store.DeleteFile(ctx, sess.ID, extra.ID)
	if err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if promoted != 0 {
		t.Errorf("promoted = %d, want 0", promoted)
	}
	requireMainInvariant(t, store, sess.ID)
}

func TestSetMainFileIsExclusive(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	second, _ := store.AddFile(ctx, sess.ID, "second.py", "", "python")
	third, _ := store.AddFile(ctx, sess.ID, "third.py", "", "python")

	for _, target := range []int64{second.ID, third.ID, second.ID} {
		if err := store.SetMainFile(ctx, sess.ID, target); err != nil {
			t.Fatalf("SetMainFile(%d): %v", target, err)
		}
		requireMainInvariant(t, store, sess.ID)
		got, _ := store.GetFile(ctx, sess.ID, target)
		if !got.IsMain {
			t.Fatalf("file %d not main after SetMainFile", target)
		}
	}
}

func TestToggleLockAlternates(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	for i, want := range []bool{true, false, true} {
		locked, err := store.ToggleLock(ctx, sess.ID)
		if err != nil {
			t.Fatalf("ToggleLock #%d: %v", i, err)
		}
		if locked != want {
			t.Errorf("ToggleLock #%d = %v, want %v", i, locked, want)
		}
	}
}

func TestOwnerRoleImmutable(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	if err := store.UpdateCollaboratorRole(ctx, sess.ID, 1, RoleViewer); !errors.Is(err, ErrOwnerRoleImmutable) {
		t.Errorf("demoting owner err = %v", err)
	}
	if err := store.RemoveCollaborator(ctx, sess.ID, 1); !errors.Is(err, ErrOwnerRoleImmutable) {
		t.Errorf("removing owner err = %v", err)
	}
	if err := store.AddCollaborator(ctx, sess.ID, 2, RoleOwner); !errors.Is(err, ErrOwnerRoleImmutable) {
		t.Errorf("adding second owner err = %v", err)
	}

	if err := store.AddCollaborator(ctx, sess.ID, 2, RoleEditor); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	if err := store.UpdateCollaboratorRole(ctx, sess.ID, 2, RoleOwner); !errors.Is(err, ErrOwnerRoleImmutable) {
		t.Errorf("promoting to owner err = %v", err)
	}
}

func TestAddCollaboratorIdempotenceAndRoles(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	if err := store.AddCollaborator(ctx, sess.ID, 5, RoleViewer); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	if err := store.AddCollaborator(ctx, sess.ID, 5, RoleEditor); !errors.Is(err, ErrAlreadyCollaborator) {
		t.Errorf("second add err = %v", err)
	}

	if err := store.UpdateCollaboratorRole(ctx, sess.ID, 5, RoleEditor); err != nil {
		t.Fatalf("UpdateCollaboratorRole: %v", err)
	}
	role, found, _ := store.GetRole(ctx, sess.ID, 5)
	if !found || role != RoleEditor {
		t.Errorf("role = %v found=%v", role, found)
	}

	if err := store.RemoveCollaborator(ctx, sess.ID, 5); err != nil {
		t.Fatalf("RemoveCollaborator: %v", err)
	}
	if _, found, _ := store.GetRole(ctx, sess.ID, 5); found {
		t.Error("collaborator still present after removal")
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	if _, err := store.AddFile(ctx, sess.ID, "extra.py", "", "python"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddCollaborator(ctx, sess.ID, 9, RoleViewer); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddChatMessage(ctx, sess.ID, 1, "hello"); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if _, err := store.GetSession(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession after delete err = %v", err)
	}
	files, _ := store.ListFiles(ctx, sess.ID)
	if len(files) != 0 {
		t.Errorf("files survived cascade: %d", len(files))
	}
	collaborators, _ := store.ListCollaborators(ctx, sess.ID)
	if len(collaborators) != 0 {
		t.Errorf("roles survived cascade: %d", len(collaborators))
	}
	messages, _ := store.RecentChatMessages(ctx, sess.ID, 10)
	if len(messages) != 0 {
		t.Errorf("chat survived cascade: %d", len(messages))
	}
}

func TestChatBoundedRetrieval(t *testing.T) {
	store, clk := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	for i := 0; i < 10; i++ {
		clk.Advance(time.Second)
		if _, err := store.AddChatMessage(ctx, sess.ID, 1, testutil.UniqueID("msg")); err != nil {
			t.Fatal(err)
		}
	}

	messages, err := store.RecentChatMessages(ctx, sess.ID, 3)
	if err != nil {
		t.Fatalf("RecentChatMessages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	// Chronological order, and they are the newest three.
	if !messages[0].Timestamp.Before(messages[2].Timestamp) {
		t.Error("messages not in chronological order")
	}
	sessAfter, _ := store.GetSession(ctx, sess.ID)
	if messages[2].Timestamp.Before(sessAfter.CreatedAt.Add(8 * time.Second)) {
		t.Error("window is not the newest messages")
	}
}

func TestUpdateSessionRetagsMainFile(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	err := store.UpdateSession(ctx, UpdateSessionParams{
		SessionID:    sess.ID,
		Title:        "renamed",
		Description:  "changed",
		IsPrivate:    false,
		Language:     "javascript",
		MainFileName: "main.js",
	})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	got, _ := store.GetSession(ctx, sess.ID)
	if got.Title != "renamed" || got.Language != "javascript" || got.IsPrivate {
		t.Errorf("session after update: %+v", got)
	}
	files, _ := store.ListFiles(ctx, sess.ID)
	if len(files) != 1 || files[0].Name != "main.js" || files[0].Language != "javascript" {
		t.Errorf("main file after update: %+v", files)
	}
}

func TestSetOutputAndTimer(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, store, 1)

	if err := store.SetOutput(ctx, sess.ID, "42\n"); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	if err := store.SetTimer(ctx, sess.ID, 5*time.Minute); err != nil {
		t.Fatalf("SetTimer: %v", err)
	}

	got, _ := store.GetSession(ctx, sess.ID)
	if got.Output != "42\n" {
		t.Errorf("output = %q", got.Output)
	}
	if got.TimerDuration != 5*time.Minute || got.TimerStart.IsZero() {
		t.Errorf("timer = %v start %v", got.TimerDuration, got.TimerStart)
	}

	if err := store.SetTimer(ctx, sess.ID, 0); err != nil {
		t.Fatalf("SetTimer clear: %v", err)
	}
	got, _ = store.GetSession(ctx, sess.ID)
	if got.TimerDuration != 0 || !got.TimerStart.IsZero() {
		t.Errorf("timer not cleared: %v %v", got.TimerDuration, got.TimerStart)
	}
}

func TestListSessionsForUser(t *testing.T) {
	store, clk := openTestStore(t)
	ctx := context.Background()

	owned := createTestSession(t, store, 1)
	clk.Advance(time.Second)
	other := createTestSession(t, store, 2)
	if err := store.AddCollaborator(ctx, other.ID, 1, RoleViewer); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Second)
	createTestSession(t, store, 3) // unrelated

	sessions, err := store.ListSessionsForUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListSessionsForUser: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	ids := map[string]bool{sessions[0].ID: true, sessions[1].ID: true}
	if !ids[owned.ID] || !ids[other.ID] {
		t.Errorf("wrong sessions: %v", ids)
	}
}

func TestCreateUserUniqueness(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "ada", "hash-1")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == 0 {
		t.Error("user ID not assigned")
	}
	if _, err := store.CreateUser(ctx, "ada", "hash-2"); !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("duplicate username err = %v", err)
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil || got.Username != "ada" {
		t.Errorf("GetUser = %+v, %v", got, err)
	}
}
