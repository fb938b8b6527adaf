package cmd

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/cs-assist/internal"
	"github.com/iksnae/cs-assist/testutil"
)

func TestSessionCreate(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	stdout, _, err := env.run(t, "", "session", "create", "JCSC-1", "--title", "Login issue")
	if err != nil {
		t.Fatalf("session create error = %v", err)
	}
	if !strings.Contains(stdout, "Created session JCSC-1") {
		t.Errorf("output = %q", stdout)
	}

	session, err := env.store().LoadSession("JCSC-1")
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if session.Title != "Login issue" || session.Status != internal.StatusOpen || len(session.Messages) != 0 {
		t.Errorf("created session = %+v", session)
	}
}

func TestSessionCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"invalid status", []string{"session", "create", "JCSC-1", "--status", "archived"}},
		{"invalid id", []string{"session", "create", "../escape"}},
		{"missing id", []string{"session", "create"}},
	}

	env := newTestEnv(t, "http://127.0.0.1:1")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := env.run(t, "", tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestSessionCreate_ExistingGuard(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	store := env.store()
	session, _ := store.CreateSession("JCSC-1", "Original", internal.StatusPending)
	_, _ = store.AddMessage(session, internal.RoleUser, "keep me", nil)

	_, stderr, err := env.run(t, "", "session", "create", "JCSC-1", "--title", "Replacement")
	if err != nil {
		t.Fatalf("session create error = %v", err)
	}
	if !strings.Contains(stderr, "already exists") {
		t.Errorf("stderr should warn about the existing session, got %q", stderr)
	}
	loaded, _ := store.LoadSession("JCSC-1")
	if loaded.Title != "Original" || len(loaded.Messages) != 1 {
		t.Errorf("existing session modified without --force: %+v", loaded)
	}

	if _, _, err := env.run(t, "", "session", "create", "JCSC-1", "--title", "Replacement", "--force"); err != nil {
		t.Fatalf("session create --force error = %v", err)
	}
	loaded, _ = store.LoadSession("JCSC-1")
	if loaded.Title != "Replacement" || len(loaded.Messages) != 0 || loaded.Status != internal.StatusOpen {
		t.Errorf("--force should replace the session, got %+v", loaded)
	}
}

func TestSessionList(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := internal.NewSessionStore(env.storagePath, internal.WithClock(func() time.Time { return clock }))

	for _, s := range []struct {
		id     string
		status internal.Status
	}{
		{"JCSC-1", internal.StatusOpen},
		{"JCSC-2", internal.StatusClosed},
		{"JCSC-3", internal.StatusOpen},
	} {
		if _, err := store.CreateSession(s.id, "Title "+s.id, s.status); err != nil {
			t.Fatal(err)
		}
		clock = clock.Add(time.Minute)
	}

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "all sessions",
			args: []string{"session", "list"},
			want: []string{"Found 3 session(s)", "JCSC-1", "JCSC-2", "JCSC-3"},
		},
		{
			name:    "status filter",
			args:    []string{"session", "list", "--status", "closed"},
			want:    []string{"Found 1 session(s)", "JCSC-2"},
			notWant: []string{"JCSC-1", "JCSC-3"},
		},
		{
			name:    "limit keeps most recent",
			args:    []string{"session", "list", "--limit", "1"},
			want:    []string{"Found 3 session(s)", "JCSC-3", "and 2 more"},
			notWant: []string{"JCSC-1"},
		},
		{
			name: "no match",
			args: []string{"session", "list", "--status", "pending"},
			want: []string{"No sessions found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := env.run(t, "", tt.args...)
			if err != nil {
				t.Fatalf("%v error = %v", tt.args, err)
			}
			for _, want := range tt.want {
				if !strings.Contains(stdout, want) {
					t.Errorf("output should contain %q, got:\n%s", want, stdout)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(stdout, notWant) {
					t.Errorf("output should not contain %q, got:\n%s", notWant, stdout)
				}
			}
		})
	}

	if _, _, err := env.run(t, "", "session", "list", "--status", "bogus"); err == nil {
		t.Error("session list --status bogus should fail")
	}
}

func TestSessionShow(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	testutil.WriteFixture(t, env.storagePath, "JCSC-7.json", strings.Replace(testutil.SessionRecordFixture, "%s", "JCSC-7", 1))

	stdout, _, err := env.run(t, "", "session", "show", "JCSC-7")
	if err != nil {
		t.Fatalf("session show error = %v", err)
	}
	for _, want := range []string{"Imported", "[pending]", "ID: JCSC-7", "Where is my invoice?", "Invoices are under **Billing**.", "category: JIRA_SIMPLE (80%)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output should contain %q, got:\n%s", want, stdout)
		}
	}

	stdout, _, err = env.run(t, "", "session", "show", "JCSC-7", "--limit", "1")
	if err != nil {
		t.Fatalf("session show --limit error = %v", err)
	}
	if strings.Contains(stdout, "Where is my invoice?") || !strings.Contains(stdout, "1 earlier message(s) hidden") {
		t.Errorf("--limit 1 should hide the first message, got:\n%s", stdout)
	}

	_, _, err = env.run(t, "", "session", "show", "missing")
	if !errors.Is(err, internal.ErrSessionNotFound) {
		t.Errorf("session show missing error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionShow_CheckpointContext(t *testing.T) {
	tests := []struct {
		name        string
		checkpoints int
		storeDown   bool
		want        string
	}{
		{"no checkpoints", 0, false, "Context: none"},
		{"with checkpoints", 2, false, "Context: enabled (2 checkpoint(s))"},
		{"store unreachable", 0, true, "Context: checkpoint store unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "http://127.0.0.1:1")
			_, _ = env.store().CreateSession("JCSC-1", "t", internal.StatusOpen)
			testutil.InsertCheckpoint(t, env.db, "project:JCSC-2", "cp-1", "")
			parent := ""
			for i := 1; i <= tt.checkpoints; i++ {
				id := fmt.Sprintf("cp-%d", i)
				testutil.InsertCheckpoint(t, env.db, "project:JCSC-1", id, parent)
				parent = id
			}
			if tt.storeDown {
				env.configPath = testutil.WriteConfigFixture(t, "session:\n  storage_path: "+env.storagePath+
					"\ndatabase:\n  url: sqlite:///nonexistent/checkpoints.db\n")
			}

			stdout, _, err := env.run(t, "", "session", "show", "JCSC-1")
			if err != nil {
				t.Fatalf("session show error = %v", err)
			}
			if !strings.Contains(stdout, tt.want) {
				t.Errorf("output should contain %q, got:\n%s", tt.want, stdout)
			}
		})
	}
}

func TestSessionStatus(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	_, _ = env.store().CreateSession("JCSC-1", "t", internal.StatusOpen)

	stdout, _, err := env.run(t, "", "session", "status", "JCSC-1", "pending")
	if err != nil {
		t.Fatalf("session status error = %v", err)
	}
	if !strings.Contains(stdout, "open -> pending") {
		t.Errorf("output = %q", stdout)
	}
	if s, _ := env.store().LoadSession("JCSC-1"); s.Status != internal.StatusPending {
		t.Errorf("status = %q, want pending", s.Status)
	}

	if _, _, err := env.run(t, "", "session", "status", "JCSC-1", "archived"); !errors.Is(err, internal.ErrInvalidStatus) {
		t.Errorf("invalid status error = %v, want ErrInvalidStatus", err)
	}
}

func TestSessionClear(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	store := env.store()
	session, _ := store.CreateSession("JCSC-1", "t", internal.StatusOpen)
	_, _ = store.AddMessage(session, internal.RoleUser, "one", nil)
	_, _ = store.AddMessage(session, internal.RoleAssistant, "two", nil)

	stdout, _, err := env.run(t, "", "session", "clear", "JCSC-1")
	if err != nil {
		t.Fatalf("session clear error = %v", err)
	}
	if !strings.Contains(stdout, "Cleared 2 message(s)") {
		t.Errorf("output = %q", stdout)
	}
	if s, _ := store.LoadSession("JCSC-1"); len(s.Messages) != 0 {
		t.Errorf("messages after clear = %d, want 0", len(s.Messages))
	}
}

func TestSessionDelete(t *testing.T) {
	tests := []struct {
		name            string
		args            []string
		wantCheckpoints int
	}{
		{"cascades into checkpoints", []string{"session", "delete", "JCSC-1"}, 0},
		{"keeps checkpoints", []string{"session", "delete", "JCSC-1", "--keep-checkpoints"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "http://127.0.0.1:1")
			_, _ = env.store().CreateSession("JCSC-1", "t", internal.StatusOpen)
			testutil.InsertCheckpoint(t, env.db, "project:JCSC-1", "cp-1", "")
			testutil.InsertCheckpoint(t, env.db, "project:JCSC-1", "cp-2", "cp-1")
			testutil.InsertCheckpoint(t, env.db, "project:JCSC-2", "cp-1", "")

			stdout, _, err := env.run(t, "", tt.args...)
			if err != nil {
				t.Fatalf("%v error = %v", tt.args, err)
			}
			if !strings.Contains(stdout, "Deleted session JCSC-1") {
				t.Errorf("output = %q", stdout)
			}
			if _, err := env.store().LoadSession("JCSC-1"); !errors.Is(err, internal.ErrSessionNotFound) {
				t.Errorf("LoadSession after delete error = %v", err)
			}
			if got := testutil.CountRows(t, env.db, "checkpoints", "project:JCSC-1"); got != tt.wantCheckpoints {
				t.Errorf("checkpoints left = %d, want %d", got, tt.wantCheckpoints)
			}
			if got := testutil.CountRows(t, env.db, "checkpoints", "project:JCSC-2"); got != 1 {
				t.Errorf("other thread checkpoints = %d, want 1", got)
			}
		})
	}
}

func TestSessionDelete_UnreachableCheckpointStore(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	_, _ = env.store().CreateSession("JCSC-1", "t", internal.StatusOpen)
	path := testutil.WriteConfigFixture(t, "session:\n  storage_path: "+env.storagePath+"\ndatabase:\n  url: sqlite:///nonexistent/checkpoints.db\n")
	env.configPath = path

	_, stderr, err := env.run(t, "", "session", "delete", "JCSC-1")
	if err != nil {
		t.Fatalf("session delete should succeed without a checkpoint store, error = %v", err)
	}
	if !strings.Contains(stderr, "were not deleted") {
		t.Errorf("stderr should warn about checkpoints, got %q", stderr)
	}
	if _, err := env.store().LoadSession("JCSC-1"); !errors.Is(err, internal.ErrSessionNotFound) {
		t.Errorf("session should be deleted, LoadSession error = %v", err)
	}
}

func TestSessionCleanup(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	old := internal.NewSessionStore(env.storagePath, internal.WithClock(func() time.Time {
		return time.Now().Add(-48 * time.Hour)
	}))
	_, _ = old.CreateSession("OLD-1", "stale", internal.StatusClosed)
	_, _ = env.store().CreateSession("NEW-1", "fresh", internal.StatusOpen)

	stdout, _, err := env.run(t, "", "session", "cleanup", "--days", "1")
	if err != nil {
		t.Fatalf("session cleanup error = %v", err)
	}
	if !strings.Contains(stdout, "Removed 1 session(s)") {
		t.Errorf("output = %q", stdout)
	}
	if _, err := env.store().LoadSession("OLD-1"); err == nil {
		t.Error("OLD-1 should be removed")
	}
	if _, err := env.store().LoadSession("NEW-1"); err != nil {
		t.Errorf("NEW-1 should be kept: %v", err)
	}

	// Default window is session.expiry_days (30).
	stdout, _, err = env.run(t, "", "session", "cleanup")
	if err != nil {
		t.Fatalf("session cleanup error = %v", err)
	}
	if !strings.Contains(stdout, "Removed 0 session(s) older than 30 day(s)") {
		t.Errorf("output = %q", stdout)
	}
}

func TestSessionReindex(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	testutil.WriteFixture(t, env.storagePath, "JCSC-7.json", strings.Replace(testutil.SessionRecordFixture, "%s", "JCSC-7", 1))
	testutil.WriteFixture(t, env.storagePath, "sessions.yaml", "sessions: []\n")

	stdout, _, err := env.run(t, "", "session", "reindex")
	if err != nil {
		t.Fatalf("session reindex error = %v", err)
	}
	if !strings.Contains(stdout, "Indexed 1 session(s)") {
		t.Errorf("output = %q", stdout)
	}

	index, err := env.store().LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	if len(index.Sessions) != 1 || index.Sessions[0].ID != "JCSC-7" {
		t.Errorf("index = %+v", index.Sessions)
	}
}
