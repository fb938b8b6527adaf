package cmd

import (
	"strings"
	"testing"

	"github.com/iksnae/cs-assist/testutil"
)

func seedCheckpoints(t *testing.T, env *testEnv) {
	t.Helper()
	testutil.InsertCheckpoint(t, env.db, "project:JCSC-1", "cp-1", "")
	testutil.InsertCheckpoint(t, env.db, "project:JCSC-1", "cp-2", "cp-1")
	testutil.InsertCheckpointWrite(t, env.db, "project:JCSC-1", "cp-2", 0)
	testutil.InsertCheckpoint(t, env.db, "project:JCSC-2", "cp-5", "")
}

func TestCheckpointCommands(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	seedCheckpoints(t, env)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "count",
			args: []string{"checkpoint", "count", "JCSC-1"},
			want: []string{"project:JCSC-1: 2 checkpoint(s)"},
		},
		{
			name: "count unknown project",
			args: []string{"checkpoint", "count", "NOPE"},
			want: []string{"project:NOPE: 0 checkpoint(s)"},
		},
		{
			name: "list",
			args: []string{"checkpoint", "list"},
			want: []string{"Found 2 thread(s)", "JCSC-1", "cp-2", "JCSC-2", "cp-5"},
		},
		{
			name:    "list with limit",
			args:    []string{"checkpoint", "list", "--limit", "1"},
			want:    []string{"Found 1 thread(s)", "JCSC-1"},
			notWant: []string{"JCSC-2"},
		},
		{
			name: "summary",
			args: []string{"checkpoint", "summary"},
			want: []string{"Connected:   yes", "Threads:     2", "Checkpoints: 3", "Latest:      JCSC-2"},
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
}

func TestCheckpointDelete(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	seedCheckpoints(t, env)

	stdout, _, err := env.run(t, "", "checkpoint", "delete", "JCSC-1")
	if err != nil {
		t.Fatalf("checkpoint delete error = %v", err)
	}
	if !strings.Contains(stdout, "Deleted 2 checkpoint(s) for project:JCSC-1") {
		t.Errorf("output = %q", stdout)
	}
	if got := testutil.CountRows(t, env.db, "checkpoints", "project:JCSC-1"); got != 0 {
		t.Errorf("checkpoints left = %d, want 0", got)
	}
	if got := testutil.CountRows(t, env.db, "checkpoint_writes", "project:JCSC-1"); got != 0 {
		t.Errorf("checkpoint writes left = %d, want 0", got)
	}
	if got := testutil.CountRows(t, env.db, "checkpoints", "project:JCSC-2"); got != 1 {
		t.Errorf("other thread = %d, want 1", got)
	}
}

func TestCheckpointCommands_StoreDown(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.configPath = testutil.WriteConfigFixture(t, "session:\n  storage_path: "+env.storagePath+"\ndatabase:\n  url: sqlite:///nonexistent/checkpoints.db\n")

	stdout, _, err := env.run(t, "", "checkpoint", "summary")
	if err != nil {
		t.Fatalf("checkpoint summary error = %v", err)
	}
	if !strings.Contains(stdout, "Connected:   no") {
		t.Errorf("output = %q", stdout)
	}

	for _, args := range [][]string{
		{"checkpoint", "count", "JCSC-1"},
		{"checkpoint", "list"},
		{"checkpoint", "delete", "JCSC-1"},
	} {
		if _, _, err := env.run(t, "", args...); err == nil {
			t.Errorf("%v should fail when the store is unreachable", args)
		}
	}
}
