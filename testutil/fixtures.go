package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFixture writes content to name under dir and returns the full path
func WriteFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

// WriteConfigFixture writes a config.yaml into a fresh temp directory
func WriteConfigFixture(t *testing.T, content string) string {
	t.Helper()
	return WriteFixture(t, CreateTempDir(t), "config.yaml", content)
}

// SessionRecordFixture is a minimal session record as written by older clients
const SessionRecordFixture = `{
  "session_id": "%s",
  "title": "Imported",
  "status": "pending",
  "created_at": "2024-01-10T08:00:00Z",
  "updated_at": "2024-01-10T08:05:00Z",
  "messages": [
    {"role": "user", "content": "Where is my invoice?", "timestamp": "2024-01-10T08:00:00Z"},
    {"role": "assistant", "content": "Invoices are under **Billing**.", "timestamp": "2024-01-10T08:05:00Z",
     "metadata": {"workflow_id": "wf-1", "classification": {"category": "JIRA_SIMPLE", "confidence": 0.8}}}
  ],
  "metadata": {}
}`
