package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/cs-assist/internal"
	"gopkg.in/yaml.v3"
)

func TestJSONExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		session *internal.Session
	}{
		{"basic session", internal.CreateTestSession("test1")},
		{"empty session", internal.CreateTestSessionWithMessages("test2", []internal.Message{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&JSONExporter{}).Export(tt.session, &buf); err != nil {
				t.Fatalf("JSONExporter.Export() error = %v", err)
			}

			output := buf.String()
			var session internal.Session
			if err := json.Unmarshal([]byte(output), &session); err != nil {
				t.Fatalf("Output is not valid JSON: %v\nOutput: %s", err, output)
			}
			if session.ID != tt.session.ID {
				t.Errorf("decoded ID = %q, want %q", session.ID, tt.session.ID)
			}
			if len(session.Messages) != len(tt.session.Messages) {
				t.Errorf("decoded %d messages, want %d", len(session.Messages), len(tt.session.Messages))
			}
			if !strings.Contains(output, `"session_id"`) {
				t.Errorf("Output should use the session_id key")
			}
			if !strings.Contains(output, "  ") {
				t.Errorf("Output should be pretty-printed with indentation")
			}
		})
	}
}

func TestJSONExporter_Extension(t *testing.T) {
	if got := (&JSONExporter{}).Extension(); got != "json" {
		t.Errorf("JSONExporter.Extension() = %v, want json", got)
	}
}

func TestYAMLExporter_Export(t *testing.T) {
	session := internal.CreateTestSession("test1")

	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(session, &buf); err != nil {
		t.Fatalf("YAMLExporter.Export() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid YAML: %v\nOutput: %s", err, buf.String())
	}
	if decoded["session_id"] != "test1" {
		t.Errorf("session_id = %v, want test1", decoded["session_id"])
	}
	if decoded["status"] != "open" {
		t.Errorf("status = %v, want open", decoded["status"])
	}
	messages, ok := decoded["messages"].([]interface{})
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v, want 2 entries", decoded["messages"])
	}
	second, _ := messages[1].(map[string]interface{})
	md, _ := second["metadata"].(map[string]interface{})
	if md["workflow_id"] != "wf-test1" {
		t.Errorf("metadata.workflow_id = %v, want wf-test1", md["workflow_id"])
	}
}

func TestYAMLExporter_Extension(t *testing.T) {
	if got := (&YAMLExporter{}).Extension(); got != "yaml" {
		t.Errorf("YAMLExporter.Extension() = %v, want yaml", got)
	}
}
