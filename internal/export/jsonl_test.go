package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/iksnae/cs-assist/internal"
)

func TestJSONLExporter_Export(t *testing.T) {
	tests := []struct {
		name      string
		session   *internal.Session
		wantLines int
	}{
		{"basic session", internal.CreateTestSession("test1"), 2},
		{"empty session", internal.CreateTestSessionWithMessages("test2", []internal.Message{}), 0},
		{
			name: "message without timestamp",
			session: internal.CreateTestSessionWithMessages("test3", []internal.Message{
				{Role: internal.RoleUser, Content: "Hello"},
			}),
			wantLines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&JSONLExporter{}).Export(tt.session, &buf); err != nil {
				t.Fatalf("JSONLExporter.Export() error = %v", err)
			}

			scanner := bufio.NewScanner(&buf)
			lines := 0
			for scanner.Scan() {
				var obj map[string]interface{}
				if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
					t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
				}
				msg := tt.session.Messages[lines]
				if obj["role"] != string(msg.Role) {
					t.Errorf("line %d role = %v, want %v", lines+1, obj["role"], msg.Role)
				}
				if obj["content"] != msg.Content {
					t.Errorf("line %d content = %v, want %v", lines+1, obj["content"], msg.Content)
				}
				if obj["index"] != float64(lines) {
					t.Errorf("line %d index = %v, want %d", lines+1, obj["index"], lines)
				}
				if obj["status"] != string(tt.session.Status) {
					t.Errorf("line %d status = %v", lines+1, obj["status"])
				}
				if obj["session_id"] != tt.session.ID {
					t.Errorf("line %d session_id = %v", lines+1, obj["session_id"])
				}
				if _, has := obj["timestamp"]; has == msg.Timestamp.IsZero() {
					t.Errorf("line %d timestamp presence = %v, want %v", lines+1, has, !msg.Timestamp.IsZero())
				}
				if _, has := obj["metadata"]; has != (msg.Metadata != nil) {
					t.Errorf("line %d metadata presence = %v", lines+1, has)
				}
				lines++
			}

			if lines != tt.wantLines {
				t.Errorf("JSONLExporter.Export() wrote %d lines, want %d", lines, tt.wantLines)
			}
		})
	}
}

func TestJSONLExporter_Extension(t *testing.T) {
	if got := (&JSONLExporter{}).Extension(); got != "jsonl" {
		t.Errorf("JSONLExporter.Extension() = %v, want jsonl", got)
	}
}
