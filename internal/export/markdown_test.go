package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/cs-assist/internal"
)

func TestMarkdownExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		session *internal.Session
		want    []string
		notWant []string
	}{
		{
			name:    "basic session",
			session: internal.CreateTestSession("test1"),
			want: []string{
				"# Test Conversation (test1)",
				"**Status:** open",
				"**Messages:** 2",
				"## Messages",
				"**user:** (2024-03-01T09:01:00Z)",
				"How do I reset my password?",
				"**assistant:**",
				"Use the **Forgot password** link",
				"> category: JIRA_SIMPLE (90%) · quality: 85 · time: 1500ms · workflow: wf-test1",
			},
		},
		{
			name: "untitled session",
			session: &internal.Session{
				ID:       "test2",
				Status:   internal.StatusClosed,
				Messages: []internal.Message{},
			},
			want:    []string{"# Session test2", "**Status:** closed", "**Messages:** 0"},
			notWant: []string{"**Created:**"},
		},
		{
			name: "failed answer",
			session: internal.CreateTestSessionWithMessages("test3", []internal.Message{
				{Role: internal.RoleAssistant, Content: "Request failed", Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
					Metadata: &internal.MessageMetadata{Error: "HTTP error: 500 - boom"}},
			}),
			want: []string{"> error: HTTP error: 500 - boom"},
		},
		{
			name: "user emphasis is escaped",
			session: internal.CreateTestSessionWithMessages("test4", []internal.Message{
				{Role: internal.RoleUser, Content: "why is **this** bold"},
			}),
			want: []string{`why is \*\*this\*\* bold`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&MarkdownExporter{}).Export(tt.session, &buf); err != nil {
				t.Fatalf("MarkdownExporter.Export() error = %v", err)
			}

			output := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("Output should contain %q\nGot:\n%s", want, output)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(output, notWant) {
					t.Errorf("Output should not contain %q", notWant)
				}
			}
		})
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no special chars", "Hello world", "Hello world"},
		{"bold", "This is **bold** text", "This is \\*\\*bold\\*\\* text"},
		{"underscore", "This is __underlined__ text", "This is \\_\\_underlined\\_\\_ text"},
		{"code block preserved", "```\n**not bold**\n```", "```\n**not bold**\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeMarkdown(tt.input); got != tt.want {
				t.Errorf("escapeMarkdown() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkdownExporter_Extension(t *testing.T) {
	if got := (&MarkdownExporter{}).Extension(); got != "md" {
		t.Errorf("MarkdownExporter.Extension() = %v, want md", got)
	}
}
