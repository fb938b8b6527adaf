package internal

import (
	"time"
)

// CreateTestSession creates a test session with one question and one answer
func CreateTestSession(id string) *Session {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	score := 85.0
	processing := 1500.0
	return &Session{
		ID:        id,
		Title:     "Test Conversation",
		Status:    StatusOpen,
		CreatedAt: created,
		UpdatedAt: created.Add(2 * time.Minute),
		Messages: []Message{
			{
				Role:      RoleUser,
				Content:   "How do I reset my password?",
				Timestamp: created.Add(time.Minute),
			},
			{
				Role:      RoleAssistant,
				Content:   "Use the **Forgot password** link on the login page.",
				Timestamp: created.Add(2 * time.Minute),
				Metadata: &MessageMetadata{
					Classification: &Classification{Category: "JIRA_SIMPLE", Confidence: 0.9},
					QualityScore:   &score,
					ProcessingTime: &processing,
					WorkflowID:     "wf-" + id,
					IssueKey:       id,
				},
			},
		},
		Metadata: map[string]interface{}{},
	}
}

// CreateTestSessionWithMessages creates a test session with custom messages
func CreateTestSessionWithMessages(id string, messages []Message) *Session {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &Session{
		ID:        id,
		Title:     "Test Conversation",
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  messages,
	}
}
