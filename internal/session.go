package internal

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusOpen    Status = "open"
	StatusPending Status = "pending"
	StatusClosed  Status = "closed"
)

// Statuses lists every valid status in display order
var Statuses = []Status{StatusOpen, StatusPending, StatusClosed}

// Valid reports whether s is one of Statuses
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus converts a string into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q (want one of open, pending, closed)", ErrInvalidStatus, s)
	}
	return st, nil
}

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one troubleshooting conversation keyed by an external project id
type Session struct {
	ID        string                 `json:"session_id" yaml:"session_id"`
	Title     string                 `json:"title" yaml:"title"`
	Status    Status                 `json:"status" yaml:"status"`
	CreatedAt time.Time              `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" yaml:"updated_at"`
	Messages  []Message              `json:"messages" yaml:"messages"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Message is a single turn in a session
type Message struct {
	Role      Role             `json:"role" yaml:"role"`
	Content   string           `json:"content" yaml:"content"`
	Timestamp time.Time        `json:"timestamp" yaml:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Classification is the backend's category decision for a question
type Classification struct {
	Category   string  `json:"category" yaml:"category"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// ProcessingStep is one entry of the backend's agent trace
type ProcessingStep struct {
	Agent          string  `json:"agent" yaml:"agent"`
	Step           string  `json:"step" yaml:"step"`
	Success        bool    `json:"success" yaml:"success"`
	ProcessingTime float64 `json:"processing_time" yaml:"processing_time"`
}

// MessageMetadata carries backend details attached to an assistant message
type MessageMetadata struct {
	Classification  *Classification        `json:"classification,omitempty" yaml:"classification,omitempty"`
	QualityScore    *float64               `json:"quality_score,omitempty" yaml:"quality_score,omitempty"`
	ProcessingTime  *float64               `json:"processing_time,omitempty" yaml:"processing_time,omitempty"`
	WorkflowID      string                 `json:"workflow_id,omitempty" yaml:"workflow_id,omitempty"`
	IssueKey        string                 `json:"issue_key,omitempty" yaml:"issue_key,omitempty"`
	Source          string                 `json:"source,omitempty" yaml:"source,omitempty"`
	ProcessingSteps []ProcessingStep       `json:"processing_steps,omitempty" yaml:"processing_steps,omitempty"`
	Error           string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Extra           map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// SessionSummary is the listing view of a session
type SessionSummary struct {
	ID           string    `yaml:"session_id"`
	Title        string    `yaml:"title"`
	Status       Status    `yaml:"status"`
	CreatedAt    time.Time `yaml:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at"`
	MessageCount int       `yaml:"message_count"`
}

// Summary returns the listing view of s
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		Status:       s.Status,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: len(s.Messages),
	}
}

// LastMessage returns the most recent message, or nil for an empty session
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}
