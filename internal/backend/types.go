package backend

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/iksnae/cs-assist/internal"
)

// SummaryMaxRunes bounds the Summary form field.
const SummaryMaxRunes = 100

// IssueRequest is one user question for a project
type IssueRequest struct {
	ProjectID string
	Question  string
	Reporter  string
	IssueType string // defaults to "Question"
}

type comment struct {
	Content string `json:"Content"`
	Author  string `json:"Author"`
}

type issueForms struct {
	ProjectID string  `json:"Project ID"`
	IssueType string  `json:"Issue Type"`
	Reporter  string  `json:"Reporter"`
	Summary   string  `json:"Summary"`
	Comment   comment `json:"Comment"`
}

type processPayload struct {
	Forms issueForms `json:"forms"`
}

func newProcessPayload(req IssueRequest) processPayload {
	issueType := req.IssueType
	if issueType == "" {
		issueType = "Question"
	}
	return processPayload{
		Forms: issueForms{
			ProjectID: req.ProjectID,
			IssueType: issueType,
			Reporter:  req.Reporter,
			Summary:   truncateRunes(req.Question, SummaryMaxRunes),
			Comment: comment{
				Content: req.Question,
				Author:  req.Reporter,
			},
		},
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// envelope is the common response wrapper of every backend endpoint
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

type processData struct {
	CommentContent  string                    `json:"comment_content"`
	Classification  internal.Classification   `json:"classification"`
	QualityScore    *float64                  `json:"quality_score"`
	ProcessingTime  float64                   `json:"processing_time"`
	WorkflowID      string                    `json:"workflow_id"`
	IssueKey        string                    `json:"issue_key"`
	Source          string                    `json:"Source"`
	ProcessingSteps []internal.ProcessingStep `json:"processing_steps"`
}

// ProcessSuccess is a decoded successful answer
type ProcessSuccess struct {
	Answer          string
	Classification  internal.Classification
	QualityScore    *float64
	ProcessingTime  float64 // milliseconds as reported by the backend
	WorkflowID      string
	IssueKey        string
	Source          string
	ProcessingSteps []internal.ProcessingStep
}

// Metadata converts the success into message metadata for the session history.
func (s *ProcessSuccess) Metadata() *internal.MessageMetadata {
	classification := s.Classification
	processingTime := s.ProcessingTime
	return &internal.MessageMetadata{
		Classification:  &classification,
		QualityScore:    s.QualityScore,
		ProcessingTime:  &processingTime,
		WorkflowID:      s.WorkflowID,
		IssueKey:        s.IssueKey,
		Source:          s.Source,
		ProcessingSteps: s.ProcessingSteps,
	}
}

// ProcessFailure describes why a question produced no answer
type ProcessFailure struct {
	Message string
	Details json.RawMessage
	Kind    ErrorKind
	Err     error
}

// Metadata converts the failure into message metadata for the session history.
func (f *ProcessFailure) Metadata() *internal.MessageMetadata {
	md := &internal.MessageMetadata{Error: f.Message}
	if len(f.Details) > 0 {
		var details interface{}
		if json.Unmarshal(f.Details, &details) == nil {
			md.Extra = map[string]interface{}{"details": details, "kind": string(f.Kind)}
			return md
		}
	}
	md.Extra = map[string]interface{}{"kind": string(f.Kind)}
	return md
}

// ProcessResult holds exactly one of Success or Failure
type ProcessResult struct {
	Success *ProcessSuccess
	Failure *ProcessFailure
}

// OK reports whether the result is a success
func (r ProcessResult) OK() bool {
	return r.Success != nil
}

func failure(err error, details json.RawMessage) ProcessResult {
	if details == nil {
		var protoErr *ProtocolError
		if errors.As(err, &protoErr) {
			details = protoErr.Details
		}
	}
	return ProcessResult{Failure: &ProcessFailure{
		Message: err.Error(),
		Details: details,
		Kind:    KindOf(err),
		Err:     err,
	}}
}

// HealthStatus is the result of a health check
type HealthStatus struct {
	Healthy bool
	Status  string
	Uptime  time.Duration
	Data    map[string]interface{}
	Error   string
}

// SystemInfo is the backend's self-description
type SystemInfo struct {
	Data  map[string]interface{}
	Error string
}
