package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/cs-assist/internal"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct{}

// Export exports a session to Markdown format
func (e *MarkdownExporter) Export(session *internal.Session, w io.Writer) error {
	// Header
	if session.Title != "" {
		_, _ = fmt.Fprintf(w, "# %s (%s)\n\n", session.Title, session.ID)
	} else {
		_, _ = fmt.Fprintf(w, "# Session %s\n\n", session.ID)
	}

	_, _ = fmt.Fprintf(w, "**Status:** %s  \n", session.Status)
	if !session.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", session.CreatedAt.Format(time.RFC3339))
	}
	if !session.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Updated:** %s  \n", session.UpdatedAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(session.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	for i, msg := range session.Messages {
		timestamp := ""
		if !msg.Timestamp.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp.Format(time.RFC3339))
		}

		content := msg.Content
		if msg.Role == internal.RoleUser {
			content = escapeMarkdown(content)
		}

		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", msg.Role, timestamp, content)

		if details := MetadataSummary(msg.Metadata); details != "" {
			_, _ = fmt.Fprintf(w, "> %s\n\n", details)
		}

		// Add horizontal rule after each message (except the last one)
		if i < len(session.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// MetadataSummary renders message metadata as one line, empty when there is none
func MetadataSummary(md *internal.MessageMetadata) string {
	if md == nil {
		return ""
	}

	var parts []string
	if md.Error != "" {
		parts = append(parts, "error: "+md.Error)
	}
	if md.Classification != nil && md.Classification.Category != "" {
		parts = append(parts, fmt.Sprintf("category: %s (%.0f%%)", md.Classification.Category, md.Classification.Confidence*100))
	}
	if md.QualityScore != nil {
		parts = append(parts, fmt.Sprintf("quality: %.0f", *md.QualityScore))
	}
	if md.ProcessingTime != nil {
		parts = append(parts, fmt.Sprintf("time: %.0fms", *md.ProcessingTime))
	}
	if md.WorkflowID != "" {
		parts = append(parts, "workflow: "+md.WorkflowID)
	}
	return strings.Join(parts, " · ")
}

// escapeMarkdown escapes markdown emphasis outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
