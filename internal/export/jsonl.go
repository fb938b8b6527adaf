package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/cs-assist/internal"
)

// jsonlRecord is one message line. Session fields are repeated on every line
// so each line can be loaded on its own.
type jsonlRecord struct {
	SessionID string                    `json:"session_id"`
	Status    internal.Status           `json:"status"`
	Index     int                       `json:"index"`
	Role      internal.Role             `json:"role"`
	Content   string                    `json:"content"`
	Timestamp string                    `json:"timestamp,omitempty"`
	Metadata  *internal.MessageMetadata `json:"metadata,omitempty"`
}

// JSONLExporter writes one JSON object per message, in conversation order
type JSONLExporter struct{}

func (e *JSONLExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)

	for i, msg := range session.Messages {
		rec := jsonlRecord{
			SessionID: session.ID,
			Status:    session.Status,
			Index:     i,
			Role:      msg.Role,
			Content:   msg.Content,
			Metadata:  msg.Metadata,
		}
		if !msg.Timestamp.IsZero() {
			rec.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
		}

		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode message %d: %w", i, err)
		}
	}

	return nil
}

func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
