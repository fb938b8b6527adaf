package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iksnae/cs-assist/internal"
)

// Formats lists the canonical export format names
var Formats = []string{"jsonl", "md", "yaml", "json"}

// Exporter writes one session in a single format
type Exporter interface {
	Export(session *internal.Session, w io.Writer) error
	Extension() string
}

// NewExporter returns the exporter for format. Names are case-insensitive;
// "markdown", "yml" and "ndjson" are accepted as aliases.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jsonl", "ndjson":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %q (supported: %s)", format, strings.Join(Formats, ", "))
	}
}

// FileName returns the name a session is exported under
func FileName(session *internal.Session, e Exporter) string {
	return fmt.Sprintf("session_%s.%s", session.ID, e.Extension())
}

// WriteFile exports session into dir and returns the path written.
func WriteFile(e Exporter, session *internal.Session, dir string) (string, error) {
	path := filepath.Join(dir, FileName(session, e))

	file, err := os.Create(path)
	if err != nil {
		return path, &internal.ExportError{Format: e.Extension(), Path: path, Err: err}
	}
	if err := e.Export(session, file); err != nil {
		_ = file.Close()
		return path, &internal.ExportError{Format: e.Extension(), Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return path, &internal.ExportError{Format: e.Extension(), Path: path, Err: err}
	}
	return path, nil
}
