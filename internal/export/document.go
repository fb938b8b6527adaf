package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/cs-assist/internal"
	"gopkg.in/yaml.v3"
)

// JSONExporter writes the whole session record as indented JSON, the same
// shape the session store keeps on disk.
type JSONExporter struct{}

func (e *JSONExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(session)
}

func (e *JSONExporter) Extension() string {
	return "json"
}

// YAMLExporter writes the whole session record as YAML
type YAMLExporter struct{}

func (e *YAMLExporter) Export(session *internal.Session, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(session); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
