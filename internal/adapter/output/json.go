package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/portal/internal/overlay"
)

// JSONFormatter formats fragments as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes fragments as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, fragments []overlay.Snapshot) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.opts.filter(fragments))
}
