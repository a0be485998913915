package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/portal/internal/overlay"
)

// YAMLFormatter formats fragments as a YAML sequence.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// Format writes fragments as YAML.
func (f *YAMLFormatter) Format(w io.Writer, fragments []overlay.Snapshot) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(f.opts.filter(fragments)); err != nil {
		return err
	}
	return encoder.Close()
}
