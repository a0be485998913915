// Package output provides output formatters for overlay container fragments.
package output

import (
	"io"

	"github.com/jmylchreest/portal/internal/overlay"
)

// Formatter formats fragments for output.
type Formatter interface {
	// Format writes formatted fragments to the writer.
	Format(w io.Writer, fragments []overlay.Snapshot) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	ShowIndex     bool // Show 1-based index prefix
	ShowTime      bool // Show relative update time
	VisibleOnly   bool // Skip fragments whose content is hidden
	ContentMaxLen int  // Maximum content length (0 = unlimited)
}

// DefaultFormatterOptions returns sensible defaults for terminal output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:     true,
		ShowTime:      true,
		ContentMaxLen: 80,
	}
}

// filter applies the VisibleOnly option.
func (o FormatterOptions) filter(fragments []overlay.Snapshot) []overlay.Snapshot {
	if !o.VisibleOnly {
		return fragments
	}
	out := make([]overlay.Snapshot, 0, len(fragments))
	for _, f := range fragments {
		if f.ShowContent {
			out = append(out, f)
		}
	}
	return out
}
