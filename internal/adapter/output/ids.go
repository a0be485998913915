package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/portal/internal/overlay"
)

// IDsFormatter outputs just the handler IDs, one per line.
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes handler IDs to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, fragments []overlay.Snapshot) error {
	for _, frag := range fragments {
		if _, err := fmt.Fprintln(w, frag.ID); err != nil {
			return err
		}
	}
	return nil
}
