package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/portal/internal/overlay"
)

var (
	idStyle     = lipgloss.NewStyle().Bold(true)
	shownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hiddenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	lockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// PlainFormatter formats fragments as human-readable text.
type PlainFormatter struct {
	opts FormatterOptions
	now  func() time.Time
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	return &PlainFormatter{opts: opts, now: time.Now}
}

// Format writes fragments as plain text.
func (f *PlainFormatter) Format(w io.Writer, fragments []overlay.Snapshot) error {
	fragments = f.opts.filter(fragments)
	if len(fragments) == 0 {
		_, err := fmt.Fprintln(w, "(no fragments)")
		return err
	}
	for i := range fragments {
		if err := f.formatFragment(w, i+1, &fragments[i]); err != nil {
			return err
		}
	}
	return nil
}

// formatFragment formats a single fragment.
func (f *PlainFormatter) formatFragment(w io.Writer, index int, frag *overlay.Snapshot) error {
	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}

	sb.WriteString(idStyle.Render(string(frag.ID)))

	if frag.ShowContent {
		sb.WriteString(" " + shownStyle.Render("shown"))
	} else {
		sb.WriteString(" " + hiddenStyle.Render("hidden"))
	}
	if frag.Connected {
		sb.WriteString(" connected")
	} else {
		sb.WriteString(" detached")
	}
	if frag.Locked {
		sb.WriteString(" " + lockedStyle.Render("locked"))
	}
	if frag.Class != "" {
		sb.WriteString(fmt.Sprintf(" class=%q", frag.Class))
	}
	if frag.Style != "" {
		sb.WriteString(fmt.Sprintf(" style=%q", frag.Style))
	}

	if f.opts.ShowTime && !frag.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf(" (updated %s)", humanize.RelTime(frag.UpdatedAt, f.now(), "ago", "from now")))
	}
	sb.WriteString("\n")

	content := strings.ReplaceAll(fmt.Sprint(frag.Content), "\n", " ")
	if f.opts.ContentMaxLen > 3 && len(content) > f.opts.ContentMaxLen {
		content = content[:f.opts.ContentMaxLen-3] + "..."
	}
	sb.WriteString("    " + content + "\n")

	for _, attr := range frag.Attributes {
		sb.WriteString(fmt.Sprintf("    %s=%v\n", attr.Name, attr.Value))
	}

	_, err := w.Write([]byte(sb.String()))
	return err
}
