package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/portal/internal/overlay"
)

func testFragments() []overlay.Snapshot {
	now := time.Now()
	return []overlay.Snapshot{
		{
			ID:          "01HZX0000000000000000000AA",
			Content:     "Date picker",
			Attributes:  overlay.Attributes{{Name: "data-testid", Value: "picker"}},
			Class:       "popover-picker",
			Connected:   true,
			Locked:      true,
			ShowContent: true,
			CreatedAt:   now.Add(-10 * time.Minute),
			UpdatedAt:   now.Add(-5 * time.Minute),
		},
		{
			ID:          "01HZX0000000000000000000BB",
			Content:     "Menu\nwith newline",
			Attributes:  overlay.Attributes{},
			ShowContent: false,
			CreatedAt:   now.Add(-2 * time.Hour),
			UpdatedAt:   now.Add(-2 * time.Hour),
		},
	}
}

func TestPlainFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	err := NewPlainFormatter(DefaultFormatterOptions()).Format(&buf, testFragments())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[1] ")
	assert.Contains(t, out, "01HZX0000000000000000000AA")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "locked")
	assert.Contains(t, out, `class="popover-picker"`)
	assert.Contains(t, out, "5 minutes ago")
	assert.Contains(t, out, "data-testid=picker")

	assert.Contains(t, out, "[2] ")
	assert.Contains(t, out, "hidden")
	assert.Contains(t, out, "detached")
	assert.Contains(t, out, "Menu with newline")
}

func TestPlainFormatter_VisibleOnlyAndTruncate(t *testing.T) {
	opts := FormatterOptions{VisibleOnly: true, ContentMaxLen: 8}
	var buf bytes.Buffer
	require.NoError(t, NewPlainFormatter(opts).Format(&buf, testFragments()))

	out := buf.String()
	assert.NotContains(t, out, "[1]")
	assert.NotContains(t, out, "01HZX0000000000000000000BB")
	assert.Contains(t, out, "Date ...")
	assert.NotContains(t, out, "ago")
}

func TestPlainFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlainFormatter(DefaultFormatterOptions()).Format(&buf, nil))
	assert.Equal(t, "(no fragments)\n", buf.String())
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(FormatterOptions{}).Format(&buf, testFragments()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "01HZX0000000000000000000AA", decoded[0]["id"])
	assert.Equal(t, true, decoded[0]["show_content"])
	assert.Equal(t, "popover-picker", decoded[0]["class"])
	assert.NotContains(t, decoded[1], "class")
}

func TestYAMLFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter(FormatterOptions{VisibleOnly: true}).Format(&buf, testFragments()))

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Date picker", decoded[0]["content"])
	assert.Equal(t, true, decoded[0]["connected"])
}

func TestIDsFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewIDsFormatter().Format(&buf, testFragments()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"01HZX0000000000000000000AA", "01HZX0000000000000000000BB"}, lines)
}

func TestNewFormatter(t *testing.T) {
	opts := DefaultFormatterOptions()
	assert.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON, opts))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter(FormatYAML, opts))
	assert.IsType(t, &IDsFormatter{}, NewFormatter(FormatIDs, opts))
	assert.IsType(t, &PlainFormatter{}, NewFormatter(FormatPlain, opts))
	assert.IsType(t, &PlainFormatter{}, NewFormatter("unknown", opts))
}
