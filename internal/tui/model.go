// Package tui provides the BubbleTea-based overlay inspector. It plays the
// producer role against an in-memory bridge so the registry's coalescing and
// lifecycle rules can be exercised by hand.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/portal/internal/bridge"
	"github.com/jmylchreest/portal/internal/container"
	"github.com/jmylchreest/portal/internal/overlay"
)

// opTimeout bounds every bridge call made from the inspector.
const opTimeout = 5 * time.Second

// faultMode is the failure injected into Disconnect calls.
type faultMode int

const (
	faultNone faultMode = iota
	faultCancelled
	faultFailure
)

func (f faultMode) String() string {
	switch f {
	case faultCancelled:
		return "cancelled"
	case faultFailure:
		return "failure"
	default:
		return "none"
	}
}

var errRejected = errors.New("runtime rejected disconnect")

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	normalStyle   = lipgloss.NewStyle()
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Model is the inspector model.
type Model struct {
	registry *overlay.Registry
	bridge   *bridge.Memory
	renderer *container.Renderer

	// Components
	viewport viewport.Model
	help     help.Model
	keys     KeyMap

	// State
	fragments []overlay.Snapshot
	cursor    int
	created   int
	revisions map[overlay.ID]int
	fault     faultMode
	width     int
	height    int
	ready     bool

	// Status message
	statusMsg string
	statusErr bool

	changes <-chan struct{}
}

// New creates an inspector for a registry backed by the given memory bridge.
func New(registry *overlay.Registry, mem *bridge.Memory) Model {
	return Model{
		registry:  registry,
		bridge:    mem,
		renderer:  container.NewRenderer(registry, nil),
		help:      help.New(),
		keys:      DefaultKeyMap(),
		revisions: make(map[overlay.ID]int),
		changes:   registry.Subscribe(),
	}
}

// Init initializes the registry and starts following changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.initializeRegistry,
		m.watchForChanges,
	)
}

func (m Model) initializeRegistry() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := m.registry.InitializeIfNeeded(ctx); err != nil {
		return statusMsg{text: "initialize failed: " + err.Error(), isErr: true}
	}
	return statusMsg{text: "registry initialized"}
}

// watchForChanges waits for the next registry change.
func (m Model) watchForChanges() tea.Msg {
	if _, ok := <-m.changes; !ok {
		return nil
	}
	return refreshMsg{}
}

type refreshMsg struct{}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.viewport = viewport.New(msg.Width, max(msg.Height-4, 1))
		m.viewport.SetContent(m.renderFragments())
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, m.watchForChanges

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		// Connection state changes do not notify, so re-read after every op.
		m.refresh()
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh re-renders the container and the fragment list.
func (m *Model) refresh() {
	m.fragments = m.renderer.Refresh()
	if m.cursor >= len(m.fragments) {
		m.cursor = max(len(m.fragments)-1, 0)
	}
	if m.ready {
		m.viewport.SetContent(m.renderFragments())
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.viewport.SetContent(m.renderFragments())
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.fragments)-1 {
			m.cursor++
		}
		m.viewport.SetContent(m.renderFragments())
		return m, nil

	case key.Matches(msg, m.keys.Register):
		m.created++
		return m, m.register(m.created)

	case key.Matches(msg, m.keys.Update), key.Matches(msg, m.keys.Hide):
		h := m.selected()
		if h == nil {
			return m, nil
		}
		m.revisions[h.ID()]++
		content := fmt.Sprintf("%v rev %d", baseContent(h.Content()), m.revisions[h.ID()])
		show := key.Matches(msg, m.keys.Update)
		wasLocked := h.Locked()
		h.UpdateFragment(content, overlay.Owner{Tag: "inspector"}, "", "", show)
		if wasLocked {
			return m, status("update dropped: handler is locked", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Release):
		h := m.selected()
		if h == nil {
			return m, nil
		}
		h.Release()
		return m, status("released "+string(h.ID()), false)

	case key.Matches(msg, m.keys.Unregister):
		h := m.selected()
		if h == nil {
			return m, nil
		}
		return m, m.unregister(h)

	case key.Matches(msg, m.keys.Fault):
		m.fault = (m.fault + 1) % 3
		switch m.fault {
		case faultCancelled:
			m.bridge.Fail(bridge.OpDisconnect, overlay.ErrCancelled)
		case faultFailure:
			m.bridge.Fail(bridge.OpDisconnect, errRejected)
		default:
			m.bridge.Fail(bridge.OpDisconnect, nil)
		}
		return m, status("disconnect fault: "+m.fault.String(), false)
	}

	return m, nil
}

// selected returns the handler under the cursor.
func (m Model) selected() *overlay.Handler {
	if m.cursor < 0 || m.cursor >= len(m.fragments) {
		return nil
	}
	h, ok := m.registry.Lookup(m.fragments[m.cursor].ID)
	if !ok {
		return nil
	}
	return h
}

// register plays a producer opening an overlay: register, bind, connect.
func (m Model) register(n int) tea.Cmd {
	return func() tea.Msg {
		h, err := m.registry.Register(fmt.Sprintf("fragment #%d", n))
		if err != nil {
			return statusMsg{text: "register failed: " + err.Error(), isErr: true}
		}
		h.Bind(overlay.Owner{
			Attributes: overlay.Attributes{{Name: "data-fragment", Value: n}},
			Tag:        "inspector",
		}, "inspector-fragment", "", true)

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := h.Initialize(ctx); err != nil {
			return statusMsg{text: "connect failed: " + err.Error(), isErr: true}
		}
		return statusMsg{text: "registered " + string(h.ID())}
	}
}

func (m Model) unregister(h *overlay.Handler) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		ok, err := m.registry.Unregister(ctx, h)
		switch {
		case err != nil:
			return statusMsg{text: "unregister failed: " + err.Error(), isErr: true}
		case !ok:
			return statusMsg{text: "nothing to unregister (not connected)"}
		default:
			return statusMsg{text: "unregistered " + string(h.ID())}
		}
	}
}

func (m Model) quit() tea.Msg {
	m.registry.Unsubscribe(m.changes)
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_ = m.registry.Dispose(ctx)
	return tea.QuitMsg{}
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// baseContent strips a previous revision suffix.
func baseContent(content any) string {
	s := fmt.Sprint(content)
	if i := strings.Index(s, " rev "); i >= 0 {
		return s[:i]
	}
	return s
}

// renderFragments renders the container contents.
func (m Model) renderFragments() string {
	if len(m.fragments) == 0 {
		return dimStyle.Render("  no fragments registered; press n to register one")
	}

	var sb strings.Builder
	for i, f := range m.fragments {
		style := normalStyle
		prefix := "  "
		if i == m.cursor {
			style = selectedStyle
			prefix = "> "
		}

		flags := []string{}
		if f.ShowContent {
			flags = append(flags, "shown")
		} else {
			flags = append(flags, "hidden")
		}
		if f.Connected {
			flags = append(flags, "connected")
		} else {
			flags = append(flags, "detached")
		}
		if f.Locked {
			flags = append(flags, "locked")
		}

		sb.WriteString(style.Render(fmt.Sprintf("%s%s  %v", prefix, f.ID, f.Content)))
		sb.WriteString("  " + dimStyle.Render(strings.Join(flags, " ")))
		sb.WriteString("\n")
	}
	return sb.String()
}

// View renders the inspector.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := titleStyle.Render(fmt.Sprintf("Overlay container  %s  %d fragments  %d connected  fault=%s",
		m.registry.Options().ContainerSelector(),
		len(m.fragments),
		m.bridge.ConnectedCount(),
		m.fault,
	))

	footer := m.help.View(m.keys)
	if m.statusMsg != "" {
		if m.statusErr {
			footer = errStyle.Render(m.statusMsg)
		} else {
			footer = okStyle.Render(m.statusMsg)
		}
	}

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// RunOptions configures the inspector.
type RunOptions struct {
	Registry *overlay.Registry
	Bridge   *bridge.Memory
}

// Run starts the inspector.
func Run(opts RunOptions) error {
	m := New(opts.Registry, opts.Bridge)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
