// Package consoleui provides the Bubble Tea operator console.
package consoleui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/repostats/internal/console"
)

const (
	promptText     = "> "
	maxScrollback  = 1000
	headerHeight   = 1
	inputHeight    = 1
	defaultWidth   = 80
	defaultHeight  = 24
	truncateSuffix = "…"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	echoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// Emphasis highlights report parameters inside the console.
func Emphasis(s string) string {
	return valueStyle.Render(s)
}

type lineKind int

const (
	lineOutput lineKind = iota
	lineEcho
	lineError
)

type line struct {
	kind lineKind
	text string
}

// Model implements the Bubble Tea console UI.
type Model struct {
	console *console.Console
	ctx     context.Context

	input    textinput.Model
	viewport viewport.Model

	lines      []line
	history    []string
	historyPos int

	width  int
	height int
}

// NewModel constructs a console UI model.
func NewModel(ctx context.Context, c *console.Console) *Model {
	input := textinput.New()
	input.Prompt = promptStyle.Render(promptText)
	input.CharLimit = c.MaxCommandLength()
	input.Placeholder = "help"
	input.Focus()

	m := &Model{
		console:  c,
		ctx:      ctx,
		input:    input,
		viewport: viewport.New(defaultWidth, defaultHeight-headerHeight-inputHeight),
	}
	m.appendOutput("Type 'help' for commands, 'exit' to quit.\n")
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyUp:
			m.recall(-1)
			return m, nil
		case tea.KeyDown:
			m.recall(1)
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	header := headerStyle.Render("repostats console")
	return header + "\n" + m.viewport.View() + "\n" + m.input.View()
}

func (m *Model) submit() tea.Cmd {
	raw := m.input.Value()
	m.input.Reset()
	cmdLine := strings.TrimSpace(raw)
	if cmdLine == "" {
		return nil
	}
	m.history = append(m.history, cmdLine)
	m.historyPos = len(m.history)
	m.appendLine(line{kind: lineEcho, text: promptText + cmdLine})

	switch strings.ToLower(cmdLine) {
	case "exit", "quit", "stop":
		return tea.Quit
	case "clear":
		m.lines = nil
		m.refresh()
		return nil
	}

	out, err := m.console.Execute(m.ctx, cmdLine)
	if err != nil {
		m.appendLine(line{kind: lineError, text: err.Error()})
		return nil
	}
	m.appendOutput(out)
	return nil
}

func (m *Model) recall(delta int) {
	if len(m.history) == 0 {
		return
	}
	pos := m.historyPos + delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(m.history) {
		m.historyPos = len(m.history)
		m.input.SetValue("")
		return
	}
	m.historyPos = pos
	m.input.SetValue(m.history[pos])
	m.input.CursorEnd()
}

func (m *Model) appendOutput(out string) {
	out = strings.TrimSuffix(out, "\n")
	for _, text := range strings.Split(out, "\n") {
		m.appendLine(line{kind: lineOutput, text: text})
	}
}

func (m *Model) appendLine(l line) {
	m.lines = append(m.lines, l)
	if len(m.lines) > maxScrollback {
		m.lines = m.lines[len(m.lines)-maxScrollback:]
	}
	m.refresh()
}

func (m *Model) updateLayout() {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	height := m.height - headerHeight - inputHeight
	if height < 1 {
		height = 1
	}
	m.viewport.Width = width
	m.viewport.Height = height
	m.input.Width = width - runewidth.StringWidth(promptText) - 1
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderLines())
	m.viewport.GotoBottom()
}

func (m *Model) renderLines() string {
	width := m.viewport.Width
	rendered := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		switch l.kind {
		case lineEcho:
			rendered = append(rendered, echoStyle.Render(truncate(l.text, width)))
		case lineError:
			rendered = append(rendered, errorStyle.Render(truncate(l.text, width)))
		default:
			rendered = append(rendered, lipgloss.NewStyle().MaxWidth(width).Render(l.text))
		}
	}
	return strings.Join(rendered, "\n")
}

func truncate(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, truncateSuffix)
}
