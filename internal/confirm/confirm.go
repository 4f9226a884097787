// Package confirm asks the user to type the name of the database a
// destructive command is about to replace.
package confirm

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// State is where the prompt is
type State int

const (
	StateTyping State = iota
	StateConfirmed
	StateCancelled
)

// Model is the bubbletea model of the prompt
type Model struct {
	action   string
	target   string
	input    textinput.Model
	state    State
	mismatch bool
}

// New returns a prompt asking to confirm action on target
func New(action, target string) Model {
	input := textinput.New()
	input.Placeholder = target
	input.CharLimit = 128
	input.Focus()
	return Model{action: action, target: target, input: input}
}

// Init starts the cursor blinking (Bubble Tea Init)
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key presses (Bubble Tea Update)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.state = StateCancelled
			return m, tea.Quit
		case tea.KeyEnter:
			if strings.TrimSpace(m.input.Value()) == m.target {
				m.state = StateConfirmed
				return m, tea.Quit
			}
			m.mismatch = true
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the prompt (Bubble Tea View)
func (m Model) View() string {
	switch m.state {
	case StateConfirmed:
		return renderSuccess(fmt.Sprintf("Confirmed %s", m.target)) + "\n"
	case StateCancelled:
		return renderError("Cancelled") + "\n"
	}

	var b strings.Builder
	b.WriteString(renderHeader(fmt.Sprintf("%s will replace %s", m.action, targetStyle.Render(m.target))))
	b.WriteString("\n\nType the database name to continue:\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.mismatch {
		b.WriteString(renderError("Name does not match") + "\n")
	}
	b.WriteString(renderStatusBar("enter to confirm • esc to cancel"))
	b.WriteString("\n")
	return b.String()
}

// State returns the prompt state
func (m Model) State() State {
	return m.state
}

// Confirmed reports whether the user typed the target name
func (m Model) Confirmed() bool {
	return m.state == StateConfirmed
}

// Prompt runs the prompt on in/out and reports whether the user confirmed
func Prompt(action, target string, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(New(action, target), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	m, ok := final.(Model)
	return ok && m.Confirmed(), nil
}

// Interactive reports whether f is a terminal a prompt can read from
func Interactive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
