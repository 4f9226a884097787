package confirm

import (
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func typeText(m Model, text string) Model {
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func TestModel_Update(t *testing.T) {
	tests := []struct {
		name           string
		typed          string
		key            tea.KeyType
		expectedState  State
		expectQuit     bool
		expectMismatch bool
	}{
		{"matching name confirms", "salesClone", tea.KeyEnter, StateConfirmed, true, false},
		{"wrong name keeps prompting", "sales", tea.KeyEnter, StateTyping, false, true},
		{"escape cancels", "salesClone", tea.KeyEsc, StateCancelled, true, false},
		{"ctrl+c cancels", "", tea.KeyCtrlC, StateCancelled, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := typeText(New("clone", "salesClone"), tt.typed)

			next, cmd := m.Update(tea.KeyMsg{Type: tt.key})
			m = next.(Model)

			if m.State() != tt.expectedState {
				t.Errorf("Expected state %v, got %v", tt.expectedState, m.State())
			}
			if tt.expectQuit && cmd == nil {
				t.Error("Expected quit command")
			}
			if !tt.expectQuit && cmd != nil {
				t.Error("Expected no command")
			}
			if m.mismatch != tt.expectMismatch {
				t.Errorf("Expected mismatch=%v", tt.expectMismatch)
			}
		})
	}
}

func TestModel_View(t *testing.T) {
	m := New("clone", "salesClone")
	if view := m.View(); !strings.Contains(view, "salesClone") || !strings.Contains(view, "Type the database name") {
		t.Errorf("Unexpected view %q", view)
	}

	next, _ := typeText(m, "nope").Update(tea.KeyMsg{Type: tea.KeyEnter})
	if view := next.View(); !strings.Contains(view, "does not match") {
		t.Errorf("Expected mismatch message, got %q", view)
	}
}

func TestModel_ConfirmedAfterRetry(t *testing.T) {
	m := typeText(New("create", "hr"), "h")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(next.(Model), "r")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if !next.(Model).Confirmed() {
		t.Error("Expected confirmation after completing the name")
	}
}

func TestInteractive(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatalf("CreateTemp failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	if Interactive(f) {
		t.Error("Expected a regular file not to be interactive")
	}
}
