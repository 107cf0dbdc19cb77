// Package tui holds the terminal interactions: the cost confirmation prompt,
// the progress spinner and the markdown preview.
package tui

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonyos/rulefy/internal/chunker"
	"github.com/simonyos/rulefy/internal/tui/theme"
)

// ConfirmModel asks the operator to accept a chunking plan.
type ConfirmModel struct {
	plan     chunker.Plan
	answered bool
	accepted bool
}

// NewConfirm creates a prompt for plan.
func NewConfirm(plan chunker.Plan) ConfirmModel {
	return ConfirmModel{plan: plan}
}

// Init implements tea.Model.
func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses. Enter accepts, like the [Y/n] hint says.
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch strings.ToLower(key.String()) {
	case "y", "enter":
		m.answered, m.accepted = true, true
		return m, tea.Quit
	case "n", "esc", "q", "ctrl+c":
		m.answered, m.accepted = true, false
		return m, tea.Quit
	}
	return m, nil
}

// View renders the plan summary and the question.
func (m ConfirmModel) View() string {
	var b strings.Builder
	b.WriteString(theme.Title().Render("Generation plan") + "\n")
	fmt.Fprintf(&b, "Tokens:         %d\n", m.plan.TotalTokens)
	fmt.Fprintf(&b, "Chunk size:     %d\n", m.plan.ChunkSize)
	fmt.Fprintf(&b, "Chunks:         %d\n", m.plan.TotalChunks)
	fmt.Fprintf(&b, "Estimated cost: $%.4f", m.plan.EstimatedCost)
	box := theme.Box().Render(b.String())

	if m.answered {
		answer := theme.Status(m.accepted).Render("cancelled")
		if m.accepted {
			answer = theme.Status(true).Render("confirmed")
		}
		return box + "\n" + answer + "\n"
	}
	return box + "\nProceed? " + theme.Muted().Render("[Y/n]") + " "
}

// Accepted reports whether the operator said yes.
func (m ConfirmModel) Accepted() bool {
	return m.answered && m.accepted
}

// Confirm returns a chunker.ConfirmFunc that runs the prompt on in and out.
func Confirm(in io.Reader, out io.Writer) chunker.ConfirmFunc {
	return func(plan chunker.Plan) (bool, error) {
		p := tea.NewProgram(NewConfirm(plan), tea.WithInput(in), tea.WithOutput(out))
		final, err := p.Run()
		if err != nil {
			return false, fmt.Errorf("confirmation prompt failed: %w", err)
		}
		return final.(ConfirmModel).Accepted(), nil
	}
}
