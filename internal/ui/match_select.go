package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quantkb/finconcept/internal/enrich"
)

// PromptMatchSelection prompts the user to pick one of the scored candidates
// when the automatic flow accepted none. Returns an error if cancelled.
func PromptMatchSelection(conceptName string, candidates []enrich.Candidate) (enrich.Candidate, error) {
	if len(candidates) == 0 {
		return enrich.Candidate{}, fmt.Errorf("no candidates to select from")
	}

	m := matchSelectModel{
		concept:    conceptName,
		candidates: candidates,
		selected:   -1,
	}

	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return enrich.Candidate{}, fmt.Errorf("error running match selection: %w", err)
	}

	result := finalModel.(matchSelectModel)
	if result.quit || result.selected < 0 {
		return enrich.Candidate{}, fmt.Errorf("match selection cancelled")
	}

	return candidates[result.selected], nil
}

type matchSelectModel struct {
	concept    string
	candidates []enrich.Candidate
	cursor     int
	selected   int
	quit       bool
}

func (m matchSelectModel) Init() tea.Cmd {
	return nil
}

func (m matchSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quit = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.candidates)-1 {
				m.cursor++
			}
		case "enter":
			m.selected = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m matchSelectModel) View() string {
	s := "\n" + StyleSelectTitle.Render(fmt.Sprintf("🔍 Select Match for %q", m.concept)) + "\n\n"

	for i, cand := range m.candidates {
		cursor := "  "
		style := StyleSelectNormal

		if m.cursor == i {
			cursor = "▶ "
			style = StyleSelectActive
		}

		label := cand.Data.Label
		if label == "" {
			label = cand.Data.ExternalID
		}
		line := fmt.Sprintf("%s%s", cursor, style.Render(fmt.Sprintf("%-32s", Truncate(label, 32))))
		line += StyleSelectBadge.Render(fmt.Sprintf(" %s", FormatScore(cand.Score)))
		line += StyleSelectDim.Render(fmt.Sprintf(" %s", cand.Source))
		if cand.Data.Description != "" {
			line += StyleSelectDim.Render("  " + Truncate(cand.Data.Description, 48))
		}
		s += line + "\n"
	}

	s += "\n" + StyleSelectDim.Render("↑/↓ navigate • enter select • esc cancel") + "\n"
	return s
}
