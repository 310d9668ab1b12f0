package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quantkb/finconcept/models"
)

// RunCacheBrowser opens the interactive browser over the given cache
// entries. Returns the selected entry, or nil when the user quits without
// selecting.
func RunCacheBrowser(entries []models.CacheEntry) (*models.CacheEntry, error) {
	ti := textinput.New()
	ti.Placeholder = "Filter by concept or source..."
	ti.Focus()
	ti.CharLimit = 80
	ti.Width = 40

	delegate := list.NewDefaultDelegate()
	l := list.New(entryItems(entries, ""), delegate, 80, 15)
	l.Title = "Concept Cache"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)

	m := browseModel{
		textInput: ti,
		list:      l,
		entries:   entries,
		width:     80,
		height:    24,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("TUI error: %w", err)
	}

	if fm, ok := finalModel.(browseModel); ok && fm.selected != nil {
		return fm.selected, nil
	}
	return nil, nil
}

type browseModel struct {
	textInput textinput.Model
	list      list.Model
	entries   []models.CacheEntry
	filter    string
	selected  *models.CacheEntry
	width     int
	height    int
}

type entryItem struct {
	entry models.CacheEntry
}

func (i entryItem) Title() string {
	title := fmt.Sprintf("%s · %s", i.entry.Source, i.entry.ConceptName)
	if i.entry.Expired(time.Now()) {
		title += " ⏰"
	}
	return title
}

func (i entryItem) Description() string {
	return fmt.Sprintf("%s · %d hits · %s",
		ShortKey(i.entry.CacheKey), i.entry.AccessCount, FormatBytes(i.entry.SizeBytes))
}

func (i entryItem) FilterValue() string {
	return i.entry.ConceptName
}

// entryItems converts entries to list items, keeping only filter matches.
func entryItems(entries []models.CacheEntry, filter string) []list.Item {
	filter = strings.ToLower(strings.TrimSpace(filter))
	var items []list.Item
	for _, e := range entries {
		if filter != "" &&
			!strings.Contains(strings.ToLower(e.ConceptName), filter) &&
			!strings.Contains(strings.ToLower(e.Source), filter) {
			continue
		}
		items = append(items, entryItem{entry: e})
	}
	return items
}

func (m browseModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.textInput.Focused() {
				m.textInput.Blur()
			} else if item, ok := m.list.SelectedItem().(entryItem); ok {
				entry := item.entry
				m.selected = &entry
				return m, tea.Quit
			}
		case "tab":
			if m.textInput.Focused() {
				m.textInput.Blur()
			} else {
				m.textInput.Focus()
			}
		case "esc":
			if !m.textInput.Focused() {
				m.textInput.Focus()
			} else {
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-10)
	}

	// Update components
	var cmd tea.Cmd
	if m.textInput.Focused() {
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)

		// Live filter on every keystroke
		if v := m.textInput.Value(); v != m.filter {
			m.filter = v
			m.list.SetItems(entryItems(m.entries, v))
		}
	} else {
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m browseModel) View() string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		Render("🗂  Concept Cache Browser")
	b.WriteString(header)
	b.WriteString("\n\n")

	inputStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorSecondary).
		Padding(0, 1)
	b.WriteString(inputStyle.Render(m.textInput.View()))
	b.WriteString("\n\n")

	shown := len(m.list.Items())
	if shown == 0 {
		b.WriteString("No cached concepts match.\n")
	} else {
		b.WriteString(fmt.Sprintf("📊 %d of %d entries (Tab to navigate, Enter to select)\n\n", shown, len(m.entries)))
		b.WriteString(m.list.View())
	}

	b.WriteString("\n")
	footer := StyleSubtle.Render("Enter: filter/select • Tab: toggle focus • Esc: quit")
	b.WriteString(footer)

	return b.String()
}
