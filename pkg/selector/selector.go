// Package selector presents an interactive picker over package records.
package selector

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dikkadev/hoard/pkg/backend"
)

type PackageItem struct {
	record *backend.PackageRecord
}

func (i PackageItem) Title() string {
	title := i.record.Name
	if title == "" {
		title = i.record.ID
	}
	return fmt.Sprintf("%s (%s)", title, i.record.Backend)
}

func (i PackageItem) Description() string {
	desc := i.record.Description
	prefix := ""
	if i.record.Version != "" {
		prefix = i.record.Version + " | "
	}
	if i.record.Installed {
		prefix = "installed | " + prefix
	}
	maxLen := 100 - len(prefix)
	if len(desc) > maxLen {
		desc = desc[:maxLen-3] + "..."
	}
	return prefix + desc
}

func (i PackageItem) FilterValue() string {
	return i.record.ID
}

type model struct {
	list     list.Model
	selected *backend.PackageRecord
	err      error
	quitting bool
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if i, ok := m.list.SelectedItem().(PackageItem); ok {
				m.selected = i.record
				return m, tea.Quit
			}
		case "ctrl+n":
			m.list.CursorDown()
		case "ctrl+p":
			m.list.CursorUp()
		case "pgdown", "ctrl+d":
			m.list.NextPage()
		case "pgup", "ctrl+u":
			m.list.PrevPage()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\nPress any key to exit\n", m.err)
	}

	if m.quitting {
		return ""
	}

	help := "\nNavigate: ↑/↓ • Page: PgUp/PgDn • Filter: / • Select: Enter • Quit: Esc/q\n"
	return m.list.View() + help
}

// Select presents an interactive UI for picking one package from the given
// records. A single candidate is returned without showing the UI.
func Select(title string, records []*backend.PackageRecord) (*backend.PackageRecord, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no packages to select from")
	}
	if len(records) == 1 {
		return records[0], nil
	}

	items := make([]list.Item, len(records))
	for i, rec := range records {
		items[i] = PackageItem{record: rec}
	}

	width := 80
	height := min(20, len(items)+5) // 5 lines for header, help, etc.
	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = fmt.Sprintf("%s (found %d)", title, len(records))
	l.SetShowHelp(true)
	l.SetFilteringEnabled(true)
	l.SetShowStatusBar(true)
	l.SetShowTitle(true)
	l.KeyMap.Quit.SetEnabled(true)
	l.KeyMap.ForceQuit.SetEnabled(true)
	l.SetShowFilter(true)

	m := model{list: l}

	prog := tea.NewProgram(m)
	finalModel, err := prog.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run UI: %w", err)
	}

	if m, ok := finalModel.(model); ok && m.selected != nil {
		return m.selected, nil
	}

	return nil, fmt.Errorf("no package selected")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
