package browse

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobagg/internal/adapter"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 0, 0, 6)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

type pickerOutcome int

const (
	pickPending pickerOutcome = iota
	pickChosen
	pickQuit
)

// pickerModel lists "All sources" followed by every registered source.
type pickerModel struct {
	rows    []adapter.SourceInfo // rows[0] is the all-sources row, Name ""
	cursor  int
	outcome pickerOutcome
}

func newPickerModel(sources []adapter.SourceInfo) pickerModel {
	rows := make([]adapter.SourceInfo, 0, len(sources)+1)
	rows = append(rows, adapter.SourceInfo{Description: fmt.Sprintf("every stored job from %d sources", len(sources))})
	rows = append(rows, sources...)
	return pickerModel{rows: rows}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		m.outcome = pickQuit
		return m, tea.Quit
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, len(m.rows)-1)
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, len(m.rows)-1)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = len(m.rows) - 1
	case "enter":
		m.outcome = pickChosen
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(pickerTitleStyle.Render("Browse jobs: select a source"))
	b.WriteByte('\n')

	for i, row := range m.rows {
		label := "All sources"
		if row.Name != "" {
			label = fmt.Sprintf("%s (%s)", row.Name, row.Format)
		}
		if i != m.cursor {
			b.WriteString(pickerItemStyle.Render(label) + "\n")
			continue
		}
		b.WriteString(pickerSelectedStyle.Render("> "+label) + "\n")
		if row.Description != "" {
			b.WriteString(pickerDescStyle.Render(row.Description) + "\n")
		}
	}

	b.WriteString(pickerHintStyle.Render("↑/↓ navigate  enter select  q quit"))
	return b.String()
}

// source is the name under the cursor; "" means every source.
func (m pickerModel) source() string {
	return m.rows[m.cursor].Name
}

// RunSourcePicker shows an interactive source selector. It returns the chosen
// source name ("" for all sources) and ok=false if the user quit.
func RunSourcePicker(sources []adapter.SourceInfo) (source string, ok bool, err error) {
	p := tea.NewProgram(newPickerModel(sources))
	result, err := p.Run()
	if err != nil {
		return "", false, err
	}
	final := result.(pickerModel)
	if final.outcome != pickChosen {
		return "", false, nil
	}
	return final.source(), true, nil
}
