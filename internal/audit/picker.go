package audit

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobsync/internal/session"
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

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

type pickerModel struct {
	sessions []session.Info
	cursor   int
	chosen   int // -1 = no choice yet, -2 = quit
}

func newPicker(sessions []session.Info) pickerModel {
	// Newest first, which is where the cursor starts.
	rev := make([]session.Info, len(sessions))
	for i, s := range sessions {
		rev[len(sessions)-1-i] = s
	}
	return pickerModel{sessions: rev, chosen: -1}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.sessions)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.sessions) > 0 {
				m.chosen = m.cursor
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Sessions: select one to browse")
	s += "\n"

	if len(m.sessions) == 0 {
		s += pickerItemStyle.Render("(no sessions yet)") + "\n"
	}
	for i, info := range m.sessions {
		label := describe(info)
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+label) + "\n"
		} else {
			s += pickerItemStyle.Render(label) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunSessionPicker shows an interactive session selector. It returns the
// chosen session id, or "" if the user quit.
func RunSessionPicker(sessions []session.Info) (string, error) {
	p := tea.NewProgram(newPicker(sessions))
	result, err := p.Run()
	if err != nil {
		return "", err
	}

	final := result.(pickerModel)
	if final.chosen < 0 {
		return "", nil
	}
	return final.sessions[final.chosen].ID, nil
}
