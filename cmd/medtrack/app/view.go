package app

import (
	"fmt"
	"strings"

	"medtrack/internal/task"

	"github.com/charmbracelet/lipgloss"
)

const helpLine = "a add  e edit  d remove  u update db  c contraindications  i chat  n new chat  x export  tab switch  P new  R rename  w close  K api key  q quit"

// View renders the UI.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.styles

	var sb strings.Builder
	sb.WriteString(s.Header.Render("medtrack"))
	sb.WriteString("\n")
	sb.WriteString(m.renderTabs())
	sb.WriteString("\n")

	if m.activeTab() == nil {
		sb.WriteString(m.spinner.View() + " Loading profiles...")
		return sb.String()
	}

	sb.WriteString(s.Pane.Render(m.table.View()))
	sb.WriteString("\n")
	sb.WriteString(s.Pane.Render(m.chatView.View()))
	sb.WriteString("\n")

	switch m.mode {
	case ModeChat:
		sb.WriteString(m.chatInput.View())
	case ModeForm:
		sb.WriteString(m.renderForm())
	case ModePrompt:
		sb.WriteString(m.lineInput.View())
	default:
		sb.WriteString(s.Footer.Render(helpLine))
	}
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	return sb.String()
}

func (m *Model) renderTabs() string {
	s := m.styles
	parts := make([]string, 0, len(m.tabs))
	for i, t := range m.tabs {
		label := t.name
		if !t.loaded {
			label += "…"
		}
		if i == m.active {
			parts = append(parts, s.ActiveTab.Render(label))
		} else {
			parts = append(parts, s.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderForm() string {
	title := "Add medication"
	if m.editIndex >= 0 {
		title = "Edit medication"
	}
	lines := []string{m.styles.Title.Render(title)}
	for i := range m.form {
		lines = append(lines, m.form[i].View())
	}
	lines = append(lines, m.styles.Muted.Render("tab next field  enter save  esc cancel"))
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatus() string {
	s := m.styles
	var prefix string
	if st := m.deps.Runner.Stats(); st.InFlight > 0 {
		prefix = fmt.Sprintf("%s %d running  ", m.spinner.View(), st.InFlight)
	}
	if note := m.pendingNote(); note != "" {
		prefix += s.Warning.Render(note) + "  "
	}
	if m.status == "" {
		return prefix
	}
	if m.statusIsErr {
		return prefix + s.Error.Render(m.status)
	}
	return prefix + s.Info.Render(m.status)
}

// pendingNote describes the active profile's pending operation while it is
// still waiting for a free slot.
func (m *Model) pendingNote() string {
	tab := m.activeTab()
	if tab == nil || tab.pending == pendingNone {
		return ""
	}
	if state, ok := m.deps.Runner.Lookup(tab.pendingID); ok && state == task.StatePending {
		return tab.pending.String() + " waiting for a free slot"
	}
	return ""
}
