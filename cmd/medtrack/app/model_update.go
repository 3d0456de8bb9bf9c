package app

import (
	"strings"

	"medtrack/cmd/medtrack/ui"
	"medtrack/internal/medication"
	"medtrack/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages on the interaction goroutine.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case completionMsg:
		msg.c.Deliver()
		// Deliver whatever else finished meanwhile before the next redraw.
		for c, ok := m.deps.Runner.TryNext(); ok; c, ok = m.deps.Runner.TryNext() {
			c.Deliver()
		}
		return m, waitForCompletion(m.deps.Runner)

	case runnerDoneMsg:
		return m, nil

	case profileEventMsg:
		m.handleProfileEvent(store.ProfileEvent(msg))
		if m.deps.Watcher != nil {
			return m, waitForProfileEvent(m.deps.Watcher.Events())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		switch m.mode {
		case ModeChat:
			return m.updateChat(msg)
		case ModeForm:
			return m.updateForm(msg)
		case ModePrompt:
			return m.updatePrompt(msg)
		default:
			return m.updateNormal(msg)
		}
	}
	return m, nil
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.Shutdown()
	return m, tea.Quit
}

func (m *Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case "a":
		return m, m.openForm(-1)
	case "e", "enter":
		if tab := m.activeTab(); tab != nil && len(tab.records) > 0 {
			return m, m.openForm(m.table.Cursor())
		}
		return m, nil
	case "d", "delete":
		m.removeMedication(m.table.Cursor())
		return m, nil
	case "u":
		m.updateDatabase()
		return m, nil
	case "c":
		m.checkContraindications()
		return m, nil
	case "i", "/":
		m.mode = ModeChat
		m.table.Blur()
		return m, m.chatInput.Focus()
	case "n":
		if tab := m.activeTab(); tab != nil {
			m.resetChat(tab)
			m.setStatus("New chat")
		}
		return m, nil
	case "x":
		m.exportProfile()
		return m, nil
	case "tab", "right", "]":
		m.cycleTab(1)
		return m, nil
	case "shift+tab", "left", "[":
		m.cycleTab(-1)
		return m, nil
	case "P":
		return m, m.openPrompt(promptNewProfile, "New profile name: ", "")
	case "R":
		if tab := m.activeTab(); tab != nil {
			return m, m.openPrompt(promptRenameProfile, "Rename profile to: ", tab.name)
		}
		return m, nil
	case "w":
		m.closeTab()
		return m, nil
	case "K":
		return m, m.openPrompt(promptAPIKey, "API key: ", "")
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveInput()
		return m, nil
	case "enter":
		text := m.chatInput.Value()
		m.chatInput.Reset()
		m.sendChat(text)
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

// openForm opens the medication form, prefilled from record i when editing.
func (m *Model) openForm(i int) tea.Cmd {
	m.mode = ModeForm
	m.editIndex = i
	m.formFocus = fieldName
	m.table.Blur()

	var r medication.Record
	if tab := m.activeTab(); tab != nil && i >= 0 && i < len(tab.records) {
		r = tab.records[i]
	} else {
		m.editIndex = -1
	}
	m.form[fieldName].SetValue(r.Name)
	m.form[fieldStrength].SetValue(r.Strength)
	m.form[fieldFrequency].SetValue(r.Frequency)
	return m.focusField(fieldName)
}

func (m *Model) focusField(i int) tea.Cmd {
	m.formFocus = i
	var cmd tea.Cmd
	for j := range m.form {
		if j == i {
			cmd = m.form[j].Focus()
		} else {
			m.form[j].Blur()
		}
	}
	return cmd
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveInput()
		return m, nil
	case "tab", "down":
		return m, m.focusField((m.formFocus + 1) % fieldCount)
	case "shift+tab", "up":
		return m, m.focusField((m.formFocus + fieldCount - 1) % fieldCount)
	case "enter":
		if m.formFocus < fieldCount-1 {
			return m, m.focusField(m.formFocus + 1)
		}
		m.submitForm()
		return m, nil
	}
	var cmd tea.Cmd
	m.form[m.formFocus], cmd = m.form[m.formFocus].Update(msg)
	return m, cmd
}

func (m *Model) submitForm() {
	r := medication.Record{
		Name:      strings.TrimSpace(m.form[fieldName].Value()),
		Strength:  strings.TrimSpace(m.form[fieldStrength].Value()),
		Frequency: strings.TrimSpace(m.form[fieldFrequency].Value()),
	}
	if m.editIndex >= 0 {
		m.editMedication(m.editIndex, r)
	} else {
		m.addMedication(r)
	}
	m.leaveInput()
}

func (m *Model) openPrompt(kind promptKind, label, value string) tea.Cmd {
	m.mode = ModePrompt
	m.prompt = kind
	m.table.Blur()
	m.lineInput.Prompt = label
	m.lineInput.SetValue(value)
	m.lineInput.CursorEnd()
	if kind == promptAPIKey {
		m.lineInput.EchoMode = textinput.EchoPassword
	} else {
		m.lineInput.EchoMode = textinput.EchoNormal
	}
	return m.lineInput.Focus()
}

func (m *Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveInput()
		return m, nil
	case "enter":
		value := m.lineInput.Value()
		kind := m.prompt
		m.leaveInput()
		switch kind {
		case promptNewProfile:
			m.createProfile(value)
		case promptRenameProfile:
			m.renameProfile(value)
		case promptAPIKey:
			m.setAPIKey(value)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.lineInput, cmd = m.lineInput.Update(msg)
	return m, cmd
}

// leaveInput returns to table navigation.
func (m *Model) leaveInput() {
	m.mode = ModeNormal
	m.prompt = promptNone
	m.chatInput.Blur()
	m.lineInput.Blur()
	m.lineInput.Reset()
	for i := range m.form {
		m.form[i].Blur()
	}
	m.table.Focus()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	// Header, tabs, table frame, chat frame, input and status lines.
	chrome := 12
	avail := height - chrome
	if avail < 6 {
		avail = 6
	}
	tableHeight := avail * 2 / 5
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.table.SetColumns(medicationColumns(width))
	m.table.SetHeight(tableHeight)
	m.table.SetWidth(width - 4)

	m.chatView.Width = width - 4
	m.chatView.Height = avail - tableHeight
	m.chatInput.Width = width - 8
	m.md = ui.NewMarkdown(width-6, glamourStyle(m.styles.Theme))
	m.refresh()
}
