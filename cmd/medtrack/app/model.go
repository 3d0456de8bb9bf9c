package app

import (
	"context"

	"medtrack/cmd/medtrack/ui"
	"medtrack/internal/logging"
	"medtrack/internal/medication"
	"medtrack/internal/store"
	"medtrack/internal/task"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
)

// New creates the model. Profiles are discovered once Init runs.
func New(deps Deps) *Model {
	theme := ui.ThemeByName(deps.Config.UI.Theme)
	styles := ui.NewStyles(theme)

	m := &Model{
		deps:      deps,
		styles:    styles,
		editIndex: -1,
		width:     defaultWidth,
		height:    defaultHeight,
	}

	m.table = table.New(
		table.WithColumns(medicationColumns(defaultWidth)),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Foreground(theme.Primary).Bold(true)
	ts.Selected = ts.Selected.Foreground(theme.Background).Background(theme.Accent)
	m.table.SetStyles(ts)

	m.chatView = viewport.New(defaultWidth, 10)

	m.chatInput = textinput.New()
	m.chatInput.Placeholder = "Ask about your medications..."
	m.chatInput.Prompt = "> "
	m.chatInput.CharLimit = 2000

	placeholders := [fieldCount]string{"Medication name", "Strength (e.g. 81mg)", "Dosage frequency (e.g. Once daily)"}
	for i := range m.form {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 200
		m.form[i] = ti
	}

	m.lineInput = textinput.New()
	m.lineInput.CharLimit = 200

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot
	m.spinner.Style = styles.Spinner

	m.md = ui.NewMarkdown(defaultWidth-4, glamourStyle(theme))
	return m
}

func glamourStyle(theme ui.Theme) string {
	if theme.IsDark {
		return "dark"
	}
	return "light"
}

func medicationColumns(width int) []table.Column {
	rest := width - 4 - 6
	if rest < 40 {
		rest = 40
	}
	return []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Name", Width: rest * 30 / 100},
		{Title: "Strength", Width: rest * 20 / 100},
		{Title: "Dosage Frequency", Width: rest * 25 / 100},
		{Title: "Description", Width: rest * 25 / 100},
	}
}

// Init starts the completion pump, the spinner and profile discovery.
func (m *Model) Init() tea.Cmd {
	m.discoverProfiles()
	cmds := []tea.Cmd{
		waitForCompletion(m.deps.Runner),
		m.spinner.Tick,
		textinput.Blink,
	}
	if m.deps.Watcher != nil {
		cmds = append(cmds, waitForProfileEvent(m.deps.Watcher.Events()))
	}
	return tea.Batch(cmds...)
}

// waitForCompletion blocks on the runner for the next finished unit of work.
// Update delivers it and re-arms the command.
func waitForCompletion(r *task.Runner) tea.Cmd {
	return func() tea.Msg {
		c, ok := r.Next()
		if !ok {
			return runnerDoneMsg{}
		}
		return completionMsg{c: c}
	}
}

// waitForProfileEvent blocks on the watcher's event channel.
func waitForProfileEvent(events <-chan store.ProfileEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return profileEventMsg(ev)
	}
}

// discoverProfiles lists the profile directory, creating the default profile
// on first run, and opens a tab per profile.
func (m *Model) discoverProfiles() {
	catalog := m.deps.Catalog
	submit(m, "discover profiles", func(ctx context.Context) ([]string, error) {
		return catalog.EnsureDefault()
	}, func(names []string) {
		logging.Boot("discovered %d profiles in %s", len(names), catalog.Dir())
		for _, name := range names {
			m.openTab(name)
		}
		if len(m.tabs) > 0 {
			m.switchTab(0)
		}
	}, nil)
}

// Shutdown stops background activity. Safe to call multiple times.
// In-flight work finishes on its own; its completions are dropped.
func (m *Model) Shutdown() {
	m.shutdownOnce.Do(func() {
		if m.deps.Runner != nil {
			m.deps.Runner.Close()
		}
		if m.deps.Watcher != nil {
			m.deps.Watcher.Stop()
		}
		logging.UI("shutdown complete")
	})
}

// activeTab returns the selected tab, or nil before profiles are loaded.
func (m *Model) activeTab() *profileTab {
	if m.active < 0 || m.active >= len(m.tabs) {
		return nil
	}
	return m.tabs[m.active]
}

func (m *Model) findTab(name string) int {
	for i, t := range m.tabs {
		if t.name == name {
			return i
		}
	}
	return -1
}

// ActiveRecords returns a copy of the active profile's records.
func (m *Model) ActiveRecords() []medication.Record {
	if t := m.activeTab(); t != nil {
		return medication.Clone(t.records)
	}
	return nil
}

// TabNames returns the open profile names in tab order.
func (m *Model) TabNames() []string {
	names := make([]string, 0, len(m.tabs))
	for _, t := range m.tabs {
		names = append(names, t.name)
	}
	return names
}
