package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"medtrack/cmd/medtrack/ui"
	"medtrack/internal/apperr"
	"medtrack/internal/articulation"
	"medtrack/internal/export"
	"medtrack/internal/logging"
	"medtrack/internal/medication"
	"medtrack/internal/perception"
	"medtrack/internal/reconcile"
	"medtrack/internal/store"
	"medtrack/internal/task"

	"github.com/charmbracelet/bubbles/table"
)

// errRenamePending is wrapped in the Conflict reported while a rename of the
// profile has not been delivered yet.
var errRenamePending = errors.New("a rename of this profile is pending")

// submit runs work on the runner. A nil onFailure reports the error in the
// status line. It returns "" when the runner refused the work, in which case
// neither callback will run.
func submit[T any](m *Model, name string, work func(ctx context.Context) (T, error), onSuccess func(T), onFailure func(error)) task.ID {
	if onFailure == nil {
		onFailure = func(err error) { m.setError(name, err) }
	}
	id, err := task.Go(m.deps.Runner, name, work, onSuccess, onFailure)
	if err != nil {
		m.setError(name, err)
		return ""
	}
	return id
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusIsErr = false
}

func (m *Model) setError(op string, err error) {
	logging.Get(logging.CategoryUI).Warn("%s: %v", op, err)
	m.status = describeError(op, err)
	m.statusIsErr = true
}

// describeError turns an error into a one-line notification, worded by kind.
func describeError(op string, err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindTransport:
		return fmt.Sprintf("%s: could not reach the language model service (%v)", op, err)
	case apperr.KindService:
		return fmt.Sprintf("%s: the language model service returned an unusable response (%v)", op, err)
	case apperr.KindPersistence:
		return fmt.Sprintf("%s: database error (%v)", op, err)
	case apperr.KindConflict:
		if errors.Is(err, errRenamePending) {
			return fmt.Sprintf("%s: wait for the profile rename to finish", op)
		}
		return fmt.Sprintf("%s: an update of this profile is already running", op)
	case apperr.KindConfig:
		return fmt.Sprintf("%s: %v (press K to set an API key)", op, err)
	default:
		return fmt.Sprintf("%s: %v", op, err)
	}
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

// openTab adds a tab for name, if not already open, and loads its records.
func (m *Model) openTab(name string) int {
	if i := m.findTab(name); i >= 0 {
		return i
	}
	tab := &profileTab{name: name}
	m.tabs = append(m.tabs, tab)
	m.loadTab(tab)
	return len(m.tabs) - 1
}

func (m *Model) loadTab(tab *profileTab) {
	catalog := m.deps.Catalog
	name := tab.name
	submit(m, "load "+name, func(ctx context.Context) ([]medication.Record, error) {
		s, err := catalog.OpenExisting(name)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Load(ctx)
	}, func(records []medication.Record) {
		tab.records = records
		tab.loaded = true
		if m.deps.Config.UI.GreetOnStart {
			m.resetChat(tab)
		}
		m.refresh()
	}, func(err error) {
		m.setError("load "+name, err)
		m.dropTab(tab)
	})
}

// dropTab removes tab unless it is the last one open.
func (m *Model) dropTab(tab *profileTab) {
	if len(m.tabs) <= 1 {
		return
	}
	for i, t := range m.tabs {
		if t != tab {
			continue
		}
		m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
		if m.active > i || m.active >= len(m.tabs) {
			m.active--
		}
		m.refresh()
		return
	}
}

func (m *Model) switchTab(i int) {
	if i < 0 || i >= len(m.tabs) {
		return
	}
	m.active = i
	m.refresh()
}

func (m *Model) cycleTab(delta int) {
	if len(m.tabs) == 0 {
		return
	}
	m.switchTab((m.active + delta + len(m.tabs)) % len(m.tabs))
}

func (m *Model) createProfile(name string) {
	name = strings.TrimSpace(name)
	if err := store.ValidateName(name); err != nil {
		m.setError("new profile", err)
		return
	}
	catalog := m.deps.Catalog
	submit(m, "create profile "+name, func(ctx context.Context) (string, error) {
		return name, catalog.Create(name)
	}, func(created string) {
		m.switchTab(m.openTab(created))
		m.setStatus("Created profile %s", created)
	}, nil)
}

func (m *Model) renameProfile(newName string) {
	tab := m.activeTab()
	if tab == nil {
		return
	}
	newName = strings.TrimSpace(newName)
	if err := store.ValidateName(newName); err != nil {
		m.setError("rename profile", err)
		return
	}
	if newName == tab.name {
		return
	}
	if m.findTab(newName) >= 0 {
		m.setError("rename profile", fmt.Errorf("%w: %s", store.ErrProfileExists, newName))
		return
	}
	if err := m.claim(tab, pendingRename); err != nil {
		m.setError("rename profile", err)
		return
	}
	catalog := m.deps.Catalog
	oldName := tab.name
	tab.pendingID = submit(m, "rename profile "+oldName, func(ctx context.Context) (string, error) {
		return newName, catalog.Rename(oldName, newName)
	}, func(renamed string) {
		tab.pending = pendingNone
		tab.name = renamed
		m.setStatus("Renamed %s to %s", oldName, renamed)
	}, func(err error) {
		tab.pending = pendingNone
		m.setError("rename profile", err)
	})
	if tab.pendingID == "" {
		tab.pending = pendingNone
	}
}

// claim marks tab as owned by op. It fails with a Conflict while a rename or
// update of the profile is pending or a reconciliation of it is running.
func (m *Model) claim(tab *profileTab, op pendingOp) error {
	switch {
	case tab.pending == pendingRename:
		return apperr.Conflict(op.String(), errRenamePending)
	case tab.pending == pendingUpdate, m.deps.Engine.Busy(m.deps.Catalog.Path(tab.name)):
		return apperr.Conflict(op.String(), reconcile.ErrReconcileInProgress)
	}
	tab.pending = op
	return nil
}

// closeTab closes the active tab. The last open tab cannot be closed.
func (m *Model) closeTab() {
	if len(m.tabs) <= 1 {
		m.setError("close profile", errors.New("cannot close the last open profile"))
		return
	}
	closed := m.tabs[m.active].name
	m.tabs = append(m.tabs[:m.active], m.tabs[m.active+1:]...)
	if m.active >= len(m.tabs) {
		m.active = len(m.tabs) - 1
	}
	m.refresh()
	m.setStatus("Closed %s", closed)
}

func (m *Model) handleProfileEvent(ev store.ProfileEvent) {
	switch ev.Type {
	case store.ProfileAdded:
		if m.findTab(ev.Name) < 0 {
			m.openTab(ev.Name)
			m.setStatus("Profile %s appeared and was opened", ev.Name)
		}
	case store.ProfileRemoved:
		if m.findTab(ev.Name) >= 0 {
			m.setStatus("Profile %s was removed from disk", ev.Name)
		}
	}
}

// -----------------------------------------------------------------------------
// Medications
// -----------------------------------------------------------------------------

// addMedication appends r and fetches general information about it.
func (m *Model) addMedication(r medication.Record) {
	tab := m.activeTab()
	if tab == nil {
		return
	}
	if err := r.Validate(); err != nil {
		m.setError("add medication", err)
		return
	}
	tab.records = append(tab.records, r)
	m.refresh()
	m.setStatus("Added %s; press u to save", r.Name)

	advisor := m.deps.Advisor
	name := r.Name
	submit(m, "medication info", func(ctx context.Context) (string, error) {
		return advisor.FetchInfo(ctx, name)
	}, func(info string) {
		tab.chat = append(tab.chat, chatLine{kind: lineInfo, text: fmt.Sprintf("**About %s**\n\n%s", name, info)})
		m.refreshChat()
	}, nil)
}

// editMedication replaces name, strength and frequency of record i. The
// description is kept until the next database update.
func (m *Model) editMedication(i int, r medication.Record) {
	tab := m.activeTab()
	if tab == nil || i < 0 || i >= len(tab.records) {
		return
	}
	if err := r.Validate(); err != nil {
		m.setError("edit medication", err)
		return
	}
	r.Description = tab.records[i].Description
	tab.records[i] = r
	m.refresh()
	m.setStatus("Updated %s; press u to save", r.Name)
}

func (m *Model) removeMedication(i int) {
	tab := m.activeTab()
	if tab == nil || i < 0 || i >= len(tab.records) {
		return
	}
	removed := tab.records[i].Name
	tab.records = append(tab.records[:i], tab.records[i+1:]...)
	m.refresh()
	m.setStatus("Removed %s; press u to save", removed)
}

// updateDatabase reconciles the active profile's store with its list.
func (m *Model) updateDatabase() {
	tab := m.activeTab()
	if tab == nil {
		return
	}
	if err := m.claim(tab, pendingUpdate); err != nil {
		m.setError("update database", err)
		return
	}
	id, err := m.deps.Engine.Submit(m.deps.Runner, m.deps.Catalog, tab.name, tab.records,
		func(enriched []medication.Record) {
			tab.pending = pendingNone
			tab.records = enriched
			m.resetChat(tab)
			m.refresh()
			m.setStatus("Database updated for %s", tab.name)
		},
		func(err error) {
			tab.pending = pendingNone
			m.setError("update database", err)
		},
	)
	if err != nil {
		tab.pending = pendingNone
		m.setError("update database", err)
		return
	}
	tab.pendingID = id
	m.setStatus("Updating %s...", tab.name)
}

func (m *Model) checkContraindications() {
	tab := m.activeTab()
	if tab == nil {
		return
	}
	if len(tab.records) == 0 {
		m.setError("contraindications", errors.New("please add medications first"))
		return
	}
	advisor := m.deps.Advisor
	names := medication.Names(tab.records)
	submit(m, "contraindications", func(ctx context.Context) ([]medication.Contraindication, error) {
		return advisor.FetchContraindications(ctx, names)
	}, func(rows []medication.Contraindication) {
		tab.chat = append(tab.chat, chatLine{kind: lineTable, text: ui.ContraindicationTable(rows).View(m.styles)})
		m.refreshChat()
	}, nil)
	m.setStatus("Checking contraindications for %d medications...", len(names))
}

func (m *Model) exportProfile() {
	tab := m.activeTab()
	if tab == nil {
		return
	}
	dir := m.deps.Config.Store.ExportDir()
	name := tab.name
	snapshot := medication.Clone(tab.records)
	submit(m, "export", func(ctx context.Context) (string, error) {
		return export.ToFile(dir, name, snapshot)
	}, func(path string) {
		m.setStatus("Exported %d medications to %s", len(snapshot), path)
	}, nil)
}

// -----------------------------------------------------------------------------
// Chat
// -----------------------------------------------------------------------------

// resetChat clears the transcript and greets with the current list.
func (m *Model) resetChat(tab *profileTab) {
	tab.chat = []chatLine{{kind: lineAgent, text: articulation.Greeting(medication.Summary(tab.records))}}
	if tab == m.activeTab() {
		m.refreshChat()
	}
}

func (m *Model) sendChat(message string) {
	tab := m.activeTab()
	message = strings.TrimSpace(message)
	if tab == nil || message == "" {
		return
	}
	tab.chat = append(tab.chat, chatLine{kind: lineUser, text: message})
	m.refreshChat()

	advisor := m.deps.Advisor
	summary := medication.Summary(tab.records)
	submit(m, "chat", func(ctx context.Context) (string, error) {
		return advisor.Chat(ctx, summary, message)
	}, func(reply string) {
		tab.chat = append(tab.chat, chatLine{kind: lineAgent, text: reply})
		m.refreshChat()
	}, func(err error) {
		tab.chat = append(tab.chat, chatLine{kind: lineError, text: describeError("chat", err)})
		m.refreshChat()
	})
}

// -----------------------------------------------------------------------------
// Settings
// -----------------------------------------------------------------------------

// setAPIKey stores key in the config file and swaps the advisor's client.
func (m *Model) setAPIKey(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		m.setError("set API key", errors.New("API key is empty"))
		return
	}
	cfg := *m.deps.Config
	cfg.LLM.APIKey = key
	path := m.deps.ConfigPath
	submit(m, "set API key", func(ctx context.Context) (perception.LLMClient, error) {
		client, err := perception.NewClientFromConfig(ctx, &cfg)
		if err != nil {
			return nil, err
		}
		if path != "" {
			if err := cfg.Save(path); err != nil {
				return nil, apperr.Config("save config", err)
			}
		}
		return client, nil
	}, func(client perception.LLMClient) {
		m.deps.Config.LLM.APIKey = key
		m.deps.Advisor.SetClient(client)
		m.setStatus("API key saved (%s)", cfg.LLM.MaskedKey())
	}, nil)
}

// -----------------------------------------------------------------------------
// Rendering state
// -----------------------------------------------------------------------------

// refresh rebuilds the table rows and chat pane from the active tab.
func (m *Model) refresh() {
	tab := m.activeTab()
	var rows []table.Row
	if tab != nil {
		rows = make([]table.Row, 0, len(tab.records))
		for i, r := range tab.records {
			rows = append(rows, table.Row{strconv.Itoa(i + 1), r.Name, r.Strength, r.Frequency, r.Description})
		}
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
	m.refreshChat()
}

func (m *Model) refreshChat() {
	tab := m.activeTab()
	if tab == nil {
		m.chatView.SetContent("")
		return
	}
	var sb strings.Builder
	for i, line := range tab.chat {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.renderLine(line))
	}
	m.chatView.SetContent(sb.String())
	m.chatView.GotoBottom()
}

func (m *Model) renderLine(line chatLine) string {
	s := m.styles
	switch line.kind {
	case lineUser:
		return s.Sender.Inherit(s.UserMessage).Render("You: ") + s.UserMessage.Render(line.text)
	case lineError:
		return s.ErrorMessage.Render(line.text)
	case lineTable:
		return line.text
	case lineInfo:
		return m.md.Render(line.text)
	default:
		return s.Sender.Inherit(s.AgentMessage).Render("Assistant: ") + s.AgentMessage.Render(m.md.Render(line.text))
	}
}
