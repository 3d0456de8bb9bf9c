// Package app implements the interactive medtrack terminal UI.
//
// The bubbletea Update loop is the single interaction context: it owns every
// profile's record list. Background work goes through task.Runner and its
// completions are delivered inside Update, so callbacks may touch Model state
// directly.
package app

import (
	"sync"

	"medtrack/cmd/medtrack/ui"
	"medtrack/internal/config"
	"medtrack/internal/medication"
	"medtrack/internal/perception"
	"medtrack/internal/reconcile"
	"medtrack/internal/store"
	"medtrack/internal/task"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
)

// Deps are the collaborators the model drives.
type Deps struct {
	Config     *config.Config
	ConfigPath string
	Catalog    *store.Catalog
	Runner     *task.Runner
	Advisor    *perception.Advisor
	Engine     *reconcile.Engine

	// Watcher is optional. When set, profile databases created or removed
	// outside the UI are reported as they appear.
	Watcher *store.ProfileWatcher
}

// InputMode selects what keystrokes are routed to.
type InputMode int

const (
	ModeNormal InputMode = iota // keys are commands on the medication table
	ModeChat                    // typing a chat message
	ModeForm                    // add/edit medication form
	ModePrompt                  // single-line prompt (profile name, API key)
)

// promptKind says what a ModePrompt value is used for.
type promptKind int

const (
	promptNone promptKind = iota
	promptNewProfile
	promptRenameProfile
	promptAPIKey
)

// Form field indexes.
const (
	fieldName = iota
	fieldStrength
	fieldFrequency
	fieldCount
)

// chatLine is one entry of a profile's chat transcript.
type chatLine struct {
	kind chatKind
	text string
}

type chatKind int

const (
	lineAgent chatKind = iota
	lineUser
	lineError
	lineInfo
	lineTable
)

// pendingOp is a profile-level operation submitted but not yet delivered.
type pendingOp int

const (
	pendingNone pendingOp = iota
	pendingRename
	pendingUpdate
)

func (p pendingOp) String() string {
	switch p {
	case pendingRename:
		return "rename profile"
	case pendingUpdate:
		return "update database"
	default:
		return "none"
	}
}

// profileTab is one open profile.
type profileTab struct {
	name    string
	records []medication.Record
	loaded  bool
	chat    []chatLine

	// pending is set from submit until the completion is delivered. While
	// set, the profile's name and database belong to that operation.
	pending   pendingOp
	pendingID task.ID
}

// Model is the bubbletea model. It is used through a pointer so completion
// callbacks can close over it.
type Model struct {
	deps   Deps
	styles ui.Styles
	md     *ui.Markdown

	tabs   []*profileTab
	active int

	mode      InputMode
	prompt    promptKind
	editIndex int // -1 when the form adds a record

	table     table.Model
	chatView  viewport.Model
	chatInput textinput.Model
	form      [fieldCount]textinput.Model
	formFocus int
	lineInput textinput.Model
	spinner   spinner.Model

	status      string
	statusIsErr bool

	width  int
	height int

	shutdownOnce sync.Once
	quitting     bool
}

// completionMsg carries a finished unit of work to Update for delivery.
type completionMsg struct {
	c task.Completion
}

// runnerDoneMsg reports that the runner is closed and drained.
type runnerDoneMsg struct{}

// profileEventMsg carries a watcher event.
type profileEventMsg store.ProfileEvent
