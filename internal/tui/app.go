// internal/tui/app.go
//
// This is the terminal front end of the staff directory. It uses bubbletea,
// which follows The Elm Architecture:
//
// 1. Model: the App below plus the directory controller it drives
// 2. Update: a function that changes state in response to messages
// 3. View: a function that renders state to a string
//
// Network work (list loads, create/update/delete, role persistence) runs in
// tea.Cmds and comes back as messages, so Update is the only place state
// changes.

package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kingrea/staff-directory/internal/api"
	"github.com/kingrea/staff-directory/internal/cache"
	"github.com/kingrea/staff-directory/internal/directory"
	"github.com/kingrea/staff-directory/internal/journal"
	"github.com/kingrea/staff-directory/internal/mutation"
	"github.com/kingrea/staff-directory/internal/role"
	"github.com/kingrea/staff-directory/internal/technician"
)

const (
	defaultRequestTimeout = 15 * time.Second

	reloadingStatus = "Reloading technicians..."
)

// RoleSwitcher is the role store as seen by the UI.
type RoleSwitcher interface {
	Role() role.Role
	Capabilities() role.Capabilities
	SetRole(ctx context.Context, r role.Role) error
	OnChange(fn func(role.Role)) func()
}

// RecordCache is the technician list cache.
type RecordCache = cache.Cache[[]technician.Record]

// formField is the focused control in the create/edit dialog.
type formField int

const (
	fieldName formField = iota
	fieldPhone
	fieldSkill
	fieldActive
	fieldCount
)

// listChangedMsg tells the loop to re-read the list cache entry.
type listChangedMsg struct{}

// opDoneMsg carries a finished create/update/delete.
type opDoneMsg struct {
	result directory.Result
}

// roleChangedMsg reports the outcome of a role switch.
type roleChangedMsg struct {
	role role.Role
	err  error
}

// reloadDoneMsg reports a manual retry of the list load.
type reloadDoneMsg struct {
	err error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.logger = l.Named("tui")
		}
	}
}

// WithRequestTimeout bounds each mutation and manual reload.
func WithRequestTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMutator replaces the mutation pipeline built from the client.
func WithMutator(m directory.Mutator) AppOption {
	return func(a *App) {
		if m != nil {
			a.mutator = m
		}
	}
}

// WithJournal records writes and role switches to an activity journal,
// which the "a" key shows under the table.
func WithJournal(j *journal.Journal) AppOption {
	return func(a *App) {
		a.journal = j
	}
}

// App is the main application model.
type App struct {
	roles   RoleSwitcher
	records *RecordCache
	client  api.Client
	mutator directory.Mutator
	ctrl    *directory.Controller
	logger  *zap.Logger
	journal *journal.Journal
	timeout time.Duration

	changes     chan struct{}
	unsubscribe func()
	unlisten    func()
	snapshot    cache.Snapshot[[]technician.Record]

	// UI components
	table        table.Model
	inputs       [2]textinput.Model
	focus        formField
	roleMenu     list.Model
	choosingRole bool
	showActivity bool
	statusMsg    string

	width  int
	height int
}

// NewApp wires the directory to its collaborators and subscribes to the
// technician list, which starts the initial load.
func NewApp(roles RoleSwitcher, records *RecordCache, client api.Client, opts ...AppOption) *App {
	a := &App{
		roles:   roles,
		records: records,
		client:  client,
		logger:  zap.NewNop(),
		timeout: defaultRequestTimeout,
		changes: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.mutator == nil {
		a.mutator = mutation.New(client, records, mutation.WithLogger(a.logger))
	}
	a.ctrl = directory.New(roles, a.mutator)
	a.table = newStaffTable()
	a.inputs = newFormInputs()
	a.roleMenu = newRoleMenu(roles.Role())

	// Field visibility depends on the role, so every cached resource is
	// refetched after a switch.
	a.unlisten = roles.OnChange(func(role.Role) {
		records.InvalidateAll()
	})
	a.unsubscribe = records.Subscribe(technician.ListKey, directory.ListLoader(client), func(cache.Snapshot[[]technician.Record]) {
		select {
		case a.changes <- struct{}{}:
		default:
		}
	})
	a.applySnapshot()
	return a
}

// Close releases the cache subscription and role listener.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.unlisten != nil {
		a.unlisten()
	}
}

// Controller exposes the directory state machine, mainly for tests.
func (a *App) Controller() *directory.Controller {
	return a.ctrl
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.waitForChange()
}

func (a *App) waitForChange() tea.Cmd {
	changes := a.changes
	return func() tea.Msg {
		<-changes
		return listChangedMsg{}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.table.SetHeight(max(3, msg.Height-14))
		a.roleMenu.SetSize(max(20, msg.Width/2), max(8, msg.Height/2))
		return a, nil

	case listChangedMsg:
		a.applySnapshot()
		return a, a.waitForChange()

	case opDoneMsg:
		return a.handleOpDone(msg.result)

	case roleChangedMsg:
		return a.handleRoleChanged(msg)

	case reloadDoneMsg:
		if msg.err != nil {
			a.logger.Warn("manual reload failed", zap.Error(msg.err))
		}
		if a.statusMsg == reloadingStatus {
			a.statusMsg = ""
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.choosingRole {
			return a.updateRoleMenu(msg)
		}
		switch a.ctrl.State() {
		case directory.Creating, directory.Editing:
			return a.updateForm(msg)
		case directory.ConfirmingDelete:
			return a.updateConfirmDelete(msg)
		default:
			return a.updateIdle(msg)
		}
	}
	return a, nil
}

func (a *App) updateIdle(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "n":
		if a.ctrl.OpenCreate() {
			return a, a.openForm()
		}
		return a, nil
	case "e", "enter":
		if rec, ok := a.selectedRecord(); ok && a.ctrl.OpenEdit(rec) {
			return a, a.openForm()
		}
		return a, nil
	case "d":
		if rec, ok := a.selectedRecord(); ok {
			a.ctrl.OpenDelete(rec.ID)
		}
		return a, nil
	case "x":
		a.ctrl.DismissLatest()
		return a, nil
	case "o":
		a.choosingRole = true
		a.roleMenu = newRoleMenu(a.roles.Role())
		a.roleMenu.SetSize(max(20, a.width/2), max(8, a.height/2))
		return a, nil
	case "a":
		if a.journal != nil {
			a.showActivity = !a.showActivity
		}
		return a, nil
	case "r":
		a.statusMsg = reloadingStatus
		return a, a.reload()
	}
	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

func (a *App) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		op, ok := a.ctrl.ConfirmDelete()
		if !ok {
			return a, nil
		}
		return a, a.run(op)
	case "esc", "n":
		a.ctrl.Close()
	case "x":
		a.ctrl.DismissLatest()
	}
	return a, nil
}

func (a *App) updateRoleMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		a.choosingRole = false
		return a, nil
	case "enter":
		a.choosingRole = false
		item, ok := a.roleMenu.SelectedItem().(roleItem)
		if !ok || item.role == a.roles.Role() {
			return a, nil
		}
		return a, a.switchRole(item.role)
	}
	var cmd tea.Cmd
	a.roleMenu, cmd = a.roleMenu.Update(msg)
	return a, cmd
}

func (a *App) handleOpDone(res directory.Result) (tea.Model, tea.Cmd) {
	fields := []zap.Field{zap.String("kind", string(res.Op.Kind))}
	if res.Op.ID != "" {
		fields = append(fields, zap.String("id", res.Op.ID))
	}
	if res.Err != nil {
		a.logger.Warn("request failed", append(fields, zap.Error(res.Err))...)
		a.journal.Warn(string(a.roles.Role()), "%s %s failed: %v", res.Op.Kind, describeTarget(res), res.Err)
	} else {
		a.logger.Info("request succeeded", fields...)
		a.journal.Info(string(a.roles.Role()), "%s %s", res.Op.Kind, describeTarget(res))
	}
	a.ctrl.Resolve(res)
	if a.ctrl.State() == directory.Idle {
		a.blurForm()
	}
	return a, nil
}

func (a *App) handleRoleChanged(msg roleChangedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.logger.Warn("role switch not persisted", zap.Error(msg.err))
		a.statusMsg = "Role changed for this session only: " + msg.err.Error()
		a.journal.Warn(string(msg.role), "role switch not persisted: %v", msg.err)
	} else {
		a.statusMsg = "Role set to " + string(msg.role)
		a.journal.Info(string(msg.role), "switched role")
	}
	if !a.ctrl.CanMutate() && a.ctrl.State() != directory.Idle {
		a.ctrl.Close()
		a.blurForm()
	}
	a.syncTable()
	return a, nil
}

// run executes op off the loop and reports back with opDoneMsg.
func (a *App) run(op directory.Op) tea.Cmd {
	mutator := a.mutator
	timeout := a.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return opDoneMsg{result: op.Run(ctx, mutator)}
	}
}

func (a *App) switchRole(r role.Role) tea.Cmd {
	roles := a.roles
	timeout := a.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return roleChangedMsg{role: r, err: roles.SetRole(ctx, r)}
	}
}

// reload retries the list load. The result arrives through the cache
// subscription like any other refresh.
func (a *App) reload() tea.Cmd {
	records := a.records
	timeout := a.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, err := records.Fetch(ctx, technician.ListKey)
		return reloadDoneMsg{err: err}
	}
}

func (a *App) applySnapshot() {
	snap := a.records.Read(technician.ListKey)
	a.snapshot = snap
	if snap.HasValue {
		a.ctrl.ApplyList(snap.Value)
	}
	if a.statusMsg == reloadingStatus && !snap.Fetching {
		a.statusMsg = ""
	}
	if snap.Err != nil && !snap.Fetching {
		a.ctrl.ApplyLoadError(snap.Err)
	}
	a.syncTable()
}

// describeTarget names the technician an operation touched.
func describeTarget(res directory.Result) string {
	name := res.Record.Name
	if name == "" {
		name = res.Op.Draft.Name
	}
	switch {
	case name != "" && res.Op.ID != "":
		return fmt.Sprintf("%q (%s)", name, res.Op.ID)
	case name != "":
		return fmt.Sprintf("%q", name)
	case res.Op.ID != "":
		return res.Op.ID
	default:
		return "technician"
	}
}

func (a *App) selectedRecord() (technician.Record, bool) {
	records := a.ctrl.Records()
	idx := a.table.Cursor()
	if idx < 0 || idx >= len(records) {
		return technician.Record{}, false
	}
	return records[idx], true
}
