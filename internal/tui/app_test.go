package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/staff-directory/internal/api/apitest"
	"github.com/kingrea/staff-directory/internal/cache"
	"github.com/kingrea/staff-directory/internal/directory"
	"github.com/kingrea/staff-directory/internal/journal"
	"github.com/kingrea/staff-directory/internal/role"
	"github.com/kingrea/staff-directory/internal/technician"
)

func staff() []technician.Record {
	return []technician.Record{
		{ID: "1", Name: "Ana", Phone: "0411 111 111", SkillText: "Senior Repair Tech", Skill: technician.SkillRepairer, Active: true},
		{ID: "2", Name: "Ben", Phone: "0422 222 222", SkillText: "Mechanic", Skill: technician.SkillMechanic, Active: false},
		{ID: "3", Name: "Cal", Phone: "0433 333 333", SkillText: "Asst. Mechanic", Skill: technician.SkillAsstMechanic, Active: true},
		{ID: "4", Name: "Dee", Phone: "0444 444 444", Active: true},
		{ID: "5", Name: "Eve", Phone: "0455 555 555", SkillText: "Mechanic", Skill: technician.SkillMechanic, Active: false},
	}
}

type harness struct {
	app       *App
	client    *apitest.Client
	records   *RecordCache
	roles     *role.Store
	persisted *role.MemoryPersister
}

func newHarness(t *testing.T, r role.Role, records ...technician.Record) *harness {
	t.Helper()
	return newHarnessWith(t, r, nil, records...)
}

func newHarnessWith(t *testing.T, r role.Role, opts []AppOption, records ...technician.Record) *harness {
	t.Helper()
	client := apitest.New(records...)
	persisted := role.NewMemoryPersister(string(r))
	roles := role.NewStore(persisted)
	c := cache.New[[]technician.Record]()
	app := NewApp(roles, c, client, opts...)
	t.Cleanup(func() {
		app.Close()
		c.Close()
	})
	h := &harness{app: app, client: client, records: c, roles: roles, persisted: persisted}
	h.settle()
	return h
}

// settle waits for background fetches and delivers the change to the loop.
func (h *harness) settle() {
	h.records.Wait()
	h.app.Update(listChangedMsg{})
}

func (h *harness) press(msg tea.KeyMsg) tea.Cmd {
	_, cmd := h.app.Update(msg)
	return cmd
}

func (h *harness) typeText(s string) {
	h.press(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// deliver runs cmd and feeds its message back into the loop.
func (h *harness) deliver(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	h.app.Update(cmd())
}

func TestTechnicianRoleIsReadOnly(t *testing.T) {
	h := newHarness(t, role.Technician, staff()...)
	ctrl := h.app.Controller()

	assert.Equal(t, 3, ctrl.ActiveCount())
	assert.Empty(t, ctrl.Actions())

	for _, r := range []rune{'n', 'e', 'd'} {
		h.press(keyRune(r))
		assert.Equal(t, directory.Idle, ctrl.State())
	}
	h.press(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, directory.Idle, ctrl.State())

	view := h.app.View()
	assert.Contains(t, view, "Active Staff")
	assert.NotContains(t, view, "Actions")
	assert.NotContains(t, view, "n new")
	assert.Equal(t, 1, h.client.CallsTo("List"))
	assert.Equal(t, 0, h.client.CallsTo("Create")+h.client.CallsTo("Update")+h.client.CallsTo("Delete"))
}

func TestPhoneMaskedBelowManager(t *testing.T) {
	h := newHarness(t, role.Technician, staff()...)
	rows := h.app.table.Rows()
	require.Len(t, rows, 5)
	assert.Equal(t, "•••• ••• 111", rows[0][2])
	assert.Len(t, rows[0], 5)

	admin := newHarness(t, role.Admin, staff()...)
	rows = admin.app.table.Rows()
	assert.Equal(t, "0411 111 111", rows[0][2])
	assert.Len(t, rows[0], 6)
	assert.Equal(t, "N/A", rows[3][3])
}

func TestCreateThroughKeys(t *testing.T) {
	h := newHarness(t, role.Admin)
	ctrl := h.app.Controller()
	assert.Contains(t, h.app.View(), "No technicians found. Add your first technician to get started.")

	h.press(keyRune('n'))
	require.Equal(t, directory.Creating, ctrl.State())
	assert.Nil(t, h.press(tea.KeyMsg{Type: tea.KeyCtrlS}), "blank form cannot submit")

	h.typeText("Bruce Smith")
	h.press(tea.KeyMsg{Type: tea.KeyTab})
	h.typeText("0400 000 000")
	h.press(tea.KeyMsg{Type: tea.KeyTab})
	h.press(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, technician.Draft{Name: "Bruce Smith", Phone: "0400 000 000", Skill: technician.SkillRepairer, Active: true}, ctrl.Draft())

	cmd := h.press(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, h.press(tea.KeyMsg{Type: tea.KeyCtrlS}), "in-flight create blocks resubmission")
	h.deliver(t, cmd)

	assert.Equal(t, directory.Idle, ctrl.State())
	calls := h.client.Calls()
	require.Equal(t, 1, h.client.CallsTo("Create"))
	for _, c := range calls {
		if c.Method == "Create" {
			assert.Equal(t, technician.SkillRepairer, c.Draft.Skill)
			assert.True(t, c.Draft.Active)
		}
	}

	h.settle()
	assert.Equal(t, 2, h.client.CallsTo("List"), "create invalidates the list")
	require.Len(t, ctrl.Records(), 1)
	assert.Equal(t, "Bruce Smith", ctrl.Records()[0].Name)
	assert.Contains(t, h.app.View(), directory.MsgCreated)

	h.press(keyRune('x'))
	assert.Empty(t, ctrl.Notices())
}

func TestEditSeedsNormalizedSkillAndSendsFullForm(t *testing.T) {
	h := newHarness(t, role.Admin, staff()...)
	ctrl := h.app.Controller()

	h.press(keyRune('e'))
	require.Equal(t, directory.Editing, ctrl.State())
	assert.Equal(t, "1", ctrl.EditingID())
	assert.Equal(t, technician.SkillRepairer, ctrl.Draft().Skill)
	assert.Equal(t, "Ana", h.app.inputs[fieldName].Value())

	h.press(tea.KeyMsg{Type: tea.KeyTab})
	h.press(tea.KeyMsg{Type: tea.KeyTab})
	h.press(tea.KeyMsg{Type: tea.KeyTab})
	h.press(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.False(t, ctrl.Draft().Active)

	h.deliver(t, h.press(tea.KeyMsg{Type: tea.KeyCtrlS}))
	assert.Equal(t, directory.Idle, ctrl.State())

	var patch technician.Patch
	for _, c := range h.client.Calls() {
		if c.Method == "Update" {
			assert.Equal(t, "1", c.ID)
			patch = c.Patch
		}
	}
	require.NotNil(t, patch.Active)
	assert.False(t, *patch.Active)
	require.NotNil(t, patch.Skill)
	assert.Equal(t, technician.SkillRepairer, *patch.Skill)

	h.settle()
	rec, ok := technician.Find(ctrl.Records(), "1")
	require.True(t, ok)
	assert.False(t, rec.Active)
	assert.Equal(t, 2, ctrl.ActiveCount())
}

func TestDeleteCancelAndConfirm(t *testing.T) {
	h := newHarness(t, role.Admin, staff()...)
	ctrl := h.app.Controller()

	h.press(tea.KeyMsg{Type: tea.KeyDown})
	h.press(keyRune('d'))
	require.Equal(t, directory.ConfirmingDelete, ctrl.State())
	assert.Equal(t, "2", ctrl.DeleteTarget())
	assert.Contains(t, h.app.View(), "Ben")

	h.press(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, directory.Idle, ctrl.State())
	assert.Equal(t, "", ctrl.DeleteTarget())
	assert.Equal(t, 0, h.client.CallsTo("Delete"))

	h.press(keyRune('d'))
	h.deliver(t, h.press(keyRune('y')))
	assert.Equal(t, directory.Idle, ctrl.State())
	assert.Equal(t, 1, h.client.CallsTo("Delete"))

	h.settle()
	assert.Len(t, ctrl.Records(), 4)
	_, ok := technician.Find(ctrl.Records(), "2")
	assert.False(t, ok)
}

func TestMutationFailureShowsNotice(t *testing.T) {
	h := newHarness(t, role.Admin, staff()...)
	h.client.Fail["Delete"] = errors.New("fetch http://x failed: 500 Internal Server Error - ")
	ctrl := h.app.Controller()

	h.press(keyRune('d'))
	h.deliver(t, h.press(keyRune('y')))

	assert.Equal(t, directory.Idle, ctrl.State())
	assert.Contains(t, h.app.View(), technician.MsgDeleteFailed)
	assert.Len(t, ctrl.Records(), 5)
	assert.Equal(t, 1, h.client.CallsTo("List"), "failed writes do not refetch")
}

func TestRoleSwitchPersistsAndRefetches(t *testing.T) {
	h := newHarness(t, role.Admin, staff()...)
	ctrl := h.app.Controller()
	require.True(t, ctrl.CanMutate())

	h.press(keyRune('o'))
	require.True(t, h.app.choosingRole)
	h.app.roleMenu.Select(2)
	cmd := h.press(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, h.app.choosingRole)
	h.deliver(t, cmd)

	assert.Equal(t, role.Technician, h.roles.Role())
	v, ok, err := h.persisted.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Technician", v)

	h.settle()
	assert.Equal(t, 2, h.client.CallsTo("List"), "role change invalidates cached data")
	assert.False(t, ctrl.CanMutate())
	assert.Empty(t, ctrl.Actions())
	assert.Len(t, h.app.table.Rows()[0], 5)
}

func TestRoleLossClosesOpenDialog(t *testing.T) {
	h := newHarness(t, role.Admin, staff()...)
	ctrl := h.app.Controller()
	h.press(keyRune('n'))
	require.Equal(t, directory.Creating, ctrl.State())

	cmd := h.app.switchRole(role.Manager)
	h.deliver(t, cmd)
	assert.Equal(t, directory.Idle, ctrl.State())
}

// unsavedPersister reads Admin and refuses every write.
type unsavedPersister struct{}

func (unsavedPersister) Load(context.Context) (string, bool, error) { return "Admin", true, nil }
func (unsavedPersister) Save(context.Context, string) error          { return errors.New("disk full") }

func TestRoleSwitchFailureStaysVisibleAfterRefetch(t *testing.T) {
	client := apitest.New(staff()...)
	roles := role.NewStore(unsavedPersister{})
	c := cache.New[[]technician.Record]()
	app := NewApp(roles, c, client)
	t.Cleanup(func() {
		app.Close()
		c.Close()
	})
	h := &harness{app: app, client: client, records: c, roles: roles}
	h.settle()

	h.press(keyRune('o'))
	h.app.roleMenu.Select(2)
	h.deliver(t, h.press(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, role.Technician, roles.Role())

	h.settle()
	assert.Equal(t, 2, client.CallsTo("List"))
	assert.Contains(t, app.View(), "Role changed for this session only")
	assert.Contains(t, app.View(), "disk full")
}

func TestLoadFailureReplacesTableUntilRetry(t *testing.T) {
	client := apitest.New(staff()...)
	client.Fail["List"] = errors.New("connection refused")
	roles := role.NewStore(role.NewMemoryPersister())
	c := cache.New[[]technician.Record]()
	app := NewApp(roles, c, client)
	t.Cleanup(func() {
		app.Close()
		c.Close()
	})
	h := &harness{app: app, client: client, records: c, roles: roles}
	h.settle()

	ctrl := app.Controller()
	require.Error(t, ctrl.LoadError())
	assert.Contains(t, app.View(), technician.MsgLoadFailed)
	assert.Equal(t, role.Admin, roles.Role(), "missing stored role falls back to Admin")

	delete(client.Fail, "List")
	cmd := h.press(keyRune('r'))
	assert.Contains(t, app.View(), "Reloading technicians...")
	h.deliver(t, cmd)
	h.settle()
	assert.NotContains(t, app.View(), "Reloading technicians...")

	assert.NoError(t, ctrl.LoadError())
	assert.Len(t, ctrl.Records(), 5)
	assert.NotContains(t, app.View(), technician.MsgLoadFailed)
}

func TestQuitKeys(t *testing.T) {
	h := newHarness(t, role.Admin)
	cmd := h.press(keyRune('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	h.press(keyRune('n'))
	h.press(keyRune('q'))
	assert.Equal(t, directory.Creating, h.app.Controller().State(), "q types into the form")
	assert.Equal(t, "q", h.app.Controller().Draft().Name)
	cmd = h.press(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestActivityJournalRecordsWritesAndRoleSwitches(t *testing.T) {
	j, err := journal.Open(t.TempDir())
	require.NoError(t, err)
	h := newHarnessWith(t, role.Admin, []AppOption{WithJournal(j)}, staff()...)
	assert.Contains(t, h.app.View(), "a activity")

	h.press(keyRune('a'))
	assert.Contains(t, h.app.View(), "No activity yet.")

	h.press(keyRune('d'))
	h.deliver(t, h.press(keyRune('y')))
	h.settle()

	h.client.Fail["Delete"] = errors.New("boom")
	h.press(keyRune('d'))
	h.deliver(t, h.press(keyRune('y')))

	h.press(keyRune('o'))
	h.app.roleMenu.Select(1)
	h.deliver(t, h.press(tea.KeyMsg{Type: tea.KeyEnter}))

	lines := j.Tail(10)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "INFO  [Admin] delete 1")
	assert.Contains(t, lines[1], "WARN  [Admin] delete 2 failed")
	assert.Contains(t, lines[2], "[Manager] switched role")
	assert.Contains(t, h.app.View(), "switched role")

	h.press(keyRune('a'))
	assert.NotContains(t, h.app.View(), "switched role")
}
