package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/staff-directory/internal/directory"
	"github.com/kingrea/staff-directory/internal/mutation"
	"github.com/kingrea/staff-directory/internal/role"
	"github.com/kingrea/staff-directory/internal/technician"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	accentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)
)

type roleItem struct {
	role role.Role
}

func (i roleItem) Title() string { return string(i.role) }
func (i roleItem) Description() string {
	caps := role.CapabilitiesFor(i.role)
	switch {
	case caps.CanMutateDirectory:
		return "Add, edit and delete technicians"
	case caps.CanViewSensitiveField:
		return "View the directory with contact numbers"
	default:
		return "View the directory"
	}
}
func (i roleItem) FilterValue() string { return string(i.role) }

func newRoleMenu(current role.Role) list.Model {
	items := make([]list.Item, len(role.All))
	selected := 0
	for i, r := range role.All {
		items[i] = roleItem{role: r}
		if r == current {
			selected = i
		}
	}
	menu := list.New(items, list.NewDefaultDelegate(), 40, 12)
	menu.Title = "Select Role"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	menu.SetShowHelp(false)
	menu.Select(selected)
	return menu
}

func newStaffTable() table.Model {
	t := table.New(
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF"))
	t.SetStyles(styles)
	return t
}

func (a *App) tableColumns() []table.Column {
	cols := []table.Column{
		{Title: "Staff ID", Width: 10},
		{Title: "Full Name", Width: 22},
		{Title: "Mobile Number", Width: 16},
		{Title: "Technician Skill", Width: 20},
		{Title: "Status", Width: 9},
	}
	if a.ctrl.CanMutate() {
		cols = append(cols, table.Column{Title: "Actions", Width: 14})
	}
	return cols
}

// syncTable rebuilds rows from the controller's list for the current role.
func (a *App) syncTable() {
	cols := a.tableColumns()
	sensitive := a.ctrl.CanViewSensitive()
	records := a.ctrl.Records()
	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		phone := r.Phone
		if !sensitive {
			phone = technician.MaskPhone(phone)
		}
		status := "Inactive"
		if r.Active {
			status = "Active"
		}
		row := table.Row{"#" + r.ID, r.Name, phone, r.SkillLabel(), status}
		if len(cols) > len(row) {
			row = append(row, "e edit · d del")
		}
		rows = append(rows, row)
	}
	cursor := a.table.Cursor()
	// Rows must never be shorter than the columns while they change.
	a.table.SetRows(nil)
	a.table.SetColumns(cols)
	a.table.SetRows(rows)
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	a.table.SetCursor(max(0, cursor))
}

// View renders the current state.
func (a *App) View() string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("Technician Management"),
		"  ",
		accentStyle.Render("["+string(a.roles.Role())+"]"),
	)
	sections := []string{
		header,
		mutedStyle.Render("Manage staff details and trade skills."),
		a.renderStats(),
	}
	if n := a.renderNotice(); n != "" {
		sections = append(sections, n)
	}

	switch {
	case a.choosingRole:
		sections = append(sections, dialogStyle.Render(a.roleMenu.View()))
	case a.ctrl.State() == directory.Creating || a.ctrl.State() == directory.Editing:
		sections = append(sections, a.renderForm())
	case a.ctrl.State() == directory.ConfirmingDelete:
		sections = append(sections, a.renderConfirmDelete())
	default:
		sections = append(sections, a.renderDirectory())
		if a.showActivity {
			sections = append(sections, a.renderActivity())
		}
	}

	if a.statusMsg != "" {
		sections = append(sections, mutedStyle.Render(a.statusMsg))
	}
	sections = append(sections, hintStyle.Render(a.helpLine()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderStats() string {
	stat := okStyle.Render(fmt.Sprintf("%d", a.ctrl.ActiveCount())) + mutedStyle.Render(" Active Staff")
	if a.snapshot.Fetching && a.snapshot.HasValue {
		stat += mutedStyle.Render("  · refreshing")
	}
	return stat
}

func (a *App) renderNotice() string {
	notices := a.ctrl.Notices()
	if len(notices) == 0 {
		return ""
	}
	n := notices[len(notices)-1]
	style := okStyle
	if n.Level == directory.NoticeError {
		style = errStyle
	}
	line := style.Render(n.Message) + mutedStyle.Render("  (x to dismiss)")
	if len(notices) > 1 {
		line += mutedStyle.Render(fmt.Sprintf("  +%d more", len(notices)-1))
	}
	return line
}

func (a *App) renderDirectory() string {
	title := accentStyle.Render("Staff Directory")
	loadErr := a.ctrl.LoadError()
	switch {
	case loadErr != nil && !a.ctrl.Loaded():
		return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			errStyle.Render("! "+technician.UserMessage(loadErr)),
			hintStyle.Render("Press r to retry."),
		))
	case !a.ctrl.Loaded():
		return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("Loading technicians...")))
	case len(a.ctrl.Records()) == 0:
		empty := "No technicians found."
		if a.ctrl.CanMutate() {
			empty += " Add your first technician to get started."
		}
		return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render(empty)))
	}
	parts := []string{title}
	if loadErr != nil {
		parts = append(parts, errStyle.Render("! "+technician.UserMessage(loadErr)))
	}
	parts = append(parts, a.table.View())
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (a *App) renderForm() string {
	draft := a.ctrl.Draft()
	label := func(f formField, text string) string {
		if a.focus == f {
			return accentStyle.Render("> " + text)
		}
		return mutedStyle.Render("  " + text)
	}

	skills := make([]string, 0, len(technician.Skills))
	for _, s := range technician.Skills {
		if s == draft.Skill {
			skills = append(skills, accentStyle.Render("("+string(s)+")"))
		} else {
			skills = append(skills, mutedStyle.Render(string(s)))
		}
	}
	active := "[ ] Inactive"
	if draft.Active {
		active = "[x] Active"
	}

	submit := hintStyle.Render("ctrl+s save")
	switch {
	case a.ctrl.Busy(a.submitKind()):
		submit = mutedStyle.Render("Saving...")
	case !a.ctrl.CanSubmit():
		submit = mutedStyle.Render("Name and phone are required")
	}

	lines := []string{
		titleStyle.Render(a.formTitle()),
		"",
		label(fieldName, "Full Name"),
		"  " + a.inputs[fieldName].View(),
		label(fieldPhone, "Mobile Number"),
		"  " + a.inputs[fieldPhone].View(),
		label(fieldSkill, "Technician Skill"),
		"  " + strings.Join(skills, "  "),
		label(fieldActive, "Status"),
		"  " + active,
		"",
		submit,
	}
	return dialogStyle.Render(strings.Join(lines, "\n"))
}

func (a *App) submitKind() mutation.Kind {
	if a.ctrl.State() == directory.Editing {
		return mutation.KindUpdate
	}
	return mutation.KindCreate
}

func (a *App) renderConfirmDelete() string {
	id := a.ctrl.DeleteTarget()
	name := ""
	if rec, ok := technician.Find(a.ctrl.Records(), id); ok {
		name = " (" + rec.Name + ")"
	}
	lines := []string{
		titleStyle.Render("Delete Technician"),
		fmt.Sprintf("Remove #%s%s from the directory? This cannot be undone.", id, name),
	}
	if a.ctrl.Busy(mutation.KindDelete) {
		lines = append(lines, mutedStyle.Render("Deleting..."))
	}
	return dialogStyle.Render(strings.Join(lines, "\n"))
}

func (a *App) renderActivity() string {
	lines := a.journal.Tail(6)
	head := accentStyle.Render("Activity · " + filepath.Base(a.journal.Path()))
	body := mutedStyle.Render("No activity yet.")
	if len(lines) > 0 {
		body = hintStyle.Render(strings.Join(lines, "\n"))
	}
	return boxStyle.Render(head + "\n" + body)
}

func (a *App) helpLine() string {
	switch {
	case a.choosingRole:
		return "↑/↓ choose · enter select · esc cancel"
	case a.ctrl.State() == directory.Creating || a.ctrl.State() == directory.Editing:
		return "tab next field · ←/→ skill · space toggle status · ctrl+s save · esc cancel"
	case a.ctrl.State() == directory.ConfirmingDelete:
		return "y confirm · esc cancel"
	}
	help := "↑/↓ browse · o role · r reload · x dismiss · q quit"
	if a.ctrl.CanMutate() {
		help = "n new · e edit · d delete · o role · r reload · x dismiss · q quit"
	}
	if a.journal != nil {
		help = strings.Replace(help, " · q quit", " · a activity · q quit", 1)
	}
	return help
}
