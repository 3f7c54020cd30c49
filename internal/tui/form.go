package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/staff-directory/internal/directory"
)

func newFormInputs() [2]textinput.Model {
	name := textinput.New()
	name.Prompt = ""
	name.Placeholder = "e.g. Bruce Smith"
	name.CharLimit = 120

	phone := textinput.New()
	phone.Prompt = ""
	phone.Placeholder = "e.g. 0400 000 000"
	phone.CharLimit = 40

	return [2]textinput.Model{name, phone}
}

// openForm copies the controller's fresh draft into the inputs.
func (a *App) openForm() tea.Cmd {
	draft := a.ctrl.Draft()
	a.inputs[fieldName].SetValue(draft.Name)
	a.inputs[fieldPhone].SetValue(draft.Phone)
	a.inputs[fieldName].CursorEnd()
	a.inputs[fieldPhone].CursorEnd()
	return a.focusField(fieldName)
}

func (a *App) blurForm() {
	for i := range a.inputs {
		a.inputs[i].Blur()
		a.inputs[i].SetValue("")
	}
	a.focus = fieldName
}

func (a *App) focusField(f formField) tea.Cmd {
	a.focus = f
	var cmd tea.Cmd
	for i := range a.inputs {
		if formField(i) == f {
			cmd = a.inputs[i].Focus()
		} else {
			a.inputs[i].Blur()
		}
	}
	return cmd
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.ctrl.Close()
		a.blurForm()
		return a, nil
	case "ctrl+s":
		op, ok := a.ctrl.Submit()
		if !ok {
			return a, nil
		}
		return a, a.run(op)
	case "tab", "down":
		return a, a.focusField((a.focus + 1) % fieldCount)
	case "shift+tab", "up":
		return a, a.focusField((a.focus + fieldCount - 1) % fieldCount)
	case "enter":
		if a.focus == fieldActive || a.focus == fieldSkill {
			if op, ok := a.ctrl.Submit(); ok {
				return a, a.run(op)
			}
			return a, nil
		}
		return a, a.focusField(a.focus + 1)
	}

	switch a.focus {
	case fieldSkill:
		switch msg.String() {
		case "right", "l", " ", "space":
			a.ctrl.CycleSkill(true)
		case "left", "h":
			a.ctrl.CycleSkill(false)
		}
		return a, nil
	case fieldActive:
		switch msg.String() {
		case " ", "space", "left", "right":
			a.ctrl.ToggleActive()
		}
		return a, nil
	}

	var cmd tea.Cmd
	idx := int(a.focus)
	a.inputs[idx], cmd = a.inputs[idx].Update(msg)
	switch a.focus {
	case fieldName:
		a.ctrl.SetName(a.inputs[idx].Value())
	case fieldPhone:
		a.ctrl.SetPhone(a.inputs[idx].Value())
	}
	return a, cmd
}

func (a *App) formTitle() string {
	if a.ctrl.State() == directory.Editing {
		return "Edit Technician #" + a.ctrl.EditingID()
	}
	return "Add Technician"
}
