// Package directory holds the staff directory's dialog state machine.
//
// The controller is not safe for concurrent use. It is driven from a single
// event loop: user events call its methods directly, and the requests it
// hands out (Op) run elsewhere and come back through Resolve.
package directory

import (
	"context"

	"github.com/kingrea/staff-directory/internal/mutation"
	"github.com/kingrea/staff-directory/internal/role"
	"github.com/kingrea/staff-directory/internal/technician"
)

// State is the dialog currently open.
type State int

const (
	Idle State = iota
	Creating
	Editing
	ConfirmingDelete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	case ConfirmingDelete:
		return "confirming-delete"
	default:
		return "unknown"
	}
}

// CapabilitySource reports what the current operator may do.
type CapabilitySource interface {
	Capabilities() role.Capabilities
}

// Mutator runs directory writes.
type Mutator interface {
	Create(ctx context.Context, d technician.Draft) (technician.Record, error)
	Update(ctx context.Context, id string, p technician.Patch) (technician.Record, error)
	Remove(ctx context.Context, id string) error
	Pending(kind mutation.Kind) bool
}

// Action is an affordance offered to the operator.
type Action string

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Success notices, shown after the API confirms a write.
const (
	MsgCreated = "Technician added to the directory."
	MsgUpdated = "Technician details updated."
	MsgDeleted = "Technician removed."
)

// Controller owns draft, dialog and pending-delete state plus the last list
// it was handed.
type Controller struct {
	caps    CapabilitySource
	mutator Mutator

	state     State
	session   int
	draft     technician.Draft
	editingID string
	deleteID  string
	inflight  map[mutation.Kind]int

	records []technician.Record
	loaded  bool
	loadErr error

	notices    []Notice
	nextNotice int
}

// New builds an idle controller.
func New(caps CapabilitySource, mutator Mutator) *Controller {
	return &Controller{
		caps:     caps,
		mutator:  mutator,
		draft:    technician.EmptyDraft(),
		inflight: map[mutation.Kind]int{},
	}
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Draft() technician.Draft { return c.draft }
func (c *Controller) EditingID() string { return c.editingID }
func (c *Controller) DeleteTarget() string { return c.deleteID }
func (c *Controller) Records() []technician.Record { return c.records }
func (c *Controller) Loaded() bool { return c.loaded }

// LoadError is the persistent list failure, nil once a load succeeds.
func (c *Controller) LoadError() error { return c.loadErr }

// ActiveCount recomputes the active statistic from the current list.
func (c *Controller) ActiveCount() int { return technician.ActiveCount(c.records) }

// CanMutate reports whether write affordances are exposed.
func (c *Controller) CanMutate() bool {
	return c.caps != nil && c.caps.Capabilities().CanMutateDirectory
}

// CanViewSensitive reports whether phone numbers are shown unmasked.
func (c *Controller) CanViewSensitive() bool {
	return c.caps != nil && c.caps.Capabilities().CanViewSensitiveField
}

// Actions lists the affordances available for the current role.
func (c *Controller) Actions() []Action {
	if !c.CanMutate() {
		return nil
	}
	return []Action{ActionCreate, ActionEdit, ActionDelete}
}

// ApplyList replaces the displayed list.
func (c *Controller) ApplyList(records []technician.Record) {
	c.records = records
	c.loaded = true
	c.loadErr = nil
}

// ApplyLoadError records a failed load. With nothing ever loaded the error
// replaces the table; otherwise the last list stays visible.
func (c *Controller) ApplyLoadError(err error) {
	if err == nil {
		return
	}
	if !technician.IsKind(err, technician.KindLoad) {
		err = technician.LoadFailed(err)
	}
	c.loadErr = err
}

// OpenCreate moves Idle -> Creating with an empty draft.
func (c *Controller) OpenCreate() bool {
	if c.state != Idle || !c.CanMutate() {
		return false
	}
	c.open(Creating)
	c.draft = technician.EmptyDraft()
	return true
}

// OpenEdit moves Idle -> Editing, seeding the draft from r.
func (c *Controller) OpenEdit(r technician.Record) bool {
	if c.state != Idle || !c.CanMutate() || r.ID == "" {
		return false
	}
	c.open(Editing)
	c.draft = technician.DraftFrom(r)
	c.editingID = r.ID
	return true
}

// OpenDelete moves Idle -> ConfirmingDelete for id.
func (c *Controller) OpenDelete(id string) bool {
	if c.state != Idle || !c.CanMutate() || id == "" {
		return false
	}
	c.open(ConfirmingDelete)
	c.deleteID = id
	return true
}

// Close cancels whatever dialog is open and discards the draft. Requests
// already sent keep running; their results no longer affect the dialog.
func (c *Controller) Close() {
	if c.state == Idle {
		return
	}
	c.reset()
}

func (c *Controller) open(s State) {
	c.session++
	c.state = s
}

func (c *Controller) reset() {
	c.state = Idle
	c.draft = technician.EmptyDraft()
	c.editingID = ""
	c.deleteID = ""
}

func (c *Controller) editing() bool {
	return c.state == Creating || c.state == Editing
}

func (c *Controller) SetName(v string) {
	if c.editing() {
		c.draft.Name = v
	}
}

func (c *Controller) SetPhone(v string) {
	if c.editing() {
		c.draft.Phone = v
	}
}

func (c *Controller) SetSkill(s technician.Skill) {
	if c.editing() && s.Valid() {
		c.draft.Skill = s
	}
}

// CycleSkill steps the skill selector forward or back.
func (c *Controller) CycleSkill(forward bool) {
	if !c.editing() {
		return
	}
	if forward {
		c.draft.Skill = c.draft.Skill.Next()
	} else {
		c.draft.Skill = c.draft.Skill.Prev()
	}
}

func (c *Controller) SetActive(v bool) {
	if c.editing() {
		c.draft.Active = v
	}
}

func (c *Controller) ToggleActive() {
	c.SetActive(!c.draft.Active)
}

func (c *Controller) submitKind() mutation.Kind {
	if c.state == Editing {
		return mutation.KindUpdate
	}
	return mutation.KindCreate
}

// Busy reports whether a mutation of kind is still outstanding.
func (c *Controller) Busy(kind mutation.Kind) bool {
	if c.inflight[kind] > 0 {
		return true
	}
	return c.mutator != nil && c.mutator.Pending(kind)
}

// CanSubmit is false while name or phone is blank or a request of the same
// kind is in flight.
func (c *Controller) CanSubmit() bool {
	if !c.editing() || !c.CanMutate() {
		return false
	}
	return c.draft.Submittable() && !c.Busy(c.submitKind())
}

// Submit hands out the create or update request for the open dialog.
func (c *Controller) Submit() (Op, bool) {
	if !c.CanSubmit() {
		return Op{}, false
	}
	op := Op{Kind: c.submitKind(), Session: c.session, Draft: c.draft}
	if op.Kind == mutation.KindUpdate {
		op.ID = c.editingID
		op.Patch = technician.PatchFrom(c.draft)
	}
	c.inflight[op.Kind]++
	return op, true
}

// ConfirmDelete hands out the delete request. The confirmation stays open
// until the request resolves.
func (c *Controller) ConfirmDelete() (Op, bool) {
	if c.state != ConfirmingDelete || !c.CanMutate() || c.Busy(mutation.KindDelete) {
		return Op{}, false
	}
	c.inflight[mutation.KindDelete]++
	return Op{Kind: mutation.KindDelete, Session: c.session, ID: c.deleteID}, true
}

// Resolve applies a finished request. Only the dialog session that issued
// it is closed; a dialog the operator already dismissed is not reopened.
func (c *Controller) Resolve(res Result) {
	if c.inflight[res.Op.Kind] > 0 {
		c.inflight[res.Op.Kind]--
	}
	current := res.Op.Session == c.session

	if res.Err != nil {
		c.Notify(NoticeError, technician.UserMessage(res.Err))
		if res.Op.Kind == mutation.KindDelete && current && c.state == ConfirmingDelete {
			c.reset()
		}
		return
	}

	switch res.Op.Kind {
	case mutation.KindCreate:
		c.Notify(NoticeSuccess, MsgCreated)
		if current && c.state == Creating {
			c.reset()
		}
	case mutation.KindUpdate:
		c.Notify(NoticeSuccess, MsgUpdated)
		if current && c.state == Editing {
			c.reset()
		}
	case mutation.KindDelete:
		c.Notify(NoticeSuccess, MsgDeleted)
		if current && c.state == ConfirmingDelete {
			c.reset()
		}
	}
}
