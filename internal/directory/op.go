package directory

import (
	"context"
	"fmt"

	"github.com/kingrea/staff-directory/internal/mutation"
	"github.com/kingrea/staff-directory/internal/technician"
)

// Op is one write handed out by the controller.
type Op struct {
	Kind    mutation.Kind
	Session int
	ID      string
	Draft   technician.Draft
	Patch   technician.Patch
}

// Result is an Op's outcome, fed back through Controller.Resolve.
type Result struct {
	Op     Op
	Record technician.Record
	Err    error
}

// Run executes the op. It may block and is meant to run off the event loop.
func (o Op) Run(ctx context.Context, m Mutator) Result {
	res := Result{Op: o}
	switch o.Kind {
	case mutation.KindCreate:
		res.Record, res.Err = m.Create(ctx, o.Draft)
	case mutation.KindUpdate:
		res.Record, res.Err = m.Update(ctx, o.ID, o.Patch)
	case mutation.KindDelete:
		res.Err = m.Remove(ctx, o.ID)
	default:
		res.Err = fmt.Errorf("directory: unknown op %q", o.Kind)
	}
	return res
}

// NoticeLevel separates confirmations from failures.
type NoticeLevel int

const (
	NoticeSuccess NoticeLevel = iota
	NoticeError
)

// Notice is a dismissible notification.
type Notice struct {
	ID      int
	Level   NoticeLevel
	Message string
}

// Notify queues a notice and returns its id.
func (c *Controller) Notify(level NoticeLevel, message string) int {
	c.nextNotice++
	c.notices = append(c.notices, Notice{ID: c.nextNotice, Level: level, Message: message})
	return c.nextNotice
}

// Notices returns the undismissed notices, oldest first.
func (c *Controller) Notices() []Notice {
	return append([]Notice(nil), c.notices...)
}

// Dismiss removes the notice with id.
func (c *Controller) Dismiss(id int) {
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return
		}
	}
}

// DismissLatest removes the newest notice, if any.
func (c *Controller) DismissLatest() {
	if len(c.notices) > 0 {
		c.notices = c.notices[:len(c.notices)-1]
	}
}
