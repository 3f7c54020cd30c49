// Package role holds the operator role for the session, remembers it across
// runs through a pluggable Persister, and derives the capability flags the
// directory uses to decide which actions exist.
//
// The role is self-declared by the operator and never checked against a
// server; it gates affordances, not access.
package role

import (
	"fmt"
	"strings"
)

// Role is one of a fixed, ordered set of privilege levels.
type Role string

const (
	Admin      Role = "Admin"
	Manager    Role = "Manager"
	Technician Role = "Technician"
)

// Default is used when nothing valid has been persisted yet.
const Default = Admin

// All lists every role, highest privilege first.
var All = []Role{Admin, Manager, Technician}

// Parse returns the role named by value, ignoring surrounding whitespace.
// It is meant for operator input; stored values must match exactly.
func Parse(value string) (Role, error) {
	candidate := Role(strings.TrimSpace(value))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("role: unknown role %q", value)
}

// Valid reports whether r is a member of All.
func (r Role) Valid() bool {
	return r.rank() >= 0
}

// AtLeast reports whether r is as privileged as min. Invalid roles are never
// at least anything.
func (r Role) AtLeast(min Role) bool {
	rr, mr := r.rank(), min.rank()
	if rr < 0 || mr < 0 {
		return false
	}
	return rr <= mr
}

func (r Role) String() string { return string(r) }

// rank is the index in All; lower is more privileged.
func (r Role) rank() int {
	for i, candidate := range All {
		if candidate == r {
			return i
		}
	}
	return -1
}

// Minimum role for each capability.
const (
	MutateDirectoryThreshold    = Admin
	ViewSensitiveFieldThreshold = Manager
)

// Capabilities are derived from a Role and never stored on their own.
type Capabilities struct {
	CanMutateDirectory    bool
	CanViewSensitiveField bool
}

// CapabilitiesFor is the total mapping from role to capability flags.
func CapabilitiesFor(r Role) Capabilities {
	return Capabilities{
		CanMutateDirectory:    r.AtLeast(MutateDirectoryThreshold),
		CanViewSensitiveField: r.AtLeast(ViewSensitiveFieldThreshold),
	}
}
