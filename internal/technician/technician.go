// Package technician defines the staff records shown in the directory and the
// trade-skill vocabulary the operator works with.
package technician

import (
	"fmt"
	"strings"
)

// ListKey identifies the technician collection in the record cache.
const ListKey = "technicians"

// Skill is the fixed trade-skill vocabulary used by the directory forms.
type Skill string

const (
	SkillMechanic     Skill = "Mechanic"
	SkillRepairer     Skill = "Repairer"
	SkillAsstMechanic Skill = "Asst. Mechanic"
)

// Skills lists the selectable skills in display order.
var Skills = []Skill{SkillMechanic, SkillRepairer, SkillAsstMechanic}

// Valid reports whether s is one of Skills.
func (s Skill) Valid() bool {
	for _, candidate := range Skills {
		if candidate == s {
			return true
		}
	}
	return false
}

// Next cycles forward through Skills; unknown values restart at the first.
func (s Skill) Next() Skill {
	return s.step(1)
}

// Prev cycles backward through Skills.
func (s Skill) Prev() Skill {
	return s.step(-1)
}

func (s Skill) step(delta int) Skill {
	for i, candidate := range Skills {
		if candidate == s {
			return Skills[(i+delta+len(Skills))%len(Skills)]
		}
	}
	return Skills[0]
}

// ParseSkill accepts only exact members of Skills.
func ParseSkill(value string) (Skill, error) {
	s := Skill(strings.TrimSpace(value))
	if !s.Valid() {
		return "", fmt.Errorf("technician: unknown skill %q", value)
	}
	return s, nil
}

// NormalizeSkill recovers a Skill from free-text specialization data.
// The repair check runs before the assistant check, so "Repair Assistant"
// is a Repairer.
func NormalizeSkill(specialization string) Skill {
	spec := strings.ToLower(specialization)
	switch {
	case strings.Contains(spec, "repairer") || strings.Contains(spec, "repair"):
		return SkillRepairer
	case strings.Contains(spec, "asst") || strings.Contains(spec, "assistant"):
		return SkillAsstMechanic
	default:
		return SkillMechanic
	}
}

// Record is the client's cached copy of one technician.
type Record struct {
	ID    string
	Name  string
	Phone string
	// Skill is SkillText normalised onto the fixed vocabulary.
	Skill Skill
	// SkillText is the stored specialization exactly as the API returned it.
	SkillText string
	Active    bool
}

// SkillLabel is what the directory shows in the skill column.
func (r Record) SkillLabel() string {
	if strings.TrimSpace(r.SkillText) == "" {
		return "N/A"
	}
	return r.SkillText
}

// ActiveCount counts records flagged active.
func ActiveCount(records []Record) int {
	n := 0
	for _, r := range records {
		if r.Active {
			n++
		}
	}
	return n
}

// Find returns the record with id.
func Find(records []Record, id string) (Record, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// MaskPhone hides all but the last three digits of a phone number, keeping
// spacing so the column width does not change.
func MaskPhone(phone string) string {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	keep := 3
	var b strings.Builder
	seen := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= digits-keep {
				b.WriteRune('•')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
