package technician

import "strings"

// Draft is the create/edit form payload in UI vocabulary.
type Draft struct {
	Name   string
	Phone  string
	Skill  Skill
	Active bool
}

// EmptyDraft is the form state for a new technician.
func EmptyDraft() Draft {
	return Draft{Skill: SkillMechanic, Active: true}
}

// DraftFrom seeds a form from an existing record, normalising its skill.
func DraftFrom(r Record) Draft {
	return Draft{
		Name:   r.Name,
		Phone:  r.Phone,
		Skill:  NormalizeSkill(r.SkillText),
		Active: r.Active,
	}
}

// Submittable reports whether name and phone are non-empty after trimming.
func (d Draft) Submittable() bool {
	return strings.TrimSpace(d.Name) != "" && strings.TrimSpace(d.Phone) != ""
}

// Validate checks the draft before any network call.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return Rejected("name is required")
	}
	if strings.TrimSpace(d.Phone) == "" {
		return Rejected("phone is required")
	}
	if !d.Skill.Valid() {
		return Rejected("skill must be one of Mechanic, Repairer, Asst. Mechanic")
	}
	return nil
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	Name   *string
	Phone  *string
	Skill  *Skill
	Active *bool
}

// PatchFrom turns a full draft into a patch that sets every field.
func PatchFrom(d Draft) Patch {
	name, phone, skill, active := d.Name, d.Phone, d.Skill, d.Active
	return Patch{Name: &name, Phone: &phone, Skill: &skill, Active: &active}
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Skill == nil && p.Active == nil
}

// Validate applies the draft rules to the fields that are present.
func (p Patch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return Rejected("name is required")
	}
	if p.Phone != nil && strings.TrimSpace(*p.Phone) == "" {
		return Rejected("phone is required")
	}
	if p.Skill != nil && !p.Skill.Valid() {
		return Rejected("skill must be one of Mechanic, Repairer, Asst. Mechanic")
	}
	return nil
}
