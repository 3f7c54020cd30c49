package technician

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSkill(t *testing.T) {
	cases := map[string]Skill{
		"Repairer":             SkillRepairer,
		"Senior Repair Tech":   SkillRepairer,
		"PANEL REPAIRER":       SkillRepairer,
		"repair assistant":     SkillRepairer, // repair wins over assistant
		"Asst. Mechanic":       SkillAsstMechanic,
		"Workshop Assistant":   SkillAsstMechanic,
		"ASST":                 SkillAsstMechanic,
		"Mechanic":             SkillMechanic,
		"Diesel Fitter":        SkillMechanic,
		"":                     SkillMechanic,
		"Auto Electrician":     SkillMechanic,
		"assistant to repairs": SkillRepairer,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSkill(in), "input %q", in)
	}
}

func TestNormalizeSkillAlwaysValid(t *testing.T) {
	for _, in := range []string{"x", "rePaIr", "aSsT", "é", "   "} {
		assert.True(t, NormalizeSkill(in).Valid(), in)
	}
}

func TestParseSkill(t *testing.T) {
	s, err := ParseSkill("Asst. Mechanic")
	require.NoError(t, err)
	assert.Equal(t, SkillAsstMechanic, s)

	_, err = ParseSkill("mechanic")
	assert.Error(t, err)
}

func TestSkillCycling(t *testing.T) {
	assert.Equal(t, SkillRepairer, SkillMechanic.Next())
	assert.Equal(t, SkillAsstMechanic, SkillRepairer.Next())
	assert.Equal(t, SkillMechanic, SkillAsstMechanic.Next())
	assert.Equal(t, SkillAsstMechanic, SkillMechanic.Prev())
	assert.Equal(t, SkillMechanic, Skill("Welder").Next())
}

func TestDraftFromNormalisesSkill(t *testing.T) {
	d := DraftFrom(Record{ID: "7", Name: "Ana", Phone: "0411 111 111", SkillText: "Senior Repair Tech", Active: false})
	assert.Equal(t, Draft{Name: "Ana", Phone: "0411 111 111", Skill: SkillRepairer, Active: false}, d)
}

func TestDraftValidation(t *testing.T) {
	ok := Draft{Name: "Bruce Smith", Phone: "0400 000 000", Skill: SkillRepairer, Active: true}
	require.NoError(t, ok.Validate())
	assert.True(t, ok.Submittable())

	for _, d := range []Draft{
		{Name: "   ", Phone: "0400", Skill: SkillMechanic},
		{Name: "Bruce", Phone: "\t", Skill: SkillMechanic},
		{Name: "Bruce", Phone: "0400", Skill: Skill("Welder")},
	} {
		err := d.Validate()
		require.Error(t, err)
		assert.True(t, IsKind(err, KindValidation))
	}
	assert.False(t, Draft{Name: " ", Phone: "1"}.Submittable())
	assert.True(t, EmptyDraft().Active)
	assert.Equal(t, SkillMechanic, EmptyDraft().Skill)
}

func TestPatchValidationOnlyChecksPresentFields(t *testing.T) {
	active := false
	require.NoError(t, Patch{Active: &active}.Validate())
	assert.False(t, Patch{Active: &active}.Empty())
	assert.True(t, Patch{}.Empty())

	blank := " "
	assert.True(t, IsKind(Patch{Name: &blank}.Validate(), KindValidation))
	assert.True(t, IsKind(Patch{Phone: &blank}.Validate(), KindValidation))
}

func TestActiveCount(t *testing.T) {
	records := []Record{
		{ID: "1", Active: true},
		{ID: "2", Active: false},
		{ID: "3", Active: true},
		{ID: "4", Active: true},
		{ID: "5", Active: false},
	}
	assert.Equal(t, 3, ActiveCount(records))
	assert.Equal(t, 0, ActiveCount(nil))

	r, ok := Find(records, "4")
	assert.True(t, ok)
	assert.Equal(t, "4", r.ID)
	_, ok = Find(records, "9")
	assert.False(t, ok)
}

func TestSkillLabelAndMask(t *testing.T) {
	assert.Equal(t, "N/A", Record{}.SkillLabel())
	assert.Equal(t, "Senior Repair Tech", Record{SkillText: "Senior Repair Tech"}.SkillLabel())
	assert.Equal(t, "•••• ••• 000", MaskPhone("0400 000 000"))
	assert.Equal(t, "12", MaskPhone("12"))
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("503 Service Unavailable")
	err := fmt.Errorf("wrapped: %w", MutationFailed("create", MsgCreateFailed, cause))

	assert.True(t, IsKind(err, KindMutation))
	assert.False(t, IsKind(err, KindLoad))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, MsgCreateFailed, UserMessage(err))
	assert.Contains(t, err.Error(), "create: MUTATION_FAILED")

	load := LoadFailed(cause)
	assert.True(t, IsKind(load, KindLoad))
	assert.Equal(t, MsgLoadFailed, UserMessage(load))
	assert.Equal(t, "", UserMessage(nil))
}
