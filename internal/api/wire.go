package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kingrea/staff-directory/internal/technician"
)

// wireRecord is a technician as the API returns it.
type wireRecord struct {
	ID             wireID  `json:"id"`
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	Specialization *string `json:"specialization"`
	IsActive       bool    `json:"isActive"`
}

func (w wireRecord) record() technician.Record {
	spec := ""
	if w.Specialization != nil {
		spec = *w.Specialization
	}
	return technician.Record{
		ID:        string(w.ID),
		Name:      w.Name,
		Phone:     w.Phone,
		Skill:     technician.NormalizeSkill(spec),
		SkillText: spec,
		Active:    w.IsActive,
	}
}

type createBody struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Specialization string `json:"specialization"`
	IsActive       bool   `json:"isActive"`
}

type patchBody struct {
	Name           *string `json:"name,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
	IsActive       *bool   `json:"isActive,omitempty"`
}

// wireID accepts ids encoded as JSON strings or numbers.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = wireID(n.String())
	return nil
}
