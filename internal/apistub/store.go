package apistub

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	errNotFound      = errors.New("technician not found")
	errNameRequired  = errors.New("name is required")
	errPhoneRequired = errors.New("phone is required")
)

// Technician is a record in the API's own vocabulary.
type Technician struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	Specialization *string `json:"specialization"`
	IsActive       bool    `json:"isActive"`
}

type technicianInput struct {
	Name           *string `json:"name"`
	Phone          *string `json:"phone"`
	Specialization *string `json:"specialization"`
	IsActive       *bool   `json:"isActive"`
}

// Store keeps technicians in insertion order.
type Store struct {
	mu      sync.RWMutex
	records []Technician
	newID   func() string
}

// NewStore returns an empty store that assigns uuid ids.
func NewStore() *Store {
	return &Store{newID: uuid.NewString}
}

// SeedData is the sample staff loaded when seeding is enabled.
func SeedData() []Technician {
	spec := func(s string) *string { return &s }
	return []Technician{
		{Name: "Alex Turner", Phone: "0412 345 678", Specialization: spec("Mechanic"), IsActive: true},
		{Name: "Priya Nair", Phone: "0423 456 789", Specialization: spec("Senior Repair Tech"), IsActive: true},
		{Name: "Sam Okafor", Phone: "0434 567 890", Specialization: spec("Workshop Assistant"), IsActive: false},
		{Name: "Jordan Lee", Phone: "0445 678 901", IsActive: true},
		{Name: "Mia Rossi", Phone: "0456 789 012", Specialization: spec("Asst. Mechanic"), IsActive: false},
	}
}

// Seed inserts records, assigning ids to those without one.
func (s *Store) Seed(records ...Technician) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			r.ID = s.newID()
		}
		s.records = append(s.records, r)
	}
}

func (s *Store) List() []Technician {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Technician(nil), s.records...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Create(in technicianInput) (Technician, error) {
	t := Technician{Specialization: in.Specialization, IsActive: true}
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		t.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if t.Name == "" {
		return Technician{}, errNameRequired
	}
	if t.Phone == "" {
		return Technician{}, errPhoneRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.newID()
	s.records = append(s.records, t)
	return t, nil
}

// Update applies only the fields present in in.
func (s *Store) Update(id string, in technicianInput) (Technician, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Technician{}, errNameRequired
	}
	if in.Phone != nil && strings.TrimSpace(*in.Phone) == "" {
		return Technician{}, errPhoneRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		t := &s.records[i]
		if in.Name != nil {
			t.Name = strings.TrimSpace(*in.Name)
		}
		if in.Phone != nil {
			t.Phone = strings.TrimSpace(*in.Phone)
		}
		if in.Specialization != nil {
			spec := *in.Specialization
			t.Specialization = &spec
		}
		if in.IsActive != nil {
			t.IsActive = *in.IsActive
		}
		return *t, nil
	}
	return Technician{}, errNotFound
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return errNotFound
}
