// Package apitest provides an in-memory api.Client for tests.
package apitest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/kingrea/staff-directory/internal/api"
	"github.com/kingrea/staff-directory/internal/technician"
)

// Call records one request the fake received.
type Call struct {
	Method string
	ID     string
	Draft  technician.Draft
	Patch  technician.Patch
}

// Client keeps records in memory and records every call.
type Client struct {
	mu      sync.Mutex
	records []technician.Record
	nextID  int
	calls   []Call

	// Fail, when set, is returned by the named method ("List", "Create",
	// "Update", "Delete") instead of touching the records.
	Fail map[string]error
	// Block, when set for a method, is received from before the call proceeds.
	Block map[string]chan struct{}
}

var _ api.Client = (*Client)(nil)

// New seeds the fake with records.
func New(records ...technician.Record) *Client {
	c := &Client{nextID: 100, Fail: map[string]error{}, Block: map[string]chan struct{}{}}
	c.records = append(c.records, records...)
	return c
}

// Calls returns a copy of the calls received so far.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsTo counts calls for one method.
func (c *Client) CallsTo(method string) int {
	n := 0
	for _, call := range c.Calls() {
		if call.Method == method {
			n++
		}
	}
	return n
}

// Records returns a copy of the stored records.
func (c *Client) Records() []technician.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]technician.Record(nil), c.records...)
}

func (c *Client) enter(call Call) error {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	block := c.Block[call.Method]
	err := c.Fail[call.Method]
	c.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (c *Client) List(ctx context.Context) ([]technician.Record, error) {
	if err := c.enter(Call{Method: "List"}); err != nil {
		return nil, err
	}
	return c.Records(), ctx.Err()
}

func (c *Client) Create(_ context.Context, d technician.Draft) (technician.Record, error) {
	if err := c.enter(Call{Method: "Create", Draft: d}); err != nil {
		return technician.Record{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	rec := technician.Record{
		ID:        strconv.Itoa(c.nextID),
		Name:      d.Name,
		Phone:     d.Phone,
		Skill:     d.Skill,
		SkillText: string(d.Skill),
		Active:    d.Active,
	}
	c.records = append(c.records, rec)
	return rec, nil
}

func (c *Client) Update(_ context.Context, id string, p technician.Patch) (technician.Record, error) {
	if err := c.enter(Call{Method: "Update", ID: id, Patch: p}); err != nil {
		return technician.Record{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].ID != id {
			continue
		}
		r := &c.records[i]
		if p.Name != nil {
			r.Name = *p.Name
		}
		if p.Phone != nil {
			r.Phone = *p.Phone
		}
		if p.Skill != nil {
			r.Skill = *p.Skill
			r.SkillText = string(*p.Skill)
		}
		if p.Active != nil {
			r.Active = *p.Active
		}
		return *r, nil
	}
	return technician.Record{}, fmt.Errorf("apitest: no technician %q", id)
}

func (c *Client) Delete(_ context.Context, id string) error {
	if err := c.enter(Call{Method: "Delete", ID: id}); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].ID == id {
			c.records = append(c.records[:i], c.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("apitest: no technician %q", id)
}
