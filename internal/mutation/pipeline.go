// Package mutation executes technician create/update/delete requests and
// invalidates the list cache once the API confirms them.
package mutation

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kingrea/staff-directory/internal/api"
	"github.com/kingrea/staff-directory/internal/technician"
)

// Kind names one class of mutation.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Invalidator is the slice of the record cache the pipeline needs.
type Invalidator interface {
	Invalidate(keys ...string)
}

// Pipeline runs one request per call. Calls are not serialized against each
// other; when two writes to the same record race, whichever the API applies
// last wins.
type Pipeline struct {
	client api.Client
	cache  Invalidator
	logger *zap.Logger

	mu      sync.Mutex
	pending map[Kind]int
}

// Option customizes Pipeline construction.
type Option func(*Pipeline)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l.Named("mutation")
		}
	}
}

// New wires a pipeline to the API client and the cache it invalidates.
func New(client api.Client, cache Invalidator, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:  client,
		cache:   cache,
		logger:  zap.NewNop(),
		pending: map[Kind]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Pending reports whether a mutation of kind is in flight.
func (p *Pipeline) Pending(kind Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[kind] > 0
}

// Create validates d and posts it.
func (p *Pipeline) Create(ctx context.Context, d technician.Draft) (technician.Record, error) {
	if err := d.Validate(); err != nil {
		return technician.Record{}, err
	}
	return execute(ctx, p, KindCreate, technician.MsgCreateFailed, "", func(ctx context.Context) (technician.Record, error) {
		return p.client.Create(ctx, d)
	})
}

// Update sends only the fields present in patch.
func (p *Pipeline) Update(ctx context.Context, id string, patch technician.Patch) (technician.Record, error) {
	if strings.TrimSpace(id) == "" {
		return technician.Record{}, technician.Rejected("id is required")
	}
	if patch.Empty() {
		return technician.Record{}, technician.Rejected("nothing to update")
	}
	if err := patch.Validate(); err != nil {
		return technician.Record{}, err
	}
	return execute(ctx, p, KindUpdate, technician.MsgUpdateFailed, id, func(ctx context.Context) (technician.Record, error) {
		return p.client.Update(ctx, id, patch)
	})
}

// Remove deletes the record. It cannot be undone.
func (p *Pipeline) Remove(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return technician.Rejected("id is required")
	}
	_, err := execute(ctx, p, KindDelete, technician.MsgDeleteFailed, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.client.Delete(ctx, id)
	})
	return err
}

func execute[T any](ctx context.Context, p *Pipeline, kind Kind, message, id string, call func(context.Context) (T, error)) (T, error) {
	p.begin(kind)
	defer p.end(kind)

	fields := []zap.Field{zap.String("kind", string(kind))}
	if id != "" {
		fields = append(fields, zap.String("id", id))
	}

	out, err := call(ctx)
	if err != nil {
		p.logger.Warn("mutation failed", append(fields, zap.Error(err))...)
		var zero T
		return zero, technician.MutationFailed(string(kind), message, err)
	}
	// Only after the API confirmed the write.
	if p.cache != nil {
		p.cache.Invalidate(technician.ListKey)
	}
	p.logger.Info("mutation applied", fields...)
	return out, nil
}

func (p *Pipeline) begin(kind Kind) {
	p.mu.Lock()
	p.pending[kind]++
	p.mu.Unlock()
}

func (p *Pipeline) end(kind Kind) {
	p.mu.Lock()
	p.pending[kind]--
	p.mu.Unlock()
}
