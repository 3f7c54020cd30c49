// Package cache is a small key-indexed result cache with subscribe and
// invalidate semantics.
//
// Entries are served stale while they revalidate: invalidation marks an entry
// stale and schedules a background refetch for keys that have subscribers,
// but never clears the last known value. At most one fetch per key is in
// flight; invalidations that land while a fetch is running are coalesced into
// a single follow-up fetch.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultFetchTimeout = 30 * time.Second

// ErrNoFetcher is returned by Fetch for keys nobody registered a fetcher for.
var ErrNoFetcher = errors.New("cache: no fetcher registered for key")

// FetchFunc loads the current value for one key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is a point-in-time view of one entry.
type Snapshot[T any] struct {
	Key       string
	Value     T
	HasValue  bool
	Stale     bool
	Fetching  bool
	Err       error
	UpdatedAt time.Time
}

// Pending reports that no value has ever been fetched for the key.
func (s Snapshot[T]) Pending() bool {
	return !s.HasValue
}

type entry[T any] struct {
	value     T
	hasValue  bool
	stale     bool
	err       error
	updatedAt time.Time

	fetch    FetchFunc[T]
	subs     map[int]func(Snapshot[T])
	gen      uint64
	inflight int
	running  bool
}

type flightResult[T any] struct {
	value T
	gen   uint64
}

type settings struct {
	logger  *zap.Logger
	timeout time.Duration
	clock   func() time.Time
}

// Option customizes Cache construction.
type Option func(*settings)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l.Named("cache")
		}
	}
}

// WithFetchTimeout bounds background refetches.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Cache holds values of type T by key.
type Cache[T any] struct {
	settings

	mu      sync.Mutex
	entries map[string]*entry[T]
	nextSub int

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an empty cache.
func New[T any](opts ...Option) *Cache[T] {
	s := settings{
		logger:  zap.NewNop(),
		timeout: defaultFetchTimeout,
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache[T]{
		settings: s,
		entries:  map[string]*entry[T]{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Read returns the last known value for key. A Pending snapshot means the
// caller must Fetch (or Subscribe) to populate it.
func (c *Cache[T]) Read(key string) Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot[T]{Key: key}
	}
	return c.snapshotLocked(key, e)
}

// Subscribe registers fn for changes to key and, if fetch is non-nil, makes
// it the key's fetcher. A missing or stale value triggers a background fetch.
// fn runs on a background goroutine and must not block.
func (c *Cache[T]) Subscribe(key string, fetch FetchFunc[T], fn func(Snapshot[T])) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	if fetch != nil {
		e.fetch = fetch
	}
	id := c.nextSub
	c.nextSub++
	if fn != nil {
		e.subs[id] = fn
	}
	if (!e.hasValue || e.stale) && e.fetch != nil {
		c.refreshLocked(key, e)
	}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			delete(e.subs, id)
		}
		c.mu.Unlock()
	}
}

// Fetch loads key now, joining any fetch already in flight, and stores the
// result. It blocks until the value is available.
func (c *Cache[T]) Fetch(ctx context.Context, key string) (T, error) {
	var zero T
	res, err := c.fetchShared(ctx, key)
	c.notify(key)
	if err != nil {
		return zero, err
	}
	return res.value, nil
}

// Invalidate marks keys stale and schedules refetches for subscribed keys.
// It does not wait for the refetch.
func (c *Cache[T]) Invalidate(keys ...string) {
	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	c.InvalidateMatching(func(key string) bool {
		_, ok := wanted[key]
		return ok
	})
}

// InvalidateMatching invalidates every cached key for which match is true.
func (c *Cache[T]) InvalidateMatching(match func(key string) bool) {
	if match == nil {
		return
	}
	c.mu.Lock()
	var touched []string
	for key, e := range c.entries {
		if !match(key) {
			continue
		}
		e.gen++
		e.stale = true
		touched = append(touched, key)
		if len(e.subs) > 0 && e.fetch != nil {
			c.refreshLocked(key, e)
		}
	}
	c.mu.Unlock()

	for _, key := range touched {
		c.logger.Debug("invalidated", zap.String("key", key))
		c.notify(key)
	}
}

// InvalidateAll invalidates every key.
func (c *Cache[T]) InvalidateAll() {
	c.InvalidateMatching(func(string) bool { return true })
}

// Wait blocks until background refetches started so far have finished.
func (c *Cache[T]) Wait() {
	c.wg.Wait()
}

// Close stops background refetches. Cancelling under mu keeps refreshLocked
// from adding to wg once Wait has started.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Cache[T]) entryLocked(key string) *entry[T] {
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{subs: map[int]func(Snapshot[T]){}}
		c.entries[key] = e
	}
	return e
}

func (c *Cache[T]) snapshotLocked(key string, e *entry[T]) Snapshot[T] {
	return Snapshot[T]{
		Key:       key,
		Value:     e.value,
		HasValue:  e.hasValue,
		Stale:     e.stale,
		Fetching:  e.running || e.inflight > 0,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
	}
}

// refreshLocked starts the background loop for key unless one is running;
// a running loop notices the generation bump and fetches again.
func (c *Cache[T]) refreshLocked(key string, e *entry[T]) {
	if e.running || c.ctx.Err() != nil {
		return
	}
	e.running = true
	c.wg.Add(1)
	go c.revalidate(key)
}

func (c *Cache[T]) revalidate(key string) {
	defer c.wg.Done()
	for {
		ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		res, err := c.fetchShared(ctx, key)
		cancel()

		c.mu.Lock()
		e := c.entries[key]
		again := err == nil && e.gen != res.gen && len(e.subs) > 0 && c.ctx.Err() == nil
		if !again {
			e.running = false
		}
		c.mu.Unlock()

		if c.ctx.Err() != nil {
			return
		}
		c.notify(key)
		if !again {
			return
		}
		c.logger.Debug("refetching after concurrent invalidation", zap.String("key", key))
	}
}

func (c *Cache[T]) fetchShared(ctx context.Context, key string) (flightResult[T], error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		e := c.entryLocked(key)
		fetch := e.fetch
		gen := e.gen
		if fetch == nil {
			c.mu.Unlock()
			return flightResult[T]{gen: gen}, fmt.Errorf("%w: %s", ErrNoFetcher, key)
		}
		e.inflight++
		c.mu.Unlock()

		value, err := fetch(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		e.inflight--
		if err != nil {
			e.err = err
			c.logger.Warn("fetch failed", zap.String("key", key), zap.Error(err))
			return flightResult[T]{gen: gen}, err
		}
		e.value = value
		e.hasValue = true
		e.err = nil
		e.updatedAt = c.clock()
		e.stale = e.gen != gen
		return flightResult[T]{value: value, gen: gen}, nil
	})
	res, _ := v.(flightResult[T])
	return res, err
}

func (c *Cache[T]) notify(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked(key, e)
	subs := make([]func(Snapshot[T]), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
