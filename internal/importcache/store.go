// Package importcache holds scored import batches between upload and
// execution.
//
// Batches live in process memory for a fixed TTL. A restart loses every
// batch that has not been executed; callers must re-upload. Expired batches
// are invisible to readers immediately, and a background sweep reclaims
// their memory.
//
// Two operations on the same batch ID are not ordered with respect to each
// other. Callers that need, for example, a preview to never race an
// execution must serialize per ID themselves.
package importcache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/matcher"
)

// DefaultTTL is how long a batch stays available after upload.
const DefaultTTL = 30 * time.Minute

// ErrBatchNotFound is returned for unknown and expired batch IDs alike.
var ErrBatchNotFound = errors.New("import batch not found or expired")

// Batch is a normalized and scored upload awaiting execution.
type Batch struct {
	ID        string                   `json:"import_id"`
	Provider  importers.Provider       `json:"provider"`
	FileName  string                   `json:"file_name,omitempty"`
	TotalRows int                      `json:"total_rows"`
	Records   []importers.ImportRecord `json:"-"`
	Matches   []matcher.MatchResult    `json:"-"`
	RowErrors []importers.RowError     `json:"row_errors,omitempty"`
	Skipped   []importers.RowSkip      `json:"skipped,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		s.now = clock
	}
}

// WithLogger sets the logger used for sweep reports.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSizeObserver registers a callback invoked with the number of cached
// batches after every change.
func WithSizeObserver(observe func(n int)) Option {
	return func(s *Store) {
		s.observe = observe
	}
}

// Store is a TTL-bounded, concurrency-safe map of batches keyed by ID.
type Store struct {
	mu      sync.RWMutex
	batches map[string]*Batch
	ttl     time.Duration
	now     Clock
	logger  *zap.Logger
	observe func(n int)

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewStore creates a Store. A non-positive ttl uses DefaultTTL.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		batches: make(map[string]*Batch),
		ttl:     ttl,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured batch lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put stores b under a new ID and stamps its creation and expiry times.
// The stored batch is returned.
func (s *Store) Put(b *Batch) *Batch {
	now := s.now()
	b.ID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	b.CreatedAt = now
	b.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	s.batches[b.ID] = b
	n := len(s.batches)
	s.mu.Unlock()

	s.notify(n)
	return b
}

// Get returns the batch with the given ID. The batch must be treated as
// read-only.
func (s *Store) Get(id string) (*Batch, error) {
	s.mu.RLock()
	b, ok := s.batches[id]
	s.mu.RUnlock()

	if !ok || s.expired(b) {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return b, nil
}

// Take removes and returns the batch with the given ID, so that a batch is
// executed at most once.
func (s *Store) Take(id string) (*Batch, error) {
	s.mu.Lock()
	b, ok := s.batches[id]
	if ok {
		delete(s.batches, id)
	}
	n := len(s.batches)
	s.mu.Unlock()

	if ok {
		s.notify(n)
	}
	if !ok || s.expired(b) {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return b, nil
}

// Delete discards a batch. It reports whether a live batch was removed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	b, ok := s.batches[id]
	if ok {
		delete(s.batches, id)
	}
	n := len(s.batches)
	s.mu.Unlock()

	if ok {
		s.notify(n)
	}
	return ok && !s.expired(b)
}

// Sweep evicts expired batches and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	removed := 0
	for id, b := range s.batches {
		if s.expired(b) {
			delete(s.batches, id)
			removed++
		}
	}
	n := len(s.batches)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("swept expired import batches", zap.Int("removed", removed), zap.Int("remaining", n))
		s.notify(n)
	}
	return removed
}

// Len returns the number of stored batches, including expired ones that
// have not been swept yet.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches)
}

// Start runs Sweep on a cron schedule such as "@every 1m". It is a no-op if
// the sweeper is already running.
func (s *Store) Start(schedule string) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("import batch sweeper started", zap.String("schedule", schedule), zap.Duration("ttl", s.ttl))
	return nil
}

// Stop halts the sweeper and waits for a running sweep to finish.
func (s *Store) Stop() {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Store) expired(b *Batch) bool {
	return !s.now().Before(b.ExpiresAt)
}

func (s *Store) notify(n int) {
	if s.observe != nil {
		s.observe(n)
	}
}
