package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"tablepos/pkg/logger"
)

// ErrNoRecord is returned by a Record that has nothing stored yet.
var ErrNoRecord = errors.New("settings: no record")

// Record is the durable boundary the Store hydrates from and persists to.
type Record interface {
	// Load decodes the stored record over into. Fields absent from the
	// record keep their current value.
	Load(ctx context.Context, into *Settings) error
	Save(ctx context.Context, s Settings) error
}

// Store is the live configuration. Reads share a lock; updates are
// serialized and persisted in the order they are applied.
type Store struct {
	mu     sync.RWMutex
	cur    Settings
	record Record
	log    *logger.Logger
}

func newStore(ctx context.Context, record Record, log *logger.Logger) *Store {
	s := &Store{cur: Defaults(), record: record, log: log}
	if record == nil {
		log.Info(ctx, "settings: no durable record configured, using defaults")
		return s
	}
	loaded := Defaults()
	switch err := record.Load(ctx, &loaded); {
	case err == nil:
		s.cur = loaded
		log.Info(ctx, "settings: hydrated from record")
	case errors.Is(err, ErrNoRecord):
		log.Info(ctx, "settings: no stored record, using defaults")
	default:
		log.Warn(ctx, "settings: degraded start, record unreadable; using defaults", "error", err)
	}
	return s
}

// Get returns the current values.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update applies p in place and persists the result. A validation failure
// leaves the Store untouched. A persistence failure is returned wrapping
// ErrPersistence, but the new values stay live.
func (s *Store) Update(ctx context.Context, p Patch) (Settings, error) {
	if err := p.validate(); err != nil {
		return s.Get(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.applyTo(&s.cur)
	next := s.cur
	if s.record == nil {
		return next, nil
	}
	if err := s.record.Save(ctx, next); err != nil {
		s.log.Warn(ctx, "settings: update applied but not persisted", "error", err)
		return next, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.log.Info(ctx, "settings: updated", "tax_rate", next.TaxRate, "tip_rate", next.TipRate, "currency", next.Currency)
	return next, nil
}

// Handle hands out the single Store. It is created once by the process and
// passed to every component that reads configuration.
type Handle struct {
	mu     sync.Mutex
	inst   atomic.Pointer[Store]
	record Record
	log    *logger.Logger
}

// NewHandle returns a Handle whose Store hydrates from record on first use.
// record may be nil.
func NewHandle(record Record, log *logger.Logger) *Handle {
	return &Handle{record: record, log: log.With("component", "settings")}
}

// Instance returns the live Store, building it on the first call.
func (h *Handle) Instance(ctx context.Context) *Store {
	if s := h.inst.Load(); s != nil {
		return s
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.inst.Load(); s != nil {
		return s
	}
	s := newStore(ctx, h.record, h.log)
	h.inst.Store(s)
	return s
}
