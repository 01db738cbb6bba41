package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"twister-backend/internal/metrics"
)

// Cursor tells a source where the local ledger ends.
type Cursor struct {
	NextIndex uint64
	// FromBlock is the block of the last stored record. Sources may re-deliver
	// records from this block; the ledger drops the ones it already holds.
	FromBlock uint64
}

// EventSource delivers AddLeaf events in emitted order.
type EventSource interface {
	Name() string
	FetchLeaves(ctx context.Context, cursor Cursor) ([]LeafRecord, error)
}

// LeafStore persists records. Append receives only validated, contiguous records.
type LeafStore interface {
	List(ctx context.Context) ([]LeafRecord, error)
	Append(ctx context.Context, records []LeafRecord) error
}

// LeafPublisher is notified of every newly recorded leaf.
type LeafPublisher interface {
	PublishLeafAdded(record LeafRecord) error
}

// Ledger merges an event source into a store.
type Ledger struct {
	source    EventSource
	store     LeafStore
	publisher LeafPublisher
	capacity  int
	logger    *logrus.Logger

	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithPublisher(p LeafPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithCapacity(capacity int) Option {
	return func(l *Ledger) { l.capacity = capacity }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a ledger. source may be nil for a read-only ledger.
func New(source EventSource, store LeafStore, opts ...Option) *Ledger {
	l := &Ledger{
		source:   source,
		store:    store,
		capacity: DefaultCapacity,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Capacity returns the maximum number of records.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Snapshot returns the stored records without contacting the source.
func (l *Ledger) Snapshot(ctx context.Context) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored leaves: %w", err)
	}
	return NewSnapshot(stored, l.capacity)
}

// Sync pulls new events, validates the combined sequence, persists and publishes the
// new records, and returns the full snapshot. Any ordering or capacity violation is fatal
// and nothing is persisted.
func (l *Ledger) Sync(ctx context.Context) (*Snapshot, error) {
	if l.source == nil {
		return l.Snapshot(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	snapshot, added, err := l.sync(ctx)
	metrics.LedgerSyncDuration.WithLabelValues(l.source.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LedgerSyncTotal.WithLabelValues(l.source.Name(), "error").Inc()
		l.logger.WithFields(logrus.Fields{
			"source": l.source.Name(),
			"error":  err.Error(),
		}).Error("[Ledger] sync failed")
		return nil, err
	}
	metrics.LedgerSyncTotal.WithLabelValues(l.source.Name(), "ok").Inc()
	metrics.LedgerLeafCount.Set(float64(snapshot.Len()))

	if added > 0 {
		l.logger.WithFields(logrus.Fields{
			"source": l.source.Name(),
			"added":  added,
			"total":  snapshot.Len(),
		}).Info("[Ledger] new leaves recorded")
	}
	return snapshot, nil
}

func (l *Ledger) sync(ctx context.Context) (*Snapshot, int, error) {
	stored, err := l.store.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stored leaves: %w", err)
	}
	if err := Validate(stored, l.capacity); err != nil {
		return nil, 0, fmt.Errorf("stored ledger is corrupt: %w", err)
	}

	cursor := Cursor{NextIndex: uint64(len(stored))}
	if len(stored) > 0 {
		cursor.FromBlock = stored[len(stored)-1].BlockNumber
	}

	events, err := l.source.FetchLeaves(ctx, cursor)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch leaves from %s: %w", l.source.Name(), err)
	}

	fresh, err := dropKnown(stored, events)
	if err != nil {
		return nil, 0, err
	}

	all := append(append([]LeafRecord(nil), stored...), fresh...)
	snapshot, err := NewSnapshot(all, l.capacity)
	if err != nil {
		return nil, 0, err
	}
	if len(fresh) == 0 {
		return snapshot, 0, nil
	}

	if err := l.store.Append(ctx, fresh); err != nil {
		return nil, 0, fmt.Errorf("failed to persist %d leaves: %w", len(fresh), err)
	}

	if l.publisher != nil {
		for _, r := range fresh {
			if err := l.publisher.PublishLeafAdded(r); err != nil {
				l.logger.WithFields(logrus.Fields{
					"index": r.Index,
					"error": err.Error(),
				}).Warn("[Ledger] failed to publish leaf")
			}
		}
	}
	return snapshot, len(fresh), nil
}

// dropKnown removes re-delivered events that match stored records. A re-delivered index
// whose commitment differs from the stored one is a duplicate, not a replay.
func dropKnown(stored, events []LeafRecord) ([]LeafRecord, error) {
	fresh := make([]LeafRecord, 0, len(events))
	for _, e := range events {
		if e.Index < uint64(len(stored)) && len(fresh) == 0 {
			if stored[e.Index].Commitment != e.Commitment {
				return nil, fmt.Errorf("%w: index %d has commitment %s, stored %s",
					ErrDuplicateIndex, e.Index, e.Commitment.Hex(), stored[e.Index].Commitment.Hex())
			}
			continue
		}
		fresh = append(fresh, e)
	}
	return fresh, nil
}

// MemoryStore is an in-process LeafStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records []LeafRecord
}

func NewMemoryStore(records ...LeafRecord) *MemoryStore {
	return &MemoryStore{records: append([]LeafRecord(nil), records...)}
}

func (m *MemoryStore) List(_ context.Context) ([]LeafRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LeafRecord(nil), m.records...), nil
}

func (m *MemoryStore) Append(_ context.Context, records []LeafRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}
