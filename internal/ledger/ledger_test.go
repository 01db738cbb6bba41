package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twister-backend/internal/field"
)

func rec(i uint64) LeafRecord {
	return LeafRecord{Index: i, Commitment: field.FromUint64(500 + i), BlockNumber: 10 + i}
}

func recs(n int) []LeafRecord {
	out := make([]LeafRecord, n)
	for i := range out {
		out[i] = rec(uint64(i))
	}
	return out
}

type fakeSource struct {
	events  []LeafRecord
	err     error
	cursors []Cursor
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchLeaves(_ context.Context, cursor Cursor) ([]LeafRecord, error) {
	f.cursors = append(f.cursors, cursor)
	return f.events, f.err
}

type recordingPublisher struct {
	published []LeafRecord
}

func (p *recordingPublisher) PublishLeafAdded(r LeafRecord) error {
	p.published = append(p.published, r)
	return nil
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(nil, DefaultCapacity))
	require.NoError(t, Validate(recs(3), DefaultCapacity))
	require.NoError(t, Validate(recs(DefaultCapacity), DefaultCapacity))

	assert.ErrorIs(t, Validate(recs(DefaultCapacity+1), DefaultCapacity), ErrCapacityExceeded)
	assert.ErrorIs(t, Validate([]LeafRecord{rec(0), rec(0)}, DefaultCapacity), ErrDuplicateIndex)
	assert.ErrorIs(t, Validate([]LeafRecord{rec(0), rec(2)}, DefaultCapacity), ErrIndexGap)
	assert.ErrorIs(t, Validate([]LeafRecord{rec(1)}, DefaultCapacity), ErrIndexGap)
}

func TestSnapshotLookups(t *testing.T) {
	s, err := NewSnapshot(recs(4), DefaultCapacity)
	require.NoError(t, err)

	r, ok := s.FindByCommitment(field.FromUint64(502))
	require.True(t, ok)
	assert.Equal(t, uint64(2), r.Index)

	_, ok = s.FindByCommitment(field.FromUint64(42))
	assert.False(t, ok)

	r, ok = s.FindByIndex(3)
	require.True(t, ok)
	assert.Equal(t, field.FromUint64(503), r.Commitment)

	_, ok = s.FindByIndex(4)
	assert.False(t, ok)

	assert.Len(t, s.Commitments(), 4)
}

func TestSyncAppendsAndPublishes(t *testing.T) {
	store := NewMemoryStore(recs(2)...)
	source := &fakeSource{events: []LeafRecord{rec(1), rec(2), rec(3)}}
	pub := &recordingPublisher{}
	l := New(source, store, WithPublisher(pub))

	snap, err := l.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())

	require.Len(t, source.cursors, 1)
	assert.Equal(t, Cursor{NextIndex: 2, FromBlock: 11}, source.cursors[0])

	stored, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, recs(4), stored)
	assert.Equal(t, []LeafRecord{rec(2), rec(3)}, pub.published)
}

func TestSyncRejectsConflictingReplay(t *testing.T) {
	conflicting := rec(1)
	conflicting.Commitment = field.FromUint64(9999)
	store := NewMemoryStore(recs(2)...)
	l := New(&fakeSource{events: []LeafRecord{conflicting}}, store)

	_, err := l.Sync(context.Background())
	require.ErrorIs(t, err, ErrDuplicateIndex)
}

func TestSyncFailsFastOnGapAndPersistsNothing(t *testing.T) {
	store := NewMemoryStore(recs(2)...)
	l := New(&fakeSource{events: []LeafRecord{rec(3)}}, store)

	_, err := l.Sync(context.Background())
	require.ErrorIs(t, err, ErrIndexGap)

	stored, _ := store.List(context.Background())
	assert.Len(t, stored, 2)
}

func TestSyncFailsFastOnCapacity(t *testing.T) {
	store := NewMemoryStore()
	l := New(&fakeSource{events: recs(5)}, store, WithCapacity(4))

	_, err := l.Sync(context.Background())
	require.ErrorIs(t, err, ErrCapacityExceeded)

	stored, _ := store.List(context.Background())
	assert.Empty(t, stored)
}

func TestSyncPropagatesSourceError(t *testing.T) {
	boom := errors.New("rpc down")
	l := New(&fakeSource{err: boom}, NewMemoryStore())
	_, err := l.Sync(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestReadOnlyLedger(t *testing.T) {
	l := New(nil, NewMemoryStore(recs(3)...))
	snap, err := l.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())
}
