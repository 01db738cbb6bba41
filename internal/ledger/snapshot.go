// Package ledger keeps the ordered, gap-free record of every deposited commitment.
package ledger

import (
	"errors"
	"fmt"

	"twister-backend/internal/field"
)

// DefaultCapacity matches the 256-leaf accumulator.
const DefaultCapacity = 256

var (
	ErrCapacityExceeded = errors.New("ledger: more leaves than the accumulator can hold")
	ErrDuplicateIndex   = errors.New("ledger: duplicate leaf index")
	ErrIndexGap         = errors.New("ledger: leaf index out of order")
)

// LeafRecord is one AddLeaf event. Index is dense and 0-based.
type LeafRecord struct {
	Index           uint64        `json:"index"`
	Commitment      field.Element `json:"commitment"`
	Root            field.Element `json:"root"`
	BlockNumber     uint64        `json:"blockNumber"`
	TransactionHash string        `json:"transactionHash,omitempty"`
	LogIndex        uint          `json:"logIndex"`
}

// Validate checks that records are exactly indices 0..n-1 in order and fit in capacity.
func Validate(records []LeafRecord, capacity int) error {
	if len(records) > capacity {
		return fmt.Errorf("%w: %d records, capacity %d", ErrCapacityExceeded, len(records), capacity)
	}
	for i, r := range records {
		if r.Index == uint64(i) {
			continue
		}
		if r.Index < uint64(i) {
			return fmt.Errorf("%w: index %d seen again at position %d", ErrDuplicateIndex, r.Index, i)
		}
		return fmt.Errorf("%w: expected index %d, got %d", ErrIndexGap, i, r.Index)
	}
	return nil
}

// Snapshot is an immutable copy of the ledger taken once per operation.
type Snapshot struct {
	records      []LeafRecord
	byCommitment map[field.Element]int
}

// NewSnapshot validates records and indexes them by commitment.
// When a commitment occurs twice the first occurrence wins.
func NewSnapshot(records []LeafRecord, capacity int) (*Snapshot, error) {
	if err := Validate(records, capacity); err != nil {
		return nil, err
	}
	s := &Snapshot{
		records:      append([]LeafRecord(nil), records...),
		byCommitment: make(map[field.Element]int, len(records)),
	}
	for i, r := range s.records {
		if _, exists := s.byCommitment[r.Commitment]; !exists {
			s.byCommitment[r.Commitment] = i
		}
	}
	return s, nil
}

func (s *Snapshot) Len() int {
	return len(s.records)
}

// FindByCommitment reports the record holding leaf, if any.
func (s *Snapshot) FindByCommitment(leaf field.Element) (LeafRecord, bool) {
	i, ok := s.byCommitment[leaf]
	if !ok {
		return LeafRecord{}, false
	}
	return s.records[i], true
}

func (s *Snapshot) FindByIndex(index uint64) (LeafRecord, bool) {
	if index >= uint64(len(s.records)) {
		return LeafRecord{}, false
	}
	return s.records[index], true
}

// Commitments returns leaves in index order.
func (s *Snapshot) Commitments() []field.Element {
	out := make([]field.Element, len(s.records))
	for i, r := range s.records {
		out[i] = r.Commitment
	}
	return out
}

// Records returns a copy of the ordered records.
func (s *Snapshot) Records() []LeafRecord {
	return append([]LeafRecord(nil), s.records...)
}
