// Package merkle builds the fixed-capacity commitment accumulator.
//
// The tree is rebuilt from scratch for every operation. Leaves keep insertion
// order, empty slots hold the zero element and every internal node is
// H(left, right) with the left child always first. Sibling sorting is not
// supported because the circuit recomputes the path from index bits.
package merkle

import (
	"errors"
	"fmt"

	"twister-backend/internal/commitment"
	"twister-backend/internal/field"
)

var (
	ErrTreeFull               = errors.New("merkle: too many leaves for tree capacity")
	ErrIndexOutOfRange        = errors.New("merkle: leaf index out of range")
	ErrSortedPairsUnsupported = errors.New("merkle: sorted sibling pairs are not accepted by the circuit")
	ErrBadWitness             = errors.New("merkle: witness length does not match tree depth")
)

// Config describes the accumulator shape.
type Config struct {
	Depth     int
	ZeroValue field.Element
	// SortPairs must stay false. It is spelled out so that the fixed-order rule is a
	// visible decision and not a library default.
	SortPairs bool
}

// DefaultDepth gives 256 leaves.
const DefaultDepth = 8

// DefaultConfig is the layout the deployed circuit expects.
func DefaultConfig() Config {
	return Config{
		Depth:     DefaultDepth,
		ZeroValue: field.Zero,
		SortPairs: false,
	}
}

// Capacity is the number of leaf slots.
func (c Config) Capacity() int {
	return 1 << c.Depth
}

// Builder builds trees with a fixed config and hasher.
type Builder struct {
	cfg    Config
	hasher commitment.Hasher
}

// NewBuilder validates cfg.
func NewBuilder(cfg Config, hasher commitment.Hasher) (*Builder, error) {
	if cfg.SortPairs {
		return nil, ErrSortedPairsUnsupported
	}
	if cfg.Depth <= 0 || cfg.Depth > 32 {
		return nil, fmt.Errorf("merkle: invalid depth %d", cfg.Depth)
	}
	if hasher == nil {
		return nil, errors.New("merkle: hasher is required")
	}
	return &Builder{cfg: cfg, hasher: hasher}, nil
}

// Config returns the builder's configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// Tree is an immutable, fully materialized accumulator.
// levels[0] holds the padded leaves and levels[depth] holds the root.
type Tree struct {
	levels [][]field.Element
	count  int
}

// Build hashes leaves (in order) into a tree, padding unused slots with the zero value.
func (b *Builder) Build(leaves []field.Element) (*Tree, error) {
	capacity := b.cfg.Capacity()
	if len(leaves) > capacity {
		return nil, fmt.Errorf("%w: %d leaves, capacity %d", ErrTreeFull, len(leaves), capacity)
	}

	level := make([]field.Element, capacity)
	copy(level, leaves)
	for i := len(leaves); i < capacity; i++ {
		level[i] = b.cfg.ZeroValue
	}

	levels := make([][]field.Element, 0, b.cfg.Depth+1)
	levels = append(levels, level)
	for d := 0; d < b.cfg.Depth; d++ {
		next := make([]field.Element, len(level)/2)
		for i := range next {
			h, err := b.hasher.Hash(level[2*i], level[2*i+1])
			if err != nil {
				return nil, fmt.Errorf("failed to hash level %d node %d: %w", d+1, i, err)
			}
			next[i] = h
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels, count: len(leaves)}, nil
}

// Root returns the accumulator root.
func (t *Tree) Root() field.Element {
	return t.levels[len(t.levels)-1][0]
}

// Depth returns the number of hashing levels.
func (t *Tree) Depth() int {
	return len(t.levels) - 1
}

// Len returns the number of non-padding leaves.
func (t *Tree) Len() int {
	return t.count
}

// Leaf returns the value stored at index, padding included.
func (t *Tree) Leaf(index int) (field.Element, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return field.Zero, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return t.levels[0][index], nil
}

// Witness returns the sibling path of a recorded leaf, ordered from leaf level to root.
func (t *Tree) Witness(index int) ([]field.Element, error) {
	if index < 0 || index >= t.count {
		return nil, fmt.Errorf("%w: %d (recorded leaves: %d)", ErrIndexOutOfRange, index, t.count)
	}
	path := make([]field.Element, t.Depth())
	idx := index
	for d := 0; d < t.Depth(); d++ {
		path[d] = t.levels[d][idx^1]
		idx >>= 1
	}
	return path, nil
}

// ComputeRoot folds a witness into a root. Bit d of index decides whether the running
// hash is the left (0) or right (1) operand at level d.
func ComputeRoot(hasher commitment.Hasher, leaf field.Element, index int, witness []field.Element) (field.Element, error) {
	cur := leaf
	for d, sibling := range witness {
		var err error
		if (index>>d)&1 == 0 {
			cur, err = hasher.Hash(cur, sibling)
		} else {
			cur, err = hasher.Hash(sibling, cur)
		}
		if err != nil {
			return field.Zero, fmt.Errorf("failed to hash path level %d: %w", d, err)
		}
	}
	return cur, nil
}

// Verify checks that witness proves leaf at index under root.
func (b *Builder) Verify(leaf field.Element, index int, witness []field.Element, root field.Element) (bool, error) {
	if len(witness) != b.cfg.Depth {
		return false, fmt.Errorf("%w: got %d, want %d", ErrBadWitness, len(witness), b.cfg.Depth)
	}
	if index < 0 || index >= b.cfg.Capacity() {
		return false, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	computed, err := ComputeRoot(b.hasher, leaf, index, witness)
	if err != nil {
		return false, err
	}
	return computed == root, nil
}
