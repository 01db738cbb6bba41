package merkle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twister-backend/internal/commitment"
	"twister-backend/internal/field"
)

// linearHasher is order-sensitive and cheap: H(a, b) = 3a + 7b + 1 mod p.
type linearHasher struct{}

func (linearHasher) Hash(a, b field.Element) (field.Element, error) {
	v := new(big.Int).Mul(a.Big(), big.NewInt(3))
	v.Add(v, new(big.Int).Mul(b.Big(), big.NewInt(7)))
	v.Add(v, big.NewInt(1))
	return field.Reduce(v.Mod(v, field.Modulus())), nil
}

func leaves(n int) []field.Element {
	out := make([]field.Element, n)
	for i := range out {
		out[i] = field.FromUint64(uint64(1000 + i))
	}
	return out
}

func TestNewBuilderRejectsSortedPairs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SortPairs = true
	_, err := NewBuilder(cfg, linearHasher{})
	require.ErrorIs(t, err, ErrSortedPairsUnsupported)

	_, err = NewBuilder(Config{Depth: 0}, linearHasher{})
	require.Error(t, err)
}

func TestBuildSmallTreeByHand(t *testing.T) {
	b, err := NewBuilder(Config{Depth: 2}, linearHasher{})
	require.NoError(t, err)

	l := leaves(3)
	tree, err := b.Build(l)
	require.NoError(t, err)

	h := linearHasher{}
	n01, _ := h.Hash(l[0], l[1])
	n23, _ := h.Hash(l[2], field.Zero)
	root, _ := h.Hash(n01, n23)
	assert.Equal(t, root, tree.Root())

	w, err := tree.Witness(2)
	require.NoError(t, err)
	assert.Equal(t, []field.Element{field.Zero, n01}, w)
}

func TestEmptyTreeRootIsZeroChain(t *testing.T) {
	h := commitment.NewPoseidonHasher()
	b, err := NewBuilder(DefaultConfig(), h)
	require.NoError(t, err)

	tree, err := b.Build(nil)
	require.NoError(t, err)

	z := field.Zero
	for d := 0; d < DefaultDepth; d++ {
		z, err = h.Hash(z, z)
		require.NoError(t, err)
	}
	assert.Equal(t, z, tree.Root())
	assert.Equal(t, 0, tree.Len())

	_, err = tree.Witness(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestWitnessRoundTrip(t *testing.T) {
	b, err := NewBuilder(DefaultConfig(), commitment.NewPoseidonHasher())
	require.NoError(t, err)

	for _, n := range []int{1, 2, 3, 17, 128, 256} {
		tree, err := b.Build(leaves(n))
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			w, err := tree.Witness(i)
			require.NoError(t, err)
			require.Len(t, w, DefaultDepth)

			leaf, err := tree.Leaf(i)
			require.NoError(t, err)
			ok, err := b.Verify(leaf, i, w, tree.Root())
			require.NoError(t, err)
			assert.True(t, ok, "n=%d index=%d", n, i)
		}
	}
}

func TestSwappedSiblingsFailVerification(t *testing.T) {
	h := commitment.NewPoseidonHasher()
	b, err := NewBuilder(DefaultConfig(), h)
	require.NoError(t, err)

	l := leaves(5)
	tree, err := b.Build(l)
	require.NoError(t, err)

	for i := range l {
		w, err := tree.Witness(i)
		require.NoError(t, err)

		// Fold with the opposite operand order at every level.
		cur := l[i]
		for d, sib := range w {
			if (i>>d)&1 == 0 {
				cur, err = h.Hash(sib, cur)
			} else {
				cur, err = h.Hash(cur, sib)
			}
			require.NoError(t, err)
		}
		assert.NotEqual(t, tree.Root(), cur, "index %d verified with swapped order", i)

		ok, err := b.Verify(l[i], i^1, w, tree.Root())
		require.NoError(t, err)
		assert.False(t, ok, "witness for %d must not verify at %d", i, i^1)
	}
}

func TestSortedPairsFoldingDiverges(t *testing.T) {
	h := commitment.NewPoseidonHasher()
	b, err := NewBuilder(DefaultConfig(), h)
	require.NoError(t, err)

	// The left leaf is numerically larger, so a sorted-pairs fold flips level 0.
	l := []field.Element{field.FromUint64(5000), field.FromUint64(10)}
	tree, err := b.Build(l)
	require.NoError(t, err)

	w, err := tree.Witness(0)
	require.NoError(t, err)

	cur := l[0]
	for _, sib := range w {
		if cur.Big().Cmp(sib.Big()) <= 0 {
			cur, err = h.Hash(cur, sib)
		} else {
			cur, err = h.Hash(sib, cur)
		}
		require.NoError(t, err)
	}
	assert.NotEqual(t, tree.Root(), cur)

	ok, err := b.Verify(l[0], 0, w, tree.Root())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildRejectsOverflow(t *testing.T) {
	b, err := NewBuilder(Config{Depth: 2}, linearHasher{})
	require.NoError(t, err)
	_, err = b.Build(leaves(5))
	assert.ErrorIs(t, err, ErrTreeFull)
}

func TestVerifyRejectsShortWitness(t *testing.T) {
	b, err := NewBuilder(DefaultConfig(), linearHasher{})
	require.NoError(t, err)
	_, err = b.Verify(field.Zero, 0, make([]field.Element, 3), field.Zero)
	assert.ErrorIs(t, err, ErrBadWitness)
}
